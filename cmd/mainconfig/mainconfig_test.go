package mainconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appconfig "github.com/wolfman30/clinic-site/internal/config"
)

func TestEndpointOverrideCoversBedrockAndSES(t *testing.T) {
	resolver := endpointOverride("http://localhost:4566", "us-west-2")

	for _, service := range []string{bedrockruntime.ServiceID, sesv2.ServiceID} {
		ep, err := resolver.ResolveEndpoint(service, "us-west-2")
		require.NoError(t, err, service)
		assert.Equal(t, "http://localhost:4566", ep.URL)
		assert.Equal(t, "us-west-2", ep.SigningRegion)
	}

	_, err := resolver.ResolveEndpoint("S3", "us-west-2")
	var notFound *aws.EndpointNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "eu-west-1",
		AWSAccessKeyID:      "AKIDEXAMPLE",
		AWSSecretAccessKey:  "secret",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)
	assert.NotNil(t, awsCfg.EndpointResolverWithOptions)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)

	assert.NotNil(t, NewBedrockClient(awsCfg))
	assert.NotNil(t, NewSESClient(awsCfg))
}
