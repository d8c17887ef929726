package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-site/internal/assistant"
	"github.com/wolfman30/clinic-site/internal/catalog"
	appconfig "github.com/wolfman30/clinic-site/internal/config"
	httpmiddleware "github.com/wolfman30/clinic-site/internal/http/middleware"
	"github.com/wolfman30/clinic-site/internal/notify"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

func staticAWS(ctx context.Context) (aws.Config, error) {
	return aws.Config{Region: "us-east-1"}, nil
}

func failingAWS(context.Context) (aws.Config, error) {
	return aws.Config{}, errors.New("no credentials")
}

func TestBuildRedisClient(t *testing.T) {
	logger := logging.New("error")
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logger, true))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, logger, true))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	require.NotNil(t, client)
	defer client.Close()

	unreachable := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: "127.0.0.1:1"}, logger, true)
	assert.Nil(t, unreachable)
}

func TestBuildChatLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := logging.New("error")

	assert.Nil(t, BuildChatLimiter(ctx, &appconfig.Config{ChatRateLimitPerMinute: 0}, nil, logger))

	limiter := BuildChatLimiter(ctx, &appconfig.Config{ChatRateLimitPerMinute: 2}, nil, logger)
	require.IsType(t, &httpmiddleware.RateLimiter{}, limiter)

	mr := miniredis.RunT(t)
	client := BuildRedisClient(ctx, &appconfig.Config{RedisAddr: mr.Addr()}, logger, false)
	defer client.Close()
	shared := BuildChatLimiter(ctx, &appconfig.Config{ChatRateLimitPerMinute: 1}, client, logger)
	require.IsType(t, &httpmiddleware.RedisRateLimiter{}, shared)

	ok, err := shared.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = shared.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)
}

func TestBuildChatService(t *testing.T) {
	logger := logging.New("error")
	ctx := context.Background()

	_, err := BuildChatService(ctx, nil, staticAWS, logger)
	assert.Error(t, err)

	svc, err := BuildChatService(ctx, &appconfig.Config{ChatProvider: "gemini"}, staticAWS, logger)
	require.NoError(t, err)
	assert.Nil(t, svc, "no key leaves sessions unavailable")

	svc, err = BuildChatService(ctx, &appconfig.Config{ChatProvider: "bedrock"}, staticAWS, logger)
	require.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = BuildChatService(ctx, &appconfig.Config{ChatProvider: "bedrock", BedrockModelID: "anthropic.claude-3-haiku"}, staticAWS, logger)
	require.NoError(t, err)
	assert.IsType(t, &assistant.BedrockService{}, svc)

	_, err = BuildChatService(ctx, &appconfig.Config{ChatProvider: "bedrock", BedrockModelID: "m"}, failingAWS, logger)
	assert.Error(t, err)

	_, err = BuildChatService(ctx, &appconfig.Config{ChatProvider: "palm"}, staticAWS, logger)
	assert.ErrorContains(t, err, "unknown chat provider")
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")
	ctx := context.Background()

	sender, err := BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "none"}, staticAWS, logger)
	require.NoError(t, err)
	assert.Nil(t, sender)

	sender, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "sendgrid"}, staticAWS, logger)
	require.NoError(t, err)
	assert.Nil(t, sender, "missing key must not yield a typed nil")

	sender, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.test"}, staticAWS, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	sender, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "ses", EmailFromAddress: "clinic@example.com"}, staticAWS, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.SESSender{}, sender)

	_, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "ses"}, failingAWS, logger)
	assert.Error(t, err)

	sender, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "stub"}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	_, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "pigeon"}, nil, logger)
	assert.Error(t, err)
}

func TestBuildDoctorNotifier(t *testing.T) {
	logger := logging.New("error")
	stub := notify.NewStubEmailSender(logger)

	assert.Nil(t, BuildDoctorNotifier(nil, &appconfig.Config{DoctorNotifyEmail: "dr@example.com"}, nil, logger))
	assert.Nil(t, BuildDoctorNotifier(stub, &appconfig.Config{}, nil, logger))

	n := BuildDoctorNotifier(stub, &appconfig.Config{DoctorNotifyEmail: "dr@example.com"}, catalog.Default(), logger)
	require.NotNil(t, n)
	assert.NoError(t, n.NotifyDoctor(context.Background(), assistant.Booking{ID: "BK-1", Intent: assistant.BookingIntent{PatientName: "Jane", PreferredSlot: "Morning"}}))
}

// fakeChat answers every turn with a fixed reply.
type fakeChat struct{}

func (fakeChat) StartSession(context.Context, assistant.SessionConfig) (assistant.Session, error) {
	return fakeSession{}, nil
}

type fakeSession struct{}

func (fakeSession) Send(context.Context, assistant.Turn) (assistant.Reply, error) {
	return assistant.Reply{Text: "Namaste!"}, nil
}

func TestBuildWidgetFactory(t *testing.T) {
	factory := BuildWidgetFactory(WidgetDeps{
		Catalog: catalog.Default(),
		Service: fakeChat{},
		Config:  &appconfig.Config{BookingStepDelay: 0, ChatTurnTimeout: 5 * time.Second},
		Logger:  logging.New("error"),
	})

	a, b := factory(), factory()
	require.NotSame(t, a, b)
	require.Len(t, a.Transcript(), 1)
	assert.Equal(t, assistant.Greeting(catalog.Default()), a.Transcript()[0].Text)

	reply, err := a.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Namaste!", reply.Text)
	assert.Len(t, b.Transcript(), 1, "widgets do not share transcripts")
}

func TestBuildWidgetFactoryWithoutService(t *testing.T) {
	w := BuildWidgetFactory(WidgetDeps{})()
	_, err := w.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, assistant.ErrSessionUnavailable)
}
