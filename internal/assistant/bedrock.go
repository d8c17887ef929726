package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockService implements ChatService on the Bedrock Converse API.
type BedrockService struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockService(api bedrockConverseAPI, modelID string) (*BedrockService, error) {
	if api == nil {
		return nil, errors.New("assistant: bedrock converse client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("assistant: bedrock model id is required")
	}
	return &BedrockService{api: api, modelID: modelID}, nil
}

// StartSession prepares the system blocks and tool configuration. Converse
// is stateless, so the session keeps the message history itself.
func (s *BedrockService) StartSession(_ context.Context, cfg SessionConfig) (Session, error) {
	session := &bedrockSession{api: s.api, modelID: s.modelID}
	if text := strings.TrimSpace(cfg.SystemInstruction); text != "" {
		session.system = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: text}}
	}
	if len(cfg.Tools) > 0 {
		tools := make([]brtypes.Tool, 0, len(cfg.Tools))
		for _, spec := range cfg.Tools {
			tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
				Name:        aws.String(spec.Name),
				Description: aws.String(spec.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(jsonSchema(spec))},
			}})
		}
		session.toolConfig = &brtypes.ToolConfiguration{Tools: tools}
	}
	return session, nil
}

type bedrockSession struct {
	api        bedrockConverseAPI
	modelID    string
	system     []brtypes.SystemContentBlock
	toolConfig *brtypes.ToolConfiguration
	history    []brtypes.Message
	// pending lists toolUse ids in the last assistant message that have no
	// toolResult yet. Converse rejects any request that leaves one open.
	pending []string
}

func (s *bedrockSession) Send(ctx context.Context, turn Turn) (Reply, error) {
	msg := brtypes.Message{Role: brtypes.ConversationRoleUser}
	answered := make(map[string]bool, len(turn.ToolResults))
	for _, r := range turn.ToolResults {
		answered[r.ID] = true
		status := brtypes.ToolResultStatusSuccess
		if IsErrorResult(r) {
			status = brtypes.ToolResultStatusError
		}
		msg.Content = append(msg.Content, bedrockToolResult(r.ID, r.Response, status))
	}
	for _, id := range s.pending {
		if !answered[id] {
			msg.Content = append(msg.Content, bedrockToolResult(id, map[string]any{"error": AbandonedToolError}, brtypes.ToolResultStatusError))
		}
	}
	if !turn.IsToolResult() {
		msg.Content = append(msg.Content, &brtypes.ContentBlockMemberText{Value: turn.Text})
	}

	pending := make([]brtypes.Message, len(s.history), len(s.history)+2)
	copy(pending, s.history)
	pending = append(pending, msg)

	out, err := s.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:    aws.String(s.modelID),
		System:     s.system,
		Messages:   pending,
		ToolConfig: s.toolConfig,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("assistant: bedrock converse failed: %w", err)
	}
	if out == nil {
		return Reply{}, errors.New("assistant: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return Reply{}, errors.New("assistant: bedrock response did not include a message output")
	}

	reply, err := decodeBedrockMessage(msgOut.Value)
	if err != nil {
		return Reply{}, err
	}
	s.history = append(pending, msgOut.Value)
	s.pending = s.pending[:0]
	for _, call := range reply.ToolCalls {
		s.pending = append(s.pending, call.ID)
	}
	return reply, nil
}

func bedrockToolResult(id string, response map[string]any, status brtypes.ToolResultStatus) brtypes.ContentBlock {
	return &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
		ToolUseId: aws.String(id),
		Content: []brtypes.ToolResultContentBlock{
			&brtypes.ToolResultContentBlockMemberJson{Value: document.NewLazyDocument(response)},
		},
		Status: status,
	}}
}

func decodeBedrockMessage(msg brtypes.Message) (Reply, error) {
	var reply Reply
	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			args, err := bedrockToolInput(b.Value.Input)
			if err != nil {
				return Reply{}, err
			}
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:   aws.ToString(b.Value.ToolUseId),
				Name: aws.ToString(b.Value.Name),
				Args: args,
			})
		}
	}
	reply.Text = strings.TrimSpace(text.String())
	return reply, nil
}

// bedrockToolInput goes through JSON so lazy and decoded documents read the same way.
func bedrockToolInput(input document.Interface) (map[string]any, error) {
	args := map[string]any{}
	if input == nil {
		return args, nil
	}
	raw, err := input.MarshalSmithyDocument()
	if err != nil {
		return nil, fmt.Errorf("assistant: bedrock tool input encode: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("assistant: bedrock tool input decode: %w", err)
	}
	return args, nil
}

func jsonSchema(spec ToolSpec) map[string]any {
	props := make(map[string]any, len(spec.Parameters))
	for _, p := range spec.Parameters {
		props[p.Name] = map[string]any{
			"type":        "string",
			"description": p.Description,
		}
	}
	required := spec.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
