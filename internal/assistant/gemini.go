package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-site/pkg/logging"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// geminiModels is the part of *genai.Models a session needs.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiService implements ChatService using Google's Gemini API.
type GeminiService struct {
	models  geminiModels
	modelID string
	logger  *logging.Logger
}

// NewGeminiService creates a Gemini-backed chat service.
func NewGeminiService(ctx context.Context, apiKey, modelID string, logger *logging.Logger) (*GeminiService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("assistant: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultGeminiModel
	}
	if logger == nil {
		logger = logging.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: failed to create gemini client: %w", err)
	}

	return &GeminiService{
		models:  client.Models,
		modelID: modelID,
		logger:  logger,
	}, nil
}

// StartSession fixes the system instruction and tools for the session.
// Web search is declared next to the function declarations.
func (s *GeminiService) StartSession(_ context.Context, cfg SessionConfig) (Session, error) {
	session := newGeminiSession(s.models, s.modelID)
	session.config = geminiConfig(cfg)
	s.logger.Debug("assistant: gemini session started", "model", s.modelID, "web_search", cfg.WebSearch)
	return session, nil
}

func geminiConfig(cfg SessionConfig) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if text := strings.TrimSpace(cfg.SystemInstruction); text != "" {
		config.SystemInstruction = genai.NewContentFromText(text, genai.RoleUser)
	}
	if len(cfg.Tools) > 0 {
		config.Tools = append(config.Tools, &genai.Tool{FunctionDeclarations: geminiDeclarations(cfg.Tools)})
	}
	if cfg.WebSearch {
		config.Tools = append(config.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	return config
}

// geminiCall is a function call the model is still waiting on.
type geminiCall struct {
	name    string
	modelID string
}

type geminiSession struct {
	models  geminiModels
	modelID string
	config  *genai.GenerateContentConfig
	history []*genai.Content
	// pending holds calls from the last model turn that were never answered.
	pending map[string]geminiCall
	newID   func() string
}

func newGeminiSession(models geminiModels, modelID string) *geminiSession {
	return &geminiSession{
		models:  models,
		modelID: modelID,
		pending: make(map[string]geminiCall),
		newID:   func() string { return "call-" + uuid.NewString() },
	}
}

func (s *geminiSession) Send(ctx context.Context, turn Turn) (Reply, error) {
	var parts []*genai.Part
	answered := make(map[string]bool, len(turn.ToolResults))
	for _, r := range turn.ToolResults {
		call := s.pending[r.ID]
		answered[r.ID] = true
		parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       call.modelID,
			Name:     r.Name,
			Response: r.Response,
		}})
	}
	// Calls left open by a failed or abandoned turn are closed with an
	// error so the model accepts the next message.
	for id, call := range s.pending {
		if answered[id] {
			continue
		}
		parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       call.modelID,
			Name:     call.name,
			Response: map[string]any{"error": AbandonedToolError},
		}})
	}
	if !turn.IsToolResult() {
		parts = append(parts, genai.NewPartFromText(turn.Text))
	}

	input := genai.NewContentFromParts(parts, genai.RoleUser)
	contents := make([]*genai.Content, len(s.history), len(s.history)+1)
	copy(contents, s.history)
	contents = append(contents, input)

	resp, err := s.models.GenerateContent(ctx, s.modelID, contents, s.config)
	if err != nil {
		return Reply{}, fmt.Errorf("assistant: gemini send failed: %w", err)
	}
	reply, output, calls, err := s.decode(resp)
	if err != nil {
		return Reply{}, err
	}

	s.history = contents
	if output != nil {
		s.history = append(s.history, output)
	}
	s.pending = calls
	return reply, nil
}

func (s *geminiSession) decode(resp *genai.GenerateContentResponse) (Reply, *genai.Content, map[string]geminiCall, error) {
	calls := make(map[string]geminiCall)
	if resp == nil || len(resp.Candidates) == 0 {
		return Reply{}, nil, nil, errors.New("assistant: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return Reply{}, nil, calls, nil
	}

	var reply Reply
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch {
		case part == nil || part.Thought:
		case part.FunctionCall != nil:
			fc := part.FunctionCall
			id := fc.ID
			if id == "" {
				id = s.newID()
			}
			calls[id] = geminiCall{name: fc.Name, modelID: fc.ID}
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{ID: id, Name: fc.Name, Args: fc.Args})
		default:
			text.WriteString(part.Text)
		}
	}
	reply.Text = strings.TrimSpace(text.String())
	return reply, candidate.Content, calls, nil
}

func geminiDeclarations(specs []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		props := make(map[string]*genai.Schema, len(spec.Parameters))
		for _, p := range spec.Parameters {
			props[p.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.Description,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   spec.Required,
			},
		})
	}
	return decls
}
