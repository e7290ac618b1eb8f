package openai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// Service implements generation.Service over the OpenAI chat completions
// API. It is stateless; one instance serves any number of concurrent turns.
type Service struct {
	client *go_openai.Client
}

type Option func(*serviceConfig)

type serviceConfig struct {
	baseURL string
	client  *go_openai.Client
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *serviceConfig) { c.baseURL = url }
}

// WithClient injects a preconfigured client, used by tests.
func WithClient(client *go_openai.Client) Option {
	return func(c *serviceConfig) { c.client = client }
}

func NewService(apiKey string, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.client != nil {
		return &Service{client: cfg.client}
	}
	clientCfg := go_openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}
	return &Service{client: go_openai.NewClientWithConfig(clientCfg)}
}

func roleFor(role string) string {
	switch role {
	case "model":
		return go_openai.ChatMessageRoleAssistant
	case "tool":
		return go_openai.ChatMessageRoleTool
	default:
		return go_openai.ChatMessageRoleUser
	}
}

// buildMessages converts content turns into chat messages. Tool responses
// are matched back to the provider's call ids by function name, since the
// orchestration core addresses tools by name only.
func buildMessages(contents []generation.Content, systemInstruction string) []go_openai.ChatCompletionMessage {
	var msgs []go_openai.ChatCompletionMessage
	if systemInstruction != "" {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}

	callIDs := map[string]string{}
	for _, content := range contents {
		role := roleFor(content.Role)

		var text strings.Builder
		var imageParts []go_openai.ChatMessagePart
		var toolCalls []go_openai.ToolCall

		for _, part := range content.Parts {
			switch {
			case part.Text != "":
				text.WriteString(part.Text)
			case part.InlineData != nil:
				if !strings.HasPrefix(part.InlineData.MIMEType, "image/") {
					log.Debug().Str("mime_type", part.InlineData.MIMEType).
						Msg("skipping non-image inline data, not supported by chat completions")
					continue
				}
				imageParts = append(imageParts, go_openai.ChatMessagePart{
					Type: go_openai.ChatMessagePartTypeImageURL,
					ImageURL: &go_openai.ChatMessageImageURL{
						URL: "data:" + part.InlineData.MIMEType + ";base64," + part.InlineData.Data,
					},
				})
			case part.FunctionCall != nil:
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					args = []byte("{}")
				}
				id := part.FunctionCall.ID
				if id == "" {
					id = part.FunctionCall.Name
				}
				callIDs[part.FunctionCall.Name] = id
				toolCalls = append(toolCalls, go_openai.ToolCall{
					ID:   id,
					Type: go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					},
				})
			case part.FunctionResponse != nil:
				payload, err := json.Marshal(part.FunctionResponse.Response)
				if err != nil {
					payload = []byte("{}")
				}
				msgs = append(msgs, go_openai.ChatCompletionMessage{
					Role:       go_openai.ChatMessageRoleTool,
					Content:    string(payload),
					Name:       part.FunctionResponse.Name,
					ToolCallID: callIDs[part.FunctionResponse.Name],
				})
			}
		}

		switch {
		case len(toolCalls) > 0:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:      go_openai.ChatMessageRoleAssistant,
				Content:   text.String(),
				ToolCalls: toolCalls,
			})
		case len(imageParts) > 0:
			parts := imageParts
			if text.Len() > 0 {
				parts = append([]go_openai.ChatMessagePart{{
					Type: go_openai.ChatMessagePartTypeText,
					Text: text.String(),
				}}, parts...)
			}
			msgs = append(msgs, go_openai.ChatCompletionMessage{Role: role, MultiContent: parts})
		case text.Len() > 0:
			msgs = append(msgs, go_openai.ChatCompletionMessage{Role: role, Content: text.String()})
		}
	}
	return msgs
}

func buildTools(declarations []generation.ToolDeclaration) []go_openai.Tool {
	if len(declarations) == 0 {
		return nil
	}
	out := make([]go_openai.Tool, 0, len(declarations))
	for _, decl := range declarations {
		out = append(out, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  decl.Parameters,
			},
		})
	}
	return out
}

func (s *Service) buildRequest(contents []generation.Content, cfg generation.Config) go_openai.ChatCompletionRequest {
	req := go_openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    buildMessages(contents, cfg.SystemInstruction),
		Temperature: float32(cfg.Temperature),
		Tools:       buildTools(cfg.Tools),
	}
	if cfg.WebSearch {
		// chat completions carry no native search tool; grounding is the
		// provider's concern when available
		log.Debug().Msg("web search requested but not supported by this backend")
	}
	return req
}

func (s *Service) Generate(ctx context.Context, contents []generation.Content, cfg generation.Config) (*generation.Response, error) {
	req := s.buildRequest(contents, cfg)
	log.Debug().Str("model", req.Model).Int("num_messages", len(req.Messages)).
		Int("num_tools", len(req.Tools)).Msg("running chat completion")

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("the backend returned no choices")
	}
	msg := resp.Choices[0].Message

	out := &generation.Response{Text: msg.Content}
	modelTurn := generation.Content{Role: "model"}
	if msg.Content != "" {
		modelTurn.Parts = append(modelTurn.Parts, generation.Part{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			log.Warn().Err(err).Str("tool", tc.Function.Name).Msg("dropping tool call with unparseable arguments")
			continue
		}
		call := generation.FunctionCall{ID: tc.ID, Name: tc.Function.Name, Args: args}
		out.FunctionCalls = append(out.FunctionCalls, call)
		callCopy := call
		modelTurn.Parts = append(modelTurn.Parts, generation.Part{FunctionCall: &callCopy})
	}
	out.ModelTurn = &modelTurn
	return out, nil
}

func (s *Service) GenerateStructured(ctx context.Context, contents []generation.Content, schema map[string]any, cfg generation.Config) (json.RawMessage, error) {
	req := s.buildRequest(contents, cfg)
	req.Tools = nil

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize output schema")
	}
	req.ResponseFormat = &go_openai.ChatCompletionResponseFormat{
		Type: go_openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &go_openai.ChatCompletionResponseFormatJSONSchema{
			Name:   "structured_output",
			Schema: json.RawMessage(schemaBytes),
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "structured chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("the backend returned no choices")
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}
