package excuses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/densematrix-labs/ai-excuse-generator/internal/infra/httpclient"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrUnavailable = errors.New("excuse generator unavailable")
)

const (
	excusesPerRequest = 3
	maxContextLen     = 500

	completionTemperature = 0.9
	completionMaxTokens   = 1000
)

// ChatClient is the slice of the OpenAI-compatible client we use.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	Model string
}

type Service struct {
	client ChatClient
	cfg    Config
}

func NewService(client ChatClient, cfg Config) *Service {
	return &Service{client: client, cfg: cfg}
}

// NewChatClient builds an OpenAI-compatible client pointed at the LLM proxy.
func NewChatClient(proxyURL, apiKey string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if proxyURL != "" {
		cfg.BaseURL = strings.TrimRight(proxyURL, "/") + "/v1"
	}
	cfg.HTTPClient = httpclient.New(timeout)
	return openai.NewClientWithConfig(cfg)
}

// ValidateParams reports whether p describes a generatable request. Callers
// that charge for generation check this before spending anything.
func ValidateParams(p Params) error {
	if _, ok := ParseCategory(string(p.Category)); !ok {
		return ErrValidation
	}
	if _, ok := ParseUrgency(string(p.Urgency)); !ok {
		return ErrValidation
	}
	if len(p.Context) > maxContextLen {
		return ErrValidation
	}
	if p.Language != "" {
		if _, ok := languageNames[p.Language]; !ok {
			return ErrValidation
		}
	}
	return nil
}

// Generate produces a batch of excuses for the given situation. Transport
// or upstream model failures surface as ErrUnavailable; the entitlement
// spent for this call is settled by the caller, not here.
func (s *Service) Generate(ctx context.Context, p Params) ([]Excuse, error) {
	if err := ValidateParams(p); err != nil {
		return nil, err
	}
	category, _ := ParseCategory(string(p.Category))
	urgency, _ := ParseUrgency(string(p.Urgency))
	p.Category = category
	p.Urgency = urgency
	if p.Language == "" {
		p.Language = "en"
	}
	if s.client == nil {
		return nil, fmt.Errorf("chat client is nil")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(p)},
		},
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrUnavailable)
	}

	return parseExcuses(resp.Choices[0].Message.Content), nil
}

// parseExcuses extracts the JSON array the prompt asks for. Models wrap
// output in markdown fences or drift from the schema often enough that a
// raw-text fallback beats failing the request.
func parseExcuses(content string) []Excuse {
	content = stripFences(strings.TrimSpace(content))

	var parsed []Excuse
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && len(parsed) > 0 {
		if len(parsed) > excusesPerRequest {
			parsed = parsed[:excusesPerRequest]
		}
		for i := range parsed {
			if parsed[i].Tone == "" {
				parsed[i].Tone = "neutral"
			}
		}
		return parsed
	}

	return []Excuse{{
		Text: content,
		Tone: "generated",
		Tip:  "Use with confidence!",
	}}
}

func stripFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
