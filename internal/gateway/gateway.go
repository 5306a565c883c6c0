package gateway

import (
	"context"
	"errors"
)

//go:generate mockgen -source=gateway.go -destination=mocks/mock_gateway.go -package=mocks

var (
	ErrRateLimited  = errors.New("gateway_rate_limited")
	ErrAccessDenied = errors.New("gateway_access_denied")
	ErrUnavailable  = errors.New("gateway_unavailable")
	ErrBadResponse  = errors.New("gateway_bad_response")
)

// Gateway is the paid AI backend. Every call reports the tokens it consumed.
type Gateway interface {
	Research(ctx context.Context, req ResearchRequest) (*TextResult, error)
	SynthesizeImage(ctx context.Context, req SynthesizeRequest) (*ImageResult, error)
	EditImage(ctx context.Context, req EditRequest) (*ImageResult, error)
	ChatTurn(ctx context.Context, req ChatRequest) (*TextResult, error)
	SummarizeTitle(ctx context.Context, req TitleRequest) (*TextResult, error)
}

type ResearchRequest struct {
	Topic string `json:"topic"`
}

type SynthesizeRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

type EditRequest struct {
	Image       []byte `json:"image"`
	ContentType string `json:"content_type"`
	Instruction string `json:"instruction"`
	Size        string `json:"size,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Mode    string        `json:"mode"`
	History []ChatMessage `json:"history,omitempty"`
	Message string        `json:"message"`
}

type TitleRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
}

type TextResult struct {
	Text string `json:"text"`
	Cost int64  `json:"cost"`
}

type ImageResult struct {
	Image         []byte `json:"image"`
	ContentType   string `json:"content_type"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	Cost          int64  `json:"cost"`
}
