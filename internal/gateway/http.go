package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 32 << 20

// HTTPClient calls a JSON gateway at POST {base}/v1/{operation}.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     log.Named("gateway.http"),
	}
}

func (c *HTTPClient) Research(ctx context.Context, req ResearchRequest) (*TextResult, error) {
	var out TextResult
	if err := c.call(ctx, "research", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SynthesizeImage(ctx context.Context, req SynthesizeRequest) (*ImageResult, error) {
	var out ImageResult
	if err := c.call(ctx, "images/generate", req, &out); err != nil {
		return nil, err
	}
	if len(out.Image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrBadResponse)
	}
	return &out, nil
}

func (c *HTTPClient) EditImage(ctx context.Context, req EditRequest) (*ImageResult, error) {
	var out ImageResult
	if err := c.call(ctx, "images/edit", req, &out); err != nil {
		return nil, err
	}
	if len(out.Image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrBadResponse)
	}
	return &out, nil
}

func (c *HTTPClient) ChatTurn(ctx context.Context, req ChatRequest) (*TextResult, error) {
	var out TextResult
	if err := c.call(ctx, "chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SummarizeTitle(ctx context.Context, req TitleRequest) (*TextResult, error) {
	var out TextResult
	if err := c.call(ctx, "chat/title", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) call(ctx context.Context, operation string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/"+operation, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(payload, &eb)
		c.log.Warn("gateway call failed",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("message", eb.Error.Message),
		)
		return statusError(resp.StatusCode, eb.Error.Message)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func statusError(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAccessDenied, message)
	case status >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, message)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrBadResponse, status, message)
	}
}
