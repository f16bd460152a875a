package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultGatewayTimeout = 90 * time.Second
	maxResponseBytes      = 4 << 20
	systemPrompt          = "You convert meeting transcripts into strict JSON. You never answer with anything but JSON."
)

// GatewayConfig points at an OpenAI-compatible chat completions endpoint.
type GatewayConfig struct {
	URL       string
	APIKey    string
	Model     string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
}

// Gateway is the production Oracle.
type Gateway struct {
	url     string
	apiKey  string
	model   string
	http    *http.Client
	limiter *rate.Limiter
	log     *logrus.Entry
}

var _ Oracle = (*Gateway)(nil)

func NewGateway(cfg GatewayConfig, log *logrus.Entry) (*Gateway, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("llm gateway not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Gateway{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// chatResponse.Choices is nil when the body is not a chat completion envelope.
type chatResponse struct {
	Choices *[]chatChoice `json:"choices"`
}

// Generate posts the prompt and returns choices[0].message.content. Bodies
// that are not a chat completion envelope are returned verbatim; an envelope
// without choices is a *MalformedResponseError.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return "", ctx.Err()
		}
		return "", unavailable(FailureTimeout, 0, fmt.Errorf("rate limiter: %w", err))
	}

	data, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.0,
	})
	if err != nil {
		return "", fmt.Errorf("marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("new llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", transportError(ctx, fmt.Errorf("read llm response: %w", err))
	}
	g.log.WithField("http_status", resp.StatusCode).Debug("llm gateway responded")

	if err := statusError(resp, body); err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Choices == nil {
		return string(body), nil
	}
	if len(*parsed.Choices) == 0 {
		return "", &MalformedResponseError{Chunk: -1, Reason: "no choices"}
	}
	return (*parsed.Choices)[0].Message.Content, nil
}

func statusError(resp *http.Response, body []byte) error {
	code := resp.StatusCode
	if code < http.StatusBadRequest {
		return nil
	}
	detail := fmt.Errorf("llm gateway %s: %s", resp.Status, snippet(body))
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return unavailable(FailureAuth, code, detail)
	case code == http.StatusTooManyRequests:
		e := unavailable(FailureRateLimit, code, detail)
		e.RetryAfter = retryAfter(resp.Header.Get("Retry-After"))
		return e
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return unavailable(FailureTimeout, code, detail)
	case code >= http.StatusInternalServerError:
		return unavailable(FailureNetwork, code, detail)
	default:
		return unavailable(FailureRejected, code, detail)
	}
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return unavailable(FailureTimeout, 0, err)
	}
	return unavailable(FailureNetwork, 0, err)
}

func retryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}
