package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/config"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/util"
)

var (
	ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY")
	ErrEmptyResponse = errors.New("empty completion response")
	ErrBadPayload    = errors.New("completion did not contain a usable JSON object")
)

const systemPrompt = `You read silent auction item descriptions and separate boilerplate from the pitch.
Respond with a JSON object containing exactly these string fields:
  "expiration_notice": any expiration or valid-until language, kept verbatim, or ""
  "notes": redemption logistics, certificate details and restrictions, or ""
  "description": the remaining description of the item itself
Never invent content and never reword what you keep.`

// Client calls an OpenAI-compatible chat completions endpoint to pull
// expiration notices and redemption notes out of donated item descriptions.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg config.Config) *Client {
	rps := cfg.OpenAIRateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.OpenAITimeoutMs) * time.Millisecond},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Extract asks the completion service to split one description. The
// response may wrap its JSON in prose or code fences; both are tolerated.
func (c *Client) Extract(ctx context.Context, description string) (internal.Extraction, error) {
	content, err := c.complete(ctx, description)
	if err != nil {
		return internal.Extraction{}, err
	}

	var ex internal.Extraction
	if err := util.DecodeLooseJSON(content, &ex); err != nil {
		return internal.Extraction{}, fmt.Errorf("%w: %.120q", ErrBadPayload, content)
	}
	return ex, nil
}

func (c *Client) complete(ctx context.Context, userContent string) (string, error) {
	if strings.TrimSpace(c.cfg.OpenAIAPIKey) == "" {
		return "", ErrMissingAPIKey
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.OpenAIModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.cfg.OpenAIBaseURL, "/") + "/chat/completions"

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("completion status %d", resp.StatusCode)
				continue
			}
			return "", fmt.Errorf("completion api error: status=%d body=%.200s", resp.StatusCode, string(body))
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("decode completion response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("completion api error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		content := strings.TrimSpace(parsed.Choices[0].Message.Content)
		if content == "" {
			return "", ErrEmptyResponse
		}
		return content, nil
	}

	if lastErr == nil {
		lastErr = errors.New("completion request failed")
	}
	return "", lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
