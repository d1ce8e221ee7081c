// Package voice talks to the advisory backend's REST endpoints that set up
// realtime voice sessions.
package voice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/creastat/krishi"
)

const (
	sessionPath = "/api/v1/voice/realtime/session"
	voicesPath  = "/api/v1/voice/available-voices"
	healthPath  = "/health"

	DefaultVoice   = "alloy"
	DefaultTimeout = 15 * time.Second
)

// SessionRequest asks the backend for a realtime voice session.
type SessionRequest struct {
	Voice         string         `json:"voice"`
	Language      string         `json:"language"`
	UserID        *string        `json:"user_id"`
	FarmerContext map[string]any `json:"farmer_context,omitempty"`
}

// RealtimeSession is the backend's answer to SessionRequest.
type RealtimeSession struct {
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
	Voice     string `json:"voice"`
	Language  string `json:"language"`
	Status    string `json:"status"`
}

// Voices lists the voices the backend can speak with.
type Voices struct {
	Voices       []string `json:"voices"`
	DefaultVoice string   `json:"default_voice"`
	APIProvider  string   `json:"api_provider"`
}

// Health is the backend health document.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Message string `json:"message"`
}

// Healthy reports whether the backend declared itself healthy.
func (h Health) Healthy() bool { return h.Status == "healthy" }

type apiError struct {
	Detail string `json:"detail"`
}

// Config configures Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a REST client for the voice endpoints.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// New creates a Client. BaseURL is the backend HTTP root, e.g. http://localhost:8000.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: voice base URL is required", krishi.ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{http: rc, logger: logger.Named("voice")}, nil
}

// CreateSession requests a realtime voice session. Empty voice and language
// default to alloy and Hindi.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*RealtimeSession, error) {
	if req.Voice == "" {
		req.Voice = DefaultVoice
	}
	if req.Language == "" {
		req.Language = krishi.DefaultLanguage
	}

	var out RealtimeSession
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiError{}).
		Post(sessionPath)
	if err := check(resp, err, "create voice session"); err != nil {
		return nil, err
	}

	c.logger.Info("voice session created",
		zap.String("session_id", out.SessionID),
		zap.String("model", out.Model),
		zap.String("language", out.Language))
	return &out, nil
}

// AvailableVoices lists the backend's voices.
func (c *Client) AvailableVoices(ctx context.Context) (*Voices, error) {
	var out Voices
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiError{}).
		Get(voicesPath)
	if err := check(resp, err, "list voices"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches the backend health document.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(healthPath)
	if err := check(resp, err, "health check"); err != nil {
		return nil, err
	}
	return &out, nil
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if resp.IsError() {
		detail := resp.Status()
		if e, ok := resp.Error().(*apiError); ok && e.Detail != "" {
			detail = e.Detail
		}
		return fmt.Errorf("failed to %s: %d %s", op, resp.StatusCode(), detail)
	}
	return nil
}
