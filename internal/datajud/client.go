package datajud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/tribuna/internal/apperr"
	"github.com/starford/tribuna/internal/cnj"
)

// DefaultBaseURL is the public Datajud endpoint.
const DefaultBaseURL = "https://api-publica.datajud.cnj.jus.br"

const maxResponseBytes = 16 << 20

// Fetcher looks up a process by CNJ number.
type Fetcher interface {
	Lookup(ctx context.Context, number string) (*Process, error)
}

// Client queries Datajud over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Client. A zero timeout means 30s.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

var _ Fetcher = (*Client)(nil)

// Endpoint returns the _search URL for the tribunal that issued number.
func (c *Client) Endpoint(number string) (string, error) {
	d := cnj.Normalize(number)
	if len(d) != cnj.Length {
		return "", fmt.Errorf("datajud: number %q: %w", number, apperr.ErrInvalidInput)
	}
	desc := cnj.ResolveTribunal(d)
	if desc.Alias == "" {
		return "", fmt.Errorf("datajud: tribunal %s not published on Datajud: %w", desc.Abbreviation, apperr.ErrInvalidInput)
	}
	return c.baseURL + "/api_publica_" + desc.Alias + "/_search", nil
}

// Lookup fetches the process and its movements.
func (c *Client) Lookup(ctx context.Context, number string) (*Process, error) {
	endpoint, err := c.Endpoint(number)
	if err != nil {
		return nil, err
	}
	body, _ := json.Marshal(map[string]any{
		"query": map[string]any{
			"match": map[string]string{"numeroProcesso": cnj.Normalize(number)},
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("datajud: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "APIKey "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datajud: request: %w: %w", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("datajud: read body: %w: %w", apperr.ErrUpstream, err)
	}
	c.logger.Debug("datajud: lookup",
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("datajud: status %d: %w", resp.StatusCode, apperr.ErrUpstream)
	}

	return Decode(payload)
}
