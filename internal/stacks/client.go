package stacks

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
)

// ClientConfig holds connection parameters for the call-read API.
type ClientConfig struct {
	// APIURL is the node API base, e.g. "https://api.testnet.hiro.so".
	APIURL string

	// APIKey is an optional key sent as x-api-key for higher rate limits.
	APIKey string

	// Sender is the principal used as the read-only call sender. Read-only
	// calls do not sign anything, but the API requires a sender address.
	Sender string

	// Timeout bounds each call-read request.
	Timeout time.Duration
}

// Client issues read-only contract calls against a Stacks node API.
// It is stateless and safe for concurrent use.
type Client struct {
	apiURL     string
	apiKey     string
	sender     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a read-only call client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		sender:     cfg.Sender,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// callReadRequest is the call-read API request envelope.
type callReadRequest struct {
	Sender    string   `json:"sender"`
	Arguments []string `json:"arguments"`
}

// callReadResponse is the call-read API response envelope. On success Result
// holds the hex-encoded Clarity return value; on failure Cause describes the
// chain-side error.
type callReadResponse struct {
	Okay   bool   `json:"okay"`
	Result string `json:"result"`
	Cause  string `json:"cause"`
}

// CallReadOnly invokes a read-only contract function and returns its decoded
// Clarity value. Arguments must already be hex-encoded (see EncodeUint).
func (c *Client) CallReadOnly(ctx context.Context, address, contract, function string, args ...string) (Value, error) {
	url := fmt.Sprintf("%s/v2/contracts/call-read/%s/%s/%s", c.apiURL, address, contract, function)

	if args == nil {
		args = []string{}
	}
	body, err := json.Marshal(callReadRequest{Sender: c.sender, Arguments: args})
	if err != nil {
		return Value{}, fmt.Errorf("stacks: marshal call-read request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Value{}, fmt.Errorf("stacks: build call-read request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Value{}, fmt.Errorf("stacks: call %s.%s: %w", contract, function, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Value{}, fmt.Errorf("stacks: read call-read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Value{}, fmt.Errorf("stacks: call %s.%s: status %d: %s",
			contract, function, resp.StatusCode, truncate(string(data), 200))
	}

	var envelope callReadResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Value{}, fmt.Errorf("stacks: decode call-read response: %w", err)
	}

	if !envelope.Okay {
		return Value{}, fmt.Errorf("stacks: call %s.%s rejected: %s", contract, function, envelope.Cause)
	}

	v, err := DecodeHex(envelope.Result)
	if err != nil {
		return Value{}, fmt.Errorf("stacks: call %s.%s: %w", contract, function, err)
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
