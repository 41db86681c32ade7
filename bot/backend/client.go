package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	coreconfig "github.com/MLokatsiun/tg-bot-volunteer/core/config"
	"github.com/MLokatsiun/tg-bot-volunteer/core/logger"
)

// Client talks to the assistance platform REST API. It is safe for
// concurrent use; per-call deadlines come from the configured timeout.
type Client struct {
	baseURL        string
	clientName     string
	clientPassword string
	http           *http.Client
	timeout        time.Duration
}

// New builds a gateway client from config. The HTTP transport mirrors the
// Telegram one: connection pooling with conservative per-phase timeouts.
func New(cfg coreconfig.BackendConfig) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		clientName:     cfg.ClientName,
		clientPassword: cfg.ClientPassword,
		timeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
		http:           &http.Client{Transport: transport},
	}
}

// serviceCreds returns the client credential fields the backend expects in
// the bodies of unauthenticated endpoints.
func (c *Client) serviceCreds() (name, password string) {
	return c.clientName, c.clientPassword
}

// do sends one request and decodes a 2xx JSON body into out (out may be nil
// for empty responses). token is the bearer token for protected endpoints,
// "" for the credential-in-body ones. Non-2xx responses become taxonomy
// errors; transport failures become KindUnavailable.
func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var payload io.Reader
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: %s: encode request: %w", op, err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(raw)), nil
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn(ctx, "api", "request.failed",
			slog.String("op", op),
			slog.String("backend", method+" "+path),
			slog.String("err", err.Error()),
		)
		return transportErr(op, err)
	}
	defer resp.Body.Close()

	logger.Debug(ctx, "api", "request.done",
		slog.String("op", op),
		slog.String("backend", method+" "+path),
		slog.Int("http_code", resp.StatusCode),
		slog.Duration("duration", logger.Took(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 500 {
			logger.Error(ctx, "api", "request.server_error",
				slog.String("op", op),
				slog.Int("http_code", resp.StatusCode),
			)
		}
		return classify(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindUnavailable, Op: op, cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
