// Package remote implements vault.RemoteQueue against a PostgREST endpoint
// such as the Supabase REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suinrdeveloper-dev/vault"
)

// HTTPClient implements vault.RemoteQueue over PostgREST.
// It is safe for concurrent use.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	table      string
	columns    columnMap
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPClient creates a client for table at baseURL.
func NewHTTPClient(baseURL, apiKey, table string, columns vault.RemoteColumns) *HTTPClient {
	if table == "" {
		table = vault.DefaultTable
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		table:   table,
		columns: columnMap(columns.WithDefaults()),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: zerolog.Nop(),
	}
}

// FromConfig creates a client from a vault configuration.
func FromConfig(cfg vault.Config) *HTTPClient {
	c := NewHTTPClient(cfg.RemoteURL, cfg.APIKey, cfg.Table, cfg.Columns)
	if cfg.HTTPTimeout > 0 {
		c.httpClient.Timeout = cfg.HTTPTimeout
	}
	return c
}

// WithHTTPClient sets a custom http.Client (for testing or custom timeouts).
func (c *HTTPClient) WithHTTPClient(client *http.Client) *HTTPClient {
	c.httpClient = client
	return c
}

// WithLogger sets the request logger.
func (c *HTTPClient) WithLogger(l zerolog.Logger) *HTTPClient {
	c.logger = l.With().Str("component", "remote").Logger()
	return c
}

func (c *HTTPClient) tableURL(q url.Values) string {
	u := c.baseURL + "/rest/v1/" + url.PathEscape(c.table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "vault/1.0")
}

func newSyncError(op string, statusCode int, body []byte) *vault.SyncError {
	msg := ""
	if len(body) > 0 && statusCode >= 400 {
		if len(body) > 200 {
			msg = string(body[:200]) + "..."
		} else {
			msg = string(body)
		}
	}
	return vault.NewConnectionError(op, statusCode, fmt.Errorf("HTTP %d: %s", statusCode, msg))
}

func (c *HTTPClient) do(req *http.Request, op string) (*http.Response, error) {
	c.setHeaders(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, vault.NewConnectionError(op, 0, err)
	}
	c.logger.Debug().
		Str("op", op).
		Str("method", req.Method).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("remote request")
	return resp, nil
}

// FetchPending returns every row currently in the queue table. Rows are
// returned in server order, which carries no meaning.
func (c *HTTPClient) FetchPending(ctx context.Context) ([]vault.RemoteRecord, error) {
	const op = "fetch_pending"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(url.Values{"select": {"*"}}), nil)
	if err != nil {
		return nil, vault.NewConnectionError(op, 0, err)
	}

	resp, err := c.do(req, op)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newSyncError(op, resp.StatusCode, body)
	}

	rows, err := decodeRows(resp.Body)
	if err != nil {
		return nil, vault.NewConnectionError(op, resp.StatusCode, fmt.Errorf("decode rows: %w", err))
	}

	records := make([]vault.RemoteRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, c.columns.toRecord(row))
	}
	return records, nil
}

// DeleteByID removes the row whose id column equals id. It returns
// vault.ErrNotFound when no row matched. A 404 means the table itself is
// missing and is reported as a connection error.
func (c *HTTPClient) DeleteByID(ctx context.Context, id string) error {
	const op = "delete_by_id"

	q := url.Values{}
	q.Set(c.columns.ID, "eq."+id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.tableURL(q), nil)
	if err != nil {
		return vault.NewConnectionError(op, 0, err)
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.do(req, op)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return newSyncError(op, resp.StatusCode, body)
	}

	rows, err := decodeRows(resp.Body)
	if err != nil {
		return vault.NewConnectionError(op, resp.StatusCode, fmt.Errorf("decode rows: %w", err))
	}
	if len(rows) == 0 {
		return fmt.Errorf("delete %s: %w", id, vault.ErrNotFound)
	}
	return nil
}

// Push appends r to the queue table, acting as a producer. An empty ID is
// replaced by a new UUID and an empty CreatedAt by the current time. The
// stored record is returned.
func (c *HTTPClient) Push(ctx context.Context, r vault.RemoteRecord) (vault.RemoteRecord, error) {
	const op = "push"

	r = fillEvent(r)
	body, err := json.Marshal(c.columns.toRow(r))
	if err != nil {
		return r, vault.NewConnectionError(op, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(nil), bytes.NewReader(body))
	if err != nil {
		return r, vault.NewConnectionError(op, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.do(req, op)
	if err != nil {
		return r, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return r, newSyncError(op, resp.StatusCode, respBody)
	}
	return r, nil
}

// Ping checks that the table is reachable with the configured credentials.
func (c *HTTPClient) Ping(ctx context.Context) error {
	const op = "ping"

	q := url.Values{}
	q.Set("select", c.columns.ID)
	q.Set("limit", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(q), nil)
	if err != nil {
		return vault.NewConnectionError(op, 0, err)
	}

	resp, err := c.do(req, op)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return newSyncError(op, resp.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
