// Package api is the HTTP client for the task server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskboard-cli/internal/debuglog"
	"taskboard-cli/internal/session"

	"github.com/google/uuid"
)

const maxErrorBody = 64 << 10

type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client (Timeout is then ignored).
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client attaches the session's bearer token to every request and ends the
// session on any 401.
type Client struct {
	base string
	http *http.Client
	sess *session.Session
	log  *log.Logger
}

func New(sess *session.Session, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		base: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		http: hc,
		sess: sess,
		log:  debuglog.Or(opts.Logger),
	}
}

func (c *Client) BaseURL() string { return c.base }

func (c *Client) Session() *session.Session { return c.sess }

type request struct {
	method string
	path   string
	body   any
	form   url.Values
	// anonymous requests carry no token and treat 401 as a plain *Error.
	anonymous bool
	// token, when set, is sent instead of the session's and a 401 leaves the
	// session alone.
	token string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case r.form != nil:
		body = strings.NewReader(r.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.body != nil:
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.base+r.path, body)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	var epoch uint64
	bySession := !r.anonymous && r.token == "" && c.sess != nil
	switch {
	case r.token != "":
		req.Header.Set("Authorization", "Bearer "+r.token)
	case bySession:
		epoch = c.sess.Epoch()
		if tok := c.sess.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.log.Printf("http %s %s id=%s err=%v", r.method, r.path, reqID, err)
		return &NetworkError{Op: r.method + " " + r.path, Err: err}
	}
	defer resp.Body.Close()
	c.log.Printf("http %s %s id=%s status=%d dur=%s", r.method, r.path, reqID, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode == http.StatusUnauthorized && !r.anonymous {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		// Only the session that sent the request may be ended by its answer.
		if bySession && c.sess.Epoch() == epoch {
			c.sess.End(context.WithoutCancel(ctx), session.ReasonUnauthorized)
		}
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{Status: resp.StatusCode, Detail: parseDetail(b)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path}, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body}, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPut, path: path, body: body}, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: path}, nil)
}
