// Package api is the authenticated HTTP client for the interview
// backend: bearer injection, expiry detection, and a single
// refresh-then-retry per request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gulddaggi/MindStage/log"
)

const refreshPath = "/api/auth/refresh"

// Response is the outcome of one authenticated call, after any refresh
// retry has been applied.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

type Client struct {
	rest   *resty.Client
	tokens *TokenStore
}

func New(baseURL string, timeout time.Duration, tokens *TokenStore) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{rest: rest, tokens: tokens}
}

func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do sends the request with the current access token. When the response
// looks like an expired session it refreshes once and resends once; a
// failed refresh invalidates the stored pair and hands back the
// original response.
func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if !tokenExpired(resp) {
		return resp, nil
	}

	if err := c.refresh(ctx); err != nil {
		log.Warnf("token refresh failed: %v", err)
		c.tokens.Invalidate()
		return resp, nil
	}
	return c.send(ctx, method, path, body)
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*Response, error) {
	req := c.rest.R().SetContext(ctx)
	if at := c.tokens.Access(); at != "" {
		req.SetHeader("Authorization", "Bearer "+at)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return &Response{
		Status: resp.StatusCode(),
		Body:   resp.Body(),
		Header: resp.Header(),
	}, nil
}

// tokenExpired recognizes an expired session: the usual auth statuses,
// or a body mentioning "expired" (some endpoints report expiry inside a
// 200-level envelope).
func tokenExpired(resp *Response) bool {
	switch resp.Status {
	case http.StatusUnauthorized, http.StatusForbidden, 419:
		return true
	}
	return bytes.Contains(bytes.ToLower(resp.Body), []byte("expired"))
}

type refreshBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refresh exchanges the stored refresh token for a new pair. The
// refresh token travels in a cookie; the new pair comes back in the
// JSON body or, failing that, in Set-Cookie headers.
func (c *Client) refresh(ctx context.Context) error {
	rt := c.tokens.Refresh()
	if rt == "" {
		return fmt.Errorf("no refresh token")
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Cookie", "refreshToken="+rt).
		Post(refreshPath)
	if err != nil {
		return fmt.Errorf("refresh request: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("refresh rejected: status %d", resp.StatusCode())
	}

	var parsed refreshBody
	_ = json.Unmarshal(resp.Body(), &parsed)

	access, refresh := parsed.AccessToken, parsed.RefreshToken
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case "accessToken":
			if access == "" {
				access = ck.Value
			}
		case "refreshToken":
			if refresh == "" {
				refresh = ck.Value
			}
		}
	}

	if access == "" {
		return fmt.Errorf("refresh response carried no access token")
	}

	c.tokens.Set(access, refresh)
	log.Info("access token refreshed")
	return nil
}
