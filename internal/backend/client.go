/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

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

	"shaperounder/internal/vector"
)

// Client is a minimal HTTP client for the path API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SetTimeout overrides the request timeout; d <= 0 keeps the current one.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.client.Timeout = d
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("server: %d %s", e.Status, e.Message) }

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// RequestToken asks the server for a bearer token and stores it on the client.
func (c *Client) RequestToken(ctx context.Context, subject string) (TokenResponse, error) {
	var tr TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", map[string]any{"subject": subject}, &tr); err != nil {
		return tr, err
	}
	c.Token = tr.Token
	return tr, nil
}

// ListPaths returns every stored path with its roundability.
func (c *Client) ListPaths(ctx context.Context) (PathList, error) {
	var list PathList
	err := c.doJSON(ctx, http.MethodGet, "/api/paths", nil, &list)
	return list, err
}

// GetPath fetches one path.
func (c *Client) GetPath(ctx context.Context, name string) (vector.Path, error) {
	var doc PathDoc
	if err := c.doJSON(ctx, http.MethodGet, "/api/paths/"+url.PathEscape(name), nil, &doc); err != nil {
		return vector.Path{}, err
	}
	subs, err := vector.FromRecords(doc.SubPaths)
	if err != nil {
		return vector.Path{}, err
	}
	return vector.Path{Name: doc.Name, SubPaths: subs}, nil
}

// Round rounds the named path on the server.
func (c *Client) Round(ctx context.Context, name string, req RoundRequest) (RoundResponse, error) {
	var resp RoundResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/paths/"+url.PathEscape(name)+"/round", req, &resp)
	return resp, err
}

// Restore rebuilds the named path from the server's snapshot journal.
func (c *Client) Restore(ctx context.Context, name string) (RoundResponse, error) {
	var resp RoundResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/paths/"+url.PathEscape(name)+"/restore", nil, &resp)
	return resp, err
}
