// Package opclient talks to the operator endpoints of the ledger API.
package opclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/punchamoorthee/ledgergate/internal/domain"
	"github.com/punchamoorthee/ledgergate/internal/models"
)

const tokenHeader = "X-Ledger-Token"

var (
	ErrUnauthenticated = errors.New("server rejected the token")
	ErrNotFound        = errors.New("pending action not found")
	ErrThrottled       = errors.New("too many failed attempts")
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Tail returns the current ledger tail token; ok is false on an empty ledger.
func (c *Client) Tail(ctx context.Context) (string, bool, error) {
	var out models.TailResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/lastkey", "", nil, &out); err != nil {
		return "", false, err
	}
	return out.Token, !out.Empty, nil
}

func (c *Client) Pending(ctx context.Context, token string) ([]domain.PendingView, error) {
	var out []domain.PendingView
	if err := c.do(ctx, http.MethodGet, "/api/v1/pending", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context, token string) (*domain.Stats, error) {
	var out domain.Stats
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Approve(ctx context.Context, id int64, token string) (*domain.CommittedAction, error) {
	var out models.ApproveResponse
	path := fmt.Sprintf("/api/v1/pending/%d/approve", id)
	if err := c.do(ctx, http.MethodPost, path, "", models.TokenRequest{Token: token}, &out); err != nil {
		return nil, err
	}
	return out.Action, nil
}

func (c *Client) Reject(ctx context.Context, id int64, token string) (*domain.Discarded, error) {
	var out models.DiscardResponse
	path := fmt.Sprintf("/api/v1/pending/%d/reject", id)
	if err := c.do(ctx, http.MethodPost, path, "", models.TokenRequest{Token: token}, &out); err != nil {
		return nil, err
	}
	return out.Discarded, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	u, err := url.Parse(c.baseURL + path)
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
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	}

	var e models.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&e)
	return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
}
