package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"sunny/internal/api"
)

// apiClient talks to the sunnyd HTTP API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(address, token string) (*apiClient, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("no API address configured; set paths.api_bind or pass --api")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return &apiClient{
		base:  strings.TrimRight(address, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *apiClient) Status() (*api.DaemonStatus, error) {
	var status api.DaemonStatus
	if err := c.get("/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *apiClient) ListSessions(statuses []string) ([]api.Session, error) {
	values := url.Values{}
	for _, status := range statuses {
		values.Add("status", status)
	}
	var resp api.SessionListResponse
	if err := c.get("/api/sessions", values, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *apiClient) CreateSession(req api.CreateSessionRequest) (*api.Session, error) {
	var resp api.SessionResponse
	if err := c.post("/api/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

func (c *apiClient) GetSession(id int64) (*api.Session, error) {
	var resp api.SessionResponse
	if err := c.get("/api/sessions/"+strconv.FormatInt(id, 10), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

func (c *apiClient) GetSummary(id int64) (*api.SummaryResponse, error) {
	var resp api.SummaryResponse
	if err := c.get("/api/sessions/"+strconv.FormatInt(id, 10)+"/summary", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) CancelSession(id int64) error {
	return c.post("/api/sessions/"+strconv.FormatInt(id, 10)+"/cancel", nil, nil)
}

func (c *apiClient) SearchMemory(query string, limit int) (*api.MemorySearchResponse, error) {
	values := url.Values{}
	values.Set("q", query)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var resp api.MemorySearchResponse
	if err := c.get("/api/memory", values, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) TestNotify() (*api.NotifyTestResponse, error) {
	var resp api.NotifyTestResponse
	if err := c.post("/api/notify/test", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) get(path string, query url.Values, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) post(path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDialError(err, c.base)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.New(decodeAPIError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("api request failed: %s", resp.Status)
}

func wrapDialError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; start the daemon with `sunnyd`", base)
	}
	return fmt.Errorf("connect to daemon at %s: %w", base, err)
}
