// Package e2e drives a running cliquey server over HTTP with godog scenarios.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// TestContext carries HTTP state between the steps of one scenario.
type TestContext struct {
	BaseURL       string
	AdminLogin    string
	AdminPassword string

	client      *http.Client
	lastStatus  int
	lastBody    []byte
	accessToken string
	values      map[string]string
}

func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:       envOr("E2E_BASE_URL", "http://localhost:8080"),
		AdminLogin:    envOr("E2E_ADMIN_LOGIN", "admin"),
		AdminPassword: envOr("E2E_ADMIN_PASSWORD", "admin-password"),
		client:        &http.Client{Timeout: 10 * time.Second},
		values:        make(map[string]string),
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.accessToken = ""
	tc.values = make(map[string]string)
}

func (tc *TestContext) POST(path string, body any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	return tc.do(http.MethodPost, path, reader)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) do(method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, tc.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) LastStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) LastBody() []byte {
	return tc.lastBody
}

// GetResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %s", field, tc.lastBody)
	}
	return v, nil
}

func (tc *TestContext) GetAccessToken() string {
	return tc.accessToken
}

func (tc *TestContext) SetAccessToken(token string) {
	tc.accessToken = token
}

// Remember stores a value under name for later steps.
func (tc *TestContext) Remember(name, value string) {
	tc.values[name] = value
}

func (tc *TestContext) Recall(name string) (string, error) {
	v, ok := tc.values[name]
	if !ok {
		return "", fmt.Errorf("nothing remembered as %q", name)
	}
	return v, nil
}

func (tc *TestContext) Admin() (string, string) {
	return tc.AdminLogin, tc.AdminPassword
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
