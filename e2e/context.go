// Package e2e drives the fully wired HTTP API through godog scenarios.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kycgate/internal/app"
	"kycgate/internal/platform/config"
	"kycgate/pkg/platform/middleware/admin"
)

const adminToken = "e2e-admin-token"

// TestContext holds one scenario's server and the last response it returned.
type TestContext struct {
	server  *httptest.Server
	app     *app.App
	client  *http.Client
	status  int
	body    []byte
	token   string
	userID  string
	userIDs map[string]string
}

// Start boots a fresh in-memory instance of the service and clears any state
// left by the previous scenario.
func (tc *TestContext) Start(ctx context.Context) error {
	cfg := &config.Config{
		Env:       "test",
		Server:    config.ServerConfig{RequestTimeout: 5 * time.Second, CORSOrigins: []string{"*"}},
		Auth:      config.AuthConfig{JWTIssuer: "kycgate", TokenTTL: time.Hour, BcryptCost: 4},
		Admin:     config.AdminConfig{Token: adminToken},
		Storage:   config.StorageConfig{Backend: config.BackendMemory},
		Documents: config.DocumentsConfig{Backend: config.DocumentsMemory, MaxBytes: 1 << 16},
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := app.New(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	*tc = TestContext{
		server:  httptest.NewServer(a.Handler()),
		app:     a,
		client:  &http.Client{Timeout: 10 * time.Second},
		userIDs: make(map[string]string),
	}
	return nil
}

// Close stops the server started by Start. It is safe to call twice.
func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
		tc.server = nil
	}
	if tc.app != nil {
		tc.app.Close()
		tc.app = nil
	}
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, tc.authHeaders())
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) AdminPUT(path string, body any) error {
	return tc.do(http.MethodPut, path, body, tc.AdminHeaders())
}

func (tc *TestContext) AdminGET(path string) error {
	return tc.do(http.MethodGet, path, nil, tc.AdminHeaders())
}

// Upload posts a multipart document as the current user.
func (tc *TestContext) Upload(path, filename string, content []byte, fields map[string]string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, tc.server.URL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range tc.authHeaders() {
		req.Header.Set(k, v)
	}
	return tc.send(req)
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.server.URL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.send(req)
}

func (tc *TestContext) send(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.status = resp.StatusCode
	tc.body = body
	return nil
}

func (tc *TestContext) authHeaders() map[string]string {
	if tc.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + tc.token}
}

func (tc *TestContext) AdminHeaders() map[string]string {
	return map[string]string{admin.HeaderAdminToken: adminToken}
}

func (tc *TestContext) AuthHeaders() map[string]string {
	return tc.authHeaders()
}

func (tc *TestContext) StatusCode() int {
	return tc.status
}

// GetResponseField resolves a dotted path such as "user.id" in the last JSON body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.body, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w (body %q)", err, tc.body)
	}
	cur := doc
	for _, key := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, key)
		}
		cur, ok = obj[key]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response %s", field, tc.body)
		}
	}
	return cur, nil
}

func (tc *TestContext) SetAccessToken(token string) { tc.token = token }
func (tc *TestContext) SetUserID(userID string)     { tc.userID = userID }
func (tc *TestContext) GetUserID() string           { return tc.userID }

// RememberUser records the ID registered for email.
func (tc *TestContext) RememberUser(email, userID string) { tc.userIDs[email] = userID }
func (tc *TestContext) UserIDFor(email string) string     { return tc.userIDs[email] }
