// Package baas talks to the managed backend's auth API and verifies the
// access tokens it issues.
package baas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sudo-init-do/localfix/internal/apperr"
)

type Client struct {
	URL        string
	AnonKey    string
	ServiceKey string
	HTTP       *http.Client
}

func NewClient(url, anonKey, serviceKey string) *Client {
	return &Client{
		URL:        url,
		AnonKey:    anonKey,
		ServiceKey: serviceKey,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
	}
}

// User is the subset of the auth user record LocalFix reads.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type SignUpResult struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token,omitempty"`
}

// SignUp registers an account. metadata is stored as the user's data blob.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (SignUpResult, error) {
	body := map[string]any{"email": email, "password": password, "data": metadata}

	var raw struct {
		SignUpResult
		// Without email confirmation the user object is returned at the top level.
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := c.post(ctx, "/auth/v1/signup", c.AnonKey, body, &raw); err != nil {
		return SignUpResult{}, err
	}
	out := raw.SignUpResult
	if out.User.ID == "" {
		out.User = User{ID: raw.ID, Email: raw.Email}
	}
	if out.User.ID == "" {
		return SignUpResult{}, apperr.Validation("sign up returned no user")
	}
	return out, nil
}

// VerifyOTP checks an SMS one-time code with the service key.
func (c *Client) VerifyOTP(ctx context.Context, phone, token string) error {
	body := map[string]any{"type": "sms", "phone": phone, "token": token}
	return c.post(ctx, "/auth/v1/verify", c.ServiceKey, body, nil)
}

// errorBody covers the message fields the auth API uses across versions.
type errorBody struct {
	Message          string `json:"msg"`
	Message2         string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

func (e errorBody) text() string {
	for _, s := range []string{e.Message, e.Message2, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, path, key string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperr.Validation("encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+path, bytes.NewReader(payload))
	if err != nil {
		return apperr.Transport(err, "build auth request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.Transport(err, "auth service unavailable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Transport(err, "read auth response")
	}

	if resp.StatusCode >= 500 {
		return apperr.Transport(fmt.Errorf("status %d", resp.StatusCode), "auth service error")
	}
	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		msg := eb.text()
		if msg == "" {
			msg = fmt.Sprintf("auth request failed with status %d", resp.StatusCode)
		}
		return apperr.Validation("%s", msg)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Transport(err, "decode auth response")
	}
	return nil
}
