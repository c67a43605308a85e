package baas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/localfix/internal/apperr"
)

func sign(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerifierSubject(t *testing.T) {
	v := NewVerifier("secret")

	good := sign(t, "secret", jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	sub, err := v.Subject(good)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	expired := sign(t, "secret", jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))})
	_, err = v.Subject(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged := sign(t, "other", jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	_, err = v.Subject(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub := sign(t, "secret", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	_, err = v.Subject(noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Subject("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "grace@example.com", body["email"])
		assert.Equal(t, "worker", body["data"].(map[string]any)["role"])

		_, _ = w.Write([]byte(`{"id":"u-1","email":"grace@example.com"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon", "service")
	res, err := c.SignUp(context.Background(), "grace@example.com", "pw123456", map[string]any{"role": "worker"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", res.User.ID)
}

func TestSignUpSurfacesAuthMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"msg":"User already registered"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "anon", "service").SignUp(context.Background(), "a@b.c", "pw", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "User already registered")
}

func TestVerifyOTPUsesServiceKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/verify", r.URL.Path)
		assert.Equal(t, "service", r.Header.Get("apikey"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["token"] != "123456" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"msg":"Token has expired or is invalid"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon", "service")
	require.NoError(t, c.VerifyOTP(context.Background(), "+254700000001", "123456"))

	err := c.VerifyOTP(context.Background(), "+254700000001", "000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Token has expired or is invalid")
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "anon", "service").VerifyOTP(context.Background(), "p", "t")
	assert.True(t, apperr.IsTransport(err))
}
