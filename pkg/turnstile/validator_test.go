package turnstile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyDisabledWithoutSecret(t *testing.T) {
	v := NewVerifier("", "http://127.0.0.1:1")
	assert.False(t, v.Enabled())

	res, err := v.Verify(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestVerifyMissingToken(t *testing.T) {
	v := NewVerifier("secret", "http://127.0.0.1:1")
	res, err := v.Verify(context.Background(), "", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"missing-input-response"}, res.ErrorCodes)
}

func TestVerifyPostsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("secret"))
		assert.Equal(t, "tok", r.PostForm.Get("response"))
		assert.Equal(t, "1.2.3.4", r.PostForm.Get("remoteip"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"hostname":"app.test"}`))
	}))
	defer srv.Close()

	res, err := NewVerifier("secret", srv.URL).Verify(context.Background(), "tok", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "app.test", res.Hostname)
}

func TestVerifyUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewVerifier("secret", srv.URL).Verify(context.Background(), "tok", "")
	assert.Error(t, err)
}
