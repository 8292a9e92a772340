package drive

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestGenerateStateIsUnique(t *testing.T) {
	a, err := generateState()
	require.NoError(t, err)

	b, err := generateState()
	require.NoError(t, err)

	assert.Len(t, a, stateTokenBytes*2) // hex encoding
	assert.NotEqual(t, a, b)
}

func callbackRequest(t *testing.T, query url.Values) *http.Request {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, "/callback?"+query.Encode(), http.NoBody)
	require.NoError(t, err)

	return req
}

func TestHandleOAuthCallbackSuccess(t *testing.T) {
	resultCh := make(chan callbackResult, 1)
	rec := httptest.NewRecorder()

	q := url.Values{}
	q.Set("state", "expected-state")
	q.Set("code", "auth-code-1")

	handleOAuthCallback(rec, callbackRequest(t, q), "expected-state", resultCh)

	result := <-resultCh
	require.NoError(t, result.err)
	assert.Equal(t, "auth-code-1", result.code)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleOAuthCallbackStateMismatch(t *testing.T) {
	resultCh := make(chan callbackResult, 1)
	rec := httptest.NewRecorder()

	q := url.Values{}
	q.Set("state", "attacker-state")
	q.Set("code", "auth-code-1")

	handleOAuthCallback(rec, callbackRequest(t, q), "expected-state", resultCh)

	result := <-resultCh
	require.Error(t, result.err)
	assert.Contains(t, result.err.Error(), "state mismatch")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOAuthCallbackProviderError(t *testing.T) {
	resultCh := make(chan callbackResult, 1)
	rec := httptest.NewRecorder()

	q := url.Values{}
	q.Set("state", "expected-state")
	q.Set("error", "access_denied")
	q.Set("error_description", "user declined")

	handleOAuthCallback(rec, callbackRequest(t, q), "expected-state", resultCh)

	result := <-resultCh
	require.Error(t, result.err)
	assert.Contains(t, result.err.Error(), "access_denied")
}

func TestHandleOAuthCallbackMissingCode(t *testing.T) {
	resultCh := make(chan callbackResult, 1)
	rec := httptest.NewRecorder()

	q := url.Values{}
	q.Set("state", "expected-state")

	handleOAuthCallback(rec, callbackRequest(t, q), "expected-state", resultCh)

	result := <-resultCh
	require.Error(t, result.err)
	assert.Contains(t, result.err.Error(), "missing authorization code")
}

func TestRefreshExchangesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "stored-rt", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "fresh-at", "token_type": "Bearer", "expires_in": 3600}`)
	}))
	t.Cleanup(srv.Close)

	cfg := &oauth2.Config{
		ClientID: "cid",
		Endpoint: oauth2.Endpoint{TokenURL: srv.URL},
	}

	tok, err := Refresh(context.Background(), cfg, "stored-rt")
	require.NoError(t, err)

	assert.Equal(t, "fresh-at", tok.AccessToken)
	// The library preserves the refresh token when the provider omits it.
	assert.Equal(t, "stored-rt", tok.RefreshToken)
}

func TestRefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_grant"}`)
	}))
	t.Cleanup(srv.Close)

	cfg := &oauth2.Config{
		ClientID: "cid",
		Endpoint: oauth2.Endpoint{TokenURL: srv.URL},
	}

	_, err := Refresh(context.Background(), cfg, "revoked-rt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh token exchange failed")
}
