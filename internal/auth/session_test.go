package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "sheets_append/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("assertion") == "" {
			http.Error(w, "missing assertion", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeJSONKey(t *testing.T, tokenURL string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "cabin",
		"private_key_id": "k1",
		"private_key":    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		"client_email":   "robot@cabin.iam.gserviceaccount.com",
		"client_id":      "1",
		"token_uri":      tokenURL,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, body, 0o600))
	return path
}

func TestAuthenticateWithJSONKey(t *testing.T) {
	srv := tokenServer(t, http.StatusOK)
	path := writeJSONKey(t, srv.URL)

	session, err := Authenticate(context.Background(), "robot@cabin.iam.gserviceaccount.com", path, []string{"scope"})
	require.NoError(t, err)
	assert.Equal(t, "robot@cabin.iam.gserviceaccount.com", session.AccountID)

	tok, err := session.TokenSource.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok.AccessToken)
	assert.NotNil(t, session.ClientOption())
}

func TestAuthenticateWithP12Key(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"p12-tok","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	session, err := Provider{TokenURL: srv.URL}.Authenticate(context.Background(),
		"robot@cabin.iam.gserviceaccount.com", filepath.Join("testdata", "key.p12"), []string{"scope-a", "scope-b"})
	require.NoError(t, err)
	assert.Equal(t, "robot@cabin.iam.gserviceaccount.com", session.AccountID)

	tok, err := session.TokenSource.Token()
	require.NoError(t, err)
	assert.Equal(t, "p12-tok", tok.AccessToken)

	require.NotNil(t, form)
	assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", form.Get("grant_type"))

	parts := strings.Split(form.Get("assertion"), ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims struct {
		Iss   string `json:"iss"`
		Aud   string `json:"aud"`
		Scope string `json:"scope"`
	}
	require.NoError(t, json.Unmarshal(payload, &claims))
	assert.Equal(t, "robot@cabin.iam.gserviceaccount.com", claims.Iss)
	assert.Equal(t, srv.URL, claims.Aud)
	assert.Equal(t, "scope-a scope-b", claims.Scope)
}

func TestAuthenticateRejectedToken(t *testing.T) {
	srv := tokenServer(t, http.StatusUnauthorized)
	path := writeJSONKey(t, srv.URL)

	_, err := Authenticate(context.Background(), "", path, []string{"scope"})
	require.Error(t, err)
	assert.Equal(t, apperrors.AuthError, apperrors.KindOf(err))
}

func TestAuthenticateMissingKey(t *testing.T) {
	_, err := Authenticate(context.Background(), "robot", filepath.Join(t.TempDir(), "nope.p12"), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.AuthError, apperrors.KindOf(err))
}

func TestAuthenticateBadP12(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.p12")
	require.NoError(t, os.WriteFile(path, []byte("not a pkcs12 file"), 0o600))

	_, err := Provider{TokenURL: "http://127.0.0.1:0"}.Authenticate(context.Background(), "robot", path, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.AuthError, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "PKCS#12")
}

func TestAuthenticateP12NeedsAccountID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.p12")
	require.NoError(t, os.WriteFile(path, []byte("irrelevant"), 0o600))

	_, err := Authenticate(context.Background(), "", path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account id is required")
}
