// Package auth turns a service account id and private key file into an
// authenticated session for the Google APIs.
package auth

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "sheets_append/internal/errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pkcs12"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
)

// P12Password is the fixed password Google uses for downloaded .p12 keys.
const P12Password = "notasecret"

// Session is an authenticated capability. Its token source has already
// produced a valid token.
type Session struct {
	AccountID   string
	TokenSource oauth2.TokenSource
}

// ClientOption returns the option that authorizes API clients with s.
func (s *Session) ClientOption() option.ClientOption {
	return option.WithTokenSource(s.TokenSource)
}

// Provider builds sessions. TokenURL overrides the Google token endpoint for
// .p12 keys; JSON keys carry their own.
type Provider struct {
	TokenURL string
}

// Authenticate reads the key at keyPath, signs a JWT for accountID and
// exchanges it for an access token. Any failure is an AuthError.
func (p Provider) Authenticate(ctx context.Context, accountID, keyPath string, scopes []string) (*Session, error) {
	log.Debug().Str("account", accountID).Str("key", keyPath).Msg("Authenticating service account")

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.AuthError, "failed to read private key", err)
	}

	var conf *jwt.Config
	if strings.EqualFold(filepath.Ext(keyPath), ".json") {
		conf, err = jsonConfig(data, accountID, scopes)
	} else {
		conf, err = p.p12Config(data, accountID, scopes)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.AuthError, fmt.Sprintf("failed to load key %s", keyPath), err)
	}

	ts := conf.TokenSource(ctx)
	tok, err := ts.Token()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.AuthError, fmt.Sprintf("failed to obtain token for %s", conf.Email), err)
	}

	log.Info().Str("account", conf.Email).Time("expiry", tok.Expiry).Msg("Authenticated")
	return &Session{AccountID: conf.Email, TokenSource: ts}, nil
}

// Authenticate uses the default Provider.
func Authenticate(ctx context.Context, accountID, keyPath string, scopes []string) (*Session, error) {
	return Provider{}.Authenticate(ctx, accountID, keyPath, scopes)
}

func jsonConfig(data []byte, accountID string, scopes []string) (*jwt.Config, error) {
	conf, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("could not parse credentials: %w", err)
	}
	if accountID != "" && accountID != conf.Email {
		log.Warn().
			Str("account", accountID).
			Str("key_account", conf.Email).
			Msg("Service account id differs from the key file; using the key file's account")
	}
	return conf, nil
}

func (p Provider) p12Config(data []byte, accountID string, scopes []string) (*jwt.Config, error) {
	if accountID == "" {
		return nil, fmt.Errorf("a service account id is required for .p12 keys")
	}
	key, _, err := pkcs12.Decode(data, P12Password)
	if err != nil {
		return nil, fmt.Errorf("could not decode PKCS#12 key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("could not encode private key: %w", err)
	}

	tokenURL := p.TokenURL
	if tokenURL == "" {
		tokenURL = google.JWTTokenURL
	}
	return &jwt.Config{
		Email:      accountID,
		PrivateKey: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}),
		Scopes:     scopes,
		TokenURL:   tokenURL,
	}, nil
}
