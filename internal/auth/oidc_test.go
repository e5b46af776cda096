package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v3"
	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/auth"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	issuer   = "https://id.footy.test"
	clientID = "footy-web"
)

var now = time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, key *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	jws, err := signer.Sign(payload)
	require.NoError(t, err)

	token, err := jws.CompactSerialize()
	require.NoError(t, err)

	return token
}

func TestAuthenticate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	verifier := auth.NewStaticOIDC(issuer, &oidc.Config{
		ClientID: clientID,
		Now:      func() time.Time { return now },
	}, key.Public())

	user := uuid.New()

	claims := func(overrides map[string]any) map[string]any {
		c := map[string]any{
			"iss": issuer,
			"aud": clientID,
			"sub": user.String(),
			"iat": now.Add(-time.Minute).Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}
		for k, v := range overrides {
			c[k] = v
		}
		return c
	}

	tests := []struct {
		name     string
		token    string
		wantUser uuid.UUID
		wantErr  error
	}{
		{
			name:     "valid token: ok",
			token:    signToken(t, key, claims(nil)),
			wantUser: user,
		},
		{
			name:     "non-uuid subject: stable mapping",
			token:    signToken(t, key, claims(map[string]any{"sub": "google|42"})),
			wantUser: auth.SubjectUserID(issuer, "google|42"),
		},
		{
			name:    "bare user id: unauthenticated",
			token:   user.String(),
			wantErr: domain.ErrUnauthenticated,
		},
		{
			name:    "foreign signing key: unauthenticated",
			token:   signToken(t, otherKey, claims(nil)),
			wantErr: domain.ErrUnauthenticated,
		},
		{
			name:    "other audience: unauthenticated",
			token:   signToken(t, key, claims(map[string]any{"aud": "someone-else"})),
			wantErr: domain.ErrUnauthenticated,
		},
		{
			name:    "other issuer: unauthenticated",
			token:   signToken(t, key, claims(map[string]any{"iss": "https://evil.test"})),
			wantErr: domain.ErrUnauthenticated,
		},
		{
			name:    "expired: token expired",
			token:   signToken(t, key, claims(map[string]any{"exp": now.Add(-time.Minute).Unix()})),
			wantErr: domain.ErrTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := verifier.Authenticate(t.Context(), tt.token)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, uuid.Nil, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, got)
		})
	}
}

func TestSubjectUserID(t *testing.T) {
	a := auth.SubjectUserID(issuer, "google|42")
	assert.Equal(t, a, auth.SubjectUserID(issuer, "google|42"))
	assert.NotEqual(t, a, auth.SubjectUserID("https://other.test", "google|42"))
}

func TestNewOIDC_RequiresIssuerAndClient(t *testing.T) {
	_, err := auth.NewOIDC(t.Context(), "", clientID)
	require.EqualError(t, err, "issuer and client id are required")

	_, err = auth.NewOIDC(t.Context(), issuer, "")
	require.EqualError(t, err, "issuer and client id are required")
}
