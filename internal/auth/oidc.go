// Package auth resolves bearer credentials to user ids.
package auth

import (
	"context"
	"crypto"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/domain"
)

// OIDC verifies ID tokens issued for clientID by issuer.
type OIDC struct {
	issuer   string
	verifier *oidc.IDTokenVerifier
}

// NewOIDC discovers the issuer keys. It fails when the issuer is unreachable.
func NewOIDC(ctx context.Context, issuer, clientID string) (*OIDC, error) {
	if issuer == "" || clientID == "" {
		return nil, errors.New("issuer and client id are required")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc.NewProvider: %w", err)
	}

	return &OIDC{
		issuer:   issuer,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// NewStaticOIDC verifies against fixed public keys, without discovery.
func NewStaticOIDC(issuer string, cfg *oidc.Config, keys ...crypto.PublicKey) *OIDC {
	return &OIDC{
		issuer:   issuer,
		verifier: oidc.NewVerifier(issuer, &oidc.StaticKeySet{PublicKeys: keys}, cfg),
	}
}

// Authenticate returns the user id carried in the token subject.
// Subjects that are not uuids are mapped to a stable name-based uuid.
func (o *OIDC) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	idToken, err := o.verifier.Verify(ctx, token)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return uuid.Nil, fmt.Errorf("expired at %s: %w", expired.Expiry, domain.ErrTokenExpired)
		}
		return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	if idToken.Subject == "" {
		return uuid.Nil, fmt.Errorf("empty subject: %w", domain.ErrUnauthenticated)
	}

	return SubjectUserID(o.issuer, idToken.Subject), nil
}

func SubjectUserID(issuer, subject string) uuid.UUID {
	if id, err := uuid.Parse(subject); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(issuer+"#"+subject))
}
