package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"memory-pairs-server/gameerrors"
)

// DefaultName is used when a token carries no usable name.
const DefaultName = "Player"

// Identity is the authenticated player behind a token.
type Identity struct {
	UserID string
	Name   string
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// NeonVerifier validates Neon Auth JWTs against the issuer's JWKS.
// The key set is fetched on first use and refreshed in the background.
type NeonVerifier struct {
	baseURL string
	issuer  string
	ctx     context.Context

	once    sync.Once
	keyFunc jwt.Keyfunc
	initErr error
}

// NewNeonVerifier returns nil when baseURL is empty; callers treat a nil
// Verifier as "authentication disabled". ctx bounds the JWKS refresh goroutine.
func NewNeonVerifier(ctx context.Context, baseURL string) (*NeonVerifier, error) {
	if baseURL == "" {
		return nil, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}
	return &NeonVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		issuer:  u.Scheme + "://" + u.Host,
		ctx:     ctx,
	}, nil
}

func (v *NeonVerifier) keys() (jwt.Keyfunc, error) {
	v.once.Do(func() {
		if v.keyFunc != nil {
			return
		}
		jwks, err := keyfunc.NewDefaultCtx(v.ctx, []string{v.baseURL + "/.well-known/jwks.json"})
		if err != nil {
			v.initErr = fmt.Errorf("loading JWKS: %w", err)
			return
		}
		v.keyFunc = jwks.Keyfunc
	})
	return v.keyFunc, v.initErr
}

// Claims validates tokenString and returns its claims.
func (v *NeonVerifier) Claims(tokenString string) (jwt.MapClaims, error) {
	kf, err := v.keys()
	if err != nil {
		return nil, err
	}
	token, err := jwt.Parse(tokenString, kf,
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gameerrors.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", gameerrors.ErrUnauthorized)
	}
	return claims, nil
}

// Verify implements Verifier.
func (v *NeonVerifier) Verify(tokenString string) (Identity, error) {
	if v == nil {
		return Identity{}, gameerrors.ErrAuthNotEnabled
	}
	claims, err := v.Claims(tokenString)
	if err != nil {
		return Identity{}, err
	}
	userID := UserIDFromClaims(claims)
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", gameerrors.ErrUnauthorized)
	}
	return Identity{UserID: userID, Name: FirstNameFromClaims(claims)}, nil
}

// FirstNameFromClaims returns the first word of the "name" claim, or DefaultName.
func FirstNameFromClaims(claims jwt.MapClaims) string {
	name, _ := claims["name"].(string)
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return DefaultName
	}
	return parts[0]
}

// UserIDFromClaims returns the user id from claims ("sub" or "id").
func UserIDFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
