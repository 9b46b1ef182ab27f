package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by access and refresh tokens. Roles are resolved at issue
// time from the actor's active assignments; permission checks re-resolve from
// the store so a revoked or expired role is never honored for its full token
// lifetime.
type Claims struct {
	jwt.RegisteredClaims
	Roles     []string `json:"roles"`
	TokenType string   `json:"token_type"` // access or refresh
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Issuer creates and validates HMAC-signed bearer tokens.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// Issue mints an access+refresh pair for the given user.
func (i *Issuer) Issue(userID string, roles []string) (*TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(i.accessTTL)

	access, err := i.sign(userID, roles, "access", now, accessExp)
	if err != nil {
		return nil, err
	}
	refresh, err := i.sign(userID, roles, "refresh", now, now.Add(i.refreshTTL))
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: accessExp}, nil
}

func (i *Issuer) sign(userID string, roles []string, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Roles:     roles,
		TokenType: tokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token string and returns its claims. tokenType must match
// the token_type claim ("access" or "refresh").
func (i *Issuer) Validate(tokenStr, tokenType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("expected %s token, got %s", tokenType, claims.TokenType)
	}
	return claims, nil
}

// legacyWrapper is the shape produced by the old browser client: the bearer
// value is "FHIR-" + base64(JSON{token, expires}).
type legacyWrapper struct {
	Token   string `json:"token"`
	Expires string `json:"expires"`
}

const legacyPrefix = "FHIR-"

// UnwrapBearer normalizes a bearer credential. Raw JWTs pass through; the
// legacy FHIR-prefixed wrapper is decoded and its inner token returned.
func UnwrapBearer(raw string) (string, error) {
	if !strings.HasPrefix(raw, legacyPrefix) {
		return raw, nil
	}

	encoded := strings.TrimPrefix(raw, legacyPrefix)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Some clients emit the URL-safe alphabet.
		decoded, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("malformed legacy token wrapper")
		}
	}

	var w legacyWrapper
	if err := json.Unmarshal(decoded, &w); err != nil {
		return "", fmt.Errorf("malformed legacy token wrapper")
	}
	if w.Token == "" {
		return "", fmt.Errorf("legacy token wrapper has no token")
	}
	return w.Token, nil
}

// WrapLegacy produces the legacy client wrapper for a token. Kept for
// compatibility tests against the old dashboard bundle.
func WrapLegacy(token string, expires time.Time) string {
	payload, _ := json.Marshal(legacyWrapper{Token: token, Expires: expires.Format(time.RFC3339)})
	return legacyPrefix + base64.StdEncoding.EncodeToString(payload)
}
