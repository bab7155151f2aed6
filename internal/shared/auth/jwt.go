package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Claims represents the identity contained in a JWT.
type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	Exp   int64  `json:"exp,omitempty"`
	Nbf   int64  `json:"nbf,omitempty"`
	Iat   int64  `json:"iat,omitempty"`
}

// RoleAdmin grants access to every user's documents and logs.
const RoleAdmin = "admin"

// IsAdmin reports whether the claims carry the admin role.
func (c Claims) IsAdmin() bool {
	return strings.EqualFold(c.Role, RoleAdmin)
}

const (
	defaultTTL = 24 * time.Hour
	// clock skew tolerated on exp and nbf
	leeway = 30 * time.Second
)

var (
	errMissingSecret = errors.New("jwt secret not configured")

	// ErrInvalidToken is wrapped by every verification failure.
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = fmt.Errorf("%w: expired", ErrInvalidToken)
)

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
}

var hs256Header = mustSegment(header{Alg: "HS256", Typ: "JWT"})

// SignJWT signs the given claims with HS256 using the configured secret.
// Missing iat and exp are filled in; exp defaults to 24h.
func SignJWT(claims Claims) (string, error) {
	secret, err := secretKey()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Sub) == "" {
		return "", errors.New("sub is required")
	}

	now := time.Now().UTC()
	if claims.Iat == 0 {
		claims.Iat = now.Unix()
	}
	if claims.Exp == 0 {
		claims.Exp = now.Add(defaultTTL).Unix()
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	signingInput := hs256Header + "." + base64.RawURLEncoding.EncodeToString(payload)
	return signingInput + "." + signature(signingInput, secret), nil
}

// VerifyJWT checks the signature, algorithm and time window of token and
// returns its claims. All failures match errors.Is(err, ErrInvalidToken).
func VerifyJWT(token string) (Claims, error) {
	return verifyAt(token, time.Now().UTC())
}

func verifyAt(token string, now time.Time) (Claims, error) {
	secret, err := secretKey()
	if err != nil {
		return Claims{}, err
	}

	head, payload, sig, ok := split(token)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(signature(head+"."+payload, secret))) {
		return Claims{}, ErrInvalidToken
	}

	var h header
	if err := decodeSegment(head, &h); err != nil || h.Alg != "HS256" {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := decodeSegment(payload, &claims); err != nil || claims.Sub == "" {
		return Claims{}, ErrInvalidToken
	}

	if claims.Exp > 0 && now.After(time.Unix(claims.Exp, 0).Add(leeway)) {
		return Claims{}, ErrExpiredToken
	}
	if claims.Nbf > 0 && now.Add(leeway).Before(time.Unix(claims.Nbf, 0)) {
		return Claims{}, fmt.Errorf("%w: not yet valid", ErrInvalidToken)
	}
	return claims, nil
}

func split(token string) (head, payload, sig string, ok bool) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func mustSegment(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func signature(input string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func secretKey() ([]byte, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret != "" {
		return []byte(secret), nil
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV"))) {
	case "production", "prod", "staging":
		return nil, fmt.Errorf("%w: JWT_SECRET required outside dev", errMissingSecret)
	}
	return []byte("dev-secret"), nil
}
