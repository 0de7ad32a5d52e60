// Package auth verifies the tokens that carry a caller's role and display
// name, and hashes the admin key guarding destructive operations.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// JWTManager signs and validates JWT tokens used by the API.
type JWTManager struct {
	keys      map[string]string // kid -> HMAC secret; "" is the single-key setup
	activeKid string            // kid used to sign new tokens
	duration  time.Duration     // How long tokens are valid
}

// Claims is the custom JWT payload. Who the caller is gets decided by the
// external issuer; this service only trusts the signed role and name.
type Claims struct {
	Name                 string `json:"name"` // display name shown on sent messages
	Role                 string `json:"role"` // CUSTOMER, TECHNICAL, FINANCIAL, BOOKING or ADMIN
	jwt.RegisteredClaims        // Includes ExpiresAt, IssuedAt, Subject
}

// NewJWTManager returns a manager with a single signing secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{
		keys:     map[string]string{"": secretKey},
		duration: duration,
	}
}

// NewJWTManagerFromKeys returns a manager that signs with activeKid and
// verifies tokens signed by any key in keys, so older tokens survive rotation.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	copied := make(map[string]string, len(keys))
	for kid, secret := range keys {
		copied[kid] = secret
	}
	return &JWTManager{keys: copied, activeKid: activeKid, duration: duration}
}

// GenerateToken issues a signed token for a caller.
func (m *JWTManager) GenerateToken(subject, name, role string) (string, time.Time, error) {
	secret, ok := m.keys[m.activeKid]
	if !ok || secret == "" {
		return "", time.Time{}, fmt.Errorf("no signing key for kid %q", m.activeKid)
	}

	now := time.Now()
	expiresAt := now.Add(m.duration)
	claims := &Claims{
		Name: strings.TrimSpace(name),
		Role: strings.ToUpper(strings.TrimSpace(role)), // roles compare upper-case
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		// kid header lets VerifyToken pick the right secret after rotation
		token.Header["kid"] = m.activeKid
	}

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Security check: ensure token was signed with HMAC (not asymmetric key)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		secret, ok := m.keys[kid]
		if !ok || secret == "" {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// HashAdminKey returns a bcrypt hash suitable for ADMIN_KEY_HASH.
func HashAdminKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckAdminKey compares a plaintext admin key against its bcrypt hash.
func CheckAdminKey(hash, key string) error {
	// CompareHashAndPassword is timing-safe
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}
