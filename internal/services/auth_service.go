package services

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// AuthService checks the single admin credential pair and mints the signed
// session cookie that carries the is_admin flag.
type AuthService struct {
	adminUser   string
	adminSecret string
	jwtSecret   []byte
	sessionTTL  time.Duration
}

// NewAuthService creates a new AuthService. adminSecret is either a bcrypt
// hash or a plaintext password, distinguished by the "$2" prefix.
func NewAuthService(adminUser, adminSecret, jwtSecret string) *AuthService {
	return &AuthService{
		adminUser:   adminUser,
		adminSecret: adminSecret,
		jwtSecret:   []byte(jwtSecret),
		sessionTTL:  12 * time.Hour,
	}
}

// AdminUser returns the configured admin username, for the login form.
func (s *AuthService) AdminUser() string {
	return s.adminUser
}

// VerifyCredentials checks a login attempt. The stored secret is treated as
// a bcrypt hash when it carries the "$2" scheme marker; only non-hash-marked
// secrets fall back to a constant-time plaintext comparison.
func (s *AuthService) VerifyCredentials(username, password string) bool {
	if username != s.adminUser {
		return false
	}
	if strings.HasPrefix(s.adminSecret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(s.adminSecret), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.adminSecret)) == 1
}

// IssueSession returns a signed session token with the is_admin flag set.
func (s *AuthService) IssueSession() (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"is_admin": true,
		"exp":      time.Now().Add(s.sessionTTL).Unix(),
		"iat":      time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

// ValidateSession parses a session token and reports whether it grants
// admin access.
func (s *AuthService) ValidateSession(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid session")
	}
	if isAdmin, _ := claims["is_admin"].(bool); !isAdmin {
		return fmt.Errorf("session does not grant admin access")
	}
	return nil
}
