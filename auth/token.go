package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
)

// Claims carries the account snapshot inside the token.
type Claims struct {
	jwt.RegisteredClaims
	Email       string       `json:"email,omitempty"`
	Name        string       `json:"name,omitempty"`
	Role        Role         `json:"role,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	Active      bool         `json:"active"`
}

// Account rebuilds the account described by the claims.
func (c *Claims) Account() *Account {
	return &Account{
		ID:          c.Subject,
		Email:       c.Email,
		Name:        c.Name,
		Role:        c.Role,
		Permissions: c.Permissions,
		IsActive:    c.Active,
	}
}

// Manager signs and verifies HS256 tokens.
type Manager struct {
	secret   []byte
	issuer   string
	validity time.Duration
	now      func() time.Time
}

// NewManager returns a token manager. validity <= 0 defaults to one hour.
func NewManager(secret []byte, issuer string, validity time.Duration) *Manager {
	if validity <= 0 {
		validity = time.Hour
	}
	return &Manager{secret: secret, issuer: issuer, validity: validity, now: time.Now}
}

// Issue signs a token for acc.
func (m *Manager) Issue(acc *Account) (string, error) {
	if acc == nil || acc.ID == "" {
		return "", fmt.Errorf("auth: account id is required")
	}
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.validity)),
		},
		Email:       acc.Email,
		Name:        acc.Name,
		Role:        acc.Role,
		Permissions: acc.Permissions,
		Active:      acc.IsActive,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses token and returns the account it describes.
func (m *Manager) Verify(token string) (*Account, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims.Account(), nil
}
