package service

import (
	"errors"
	"strings"
	"time"

	"floorpulse-backend/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthService issues and verifies the access tokens that guard manager routes.
type AuthService struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

type Claims struct {
	Subject   string
	Role      domain.UserRole
	ExpiresAt time.Time
}

// Issue signs an access token for subject with the given role.
func (s AuthService) Issue(subject string, role domain.UserRole) (string, time.Time, error) {
	if s.Secret == "" {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, &domain.ValidationError{Fields: []string{"subject"}}
	}
	if role != domain.RoleAdmin && role != domain.RoleManager {
		return "", time.Time{}, errors.New("role must be admin or manager")
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := s.now()
	exp := now.Add(ttl)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        subject,
		"role":       string(role),
		"token_type": "access",
		"exp":        exp.Unix(),
		"iat":        now.Unix(),
	}).SignedString([]byte(s.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Verify checks signature, expiry and token type.
func (s AuthService) Verify(tokenStr string) (Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(s.Now))
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["token_type"] != "access" {
		return Claims{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return Claims{}, ErrInvalidToken
	}
	out := Claims{Subject: sub, Role: domain.UserRole(role)}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

func (s AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
