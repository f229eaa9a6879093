package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/google/uuid"
)

var ErrNoToken = errors.New("no bearer token")

// Claims is the bearer token payload issued by the identity provider. The
// subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

// NewToken signs an HS256 token for userID.
func NewToken(secret []byte, userID uuid.UUID, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		StandardClaims: jwt.StandardClaims{
			Subject:   userID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies an HS256 token and returns the actor it names.
// Roles other than admin are treated as plain users.
func ParseToken(secret []byte, tokenStr string) (domain.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return domain.Actor{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Actor{}, errors.New("invalid token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("invalid subject: %w", err)
	}
	role := domain.RoleUser
	if claims.Role == string(domain.RoleAdmin) {
		role = domain.RoleAdmin
	}
	return domain.Actor{UserID: userID, Role: role}, nil
}

// ParseBearer accepts an Authorization header value.
func ParseBearer(secret []byte, header string) (domain.Actor, error) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return domain.Actor{}, ErrNoToken
	}
	return ParseToken(secret, strings.TrimSpace(header[len(prefix):]))
}
