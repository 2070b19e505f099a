// README: Token identity. HMAC-signed JWTs carry the account id and role;
// the HTTP middleware resolves them into Claims.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"hail/internal/types"
)

var ErrInvalidToken = errors.New("auth: invalid token")

type Claims struct {
	AccountID types.ID
	Role      types.Role
}

// Resolver turns a bearer token into claims. The JWT implementation is the
// production one; tests substitute a stub.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Claims, error)
}

type JWT struct {
	secret []byte
	ttl    time.Duration
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: []byte(secret), ttl: ttl}
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue mints a signed token for the account.
func (j *JWT) Issue(accountID types.ID, role types.Role) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(accountID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func (j *JWT) Resolve(ctx context.Context, token string) (Claims, error) {
	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	role := types.Role(tc.Role)
	if tc.Subject == "" || !role.Valid() {
		return Claims{}, ErrInvalidToken
	}
	return Claims{AccountID: types.ID(tc.Subject), Role: role}, nil
}

// HashPassword wraps bcrypt at the default cost.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
