package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrNoSession = errors.New("no valid session")

// Session is what the rest of the system sees of an authenticated caller.
type Session struct {
	UserID string
	Role   string
	Email  string
}

// Authority validates an inbound request and yields a session, or
// ErrNoSession. The scheduling core performs no work for callers without one.
type Authority interface {
	Authenticate(r *http.Request) (*Session, error)
}

type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTAuthority validates bearer tokens signed with a shared HS256 secret.
type JWTAuthority struct {
	secret []byte
}

func NewJWTAuthority(secret string) *JWTAuthority {
	return &JWTAuthority{secret: []byte(secret)}
}

func (a *JWTAuthority) Authenticate(r *http.Request) (*Session, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, ErrNoSession
	}

	claims, err := a.parse(strings.TrimPrefix(header, prefix))
	if err != nil {
		return nil, ErrNoSession
	}

	return &Session{
		UserID: claims.Subject,
		Role:   claims.Role,
		Email:  claims.Email,
	}, nil
}

func (a *JWTAuthority) parse(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// IssueToken signs a session token, used by tooling and tests.
func (a *JWTAuthority) IssueToken(sub, role, email string, ttl time.Duration) (string, error) {
	claims := Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
