package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	errMissingSigner = errors.New("signer identity is required")
	errInvalidToken  = errors.New("bearer token is invalid")
)

type signerResolver interface {
	Resolve(r *http.Request) (string, error)
}

func newSignerResolver(secret string) signerResolver {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return headerSigner{}
	}
	return jwtSigner{secret: []byte(secret)}
}

// headerSigner trusts X-User-Id. Local development only.
type headerSigner struct{}

func (headerSigner) Resolve(r *http.Request) (string, error) {
	signer := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if signer == "" {
		return "", errMissingSigner
	}
	return signer, nil
}

// jwtSigner takes the signer from the sub claim of an HS256 bearer token.
type jwtSigner struct {
	secret []byte
}

func (s jwtSigner) Resolve(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return "", errMissingSigner
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}
	signer := claims.Subject
	if strings.TrimSpace(signer) == "" {
		return "", errMissingSigner
	}
	return signer, nil
}
