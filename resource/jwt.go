package resource

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/refractio/refract/store"
)

// JWTPolicy authenticates write actions with an HMAC-signed bearer token.
// Safe verbs pass without a token when AllowAnonymousRead is set.
type JWTPolicy struct {
	Secret             []byte
	AllowAnonymousRead bool

	// RequiredScope, when set, must appear in the token's "scope" claim
	RequiredScope string
}

// Allow implements PermissionPolicy
func (p *JWTPolicy) Allow(r *http.Request, action string, _ store.Record) error {
	if p.AllowAnonymousRead {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return nil
		}
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return fmt.Errorf("%w: missing bearer token", ErrPermissionDenied)
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.Secret, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: invalid token", ErrPermissionDenied)
	}

	if p.RequiredScope != "" {
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fmt.Errorf("%w: missing claims", ErrPermissionDenied)
		}
		scope, _ := claims["scope"].(string)
		if !hasScope(scope, p.RequiredScope) {
			return fmt.Errorf("%w: missing scope %s", ErrPermissionDenied, p.RequiredScope)
		}
	}

	return nil
}

func hasScope(scopes, want string) bool {
	for _, s := range strings.Fields(scopes) {
		if s == want {
			return true
		}
	}
	return false
}
