package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or shadow the
// claims stored in a request context.
type contextKey string

const claimsKey contextKey = "claims"

// RequireBearer rejects requests without a valid access token in the
// "Authorization: Bearer <jwt>" header. The verified claims are stored in the
// request context for ClaimsFromContext.
//
// The 401 body uses the provider's error shape so identity clients can show
// its message.
func RequireBearer(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				writeUnauthorized(w, "This endpoint requires a Bearer token")
				return
			}

			c, err := tokens.ValidateUse(raw, UseAccess)
			if err != nil {
				writeUnauthorized(w, "invalid JWT: unable to parse or verify signature, "+err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims RequireBearer stored, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code": http.StatusUnauthorized,
		"msg":  msg,
	})
}
