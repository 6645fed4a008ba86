package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName carries the signed token; the API is cookie-authenticated.
const CookieName = "token"

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxPapel
)

type Claims struct {
	UserID string `json:"user_id"`
	Papel  string `json:"papel"`
	jwt.RegisteredClaims
}

type Middleware struct {
	Secret []byte
}

func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CookieName)
		if err != nil || c.Value == "" {
			unauthorized(w, "token ausente")
			return
		}

		claims := &Claims{}
		tok, err := jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("metodo de assinatura invalido")
			}
			return m.Secret, nil
		})
		if err != nil || !tok.Valid || claims.UserID == "" {
			unauthorized(w, "token invalido ou expirado")
			return
		}
		papel, err := ParsePapel(claims.Papel)
		if err != nil {
			unauthorized(w, "token invalido ou expirado")
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxPapel, papel)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require gates a route to the given roles; admins pass everywhere.
func Require(papeis ...Papel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PapelFrom(r.Context())
			if !ok {
				unauthorized(w, "token ausente")
				return
			}
			if p.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			for _, want := range papeis {
				if p == want {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"erro": "acesso negado"})
		})
	}
}

func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxUserID).(string)
	return id, ok
}

func PapelFrom(ctx context.Context) (Papel, bool) {
	p, ok := ctx.Value(ctxPapel).(Papel)
	return p, ok
}

// WithIdentity injects an authenticated identity directly; test helper and
// websocket-upgrade path.
func WithIdentity(ctx context.Context, userID string, papel Papel) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxPapel, papel)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"erro": msg})
}
