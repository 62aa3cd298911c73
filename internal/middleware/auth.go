package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const MerchantIDKey contextKey = "merchant_id"

type Claims struct {
	MerchantID string `json:"merchant_id"`
	jwt.RegisteredClaims
}

// RequireAuth validates the bearer token and puts the merchant ID on the
// request context. Every handler behind it is merchant-scoped.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, "invalid authorization scheme")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method")
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				writeAuthError(w, "invalid token")
				return
			}

			merchantID, err := uuid.Parse(claims.MerchantID)
			if err != nil {
				writeAuthError(w, "invalid merchant claim")
				return
			}

			ctx := context.WithValue(r.Context(), MerchantIDKey, merchantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetMerchantID extracts the authenticated merchant from the context.
func GetMerchantID(ctx context.Context) (uuid.UUID, bool) {
	merchantID, ok := ctx.Value(MerchantIDKey).(uuid.UUID)
	return merchantID, ok
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":        "UNAUTHORIZED",
			"description": msg,
		},
	})
}
