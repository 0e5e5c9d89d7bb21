// Package tempuser is a stand-in for the real session layer: the user id
// comes straight from a cookie. Everything behind it only assumes "an
// authenticated user id exists", so swapping in real sessions is a
// middleware change.
package tempuser

import (
	"context"
	"net/http"
)

type userIDKeyType struct{}

var userIDKey = userIDKeyType{}

// WithUser requires the "user_id" cookie and puts its value on the context.
func WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("user_id")
		if err != nil || c.Value == "" {
			http.Error(w, "missing user_id", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, c.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the user id that WithUser stored on the request context.
func UserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
