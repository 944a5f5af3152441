package middleware

import (
	"database/sql"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"

	"github.com/sliqpay/backend/internal/models"
)

// AccessTokenCookie is the name of the short-lived signed token cookie
// issued alongside the session at login and signup.
const AccessTokenCookie = "accessToken"

// RequireAuth resolves the caller to a user record, preferring an
// active session and falling back to the signed access-token cookie.
// Requests that resolve to no user are rejected with 401.
func RequireAuth(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := resolveUser(db, r)
			if user == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// OptionalAuth performs the same resolution as RequireAuth but never
// fails; anonymous callers simply proceed without a user in context.
func OptionalAuth(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := resolveUser(db, r); user != nil {
				r = r.WithContext(withUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveUser(db *sql.DB, r *http.Request) *models.User {
	// Prefer the session if present
	if sess := SessionFrom(r.Context()); sess != nil && sess.Data.UserID != "" {
		if user := lookupUser(db, sess.Data.UserID); user != nil {
			return user
		}
	}

	// Fall back to the access-token cookie
	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	userID, err := validateAccessToken(cookie.Value)
	if err != nil || userID == "" {
		return nil
	}
	return lookupUser(db, userID)
}

func validateAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	})
	if err != nil || !token.Valid {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", err
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}

func lookupUser(db *sql.DB, id string) *models.User {
	var user models.User
	err := db.QueryRow(
		"SELECT id, email, first_name, last_name, phone, created_at FROM users WHERE id = $1",
		id).Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Phone, &user.CreatedAt)
	if err != nil {
		return nil
	}
	return &user
}
