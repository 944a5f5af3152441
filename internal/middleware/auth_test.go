package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/sliqpay/backend/internal/session"
)

func userRow(id string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "phone", "created_at"}).
		AddRow(id, "a@x.com", "Ada", "Okafor", "+2348012345678", time.Now())
}

func signTestToken(t *testing.T, sub string) string {
	t.Helper()
	viper.Set("jwt.secret_key", "test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(15 * time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	assert.NoError(t, err)
	return signed
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user == nil {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(user.ID))
	})
}

func TestRequireAuth(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	handler := RequireAuth(db)(echoUser())

	t.Run("session resolves user", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone, created_at FROM users").
			WithArgs("user-1").
			WillReturnRows(userRow("user-1"))

		req := httptest.NewRequest("GET", "/", nil)
		rec := &session.Record{ID: "sid", Data: session.Data{UserID: "user-1"}}
		req = req.WithContext(withSession(req.Context(), rec))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", w.Body.String())
	})

	t.Run("access token cookie fallback", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone, created_at FROM users").
			WithArgs("user-2").
			WillReturnRows(userRow("user-2"))

		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: signTestToken(t, "user-2")})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-2", w.Body.String())
	})

	t.Run("no credentials", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("garbage token", func(t *testing.T) {
		viper.Set("jwt.secret_key", "test-secret")
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "not-a-jwt"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionalAuth(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	handler := OptionalAuth(db)(echoUser())

	t.Run("anonymous is a valid outcome", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "anonymous", w.Body.String())
	})

	t.Run("session resolves user", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone, created_at FROM users").
			WithArgs("user-1").
			WillReturnRows(userRow("user-1"))

		req := httptest.NewRequest("GET", "/", nil)
		rec := &session.Record{ID: "sid", Data: session.Data{UserID: "user-1"}}
		req = req.WithContext(withSession(req.Context(), rec))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", w.Body.String())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
