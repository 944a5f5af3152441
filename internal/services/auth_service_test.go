package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/sliqpay/backend/internal/cache"
	"github.com/sliqpay/backend/internal/session"
)

type fakeMailer struct {
	to   []string
	urls []string
}

func (f *fakeMailer) SendPasswordReset(to, resetURL string) error {
	f.to = append(f.to, to)
	f.urls = append(f.urls, resetURL)
	return nil
}

func newTestAuthService(db *sql.DB) (*AuthService, cache.Store, *fakeMailer) {
	viper.Set("jwt.secret_key", "test-secret")
	store := cache.NewMemoryStore()
	sessions := session.NewManager(store)
	mail := &fakeMailer{}
	return NewAuthService(db, store, sessions, mail), store, mail
}

func postJSON(path string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	r := httptest.NewRequest("POST", path, bytes.NewBuffer(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthService_Signup(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, _, _ := newTestAuthService(db)

	t.Run("successful signup", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
			WithArgs("a@x.com").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("a@x.com", sqlmock.AnyArg(), sqlmock.AnyArg(), "Ada", "Okafor", "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("user-1", time.Now()))
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("user-1", StartingBalanceMinor, DefaultCurrency).
			WillReturnResult(sqlmock.NewResult(1, 1))

		r := postJSON("/auth/signup", map[string]string{
			"fname":    "Ada",
			"lname":    "Okafor",
			"email":    "A@x.com",
			"password": "longenough1",
		})
		w := httptest.NewRecorder()
		service.Signup(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			User struct {
				ID    string `json:"id"`
				Email string `json:"email"`
			} `json:"user"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "user-1", resp.User.ID)
		assert.Equal(t, "a@x.com", resp.User.Email)

		cookies := w.Result().Cookies()
		assert.NotNil(t, cookieByName(cookies, "sid"))
		assert.NotNil(t, cookieByName(cookies, "accessToken"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("email already registered", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
			WithArgs("taken@x.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-9"))

		r := postJSON("/auth/signup", map[string]string{
			"fname":    "Ada",
			"lname":    "Okafor",
			"email":    "taken@x.com",
			"password": "longenough1",
		})
		w := httptest.NewRecorder()
		service.Signup(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "EMAIL_TAKEN")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("account creation failure is non-fatal", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
			WithArgs("b@x.com").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("b@x.com", sqlmock.AnyArg(), sqlmock.AnyArg(), "Bayo", "Ade", "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("user-2", time.Now()))
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnError(sql.ErrConnDone)

		r := postJSON("/auth/signup", map[string]string{
			"fname":    "Bayo",
			"lname":    "Ade",
			"email":    "b@x.com",
			"password": "longenough1",
		})
		w := httptest.NewRecorder()
		service.Signup(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short password rejected", func(t *testing.T) {
		r := postJSON("/auth/signup", map[string]string{
			"fname":    "Ada",
			"lname":    "Okafor",
			"email":    "a@x.com",
			"password": "short",
		})
		w := httptest.NewRecorder()
		service.Signup(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	})

	t.Run("invalid body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/auth/signup", bytes.NewBufferString("not json"))
		w := httptest.NewRecorder()
		service.Signup(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, _, _ := newTestAuthService(db)

	loginColumns := []string{"id", "email", "first_name", "last_name", "phone", "password_hash", "created_at"}

	t.Run("successful login", func(t *testing.T) {
		hash, _ := hashPassword("longenough1")
		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone, password_hash, created_at FROM users").
			WithArgs("a@x.com").
			WillReturnRows(sqlmock.NewRows(loginColumns).
				AddRow("user-1", "a@x.com", "Ada", "Okafor", "+2348012345678", hash, time.Now()))

		r := postJSON("/auth/login", map[string]string{"email": "a@x.com", "password": "longenough1"})
		w := httptest.NewRecorder()
		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "user-1", resp.User.ID)

		cookies := w.Result().Cookies()
		assert.NotNil(t, cookieByName(cookies, "sid"))
		assert.NotNil(t, cookieByName(cookies, "accessToken"))
	})

	t.Run("wrong password", func(t *testing.T) {
		hash, _ := hashPassword("longenough1")
		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone, password_hash, created_at FROM users").
			WithArgs("a@x.com").
			WillReturnRows(sqlmock.NewRows(loginColumns).
				AddRow("user-1", "a@x.com", "Ada", "Okafor", "+2348012345678", hash, time.Now()))

		r := postJSON("/auth/login", map[string]string{"email": "a@x.com", "password": "wrongpassword"})
		w := httptest.NewRecorder()
		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
	})

	t.Run("unknown user fails identically", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone, password_hash, created_at FROM users").
			WithArgs("nobody@x.com").
			WillReturnError(sql.ErrNoRows)

		r := postJSON("/auth/login", map[string]string{"email": "nobody@x.com", "password": "longenough1"})
		w := httptest.NewRecorder()
		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
	})
}

func TestAuthService_Logout(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, store, _ := newTestAuthService(db)
	ctx := context.Background()

	t.Run("destroys the session and clears cookies", func(t *testing.T) {
		sess, err := service.sessions.Create(ctx, session.Data{UserID: "user-1"}, time.Hour)
		assert.NoError(t, err)

		r := httptest.NewRequest("POST", "/auth/logout", nil)
		r.AddCookie(&http.Cookie{Name: service.sessions.CookieName(), Value: sess.ID})
		w := httptest.NewRecorder()
		service.Logout(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)

		_, err = store.Get(ctx, "sess:"+sess.ID)
		assert.ErrorIs(t, err, cache.ErrNotFound)

		cookies := w.Result().Cookies()
		sid := cookieByName(cookies, "sid")
		assert.NotNil(t, sid)
		assert.True(t, sid.MaxAge < 0)
		access := cookieByName(cookies, "accessToken")
		assert.NotNil(t, access)
		assert.True(t, access.MaxAge < 0)
	})

	t.Run("idempotent without a session", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/auth/logout", nil)
		w := httptest.NewRecorder()
		service.Logout(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestAuthService_ForgotPassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, store, mail := newTestAuthService(db)

	t.Run("unknown email still succeeds", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email FROM users WHERE email = \\$1").
			WithArgs("ghost@x.com").
			WillReturnError(sql.ErrNoRows)

		r := postJSON("/auth/forgotpassword", map[string]string{"email": "ghost@x.com"})
		w := httptest.NewRecorder()
		service.ForgotPassword(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ok":true`)
		assert.Empty(t, mail.to)
	})

	t.Run("known email gets a reset link", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email FROM users WHERE email = \\$1").
			WithArgs("a@x.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow("user-1", "a@x.com"))

		r := postJSON("/auth/forgotpassword", map[string]string{"email": "a@x.com"})
		w := httptest.NewRecorder()
		service.ForgotPassword(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ok":true`)
		assert.Equal(t, []string{"a@x.com"}, mail.to)
		assert.Contains(t, mail.urls[0], "/auth/resetpassword?token=")

		// the token is stored and maps back to the user
		token, err := service.createResetToken(context.Background(), "user-1")
		assert.NoError(t, err)
		userID, err := store.Get(context.Background(), "pwreset:"+token)
		assert.NoError(t, err)
		assert.Equal(t, "user-1", userID)
	})
}

func TestAuthService_ResetPassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, _, _ := newTestAuthService(db)
	ctx := context.Background()

	t.Run("valid token updates the password once", func(t *testing.T) {
		token, err := service.createResetToken(ctx, "user-1")
		assert.NoError(t, err)

		mock.ExpectExec("UPDATE users SET password_hash").
			WithArgs(sqlmock.AnyArg(), "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		r := postJSON("/auth/resetpassword", map[string]string{"token": token, "password": "newlongenough1"})
		w := httptest.NewRecorder()
		service.ResetPassword(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ok":true`)
		assert.NoError(t, mock.ExpectationsWereMet())

		// the token is single-use
		r = postJSON("/auth/resetpassword", map[string]string{"token": token, "password": "newlongenough1"})
		w = httptest.NewRecorder()
		service.ResetPassword(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_OR_EXPIRED")
	})

	t.Run("unknown token", func(t *testing.T) {
		r := postJSON("/auth/resetpassword", map[string]string{
			"token":    "deadbeefdeadbeefdeadbeef",
			"password": "newlongenough1",
		})
		w := httptest.NewRecorder()
		service.ResetPassword(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_OR_EXPIRED")
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("longenough1")
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.True(t, verifyPassword("longenough1", hash))
	assert.False(t, verifyPassword("wrongpassword", hash))
}

func TestResetTokenExpiry(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, store, _ := newTestAuthService(db)
	ctx := context.Background()

	token, err := service.createResetToken(ctx, "user-1")
	assert.NoError(t, err)

	// TTL is bounded by the configured reset window
	ttl, err := store.TTL(ctx, "pwreset:"+token)
	assert.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= int64(viper.GetInt("reset_token.ttl_seconds")))
}
