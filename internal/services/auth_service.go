package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/sliqpay/backend/internal/cache"
	"github.com/sliqpay/backend/internal/middleware"
	"github.com/sliqpay/backend/internal/models"
	"github.com/sliqpay/backend/internal/session"
)

const (
	// Every new account starts funded with this balance, in minor units.
	StartingBalanceMinor int64 = 25000
	DefaultCurrency            = "NGN"

	bcryptCost     = 10
	accessTokenTTL = 15 * time.Minute
)

// ResetMailer delivers password-reset email.
type ResetMailer interface {
	SendPasswordReset(to, resetURL string) error
}

type AuthService struct {
	db        *sql.DB
	store     cache.Store
	sessions  *session.Manager
	mailer    ResetMailer
	validator *validator.Validate
}

// SignupRequest represents the signup request payload
type SignupRequest struct {
	Fname    string `json:"fname" validate:"required,min=1"`
	Lname    string `json:"lname" validate:"required,min=1"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,e164"`
	RefCode  string `json:"refCode,omitempty"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest carries the email to send a reset link to
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest consumes a reset token
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required,min=10"`
	Password string `json:"password" validate:"required,min=8"`
}

func NewAuthService(db *sql.DB, store cache.Store, sessions *session.Manager, mailer ResetMailer) *AuthService {
	viper.SetDefault("signup.require_funded_account", false)
	viper.SetDefault("reset_token.ttl_seconds", 900) // 15 minutes
	viper.SetDefault("frontend.url", "http://localhost:3000")

	return &AuthService{
		db:        db,
		store:     store,
		sessions:  sessions,
		mailer:    mailer,
		validator: validator.New(),
	}
}

// Signup handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Router /auth/signup [post]
func (s *AuthService) Signup(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Signup attempt from IP: %s", r.RemoteAddr)

	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existingID string
	err := s.db.QueryRow("SELECT id FROM users WHERE email = $1", email).Scan(&existingID)
	if err == nil {
		SendErrorResponse(w, CodeEmailTaken, "Email already registered", http.StatusBadRequest, nil)
		return
	}
	if err != sql.ErrNoRows {
		log.Printf("[AUTH] Signup lookup failed for %s: %v", email, err)
		SendErrorResponse(w, CodeInternal, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", email, err)
		SendErrorResponse(w, CodeInternal, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	// Phone is optional; generate a unique placeholder when absent so
	// the column's uniqueness holds.
	phone := req.Phone
	if phone == "" {
		phone = "+000" + strings.ReplaceAll(uuid.NewString(), "-", "")[:11]
	}

	var user models.User
	err = s.db.QueryRow(
		`INSERT INTO users (email, phone, password_hash, first_name, last_name, referral_code)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		email, phone, hash, req.Fname, req.Lname, req.RefCode).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", email, err)
		SendErrorResponse(w, CodeInternal, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}
	user.Email = email
	user.FirstName = req.Fname
	user.LastName = req.Lname
	user.Phone = phone

	// Best-effort starting account; failure does not fail signup unless
	// signup.require_funded_account is set.
	_, err = s.db.Exec(
		"INSERT INTO accounts (user_id, balance, currency) VALUES ($1, $2, $3)",
		user.ID, StartingBalanceMinor, DefaultCurrency)
	if err != nil {
		if viper.GetBool("signup.require_funded_account") {
			log.Printf("[AUTH] Starting account creation failed for %s: %v", user.ID, err)
			SendErrorResponse(w, CodeInternal, "Failed to create account", http.StatusInternalServerError, nil)
			return
		}
		log.Printf("[AUTH] Starting account creation failed for %s (non-fatal): %v", user.ID, err)
	}

	s.issueCredentials(r.Context(), w, user.ID)

	log.Printf("[AUTH] Signup successful for user %s", user.ID)
	respondJSON(w, http.StatusCreated, map[string]any{"user": user.Public()})
}

// Login handles user authentication
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	err := s.db.QueryRow(
		"SELECT id, email, first_name, last_name, phone, password_hash, created_at FROM users WHERE email = $1",
		email).Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Phone, &user.PasswordHash, &user.CreatedAt)
	// Absent user and wrong password fail identically so callers cannot
	// enumerate registered emails.
	if err != nil || !verifyPassword(req.Password, user.PasswordHash) {
		SendErrorResponse(w, CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	s.issueCredentials(r.Context(), w, user.ID)

	log.Printf("[AUTH] Login successful for user %s", user.ID)
	respondJSON(w, http.StatusOK, map[string]any{"user": user.Public()})
}

// Logout destroys the session and clears both cookies. It succeeds
// regardless of prior session state.
// @Summary Logout user
// @Tags auth
// @Produce json
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.sessions.CookieName()); err == nil && cookie.Value != "" {
		if err := s.sessions.Destroy(r.Context(), cookie.Value); err != nil {
			log.Printf("[AUTH] Session destroy failed: %v", err)
		}
	}

	s.sessions.ClearCookie(w)
	s.clearAccessTokenCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated caller
// @Summary Get current user
// @Tags auth
// @Produce json
// @Router /auth/me [get]
func (s *AuthService) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	if user == nil {
		SendErrorResponse(w, CodeUnauthorized, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": user.Public()})
}

// ForgotPassword issues a reset token and emails a reset link. The
// response is identical whether or not the email is registered.
// @Summary Request password reset
// @Tags auth
// @Accept json
// @Produce json
// @Router /auth/forgotpassword [post]
func (s *AuthService) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var userID, userEmail string
	err := s.db.QueryRow("SELECT id, email FROM users WHERE email = $1", email).Scan(&userID, &userEmail)
	if err != nil {
		// Do not reveal user existence
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	token, err := s.createResetToken(r.Context(), userID)
	if err != nil {
		log.Printf("[AUTH] Reset token creation failed for %s: %v", userID, err)
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	resetURL := fmt.Sprintf("%s/auth/resetpassword?token=%s", viper.GetString("frontend.url"), token)
	if err := s.mailer.SendPasswordReset(userEmail, resetURL); err != nil {
		log.Printf("[AUTH] Reset email failed for %s: %v", userID, err)
	}

	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ResetPassword consumes a single-use reset token and stores the new
// password hash.
// @Summary Confirm password reset
// @Tags auth
// @Accept json
// @Produce json
// @Router /auth/resetpassword [post]
func (s *AuthService) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	userID, err := s.consumeResetToken(r.Context(), req.Token)
	if err != nil {
		log.Printf("[AUTH] Reset token consume failed: %v", err)
		SendErrorResponse(w, CodeInternal, "Failed to reset password", http.StatusInternalServerError, nil)
		return
	}
	if userID == "" {
		SendErrorResponse(w, CodeInvalidOrExpired, "Invalid or expired reset token.", http.StatusBadRequest, nil)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		SendErrorResponse(w, CodeInternal, "Failed to reset password", http.StatusInternalServerError, nil)
		return
	}

	if _, err := s.db.Exec("UPDATE users SET password_hash = $1 WHERE id = $2", hash, userID); err != nil {
		log.Printf("[AUTH] Password update failed for %s: %v", userID, err)
		SendErrorResponse(w, CodeInternal, "Failed to reset password", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Password reset for user %s", userID)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// issueCredentials creates a session and signs a short-lived access
// token, attaching both as cookies. A session store failure is logged
// and the access token still covers the caller.
func (s *AuthService) issueCredentials(ctx context.Context, w http.ResponseWriter, userID string) {
	if sess, err := s.sessions.Create(ctx, session.Data{UserID: userID}, 0); err != nil {
		log.Printf("[AUTH] Session creation failed for %s: %v", userID, err)
	} else {
		s.sessions.SetCookie(w, sess.ID)
	}

	token, err := generateAccessToken(userID)
	if err != nil {
		log.Printf("[AUTH] Access token generation failed for %s: %v", userID, err)
		return
	}
	s.setAccessTokenCookie(w, token)
}

func (s *AuthService) accessTokenCookie(value string, maxAge int) *http.Cookie {
	isProd := viper.GetString("environment") == "production"
	sameSite := http.SameSiteLaxMode
	if isProd {
		sameSite = http.SameSiteStrictMode
	}
	return &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   isProd,
		SameSite: sameSite,
	}
}

func (s *AuthService) setAccessTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.accessTokenCookie(token, int(accessTokenTTL/time.Second)))
}

func (s *AuthService) clearAccessTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, s.accessTokenCookie("", -1))
}

func generateAccessToken(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(accessTokenTTL).Unix(),
	})
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(hash), err
}

func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
