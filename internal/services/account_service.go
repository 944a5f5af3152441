package services

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sliqpay/backend/internal/models"
)

type AccountService struct {
	db        *sql.DB
	validator *validator.Validate
}

// CreateAccountRequest represents the account creation payload
type CreateAccountRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Currency string `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// UpdateBalanceRequest sets an account balance directly. This is an
// administrative escape hatch; normal mutations go through the
// transaction service.
type UpdateBalanceRequest struct {
	Balance *int64 `json:"balance" validate:"required,gte=0"`
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db, validator: validator.New()}
}

// CreateAccount opens an account with the fixed starting balance
// @Summary Create account
// @Tags account
// @Accept json
// @Produce json
// @Router /account [post]
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	account := models.Account{
		UserID:   req.UserID,
		Balance:  StartingBalanceMinor,
		Currency: currency,
	}
	err := s.db.QueryRow(
		"INSERT INTO accounts (user_id, balance, currency) VALUES ($1, $2, $3) RETURNING id, created_at",
		account.UserID, account.Balance, account.Currency).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		log.Printf("[ACCOUNT] Creation failed for user %s: %v", req.UserID, err)
		SendErrorResponse(w, CodeInternal, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"account": account})
}

// GetUserAccounts lists a user's accounts, newest first
// @Summary List accounts by user
// @Tags account
// @Produce json
// @Router /account/user/{userId} [get]
func (s *AccountService) GetUserAccounts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	rows, err := s.db.Query(
		"SELECT id, user_id, balance, currency, created_at FROM accounts WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		log.Printf("[ACCOUNT] List failed for user %s: %v", userID, err)
		SendErrorResponse(w, CodeInternal, "Failed to fetch accounts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Balance, &a.Currency, &a.CreatedAt); err != nil {
			SendErrorResponse(w, CodeInternal, "Failed to fetch accounts", http.StatusInternalServerError, nil)
			return
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, CodeInternal, "Failed to fetch accounts", http.StatusInternalServerError, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// GetAccount returns one account by id
// @Summary Get account
// @Tags account
// @Produce json
// @Router /account/{id} [get]
func (s *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var account models.Account
	err := s.db.QueryRow(
		"SELECT id, user_id, balance, currency, created_at FROM accounts WHERE id = $1",
		id).Scan(&account.ID, &account.UserID, &account.Balance, &account.Currency, &account.CreatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, CodeAccountNotFound, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Fetch failed for %s: %v", id, err)
		SendErrorResponse(w, CodeInternal, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"account": account})
}

// UpdateBalance writes an account balance directly
// @Summary Set account balance
// @Tags account
// @Accept json
// @Produce json
// @Router /account/{id}/balance [patch]
func (s *AccountService) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateBalanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var account models.Account
	err := s.db.QueryRow(
		"UPDATE accounts SET balance = $1 WHERE id = $2 RETURNING id, user_id, balance, currency, created_at",
		*req.Balance, id).Scan(&account.ID, &account.UserID, &account.Balance, &account.Currency, &account.CreatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, CodeAccountNotFound, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Balance update failed for %s: %v", id, err)
		SendErrorResponse(w, CodeInternal, "Failed to update balance", http.StatusInternalServerError, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"account": account})
}
