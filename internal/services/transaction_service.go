package services

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sliqpay/backend/internal/models"
)

var (
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrAccountNotFound   = errors.New("account not found")
)

type TransactionService struct {
	db        *sql.DB
	validator *validator.Validate
}

// CreateTransactionRequest represents the transaction payload. Amount
// is a positive magnitude in minor units; Type carries the direction.
type CreateTransactionRequest struct {
	AccountID   string `json:"accountId" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Type        string `json:"type" validate:"required"`
	Description string `json:"description,omitempty" validate:"max=200"`
}

func NewTransactionService(db *sql.DB) *TransactionService {
	return &TransactionService{db: db, validator: validator.New()}
}

// CreateTransaction applies a debit or credit to an account
// @Summary Create transaction
// @Tags transaction
// @Accept json
// @Produce json
// @Router /transaction [post]
func (s *TransactionService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	txn, account, err := s.apply(req.AccountID, req.Amount, strings.ToLower(req.Type), req.Description)
	switch {
	case errors.Is(err, ErrInvalidType):
		SendErrorResponse(w, CodeInvalidType, "Invalid transaction type", http.StatusBadRequest, nil)
		return
	case errors.Is(err, ErrAccountNotFound):
		SendErrorResponse(w, CodeAccountNotFound, "Account not found", http.StatusNotFound, nil)
		return
	case errors.Is(err, ErrInsufficientFunds):
		SendErrorResponse(w, CodeInsufficientFunds, "Insufficient balance", http.StatusBadRequest, nil)
		return
	case err != nil:
		log.Printf("[LEDGER] Transaction failed for account %s: %v", req.AccountID, err)
		SendErrorResponse(w, CodeInternal, "Failed to create transaction", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LEDGER] %s of %d on account %s, new balance %d", txn.Type, txn.Amount, account.ID, account.Balance)
	respondJSON(w, http.StatusCreated, map[string]any{"transaction": txn, "account": account})
}

// apply mutates the balance and records the transaction in a single
// atomic unit. The row lock on the account serializes concurrent
// writers so two debits can never both observe a stale balance.
func (s *TransactionService) apply(accountID string, amount int64, kind, description string) (*models.Transaction, *models.Account, error) {
	if kind != models.TypeDebit && kind != models.TypeCredit {
		return nil, nil, ErrInvalidType
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var account models.Account
	err = tx.QueryRow(
		`SELECT id, user_id, balance, currency, created_at
		 FROM accounts
		 WHERE id = $1
		 FOR UPDATE`, accountID).
		Scan(&account.ID, &account.UserID, &account.Balance, &account.Currency, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	delta := amount
	if kind == models.TypeDebit {
		delta = -amount
	}
	newBalance := account.Balance + delta
	if newBalance < 0 {
		return nil, nil, ErrInsufficientFunds
	}

	if _, err := tx.Exec("UPDATE accounts SET balance = $1 WHERE id = $2", newBalance, account.ID); err != nil {
		return nil, nil, err
	}

	txn := models.Transaction{
		AccountID:   account.ID,
		Amount:      amount,
		Type:        kind,
		Description: description,
	}
	err = tx.QueryRow(
		`INSERT INTO transactions (account_id, amount, type, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		txn.AccountID, txn.Amount, txn.Type, txn.Description).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	account.Balance = newBalance
	return &txn, &account, nil
}

// ListAccountTransactions returns an account's entries, newest first
// @Summary List transactions by account
// @Tags transaction
// @Produce json
// @Router /transaction/account/{accountId} [get]
func (s *TransactionService) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	rows, err := s.db.Query(
		`SELECT id, account_id, amount, type, description, created_at
		 FROM transactions
		 WHERE account_id = $1
		 ORDER BY created_at DESC`, accountID)
	if err != nil {
		log.Printf("[LEDGER] List failed for account %s: %v", accountID, err)
		SendErrorResponse(w, CodeInternal, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Type, &t.Description, &t.CreatedAt); err != nil {
			SendErrorResponse(w, CodeInternal, "Failed to fetch transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, CodeInternal, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// GetTransaction returns one transaction by id
// @Summary Get transaction
// @Tags transaction
// @Produce json
// @Router /transaction/{id} [get]
func (s *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var t models.Transaction
	err := s.db.QueryRow(
		"SELECT id, account_id, amount, type, description, created_at FROM transactions WHERE id = $1",
		id).Scan(&t.ID, &t.AccountID, &t.Amount, &t.Type, &t.Description, &t.CreatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, CodeTransactionNotFound, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[LEDGER] Fetch failed for %s: %v", id, err)
		SendErrorResponse(w, CodeInternal, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"transaction": t})
}
