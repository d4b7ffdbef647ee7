package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/lester-yat/POS-UMG-ARDUINO/service/db"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/nats"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for account registration
	maxNameLength      = 100
	maxListLimit       = 1000
)

// Card tags are exactly 11 characters of hex digits and space separators.
var validTagRegex = regexp.MustCompile(`^[0-9a-fA-F ]{11}$`)

// accountResponse is the JSON shape of an account.
type accountResponse struct {
	TagID        string    `json:"tag_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Balance      int64     `json:"balance"`
	RegisteredAt time.Time `json:"registered_at"`
}

// movementResponse is the JSON shape of a ledger movement.
type movementResponse struct {
	ID         int64     `json:"id"`
	HolderName string    `json:"holder_name"`
	TagID      string    `json:"tag_id"`
	Amount     int64     `json:"amount"`
	Kind       string    `json:"kind"`
	RecordedAt time.Time `json:"recorded_at"`
}

func accountToResponse(account *db.Account) accountResponse {
	return accountResponse{
		TagID:        account.TagID,
		FirstName:    account.FirstName,
		LastName:     account.LastName,
		Balance:      account.Balance,
		RegisteredAt: account.RegisteredAt,
	}
}

func movementToResponse(movement *db.Movement) movementResponse {
	return movementResponse{
		ID:         movement.ID,
		HolderName: movement.HolderName,
		TagID:      movement.TagID,
		Amount:     movement.Amount,
		Kind:       string(movement.Kind),
		RecordedAt: movement.RecordedAt,
	}
}

// handleListAccounts returns a handler that lists all registered accounts.
// GET /api/v1/accounts
func handleListAccounts(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accounts, err := store.ListAccounts(r.Context())
		if err != nil {
			logger.Error("failed to list accounts", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]accountResponse, 0, len(accounts))
		for _, account := range accounts {
			response = append(response, accountToResponse(account))
		}
		writeJSON(w, response, http.StatusOK)
	})
}

// handleGetAccount returns a handler that retrieves one account by tag.
// GET /api/v1/accounts/{tag}
func handleGetAccount(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := r.PathValue("tag")
		if err := validateTag(tag); err != nil {
			logger.Debug("invalid tag", "tag", tag, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		account, err := store.GetAccountByTag(r.Context(), tag)
		if errors.Is(err, db.ErrAccountNotFound) {
			writeError(w, "account not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get account", "tag", tag, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, accountToResponse(account), http.StatusOK)
	})
}

// handleRegisterAccount returns a handler that registers a new card holder.
// POST /api/v1/accounts
func handleRegisterAccount(store *db.Store, logger *slog.Logger) http.Handler {
	type registerRequest struct {
		TagID     string `json:"tag_id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Balance   int64  `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := validateTag(req.TagID); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateName("first_name", req.FirstName); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateName("last_name", req.LastName); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Balance < 0 {
			writeError(w, "balance must be non-negative", http.StatusBadRequest)
			return
		}

		account, err := store.CreateAccount(r.Context(), db.CreateAccountParams{
			TagID:     req.TagID,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Balance:   req.Balance,
		})
		if errors.Is(err, db.ErrDuplicateTag) {
			writeError(w, "tag already registered", http.StatusConflict)
			return
		}
		if err != nil {
			logger.Error("failed to register account", "tag", req.TagID, "error", err)
			writeError(w, "failed to register account", http.StatusInternalServerError)
			return
		}

		logger.Info("account registered", "tag", account.TagID, "holder", account.HolderName())
		writeJSON(w, accountToResponse(account), http.StatusCreated)
	})
}

// handleTopUpAccount returns a handler that credits an account and records a
// manual_topup movement.
// POST /api/v1/accounts/{tag}/topup
func handleTopUpAccount(store *db.Store, publisher nats.Publisher, logger *slog.Logger) http.Handler {
	type topUpRequest struct {
		Amount int64 `json:"amount"`
	}
	type topUpResponse struct {
		TagID   string `json:"tag_id"`
		Amount  int64  `json:"amount"`
		Balance int64  `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := r.PathValue("tag")
		if err := validateTag(tag); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req topUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Amount <= 0 {
			writeError(w, "amount must be positive", http.StatusBadRequest)
			return
		}

		account, err := store.GetAccountByTag(r.Context(), tag)
		if errors.Is(err, db.ErrAccountNotFound) {
			writeError(w, "account not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get account", "tag", tag, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		balance, err := store.CreditAccount(r.Context(), tag, req.Amount)
		if errors.Is(err, db.ErrAccountNotFound) {
			writeError(w, "account not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to credit account", "tag", tag, "error", err)
			writeError(w, "failed to top up account", http.StatusInternalServerError)
			return
		}

		movement, err := store.AppendMovement(r.Context(), db.AppendMovementParams{
			HolderName: account.HolderName(),
			TagID:      tag,
			Amount:     req.Amount,
			Kind:       db.MovementManualTopup,
		})
		if err != nil {
			// The credit stands; the missing audit row is logged, not rolled back.
			logger.Error("top-up applied but movement write failed", "tag", tag, "error", err)
		} else if publisher != nil {
			if err := publisher.PublishMovement(r.Context(), nats.FromDBMovement(movement)); err != nil {
				logger.Error("failed to publish top-up event", "tag", tag, "error", err)
			}
		}

		logger.Info("account topped up", "tag", tag, "amount", req.Amount, "balance", balance)
		writeJSON(w, topUpResponse{TagID: tag, Amount: req.Amount, Balance: balance}, http.StatusOK)
	})
}

// handleDeleteAccount returns a handler that deletes an account and its
// movements.
// DELETE /api/v1/accounts/{tag}
func handleDeleteAccount(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := r.PathValue("tag")
		if err := validateTag(tag); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		err := store.DeleteAccount(r.Context(), tag)
		if errors.Is(err, db.ErrAccountNotFound) {
			writeError(w, "account not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to delete account", "tag", tag, "error", err)
			writeError(w, "failed to delete account", http.StatusInternalServerError)
			return
		}

		logger.Info("account deleted", "tag", tag)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleListMovements returns a handler that lists ledger movements.
// GET /api/v1/movements?tag={tag}&limit={limit}
func handleListMovements(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := db.ListMovementsParams{}

		if tag := r.URL.Query().Get("tag"); tag != "" {
			if err := validateTag(tag); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			params.TagID = tag
		}

		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit <= 0 || limit > maxListLimit {
				writeError(w, fmt.Sprintf("limit must be between 1 and %d", maxListLimit), http.StatusBadRequest)
				return
			}
			params.Limit = int32(limit)
		}

		movements, err := store.ListMovements(r.Context(), params)
		if err != nil {
			logger.Error("failed to list movements", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]movementResponse, 0, len(movements))
		for _, movement := range movements {
			response = append(response, movementToResponse(movement))
		}
		writeJSON(w, response, http.StatusOK)
	})
}

// handleHealth returns a handler that reports liveness and store reachability.
// GET /healthz
func handleHealth(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			logger.Error("health check failed", "error", err)
			writeJSON(w, map[string]string{"status": "unavailable"}, http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateTag validates a card tag for format.
func validateTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("tag is required")
	}
	if !validTagRegex.MatchString(tag) {
		return fmt.Errorf("tag must be 11 characters of hex digits and spaces")
	}
	return nil
}

// validateName validates a holder name field.
func validateName(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(value) > maxNameLength {
		return fmt.Errorf("%s too long (max %d characters)", field, maxNameLength)
	}
	return nil
}
