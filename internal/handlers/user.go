package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"studytrack/internal/models"
	"studytrack/internal/token"
)

type UserHandler struct {
	db          *sqlx.DB
	tokens      *token.Service
	tokenTTL    time.Duration
	passwordTTL time.Duration
}

func NewUserHandler(db *sqlx.DB, tokens *token.Service, tokenTTL, passwordTTL time.Duration) *UserHandler {
	return &UserHandler{db: db, tokens: tokens, tokenTTL: tokenTTL, passwordTTL: passwordTTL}
}

type credentials struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

// Ping is the connection-test endpoint; it always answers 403.
func (h *UserHandler) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusForbidden)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.User == "" || c.Pass == "" {
		http.Error(w, "user and pass required", http.StatusBadRequest)
		return
	}

	var user models.User
	err := h.db.GetContext(r.Context(), &user, `SELECT id, username, password_hash, creds_version, created_at FROM users WHERE username=$1`, c.User)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(c.Pass)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	tok, err := h.tokens.Issue(user.ID, user.CredsVersion, h.tokenTTL)
	if err != nil {
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"token": tok})
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.User == "" || c.Pass == "" {
		http.Error(w, "user and pass required", http.StatusBadRequest)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(c.Pass), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "could not hash password", http.StatusInternalServerError)
		return
	}

	_, err = h.db.ExecContext(r.Context(), `INSERT INTO users (username, password_hash) VALUES ($1, $2)`, c.User, string(hashed))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			http.Error(w, "Username taken.", http.StatusForbidden)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveAccount(w, r)
	if !ok {
		return
	}

	// Owned activity, questionnaire, and sensor rows go with the account via
	// ON DELETE CASCADE.
	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM users WHERE id=$1`, userID); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewPass string `json:"newPass"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.NewPass == "" {
		http.Error(w, "newPass required", http.StatusBadRequest)
		return
	}

	userID, ok := h.resolveAccount(w, r)
	if !ok {
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.NewPass), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "could not hash password", http.StatusInternalServerError)
		return
	}

	// Bumping creds_version invalidates every previously issued token; the
	// short-lived replacement below is the only one that matches.
	var newVersion int
	err = h.db.QueryRowxContext(r.Context(), `UPDATE users SET password_hash=$1, creds_version=creds_version+1 WHERE id=$2 RETURNING creds_version`, string(hashed), userID).Scan(&newVersion)
	if errors.Is(err, sql.ErrNoRows) {
		// The account was deleted after the token check.
		http.Error(w, "User does not exist.", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	tok, err := h.tokens.Issue(userID, newVersion, h.passwordTTL)
	if err != nil {
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"token": tok})
}

// Teapot answers any unmatched user route.
func (h *UserHandler) Teapot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

// resolveAccount distinguishes a vanished account (404) from a token issued
// against an older password (401). Data handlers collapse both onto 401; the
// account endpoints surface 404 so a client can tell deletion from expiry.
func (h *UserHandler) resolveAccount(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims, ok := claimsFrom(r)
	if !ok {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return 0, false
	}
	var version int
	err := h.db.GetContext(r.Context(), &version, `SELECT creds_version FROM users WHERE id=$1`, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "User does not exist.", http.StatusNotFound)
			return 0, false
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return 0, false
	}
	if version != claims.CredsVersion {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return 0, false
	}
	return claims.UserID, true
}
