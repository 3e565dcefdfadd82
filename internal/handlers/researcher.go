package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"studytrack/internal/crypto"
	"studytrack/internal/models"
)

// ResearcherHandler serves the credential-per-call read path. Researchers
// never hold tokens; every request carries its own username and password.
// Intentional policy, not an omission.
type ResearcherHandler struct {
	db     *sqlx.DB
	cipher *crypto.PayloadCipher
}

func NewResearcherHandler(db *sqlx.DB, cipher *crypto.PayloadCipher) *ResearcherHandler {
	return &ResearcherHandler{db: db, cipher: cipher}
}

type researcherRequest struct {
	User   string `json:"user"`
	Pass   string `json:"pass"`
	UserID int64  `json:"userId"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
}

func (req researcherRequest) valid() bool {
	return req.User != "" && req.Pass != "" && req.UserID != 0 && req.Start != 0 && req.End != 0
}

type researcherRow struct {
	UserID    int64           `json:"userId"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// GetData returns questionnaire and sensor rows for the target user within
// [start, end), combined in one response.
func (h *ResearcherHandler) GetData(w http.ResponseWriter, r *http.Request) {
	var req researcherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.valid() {
		http.Error(w, "user, pass, userId, start and end required", http.StatusBadRequest)
		return
	}

	var researcher models.Researcher
	err := h.db.GetContext(r.Context(), &researcher, `SELECT id, username, password_hash FROM researchers WHERE username=$1`, req.User)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(researcher.PasswordHash), []byte(req.Pass)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	questionnaire, err := h.fetchRows(r, `SELECT user_id, ts, payload FROM questionnaire_data WHERE user_id=$1 AND ts>=$2 AND ts<$3`, req)
	if err != nil {
		http.Error(w, "could not fetch", http.StatusInternalServerError)
		return
	}
	accelerometer, err := h.fetchRows(r, `SELECT user_id, ts, payload FROM accelerometer_data WHERE user_id=$1 AND ts>=$2 AND ts<$3`, req)
	if err != nil {
		http.Error(w, "could not fetch", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"questionnaireData": questionnaire,
		"accelerometerData": accelerometer,
	})
}

func (h *ResearcherHandler) fetchRows(r *http.Request, query string, req researcherRequest) ([]researcherRow, error) {
	rows, err := h.db.QueryxContext(r.Context(), query, req.UserID, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []researcherRow{}
	for rows.Next() {
		var row researcherRow
		var payload string
		if err := rows.Scan(&row.UserID, &row.Timestamp, &payload); err != nil {
			return nil, err
		}
		plain, err := h.cipher.Decrypt(payload)
		if err != nil {
			return nil, err
		}
		row.Data = json.RawMessage(plain)
		out = append(out, row)
	}
	return out, rows.Err()
}
