package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx"

	"studytrack/internal/crypto"
	"studytrack/internal/models"
)

type DataHandler struct {
	db     *sqlx.DB
	cipher *crypto.PayloadCipher
}

func NewDataHandler(db *sqlx.DB, cipher *crypto.PayloadCipher) *DataHandler {
	return &DataHandler{db: db, cipher: cipher}
}

type timestampedRow struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func (h *DataHandler) GetQuestionnaireData(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveOwner(h.db, w, r)
	if !ok {
		return
	}

	rows, err := h.db.QueryxContext(r.Context(), `SELECT ts, payload FROM questionnaire_data WHERE user_id=$1`, userID)
	if err != nil {
		http.Error(w, "could not fetch", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	out := []timestampedRow{}
	for rows.Next() {
		var rec models.QuestionnaireRecord
		if err := rows.Scan(&rec.Timestamp, &rec.Payload); err != nil {
			http.Error(w, "could not fetch", http.StatusInternalServerError)
			return
		}
		plain, err := h.cipher.Decrypt(rec.Payload)
		if err != nil {
			http.Error(w, "could not decode payload", http.StatusInternalServerError)
			return
		}
		out = append(out, timestampedRow{Timestamp: rec.Timestamp, Data: json.RawMessage(plain)})
	}
	if err := rows.Err(); err != nil {
		http.Error(w, "could not fetch", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (h *DataHandler) GetActivityData(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveOwner(h.db, w, r)
	if !ok {
		return
	}

	rows, err := h.db.QueryxContext(r.Context(), `SELECT start_ts, end_ts, name FROM activity_data WHERE user_id=$1`, userID)
	if err != nil {
		http.Error(w, "could not fetch", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	out := []models.ActivityRecord{}
	for rows.Next() {
		var a models.ActivityRecord
		if err := rows.Scan(&a.Start, &a.End, &a.Name); err != nil {
			http.Error(w, "could not fetch", http.StatusInternalServerError)
			return
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		http.Error(w, "could not fetch", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// GetSensorData returns sensor rows with timestamp in [startTimestamp,
// endTimestamp). An inverted window matches nothing and yields an empty set,
// not an error.
func (h *DataHandler) GetSensorData(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StartTimestamp int64 `json:"startTimestamp"`
		EndTimestamp   int64 `json:"endTimestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.StartTimestamp == 0 || body.EndTimestamp == 0 {
		http.Error(w, "startTimestamp and endTimestamp required", http.StatusBadRequest)
		return
	}

	userID, ok := resolveOwner(h.db, w, r)
	if !ok {
		return
	}

	rows, err := h.db.QueryxContext(r.Context(), `SELECT ts, payload FROM accelerometer_data WHERE user_id=$1 AND ts>=$2 AND ts<$3`, userID, body.StartTimestamp, body.EndTimestamp)
	if err != nil {
		http.Error(w, "could not fetch", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	out := []timestampedRow{}
	for rows.Next() {
		var rec models.SensorRecord
		if err := rows.Scan(&rec.Timestamp, &rec.Payload); err != nil {
			http.Error(w, "could not fetch", http.StatusInternalServerError)
			return
		}
		plain, err := h.cipher.Decrypt(rec.Payload)
		if err != nil {
			http.Error(w, "could not decode payload", http.StatusInternalServerError)
			return
		}
		out = append(out, timestampedRow{Timestamp: rec.Timestamp, Data: json.RawMessage(plain)})
	}
	if err := rows.Err(); err != nil {
		http.Error(w, "could not fetch", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (h *DataHandler) SetQuestionnaireData(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Timestamp int64           `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Timestamp == 0 || !truthyJSON(body.Data) {
		http.Error(w, "timestamp and data required", http.StatusBadRequest)
		return
	}

	userID, ok := resolveOwner(h.db, w, r)
	if !ok {
		return
	}

	enc, err := h.cipher.Encrypt(string(body.Data))
	if err != nil {
		http.Error(w, "could not encode payload", http.StatusInternalServerError)
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `INSERT INTO questionnaire_data (user_id, ts, payload) VALUES ($1, $2, $3)`, userID, body.Timestamp, enc); err != nil {
		http.Error(w, "could not save", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type sensorItem struct {
	Timestamp int64           `json:"timestamp"`
	Values    json.RawMessage `json:"values"`
}

func (i sensorItem) valid() bool {
	return i.Timestamp != 0 && truthyJSON(i.Values)
}

// SetSensorData inserts a batch of sensor rows. An empty batch succeeds
// without touching the database. All rows are written inside one transaction,
// so a mid-batch failure leaves nothing applied.
func (h *DataHandler) SetSensorData(w http.ResponseWriter, r *http.Request) {
	var batch []sensorItem
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "array body required", http.StatusBadRequest)
		return
	}
	if len(batch) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	for _, item := range batch {
		if !item.valid() {
			http.Error(w, "invalid batch element", http.StatusUnauthorized)
			return
		}
	}

	userID, ok := resolveOwner(h.db, w, r)
	if !ok {
		return
	}

	tx, err := h.db.BeginTxx(r.Context(), nil)
	if err != nil {
		http.Error(w, "could not save", http.StatusInternalServerError)
		return
	}
	for _, item := range batch {
		enc, err := h.cipher.Encrypt(string(item.Values))
		if err != nil {
			tx.Rollback()
			http.Error(w, "could not encode payload", http.StatusInternalServerError)
			return
		}
		if _, err := tx.ExecContext(r.Context(), `INSERT INTO accelerometer_data (user_id, ts, payload) VALUES ($1, $2, $3)`, userID, item.Timestamp, enc); err != nil {
			tx.Rollback()
			http.Error(w, "could not save", http.StatusInternalServerError)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		http.Error(w, "could not save", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *DataHandler) SetActivityData(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Start int64  `json:"start"`
		End   int64  `json:"end"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Start == 0 || body.End == 0 || body.Name == "" {
		http.Error(w, "start, end and name required", http.StatusBadRequest)
		return
	}

	userID, ok := resolveOwner(h.db, w, r)
	if !ok {
		return
	}

	if _, err := h.db.ExecContext(r.Context(), `INSERT INTO activity_data (user_id, start_ts, end_ts, name) VALUES ($1, $2, $3, $4)`, userID, body.Start, body.End, body.Name); err != nil {
		http.Error(w, "could not save", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteActivity removes the activity matching (owner, start, end). Deleting
// a pair that does not exist is still a success.
func (h *DataHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Start == 0 || body.End == 0 {
		http.Error(w, "start and end required", http.StatusBadRequest)
		return
	}

	userID, ok := resolveOwner(h.db, w, r)
	if !ok {
		return
	}

	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM activity_data WHERE user_id=$1 AND start_ts=$2 AND end_ts=$3`, userID, body.Start, body.End); err != nil {
		http.Error(w, "could not delete", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteData clears every record the user owns across all three tables in a
// single transaction: either all tables are cleared or none are.
func (h *DataHandler) DeleteData(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveOwner(h.db, w, r)
	if !ok {
		return
	}

	tx, err := h.db.BeginTxx(r.Context(), nil)
	if err != nil {
		http.Error(w, "could not delete", http.StatusInternalServerError)
		return
	}
	for _, stmt := range []string{
		`DELETE FROM accelerometer_data WHERE user_id=$1`,
		`DELETE FROM questionnaire_data WHERE user_id=$1`,
		`DELETE FROM activity_data WHERE user_id=$1`,
	} {
		if _, err := tx.ExecContext(r.Context(), stmt, userID); err != nil {
			tx.Rollback()
			http.Error(w, "could not delete", http.StatusInternalServerError)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		http.Error(w, "could not delete", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Teapot answers any unmatched data route. Deliberate: unimplemented routes
// are signalled distinctly from plain 404s.
func (h *DataHandler) Teapot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}
