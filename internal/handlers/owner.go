package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jmoiron/sqlx"

	mw "studytrack/internal/middleware"
	"studytrack/internal/token"
)

func claimsFrom(r *http.Request) (token.Claims, bool) {
	return mw.ClaimsFromContext(r.Context())
}

// resolveOwner re-derives the owning user from the verified claims on every
// data operation: the account must still exist and its credentials version
// must match the one the token was issued against. Anything else is treated
// the same as an invalid token. Writes the response itself on failure.
func resolveOwner(db *sqlx.DB, w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims, ok := claimsFrom(r)
	if !ok {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return 0, false
	}
	var version int
	err := db.GetContext(r.Context(), &version, `SELECT creds_version FROM users WHERE id=$1`, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
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
