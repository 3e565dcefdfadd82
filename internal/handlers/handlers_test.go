package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"studytrack/internal/crypto"
	mw "studytrack/internal/middleware"
	"studytrack/internal/token"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func testCipher(t *testing.T) *crypto.PayloadCipher {
	t.Helper()
	c, err := crypto.NewPayloadCipher(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)
	return c
}

// jsonRequest builds a request carrying verified claims, as RequireAuth
// would have left them.
func jsonRequest(t *testing.T, method, path, body string, claims *token.Claims) *http.Request {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		req = req.WithContext(mw.WithClaims(req.Context(), *claims))
	}
	return req
}

// expectOwner sets up the credentials-version check every data operation
// performs before touching any table.
func expectOwner(mock sqlmock.Sqlmock, version int) {
	mock.ExpectQuery("SELECT creds_version FROM users WHERE id=").
		WillReturnRows(sqlmock.NewRows([]string{"creds_version"}).AddRow(version))
}
