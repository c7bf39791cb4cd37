package testutil

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"kanbanBackend/internal/db"
)

// OpenInMemoryDB opens a named in-memory SQLite database with migrations applied.
// The database is closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	// Shared cache lets every pooled connection see the same database.
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// GenerateJWTHS256 signs a token carrying the given user id. A zero exp
// leaves the expiry claim out.
func GenerateJWTHS256(t *testing.T, secret string, userID int64, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"id": userID}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
