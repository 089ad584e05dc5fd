// Package userstest provides an in-memory SQLite users_telegram table for tests.
package userstest

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Schema mirrors migrations/0001_users_telegram.up.sql in SQLite dialect.
const Schema = `
CREATE TABLE users_telegram (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    telegram_id         INTEGER   NOT NULL UNIQUE,
    username            TEXT,
    referral_code       TEXT      NOT NULL UNIQUE,
    referrer_id         INTEGER   REFERENCES users_telegram (id),
    full_name           TEXT,
    father_name         TEXT,
    mother_name         TEXT,
    birth_place         TEXT,
    birth_date          TEXT,
    registration_place  TEXT,
    record_number       TEXT,
    registration_number TEXT,
    national_id         TEXT,
    job_title           TEXT,
    job_position        TEXT,
    created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Open returns a fresh in-memory database with the users table created.
// A single connection keeps the in-memory database alive for the whole test.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}
