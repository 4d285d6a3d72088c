// Package archive stores evaluated case reports in SQLite.
//
// Integrity model:
//  1. File permissions: 0600 (owner read/write only)
//  2. Each row carries an HMAC over every stored column
//  3. The stored digest is rechecked against the report bytes on read
//
// The HMAC key is derived from a configured secret with HKDF-SHA256, so
// the secret itself never keys the MAC directly.
package archive

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/hkdf"

	"casetrace/internal/engine"
)

var (
	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("archive: report not found")
	// ErrIntegrity is returned when a row fails HMAC or digest checks.
	ErrIntegrity = errors.New("archive: integrity check failed")
	// ErrNoSecret is returned by Open when the secret is empty.
	ErrNoSecret = errors.New("archive: secret is required")
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
    id          TEXT PRIMARY KEY,
    case_hash   TEXT NOT NULL,
    digest      TEXT NOT NULL,
    risk        INTEGER NOT NULL,
    tier        TEXT NOT NULL,
    report      BLOB NOT NULL,
    created_ns  INTEGER NOT NULL,
    hmac        BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_ns);
CREATE INDEX IF NOT EXISTS idx_reports_case ON reports(case_hash, created_ns);
`

const (
	hkdfSalt = "casetrace-archive"
	hkdfInfo = "report-hmac-v1"
	macLabel = "casetrace-report-v1"
)

// Entry describes an archived report without its body.
type Entry struct {
	ID        string    `json:"id"`
	CaseHash  string    `json:"caseHash"`
	Digest    string    `json:"digest"`
	Risk      int       `json:"risk"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"createdAt"`
}

// Record is an archived report. Report holds the canonical JSON encoding.
type Record struct {
	Entry
	Report json.RawMessage `json:"report"`
}

// Archive is a SQLite-backed report store. It is safe for concurrent use.
type Archive struct {
	db  *sql.DB
	key []byte
	now func() time.Time
}

// DeriveKey derives the 32-byte row HMAC key from secret.
func DeriveKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, secret, []byte(hkdfSalt), []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Open opens or creates the archive database at path.
func Open(path string, secret []byte) (*Archive, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	// The schema statement creates the file, so permissions are set after.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		db.Close()
		return nil, fmt.Errorf("set archive permissions: %w", err)
	}

	return &Archive{db: db, key: key, now: time.Now}, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Save stores r and returns its entry.
func (a *Archive) Save(ctx context.Context, r *engine.Report) (Entry, error) {
	if r == nil {
		return Entry{}, errors.New("archive: nil report")
	}
	body, err := r.Canonical()
	if err != nil {
		return Entry{}, err
	}
	sum := sha256.Sum256(body)

	e := Entry{
		ID:        uuid.NewString(),
		CaseHash:  r.CaseHash,
		Digest:    hex.EncodeToString(sum[:]),
		Risk:      int(r.Risk),
		Tier:      string(r.Tier),
		CreatedAt: a.now().UTC(),
	}
	mac := a.mac(e, body)

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO reports (id, case_hash, digest, risk, tier, report, created_ns, hmac)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CaseHash, e.Digest, e.Risk, e.Tier, body, e.CreatedAt.UnixNano(), mac,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert report: %w", err)
	}
	return e, nil
}

// Get loads the report with the given id and verifies it.
func (a *Archive) Get(ctx context.Context, id string) (*Record, error) {
	var (
		rec       Record
		body, mac []byte
		createdNs int64
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT id, case_hash, digest, risk, tier, report, created_ns, hmac
		FROM reports WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.CaseHash, &rec.Digest, &rec.Risk, &rec.Tier, &body, &createdNs, &mac)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	rec.CreatedAt = time.Unix(0, createdNs).UTC()

	if !hmac.Equal(mac, a.mac(rec.Entry, body)) {
		return nil, fmt.Errorf("%w: hmac mismatch for %s", ErrIntegrity, id)
	}
	sum := sha256.Sum256(body)
	if hex.EncodeToString(sum[:]) != rec.Digest {
		return nil, fmt.Errorf("%w: digest mismatch for %s", ErrIntegrity, id)
	}

	rec.Report = body
	return &rec, nil
}

// List returns up to limit entries, newest first. limit <= 0 means all.
// Rows are not verified; use Get for that.
func (a *Archive) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, case_hash, digest, risk, tier, created_ns
		FROM reports ORDER BY created_ns DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var createdNs int64
		if err := rows.Scan(&e.ID, &e.CaseHash, &e.Digest, &e.Risk, &e.Tier, &createdNs); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdNs).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a *Archive) mac(e Entry, body []byte) []byte {
	h := hmac.New(sha256.New, a.key)
	h.Write([]byte(macLabel))
	for _, field := range [][]byte{[]byte(e.ID), []byte(e.CaseHash), []byte(e.Digest), []byte(e.Tier), body} {
		h.Write(binary.BigEndian.AppendUint64(nil, uint64(len(field))))
		h.Write(field)
	}
	h.Write(binary.BigEndian.AppendUint64(nil, uint64(e.Risk)))
	h.Write(binary.BigEndian.AppendUint64(nil, uint64(e.CreatedAt.UnixNano())))
	return h.Sum(nil)
}
