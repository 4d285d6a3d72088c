package archive

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"casetrace/internal/casefile"
	"casetrace/internal/engine"
)

func testReport(t *testing.T, hash string) *engine.Report {
	t.Helper()
	e, err := engine.New(engine.Options{})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	return e.Evaluate(&casefile.Summary{
		Hash: hash,
		Statements: []casefile.Statement{
			{Claim: "location", Value: "home"},
			{Claim: "location", Value: "office"},
		},
	})
}

func openTest(t *testing.T, secret string) (*Archive, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "archive.db")
	a, err := Open(path, []byte(secret))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, path
}

func TestOpenRequiresSecret(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "a.db"), nil)
	if !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestOpenSetsPermissions(t *testing.T) {
	_, path := openTest(t, "s3cret")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
}

func TestSaveAndGet(t *testing.T) {
	a, _ := openTest(t, "s3cret")
	ctx := context.Background()
	r := testReport(t, "case-1")

	e, err := a.Save(ctx, r)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if e.ID == "" || e.CaseHash != "case-1" {
		t.Errorf("unexpected entry %+v", e)
	}

	digest, err := r.Digest()
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if e.Digest != digest {
		t.Errorf("archived digest %s, report digest %s", e.Digest, digest)
	}

	rec, err := a.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	canon, _ := r.Canonical()
	if !bytes.Equal(rec.Report, canon) {
		t.Error("stored report differs from canonical encoding")
	}
	if rec.Risk != int(r.Risk) || rec.Tier != string(r.Tier) {
		t.Errorf("risk/tier = %d/%s", rec.Risk, rec.Tier)
	}
	if !rec.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("created %v, want %v", rec.CreatedAt, e.CreatedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	a, _ := openTest(t, "s3cret")
	_, err := a.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTamperedRowFailsIntegrity(t *testing.T) {
	tests := []struct {
		name   string
		update string
	}{
		{"report body", `UPDATE reports SET report = '{"risk":0}' WHERE id = ?`},
		{"risk column", `UPDATE reports SET risk = 99 WHERE id = ?`},
		{"digest", `UPDATE reports SET digest = 'ff' WHERE id = ?`},
		{"hmac", `UPDATE reports SET hmac = X'00' WHERE id = ?`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := openTest(t, "s3cret")
			ctx := context.Background()
			e, err := a.Save(ctx, testReport(t, "case"))
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if _, err := a.db.Exec(tt.update, e.ID); err != nil {
				t.Fatalf("tamper: %v", err)
			}
			if _, err := a.Get(ctx, e.ID); !errors.Is(err, ErrIntegrity) {
				t.Fatalf("expected ErrIntegrity, got %v", err)
			}
		})
	}
}

func TestWrongSecretFailsIntegrity(t *testing.T) {
	a, path := openTest(t, "first")
	ctx := context.Background()
	e, err := a.Save(ctx, testReport(t, "case"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	a.Close()

	b, err := Open(path, []byte("second"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if _, err := b.Get(ctx, e.ID); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	a, _ := openTest(t, "s3cret")
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	a.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, h := range []string{"one", "two", "three"} {
		if _, err := a.Save(ctx, testReport(t, h)); err != nil {
			t.Fatalf("Save %s: %v", h, err)
		}
	}

	all, err := a.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	want := []string{"three", "two", "one"}
	for i, e := range all {
		if e.CaseHash != want[i] {
			t.Errorf("entry %d = %s, want %s", i, e.CaseHash, want[i])
		}
	}

	two, err := a.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(two) != 2 {
		t.Errorf("limit 2 returned %d", len(two))
	}
}

func TestListEmpty(t *testing.T) {
	a, _ := openTest(t, "s3cret")
	entries, err := a.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", entries)
	}
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	k2, _ := DeriveKey([]byte("secret"))
	k3, _ := DeriveKey([]byte("other"))

	if len(k1) != 32 {
		t.Errorf("key length %d", len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Error("same secret gave different keys")
	}
	if bytes.Equal(k1, k3) {
		t.Error("different secrets gave the same key")
	}
	if bytes.Equal(k1, []byte("secret")) {
		t.Error("key equals secret")
	}
}
