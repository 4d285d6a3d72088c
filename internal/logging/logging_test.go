package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func bufferLogger(t *testing.T, format Format) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = LevelDebug
	cfg.Format = format
	cfg.Writer = &buf
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return logger, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not a JSON line: %v\n%s", err, buf.String())
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil || parsed != level {
			t.Errorf("LevelString(%v) does not round trip", level)
		}
	}
}

func TestJSONFormatWithComponent(t *testing.T) {
	logger, buf := bufferLogger(t, FormatJSON)
	logger.Info("case evaluated", "risk", 22)

	entry := decodeLine(t, buf)
	if entry["msg"] != "case evaluated" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["component"] != "casetrace" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["risk"] != float64(22) {
		t.Errorf("risk = %v", entry["risk"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelWarn, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn entry missing")
	}
}

func TestRedactsSensitiveKeys(t *testing.T) {
	logger, buf := bufferLogger(t, FormatJSON)
	logger.Info("request", "api_key", "sk-123", "archive_secret", "hunter2", "case_hash", "abc")

	entry := decodeLine(t, buf)
	if entry["api_key"] != Redacted || entry["archive_secret"] != Redacted {
		t.Errorf("sensitive values leaked: %v", entry)
	}
	if entry["case_hash"] != "abc" {
		t.Errorf("case_hash should not be redacted: %v", entry["case_hash"])
	}
}

func TestRedactsValuePatterns(t *testing.T) {
	logger, buf := bufferLogger(t, FormatJSON)
	logger.Warn("upstream said Bearer abc.def-123 was rejected", "detail", "header Bearer xyz")

	out := buf.String()
	if strings.Contains(out, "abc.def-123") || strings.Contains(out, "xyz") {
		t.Errorf("bearer token leaked: %s", out)
	}
}

func TestInvalidRedactPattern(t *testing.T) {
	_, err := New(&Config{RedactPatterns: []string{"("}, Writer: &bytes.Buffer{}})
	if err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"user_password", true},
		{"secret", true},
		{"api_key", true},
		{"apikey", true},
		{"auth_token", true},
		{"access-token", true},
		{"private.key", true},
		{"session_id", true},
		{"case_hash", false},
		{"keystroke", false},
		{"monkey", false},
		{"authority", false},
		{"risk", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if got := shouldRedact(test.key); got != test.expected {
				t.Errorf("shouldRedact(%q) = %v, expected %v", test.key, got, test.expected)
			}
		})
	}
}

func TestRequestIDs(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-456")
	if got := RequestIDFromContext(ctx); got != "req-456" {
		t.Errorf("expected req-456, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	//nolint:staticcheck // nil context is handled deliberately
	if got := RequestIDFromContext(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}

	id1, id2 := NewRequestID(), NewRequestID()
	if id1 == "" || id1 == id2 {
		t.Errorf("NewRequestID returned %q and %q", id1, id2)
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	logger, buf := bufferLogger(t, FormatJSON)
	ctx := ContextWithRequestID(context.Background(), "req-789")
	logger.WithContext(ctx).WithComponent("engine").Debug("evaluated")

	entry := decodeLine(t, buf)
	if entry["request_id"] != "req-789" {
		t.Errorf("request_id = %v", entry["request_id"])
	}

	if logger.WithContext(context.Background()) != logger {
		t.Error("WithContext without an id should return the same logger")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "casetrace.log")
	logger, err := New(&Config{Output: "file", FilePath: path, Format: FormatJSON})
	if err != nil {
		t.Fatalf("failed to create file logger: %v", err)
	}
	logger.Info("first")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"first"`) {
		t.Errorf("log file content: %s", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("log file permissions = %o", info.Mode().Perm())
	}
}

func TestFileOutputRequiresPath(t *testing.T) {
	if _, err := New(&Config{Output: "file"}); err == nil {
		t.Error("expected error without file path")
	}
}
