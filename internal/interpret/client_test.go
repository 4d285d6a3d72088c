package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casetrace/internal/casefile"
	"casetrace/internal/consensus"
	"casetrace/internal/logging"
)

func fastConfig(url string) Config {
	return Config{
		Endpoint:    url,
		APIKey:      "test-key",
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		RatePerSec:  -1,
	}
}

func TestInterpretSendsSummaryAndMode(t *testing.T) {
	var got struct {
		Summary json.RawMessage `json:"summary"`
		Mode    string          `json:"mode"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"output":"interpreted"}`))
	}))
	defer srv.Close()

	c := New(fastConfig(srv.URL), nil)
	out, err := c.Interpret(context.Background(), &casefile.Summary{Jurisdiction: "UAE"}, consensus.ModeLegal)
	require.NoError(t, err)
	assert.Equal(t, "interpreted", out)
	assert.Equal(t, "legal", got.Mode)
	assert.Contains(t, string(got.Summary), `"jurisdiction":"UAE"`)
}

func TestInterpretPropagatesRequestID(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Request-ID")
		_, _ = w.Write([]byte(`{"output":"ok"}`))
	}))
	defer srv.Close()

	ctx := logging.ContextWithRequestID(context.Background(), "run-42")
	_, err := New(fastConfig(srv.URL), nil).Interpret(ctx, nil, consensus.ModeCrosscheck)
	require.NoError(t, err)
	assert.Equal(t, "run-42/crosscheck", <-got)
}

func TestInterpretOutputTextFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output_text":"from output_text"}`))
	}))
	defer srv.Close()

	out, err := New(fastConfig(srv.URL), nil).Interpret(context.Background(), nil, consensus.ModePrimary)
	require.NoError(t, err)
	assert.Equal(t, "from output_text", out)
}

func TestInterpretRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"output":"third time"}`))
	}))
	defer srv.Close()

	out, err := New(fastConfig(srv.URL), nil).Interpret(context.Background(), nil, consensus.ModePrimary)
	require.NoError(t, err)
	assert.Equal(t, "third time", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestInterpretGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(fastConfig(srv.URL), nil).Interpret(context.Background(), nil, consensus.ModePrimary)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestInterpretDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(fastConfig(srv.URL), nil).Interpret(context.Background(), nil, consensus.ModePrimary)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "bad key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestInterpretBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := New(fastConfig(srv.URL), nil).Interpret(context.Background(), nil, consensus.ModePrimary)
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestInterpretHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(fastConfig(srv.URL), nil).Interpret(ctx, nil, consensus.ModePrimary)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInterpretNoEndpoint(t *testing.T) {
	_, err := New(Config{}, nil).Interpret(context.Background(), nil, consensus.ModePrimary)
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestClientDrivesArbitrator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":"same answer"}`))
	}))
	defer srv.Close()

	a := &consensus.Arbitrator{Interpreter: New(fastConfig(srv.URL), nil), Timeout: 5 * time.Second}
	res := a.Arbitrate(context.Background(), &casefile.Summary{})
	assert.Equal(t, consensus.OutcomeVerified, res.Mode)
	assert.Equal(t, "same answer", res.Output)
}
