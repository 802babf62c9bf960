package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf, Component: ComponentHTTP})

	logger.WithComponent(ComponentStorage).Info("saved", FieldExpenseID, "abc")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentStorage {
		t.Fatalf("expected component storage, got %v", rec[FieldComponent])
	}
	if rec[FieldExpenseID] != "abc" {
		t.Fatalf("expected expense id field, got %v", rec[FieldExpenseID])
	}
}

func TestNewHandlerFormats(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSON, FormatPretty} {
		var buf bytes.Buffer
		l := New(Config{Level: slog.LevelInfo, Format: format, Output: &buf})
		l.Info("hello")
		if !strings.Contains(buf.String(), "hello") {
			t.Fatalf("%s: expected message in output, got %q", format, buf.String())
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard().WithComponent("x")
	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Fatalf("expected logger from context")
	}
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %q", got.Component())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: FormatJSON, Output: &buf})

	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
		t.Fatalf("expected request id in log, got %q", buf.String())
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithError(nil).WithOperation(OpCreate)
	if _, ok := f[FieldError]; ok {
		t.Fatalf("nil error must not add a field")
	}
	f.WithError(errors.New("boom"))
	if f[FieldError] != "boom" {
		t.Fatalf("expected error text")
	}
	if len(f.ToSlice()) != 4 {
		t.Fatalf("expected 2 pairs, got %v", f.ToSlice())
	}
}
