package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "Cache hit", F("cacheKey", "gateway:sub//abc"), F("count", 2))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	entry := lines[0]
	if entry["message"] != "Cache hit" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["cacheKey"] != "gateway:sub//abc" {
		t.Errorf("cacheKey = %v", entry["cacheKey"])
	}
	if entry["count"] != float64(2) {
		t.Errorf("count = %v", entry["count"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("missing time field")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (warn, error)", len(lines))
	}
	if lines[0]["level"] != "warn" || lines[1]["level"] != "error" {
		t.Errorf("levels = %v, %v", lines[0]["level"], lines[1]["level"])
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "resolved",
		F("identifier", "my-api-key"),
		F("credential", "s3cret"),
		F("name", "subgraphXYZ"),
	)

	out := buf.String()
	if strings.Contains(out, "my-api-key") || strings.Contains(out, "s3cret") {
		t.Fatalf("sensitive value leaked: %s", out)
	}
	entry := decodeLines(t, &buf)[0]
	if entry["identifier"] != redacted || entry["credential"] != redacted {
		t.Errorf("redacted fields = %v, %v", entry["identifier"], entry["credential"])
	}
	if entry["name"] != "subgraphXYZ" {
		t.Errorf("name = %v", entry["name"])
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)
	scoped := base.With(F("type", "gateway"), F("identifier", "key"))

	scoped.Info(context.Background(), "scoped")
	base.Info(context.Background(), "base")

	lines := decodeLines(t, &buf)
	if lines[0]["type"] != "gateway" || lines[0]["identifier"] != redacted {
		t.Errorf("scoped fields = %v", lines[0])
	}
	if _, ok := lines[1]["type"]; ok {
		t.Error("With() leaked fields into the parent logger")
	}
}

func TestLogger_ErrorValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Error(context.Background(), "failed", F("error", errors.New("boom")))

	if got := decodeLines(t, &buf)[0]["error"]; got != "boom" {
		t.Errorf("error = %v, want boom", got)
	}
}

func TestLogger_TraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.Info(ctx, "inside span")
	span.End()

	entry := decodeLines(t, &buf)[0]
	if entry["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v", entry["trace_id"])
	}
	if entry["span_id"] != span.SpanContext().SpanID().String() {
		t.Errorf("span_id = %v", entry["span_id"])
	}
}

func TestLogger_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Enabled: true, Level: "info", Format: "console", Output: &buf})

	logger.Info(context.Background(), "Cache miss")

	out := buf.String()
	if !strings.Contains(out, "Cache miss") {
		t.Errorf("console output missing message: %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console output looks like JSON: %q", out)
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", lockedWriter{&mu, &buf})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Info(context.Background(), "msg", F("i", i))
		}(i)
	}
	wg.Wait()

	if n := len(decodeLines(t, &buf)); n != 20 {
		t.Errorf("got %d lines, want 20", n)
	}
}

type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Info(context.Background(), "ignored", F("k", "v"))
	if l.With(F("a", 1)) == nil {
		t.Fatal("With() returned nil")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "debug",
		"info":  "info",
		"warn":  "warn",
		"error": "error",
		"":      "info",
		"bogus": "info",
	}
	for in, want := range cases {
		if got := ParseLogLevel(in).String(); got != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
