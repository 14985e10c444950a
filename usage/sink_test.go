package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jonwraymond/graphcache/observe"
)

func TestMultiSink(t *testing.T) {
	a, b := &MemorySink{}, &MemorySink{}
	failing := SinkFunc(func(ctx context.Context, p DataPoint) error { return errors.New("nope") })

	err := MultiSink{a, failing, b}.Write(context.Background(), Event{Key: "k"}.DataPoint())
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("Write() error = %v, want joined sink error", err)
	}
	if len(a.Points()) != 1 || len(b.Points()) != 1 {
		t.Error("every sink should receive the point")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: observe.NewLoggerWithWriter("info", &buf)}

	if err := sink.Write(context.Background(), Event{Kind: KindHit, Key: "gateway:s//k"}.DataPoint()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["message"] != "usage" {
		t.Errorf("message = %v", entry["message"])
	}
	idx, _ := entry["indexes"].([]any)
	if len(idx) != 1 || idx[0] != "gateway:s//k" {
		t.Errorf("indexes = %v", entry["indexes"])
	}

	if err := (LogSink{}).Write(context.Background(), DataPoint{}); err != nil {
		t.Errorf("nil logger Write() error = %v", err)
	}
}

func TestNewNATSSink_NilConn(t *testing.T) {
	if _, err := NewNATSSink(nil, ""); !errors.Is(err, ErrNilConn) {
		t.Fatalf("NewNATSSink(nil) error = %v, want ErrNilConn", err)
	}
}

func TestNATSSink_Publish(t *testing.T) {
	url := os.Getenv("GRAPHCACHE_TEST_NATS_URL")
	if url == "" {
		t.Skip("GRAPHCACHE_TEST_NATS_URL not set")
	}
	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("nats.Connect() error = %v", err)
	}
	defer conn.Close()

	subject := "graphcache.test.usage"
	sub, err := conn.SubscribeSync(subject)
	if err != nil {
		t.Fatalf("SubscribeSync() error = %v", err)
	}

	sink, err := NewNATSSink(conn, subject)
	if err != nil {
		t.Fatalf("NewNATSSink() error = %v", err)
	}
	if err := sink.Write(context.Background(), Event{Kind: KindWrite, Key: "k"}.DataPoint()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg() error = %v", err)
	}
	var point DataPoint
	if err := json.Unmarshal(msg.Data, &point); err != nil {
		t.Fatalf("payload is not a DataPoint: %v", err)
	}
	if point.Indexes[0] != "k" || point.Blobs[0] != "cache-write" {
		t.Errorf("point = %+v", point)
	}
}
