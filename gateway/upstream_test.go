package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUpstream_PostSendsQueryAndVariables(t *testing.T) {
	var got struct {
		Query     string          `json:"query"`
		Variables json.RawMessage `json:"variables"`
	}
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"data":{"ok":true}}`)
	}))
	defer srv.Close()

	body, status, err := NewUpstream(UpstreamConfig{}).Post(context.Background(), srv.URL,
		"{ ok }", json.RawMessage(`{"id":1}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if status != http.StatusOK || string(body) != `{"data":{"ok":true}}` {
		t.Errorf("Post() = %d %s", status, body)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if got.Query != "{ ok }" || string(got.Variables) != `{"id":1}` {
		t.Errorf("upstream saw %+v", got)
	}
}

func TestUpstream_PostSendsEmptyVariables(t *testing.T) {
	for _, vars := range []json.RawMessage{nil, {}} {
		var got map[string]json.RawMessage
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = io.WriteString(w, `{"data":{}}`)
		}))

		_, _, err := NewUpstream(UpstreamConfig{}).Post(context.Background(), srv.URL, "{ ok }", vars)
		srv.Close()
		if err != nil {
			t.Fatalf("Post() error = %v", err)
		}
		if v, ok := got["variables"]; !ok || string(v) != "{}" {
			t.Errorf("variables = %s (present %v), want {}", v, ok)
		}
	}
}

func TestUpstream_PostFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"errors":[]}`},
		{"rate limited", http.StatusTooManyRequests, `{}`},
		{"not json", http.StatusOK, `<html>bad gateway</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			body, status, err := NewUpstream(UpstreamConfig{}).Post(context.Background(), srv.URL, "{ ok }", nil)
			if !errors.Is(err, ErrUpstream) {
				t.Fatalf("Post() error = %v, want ErrUpstream", err)
			}
			var se *StatusError
			if isStatus := errors.As(err, &se); isStatus != (tt.status != http.StatusOK) {
				t.Errorf("Post() error %v: StatusError = %v", err, isStatus)
			}
			if body != nil || status != tt.status {
				t.Errorf("Post() = %d %s", status, body)
			}
		})
	}
}

func TestUpstream_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":"`+strings.Repeat("x", 64)+`"}`)
	}))
	defer srv.Close()

	_, _, err := NewUpstream(UpstreamConfig{MaxResponseBytes: 16}).Post(context.Background(), srv.URL, "{ ok }", nil)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Post() error = %v, want ErrUpstream", err)
	}
}

func TestUpstream_TransportErrorHidesEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL + "/api/s3cr3t/subgraphs/id/x"
	srv.Close()

	_, status, err := NewUpstream(UpstreamConfig{}).Post(context.Background(), target, "{ ok }", nil)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Post() error = %v, want ErrUpstream", err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if strings.Contains(err.Error(), "s3cr3t") {
		t.Errorf("error leaks endpoint: %v", err)
	}
}
