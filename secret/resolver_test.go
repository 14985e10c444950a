package secret

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name   string
	values map[string]string
	closed bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := s.values[ref]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		ref      string
		ok       bool
	}{
		{"secretref:env:STUDIO_KEY", "env", "STUDIO_KEY", true},
		{"secretref:file:/run/secrets/key", "file", "/run/secrets/key", true},
		{"secretref:env:", "", "", false},
		{"secretref::x", "", "", false},
		{"secretref:env", "", "", false},
		{"literal", "", "", false},
	}
	for _, tt := range tests {
		provider, ref, ok := ParseSecretRef(tt.in)
		if provider != tt.provider || ref != tt.ref || ok != tt.ok {
			t.Errorf("ParseSecretRef(%q) = %q, %q, %v", tt.in, provider, ref, ok)
		}
	}
}

func TestResolver_ResolveValue(t *testing.T) {
	t.Setenv("GRAPHCACHE_PROVIDER", "stub")
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"bypass": "s3cret", "empty": ""}})
	ctx := context.Background()

	got, err := r.ResolveValue(ctx, "secretref:stub:bypass")
	if err != nil || got != "s3cret" {
		t.Fatalf("ResolveValue(ref) = %q, %v", got, err)
	}

	got, err = r.ResolveValue(ctx, "secretref:${GRAPHCACHE_PROVIDER}:bypass")
	if err != nil || got != "s3cret" {
		t.Fatalf("ResolveValue(expanded ref) = %q, %v", got, err)
	}

	got, err = r.ResolveValue(ctx, "literal-key")
	if err != nil || got != "literal-key" {
		t.Fatalf("ResolveValue(literal) = %q, %v", got, err)
	}

	if _, err := r.ResolveValue(ctx, "secretref:vault:x"); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("unknown provider error = %v", err)
	}
	if _, err := r.ResolveValue(ctx, "secretref:stub:empty"); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("strict empty error = %v", err)
	}
	if _, err := r.ResolveValue(ctx, "secretref:stub:missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing ref error = %v", err)
	}
	if _, err := r.ResolveValue(ctx, "${GRAPHCACHE_UNSET_VAR}"); !errors.Is(err, ErrMissingEnv) {
		t.Errorf("missing env error = %v", err)
	}
}

func TestResolver_NonStrictAllowsEmpty(t *testing.T) {
	r := NewResolver(false, &stubProvider{name: "stub", values: map[string]string{"empty": ""}})
	got, err := r.ResolveValue(context.Background(), "secretref:stub:empty")
	if err != nil || got != "" {
		t.Fatalf("ResolveValue() = %q, %v", got, err)
	}
}

func TestResolver_Close(t *testing.T) {
	p := &stubProvider{name: "stub"}
	r := NewResolver(false, p, nil)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !p.closed {
		t.Error("provider not closed")
	}
}
