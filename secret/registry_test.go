package secret

import (
	"errors"
	"reflect"
	"testing"
)

func TestRegistry_RegisterAndCreate(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("stub", func(cfg map[string]any) (Provider, error) {
		return &stubProvider{name: "stub"}, nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	p, err := reg.Create("stub", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Name() != "stub" {
		t.Fatalf("Create() = %q provider", p.Name())
	}
}

func TestRegistry_InvalidRegistration(t *testing.T) {
	reg := NewRegistry()
	factory := func(map[string]any) (Provider, error) { return &stubProvider{name: "stub"}, nil }

	if err := reg.Register(" ", factory); !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("Register(blank) error = %v", err)
	}
	if err := reg.Register("stub", nil); !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("Register(nil factory) error = %v", err)
	}
	_ = reg.Register("stub", factory)
	if err := reg.Register("stub", factory); !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("duplicate Register() error = %v", err)
	}
}

func TestRegistry_CreateUnknown(t *testing.T) {
	if _, err := NewRegistry().Create("vault", nil); !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("Create() error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	reg := NewDefaultRegistry()
	if got := reg.List(); !reflect.DeepEqual(got, []string{"env", "file"}) {
		t.Fatalf("List() = %v", got)
	}

	p, err := reg.Create("file", map[string]any{"dir": "/run/secrets"})
	if err != nil {
		t.Fatalf("Create(file) error = %v", err)
	}
	if fp, ok := p.(FileProvider); !ok || fp.Dir != "/run/secrets" {
		t.Errorf("Create(file) = %#v", p)
	}
}
