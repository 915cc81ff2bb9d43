package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type testProvider struct {
	name      string
	available bool
}

func (p *testProvider) Name() string                       { return p.name }
func (p *testProvider) IsAvailable(_ context.Context) bool { return p.available }

func TestRegistry_GetBuildsOnce(t *testing.T) {
	reg := NewRegistry[*testProvider]()
	builds := 0
	reg.Register("elevenlabs", func() (*testProvider, error) {
		builds++
		return &testProvider{name: "elevenlabs", available: true}, nil
	})

	for i := 0; i < 3; i++ {
		p, err := reg.Get("elevenlabs")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if p.Name() != "elevenlabs" {
			t.Errorf("name = %q", p.Name())
		}
	}
	if builds != 1 {
		t.Errorf("factory called %d times, want 1", builds)
	}
}

func TestRegistry_Unregistered(t *testing.T) {
	reg := NewRegistry[*testProvider]()
	reg.Register("a", func() (*testProvider, error) { return &testProvider{name: "a"}, nil })
	_, err := reg.Get("missing")
	if err == nil || !strings.Contains(err.Error(), "not registered") || !strings.Contains(err.Error(), "[a]") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := NewRegistry[*testProvider]()
	boom := errors.New("missing api key")
	reg.Register("bad", func() (*testProvider, error) { return nil, boom })
	if _, err := reg.Get("bad"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped factory error, got %v", err)
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	reg := NewRegistry[*testProvider]()
	reg.Register("openai", func() (*testProvider, error) { return &testProvider{}, nil })
	reg.Register("elevenlabs", func() (*testProvider, error) { return &testProvider{}, nil })
	names := reg.List()
	if len(names) != 2 || names[0] != "elevenlabs" || names[1] != "openai" {
		t.Errorf("List() = %v", names)
	}
}
