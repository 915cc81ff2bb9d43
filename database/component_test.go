package database

import (
	"context"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/hvacform/component"
	"github.com/kbukum/hvacform/logger"
)

func memoryConfig() Config {
	return Config{Enabled: true, DSN: ":memory:", MaxRetries: 1}
}

func TestComponent_Lifecycle(t *testing.T) {
	comp := NewComponent(memoryConfig(), logger.Nop())
	ctx := context.Background()

	if comp.Name() != "database" {
		t.Errorf("Name() = %q", comp.Name())
	}
	if comp.DB() != nil {
		t.Error("DB() should be nil before Start")
	}
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if comp.DB() == nil {
		t.Fatal("DB() should not be nil after Start")
	}
	if err := comp.DB().PingContext(ctx); err != nil {
		t.Errorf("PingContext() failed: %v", err)
	}
	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	// Close is idempotent.
	if err := comp.DB().Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestComponent_WithDriver(t *testing.T) {
	called := false
	comp := NewComponent(memoryConfig(), logger.Nop())
	result := comp.WithDriver(func(dsn string) gorm.Dialector {
		called = true
		return sqlite.Open(dsn)
	})
	if result != comp {
		t.Error("WithDriver() should return the component for chaining")
	}
	ctx := context.Background()
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer comp.Stop(ctx) //nolint:errcheck
	if !called {
		t.Error("custom driver was not used")
	}
}

func TestComponent_UnsupportedDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Driver = "postgres"
	comp := NewComponent(cfg, logger.Nop())
	err := comp.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("Start() = %v, want unsupported driver", err)
	}
}

func TestComponent_AutoMigrate(t *testing.T) {
	type Note struct {
		BaseModel
		Body string
	}

	tests := []struct {
		name        string
		autoMigrate bool
		wantTable   bool
	}{
		{"enabled", true, true},
		{"disabled", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			cfg.AutoMigrate = tt.autoMigrate
			comp := NewComponent(cfg, logger.Nop()).WithAutoMigrate(&Note{})

			ctx := context.Background()
			if err := comp.Start(ctx); err != nil {
				t.Fatalf("Start() failed: %v", err)
			}
			defer comp.Stop(ctx) //nolint:errcheck

			if got := comp.DB().GormDB.Migrator().HasTable(&Note{}); got != tt.wantTable {
				t.Errorf("HasTable = %v, want %v", got, tt.wantTable)
			}
		})
	}
}

func TestComponent_Health(t *testing.T) {
	comp := NewComponent(memoryConfig(), logger.Nop())
	ctx := context.Background()

	h := comp.Health(ctx)
	if h.Status != component.StatusUnhealthy || h.Message != "database not initialized" {
		t.Errorf("before start: %+v", h)
	}

	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	h = comp.Health(ctx)
	if h.Name != "database" || h.Status != component.StatusHealthy {
		t.Errorf("after start: %+v", h)
	}

	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if h = comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("after stop: %+v", h)
	}
}

func TestComponent_Describe(t *testing.T) {
	cfg := Config{Enabled: true, DSN: "data/forms.db", AutoMigrate: true}
	desc := NewComponent(cfg, logger.Nop()).Describe()

	if desc.Name != "Database" || desc.Type != "database" {
		t.Errorf("Describe() = %+v", desc)
	}
	for _, want := range []string{"sqlite", "dsn=data/forms.db", "pool=1/1", "auto-migrate=on"} {
		if !strings.Contains(desc.Details, want) {
			t.Errorf("Details %q missing %q", desc.Details, want)
		}
	}
}

func TestComponent_StopBeforeStart(t *testing.T) {
	comp := NewComponent(memoryConfig(), logger.Nop())
	if err := comp.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() before Start() should not error: %v", err)
	}
}

var _ component.Describable = (*Component)(nil)
