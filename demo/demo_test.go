package demo

import (
	"context"
	"errors"
	"testing"

	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/records"
)

func TestScenariosDecode(t *testing.T) {
	t.Parallel()

	all, err := Scenarios()
	if err != nil {
		t.Fatalf("Scenarios() error = %v", err)
	}
	if len(all) == 0 {
		t.Fatal("Scenarios() returned none")
	}
	seen := make(map[string]bool, len(all))
	for _, s := range all {
		if seen[s.Name] {
			t.Fatalf("duplicate scenario %q", s.Name)
		}
		seen[s.Name] = true
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	got, err := Select("escalation")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(got) != 1 || got[0].Query != "I've been charged twice, please refund immediately!" {
		t.Fatalf("Select() = %+v", got)
	}

	if _, err := Select("nope"); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("Select() error = %v, want ErrUnknownScenario", err)
	}
}

func TestSeedMemoryStore(t *testing.T) {
	t.Parallel()

	store := records.NewMemoryStore()
	if err := Seed(context.Background(), store); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	c, err := store.GetCustomer(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if c.Name != "Charlie Brown" {
		t.Fatalf("Name = %q", c.Name)
	}
	history, err := store.CustomerHistory(context.Background(), 8)
	if err != nil {
		t.Fatalf("CustomerHistory() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history = %d tickets, want 3", len(history))
	}
}
