// Package demo holds the scenarios and fixture records replayed by the CLI.
package demo

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/records"
	"gopkg.in/yaml.v3"
)

var ErrUnknownScenario = errors.New("unknown scenario")

var (
	//go:embed scenarios.yaml
	scenariosYAML []byte

	//go:embed fixtures.yaml
	fixturesYAML []byte
)

type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Query       string `yaml:"query"`
}

type Fixtures struct {
	Customers []records.Customer `yaml:"customers"`
	Tickets   []records.Ticket   `yaml:"tickets"`
}

// Scenarios returns the embedded scenarios in file order.
func Scenarios() ([]Scenario, error) {
	var doc struct {
		Scenarios []Scenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(scenariosYAML, &doc); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}
	for i, s := range doc.Scenarios {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Query) == "" {
			return nil, fmt.Errorf("scenario %d: name and query are required", i)
		}
	}
	return doc.Scenarios, nil
}

// Select returns the named scenario, or every scenario for "all".
func Select(name string) ([]Scenario, error) {
	all, err := Scenarios()
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "all" {
		return all, nil
	}
	for _, s := range all {
		if s.Name == name {
			return []Scenario{s}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

func LoadFixtures() (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(fixturesYAML, &f); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return f, nil
}

// Seed loads the fixture records into s.
func Seed(ctx context.Context, s records.Seeder) error {
	f, err := LoadFixtures()
	if err != nil {
		return err
	}
	return s.Seed(ctx, f.Customers, f.Tickets)
}
