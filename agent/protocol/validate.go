package protocol

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	toolx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/tool"
)

// Validate checks args against the operation's declared parameters. Every
// failure wraps contractx.ErrValidation.
func Validate(spec toolx.OperationSpec, args map[string]any) error {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := spec.Params[name]; !ok {
			return fmt.Errorf("%w: %s does not accept %q", contractx.ErrValidation, spec.Name, name)
		}
	}

	required := make([]string, 0, len(spec.Params))
	for name, p := range spec.Params {
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	for _, name := range required {
		if v, ok := args[name]; !ok || v == nil {
			return fmt.Errorf("%w: %s requires %q", contractx.ErrValidation, spec.Name, name)
		}
	}

	for _, name := range names {
		if err := validateParam(name, spec.Params[name], args[name]); err != nil {
			return fmt.Errorf("%w: %s: %s", contractx.ErrValidation, spec.Name, err.Error())
		}
	}
	return nil
}

func validateParam(name string, p toolx.ParamSpec, v any) error {
	switch p.Type {
	case schema.Integer:
		n, err := toolx.IntArg(map[string]any{name: v}, name)
		if err != nil {
			return fmt.Errorf("%s must be an integer", name)
		}
		if p.Min != nil && n < *p.Min {
			return fmt.Errorf("%s must be >= %d, got %d", name, *p.Min, n)
		}
		if p.Max != nil && n > *p.Max {
			return fmt.Errorf("%s must be <= %d, got %d", name, *p.Max, n)
		}
	case schema.String:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", name)
		}
		if p.Required && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, s) {
			return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(p.Enum, "|"), s)
		}
	case schema.Boolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%s must be a boolean", name)
		}
	}
	return nil
}
