package padron

import (
	"fmt"
	"strings"
)

// Column is one declared padron column.
type Column struct {
	Name     string
	Type     string
	Required bool
	Unique   bool
}

// Schema is a project's declared column list. The shape is fixed for the life
// of the table: changing it means dropping and recreating.
type Schema []Column

// Validate enforces the declaration rules: cuenta (unique) and nombre must be
// declared, names must survive sanitization, types must be allow-listed.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	seen := map[string]bool{}
	for _, c := range s {
		name := SanitizeColumnName(c.Name)
		if name == "" {
			return fmt.Errorf("column %q: empty name after sanitization", c.Name)
		}
		if seen[name] {
			return fmt.Errorf("column %q: duplicate name", name)
		}
		seen[name] = true
		if !allowedType(c.Type) {
			return fmt.Errorf("column %q: type %q not allowed", name, c.Type)
		}
	}
	if !seen["cuenta"] {
		return fmt.Errorf("schema must declare column cuenta")
	}
	if !seen["nombre"] {
		return fmt.Errorf("schema must declare column nombre")
	}
	for _, c := range s {
		if SanitizeColumnName(c.Name) == "cuenta" && !c.Unique {
			return fmt.Errorf("column cuenta must be declared unique")
		}
	}
	return nil
}

// ColumnNames returns the sanitized declared names, in declaration order.
func (s Schema) ColumnNames() []string {
	out := make([]string, 0, len(s))
	for _, c := range s {
		out = append(out, SanitizeColumnName(c.Name))
	}
	return out
}

// HasColumn reports whether name (after sanitization) is declared.
func (s Schema) HasColumn(name string) bool {
	name = SanitizeColumnName(name)
	for _, c := range s {
		if SanitizeColumnName(c.Name) == name {
			return true
		}
	}
	return false
}

func (s Schema) String() string {
	parts := make([]string, 0, len(s))
	for _, c := range s {
		parts = append(parts, SanitizeColumnName(c.Name)+" "+strings.ToUpper(c.Type))
	}
	return strings.Join(parts, ", ")
}
