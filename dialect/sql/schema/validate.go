package schema

import (
	"fmt"
	"strings"

	modelschema "github.com/syssam/quarry/schema"
	"github.com/syssam/quarry/schema/field"
)

// ValidationError represents a definition validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of definition validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the validation errors joined into one error, or nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("invalid definition: %s", strings.Join(msgs, "; "))
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateDefinition validates a single model definition.
func ValidateDefinition(def *modelschema.Definition) *ValidationResult {
	result := &ValidationResult{}
	table := def.Table()
	if table == "" {
		result.Errors = append(result.Errors, &ValidationError{Message: "table name is empty"})
	}
	if def.PrimaryKey() == "" {
		result.Errors = append(result.Errors, &ValidationError{Table: table, Message: "primary key name is empty"})
	}
	if err := def.Err(); err != nil {
		result.Errors = append(result.Errors, &ValidationError{Table: table, Message: err.Error()})
	}

	colNames := make(map[string]bool)
	for _, fd := range def.Fields() {
		switch {
		case fd.Name == "":
			result.Errors = append(result.Errors, &ValidationError{Table: table, Message: "column with empty name"})
			continue
		case colNames[fd.Name]:
			result.Errors = append(result.Errors, &ValidationError{Table: table, Column: fd.Name, Message: "duplicate column name"})
		case !fd.Type.Valid():
			result.Errors = append(result.Errors, &ValidationError{Table: table, Column: fd.Name, Message: "invalid column type"})
		}
		colNames[fd.Name] = true

		if fd.Name == def.PrimaryKey() {
			if fd.Type != field.TypeInt {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   table,
					Column:  fd.Name,
					Message: fmt.Sprintf("primary key must be an auto-increment int, got %s", fd.Type),
				})
			} else {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   table,
					Column:  fd.Name,
					Message: "primary key is managed by the database; attribute ignored",
				})
			}
		}
		if def.Timestamps() && fd.Default != nil && (fd.Name == modelschema.CreatedAt || fd.Name == modelschema.UpdatedAt) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   table,
				Column:  fd.Name,
				Message: "default ignored on managed timestamp column",
			})
		}
	}
	return result
}

// ValidateDefinitions validates all definitions of a registry.
func ValidateDefinitions(defs []*modelschema.Definition) *ValidationResult {
	result := &ValidationResult{}
	tableNames := make(map[string]bool)
	for _, def := range defs {
		if tableNames[def.Table()] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   def.Table(),
				Message: "duplicate table name",
			})
		}
		tableNames[def.Table()] = true

		r := ValidateDefinition(def)
		result.Errors = append(result.Errors, r.Errors...)
		result.Warnings = append(result.Warnings, r.Warnings...)
	}
	return result
}
