package models

import "fmt"

// ============================================================
// Construction errors
// ============================================================

// ConstraintError - попытка собрать сущность или аннотацию с недопустимым значением.
type ConstraintError struct {
	Kind       string
	Field      string
	Value      any
	Constraint string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s=%v violates %s", e.Kind, e.Field, e.Value, e.Constraint)
}

func constraint(kind, field string, value any, rule string) *ConstraintError {
	return &ConstraintError{Kind: kind, Field: field, Value: value, Constraint: rule}
}
