package validation

import (
	"encoding/json"
	"fmt"
	"math"
)

// ============================================================
// Severity
// ============================================================

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// ============================================================
// Violations
// ============================================================

// Violation - структурированная находка валидатора. Набор вариантов закрыт:
// MissingField, InvalidValue, BrokenReference, Custom.
type Violation interface {
	// Location - путь к записи внутри документа ("$", "entities[2]", "nodes.n1").
	Location() string
	Level() Severity
	String() string

	violation()
}

type MissingField struct {
	Path      string
	FieldName string
	Severity  Severity
}

type InvalidValue struct {
	Path       string
	FieldName  string
	Value      any
	Constraint string
	Severity   Severity
}

type BrokenReference struct {
	Path        string
	ReferenceID string
	TargetType  string
	Severity    Severity
}

type Custom struct {
	Path     string
	Severity Severity
	Message  string
}

func (v MissingField) Location() string    { return v.Path }
func (v InvalidValue) Location() string    { return v.Path }
func (v BrokenReference) Location() string { return v.Path }
func (v Custom) Location() string          { return v.Path }

func (v MissingField) Level() Severity    { return v.Severity }
func (v InvalidValue) Level() Severity    { return v.Severity }
func (v BrokenReference) Level() Severity { return v.Severity }
func (v Custom) Level() Severity          { return v.Severity }

func (v MissingField) String() string {
	return fmt.Sprintf("%s: missing required field %q", v.Path, v.FieldName)
}

func (v InvalidValue) String() string {
	return fmt.Sprintf("%s: field %q=%v violates %s", v.Path, v.FieldName, v.Value, v.Constraint)
}

func (v BrokenReference) String() string {
	return fmt.Sprintf("%s: reference %q does not match any %s", v.Path, v.ReferenceID, v.TargetType)
}

func (v Custom) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

func (MissingField) violation()    {}
func (InvalidValue) violation()    {}
func (BrokenReference) violation() {}
func (Custom) violation()          {}

// ============================================================
// JSON
// ============================================================

// violationJSON - общая форма ответа; UI рисует path + message + severity.
type violationJSON struct {
	Kind        string   `json:"kind"`
	Path        string   `json:"path"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	FieldName   string   `json:"fieldName,omitempty"`
	Value       any      `json:"value,omitempty"`
	Constraint  string   `json:"constraint,omitempty"`
	ReferenceID string   `json:"referenceId,omitempty"`
	TargetType  string   `json:"targetType,omitempty"`
}

func (v MissingField) MarshalJSON() ([]byte, error) {
	return json.Marshal(violationJSON{
		Kind:      "missing_field",
		Path:      v.Path,
		Severity:  v.Severity,
		Message:   v.String(),
		FieldName: v.FieldName,
	})
}

func (v InvalidValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(violationJSON{
		Kind:       "invalid_value",
		Path:       v.Path,
		Severity:   v.Severity,
		Message:    v.String(),
		FieldName:  v.FieldName,
		Value:      jsonSafe(v.Value),
		Constraint: v.Constraint,
	})
}

func (v BrokenReference) MarshalJSON() ([]byte, error) {
	return json.Marshal(violationJSON{
		Kind:        "broken_reference",
		Path:        v.Path,
		Severity:    v.Severity,
		Message:     v.String(),
		ReferenceID: v.ReferenceID,
		TargetType:  v.TargetType,
	})
}

func (v Custom) MarshalJSON() ([]byte, error) {
	return json.Marshal(violationJSON{
		Kind:     "custom",
		Path:     v.Path,
		Severity: v.Severity,
		Message:  v.Message,
	})
}

// jsonSafe заменяет NaN и ±Inf строкой: JSON их не представляет.
func jsonSafe(value any) any {
	if f, ok := value.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return fmt.Sprint(f)
	}
	return value
}

// ============================================================
// Helpers
// ============================================================

// HasErrors сообщает, есть ли в списке находки уровня ERROR.
func HasErrors(violations []Violation) bool {
	return Count(violations, SeverityError) > 0
}

func Count(violations []Violation, severity Severity) int {
	n := 0
	for _, v := range violations {
		if v.Level() == severity {
			n++
		}
	}
	return n
}
