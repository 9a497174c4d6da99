package validation

import (
	"errors"
	"fmt"
	"strings"

	"drawing-core/internal/drawing/codec"
	"drawing-core/internal/drawing/models"
)

// ============================================================
// Parse and validate
// ============================================================

// Validated - документ, прошедший проверку. Violations может содержать
// WARNING и INFO, но не ERROR (или и WARNING, если включен RejectWarnings).
type Validated struct {
	Drawing    models.Drawing
	Violations []Violation
}

// Failure - единая форма отказа: битые байты, нарушенный инвариант при
// сборке или находки уровня ERROR. Violations содержит все найденное,
// включая WARNING и INFO.
type Failure struct {
	Message    string
	Violations []Violation
}

func (f *Failure) Error() string {
	if len(f.Violations) == 0 {
		return f.Message
	}
	parts := make([]string, 0, len(f.Violations))
	for _, v := range f.Violations {
		if v.Level() == SeverityError {
			parts = append(parts, v.String())
		}
	}
	if len(parts) == 0 {
		return f.Message
	}
	return f.Message + ": " + strings.Join(parts, "; ")
}

type gate struct {
	rejectWarnings bool
}

type Option func(*gate)

// RejectWarnings делает WARNING таким же блокирующим, как ERROR.
func RejectWarnings(reject bool) Option {
	return func(g *gate) { g.rejectWarnings = reject }
}

// ValidateSafe разбирает байты и проверяет документ. Возвращает ровно
// одно из двух: *Validated или ошибку типа *Failure. Паники не выходят наружу.
func ValidateSafe(data []byte, opts ...Option) (result *Validated, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = internalFailure(r)
		}
	}()

	d, err := codec.Decode(data)
	if err != nil {
		return nil, decodeFailure(err)
	}
	return check(d, opts)
}

// Check - та же проверка для уже собранного документа.
func Check(d models.Drawing, opts ...Option) (result *Validated, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = internalFailure(r)
		}
	}()
	return check(d, opts)
}

func check(d models.Drawing, opts []Option) (*Validated, error) {
	var g gate
	for _, opt := range opts {
		opt(&g)
	}

	violations := Validate(d)
	errs := Count(violations, SeverityError)
	warns := Count(violations, SeverityWarning)

	switch {
	case errs > 0:
		return nil, &Failure{
			Message:    fmt.Sprintf("drawing %q failed validation with %d error(s)", d.ID, errs),
			Violations: violations,
		}
	case g.rejectWarnings && warns > 0:
		return nil, &Failure{
			Message:    fmt.Sprintf("drawing %q failed validation with %d warning(s)", d.ID, warns),
			Violations: violations,
		}
	}
	return &Validated{Drawing: d, Violations: violations}, nil
}

func decodeFailure(err error) *Failure {
	var fe *codec.FieldError
	if errors.As(err, &fe) {
		var v Violation
		if fe.Missing {
			v = MissingField{Path: fe.Path, FieldName: fe.Field, Severity: SeverityError}
		} else {
			v = InvalidValue{Path: fe.Path, FieldName: fe.Field, Value: fe.Value, Constraint: fe.Constraint, Severity: SeverityError}
		}
		return &Failure{Message: "invalid drawing document", Violations: []Violation{v}}
	}

	return &Failure{
		Message:    "malformed drawing document",
		Violations: []Violation{Custom{Path: "$", Severity: SeverityError, Message: err.Error()}},
	}
}

func internalFailure(r any) *Failure {
	return &Failure{
		Message:    "internal validation error",
		Violations: []Violation{Custom{Path: "$", Severity: SeverityError, Message: fmt.Sprint(r)}},
	}
}
