package core

// validation.go holds the value validators a tool schema declares for its
// canonical fields. The RowMapper drops values that fail them; a failing
// keyword drops the whole row.

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validator names a value check.
type Validator int

const (
	ValidateNonEmptyText Validator = iota
	ValidateNonNegative
	ValidatePercentRange
)

var validatorNames = map[Validator]string{
	ValidateNonEmptyText: "non_empty_text",
	ValidateNonNegative:  "non_negative",
	ValidatePercentRange: "percent_range",
}

func (v Validator) String() string {
	if n, ok := validatorNames[v]; ok {
		return n
	}
	return fmt.Sprintf("validator(%d)", int(v))
}

func (v Validator) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Validator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for kind, name := range validatorNames {
		if name == s {
			*v = kind
			return nil
		}
	}
	return fmt.Errorf("unknown validator %q", s)
}

// ValidationError describes a value rejected by a Validator.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Check validates a transformed value. A nil error means the value may be
// kept.
func (v Validator) Check(field string, val Scalar) error {
	switch v {
	case ValidateNonEmptyText:
		s, ok := val.Str()
		if !ok || strings.TrimSpace(s) == "" {
			return ValidationError{Field: field, Value: val.String(), Message: "value must be non-empty text"}
		}
	case ValidateNonNegative:
		f, ok := val.Number()
		if !ok {
			return ValidationError{Field: field, Value: val.String(), Message: "invalid number"}
		}
		if f < 0 {
			return ValidationError{Field: field, Value: val.String(), Message: "value must not be negative"}
		}
	case ValidatePercentRange:
		f, ok := val.Number()
		if !ok {
			return ValidationError{Field: field, Value: val.String(), Message: "invalid number"}
		}
		if f < 0 || f > 100 {
			return ValidationError{Field: field, Value: val.String(), Message: "value must be between 0 and 100"}
		}
	}
	return nil
}

// DefaultValidators are applied to manual mappings, which have no schema.
func DefaultValidators() map[string]Validator {
	return map[string]Validator{
		FieldKeyword:      ValidateNonEmptyText,
		FieldSearchVolume: ValidateNonNegative,
		FieldDifficulty:   ValidatePercentRange,
	}
}
