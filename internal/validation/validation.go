// Package validation runs ordered field rules against a request's path
// parameters and JSON body and reports every rule that failed.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Location names the part of the request a rule reads from.
type Location string

const (
	LocationParams Location = "params"
	LocationBody   Location = "body"
)

// ErrOutOfRange is returned by Float for numbers a float64 cannot hold.
var ErrOutOfRange = errors.New("number out of range")

// DefaultMessage is reported by rules declared without a message.
const DefaultMessage = "Invalid value"

// Input is the request data rules are evaluated against.
type Input struct {
	Params map[string]string
	Body   map[string]any
}

// Lookup returns the raw value of field at loc and whether it was present.
func (in Input) Lookup(loc Location, field string) (any, bool) {
	switch loc {
	case LocationParams:
		v, ok := in.Params[field]
		return v, ok
	case LocationBody:
		v, ok := in.Body[field]
		return v, ok
	}
	return nil, false
}

// String returns the body field as text.
func (in Input) String(field string) string {
	v, _ := in.Lookup(LocationBody, field)
	return Stringify(v)
}

// Float parses the body field as a number.
func (in Input) Float(field string) (float64, error) {
	f, err := strconv.ParseFloat(in.String(field), 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, field)
	}
	if err != nil {
		return 0, fmt.Errorf("field %s is not a number: %w", field, err)
	}
	return f, nil
}

// Bool parses the body field as a boolean.
func (in Input) Bool(field string) (bool, error) {
	b, err := strconv.ParseBool(in.String(field))
	if err != nil {
		return false, fmt.Errorf("field %s is not a boolean: %w", field, err)
	}
	return b, nil
}

// Stringify renders a decoded JSON value the way checks see it. Missing and
// null values become the empty string.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}

// Check reports whether a stringified value satisfies a rule.
type Check func(value string) bool

// Rule is one predicate and the message reported when it fails.
type Rule struct {
	Location Location
	Field    string
	Check    Check
	Message  string
}

// Param declares a rule on a path parameter.
func Param(field string, check Check, message string) Rule {
	return Rule{Location: LocationParams, Field: field, Check: check, Message: message}
}

// Body declares a rule on a JSON body field.
func Body(field string, check Check, message string) Rule {
	return Rule{Location: LocationBody, Field: field, Check: check, Message: message}
}

// FieldError describes a failed rule.
type FieldError struct {
	Type     string   `json:"type"`
	Value    any      `json:"value,omitempty"`
	Msg      string   `json:"msg"`
	Path     string   `json:"path"`
	Location Location `json:"location"`
}

// Chain is an ordered list of rules.
type Chain []Rule

// Run evaluates every rule in order and returns all failures. A nil result
// means the input is valid.
func (c Chain) Run(in Input) []FieldError {
	var errs []FieldError
	for _, rule := range c {
		raw, _ := in.Lookup(rule.Location, rule.Field)
		if rule.Check(Stringify(raw)) {
			continue
		}
		msg := rule.Message
		if msg == "" {
			msg = DefaultMessage
		}
		errs = append(errs, FieldError{
			Type:     "field",
			Value:    raw,
			Msg:      msg,
			Path:     rule.Field,
			Location: rule.Location,
		})
	}
	return errs
}

// Validator builds checks on top of go-playground/validator tags.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the custom "integer" and "strictbool" tags
// registered. "strictbool" only admits true, false, 1 and 0.
func New() *Validator {
	v := validator.New()
	// Registration only fails on an empty tag name or nil func.
	_ = v.RegisterValidation("integer", func(fl validator.FieldLevel) bool {
		_, err := strconv.ParseInt(fl.Field().String(), 10, 64)
		return err == nil
	})
	_ = v.RegisterValidation("strictbool", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "true", "false", "1", "0":
			return true
		}
		return false
	})
	return &Validator{validate: v}
}

// Tag returns a check that passes when the value satisfies the validator tag,
// e.g. "required", "numeric", "boolean" or "integer".
func (v *Validator) Tag(tag string) Check {
	return func(value string) bool {
		return v.validate.Var(value, tag) == nil
	}
}

// GreaterThan returns a check that passes when the value parses as a number
// strictly greater than n. Values too large for a float64 compare as ±Inf.
func GreaterThan(n float64) Check {
	return func(value string) bool {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return false
		}
		return f > n
	}
}
