package model

import "fmt"

// RuleError represents a rule-schema violation in the rule source.
// Malformed rules are a data/programming error at the loading boundary,
// unlike malformed invoice input, which never raises.
type RuleError struct {
	Source  string
	Row     int
	Field   string
	Message string
	Cause   error
}

func (e *RuleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rule source %s row %d, field %s: %s (%v)", e.Source, e.Row, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("rule source %s row %d, field %s: %s", e.Source, e.Row, e.Field, e.Message)
}

func (e *RuleError) Unwrap() error {
	return e.Cause
}

// NewRuleError creates a new rule error
func NewRuleError(source string, row int, field, message string, cause error) *RuleError {
	return &RuleError{
		Source:  source,
		Row:     row,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ParseError represents a failure to read or decode a document source
type ParseError struct {
	Source  string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Source, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(source, message string, cause error) *ParseError {
	return &ParseError{
		Source:  source,
		Message: message,
		Cause:   cause,
	}
}

// CalculationError represents an unresolvable tax computation input,
// e.g. a tax type with no rate in the table and no embedded percentage
type CalculationError struct {
	Kind    string
	Input   string
	Message string
}

func (e *CalculationError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s calculation: %s (input=%q)", e.Kind, e.Message, e.Input)
	}
	return fmt.Sprintf("%s calculation: %s", e.Kind, e.Message)
}

// NewCalculationError creates a new calculation error
func NewCalculationError(kind, input, message string) *CalculationError {
	return &CalculationError{
		Kind:    kind,
		Input:   input,
		Message: message,
	}
}

// ExtractionError represents a text-acquisition failure (PDF, OCR, LLM)
type ExtractionError struct {
	Method  string
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed [%s]: %s (%v)", e.Method, e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction failed [%s]: %s", e.Method, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NewExtractionError creates a new extraction error
func NewExtractionError(method, message string, cause error) *ExtractionError {
	return &ExtractionError{
		Method:  method,
		Message: message,
		Cause:   cause,
	}
}
