package derived

import "fmt"

// ErrCircularReference is returned when a formula chain references a
// ticker that is already being evaluated higher up the same chain
type ErrCircularReference struct {
	Ticker string
}

func (e ErrCircularReference) Error() string {
	return fmt.Sprintf("circular reference detected at ticker %s", e.Ticker)
}

// ErrMissingUnderlying is returned when a formula references a ticker
// whose price cannot be resolved
type ErrMissingUnderlying struct {
	Ticker string
}

func (e ErrMissingUnderlying) Error() string {
	return fmt.Sprintf("no price available for underlying ticker %s", e.Ticker)
}

// ErrFormulaSyntax is returned when a formula cannot be parsed
type ErrFormulaSyntax struct {
	Detail string
}

func (e ErrFormulaSyntax) Error() string {
	return fmt.Sprintf("formula syntax error: %s", e.Detail)
}

// ErrFormulaEvaluation is returned when a syntactically valid formula
// cannot be computed (division by zero, non-finite result)
type ErrFormulaEvaluation struct {
	Detail string
}

func (e ErrFormulaEvaluation) Error() string {
	return fmt.Sprintf("formula evaluation error: %s", e.Detail)
}
