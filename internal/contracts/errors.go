package contracts

import "fmt"

// Error taxonomy for a screening run.
//
// CalendarError and ConfigError are fatal: they abort the run before any
// fetch. DataFetchError and DataQualityError are per-symbol: the symbol is
// excluded with a reason code and the run continues.

// CalendarError means the trading calendar cannot serve the requested window.
type CalendarError struct {
	Msg string
}

func (e *CalendarError) Error() string {
	return "calendar: " + e.Msg
}

// ConfigError means a threshold or parameter failed validation.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// DataFetchError means every history provider was exhausted for a symbol.
type DataFetchError struct {
	Symbol string
	Err    error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("fetch %s: all providers exhausted: %v", e.Symbol, e.Err)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

// DataQualityError means a symbol's series survived the fetch but is
// unusable (malformed, empty after cleaning, or missing required fields).
type DataQualityError struct {
	Symbol string
	Msg    string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality %s: %s", e.Symbol, e.Msg)
}
