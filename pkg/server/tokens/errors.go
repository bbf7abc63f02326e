package tokens

import "errors"

var (
	// ErrEmptySymbol indicates a registry entry without a symbol.
	ErrEmptySymbol = errors.New("token symbol cannot be empty")
	// ErrDuplicateSymbol indicates two registry entries with the same symbol.
	ErrDuplicateSymbol = errors.New("duplicate token symbol")
)
