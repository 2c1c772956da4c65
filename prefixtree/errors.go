package prefixtree

import (
	"errors"
	"fmt"
)

// ErrInvalidUTF8 matches an InvalidSymbolError for a byte that is not part of
// a well-formed UTF-8 encoding.
var ErrInvalidUTF8 = errors.New("prefixtree: invalid UTF-8")

// ErrEmptySequence is returned when inserting the empty sequence.  The root
// never terminates a sequence.
var ErrEmptySequence = errors.New("prefixtree: empty sequence")

// ConfigurationError reports a malformed node or tree construction.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "prefixtree: invalid configuration: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidSymbolError reports a symbol that cannot be resolved to a child slot.
// Position is the symbol's zero-based rune offset in the sequence, counting
// each malformed byte as one symbol.  If Malformed is set, Symbol is
// utf8.RuneError and the error matches ErrInvalidUTF8.
type InvalidSymbolError struct {
	Symbol    rune
	Position  int
	Malformed bool
}

func (e *InvalidSymbolError) Error() string {
	if e.Malformed {
		return fmt.Sprintf("prefixtree: invalid UTF-8 at position %d", e.Position)
	}
	return fmt.Sprintf("prefixtree: invalid symbol %q at position %d", e.Symbol, e.Position)
}

func (e *InvalidSymbolError) Is(target error) bool {
	return e.Malformed && target == ErrInvalidUTF8
}
