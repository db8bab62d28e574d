package worker

import (
	"errors"
	"fmt"
)

// PanicError reports a tick that panicked instead of returning.
type PanicError struct {
	DefinitionID string
	Value        any
	StackTrace   string
}

func (e PanicError) Error() string {
	return fmt.Sprintf("tick of definition %s panicked: %v", e.DefinitionID, e.Value)
}

// IsPanic reports whether err wraps a PanicError.
func IsPanic(err error) bool {
	var panicErr PanicError
	return errors.As(err, &panicErr)
}
