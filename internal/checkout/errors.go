package checkout

import (
	"errors"
	"strings"
)

var (
	ErrSubmitInProgress = errors.New("order submission already in progress")
	ErrNotReady         = errors.New("checkout is not accepting submissions")
	ErrAlreadyEntered   = errors.New("checkout already entered")
	ErrClosed           = errors.New("checkout closed")
)

// ValidationError lists the form fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid checkout form: " + strings.Join(e.Fields, ", ")
}
