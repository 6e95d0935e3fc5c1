package sources

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrSourceNotFound is wrapped by FetchError when a local source path does not exist
var ErrSourceNotFound = errors.New("source path does not exist")

// FetchError reports a source that could not be made available locally
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch source %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Cause supports github.com/pkg/errors.Cause
func (e *FetchError) Cause() error { return e.Err }

// IsFetchError reports whether err is or wraps a FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
