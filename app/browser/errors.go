package browser

import (
	"errors"
	"fmt"
)

// ErrLaunch means no browser process could be started. It is fatal for the whole run.
var ErrLaunch = errors.New("browser launch failed")

// FetchError is a navigation failure for a single URL. Callers skip the item.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
