package marrow

import "errors"

var (
	// ErrNoSelectors is returned when an extraction request resolves to
	// zero selectors.
	ErrNoSelectors = errors.New("marrow: no selectors to extract")

	// ErrMapNotFound is returned by name-based extraction when no map
	// exists for the URL.
	ErrMapNotFound = errors.New("marrow: no map for url")

	// ErrElementNotFound is returned by name-based extraction when a
	// requested name is absent from the map.
	ErrElementNotFound = errors.New("marrow: element not in map")

	// ErrAuthCheckUnsupported is returned when the page source cannot
	// probe live pages for authentication signals.
	ErrAuthCheckUnsupported = errors.New("marrow: page source does not support auth checks")
)
