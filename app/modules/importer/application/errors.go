package importservice

import "errors"

var (
	// ErrInvalidDocument indicates the import document is missing required
	// identity fields and cannot even be recorded.
	ErrInvalidDocument = errors.New("import document is invalid")
)
