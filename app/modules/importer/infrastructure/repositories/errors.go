package importdb

import "errors"

var (
	ErrImportNotFound = errors.New("import not found")
)
