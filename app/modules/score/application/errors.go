package scoreservice

import "errors"

// Domain errors for the score service. Entry-level errors are recoverable:
// the importer records them against the import and moves on. Anything else
// bubbles up and aborts the job.
var (
	// ErrEntryInvalid indicates a structurally malformed import entry.
	ErrEntryInvalid = errors.New("import entry failed validation")

	// ErrNoProvider indicates no rating provider is registered for the GPT.
	ErrNoProvider = errors.New("no rating provider for gpt")

	// ErrProviderTimeout indicates the rating provider did not answer within
	// the configured deadline.
	ErrProviderTimeout = errors.New("rating provider timed out")
)
