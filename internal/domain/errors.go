package domain

import "errors"

var (
	// ErrQueryNotFound signals a missing relay query.
	ErrQueryNotFound = errors.New("relay query not found")
	// ErrQueryExists signals that a relay query with this id was already inserted.
	ErrQueryExists = errors.New("relay query already exists")
	// ErrTransitionConflict signals that another relay already owns processing.
	ErrTransitionConflict = errors.New("query state transition conflict")
	// ErrAlreadyTerminal signals an operation attempted on a completed or failed query.
	ErrAlreadyTerminal = errors.New("query already in terminal state")

	// ErrClassificationFailed signals that intent parsing produced no usable structure.
	ErrClassificationFailed = errors.New("intent classification failed")
	// ErrSearchUnavailable signals that the incident index cannot be reached.
	ErrSearchUnavailable = errors.New("incident search unavailable")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrGenerationUnavailable signals a text generation provider failure.
	ErrGenerationUnavailable = errors.New("text generation unavailable")
	// ErrRateLimited signals a provider rate limit hit; the caller may retry with backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable signals that the query store cannot be reached.
	// Fatal for the current submission; the submitter should retry.
	ErrStoreUnavailable = errors.New("query store unavailable")

	// ErrInvalidSubmission signals a submission missing required fields.
	ErrInvalidSubmission = errors.New("invalid relay submission")
)
