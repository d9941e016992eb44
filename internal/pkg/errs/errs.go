package errs

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrBlockedPhrase         = errors.New("blocked phrase")
	ErrRateLimited           = errors.New("rate limited")
	ErrRepeatedInput         = errors.New("repeated input")
	ErrEmbeddingUnavailable  = errors.New("embedding unavailable")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrQualityGate           = errors.New("quality gate failed")
	ErrExtractionRunning     = errors.New("extraction already running")
	ErrInternal              = errors.New("internal")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrBlockedPhrase) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrRepeatedInput)
}
