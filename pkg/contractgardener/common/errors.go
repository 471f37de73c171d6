package common

import "errors"

// Hard errors. They always propagate to the caller; degraded conditions are
// reported as data on the result types instead.
var (
	// ErrInvalidParameter marks a numeric input that violates a documented constraint
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrEmptyDistribution marks an operation that needed at least one sample and got none
	ErrEmptyDistribution = errors.New("empty distribution")
	// ErrNoCandidates marks a selection over an empty candidate set
	ErrNoCandidates = errors.New("no candidates")
	// ErrInvalidInput marks malformed distribution statistics passed to synthesis
	ErrInvalidInput = errors.New("invalid input")
)

// Error kind names exposed to API consumers and metric labels
const (
	KindInvalidParameter  = "InvalidParameterError"
	KindEmptyDistribution = "EmptyDistributionError"
	KindNoCandidates      = "NoCandidatesError"
	KindInvalidInput      = "InvalidInputError"
	KindInternal          = "InternalError"
)

// ErrorKind maps an error to its taxonomy name
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParameter):
		return KindInvalidParameter
	case errors.Is(err, ErrEmptyDistribution):
		return KindEmptyDistribution
	case errors.Is(err, ErrNoCandidates):
		return KindNoCandidates
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// IsCallerError reports whether err is one of the hard contract-violation errors
func IsCallerError(err error) bool {
	return ErrorKind(err) != KindInternal && err != nil
}
