// Package gitctxerr defines the typed error taxonomy used across gitctx's
// core packages, and the exit-code mapping the CLI applies to them.
package gitctxerr

import "fmt"

// Category names one of the error classes the CLI knows how to report and
// map to an exit code.
type Category string

const (
	CategoryConfiguration     Category = "configuration"
	CategoryValidation        Category = "validation"
	CategoryNetwork           Category = "network"
	CategoryRateLimit         Category = "rate_limit"
	CategoryDimensionMismatch Category = "dimension_mismatch"
	CategoryStorage           Category = "storage"
	CategoryWalker            Category = "walker"
)

// Error is the common shape every gitctx error satisfies.
type Error struct {
	Cat         Category
	Msg         string
	Remediation string
	Err         error
}

func (e *Error) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s: %s\n%s", e.Cat, e.Msg, e.Remediation)
	}
	return fmt.Sprintf("%s: %s", e.Cat, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Category reports which taxonomy class this error belongs to.
func (e *Error) Category() Category { return e.Cat }

func newErr(cat Category, msg string, err error) *Error {
	return &Error{Cat: cat, Msg: msg, Err: err}
}

// ConfigurationError signals a missing or invalid configuration value, such
// as an unset provider API key. remediation is a one-line hint printed under
// the message, mirroring the original gitctx CLI's convention of telling the
// user exactly what to run next.
func ConfigurationError(msg, remediation string) *Error {
	return &Error{Cat: CategoryConfiguration, Msg: msg, Remediation: remediation}
}

// ValidationError signals caller input that fails a precondition, such as an
// empty search query.
func ValidationError(msg string) *Error {
	return newErr(CategoryValidation, msg, nil)
}

// NetworkError wraps a transport-level failure talking to an embedding
// provider.
func NetworkError(msg string, err error) *Error {
	return newErr(CategoryNetwork, msg, err)
}

// RateLimitError signals a provider 429 response.
func RateLimitError(msg string, err error) *Error {
	return newErr(CategoryRateLimit, msg, err)
}

// DimensionMismatchError signals a provider returned a vector whose length
// does not match the model registry's declared dimensionality.
func DimensionMismatchError(model string, want, got int) *Error {
	return newErr(CategoryDimensionMismatch,
		fmt.Sprintf("model %s: expected %d dimensions, got %d", model, want, got), nil)
}

// StorageError wraps a vector store failure.
func StorageError(msg string, err error) *Error {
	return newErr(CategoryStorage, msg, err)
}

// WalkerError wraps a commit graph traversal failure.
func WalkerError(msg string, err error) *Error {
	return newErr(CategoryWalker, msg, err)
}

// ExitCode maps an error to the CLI exit code gitctx reports, per the
// category table: configuration/network/rate_limit/dimension_mismatch/
// storage/walker all surface as a generic fatal error (1); validation
// errors are usage errors (2). Cancellation (130) is handled separately by
// the caller via context.Canceled, not through this taxonomy.
func ExitCode(err error) int {
	var gcErr *Error
	if As(err, &gcErr) {
		if gcErr.Cat == CategoryValidation {
			return 2
		}
		return 1
	}
	return 1
}

// As is a thin wrapper around errors.As kept local so callers of this
// package don't need a second import for the common case.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
