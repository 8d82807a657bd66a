// Package eggerrs defines the closed set of error kinds raised across the
// egg packaging and hatching pipeline. Every error surfaced to a caller is
// one of these kinds so that callers can discriminate failures with
// errors.As instead of string matching.
package eggerrs

import "fmt"

// Kind identifies the category of a pipeline failure.
type Kind string

// The error kinds named by the trust-and-packaging pipeline.
const (
	KindPath            Kind = "ErrPath"
	KindUnsafePath       Kind = "ErrUnsafePath"
	KindManifest         Kind = "ErrManifest"
	KindMissingSource    Kind = "ErrMissingSource"
	KindDupDep           Kind = "ErrDupDep"
	KindMissingEntry     Kind = "ErrMissingEntry"
	KindFetch            Kind = "ErrFetch"
	KindTruncated        Kind = "ErrTruncated"
	KindChecksum         Kind = "ErrChecksum"
	KindUnsigned         Kind = "ErrUnsigned"
	KindSignature        Kind = "ErrSignature"
	KindHashIndex        Kind = "ErrHashIndex"
	KindDigest           Kind = "ErrDigest"
	KindClosure          Kind = "ErrClosure"
	KindUnsupportedLang  Kind = "ErrUnsupportedLang"
	KindRuntimeMissing   Kind = "ErrRuntimeMissing"
	KindCellExec         Kind = "ErrCellExec"
	KindPlatform         Kind = "ErrPlatform"
	KindExists           Kind = "ErrExists"
)

// Error is the concrete type behind every typed failure raised by this
// module. Context carries whatever the kind needs to render a single
// specific line (path, URL, expected vs observed).
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Context == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, eggerrs.New(eggerrs.KindDigest, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind with a formatted context line.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind, carrying cause for
// errors.Unwrap/errors.As chains while still rendering a single line.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...), Cause: cause}
}
