// Package errs defines the error taxonomy shared by every layer of mwbot.
//
// Every error base is a gitlab.com/tozd/go/errors.E, the same way
// internal/wikipedia defines ErrNotFound and errNotSupportedDataType in the
// teacher codebase: callers test with errors.Is against one of these bases
// and add context with errors.WithMessage, never by inventing a new,
// unrelated error value.
package errs

import (
	"gitlab.com/tozd/go/errors"
)

//nolint:gochecknoglobals
var (
	// Core is the base of every error defined here. Programmer-facing
	// invariant violations that should never be caught use it directly.
	Core = errors.Base("core error")

	// InvalidState signals programmer misuse, e.g. writing before login.
	InvalidState = errors.BaseWrap(Core, "invalid state")

	// Parse signals that some textual input could not be decoded: JSON,
	// ISO-8601, wikicode in strict mode, or a WriteToken string.
	Parse = errors.BaseWrap(Core, "parse error")

	// Filesystem errors.
	FileNotFound = errors.BaseWrap(Core, "file not found")
	Permission   = errors.BaseWrap(Core, "permission denied")
	System       = errors.BaseWrap(Core, "system error")

	// Transport errors.
	Network          = errors.BaseWrap(Core, "network error")
	HTTP             = errors.BaseWrap(Core, "http error")
	HTTPForbidden    = errors.BaseWrap(HTTP, "http forbidden")
	HTTPNotFound     = errors.BaseWrap(HTTP, "http not found")
	HTTPServerError  = errors.BaseWrap(HTTP, "http server error")
	PageNotInCache   = errors.BaseWrap(Core, "page not in offline cache")

	// Wiki is the base of every wiki-level (MediaWiki API) error.
	Wiki = errors.BaseWrap(Core, "wiki error")

	// LowLevel wraps retryable failures observed by the wire layer: a
	// network/HTTP/JSON failure, or the server reporting readonly mode.
	LowLevel = errors.BaseWrap(Wiki, "low level error")

	// API wraps any MediaWiki API error code this package does not give a
	// dedicated type to.
	API = errors.BaseWrap(Wiki, "api error")

	UnexpectedAPIResponse = errors.BaseWrap(Wiki, "unexpected api response")
	InvalidParameter      = errors.BaseWrap(Wiki, "invalid parameter")
	PageAlreadyExists     = errors.BaseWrap(Wiki, "page already exists")
	PageNotFound          = errors.BaseWrap(Wiki, "page not found")
	ProtectedPage         = errors.BaseWrap(Wiki, "protected page")
	EmergencyStop         = errors.BaseWrap(Wiki, "emergency stop")
	EditConflict          = errors.BaseWrap(Wiki, "edit conflict")
	BotExclusion          = errors.BaseWrap(Wiki, "bot exclusion")
)

// LowLevelKind distinguishes the retryable sub-kinds of LowLevel.
type LowLevelKind int

const (
	LowLevelUnspecified LowLevelKind = iota
	LowLevelNetwork
	LowLevelHTTP
	LowLevelJSON
	LowLevelReadOnly
)

func (k LowLevelKind) String() string {
	switch k {
	case LowLevelNetwork:
		return "network"
	case LowLevelHTTP:
		return "http"
	case LowLevelJSON:
		return "json"
	case LowLevelReadOnly:
		return "readonly"
	default:
		return "unspecified"
	}
}

// NewLowLevel builds a LowLevel error carrying its kind alongside a human
// message.
func NewLowLevel(kind LowLevelKind, format string, args ...interface{}) errors.E {
	err := errors.Errorf(format, args...)
	wrapped := errors.WrapWith(err, LowLevel)
	wrapped.Details()["kind"] = kind.String()
	return wrapped
}

// APIErr carries the MediaWiki (code, info) error pair.
type APIErr struct {
	Code string
	Info string
}

func (e *APIErr) Error() string {
	return e.Code + ": " + e.Info
}

// NewAPIError wraps an (code, info) MediaWiki error as an API error.
func NewAPIError(code, info string) errors.E {
	err := errors.WithStack(&APIErr{Code: code, Info: info})
	wrapped := errors.WrapWith(err, API)
	wrapped.Details()["code"] = code
	wrapped.Details()["info"] = info
	return wrapped
}

// APICode extracts the MediaWiki error code from an error built with
// NewAPIError, if any.
func APICode(err error) (string, bool) {
	var a *APIErr
	if errors.As(err, &a) {
		return a.Code, true
	}
	return "", false
}

// Annotate prepends "<what>: " to err's message while preserving its kind.
func Annotate(err errors.E, what string) errors.E {
	if err == nil {
		return nil
	}
	return errors.WithMessage(err, what+": ")
}
