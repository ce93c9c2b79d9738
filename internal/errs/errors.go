// Package errs defines the error taxonomy shared by every core subsystem
// (metric kernel, codecs, HNSW index, filter evaluator, search engine).
//
// It lives under internal/ rather than the root package so that the leaf
// packages (internal/metric, internal/quant, internal/index/...) can
// construct and return these errors without importing the root package -
// the root package depends on internal/errs, never the other way around.
package errs

import (
	"fmt"
	"runtime"
	"strings"
)

// Code identifies a stable error category. Codes are part of the public
// contract: callers switch on Code, never on the formatted message.
type Code string

const (
	DimensionMismatch    Code = "DIMENSION_MISMATCH"
	UnknownMetric        Code = "UNKNOWN_METRIC"
	BadFilter            Code = "BAD_FILTER"
	VectorNotFound       Code = "VECTOR_NOT_FOUND"
	NamespaceNotFound    Code = "NAMESPACE_NOT_FOUND"
	NamespaceExists      Code = "NAMESPACE_EXISTS"
	InvalidNamespaceName Code = "INVALID_NAMESPACE_NAME"
	InsufficientTraining Code = "INSUFFICIENT_TRAINING"
	QualityBelowThresh   Code = "QUALITY_BELOW_THRESHOLD"
	QuotaExceeded        Code = "QUOTA_EXCEEDED"
	Cancelled            Code = "CANCELLED"
	CorruptPayload       Code = "CORRUPT_PAYLOAD"
	InvalidFormat        Code = "INVALID_FORMAT"
)

// sensitiveKeys are context keys whose values are redacted regardless of
// where they show up in an attached context map.
var sensitiveKeys = []string{"password", "secret", "token", "key", "auth", "credential"}

const maxContextValueLen = 1000

// Error is the structured error type returned by every core operation.
// It carries a stable Code, a human message, and optional key/value
// context for diagnostics; context values are redacted/truncated before
// they are ever rendered.
type Error struct {
	Code    Code
	Message string
	Context map[string]interface{}
	cause   error
	stack   string
}

// New constructs an Error with the given code and message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Context: make(map[string]interface{}),
		stack:   captureStack(),
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error target that carries the same Code, so
// errors.Is(err, &errs.Error{Code: errs.DimensionMismatch}) works; a bare
// Code is not an error value and cannot be a target (use IsCode for that).
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithCause attaches an underlying error and returns the receiver for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithContext attaches a diagnostic key/value; the value is redacted at
// construction time if the key looks sensitive, and truncated if it is a
// long string.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = sanitize(key, value)
	return e
}

func sanitize(key string, value interface{}) interface{} {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return "[REDACTED]"
		}
	}
	if s, ok := value.(string); ok && len(s) > maxContextValueLen {
		return s[:maxContextValueLen] + "[TRUNCATED]"
	}
	return value
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Stack returns the captured stack trace at construction time, for logging.
func (e *Error) Stack() string { return e.stack }

// Constructors for each taxonomy entry named in the error model.

func NewDimensionMismatch(expected, actual int) *Error {
	return New(DimensionMismatch, "expected dimension %d, got %d", expected, actual).
		WithContext("expected", expected).WithContext("actual", actual)
}

func NewUnknownMetric(name string) *Error {
	return New(UnknownMetric, "unknown metric %q", name).WithContext("metric", name)
}

func NewBadFilter(reason string) *Error {
	return New(BadFilter, "%s", reason)
}

func NewVectorNotFound(id string) *Error {
	return New(VectorNotFound, "vector %q not found", id).WithContext("id", id)
}

func NewNamespaceNotFound(name string) *Error {
	return New(NamespaceNotFound, "namespace %q not found", name).WithContext("namespace", name)
}

func NewNamespaceExists(name string) *Error {
	return New(NamespaceExists, "namespace %q already exists", name).WithContext("namespace", name)
}

func NewInvalidNamespaceName(name string) *Error {
	return New(InvalidNamespaceName, "invalid namespace name %q", name).WithContext("namespace", name)
}

func NewInsufficientTraining(have, need int) *Error {
	return New(InsufficientTraining, "have %d training vectors, need at least %d", have, need).
		WithContext("have", have).WithContext("need", need)
}

func NewQualityBelowThreshold(actual, limit float64) *Error {
	return New(QualityBelowThresh, "reconstruction loss %.6f exceeds limit %.6f", actual, limit).
		WithContext("actual", actual).WithContext("limit", limit)
}

func NewQuotaExceeded(used, quota int64) *Error {
	return New(QuotaExceeded, "quota exceeded: %d/%d", used, quota).
		WithContext("used", used).WithContext("quota", quota)
}

func NewCancelled() *Error {
	return New(Cancelled, "operation cancelled")
}

func NewCorruptPayload(reason string) *Error {
	return New(CorruptPayload, "%s", reason)
}

func NewInvalidFormat(reason string) *Error {
	return New(InvalidFormat, "%s", reason)
}

// IsCode reports whether err carries the given code, unwrapping as needed.
func IsCode(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Code == code {
				return true
			}
			err = e.cause
			continue
		}
		break
	}
	return false
}
