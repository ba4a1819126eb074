package errors

import (
	"net/http"
)

const problemBase = "https://commodex.dev/problems/"

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Kind     Kind         `json:"kind"`
	TraceID  string       `json:"trace_id,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return p.Detail
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

var problemTitles = map[Kind]string{
	KindNotFound:            "Not Found",
	KindInactiveCommodity:   "Inactive Commodity",
	KindInvalidArgument:     "Invalid Argument",
	KindInsufficientBalance: "Insufficient Balance",
	KindInsufficientPayment: "Insufficient Payment",
	KindUnauthorized:        "Unauthorized",
	KindReentrant:           "Reentrant Call",
	KindInternal:            "Internal Server Error",
}

var problemSlugs = map[Kind]string{
	KindNotFound:            "not-found",
	KindInactiveCommodity:   "inactive-commodity",
	KindInvalidArgument:     "invalid-argument",
	KindInsufficientBalance: "insufficient-balance",
	KindInsufficientPayment: "insufficient-payment",
	KindUnauthorized:        "unauthorized",
	KindReentrant:           "reentrant",
	KindInternal:            "internal-error",
}

// HTTPStatus maps an error kind to the status code the API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusForbidden
	case KindInsufficientBalance, KindInsufficientPayment:
		return http.StatusUnprocessableEntity
	case KindInactiveCommodity, KindReentrant:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ToProblemDetails converts any error into a problem document. Internal
// errors never leak their cause chain.
func ToProblemDetails(err error, instance string) *ProblemDetails {
	kind := KindOf(err)
	p := &ProblemDetails{
		Type:     problemBase + problemSlugs[kind],
		Title:    problemTitles[kind],
		Status:   HTTPStatus(kind),
		Instance: instance,
		Kind:     kind,
	}
	var e *Error
	if As(err, &e) {
		p.Detail = e.Message
		p.Errors = e.Fields
	}
	if kind == KindInternal {
		p.Detail = "internal error"
	}
	return p
}

// NewMissingCaller is the problem returned when a mutating request carries no
// caller identity at all.
func NewMissingCaller(instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     problemBase + "missing-caller",
		Title:    "Unauthorized",
		Status:   http.StatusUnauthorized,
		Detail:   "caller account header is required",
		Instance: instance,
		Kind:     KindUnauthorized,
	}
}

// NewBadRequest wraps a request decoding failure.
func NewBadRequest(detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     problemBase + problemSlugs[KindInvalidArgument],
		Title:    problemTitles[KindInvalidArgument],
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: instance,
		Kind:     KindInvalidArgument,
	}
}
