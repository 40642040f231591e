// Package upstream holds the HTTP plumbing and error taxonomy shared by the
// geocoding and routing adapters.
package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrConfiguration: a required setting (e.g. an API key) is missing.
	// Always raised before any network call.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidArgument: the caller's parameters violate an operation's
	// constraints. Raised before any network call.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstream: the transport failed, timed out, or the provider answered
	// with a non-2xx status.
	ErrUpstream = errors.New("upstream error")

	// ErrNotFound: the provider answered but had nothing for the request.
	ErrNotFound = errors.New("not found")

	// ErrMalformedResponse: the provider answered 2xx but the body lacks the
	// fields the operation extracts.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// Common guidance messages
const (
	GuidanceNominatimQuery     = "Try a more standard address format or add city and country."
	GuidanceNominatimRateLimit = "Nominatim allows about one request per second. Please try again in a few seconds."
	GuidanceNominatimNoAddress = "No address is known at these coordinates. Try a point closer to a road or settlement."

	GuidanceORSMissingKey = "Set the ORS_API_KEY environment variable to an OpenRouteService API key."
	GuidanceORSNoRoute    = "No route could be found between the points. Try locations reachable with the chosen profile."
	GuidanceORSRateLimit  = "The routing quota is exhausted. Please try again later."

	GuidanceTimeout    = "The request timed out. Check your internet connection and try again."
	GuidanceNetwork    = "Check your internet connection and try again."
	GuidanceData       = "The data received was incomplete or malformed. Try different parameters."
	GuidanceParameters = "Please correct the parameters and try again."
	GuidanceGeneral    = "Please try again later or modify your request parameters."
)

// Error is returned by every adapter operation. Kind is one of the sentinel
// kinds above; Err is the underlying cause, if any.
type Error struct {
	Kind       error
	Service    string // "nominatim", "ors", ...
	StatusCode int    // HTTP status, 0 when no response was received
	Message    string
	Guidance   string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var msg string
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: %v (%d): %s", e.Service, e.Kind, e.StatusCode, e.Message)
	} else {
		msg = fmt.Sprintf("%s: %v: %s", e.Service, e.Kind, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ConfigurationError reports a missing or unusable setting.
func ConfigurationError(service, message, guidance string) *Error {
	return &Error{Kind: ErrConfiguration, Service: service, Message: message, Guidance: guidance}
}

// InvalidArgument reports a parameter that violates an operation's contract.
func InvalidArgument(service, message string, cause error) *Error {
	return &Error{
		Kind:     ErrInvalidArgument,
		Service:  service,
		Message:  message,
		Guidance: GuidanceParameters,
		Err:      cause,
	}
}

// NotFound reports an empty answer where the operation treats that as a failure.
func NotFound(service, message, guidance string) *Error {
	return &Error{Kind: ErrNotFound, Service: service, Message: message, Guidance: guidance}
}

// Malformed reports a 2xx body missing the expected fields.
func Malformed(service, message string, cause error) *Error {
	return &Error{
		Kind:     ErrMalformedResponse,
		Service:  service,
		Message:  message,
		Guidance: GuidanceData,
		Err:      cause,
	}
}

// StatusError reports a non-2xx answer, inferring guidance from the status
// code when none is given.
func StatusError(service string, statusCode int, message, guidance string) *Error {
	if guidance == "" {
		switch statusCode {
		case http.StatusTooManyRequests:
			guidance = "Rate limit exceeded. Please try again in a few moments."
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			guidance = GuidanceTimeout
		case http.StatusBadRequest:
			guidance = "The request was invalid. Check your parameters and try again."
		case http.StatusUnauthorized, http.StatusForbidden:
			guidance = "The provider rejected the credentials. Check the configured API key."
		case http.StatusInternalServerError:
			guidance = "The server encountered an error. This is likely temporary, please try again later."
		case http.StatusServiceUnavailable:
			guidance = "The service is temporarily unavailable. Please try again later."
		default:
			guidance = GuidanceGeneral
		}
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	return &Error{
		Kind:       ErrUpstream,
		Service:    service,
		StatusCode: statusCode,
		Message:    message,
		Guidance:   guidance,
	}
}

// TransportError reports a request that never produced a response.
func TransportError(service string, cause error, timedOut bool) *Error {
	e := &Error{
		Kind:     ErrUpstream,
		Service:  service,
		Message:  "request failed",
		Guidance: GuidanceNetwork,
		Err:      cause,
	}
	if timedOut {
		e.Message = "request timed out"
		e.Guidance = GuidanceTimeout
	}
	return e
}

// Guidance returns the user guidance carried by err, or a generic hint.
func Guidance(err error) string {
	var ue *Error
	if errors.As(err, &ue) && ue.Guidance != "" {
		return ue.Guidance
	}
	return GuidanceGeneral
}

// KindName returns a short label for err's kind, used for metrics and logs.
func KindName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
