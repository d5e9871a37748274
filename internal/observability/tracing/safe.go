package tracing

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
)

// payload-carrying attribute keys never belong on spans; visitor-submitted
// values can contain PII.
var allowedSpanKeys = map[attribute.Key]struct{}{
	"request_id":              {},
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"tenant_id":               {},
	"event_type":              {},
	"provider":                {},
}

// SafeAttributes strips attributes that could leak payload contents.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedSpanKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

// SafeError returns an error safe to record on a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	// sentinel codes only; wrapped messages may echo request payloads
	return errors.New(errorCode(err))
}

func errorCode(err error) string {
	code := err.Error()
	if len(code) > 64 {
		return "internal_error"
	}
	return code
}
