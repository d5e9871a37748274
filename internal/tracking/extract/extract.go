// Package extract pulls contact fields out of untrusted pixel payloads.
// Everything here is pure: no database, no context, no side effects.
package extract

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
)

// Mappings lists, per target attribute, the form-field names to probe in
// order. Tenants override these via their tracking script configuration.
type Mappings struct {
	Name  []string
	Email []string
	Phone []string
}

// DefaultMappings covers the field names the stock capture script emits plus
// the common variants third-party form builders use.
func DefaultMappings() Mappings {
	return Mappings{
		Name:  []string{"name", "fullName", "full_name", "firstName", "first_name"},
		Email: []string{"email", "email_address", "emailAddress", "user_email", "your_email"},
		Phone: []string{"phone", "phone_number", "phoneNumber", "telephone", "mobile", "cell"},
	}
}

// FromConfig builds Mappings from a tenant's stored field_mappings document,
// falling back to the defaults for any attribute left unconfigured.
func FromConfig(config map[string]any) Mappings {
	m := DefaultMappings()
	if config == nil {
		return m
	}
	if names := candidateList(config["name"]); len(names) > 0 {
		m.Name = names
	}
	if emails := candidateList(config["email"]); len(emails) > 0 {
		m.Email = emails
	}
	if phones := candidateList(config["phone"]); len(phones) > 0 {
		m.Phone = phones
	}
	return m
}

// Fields is the best-effort contact tuple extracted from one payload.
type Fields struct {
	Name  string
	Email string
	Phone string
}

// Viable reports whether the tuple clears the bar for person resolution:
// a name plus at least one way to reach them.
func (f Fields) Viable() bool {
	return f.Name != "" && (f.Email != "" || f.Phone != "")
}

// Extract probes the payload with the mapped candidate lists and returns
// whatever it could salvage. Nothing here ever errors: invalid values are
// skipped in favor of the next candidate.
func Extract(payload map[string]any, mappings Mappings) Fields {
	return Fields{
		Name:  extractName(payload, mappings.Name),
		Email: extractEmail(payload, mappings.Email),
		Phone: extractPhone(payload, mappings.Phone),
	}
}

func extractName(payload map[string]any, candidates []string) string {
	for _, field := range candidates {
		if v := stringValue(payload[field]); v != "" {
			return v
		}
	}

	// fall back to joining split name fields
	first := firstNonEmpty(payload, "firstName", "first_name")
	last := firstNonEmpty(payload, "lastName", "last_name")
	joined := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	return joined
}

func extractEmail(payload map[string]any, candidates []string) string {
	for _, field := range candidates {
		v := strings.ToLower(strings.TrimSpace(stringValue(payload[field])))
		if v == "" {
			continue
		}
		if _, err := mail.ParseAddress(v); err != nil {
			continue
		}
		return v
	}
	return ""
}

// extractPhone takes the first candidate whose digits-only form has at least
// 10 digits; stored digits-only, extension digits included.
func extractPhone(payload map[string]any, candidates []string) string {
	for _, field := range candidates {
		digits := digitsOnly(stringValue(payload[field]))
		if len(digits) >= 10 {
			return digits
		}
	}
	return ""
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func firstNonEmpty(payload map[string]any, fields ...string) string {
	for _, field := range fields {
		if v := stringValue(payload[field]); v != "" {
			return v
		}
	}
	return ""
}

// stringValue coerces an untrusted payload value to a trimmed string.
// Arrays yield their first non-empty element; anything unrepresentable
// yields "".
func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case []any:
		for _, item := range value {
			if s := stringValue(item); s != "" {
				return s
			}
		}
		return ""
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case bool:
		return ""
	case fmt.Stringer:
		return strings.TrimSpace(value.String())
	default:
		return ""
	}
}

func candidateList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
