package domain

import (
	"time"

	"gorm.io/datatypes"
)

// OccurredAtWindow bounds how far a re-submission's timestamp may drift from
// the stored one before it is treated as a logically distinct interaction
// worth re-timestamping. Within the window the original timestamp wins,
// protecting the record against clock skew and client retries.
const OccurredAtWindow = 5 * time.Minute

// Merge folds an incoming event with a matching form key onto the stored
// one. Pure: operates only on its inputs and returns the merged copy; the
// caller persists it. Identity fields (ID, TenantID, FormKey, PersonID,
// CreatedAt) always come from the existing row.
func Merge(existing, incoming Event) Event {
	merged := existing

	merged.Type = incoming.Type
	if incoming.Source != "" {
		merged.Source = incoming.Source
	}
	if incoming.PageTitle != "" {
		merged.PageTitle = incoming.PageTitle
	}
	if incoming.PageURL != "" {
		merged.PageURL = incoming.PageURL
	}
	if incoming.PageReferrer != "" {
		merged.PageReferrer = incoming.PageReferrer
	}

	merged.FormData = shallowMerge(existing.FormData, incoming.FormData)
	merged.CustomData = shallowMerge(existing.CustomData, incoming.CustomData)
	merged.Person = shallowMerge(existing.Person, incoming.Person)
	merged.Property = shallowMerge(existing.Property, incoming.Property)
	merged.Campaign = shallowMerge(existing.Campaign, incoming.Campaign)

	if drift(existing.OccurredAt, incoming.OccurredAt) > OccurredAtWindow {
		merged.OccurredAt = incoming.OccurredAt
	}

	merged.Message = incoming.Message
	if desc, ok := ProgressiveDescription(incoming); ok {
		merged.Description = desc
	}

	return merged
}

// shallowMerge overlays b onto a: keys present in b overwrite, keys absent
// in b survive from a. Neither input is mutated.
func shallowMerge(a, b datatypes.JSONMap) datatypes.JSONMap {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func drift(a, b time.Time) time.Duration {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return d
}

// ProgressiveDescription narrates the start/fill/submit lifecycle of a
// multi-step form. Non-form types keep the prior description.
func ProgressiveDescription(incoming Event) (string, bool) {
	var verb string
	switch incoming.Type {
	case TypeFormStarted:
		verb = "Started a form"
	case TypeFormFilled:
		verb = "Filled in a form"
	case TypeFormSubmitted:
		verb = "Submitted a form"
	default:
		return "", false
	}
	if incoming.PageTitle != "" {
		return verb + " on " + incoming.PageTitle, true
	}
	if incoming.PageURL != "" {
		return verb + " on " + incoming.PageURL, true
	}
	return verb, true
}
