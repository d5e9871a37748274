package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func baseEvent(occurredAt time.Time) Event {
	key := "fk_1"
	return Event{
		ID:          1,
		TenantID:    10,
		Type:        TypeFormStarted,
		OccurredAt:  occurredAt,
		FormKey:     &key,
		FormData:    datatypes.JSONMap{"email": "jane@example.com", "budget": "500k"},
		Description: "Started a form",
	}
}

func TestMerge_ShallowMergePreservesAndOverwrites(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	existing := baseEvent(now)

	incoming := Event{
		Type:       TypeFormSubmitted,
		OccurredAt: now.Add(time.Minute),
		FormData:   datatypes.JSONMap{"budget": "750k", "bedrooms": "3"},
		Person:     datatypes.JSONMap{"email": "jane@example.com"},
	}

	merged := Merge(existing, incoming)

	// union of keys, incoming values win on overlap
	assert.Equal(t, "jane@example.com", merged.FormData["email"])
	assert.Equal(t, "750k", merged.FormData["budget"])
	assert.Equal(t, "3", merged.FormData["bedrooms"])
	assert.Equal(t, "jane@example.com", merged.Person["email"])

	// identity comes from the existing row
	assert.Equal(t, existing.ID, merged.ID)
	assert.Equal(t, existing.TenantID, merged.TenantID)
	assert.Equal(t, existing.FormKey, merged.FormKey)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	existing := baseEvent(now)
	incoming := Event{
		Type:     TypeFormFilled,
		FormData: datatypes.JSONMap{"budget": "750k"},
	}

	Merge(existing, incoming)

	assert.Equal(t, "500k", existing.FormData["budget"])
	assert.Equal(t, datatypes.JSONMap{"budget": "750k"}, incoming.FormData)
}

func TestMerge_OccurredAtWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		incoming time.Time
		expected time.Time
	}{
		{"2 minutes apart keeps original", now.Add(2 * time.Minute), now},
		{"10 minutes apart re-timestamps", now.Add(10 * time.Minute), now.Add(10 * time.Minute)},
		{"10 minutes in the past re-timestamps", now.Add(-10 * time.Minute), now.Add(-10 * time.Minute)},
		{"exactly at the window keeps original", now.Add(OccurredAtWindow), now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := baseEvent(now)
			incoming := Event{Type: TypeFormSubmitted, OccurredAt: tt.incoming}
			merged := Merge(existing, incoming)
			assert.Equal(t, tt.expected, merged.OccurredAt)
		})
	}
}

func TestMerge_ProgressiveDescription(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		incoming Event
		expected string
	}{
		{
			name:     "form submitted narrates with page title",
			incoming: Event{Type: TypeFormSubmitted, PageTitle: "Contact Us", OccurredAt: now},
			expected: "Submitted a form on Contact Us",
		},
		{
			name:     "form filled without page context",
			incoming: Event{Type: TypeFormFilled, OccurredAt: now},
			expected: "Filled in a form",
		},
		{
			name:     "non-form type keeps prior description",
			incoming: Event{Type: "Property Viewed", OccurredAt: now},
			expected: "Started a form",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := baseEvent(now)
			merged := Merge(existing, tt.incoming)
			assert.Equal(t, tt.expected, merged.Description)
		})
	}
}

func TestMerge_MessageOverwritten(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	existing := baseEvent(now)
	existing.Message = "old message"

	merged := Merge(existing, Event{Type: "Property Viewed", Message: "new message", OccurredAt: now})
	assert.Equal(t, "new message", merged.Message)

	merged = Merge(existing, Event{Type: "Property Viewed", OccurredAt: now})
	assert.Equal(t, "", merged.Message)
}
