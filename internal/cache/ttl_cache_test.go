package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	scriptdomain "github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"github.com/stretchr/testify/assert"
)

func TestTTLCache_SetGetDelete(t *testing.T) {
	c := NewTTLCache[string, int]()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1, time.Minute)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache[string, string]()

	c.Set("short", "v", 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
}

func TestTTLCache_NonPositiveTTLIsNoop(t *testing.T) {
	c := NewTTLCache[string, string]()

	c.Set("zero", "v", 0)
	_, ok := c.Get("zero")
	assert.False(t, ok)
}

func TestTrackingResolverCache_ScriptRoundTrip(t *testing.T) {
	c := NewTrackingResolverCache()

	script := scriptdomain.TrackingScript{
		Name:      "Website",
		ScriptKey: uuid.NewString(),
	}
	c.SetScript(script)

	got, ok := c.GetScript(script.ScriptKey)
	assert.True(t, ok)
	assert.Equal(t, script.Name, got.Name)

	c.InvalidateScript(script.ScriptKey)
	_, ok = c.GetScript(script.ScriptKey)
	assert.False(t, ok)
}
