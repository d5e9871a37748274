package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	stagedomain "github.com/doorbellhq/doorbell/internal/stage/domain"
	scriptdomain "github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"go.uber.org/fx"
)

const (
	scriptTTL = 1 * time.Minute
	stageTTL  = 5 * time.Minute
)

// TrackingResolverCache holds the hot ingest-path lookups: script key to
// tracking script and tenant to default stage. TTLs are short so admin edits
// and key rotations take effect within a minute without explicit flushes.
type TrackingResolverCache struct {
	scripts Cache[string, scriptdomain.TrackingScript]
	stages  Cache[snowflake.ID, stagedomain.Stage]
}

func NewTrackingResolverCache() *TrackingResolverCache {
	return &TrackingResolverCache{
		scripts: NewTTLCache[string, scriptdomain.TrackingScript](),
		stages:  NewTTLCache[snowflake.ID, stagedomain.Stage](),
	}
}

func (c *TrackingResolverCache) GetScript(scriptKey string) (scriptdomain.TrackingScript, bool) {
	if c == nil {
		return scriptdomain.TrackingScript{}, false
	}
	return c.scripts.Get(scriptKey)
}

func (c *TrackingResolverCache) SetScript(script scriptdomain.TrackingScript) {
	if c == nil {
		return
	}
	c.scripts.Set(script.ScriptKey, script, scriptTTL)
}

func (c *TrackingResolverCache) InvalidateScript(scriptKey string) {
	if c == nil {
		return
	}
	c.scripts.Delete(scriptKey)
}

func (c *TrackingResolverCache) GetDefaultStage(tenantID snowflake.ID) (stagedomain.Stage, bool) {
	if c == nil {
		return stagedomain.Stage{}, false
	}
	return c.stages.Get(tenantID)
}

func (c *TrackingResolverCache) SetDefaultStage(tenantID snowflake.ID, stage stagedomain.Stage) {
	if c == nil {
		return
	}
	c.stages.Set(tenantID, stage, stageTTL)
}

func (c *TrackingResolverCache) InvalidateDefaultStage(tenantID snowflake.ID) {
	if c == nil {
		return
	}
	c.stages.Delete(tenantID)
}

var Module = fx.Module("cache",
	fx.Provide(NewTrackingResolverCache),
)
