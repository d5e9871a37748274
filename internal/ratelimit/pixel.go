package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/doorbellhq/doorbell/internal/config"
)

const (
	keyPixelScript   = "pixel:script:%s"
	keyPixelClient   = "pixel:client:%s"
	keyPixelFormLock = "pixel:form:%s:%s"
)

// PixelLimiter throttles the public tracking endpoints. Budgets are tracked
// per script key (the published pixel) and per client IP. It also hands out
// short-lived locks per form key so concurrent submits of the same form merge
// sequentially instead of racing.
//
// A nil limiter means rate limiting is disabled and everything is allowed.
type PixelLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	scriptRate  float64
	scriptBurst int
	clientRate  float64
	clientBurst int
	formLockTTL time.Duration
}

func NewPixelLimiter(cfg config.Config) (*PixelLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.ScriptRate <= 0 || limitCfg.ScriptBurst <= 0 {
		return nil, errors.New("pixel script rate limit must be positive")
	}
	if limitCfg.ClientRate <= 0 || limitCfg.ClientBurst <= 0 {
		return nil, errors.New("pixel client rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &PixelLimiter{
		enabled:     true,
		bucket:      NewTokenBucket(client),
		locker:      NewLocker(client),
		scriptRate:  limitCfg.ScriptRate,
		scriptBurst: limitCfg.ScriptBurst,
		clientRate:  limitCfg.ClientRate,
		clientBurst: limitCfg.ClientBurst,
		formLockTTL: time.Duration(limitCfg.FormLockTTLSeconds) * time.Second,
	}, nil
}

func (l *PixelLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowScript consumes one token from the per-script-key budget.
func (l *PixelLimiter) AllowScript(ctx context.Context, scriptKey string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPixelScript, strings.TrimSpace(scriptKey)), l.scriptRate, l.scriptBurst)
}

// AllowClient consumes one token from the per-client-IP budget.
func (l *PixelLimiter) AllowClient(ctx context.Context, clientIP string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPixelClient, strings.TrimSpace(clientIP)), l.clientRate, l.clientBurst)
}

// TryLockFormKey serializes form submissions sharing the same form key so the
// read-merge-write on the deduplicated event row does not race across
// instances. The lock is best effort: callers proceed unlocked on a miss.
func (l *PixelLimiter) TryLockFormKey(ctx context.Context, scriptKey, formKey string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyPixelFormLock, strings.TrimSpace(scriptKey), strings.TrimSpace(formKey))
	return l.locker.TryLock(ctx, key, l.formLockTTL)
}

func (l *PixelLimiter) ReleaseFormKey(ctx context.Context, scriptKey, formKey, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyPixelFormLock, strings.TrimSpace(scriptKey), strings.TrimSpace(formKey))
	return l.locker.Release(ctx, key, token)
}
