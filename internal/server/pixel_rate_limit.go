package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/doorbellhq/doorbell/internal/observability/logger"
	obsmetrics "github.com/doorbellhq/doorbell/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	rateLimitReasonClientRate      = "client-rate"
	rateLimitReasonScriptRate      = "script-rate"
	rateLimitReasonFormConcurrency = "form-concurrency"
)

type pixelRateLimitKey struct {
	ScriptKey string `json:"script_key"`
	FormKey   string `json:"form_key"`
}

// PixelRateLimit throttles the public tracking endpoints per client IP and
// per script key, and serializes concurrent submits of the same form key.
// Redis trouble fails open: the pixel stays up when the limiter backend is
// down, it just runs unthrottled.
func (s *Server) PixelRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.pixelLimiter == nil || !s.pixelLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		allowed, err := s.pixelLimiter.AllowClient(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("pixel client rate limit check failed", zap.Error(err))
		} else if !allowed {
			denyPixelRateLimit(c, endpoint, "", rateLimitReasonClientRate, s.obsMetrics)
			return
		}

		scriptKey, formKey, err := readPixelKeys(c)
		if err != nil {
			logger.FromContext(ctx).Warn("pixel rate limit read body failed", zap.Error(err))
			AbortWithError(c, invalidRequestError())
			return
		}

		if scriptKey != "" {
			allowed, err = s.pixelLimiter.AllowScript(ctx, scriptKey)
			if err != nil {
				logger.FromContext(ctx).Warn("pixel script rate limit check failed", zap.Error(err))
			} else if !allowed {
				denyPixelRateLimit(c, endpoint, scriptKey, rateLimitReasonScriptRate, s.obsMetrics)
				return
			}
		}

		if scriptKey != "" && formKey != "" {
			lockToken, acquired, err := s.pixelLimiter.TryLockFormKey(ctx, scriptKey, formKey)
			if err != nil {
				logger.FromContext(ctx).Warn("pixel form lock failed", zap.Error(err))
			} else if !acquired {
				denyPixelRateLimit(c, endpoint, scriptKey, rateLimitReasonFormConcurrency, s.obsMetrics)
				return
			} else {
				defer func() {
					if err := s.pixelLimiter.ReleaseFormKey(ctx, scriptKey, formKey, lockToken); err != nil {
						logger.FromContext(ctx).Warn("pixel form unlock failed", zap.Error(err))
					}
				}()
			}
		}

		recordRateLimitAllowed(ctx, endpoint, scriptKey, s.obsMetrics)
		c.Next()
	}
}

func denyPixelRateLimit(c *gin.Context, endpoint, scriptKey, reason string, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("pixel rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, scriptKey, reason, metrics)

	c.Header("Retry-After", "1")
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, endpoint, scriptKey string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, scriptKey, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, scriptKey, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, scriptKey, endpoint, reason)
}

// readPixelKeys peeks script_key and form_key out of the body, then restores
// it for the handler's own bind.
func readPixelKeys(c *gin.Context) (string, string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", "", nil
	}

	var payload pixelRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", nil
	}

	return strings.TrimSpace(payload.ScriptKey), strings.TrimSpace(payload.FormKey), nil
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
