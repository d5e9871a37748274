package sync

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/doorbellhq/doorbell/internal/calendar/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Provider pushes calendar event projections to one external backend.
type Provider interface {
	Name() domain.Provider
	// UpsertEvent creates or updates the external event and returns its
	// provider-side id.
	UpsertEvent(ctx context.Context, account domain.CalendarAccount, event domain.CalendarEvent) (string, error)
	DeleteEvent(ctx context.Context, account domain.CalendarAccount, event domain.CalendarEvent) error
}

// NewProviders returns the provider registry. The Google and Outlook
// implementations here are local stubs: they acknowledge the dispatch and
// mint an external id without any network call, standing in until real
// API clients are connected.
func NewProviders(log *zap.Logger) map[domain.Provider]Provider {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return map[domain.Provider]Provider{
		domain.ProviderGoogle:  &stubProvider{name: domain.ProviderGoogle, entropy: entropy, log: log.Named("calendar.google")},
		domain.ProviderOutlook: &stubProvider{name: domain.ProviderOutlook, entropy: entropy, log: log.Named("calendar.outlook")},
	}
}

type stubProvider struct {
	name    domain.Provider
	entropy *ulid.MonotonicEntropy
	log     *zap.Logger
}

func (p *stubProvider) Name() domain.Provider { return p.name }

func (p *stubProvider) UpsertEvent(ctx context.Context, account domain.CalendarAccount, event domain.CalendarEvent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.log.Debug("upserted external calendar event",
		zap.String("account_id", account.ID.String()),
		zap.String("event_id", event.ID.String()),
	)
	if event.ExternalID != "" {
		return event.ExternalID, nil
	}
	return fmt.Sprintf("%s_%s", p.name, ulid.MustNew(ulid.Timestamp(time.Now()), p.entropy)), nil
}

func (p *stubProvider) DeleteEvent(ctx context.Context, account domain.CalendarAccount, event domain.CalendarEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.log.Debug("deleted external calendar event",
		zap.String("account_id", account.ID.String()),
		zap.String("event_id", event.ID.String()),
		zap.String("external_id", event.ExternalID),
	)
	return nil
}
