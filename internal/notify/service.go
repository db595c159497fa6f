package notify

import (
	"context"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/corgi13/tejobeauty2-sub000/internal/kafka"
	"github.com/corgi13/tejobeauty2-sub000/internal/metrics"
	"github.com/corgi13/tejobeauty2-sub000/internal/orders"
)

type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
}

type Cache interface {
	Revalidate(ctx context.Context, tags []string) error
}

// Service turns lifecycle events into storefront cache revalidation.
// Outbound failures are logged and swallowed, and HandleLifecycle always
// returns nil so the offset is committed.
type Service struct {
	Dedup Deduper
	Cache Cache
	Log   zerolog.Logger
}

func (s *Service) HandleLifecycle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		// poison message: commit and move on
		s.Log.Warn().Err(err).Int64("offset", m.Offset).Msg("drop undecodable lifecycle event")
		metrics.LifecycleNotifications.WithLabelValues("unknown", "dropped").Inc()
		return nil
	}
	log := s.Log.With().Str("event_id", env.EventID).Str("event_type", env.EventType).Str("order_id", env.CorrelationID).Logger()

	if s.Dedup != nil {
		first, err := s.Dedup.FirstSeen(ctx, env.EventID)
		if err != nil {
			log.Warn().Err(err).Msg("dedup unavailable, processing anyway")
		} else if !first {
			metrics.LifecycleNotifications.WithLabelValues(env.EventType, "duplicate").Inc()
			return nil
		}
	}

	tags := TagsFor(env)
	if len(tags) == 0 {
		metrics.LifecycleNotifications.WithLabelValues(env.EventType, "ignored").Inc()
		return nil
	}
	if err := s.Cache.Revalidate(ctx, tags); err != nil {
		log.Warn().Err(err).Strs("tags", tags).Msg("revalidate failed")
		metrics.LifecycleNotifications.WithLabelValues(env.EventType, "failed").Inc()
		return nil
	}
	log.Debug().Strs("tags", tags).Msg("revalidated")
	metrics.LifecycleNotifications.WithLabelValues(env.EventType, "ok").Inc()
	return nil
}

// TagsFor lists the cache tags an event invalidates. Paid and cancelled
// orders move stock, so product pages are included.
func TagsFor(env orders.Envelope) []string {
	orderTag := "order:" + env.CorrelationID
	switch env.EventType {
	case orders.EventOrderCreated:
		return []string{"orders", orderTag}
	case orders.EventOrderPaid, orders.EventOrderCancelled:
		return []string{"orders", orderTag, "products"}
	default:
		return nil
	}
}
