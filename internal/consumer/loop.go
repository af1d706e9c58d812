package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alertline/filtersvc/internal/aggregator"
	"github.com/alertline/filtersvc/internal/event"
	"github.com/alertline/filtersvc/internal/metrics"
)

// DefaultPollTimeout bounds one blocking poll when no timeout is
// configured.
const DefaultPollTimeout = 5 * time.Second

// Loop polls the source and feeds decoded events through the
// aggregation engine. Processing is strictly sequential: one message is
// fully aggregated before the next poll.
type Loop struct {
	source      Source
	engine      *aggregator.Engine
	metrics     *metrics.Metrics
	pollTimeout time.Duration
}

// NewLoop creates a consumer loop. pollTimeout <= 0 selects
// DefaultPollTimeout.
func NewLoop(source Source, engine *aggregator.Engine, m *metrics.Metrics, pollTimeout time.Duration) *Loop {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Loop{
		source:      source,
		engine:      engine,
		metrics:     m,
		pollTimeout: pollTimeout,
	}
}

// Run polls until ctx is cancelled. Delivery errors and undecodable
// messages are logged, counted, and skipped; neither stops the loop.
// The in-flight message is finished before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("consumer loop started", "poll_timeout", l.pollTimeout)

	for {
		msg, err := l.source.Poll(ctx, l.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				slog.Info("consumer loop stopping")
				return nil
			}
			slog.Error("consumer delivery error", "error", err)
			l.metrics.Messages.WithLabelValues(metrics.ResultDeliveryError).Inc()
			continue
		}
		if msg == nil {
			// Poll timeout, nothing delivered.
			continue
		}

		l.handle(ctx, msg)

		if ctx.Err() != nil {
			slog.Info("consumer loop stopping")
			return nil
		}
	}
}

func (l *Loop) handle(ctx context.Context, msg *Message) {
	raw, err := event.Decode(msg.Value)
	if err != nil {
		slog.Warn("skipping undecodable message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		l.metrics.Messages.WithLabelValues(metrics.ResultDecodeError).Inc()
		return
	}

	slog.Info("event received",
		"event_id", raw.EventID,
		"alert_name", raw.AlertName,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)

	if err := l.engine.Aggregate(ctx, raw.Normalize()); err != nil {
		slog.Error("aggregation incomplete",
			"event_id", raw.EventID,
			"error", err,
		)
		return
	}
	l.metrics.Messages.WithLabelValues(metrics.ResultProcessed).Inc()
}
