// Package aggregator merges normalized label observations into the
// label dictionary.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alertline/filtersvc/internal/metrics"
	"github.com/alertline/filtersvc/internal/store"
)

// LabelMerger is the slice of the store the engine writes through.
type LabelMerger interface {
	MergeLabelValue(name, value string) (store.MergeResult, error)
}

// Engine applies label observations to the store. Each label/value pair
// is merged independently and atomically; replaying the same event is a
// no-op (at-least-once delivery safe).
type Engine struct {
	store   LabelMerger
	latency prometheus.Summary
}

// New creates an Engine writing through the given merger.
func New(merger LabelMerger, m *metrics.Metrics) *Engine {
	return &Engine{store: merger, latency: m.AggregateLatency}
}

// Aggregate merges every label/value pair of one event into the store.
// Pairs are processed in sorted name order so behavior under partial
// failure is reproducible. A failing pair is logged and skipped; the
// remaining pairs still run — there is no cross-label transaction, only
// per-label atomicity at the store. Returns an error summarizing how
// many pairs failed, nil if all merged.
func (e *Engine) Aggregate(ctx context.Context, labels map[string]string) error {
	timer := prometheus.NewTimer(e.latency)
	defer timer.ObserveDuration()

	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		value := labels[name]
		res, err := e.store.MergeLabelValue(name, value)
		if err != nil {
			slog.Error("failed to merge label, skipping",
				"label", name,
				"value", value,
				"error", err,
			)
			failed++
			continue
		}

		switch {
		case res.Created:
			slog.Info("new label added", "label", name, "value", value)
		case res.Appended:
			slog.Info("value appended to existing label", "label", name, "value", value)
		}
	}

	if failed > 0 {
		return fmt.Errorf("merging labels: %d of %d failed", failed, len(names))
	}
	return nil
}
