// Package worker classifies stored guest messages and raises alerts for
// the ones that need the host's attention.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/edgard/inboxintel/internal/alert"
	"github.com/edgard/inboxintel/internal/classifier"
	"github.com/edgard/inboxintel/internal/database"
	"github.com/edgard/inboxintel/internal/metrics"
	"github.com/edgard/inboxintel/internal/notify"
)

// Deps holds the collaborators of a Worker. Limiter may be nil.
type Deps struct {
	Store      database.Store
	Classifier classifier.Classifier
	Policy     alert.Policy
	Renderer   *alert.Renderer
	Notifier   notify.Notifier
	Limiter    *rate.Limiter
	Logger     *slog.Logger
}

// ItemResult is the outcome for one message of a run.
type ItemResult struct {
	MessageID      int64
	ExternalID     string
	Classification database.Classification
	Classified     bool
	Alerted        bool
	Err            error
	AlertErr       error
}

// RunSummary aggregates a run. Processed counts messages that were
// classified and persisted.
type RunSummary struct {
	Processed int
	Failed    int
	Alerted   int
	Items     []ItemResult
}

// Worker runs classification passes over unclassified messages.
type Worker struct {
	deps Deps
	log  *slog.Logger
}

// New creates a Worker.
func New(deps Deps) *Worker {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Worker{deps: deps, log: log.With("component", "worker")}
}

// NewLimiter returns a limiter allowing rps classifier calls per second, or
// nil when rps is not positive.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Run classifies every message that is unclassified at the start of the
// run. A failing message stays unclassified and is retried on the next run;
// it does not stop the others. Only a failure to list messages, or a
// cancelled context, aborts the run.
func (w *Worker) Run(ctx context.Context) (RunSummary, error) {
	pending, err := w.deps.Store.ListUnclassified(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list unclassified messages: %w", err)
	}
	if len(pending) == 0 {
		w.log.DebugContext(ctx, "No messages to classify")
		return RunSummary{}, nil
	}

	w.log.InfoContext(ctx, "Classifying messages", "count", len(pending))

	summary := RunSummary{Items: make([]ItemResult, 0, len(pending))}
	for _, msg := range pending {
		if w.deps.Limiter != nil {
			if err := w.deps.Limiter.Wait(ctx); err != nil {
				return summary, fmt.Errorf("classification run interrupted: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("classification run interrupted: %w", err)
		}

		item := w.process(ctx, msg)
		summary.Items = append(summary.Items, item)
		switch {
		case item.Err != nil:
			summary.Failed++
		case item.Classified:
			summary.Processed++
			if item.Alerted {
				summary.Alerted++
			}
		}
	}

	w.log.InfoContext(ctx, "Classification run finished",
		"processed", summary.Processed,
		"failed", summary.Failed,
		"alerted", summary.Alerted,
	)
	return summary, nil
}

func (w *Worker) process(ctx context.Context, msg database.Message) ItemResult {
	item := ItemResult{MessageID: msg.ID, ExternalID: msg.ExternalID}
	log := w.log.With("message_id", msg.ExternalID)

	res, err := w.deps.Classifier.Classify(ctx, msg.Text)
	if err != nil {
		metrics.ClassificationFailures.Inc()
		log.WarnContext(ctx, "Classification failed; message stays unclassified", "error", err)
		item.Err = err
		return item
	}

	if err := w.deps.Store.MarkClassified(ctx, msg.ID, res); err != nil {
		metrics.ClassificationFailures.Inc()
		log.ErrorContext(ctx, "Failed to persist classification", "error", err)
		item.Err = fmt.Errorf("persist classification: %w", err)
		return item
	}

	item.Classification = res
	item.Classified = true
	metrics.MessagesClassified.WithLabelValues(string(res.Category)).Inc()
	log.InfoContext(ctx, "Message classified",
		"category", res.Category,
		"confidence", res.Confidence,
	)

	if !w.deps.Policy.ShouldAlert(res) || !notify.Enabled(w.deps.Notifier) {
		return item
	}

	if err := w.sendAlert(ctx, msg, res); err != nil {
		log.WarnContext(ctx, "Failed to send alert", "category", res.Category, "error", err)
		item.AlertErr = err
		return item
	}
	item.Alerted = true
	log.InfoContext(ctx, "Alert sent", "category", res.Category)
	return item
}

func (w *Worker) sendAlert(ctx context.Context, msg database.Message, res database.Classification) error {
	if w.deps.Renderer == nil {
		return fmt.Errorf("no alert renderer configured")
	}
	a, err := w.deps.Renderer.Build(msg, res)
	if err != nil {
		return err
	}
	return w.deps.Notifier.Send(ctx, a.Title, a.Body)
}
