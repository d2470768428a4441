// Package publish emits per-ontology result events to NATS for downstream
// consumers. Publishing is optional; a nil publisher is a no-op.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ontodash/ontodash/results"
)

// ResultEvent is the message published for each finalized record.
type ResultEvent struct {
	RunID       string         `json:"run_id"`
	Namespace   string         `json:"namespace"`
	MirrorFrom  string         `json:"mirror_from,omitempty"`
	SHA256      string         `json:"sha256_hash,omitempty"`
	Changed     bool           `json:"changed"`
	Failure     string         `json:"failure,omitempty"`
	Metrics     map[string]any `json:"metrics,omitempty"`
	PublishedAt time.Time      `json:"published_at"`
}

// Publisher publishes result events on a per-namespace subject.
type Publisher struct {
	nc            *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

// Connect creates a publisher connected to the given NATS URL.
func Connect(url, subjectPrefix string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(url, nats.Name("ontodash"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS", slog.String("url", url))
	return &Publisher{nc: nc, subjectPrefix: subjectPrefix, logger: logger}, nil
}

// PublishRecord publishes the record as a result event on
// "<prefix>.<namespace>". Skips silently when the publisher is nil so the
// pipeline degrades gracefully without a configured broker.
func (p *Publisher) PublishRecord(rec *results.Record, runID string) error {
	if p == nil || p.nc == nil {
		return nil
	}

	event := ResultEvent{
		RunID:       runID,
		Namespace:   rec.Namespace,
		MirrorFrom:  rec.MirrorFrom,
		SHA256:      rec.SHA256,
		Changed:     rec.Changed,
		Failure:     rec.Failure,
		Metrics:     rec.Metrics,
		PublishedAt: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal result event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, rec.Namespace)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish result event: %w", err)
	}

	p.logger.Debug("Published result event",
		slog.String("subject", subject),
		slog.String("namespace", rec.Namespace))
	return nil
}

// Close drains and closes the underlying connection. Nil-safe.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	_ = p.nc.Drain()
	p.nc.Close()
}
