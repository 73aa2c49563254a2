// Package propagate hands automation triggers to external workflow systems.
package propagate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// Payload is what a propagator delivers for one validation run.
type Payload struct {
	ValidationID string                     `json:"validation_id"`
	PageName     string                     `json:"page_name"`
	TargetURL    string                     `json:"target_url"`
	Status       models.ReportStatus        `json:"status"`
	OverallScore float64                    `json:"overall_score"`
	ReportPath   string                     `json:"report_path,omitempty"`
	Metadata     models.RunMetadata         `json:"metadata"`
	Triggers     []models.AutomationTrigger `json:"triggers"`
	EmittedAt    time.Time                  `json:"emitted_at"`
}

// NewPayload builds the payload for a written report.
func NewPayload(r *models.ValidationReport, reportPath string, triggers []models.AutomationTrigger, now time.Time) Payload {
	if triggers == nil {
		triggers = []models.AutomationTrigger{}
	}
	return Payload{
		ValidationID: r.ValidationID,
		PageName:     r.PageName,
		TargetURL:    r.TargetURL,
		Status:       r.Status,
		OverallScore: r.OverallScore,
		ReportPath:   reportPath,
		Metadata:     r.Metadata,
		Triggers:     triggers,
		EmittedAt:    now.UTC(),
	}
}

// Propagator delivers payloads to a downstream collaborator.
type Propagator interface {
	Propagate(ctx context.Context, p Payload) error
	Close() error
}

// Kinds accepted by New.
const (
	KindLog   = "log"
	KindQueue = "queue"
	KindKafka = "kafka"
)

// Config selects and configures a propagator.
type Config struct {
	Kind string
	// QueueDir is the directory used by the queue propagator.
	QueueDir string
	// Brokers and Topic configure the Kafka propagator.
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// New creates the propagator named by cfg.Kind. An empty kind means log.
func New(cfg Config) (Propagator, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	switch cfg.Kind {
	case "", KindLog:
		return NewLog(cfg.Logger), nil
	case KindQueue:
		return NewQueue(cfg.QueueDir)
	case KindKafka:
		return NewKafka(cfg.Brokers, cfg.Topic)
	default:
		return nil, fmt.Errorf("unknown propagator %q", cfg.Kind)
	}
}

// Log writes payloads to a structured logger.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Log propagator.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

// Propagate implements Propagator.
func (l *Log) Propagate(_ context.Context, p Payload) error {
	for _, t := range p.Triggers {
		l.log.Info("automation trigger",
			"validation_id", p.ValidationID,
			"page", p.PageName,
			"type", t.Type,
			"priority", t.Priority,
			"effort", t.EstimatedEffort,
			"description", t.Description,
		)
	}
	return nil
}

// Close implements Propagator.
func (l *Log) Close() error { return nil }
