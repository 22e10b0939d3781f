package metrics

import (
	"context"

	"github.com/softdesk/apiserver/internal/archive"
	"github.com/softdesk/apiserver/internal/events"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Archiver is the subset of *archive.Archiver the project service uses.
type Archiver interface {
	Archive(ctx context.Context, snapshot archive.Snapshot) (string, error)
	Discard(ctx context.Context, key string) error
}

// Publisher counts every event handed to next by type and outcome.
func (m *Metrics) Publisher(next events.Publisher) events.Publisher {
	return &countingPublisher{next: next, m: m}
}

type countingPublisher struct {
	next events.Publisher
	m    *Metrics
}

func (p *countingPublisher) Publish(ctx context.Context, event events.Event) error {
	err := p.next.Publish(ctx, event)
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	p.m.EventsPublished.WithLabelValues(string(event.Type), outcome).Inc()
	return err
}

// Archiver counts snapshots next writes successfully.
func (m *Metrics) Archiver(next Archiver) Archiver {
	return &countingArchiver{next: next, m: m}
}

type countingArchiver struct {
	next Archiver
	m    *Metrics
}

func (a *countingArchiver) Archive(ctx context.Context, snapshot archive.Snapshot) (string, error) {
	key, err := a.next.Archive(ctx, snapshot)
	if err == nil {
		a.m.ProjectsArchived.Inc()
	}
	return key, err
}

func (a *countingArchiver) Discard(ctx context.Context, key string) error {
	return a.next.Discard(ctx, key)
}
