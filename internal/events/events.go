// Package events describes the activity feed published when accounts,
// projects, contributors, issues, and comments change.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/softdesk/apiserver/internal/mq"
)

// Type names an activity. It doubles as the broker routing key.
type Type string

const (
	UserSignedUp       Type = "user.signed_up"
	UserDeleted        Type = "user.deleted"
	ProjectCreated     Type = "project.created"
	ProjectUpdated     Type = "project.updated"
	ProjectDeleted     Type = "project.deleted"
	ContributorAdded   Type = "contributor.added"
	ContributorRemoved Type = "contributor.removed"
	IssueCreated       Type = "issue.created"
	IssueUpdated       Type = "issue.updated"
	IssueDeleted       Type = "issue.deleted"
	CommentCreated     Type = "comment.created"
	CommentUpdated     Type = "comment.updated"
	CommentDeleted     Type = "comment.deleted"
)

// Event is one entry of the activity feed. Only the ids relevant to Type are set.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	ActorID    int       `json:"actor_id"`
	UserID     int       `json:"user_id,omitempty"`
	ProjectID  int       `json:"project_id,omitempty"`
	IssueID    int       `json:"issue_id,omitempty"`
	CommentID  int       `json:"comment_id,omitempty"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits activity events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// BrokerPublisher encodes events as JSON and sends them to one topic.
type BrokerPublisher struct {
	broker mq.Broker
	topic  string
	now    func() time.Time
}

func NewBrokerPublisher(broker mq.Broker, topic string) *BrokerPublisher {
	return &BrokerPublisher{broker: broker, topic: topic, now: time.Now}
}

func (p *BrokerPublisher) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	_, err = p.broker.Publish(ctx, p.topic, mq.Message{
		ID:         event.ID,
		Key:        string(event.Type),
		Data:       data,
		Attributes: map[string]string{"type": string(event.Type)},
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// Decode reads an event back from a delivered message.
func Decode(msg mq.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	return event, nil
}
