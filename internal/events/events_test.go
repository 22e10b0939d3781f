package events

import (
	"context"
	"testing"

	"github.com/softdesk/apiserver/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerPublisher_Publish(t *testing.T) {
	broker := mq.NewMemory()
	publisher := NewBrokerPublisher(broker, "softdesk.activity")

	err := publisher.Publish(context.Background(), Event{
		Type:      ContributorAdded,
		ActorID:   1,
		UserID:    2,
		ProjectID: 3,
	})
	require.NoError(t, err)

	msgs := broker.Messages("softdesk.activity")
	require.Len(t, msgs, 1)
	assert.Equal(t, "contributor.added", msgs[0].Key)
	assert.Equal(t, "contributor.added", msgs[0].Attributes["type"])

	event, err := Decode(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, ContributorAdded, event.Type)
	assert.Equal(t, 2, event.UserID)
	assert.Equal(t, 3, event.ProjectID)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, msgs[0].ID, event.ID)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestBrokerPublisher_ClosedBroker(t *testing.T) {
	broker := mq.NewMemory()
	require.NoError(t, broker.Close())

	err := NewBrokerPublisher(broker, "t").Publish(context.Background(), Event{Type: IssueCreated})
	assert.ErrorIs(t, err, mq.ErrClosed)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(mq.Message{ID: "1", Data: []byte("{")})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{Type: UserDeleted}))
}
