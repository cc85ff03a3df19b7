package deadletter_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/delegate/pkg/deadletter"
	"github.com/shashiranjanraj/delegate/pkg/database"
	"github.com/shashiranjanraj/delegate/pkg/envelope"
)

type payload struct {
	Mode string `json:"mode"`
}

func TestFromMessage(t *testing.T) {
	msg := envelope.New(nil, payload{Mode: "STARTING"})

	rec := deadletter.FromMessage("worker-1", deadletter.ReasonWorkerClosed, msg)

	assert.Equal(t, msg.ID(), rec.EnvelopeID)
	assert.Equal(t, "worker-1", rec.Source)
	assert.Equal(t, deadletter.ReasonWorkerClosed, rec.Reason)
	assert.Contains(t, rec.Fingerprint, "payload")
	assert.JSONEq(t, `{"mode":"STARTING"}`, rec.Payload)
	assert.Equal(t, msg.CreatedAt(), rec.CreatedAt)
}

func TestFromMessage_UnmarshalablePayload(t *testing.T) {
	msg := envelope.New(nil, map[bool]int{true: 1})

	rec := deadletter.FromMessage("w", deadletter.ReasonWorkerClosed, msg)
	assert.Contains(t, rec.Payload, "could not marshal")
}

func TestMemoryStore_NewestFirstAndBounded(t *testing.T) {
	s := deadletter.NewMemoryStore(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(ctx, deadletter.Record{EnvelopeID: fmt.Sprint(i)}))
	}

	assert.Equal(t, 3, s.Len())

	recs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "4", recs[0].EnvelopeID)
	assert.Equal(t, "2", recs[2].EnvelopeID)

	recs, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestGormStore_SQLite(t *testing.T) {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)

	s, err := deadletter.NewGormStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	for _, reason := range []string{deadletter.ReasonWorkerClosed, deadletter.ReasonUnknownDelegate} {
		require.NoError(t, s.Put(ctx, deadletter.Record{
			EnvelopeID: reason + "-id",
			Source:     "test",
			Reason:     reason,
		}))
	}

	recs, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, deadletter.ReasonUnknownDelegate, recs[0].Reason)
	assert.False(t, recs[0].FailedAt.IsZero())
}
