package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
)

// startTestNATSServer starts an embedded NATS server on a random port.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})
	return srv
}

func TestNATSPublisher_Publish(t *testing.T) {
	srv := startTestNATSServer(t)

	sub, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe("analyses.*.completed", msgs)
	require.NoError(t, err)
	defer func() { _ = s.Unsubscribe() }()
	require.NoError(t, sub.Flush())

	pub, err := Connect(srv.ClientURL(), "", logger.Discard().Entry)
	require.NoError(t, err)
	defer pub.Close()

	rec := types.AnalysisRecord{
		Summary:   "Weekly sync",
		Decisions: []string{"Ship it"},
		Metadata:  types.Metadata{TotalChunks: 1},
	}
	require.NoError(t, pub.Publish(context.Background(), "abc-123", rec))

	select {
	case msg := <-msgs:
		assert.Equal(t, "analyses.abc-123.completed", msg.Subject)
		var ev Event
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, "abc-123", ev.AnalysisID)
		assert.Equal(t, EventCompleted, ev.Event)
		assert.Equal(t, "Weekly sync", ev.Record.Summary)
		assert.Equal(t, []string{"Ship it"}, ev.Record.Decisions)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	srv := startTestNATSServer(t)
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	pub := NewNATSPublisher(nc, "meetings", logger.Discard().Entry)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Publish(ctx, "x", types.AnalysisRecord{}), context.Canceled)

	pub.Close()
	assert.False(t, nc.IsClosed(), "borrowed connections stay open")
}

func TestSubject(t *testing.T) {
	p := NewNATSPublisher(nil, "meetings", logger.Discard().Entry)
	assert.Equal(t, "meetings.a_b_c.completed", p.Subject("a.b c", EventCompleted))
	assert.Equal(t, "meetings._.completed", p.Subject("", EventCompleted))
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NoError(t, n.Publish(context.Background(), "id", types.AnalysisRecord{}))
	n.Close()
}
