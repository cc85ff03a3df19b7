package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/delegate/pkg/async"
	"github.com/shashiranjanraj/delegate/pkg/deadletter"
	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/remote"
	"github.com/shashiranjanraj/delegate/pkg/testkit"
)

type alarm struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

func runDispatcher(t *testing.T, d *remote.Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func receiveOne(t *testing.T, ch <-chan alarm) alarm {
	t.Helper()
	select {
	case a := <-ch:
		return a
	case <-time.After(3 * time.Second):
		t.Fatal("remote call not delivered")
		return alarm{}
	}
}

func TestMemory_SendReceiveThroughDispatcher(t *testing.T) {
	tr := remote.NewMemoryTransport(0)
	defer tr.Close()

	got := make(chan alarm, 1)
	reg := remote.NewRegistry()
	reg.Register(remote.NewReceiver("alarm", delegate.Action(func(a alarm) { got <- a })))
	runDispatcher(t, remote.NewDispatcher(tr, reg))

	remote.NewSender[alarm](tr, "alarm").Invoke(alarm{Code: 7, Text: "overheat"})

	assert.Equal(t, alarm{Code: 7, Text: "overheat"}, receiveOne(t, got))
}

func TestReceiver_TargetOnWorker(t *testing.T) {
	w := testkit.StartWorker(t, "remote-target")

	tr := remote.NewMemoryTransport(0)
	defer tr.Close()

	got := make(chan alarm, 1)
	reg := remote.NewRegistry()
	reg.Register(remote.NewReceiver("alarm", async.MustNew(delegate.Action(func(a alarm) { got <- a }), w)))
	runDispatcher(t, remote.NewDispatcher(tr, reg))

	require.NoError(t, remote.NewSender[alarm](tr, "alarm").Send(context.Background(), alarm{Code: 1}))

	assert.Equal(t, 1, receiveOne(t, got).Code)
	assert.Equal(t, uint64(1), w.Stats().Dispatched)
}

func TestDispatcher_UnknownAndUndecodable(t *testing.T) {
	store := deadletter.NewMemoryStore(0)
	reg := remote.NewRegistry()
	reg.Register(remote.NewReceiver("alarm", delegate.Action(func(alarm) {})))
	d := remote.NewDispatcher(remote.NewMemoryTransport(0), reg,
		remote.WithDeadLetter(store), remote.WithSource("test"))
	ctx := context.Background()

	raw, err := remote.Encode("nobody", alarm{Code: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, d.Handle(ctx, raw), remote.ErrUnknownDelegate)

	raw, err = remote.Encode("alarm", "not an alarm")
	require.NoError(t, err)
	assert.Error(t, d.Handle(ctx, raw))

	assert.Error(t, d.Handle(ctx, []byte("{not json")))

	recs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, deadletter.ReasonDecode, recs[0].Reason)
	assert.Equal(t, deadletter.ReasonDecode, recs[1].Reason)
	assert.Equal(t, deadletter.ReasonUnknownDelegate, recs[2].Reason)
	assert.Equal(t, "nobody", recs[2].Fingerprint)
	assert.Equal(t, "test", recs[2].Source)
	testkit.AssertJSON(t, `{"code":1,"text":""}`, recs[2].Payload)
}

func TestRegistry_Unregister(t *testing.T) {
	reg := remote.NewRegistry()
	reg.Register(remote.NewReceiver("a", delegate.Action(func(int) {})))
	reg.Register(remote.NewReceiver("b", delegate.Action(func(int) {})))
	assert.ElementsMatch(t, []string{"a", "b"}, reg.IDs())

	reg.Unregister("a")
	assert.Equal(t, []string{"b"}, reg.IDs())
}

func TestSender_CloneEquality(t *testing.T) {
	t1 := remote.NewMemoryTransport(1)
	t2 := remote.NewMemoryTransport(1)

	s := remote.NewSender[int](t1, "x")
	assert.True(t, s.Equal(s.Clone()))
	assert.True(t, s.Clone().Equal(s))
	assert.True(t, s.Equal(remote.NewSender[int](t1, "x")))
	assert.False(t, s.Equal(remote.NewSender[int](t1, "y")))
	assert.False(t, s.Equal(remote.NewSender[int](t2, "x")))
}

func TestMemoryTransport_Closed(t *testing.T) {
	tr := remote.NewMemoryTransport(1)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	assert.ErrorIs(t, tr.Send(context.Background(), []byte("x")), remote.ErrTransportClosed)
	_, err := tr.Receive(context.Background())
	assert.ErrorIs(t, err, remote.ErrTransportClosed)

	err = remote.NewSender[int](tr, "x").Send(context.Background(), 1)
	assert.ErrorIs(t, err, remote.ErrTransportClosed)
}

func TestDispatcher_StopsOnTransportClose(t *testing.T) {
	tr := remote.NewMemoryTransport(1)
	d := remote.NewDispatcher(tr, remote.NewRegistry())

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	require.NoError(t, tr.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestWebSocket_RoundTrip(t *testing.T) {
	got := make(chan alarm, 1)
	reg := remote.NewRegistry()
	reg.Register(remote.NewReceiver("alarm", delegate.Action(func(a alarm) { got <- a })))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := remote.Upgrade(w, r)
		if err != nil {
			return
		}
		defer tr.Close()
		_ = remote.NewDispatcher(tr, reg).Run(r.Context())
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := remote.DialWebSocket(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, remote.NewSender[alarm](client, "alarm").Send(ctx, alarm{Code: 42, Text: "ws"}))
	assert.Equal(t, alarm{Code: 42, Text: "ws"}, receiveOne(t, got))
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use a separate DB for tests
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestRedis_SendReceive(t *testing.T) {
	client := newTestRedisClient(t)
	tr := remote.NewRedisTransport(client, "delegate:test:calls")
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, tr.Send(ctx, []byte("first")))
	require.NoError(t, tr.Send(ctx, []byte("second")))

	a, err := tr.Receive(ctx)
	require.NoError(t, err)
	b, err := tr.Receive(ctx)
	require.NoError(t, err)

	assert.Equal(t, "first", string(a))
	assert.Equal(t, "second", string(b))
}

func TestRedis_ThroughDispatcher(t *testing.T) {
	client := newTestRedisClient(t)
	tr := remote.NewRedisTransport(client, "delegate:test:dispatch")

	got := make(chan alarm, 1)
	reg := remote.NewRegistry()
	reg.Register(remote.NewReceiver("alarm", delegate.Action(func(a alarm) { got <- a })))
	runDispatcher(t, remote.NewDispatcher(tr, reg))

	require.NoError(t, remote.NewSender[alarm](tr, "alarm").Send(context.Background(), alarm{Code: 3}))
	assert.Equal(t, 3, receiveOne(t, got).Code)
}
