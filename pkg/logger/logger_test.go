package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	ConfigureOutput(&buf, "json", "info")
	t.Cleanup(func() { Configure("text", "info") })

	Info("worker started", "worker", "ui")
	Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "worker started", line["msg"])
	assert.Equal(t, "ui", line["worker"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	ConfigureOutput(&buf, "text", "error")
	t.Cleanup(func() { Configure("text", "info") })

	Warn("quiet")
	assert.Empty(t, buf.String())

	SetLevel("debug")
	Debug("loud")
	assert.Contains(t, buf.String(), "loud")

	SetLevel("nonsense")
	assert.Equal(t, slog.LevelDebug, Level().Level())
}

func TestMongoHandler_LiftsWorkerAttrs(t *testing.T) {
	SetLevel("debug")
	t.Cleanup(func() { SetLevel("info") })

	h := newMongoHandler(nil, nil)
	scoped := h.WithAttrs([]slog.Attr{slog.String("worker", "ui")}).WithGroup("call")

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "delivered", 0)
	r.AddAttrs(slog.String("envelope_id", "abc"), slog.Int("depth", 3))
	require.NoError(t, scoped.Handle(context.Background(), r))

	select {
	case doc := <-h.queue:
		assert.Equal(t, "ui", doc.Worker)
		assert.Equal(t, "abc", doc.Envelope)
		assert.Equal(t, "delivered", doc.Msg)
		assert.EqualValues(t, 3, doc.Attrs["call.depth"])
	default:
		t.Fatal("expected a queued document")
	}

	h.Close()
	h.Close()
}

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)
	slog.New(m).With("k", "v").Info("hello")

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, b.String(), `"k":"v"`)
}
