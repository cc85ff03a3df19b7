package envelope_test

import (
	"bytes"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/envelope"
)

type record struct {
	Name  string
	Tags  []string
	Attrs map[string]int
	Next  *record
	Any   any
	stamp int
}

type guarded struct {
	mu    sync.Mutex
	Value int
}

type stamped struct {
	id   int
	at   time.Time
	tags [2]string
	Data []byte
}

type hidden struct {
	items []string
}

type copiedGuarded struct {
	mu    *sync.Mutex
	Value int
}

func (g copiedGuarded) DeepCopy() any {
	return copiedGuarded{mu: &sync.Mutex{}, Value: g.Value}
}

func TestNew_RecordsIdentity(t *testing.T) {
	msg := envelope.New(nil, delegate.Args2(1, "x"))

	assert.NotEmpty(t, msg.ID())
	assert.WithinDuration(t, time.Now(), msg.CreatedAt(), time.Second)
	assert.Contains(t, msg.Fingerprint(), "Pair")
	assert.Equal(t, delegate.Args2(1, "x"), msg.Payload())
}

func TestArgs_RoundTrip(t *testing.T) {
	msg := envelope.New(nil, 42)

	got, err := envelope.Args[int](msg)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestArgs_FingerprintMismatch(t *testing.T) {
	msg := envelope.New(nil, 42)

	_, err := envelope.Args[string](msg)
	assert.ErrorIs(t, err, envelope.ErrFingerprint)

	assert.PanicsWithError(t, err.Error(), func() { envelope.MustArgs[string](msg) })
}

func TestArgs_NilInterfacePayload(t *testing.T) {
	var e error
	msg := envelope.New(nil, e)

	got, err := envelope.Args[error](msg)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeliver_CallsInvokerThenRelease(t *testing.T) {
	var seen int
	inv := envelope.InvokerFunc(func(m *envelope.Message) {
		seen = envelope.MustArgs[int](m)
	})
	msg := envelope.New(inv, 7)

	require.NoError(t, msg.Deliver())
	assert.Equal(t, 7, seen)

	require.NoError(t, msg.Release())
	assert.True(t, msg.Released())
	assert.Nil(t, msg.Payload())

	assert.ErrorIs(t, msg.Release(), envelope.ErrReleased)
	assert.ErrorIs(t, msg.Deliver(), envelope.ErrReleased)
	_, err := envelope.Args[int](msg)
	assert.ErrorIs(t, err, envelope.ErrReleased)
}

type discardRecorder struct{ delivered, discarded int }

func (d *discardRecorder) DelegateInvoke(*envelope.Message)  { d.delivered++ }
func (d *discardRecorder) DelegateDiscard(*envelope.Message) { d.discarded++ }

func TestDiscard_NotifiesInvoker(t *testing.T) {
	rec := &discardRecorder{}
	msg := envelope.New(rec, 1)

	require.NoError(t, msg.Discard())
	assert.Equal(t, 0, rec.delivered)
	assert.Equal(t, 1, rec.discarded)
	assert.True(t, msg.Released())
	assert.ErrorIs(t, msg.Discard(), envelope.ErrReleased)
	assert.Equal(t, 1, rec.discarded)

	// Plain invokers are simply released.
	plain := envelope.New(envelope.InvokerFunc(func(*envelope.Message) {}), 1)
	assert.NoError(t, plain.Discard())
}

func TestDeepCopy_NoSharedMemory(t *testing.T) {
	src := &record{
		Name:  "root",
		Tags:  []string{"a", "b"},
		Attrs: map[string]int{"k": 1},
		Next:  &record{Name: "child"},
		Any:   &record{Name: "boxed"},
		stamp: 9,
	}

	cp := envelope.DeepCopy(src)

	require.NotSame(t, src, cp)
	assert.Equal(t, src, cp)
	assert.NotSame(t, src.Next, cp.Next)
	assert.NotSame(t, src.Any, cp.Any)

	src.Tags[0] = "mutated"
	src.Attrs["k"] = 99
	src.Next.Name = "mutated"
	src.Any.(*record).Name = "mutated"

	assert.Equal(t, "a", cp.Tags[0])
	assert.Equal(t, 1, cp.Attrs["k"])
	assert.Equal(t, "child", cp.Next.Name)
	assert.Equal(t, "boxed", cp.Any.(*record).Name)
	assert.Equal(t, 9, cp.stamp)
}

func TestDeepCopy_PreservesCycles(t *testing.T) {
	a := &record{Name: "a"}
	a.Next = a

	cp := envelope.DeepCopy(a)

	assert.NotSame(t, a, cp)
	assert.Same(t, cp, cp.Next)
}

func TestDeepCopy_Scalars(t *testing.T) {
	assert.Equal(t, 5, envelope.DeepCopy(5))
	assert.Equal(t, "s", envelope.DeepCopy("s"))
	assert.Equal(t, [3]int{1, 2, 3}, envelope.DeepCopy([3]int{1, 2, 3}))

	var nilErr error
	assert.Nil(t, envelope.DeepCopy(nilErr))

	b := []byte("hello")
	cb := envelope.DeepCopy(b)
	b[0] = 'j'
	assert.Equal(t, "hello", string(cb))
}

func TestDeepCopy_UsesCopier(t *testing.T) {
	src := copiedGuarded{mu: &sync.Mutex{}, Value: 3}
	cp := envelope.DeepCopy(src)

	assert.Equal(t, 3, cp.Value)
	assert.NotSame(t, src.mu, cp.mu)
}

func TestCheckArgs(t *testing.T) {
	cases := []struct {
		name string
		typ  reflect.Type
		ok   bool
	}{
		{"int", reflect.TypeOf((*int)(nil)).Elem(), true},
		{"record", reflect.TypeOf((**record)(nil)).Elem(), true},
		{"pair", reflect.TypeOf((*delegate.Pair[string, []int])(nil)).Elem(), true},
		{"time", reflect.TypeOf((*time.Time)(nil)).Elem(), true},
		{"chan", reflect.TypeOf((*chan int)(nil)).Elem(), false},
		{"func", reflect.TypeOf((*func())(nil)).Elem(), false},
		{"mutex by pointer", reflect.TypeOf((**sync.Mutex)(nil)).Elem(), false},
		{"struct with mutex", reflect.TypeOf((**guarded)(nil)).Elem(), false},
		{"map of funcs", reflect.TypeOf((*map[string]func())(nil)).Elem(), false},
		{"copier opts in", reflect.TypeOf((*copiedGuarded)(nil)).Elem(), true},
		{"unexported values", reflect.TypeOf((*stamped)(nil)).Elem(), true},
		{"unexported slice", reflect.TypeOf((*hidden)(nil)).Elem(), false},
		{"bytes buffer", reflect.TypeOf((**bytes.Buffer)(nil)).Elem(), false},
		{"slice of hidden", reflect.TypeOf((*[]hidden)(nil)).Elem(), false},
		{"any", reflect.TypeOf((*any)(nil)).Elem(), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := envelope.CheckArgs(tc.typ)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, envelope.ErrUnsafeArgument), "got %v", err)
		})
	}
}

func TestCopy_ChecksInterfaceValues(t *testing.T) {
	_, err := envelope.Copy[any](make(chan int))
	assert.ErrorIs(t, err, envelope.ErrUnsafeArgument)

	_, err = envelope.Copy(record{Name: "x", Any: func() {}})
	assert.ErrorIs(t, err, envelope.ErrUnsafeArgument)

	src := &record{Name: "x", Any: []int{1, 2}}
	cp, err := envelope.Copy[any](src)
	require.NoError(t, err)
	got := cp.(*record)
	assert.NotSame(t, src, got)
	assert.Equal(t, []int{1, 2}, got.Any)
}
