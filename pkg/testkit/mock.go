package testkit

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/shashiranjanraj/delegate/pkg/delegate"
)

// MockTarget is a testify/mock-backed delegate. Expectations are set on the
// argument value:
//
//	m := testkit.NewMockTarget[string, int]()
//	m.On("hello").Return(5)
//
// Calls with no matching expectation return the zero R. Clones share the
// mock so calls made through a clone are recorded on the original.
//
// Chain modifiers on the *mock.Call returned by On (Return, Once, Times)
// before the target can be invoked. To add an expectation while a worker may
// be invoking the target, use Expect.
type MockTarget[A, R any] struct {
	m     *mock.Mock
	mu    *sync.Mutex
	calls *int
	seen  chan A
}

// NewMockTarget returns a target that accepts any argument and returns zero.
func NewMockTarget[A, R any]() *MockTarget[A, R] {
	return &MockTarget[A, R]{
		m:     &mock.Mock{},
		mu:    &sync.Mutex{},
		calls: new(int),
		seen:  make(chan A, 1024),
	}
}

// On adds an expectation for arguments equal to args.
func (mt *MockTarget[A, R]) On(args A) *mock.Call {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.m.On("Invoke", args)
}

// Expect adds an expectation that args returns ret. It is safe to call while
// the target is being invoked.
func (mt *MockTarget[A, R]) Expect(args A, ret R) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.m.On("Invoke", args).Return(ret)
}

func (mt *MockTarget[A, R]) Invoke(args A) R {
	defer func() {
		select {
		case mt.seen <- args:
		default:
		}
	}()

	mt.mu.Lock()
	defer mt.mu.Unlock()
	*mt.calls++

	var zero R
	if !mt.expects(args) {
		return zero
	}
	out := mt.m.MethodCalled("Invoke", args)
	if len(out) == 0 || out.Get(0) == nil {
		return zero
	}
	return out.Get(0).(R)
}

// expects reports whether a live On call matches args. Unmatched calls would
// make testify panic, which is the wrong failure mode on a worker goroutine.
func (mt *MockTarget[A, R]) expects(args A) bool {
	for _, c := range mt.m.ExpectedCalls {
		if c.Method != "Invoke" || c.Repeatability < 0 {
			continue
		}
		if _, diff := c.Arguments.Diff([]interface{}{args}); diff == 0 {
			return true
		}
	}
	return false
}

func (mt *MockTarget[A, R]) Clone() delegate.Delegate[A, R] {
	c := *mt
	return &c
}

// Equal is true for the target and all its clones.
func (mt *MockTarget[A, R]) Equal(other delegate.Delegate[A, R]) bool {
	o, ok := other.(*MockTarget[A, R])
	return ok && o.m == mt.m
}

// WasCalled returns how many times the target has been invoked.
func (mt *MockTarget[A, R]) WasCalled() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return *mt.calls
}

// Seen delivers each argument the target receives, up to a buffer of 1024.
func (mt *MockTarget[A, R]) Seen() <-chan A { return mt.seen }

// AssertExpectations asserts every On expectation was met.
func (mt *MockTarget[A, R]) AssertExpectations(t mock.TestingT) bool {
	return mt.m.AssertExpectations(t)
}

// Mock exposes the underlying testify mock for advanced expectations.
func (mt *MockTarget[A, R]) Mock() *mock.Mock { return mt.m }
