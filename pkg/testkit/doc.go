// Package testkit holds helpers shared by the delegate runtime's tests:
// worker control (start, park, drain), a testify-backed mock target and a
// JSON comparison for wire payloads and dead-letter records.
//
//	func TestSomething(t *testing.T) {
//	    w := testkit.StartWorker(t, "ui")
//	    target := testkit.NewMockTarget[int, int]()
//	    target.On(3).Return(9)
//
//	    h := async.NewWait[int, int](target, w, time.Second)
//	    assert.Equal(t, 9, h.Invoke(3))
//	    target.AssertExpectations(t)
//	}
package testkit
