// Package observe adapts the engine's four-signal SDP callbacks into
// single-use resolved/rejected outcomes. An observer is bound at construction
// to one operation family, create (offer/answer) or set (local/remote
// description); a signal from the other family means the engine broke its own
// contract and is surfaced as a FatalError, never ignored. Exactly one
// outcome is delivered per observer no matter how many signals arrive.
package observe

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/SB-IM/zircon/internal/bridge/errs"
)

type createOutcome struct {
	desc webrtc.SessionDescription
	err  error
}

// Create is a one-shot observer for offer/answer creation.
type Create struct {
	failCode errs.Code
	once     sync.Once
	done     chan createOutcome
}

// NewCreate returns a create-bound observer. failCode is the error code a
// create-failure signal is reported under.
func NewCreate(failCode errs.Code) *Create {
	return &Create{
		failCode: failCode,
		done:     make(chan createOutcome, 1),
	}
}

func (o *Create) deliver(outcome createOutcome) {
	o.once.Do(func() {
		o.done <- outcome
	})
}

// OnCreateSuccess resolves the observer with the created description.
func (o *Create) OnCreateSuccess(desc webrtc.SessionDescription) {
	o.deliver(createOutcome{desc: desc})
}

// OnCreateFailure rejects the observer.
func (o *Create) OnCreateFailure(err error) {
	o.deliver(createOutcome{err: errs.New(o.failCode, "%v", err)})
}

// OnSetSuccess is a protocol violation on a create-bound observer.
func (o *Create) OnSetSuccess() {
	o.deliver(createOutcome{err: errs.New(errs.Fatal, "set success delivered to a create-bound observer")})
}

// OnSetFailure is a protocol violation on a create-bound observer.
func (o *Create) OnSetFailure(err error) {
	o.deliver(createOutcome{err: errs.New(errs.Fatal, "set failure delivered to a create-bound observer: %v", err)})
}

// Await blocks until the outcome arrives or ctx is done. Cancellation rejects
// the pending call with CancelledOnDispose; a signal that fires afterward is
// absorbed by the buffered outcome channel and ignored.
func (o *Create) Await(ctx context.Context) (webrtc.SessionDescription, error) {
	select {
	case outcome := <-o.done:
		return outcome.desc, outcome.err
	case <-ctx.Done():
		return webrtc.SessionDescription{}, errs.New(errs.Cancelled, "operation cancelled: %v", ctx.Err())
	}
}

// Set is a one-shot observer for applying a local or remote description.
type Set struct {
	failCode errs.Code
	once     sync.Once
	done     chan error
}

// NewSet returns a set-bound observer. failCode is the error code a
// set-failure signal is reported under.
func NewSet(failCode errs.Code) *Set {
	return &Set{
		failCode: failCode,
		done:     make(chan error, 1),
	}
}

func (o *Set) deliver(err error) {
	o.once.Do(func() {
		o.done <- err
	})
}

// OnCreateSuccess is a protocol violation on a set-bound observer.
func (o *Set) OnCreateSuccess(webrtc.SessionDescription) {
	o.deliver(errs.New(errs.Fatal, "create success delivered to a set-bound observer"))
}

// OnCreateFailure is a protocol violation on a set-bound observer.
func (o *Set) OnCreateFailure(err error) {
	o.deliver(errs.New(errs.Fatal, "create failure delivered to a set-bound observer: %v", err))
}

// OnSetSuccess resolves the observer.
func (o *Set) OnSetSuccess() {
	o.deliver(nil)
}

// OnSetFailure rejects the observer.
func (o *Set) OnSetFailure(err error) {
	o.deliver(errs.New(o.failCode, "%v", err))
}

// Await blocks until the outcome arrives or ctx is done.
func (o *Set) Await(ctx context.Context) error {
	select {
	case err := <-o.done:
		return err
	case <-ctx.Done():
		return errs.New(errs.Cancelled, "operation cancelled: %v", ctx.Err())
	}
}
