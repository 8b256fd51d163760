package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/SB-IM/zircon/internal/bridge/errs"
)

func TestCreateResolves(t *testing.T) {
	o := NewCreate(errs.CreateOfferFailed)
	want := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	go o.OnCreateSuccess(want)

	got, err := o.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if got != want {
		t.Errorf("Await = %+v, want %+v", got, want)
	}
}

func TestCreateRejectsWithBoundCode(t *testing.T) {
	o := NewCreate(errs.CreateAnswerFailed)
	go o.OnCreateFailure(errors.New("engine said no"))

	_, err := o.Await(context.Background())
	if !errs.Is(err, errs.CreateAnswerFailed) {
		t.Fatalf("Await = %v, want CreateAnswerFailed", err)
	}
}

func TestCreateRejectsWrongFamilySignals(t *testing.T) {
	t.Run("set success", func(t *testing.T) {
		o := NewCreate(errs.CreateOfferFailed)
		go o.OnSetSuccess()
		_, err := o.Await(context.Background())
		if !errs.Is(err, errs.Fatal) {
			t.Fatalf("Await = %v, want FatalError", err)
		}
	})
	t.Run("set failure", func(t *testing.T) {
		o := NewCreate(errs.CreateOfferFailed)
		go o.OnSetFailure(errors.New("boom"))
		_, err := o.Await(context.Background())
		if !errs.Is(err, errs.Fatal) {
			t.Fatalf("Await = %v, want FatalError", err)
		}
	})
}

func TestCreateDeliversExactlyOnce(t *testing.T) {
	o := NewCreate(errs.CreateOfferFailed)
	want := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "first"}
	o.OnCreateSuccess(want)
	o.OnCreateFailure(errors.New("late"))
	o.OnCreateSuccess(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "second"})

	got, err := o.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if got.SDP != "first" {
		t.Errorf("Await delivered %q, want the first signal", got.SDP)
	}
}

func TestCreateCancelled(t *testing.T) {
	o := NewCreate(errs.CreateOfferFailed)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Await(ctx)
	if !errs.Is(err, errs.Cancelled) {
		t.Fatalf("Await = %v, want CancelledOnDispose", err)
	}

	// A late signal after cancellation must not block the engine thread.
	done := make(chan struct{})
	go func() {
		o.OnCreateSuccess(webrtc.SessionDescription{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("late signal blocked")
	}
}

func TestSetResolves(t *testing.T) {
	o := NewSet(errs.SetLocalDescriptionFailed)
	go o.OnSetSuccess()
	if err := o.Await(context.Background()); err != nil {
		t.Fatalf("Await: %v", err)
	}
}

func TestSetRejectsWithBoundCode(t *testing.T) {
	o := NewSet(errs.SetRemoteDescriptionFailed)
	go o.OnSetFailure(errors.New("bad sdp"))
	err := o.Await(context.Background())
	if !errs.Is(err, errs.SetRemoteDescriptionFailed) {
		t.Fatalf("Await = %v, want SetRemoteDescriptionFailed", err)
	}
}

func TestSetRejectsWrongFamilySignals(t *testing.T) {
	t.Run("create success", func(t *testing.T) {
		o := NewSet(errs.SetLocalDescriptionFailed)
		go o.OnCreateSuccess(webrtc.SessionDescription{})
		if err := o.Await(context.Background()); !errs.Is(err, errs.Fatal) {
			t.Fatalf("Await = %v, want FatalError", err)
		}
	})
	t.Run("create failure", func(t *testing.T) {
		o := NewSet(errs.SetLocalDescriptionFailed)
		go o.OnCreateFailure(errors.New("boom"))
		if err := o.Await(context.Background()); !errs.Is(err, errs.Fatal) {
			t.Fatalf("Await = %v, want FatalError", err)
		}
	})
}

func TestSetDeliversExactlyOnce(t *testing.T) {
	o := NewSet(errs.SetLocalDescriptionFailed)
	o.OnSetSuccess()
	o.OnSetFailure(errors.New("late"))

	if err := o.Await(context.Background()); err != nil {
		t.Fatalf("Await delivered the late failure: %v", err)
	}
}
