package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/SB-IM/zircon/internal/bridge/errs"
	"github.com/SB-IM/zircon/internal/bridge/rtc"
	"github.com/SB-IM/zircon/internal/bridge/wire"
)

type fakeTrack struct {
	id      string
	kind    string
	enabled bool
}

func (t *fakeTrack) ID() string            { return t.id }
func (t *fakeTrack) Kind() string          { return t.kind }
func (t *fakeTrack) Enabled() bool         { return t.enabled }
func (t *fakeTrack) SetEnabled(v bool)     { t.enabled = v }
func (t *fakeTrack) State() rtc.TrackState { return rtc.TrackStateLive }

type fakeSender struct {
	mu     sync.Mutex
	id     string
	track  rtc.Track
	params rtc.RTPParameters
}

func (s *fakeSender) ID() string       { return s.id }
func (s *fakeSender) Track() rtc.Track { return s.track }

func (s *fakeSender) Parameters() rtc.RTPParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Copy the encodings so the caller mutates a snapshot, not shared state,
	// mirroring how the engine hands out parameters.
	params := s.params
	params.Encodings = append([]rtc.Encoding(nil), s.params.Encodings...)
	return params
}

func (s *fakeSender) SetParameters(params rtc.RTPParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	return nil
}

type fakeReceiver struct {
	id     string
	track  rtc.Track
	params rtc.RTPParameters
}

func (r *fakeReceiver) ID() string                    { return r.id }
func (r *fakeReceiver) Track() rtc.Track              { return r.track }
func (r *fakeReceiver) Parameters() rtc.RTPParameters { return r.params }
func (r *fakeReceiver) StreamIDs() []string           { return []string{"remote-stream"} }

type fakeTransceiver struct {
	id        string
	mid       string
	direction webrtc.RTPTransceiverDirection
	sender    *fakeSender
	receiver  *fakeReceiver
	stopped   bool
}

func (t *fakeTransceiver) ID() string                                  { return t.id }
func (t *fakeTransceiver) Mid() string                                 { return t.mid }
func (t *fakeTransceiver) Direction() webrtc.RTPTransceiverDirection   { return t.direction }
func (t *fakeTransceiver) Sender() rtc.Sender                          { return t.sender }
func (t *fakeTransceiver) Receiver() rtc.Receiver                      { return t.receiver }
func (t *fakeTransceiver) Stopped() bool                               { return t.stopped }

func (t *fakeTransceiver) SetDirection(d webrtc.RTPTransceiverDirection) error {
	t.direction = d
	return nil
}

func (t *fakeTransceiver) CurrentDirection() webrtc.RTPTransceiverDirection {
	return t.direction
}

func (t *fakeTransceiver) Stop() error {
	t.stopped = true
	return nil
}

// fakePC scripts observer outcomes so negotiation flows run synchronously in
// tests.
type fakePC struct {
	mu        sync.Mutex
	handlers  rtc.ConnectionHandlers
	senders   map[string]*fakeSender
	closed    bool
	closeErr  error
	createErr error
	// deliver overrides how negotiation outcomes reach the observer. Nil
	// means resolve immediately.
	deliver func(observer rtc.SDPObserver)
	state   webrtc.SignalingState
}

func newFakePC() *fakePC {
	return &fakePC{senders: make(map[string]*fakeSender), state: webrtc.SignalingStateStable}
}

func (p *fakePC) CreateOffer(_ *rtc.MediaConstraints, observer rtc.SDPObserver) {
	if p.deliver != nil {
		go p.deliver(observer)
		return
	}
	if p.createErr != nil {
		go observer.OnCreateFailure(p.createErr)
		return
	}
	go observer.OnCreateSuccess(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"})
}

func (p *fakePC) CreateAnswer(_ *rtc.MediaConstraints, observer rtc.SDPObserver) {
	go observer.OnCreateSuccess(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"})
}

func (p *fakePC) SetLocalDescription(_ webrtc.SessionDescription, observer rtc.SDPObserver) {
	if p.deliver != nil {
		go p.deliver(observer)
		return
	}
	go observer.OnSetSuccess()
}

func (p *fakePC) SetRemoteDescription(_ webrtc.SessionDescription, observer rtc.SDPObserver) {
	go observer.OnSetSuccess()
}

func (p *fakePC) AddICECandidate(webrtc.ICECandidateInit) error { return nil }

func (p *fakePC) AddTrack(track rtc.Track, _ []string) (rtc.Sender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := "sender-" + track.ID()
	sender := &fakeSender{id: id, track: track, params: rtc.RTPParameters{
		Encodings: []rtc.Encoding{{Active: true}},
	}}
	p.senders[id] = sender
	return sender, nil
}

func (p *fakePC) RemoveTrack(sender rtc.Sender) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.senders, sender.ID())
	return nil
}

func (p *fakePC) AddTransceiver(kind string, direction webrtc.RTPTransceiverDirection) (rtc.Transceiver, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	track := &fakeTrack{id: kind + "-xcvr-track", kind: kind, enabled: true}
	sender := &fakeSender{id: "sender-" + track.id, track: track, params: rtc.RTPParameters{
		Encodings: []rtc.Encoding{{Active: true}},
	}}
	p.senders[sender.id] = sender
	return &fakeTransceiver{
		id:        "transceiver-" + track.id,
		direction: direction,
		sender:    sender,
		receiver:  &fakeReceiver{id: "receiver-" + track.id, track: track},
	}, nil
}

func (p *fakePC) SetConfiguration(rtc.Configuration) error { return nil }

func (p *fakePC) SetHandlers(handlers rtc.ConnectionHandlers) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = handlers
}

func (p *fakePC) SignalingState() webrtc.SignalingState { return p.state }

func (p *fakePC) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeErr
}

type fakeEngine struct {
	mu     sync.Mutex
	pcs    []*fakePC
	tracks int
}

func (e *fakeEngine) NewPeerConnection(rtc.Configuration) (rtc.PeerConnection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pc := newFakePC()
	e.pcs = append(e.pcs, pc)
	return pc, nil
}

func (e *fakeEngine) NewLocalTrack(kind string) (rtc.Track, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks++
	return &fakeTrack{id: kind + "-track", kind: kind, enabled: true}, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) record(name string, _ wire.Map) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func newTestController() (*Controller, *fakeEngine, *eventRecorder) {
	engine := &fakeEngine{}
	events := &eventRecorder{}
	logger := zerolog.Nop()
	return New(engine, &logger, events.record), engine, events
}

func mustInitPC(t *testing.T, c *Controller) string {
	t.Helper()
	result, err := c.NewPeerConnection(nil)
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	tag, _ := result["valueTag"].(string)
	if tag == "" {
		t.Fatalf("NewPeerConnection returned no valueTag: %v", result)
	}
	return tag
}

func TestNewPeerConnection(t *testing.T) {
	c, engine, _ := newTestController()
	tag := mustInitPC(t, c)

	if _, ok := c.Registry().PeerConnection(tag); !ok {
		t.Error("tag does not resolve after init")
	}
	if len(engine.pcs) != 1 {
		t.Fatalf("engine created %d peer connections, want 1", len(engine.pcs))
	}
	if engine.pcs[0].handlers.OnICECandidate == nil {
		t.Error("handlers were not attached")
	}
}

func TestAddTrackRegistersSender(t *testing.T) {
	c, _, _ := newTestController()
	pcTag := mustInitPC(t, c)

	trackValue, err := c.NewTrack("video")
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	trackTag := trackValue["valueTag"].(string)

	senderValue, err := c.AddTrack(pcTag, trackTag, []string{"stream-1"})
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	senderTag, _ := senderValue["valueTag"].(string)
	if senderTag == "" {
		t.Fatalf("sender value has no tag: %v", senderValue)
	}
	streamIDs := senderValue["streamIds"].(wire.Array)
	if len(streamIDs) != 1 || streamIDs[0] != "stream-1" {
		t.Errorf("streamIds = %v, want [stream-1]", streamIDs)
	}
	nested := senderValue["track"].(wire.Map)
	if nested["valueTag"] != trackTag {
		t.Errorf("nested track tag = %v, want %v", nested["valueTag"], trackTag)
	}

	if _, ok := c.Registry().Senders.ByTag(senderTag); !ok {
		t.Error("sender tag does not resolve")
	}
}

func TestAddTrackUnknownTags(t *testing.T) {
	c, _, _ := newTestController()
	pcTag := mustInitPC(t, c)

	if _, err := c.AddTrack("no-such-pc", "no-such-track", nil); !errs.Is(err, errs.NotFound) {
		t.Errorf("AddTrack with unknown pc = %v, want NotFoundError", err)
	}
	if _, err := c.AddTrack(pcTag, "no-such-track", nil); !errs.Is(err, errs.NotFound) {
		t.Errorf("AddTrack with unknown track = %v, want NotFoundError", err)
	}
}

func TestRemoveTrackInvalidatesTagFirst(t *testing.T) {
	c, _, _ := newTestController()
	pcTag := mustInitPC(t, c)
	trackValue, err := c.NewTrack("audio")
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	senderValue, err := c.AddTrack(pcTag, trackValue["valueTag"].(string), nil)
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	senderTag := senderValue["valueTag"].(string)

	if err := c.RemoveTrack(pcTag, senderTag); err != nil {
		t.Fatalf("RemoveTrack: %v", err)
	}
	if _, ok := c.Registry().Senders.ByTag(senderTag); ok {
		t.Error("sender tag still resolves after removal")
	}
	if err := c.RemoveTrack(pcTag, senderTag); !errs.Is(err, errs.NotFound) {
		t.Errorf("second RemoveTrack = %v, want NotFoundError", err)
	}
}

func TestTrackSetEnabled(t *testing.T) {
	c, _, _ := newTestController()
	trackValue, err := c.NewTrack("video")
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	tag := trackValue["valueTag"].(string)

	if err := c.TrackSetEnabled(tag, false); err != nil {
		t.Fatalf("TrackSetEnabled: %v", err)
	}
	track, _ := c.Registry().Tracks.ByTag(tag)
	if track.Enabled() {
		t.Error("track still enabled")
	}
	if err := c.TrackSetEnabled("unknown", true); !errs.Is(err, errs.NotFound) {
		t.Errorf("TrackSetEnabled(unknown) = %v, want NotFoundError", err)
	}
}

func TestTrackState(t *testing.T) {
	c, _, _ := newTestController()
	trackValue, err := c.NewTrack("audio")
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	tag := trackValue["valueTag"].(string)

	state, err := c.TrackState(tag)
	if err != nil {
		t.Fatalf("TrackState: %v", err)
	}
	if state != "live" {
		t.Errorf("state = %q, want live", state)
	}
	if _, err := c.TrackState("unknown"); !errs.Is(err, errs.NotFound) {
		t.Errorf("TrackState(unknown) = %v, want NotFoundError", err)
	}
}

func TestAddTransceiverRegistersBothEnds(t *testing.T) {
	c, _, _ := newTestController()
	pcTag := mustInitPC(t, c)

	value, err := c.AddTransceiver(pcTag, "video", "sendonly", []string{"stream-1"})
	if err != nil {
		t.Fatalf("AddTransceiver: %v", err)
	}
	tag, ok := value["valueTag"].(string)
	if !ok || tag == "" {
		t.Fatalf("transceiver value has no tag: %v", value)
	}
	sender, ok := value["sender"].(wire.Map)
	if !ok {
		t.Fatalf("transceiver value has no sender: %v", value)
	}
	if _, ok := sender["valueTag"].(string); !ok {
		t.Error("sender end is not tagged")
	}
	ids, ok := sender["streamIds"].(wire.Array)
	if !ok || len(ids) != 1 || ids[0] != "stream-1" {
		t.Errorf("sender streamIds = %v, want [stream-1]", sender["streamIds"])
	}
	receiver, ok := value["receiver"].(wire.Map)
	if !ok {
		t.Fatalf("transceiver value has no receiver: %v", value)
	}
	if _, ok := receiver["valueTag"].(string); !ok {
		t.Error("receiver end is not tagged")
	}

	if direction, err := c.TransceiverDirection(tag); err != nil || direction != "sendonly" {
		t.Errorf("TransceiverDirection = %q, %v, want sendonly", direction, err)
	}
	if err := c.TransceiverSetDirection(tag, "recvonly"); err != nil {
		t.Fatalf("TransceiverSetDirection: %v", err)
	}
	if direction, err := c.TransceiverCurrentDirection(tag); err != nil || direction != "recvonly" {
		t.Errorf("TransceiverCurrentDirection = %q, %v, want recvonly", direction, err)
	}
	if err := c.TransceiverStop(tag); err != nil {
		t.Fatalf("TransceiverStop: %v", err)
	}

	if _, err := c.AddTransceiver(pcTag, "video", "sideways", nil); !errs.Is(err, errs.InvalidArgument) {
		t.Errorf("AddTransceiver(bad direction) = %v, want InvalidArgument", err)
	}
	if _, err := c.AddTransceiver("unknown", "video", "sendrecv", nil); !errs.Is(err, errs.NotFound) {
		t.Errorf("AddTransceiver(unknown pc) = %v, want NotFoundError", err)
	}
}

func TestCreateOffer(t *testing.T) {
	c, _, _ := newTestController()
	tag := mustInitPC(t, c)

	offer, err := c.CreateOffer(context.Background(), tag, nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if offer["type"] != "offer" || offer["sdp"] != "v=0 offer" {
		t.Errorf("offer = %v", offer)
	}
}

func TestCreateOfferFailure(t *testing.T) {
	c, engine, _ := newTestController()
	tag := mustInitPC(t, c)
	engine.pcs[0].createErr = errors.New("no codecs")

	_, err := c.CreateOffer(context.Background(), tag, nil)
	if !errs.Is(err, errs.CreateOfferFailed) {
		t.Fatalf("CreateOffer = %v, want CreateOfferFailed", err)
	}
}

func TestCreateOfferWrongFamilySignalIsFatal(t *testing.T) {
	c, engine, _ := newTestController()
	tag := mustInitPC(t, c)
	engine.pcs[0].deliver = func(observer rtc.SDPObserver) {
		observer.OnSetSuccess()
	}

	_, err := c.CreateOffer(context.Background(), tag, nil)
	if !errs.Is(err, errs.Fatal) {
		t.Fatalf("CreateOffer = %v, want FatalError", err)
	}
}

func TestSetLocalDescription(t *testing.T) {
	c, _, _ := newTestController()
	tag := mustInitPC(t, c)

	err := c.SetLocalDescription(context.Background(), tag, wire.Map{"sdp": "v=0", "type": "offer"})
	if err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}

	err = c.SetLocalDescription(context.Background(), tag, wire.Map{"sdp": "v=0", "type": "bogus"})
	if !errs.Is(err, errs.InvalidArgument) {
		t.Errorf("bogus type = %v, want InvalidArgument", err)
	}
}

func TestCloseRejectsPendingNegotiation(t *testing.T) {
	c, engine, _ := newTestController()
	tag := mustInitPC(t, c)
	engine.pcs[0].deliver = func(rtc.SDPObserver) {} // never resolves

	errChan := make(chan error, 1)
	go func() {
		_, err := c.CreateOffer(context.Background(), tag, nil)
		errChan <- err
	}()

	// Give the pending call time to arm its observer.
	time.Sleep(50 * time.Millisecond)
	if err := c.Close(tag); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-errChan:
		if !errs.Is(err, errs.Cancelled) {
			t.Fatalf("pending CreateOffer = %v, want CancelledOnDispose", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending CreateOffer never resolved after Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c, engine, _ := newTestController()
	tag := mustInitPC(t, c)

	if err := c.Close(tag); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !engine.pcs[0].closed {
		t.Error("engine peer connection was not closed")
	}
	if err := c.Close(tag); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if err := c.Close("never-existed"); err != nil {
		t.Errorf("Close(unknown) = %v, want nil", err)
	}
}

func TestTeardown(t *testing.T) {
	c, engine, _ := newTestController()
	pcTag := mustInitPC(t, c)
	trackValue, err := c.NewTrack("video")
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	trackTag := trackValue["valueTag"].(string)

	if err := c.Teardown(); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if !engine.pcs[0].closed {
		t.Error("peer connection survived Teardown")
	}
	if _, ok := c.Registry().PeerConnection(pcTag); ok {
		t.Error("peer connection tag resolves after Teardown")
	}
	if _, ok := c.Registry().Tracks.ByTag(trackTag); ok {
		t.Error("track tag resolves after Teardown")
	}
}

func TestTeardownCollectsCloseErrors(t *testing.T) {
	c, engine, _ := newTestController()
	mustInitPC(t, c)
	mustInitPC(t, c)
	engine.pcs[0].closeErr = errors.New("stuck transport")

	err := c.Teardown()
	if err == nil {
		t.Fatal("Teardown = nil, want the collected close error")
	}
	// Both connections are closed regardless of the first failure.
	if !engine.pcs[0].closed || !engine.pcs[1].closed {
		t.Error("not every peer connection was closed")
	}
}

func TestConnectionEvents(t *testing.T) {
	c, engine, events := newTestController()
	mustInitPC(t, c)
	handlers := engine.pcs[0].handlers

	handlers.OnICECandidate(webrtc.ICECandidateInit{Candidate: "candidate:1"})
	handlers.OnSignalingStateChange(webrtc.SignalingStateHaveLocalOffer)
	handlers.OnICEConnectionStateChange(webrtc.ICEConnectionStateChecking)
	handlers.OnICEGatheringStateChange(webrtc.ICEGathererStateGathering)
	handlers.OnNegotiationNeeded()
	handlers.OnTrack(&fakeReceiver{id: "r1", track: &fakeTrack{id: "remote", kind: "video"}})

	events.mu.Lock()
	defer events.mu.Unlock()
	want := []string{
		"peerConnectionGotICECandidate",
		"peerConnectionSignalingStateChanged",
		"peerConnectionIceConnectionStateChanged",
		"peerConnectionIceGatheringStateChanged",
		"peerConnectionShouldNegotiate",
		"peerConnectionAddedReceiver",
	}
	if len(events.events) != len(want) {
		t.Fatalf("events = %v, want %v", events.events, want)
	}
	for i, name := range want {
		if events.events[i] != name {
			t.Errorf("events[%d] = %q, want %q", i, events.events[i], name)
		}
	}

	// The remote receiver and its track got registered along the way.
	if c.Registry().Receivers.Len() != 1 {
		t.Errorf("Receivers.Len() = %d, want 1", c.Registry().Receivers.Len())
	}
	if c.Registry().Tracks.Len() != 1 {
		t.Errorf("Tracks.Len() = %d, want 1", c.Registry().Tracks.Len())
	}
}

func TestSignalingState(t *testing.T) {
	c, engine, _ := newTestController()
	tag := mustInitPC(t, c)
	engine.pcs[0].state = webrtc.SignalingStateHaveRemoteOffer

	got, err := c.SignalingState(tag)
	if err != nil {
		t.Fatalf("SignalingState: %v", err)
	}
	if got != "have-remote-offer" {
		t.Errorf("SignalingState = %q", got)
	}
}

func TestEncodingMutationWritesBack(t *testing.T) {
	c, _, _ := newTestController()
	pcTag := mustInitPC(t, c)
	trackValue, err := c.NewTrack("video")
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	senderValue, err := c.AddTrack(pcTag, trackValue["valueTag"].(string), nil)
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	senderTag := senderValue["valueTag"].(string)

	if err := c.EncodingSetActive(senderTag, SSRCAny, false); err != nil {
		t.Fatalf("EncodingSetActive: %v", err)
	}
	if err := c.EncodingSetMaxBitrate(senderTag, SSRCAny, 250_000); err != nil {
		t.Fatalf("EncodingSetMaxBitrate: %v", err)
	}
	if err := c.EncodingSetMinBitrate(senderTag, SSRCAny, 50_000); err != nil {
		t.Fatalf("EncodingSetMinBitrate: %v", err)
	}

	sender, _ := c.Registry().Senders.ByTag(senderTag)
	params := sender.Parameters()
	if len(params.Encodings) != 1 {
		t.Fatalf("Encodings = %v", params.Encodings)
	}
	encoding := params.Encodings[0]
	if encoding.Active {
		t.Error("Active survived the write-back")
	}
	if encoding.MaxBitrate == nil || *encoding.MaxBitrate != 250_000 {
		t.Errorf("MaxBitrate = %v, want 250000", encoding.MaxBitrate)
	}
	if encoding.MinBitrate == nil || *encoding.MinBitrate != 50_000 {
		t.Errorf("MinBitrate = %v, want 50000", encoding.MinBitrate)
	}
}

func TestEncodingMutationBySSRC(t *testing.T) {
	c, _, _ := newTestController()
	pcTag := mustInitPC(t, c)
	trackValue, err := c.NewTrack("video")
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	senderValue, err := c.AddTrack(pcTag, trackValue["valueTag"].(string), nil)
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	senderTag := senderValue["valueTag"].(string)

	low, high := int64(1001), int64(1002)
	sender, _ := c.Registry().Senders.ByTag(senderTag)
	if err := sender.SetParameters(rtc.RTPParameters{Encodings: []rtc.Encoding{
		{Active: true, SSRC: &low},
		{Active: true, SSRC: &high},
	}}); err != nil {
		t.Fatal(err)
	}

	if err := c.EncodingSetActive(senderTag, high, false); err != nil {
		t.Fatalf("EncodingSetActive: %v", err)
	}
	params := sender.Parameters()
	if !params.Encodings[0].Active || params.Encodings[1].Active {
		t.Errorf("Encodings = %+v, want only ssrc 1002 deactivated", params.Encodings)
	}

	// The 0 sentinel is ambiguous with two encodings.
	if err := c.EncodingSetActive(senderTag, SSRCAny, false); !errs.Is(err, errs.NotFound) {
		t.Errorf("EncodingSetActive(0 sentinel) = %v, want NotFoundError", err)
	}
	if err := c.EncodingSetActive(senderTag, 9999, false); !errs.Is(err, errs.NotFound) {
		t.Errorf("EncodingSetActive(unknown ssrc) = %v, want NotFoundError", err)
	}
}

func TestEncodingMutationOnReceiverIsInvalidState(t *testing.T) {
	c, engine, _ := newTestController()
	mustInitPC(t, c)
	engine.pcs[0].handlers.OnTrack(&fakeReceiver{id: "r1"})

	receiverTag, ok := c.Registry().Receivers.Tag("r1")
	if !ok {
		t.Fatal("receiver was not registered")
	}

	if err := c.EncodingSetActive(receiverTag, SSRCAny, false); !errs.Is(err, errs.InvalidState) {
		t.Errorf("EncodingSetActive(receiver) = %v, want InvalidState", err)
	}
	if err := c.EncodingSetActive("unknown", SSRCAny, false); !errs.Is(err, errs.NotFound) {
		t.Errorf("EncodingSetActive(unknown) = %v, want NotFoundError", err)
	}
}
