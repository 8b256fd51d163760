package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"

	"github.com/SB-IM/zircon/internal/bridge/rtc"
)

const rtcpPLIInterval = 3 * time.Second

// peerConnection wraps *webrtc.PeerConnection. Wrappers around pion senders,
// receivers and transceivers are cached per underlying object so the same
// engine object always surfaces as the same value; registry metadata is keyed
// by that identity.
type peerConnection struct {
	pc     *webrtc.PeerConnection
	engine *Engine

	mu           sync.Mutex
	senders      map[*webrtc.RTPSender]*sender
	receivers    map[*webrtc.RTPReceiver]*receiver
	transceivers map[*webrtc.RTPTransceiver]*transceiver
	closed       bool
}

func newPeerConnection(pc *webrtc.PeerConnection, engine *Engine) *peerConnection {
	return &peerConnection{
		pc:           pc,
		engine:       engine,
		senders:      make(map[*webrtc.RTPSender]*sender),
		receivers:    make(map[*webrtc.RTPReceiver]*receiver),
		transceivers: make(map[*webrtc.RTPTransceiver]*transceiver),
	}
}

func (p *peerConnection) CreateOffer(constraints *rtc.MediaConstraints, observer rtc.SDPObserver) {
	go func() {
		offer, err := p.pc.CreateOffer(offerOptions(constraints))
		if err != nil {
			observer.OnCreateFailure(err)
			return
		}
		observer.OnCreateSuccess(offer)
	}()
}

func (p *peerConnection) CreateAnswer(constraints *rtc.MediaConstraints, observer rtc.SDPObserver) {
	go func() {
		answer, err := p.pc.CreateAnswer(answerOptions(constraints))
		if err != nil {
			observer.OnCreateFailure(err)
			return
		}
		observer.OnCreateSuccess(answer)
	}()
}

func (p *peerConnection) SetLocalDescription(desc webrtc.SessionDescription, observer rtc.SDPObserver) {
	go func() {
		if err := p.pc.SetLocalDescription(desc); err != nil {
			observer.OnSetFailure(err)
			return
		}
		observer.OnSetSuccess()
	}()
}

func (p *peerConnection) SetRemoteDescription(desc webrtc.SessionDescription, observer rtc.SDPObserver) {
	go func() {
		if err := p.pc.SetRemoteDescription(desc); err != nil {
			observer.OnSetFailure(err)
			return
		}
		observer.OnSetSuccess()
	}()
}

func (p *peerConnection) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	if err := p.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("could not add ICE candidate: %w", err)
	}
	return nil
}

func (p *peerConnection) AddTrack(track rtc.Track, streamIDs []string) (rtc.Sender, error) {
	local, ok := track.(*localTrack)
	if !ok {
		return nil, fmt.Errorf("track %q is not a sendable local track", track.ID())
	}
	rtpSender, err := p.pc.AddTrack(local.track)
	if err != nil {
		return nil, fmt.Errorf("could not add track: %w", err)
	}
	return p.wrapSender(rtpSender, track), nil
}

func (p *peerConnection) RemoveTrack(s rtc.Sender) error {
	wrapped, ok := s.(*sender)
	if !ok {
		return fmt.Errorf("sender %q does not belong to this engine", s.ID())
	}
	if err := p.pc.RemoveTrack(wrapped.rtpSender); err != nil {
		return fmt.Errorf("could not remove track: %w", err)
	}
	p.mu.Lock()
	delete(p.senders, wrapped.rtpSender)
	p.mu.Unlock()
	return nil
}

func (p *peerConnection) AddTransceiver(kind string, direction webrtc.RTPTransceiverDirection) (rtc.Transceiver, error) {
	codecType := webrtc.NewRTPCodecType(kind)
	if codecType == webrtc.RTPCodecType(0) {
		return nil, fmt.Errorf("unknown transceiver kind %q", kind)
	}
	t, err := p.pc.AddTransceiverFromKind(codecType, webrtc.RTPTransceiverInit{Direction: direction})
	if err != nil {
		return nil, fmt.Errorf("could not add transceiver: %w", err)
	}
	return p.wrapTransceiver(t), nil
}

func (p *peerConnection) SetConfiguration(config rtc.Configuration) error {
	pionConfig, err := pionConfiguration(config)
	if err != nil {
		return err
	}
	if err := p.pc.SetConfiguration(pionConfig); err != nil {
		return fmt.Errorf("could not set configuration: %w", err)
	}
	return nil
}

func (p *peerConnection) SetHandlers(handlers rtc.ConnectionHandlers) {
	if handlers.OnICECandidate != nil {
		p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			if c == nil {
				return
			}
			handlers.OnICECandidate(c.ToJSON())
		})
	}
	if handlers.OnSignalingStateChange != nil {
		p.pc.OnSignalingStateChange(handlers.OnSignalingStateChange)
	}
	if handlers.OnICEConnectionStateChange != nil {
		p.pc.OnICEConnectionStateChange(handlers.OnICEConnectionStateChange)
	}
	if handlers.OnICEGatheringStateChange != nil {
		p.pc.OnICEGatheringStateChange(handlers.OnICEGatheringStateChange)
	}
	if handlers.OnNegotiationNeeded != nil {
		p.pc.OnNegotiationNeeded(handlers.OnNegotiationNeeded)
	}
	if handlers.OnTrack != nil {
		p.pc.OnTrack(func(remote *webrtc.TrackRemote, rtpReceiver *webrtc.RTPReceiver) {
			if remote.Kind() == webrtc.RTPCodecTypeVideo {
				go p.sendPLI(remote)
			}
			handlers.OnTrack(p.wrapReceiver(rtpReceiver))
		})
	}
}

func (p *peerConnection) SignalingState() webrtc.SignalingState {
	return p.pc.SignalingState()
}

func (p *peerConnection) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, r := range p.receivers {
		if r.track != nil {
			r.track.markEnded()
		}
	}
	p.mu.Unlock()
	if err := p.pc.Close(); err != nil {
		return fmt.Errorf("could not close peer connection: %w", err)
	}
	return nil
}

// sendPLI asks the remote side for a keyframe on an interval, the usual
// tradeoff against parsing incoming RTCP feedback. The loop ends once the
// connection is closed and writes start failing.
func (p *peerConnection) sendPLI(remote *webrtc.TrackRemote) {
	ticker := time.NewTicker(rtcpPLIInterval)
	defer ticker.Stop()
	for range ticker.C {
		err := p.pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(remote.SSRC())},
		})
		if err != nil {
			if !errors.Is(err, io.ErrClosedPipe) {
				p.engine.logger.Err(err).Msg("could not write RTCP PLI")
			}
			return
		}
	}
}

func (p *peerConnection) wrapSender(rtpSender *webrtc.RTPSender, track rtc.Track) *sender {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.senders[rtpSender]; ok {
		return s
	}
	s := &sender{
		id:        p.engine.newID("sender"),
		rtpSender: rtpSender,
		track:     track,
		engine:    p.engine,
		overrides: make(map[int64]encodingOverride),
	}
	p.senders[rtpSender] = s
	return s
}

func (p *peerConnection) wrapReceiver(rtpReceiver *webrtc.RTPReceiver) *receiver {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.receivers[rtpReceiver]; ok {
		return r
	}
	r := &receiver{
		id:          p.engine.newID("receiver"),
		rtpReceiver: rtpReceiver,
		engine:      p.engine,
	}
	if remote := rtpReceiver.Track(); remote != nil {
		r.track = newRemoteTrack(remote)
	}
	p.receivers[rtpReceiver] = r
	return r
}

func (p *peerConnection) wrapTransceiver(t *webrtc.RTPTransceiver) *transceiver {
	p.mu.Lock()
	if cached, ok := p.transceivers[t]; ok {
		p.mu.Unlock()
		return cached
	}
	wrapped := &transceiver{
		id:          p.engine.newID("transceiver"),
		transceiver: t,
		pc:          p,
	}
	p.transceivers[t] = wrapped
	p.mu.Unlock()
	return wrapped
}
