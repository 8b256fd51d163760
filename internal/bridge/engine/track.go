package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/SB-IM/zircon/internal/bridge/rtc"
)

// localTrack is a sendable track. pion tracks carry no enabled bit, so the
// wrapper owns it; senders consult it before writing media.
type localTrack struct {
	track *webrtc.TrackLocalStaticRTP

	mu      sync.Mutex
	enabled bool
}

func newLocalTrack(track *webrtc.TrackLocalStaticRTP) *localTrack {
	return &localTrack{track: track, enabled: true}
}

func (t *localTrack) ID() string   { return t.track.ID() }
func (t *localTrack) Kind() string { return t.track.Kind().String() }

func (t *localTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *localTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// State is always live: a static RTP source has no end-of-stream signal, the
// scripting side disables the track instead.
func (t *localTrack) State() rtc.TrackState {
	return rtc.TrackStateLive
}

// remoteTrack wraps an inbound track delivered by the engine.
type remoteTrack struct {
	track *webrtc.TrackRemote

	mu      sync.Mutex
	enabled bool
	ended   bool
}

// markEnded flips the track to ended once its peer connection is disposed.
func (t *remoteTrack) markEnded() {
	t.mu.Lock()
	t.ended = true
	t.mu.Unlock()
}

func newRemoteTrack(track *webrtc.TrackRemote) *remoteTrack {
	return &remoteTrack{track: track, enabled: true}
}

func (t *remoteTrack) ID() string   { return t.track.ID() }
func (t *remoteTrack) Kind() string { return t.track.Kind().String() }

func (t *remoteTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *remoteTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *remoteTrack) State() rtc.TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return rtc.TrackStateEnded
	}
	return rtc.TrackStateLive
}

type encodingOverride struct {
	active     bool
	maxBitrate *int
	minBitrate *int
}

// sender wraps *webrtc.RTPSender. pion has no parameter write-back API, so
// written encoding settings are retained here and merged into every fresh
// snapshot; the engine-visible fields (ssrc, codecs, extensions) always come
// straight from pion.
type sender struct {
	id        string
	rtpSender *webrtc.RTPSender
	track     rtc.Track
	engine    *Engine

	mu        sync.Mutex
	overrides map[int64]encodingOverride
}

func (s *sender) ID() string      { return s.id }
func (s *sender) Track() rtc.Track { return s.track }

func (s *sender) Parameters() rtc.RTPParameters {
	params := s.rtpSender.GetParameters()

	out := rtc.RTPParameters{
		TransactionID: s.engine.newID("transaction"),
	}
	for _, extension := range params.HeaderExtensions {
		out.HeaderExtensions = append(out.HeaderExtensions, rtc.HeaderExtension{
			URI: extension.URI,
			ID:  extension.ID,
		})
	}

	s.mu.Lock()
	for _, encoding := range params.Encodings {
		ssrc := int64(encoding.SSRC)
		entry := rtc.Encoding{Active: true, SSRC: &ssrc}
		if override, ok := s.overrides[ssrc]; ok {
			entry.Active = override.active
			entry.MaxBitrate = override.maxBitrate
			entry.MinBitrate = override.minBitrate
		}
		out.Encodings = append(out.Encodings, entry)
	}
	s.mu.Unlock()

	for _, codec := range params.Codecs {
		out.Codecs = append(out.Codecs, convertCodec(codec))
	}
	return out
}

func (s *sender) SetParameters(params rtc.RTPParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, encoding := range params.Encodings {
		if encoding.SSRC == nil {
			continue
		}
		s.overrides[*encoding.SSRC] = encodingOverride{
			active:     encoding.Active,
			maxBitrate: encoding.MaxBitrate,
			minBitrate: encoding.MinBitrate,
		}
	}
	return nil
}

// receiver wraps *webrtc.RTPReceiver. Parameters are derived from the
// received track; they are read-only by contract.
type receiver struct {
	id          string
	rtpReceiver *webrtc.RTPReceiver
	track       *remoteTrack
	engine      *Engine
}

func (r *receiver) ID() string { return r.id }

func (r *receiver) Track() rtc.Track {
	if r.track == nil {
		return nil
	}
	return r.track
}

func (r *receiver) Parameters() rtc.RTPParameters {
	out := rtc.RTPParameters{
		TransactionID: r.engine.newID("transaction"),
	}
	if r.track == nil {
		return out
	}
	remote := r.track.track
	ssrc := int64(remote.SSRC())
	out.Encodings = append(out.Encodings, rtc.Encoding{Active: true, SSRC: &ssrc})
	out.Codecs = append(out.Codecs, convertCodec(remote.Codec()))
	return out
}

func (r *receiver) StreamIDs() []string {
	if r.track == nil {
		return nil
	}
	return []string{r.track.track.StreamID()}
}

// transceiver wraps *webrtc.RTPTransceiver. pion does not expose its stopped
// bit, so the wrapper records a successful Stop.
type transceiver struct {
	id          string
	transceiver *webrtc.RTPTransceiver
	pc          *peerConnection

	mu      sync.Mutex
	stopped bool
}

func (t *transceiver) ID() string  { return t.id }
func (t *transceiver) Mid() string { return t.transceiver.Mid() }

func (t *transceiver) Direction() webrtc.RTPTransceiverDirection {
	return t.transceiver.Direction()
}

func (t *transceiver) SetDirection(direction webrtc.RTPTransceiverDirection) error {
	if err := t.transceiver.SetDirection(direction); err != nil {
		return fmt.Errorf("could not set direction: %w", err)
	}
	return nil
}

func (t *transceiver) CurrentDirection() webrtc.RTPTransceiverDirection {
	return t.transceiver.CurrentDirection()
}

func (t *transceiver) Sender() rtc.Sender {
	rtpSender := t.transceiver.Sender()
	if rtpSender == nil {
		return nil
	}
	return t.pc.wrapSender(rtpSender, nil)
}

func (t *transceiver) Receiver() rtc.Receiver {
	rtpReceiver := t.transceiver.Receiver()
	if rtpReceiver == nil {
		return nil
	}
	return t.pc.wrapReceiver(rtpReceiver)
}

func (t *transceiver) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *transceiver) Stop() error {
	if err := t.transceiver.Stop(); err != nil {
		return fmt.Errorf("could not stop transceiver: %w", err)
	}
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	return nil
}

// convertCodec maps a pion codec parameter entry, splitting the fmtp line
// into the key/value parameter map the wire tree carries.
func convertCodec(codec webrtc.RTPCodecParameters) rtc.Codec {
	out := rtc.Codec{
		PayloadType: int(codec.PayloadType),
		MimeType:    codec.MimeType,
		Parameters:  parseFmtp(codec.SDPFmtpLine),
	}
	if codec.ClockRate > 0 {
		clockRate := int(codec.ClockRate)
		out.ClockRate = &clockRate
	}
	if codec.Channels > 0 {
		channels := int(codec.Channels)
		out.Channels = &channels
	}
	return out
}

func parseFmtp(line string) map[string]string {
	params := make(map[string]string)
	if line == "" {
		return params
	}
	for _, entry := range strings.Split(line, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if key, value, found := strings.Cut(entry, "="); found {
			params[key] = value
		} else {
			params[entry] = ""
		}
	}
	return params
}
