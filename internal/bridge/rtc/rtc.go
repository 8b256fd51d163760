// Package rtc defines the engine-facing model the bridge converts against.
// Value types that map one-to-one onto pion's are reused from
// github.com/pion/webrtc/v3; everything the engine does not express directly
// (track readiness, the full RTP parameter tree, media constraints, the
// bridge's fixed configuration policy) lives here as local types. The engine
// itself is reached only through the interfaces below, so tests can substitute
// fakes and the core never touches engine internals.
package rtc

import (
	"github.com/pion/webrtc/v3"
)

// TrackState is the readiness of a media track.
type TrackState int

const (
	TrackStateLive TrackState = iota
	TrackStateEnded
)

// KeyType selects the certificate key algorithm for DTLS.
type KeyType int

const (
	KeyTypeECDSA KeyType = iota
	KeyTypeRSA
)

// Configuration is the engine configuration the converter builds from wire
// input. The policy fields beyond ICE servers, transport policy and SDP
// semantics are fixed by the converter and never taken from the wire.
type Configuration struct {
	ICEServers         []webrtc.ICEServer
	ICETransportPolicy webrtc.ICETransportPolicy
	BundlePolicy       webrtc.BundlePolicy
	RTCPMuxPolicy      webrtc.RTCPMuxPolicy
	SDPSemantics       webrtc.SDPSemantics
	ContinualGathering bool
	DTLSSRTP           bool
	KeyType            KeyType
}

// RTCPParameters carries the RTCP settings of an RTP parameter snapshot.
type RTCPParameters struct {
	CName       string
	ReducedSize bool
}

// HeaderExtension is one negotiated RTP header extension.
type HeaderExtension struct {
	URI       string
	ID        int
	Encrypted bool
}

// Encoding is one encoding layer of a sender or receiver. SSRC is the
// engine's 64-bit field; nil means the engine has not assigned one yet.
type Encoding struct {
	Active     bool
	MaxBitrate *int
	MinBitrate *int
	SSRC       *int64
}

// Codec is one negotiated codec of an RTP parameter snapshot.
type Codec struct {
	PayloadType int
	MimeType    string
	Parameters  map[string]string
	ClockRate   *int
	Channels    *int
}

// RTPParameters is a point-in-time snapshot of a sender's or receiver's RTP
// configuration. Snapshots are fetched fresh on every read, never cached.
type RTPParameters struct {
	TransactionID    string
	RTCP             RTCPParameters
	HeaderExtensions []HeaderExtension
	Encodings        []Encoding
	Codecs           []Codec
}

// ConstraintPair is one media constraint entry. Values are always strings;
// the converter stringifies every other wire type on the way in.
type ConstraintPair struct {
	Key   string
	Value string
}

// MediaConstraints holds the mandatory and optional constraint lists passed
// to negotiation operations.
type MediaConstraints struct {
	Mandatory []ConstraintPair
	Optional  []ConstraintPair
}

// SDPObserver receives the completion signals of an asynchronous negotiation
// operation. The engine fires exactly one of the four signals exactly once.
// Create-family signals belong to offer/answer creation, set-family signals
// to description application; an observer bound to one family treats signals
// from the other as a protocol violation.
type SDPObserver interface {
	OnCreateSuccess(desc webrtc.SessionDescription)
	OnCreateFailure(err error)
	OnSetSuccess()
	OnSetFailure(err error)
}

// ConnectionHandlers carries the callbacks a peer connection delivers on its
// own threads. Nil handlers are skipped.
type ConnectionHandlers struct {
	OnICECandidate             func(candidate webrtc.ICECandidateInit)
	OnSignalingStateChange     func(state webrtc.SignalingState)
	OnICEConnectionStateChange func(state webrtc.ICEConnectionState)
	OnICEGatheringStateChange  func(state webrtc.ICEGathererState)
	OnNegotiationNeeded        func()
	OnTrack                    func(receiver Receiver)
}

// Track is a managed media track.
type Track interface {
	ID() string
	Kind() string
	Enabled() bool
	SetEnabled(enabled bool)
	State() TrackState
}

// Sender is an outbound RTP stream. Parameters returns a fresh snapshot on
// every call; SetParameters writes a mutated snapshot back to the engine.
type Sender interface {
	ID() string
	Track() Track
	Parameters() RTPParameters
	SetParameters(params RTPParameters) error
}

// Receiver is an inbound RTP stream. Its parameters are read-only.
type Receiver interface {
	ID() string
	Track() Track
	Parameters() RTPParameters
	StreamIDs() []string
}

// Transceiver pairs a sender and a receiver under one mid. ID is the
// engine-local identifier; the mid is not usable as one because it stays
// empty until negotiation assigns it.
type Transceiver interface {
	ID() string
	Mid() string
	Direction() webrtc.RTPTransceiverDirection
	SetDirection(direction webrtc.RTPTransceiverDirection) error
	CurrentDirection() webrtc.RTPTransceiverDirection
	Sender() Sender
	Receiver() Receiver
	Stopped() bool
	Stop() error
}

// PeerConnection is one engine peer connection. Negotiation calls return
// immediately; their outcome arrives through the observer on an engine
// thread.
type PeerConnection interface {
	CreateOffer(constraints *MediaConstraints, observer SDPObserver)
	CreateAnswer(constraints *MediaConstraints, observer SDPObserver)
	SetLocalDescription(desc webrtc.SessionDescription, observer SDPObserver)
	SetRemoteDescription(desc webrtc.SessionDescription, observer SDPObserver)
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	AddTrack(track Track, streamIDs []string) (Sender, error)
	RemoveTrack(sender Sender) error
	AddTransceiver(kind string, direction webrtc.RTPTransceiverDirection) (Transceiver, error)
	SetConfiguration(config Configuration) error
	SetHandlers(handlers ConnectionHandlers)
	SignalingState() webrtc.SignalingState
	Close() error
}

// Engine creates engine objects. It is the only way the bridge obtains them.
type Engine interface {
	NewPeerConnection(config Configuration) (PeerConnection, error)
	NewLocalTrack(kind string) (Track, error)
}
