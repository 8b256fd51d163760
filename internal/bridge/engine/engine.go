// Package engine adapts github.com/pion/webrtc/v3 to the bridge's engine
// model. pion's negotiation calls are synchronous; the adapter runs them on
// goroutines and reports their results through the four-signal SDP observer
// so the one-shot outcome contract holds against the real engine too.
package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/pion/randutil"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/SB-IM/zircon/internal/bridge/rtc"
)

// Engine creates pion-backed peer connections and local tracks.
type Engine struct {
	api    *webrtc.API
	logger zerolog.Logger
	rand   randutil.MathRandomGenerator
}

// New builds a pion API with default codecs and engine logging routed into
// the given zerolog logger.
func New(logger *zerolog.Logger) (*Engine, error) {
	l := logger.With().Str("component", "engine").Logger()

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("could not register default codecs: %w", err)
	}

	settingEngine := webrtc.SettingEngine{
		LoggerFactory: adapter(&pionLogger{&l}),
	}

	return &Engine{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithSettingEngine(settingEngine),
		),
		logger: l,
		rand:   randutil.NewMathRandomGenerator(),
	}, nil
}

// NewPeerConnection creates an engine peer connection under the given
// configuration.
func (e *Engine) NewPeerConnection(config rtc.Configuration) (rtc.PeerConnection, error) {
	pionConfig, err := pionConfiguration(config)
	if err != nil {
		return nil, err
	}
	pc, err := e.api.NewPeerConnection(pionConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create peer connection: %w", err)
	}
	return newPeerConnection(pc, e), nil
}

// NewLocalTrack creates a sendable RTP track of the given media kind.
func (e *Engine) NewLocalTrack(kind string) (rtc.Track, error) {
	var capability webrtc.RTPCodecCapability
	switch kind {
	case "video":
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}
	case "audio":
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	default:
		return nil, fmt.Errorf("unknown track kind %q", kind)
	}
	track, err := webrtc.NewTrackLocalStaticRTP(
		capability,
		fmt.Sprintf("%s-%d", kind, e.rand.Uint32()),
		fmt.Sprintf("stream-%d", e.rand.Uint32()),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create local track: %w", err)
	}
	return newLocalTrack(track), nil
}

func (e *Engine) newID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, e.rand.Uint32())
}

// pionConfiguration maps the bridge configuration onto pion's. pion always
// trickles candidates and always runs DTLS-SRTP, so the continual-gathering
// and DTLS policy fields carry no extra engine work here.
func pionConfiguration(config rtc.Configuration) (webrtc.Configuration, error) {
	out := webrtc.Configuration{
		ICEServers:         config.ICEServers,
		ICETransportPolicy: config.ICETransportPolicy,
		BundlePolicy:       config.BundlePolicy,
		RTCPMuxPolicy:      config.RTCPMuxPolicy,
		SDPSemantics:       config.SDPSemantics,
	}
	if config.KeyType == rtc.KeyTypeECDSA {
		secretKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return webrtc.Configuration{}, fmt.Errorf("could not generate ecdsa key: %w", err)
		}
		certificate, err := webrtc.GenerateCertificate(secretKey)
		if err != nil {
			return webrtc.Configuration{}, fmt.Errorf("could not generate certificate: %w", err)
		}
		out.Certificates = []webrtc.Certificate{*certificate}
	}
	return out, nil
}

// offerOptions derives pion offer options from the well-known constraint
// keys negotiation calls carry.
func offerOptions(constraints *rtc.MediaConstraints) *webrtc.OfferOptions {
	if constraints == nil {
		return nil
	}
	options := &webrtc.OfferOptions{}
	for _, pair := range append(constraints.Mandatory, constraints.Optional...) {
		switch pair.Key {
		case "IceRestart":
			options.ICERestart = pair.Value == "true"
		case "VoiceActivityDetection":
			options.VoiceActivityDetection = pair.Value == "true"
		}
	}
	return options
}

func answerOptions(constraints *rtc.MediaConstraints) *webrtc.AnswerOptions {
	if constraints == nil {
		return nil
	}
	options := &webrtc.AnswerOptions{}
	for _, pair := range append(constraints.Mandatory, constraints.Optional...) {
		if pair.Key == "VoiceActivityDetection" {
			options.VoiceActivityDetection = pair.Value == "true"
		}
	}
	return options
}
