// Package convert translates between engine signaling structures and wire
// values. Every function is pure except for the registry lookups that attach
// tags to entity values. Enum mappings are closed sets in both directions;
// the string literals are the wire contract and changing any of them is a
// breaking change. An engine value outside a closed set is a defect signal
// (InvalidState), never a silent coercion.
package convert

import (
	"sort"

	"github.com/pion/webrtc/v3"

	"github.com/SB-IM/zircon/internal/bridge/errs"
	"github.com/SB-IM/zircon/internal/bridge/registry"
	"github.com/SB-IM/zircon/internal/bridge/rtc"
	"github.com/SB-IM/zircon/internal/bridge/wire"
)

// SessionDescription builds an engine session description from {sdp, type}.
func SessionDescription(m wire.Map) (webrtc.SessionDescription, error) {
	sdp, ok := wire.String(m, "sdp")
	if !ok {
		return webrtc.SessionDescription{}, errs.New(errs.InvalidArgument, "session description has no sdp")
	}
	typ, ok := wire.String(m, "type")
	if !ok {
		return webrtc.SessionDescription{}, errs.New(errs.InvalidArgument, "session description has no type")
	}
	t, err := sdpType(typ)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: t, SDP: sdp}, nil
}

// SessionDescriptionValue renders a session description as {sdp, type}.
func SessionDescriptionValue(desc webrtc.SessionDescription) (wire.Map, error) {
	typ, err := SDPTypeString(desc.Type)
	if err != nil {
		return nil, err
	}
	return wire.Map{
		"sdp":  desc.SDP,
		"type": typ,
	}, nil
}

func sdpType(s string) (webrtc.SDPType, error) {
	switch s {
	case "offer":
		return webrtc.SDPTypeOffer, nil
	case "pranswer":
		return webrtc.SDPTypePranswer, nil
	case "answer":
		return webrtc.SDPTypeAnswer, nil
	case "rollback":
		return webrtc.SDPTypeRollback, nil
	default:
		return webrtc.SDPType(0), errs.New(errs.InvalidArgument, "invalid sdp type %q", s)
	}
}

// SDPTypeString maps an engine SDP type to its canonical wire literal.
func SDPTypeString(t webrtc.SDPType) (string, error) {
	switch t {
	case webrtc.SDPTypeOffer:
		return "offer", nil
	case webrtc.SDPTypePranswer:
		return "pranswer", nil
	case webrtc.SDPTypeAnswer:
		return "answer", nil
	case webrtc.SDPTypeRollback:
		return "rollback", nil
	default:
		return "", errs.New(errs.InvalidState, "invalid sdp type %d", t)
	}
}

// ICECandidate builds an engine candidate from {sdp, sdpMLineIndex, sdpMid}.
func ICECandidate(m wire.Map) (webrtc.ICECandidateInit, error) {
	sdp, ok := wire.String(m, "sdp")
	if !ok {
		return webrtc.ICECandidateInit{}, errs.New(errs.InvalidArgument, "ice candidate has no sdp")
	}
	index, ok := wire.Number(m, "sdpMLineIndex")
	if !ok {
		return webrtc.ICECandidateInit{}, errs.New(errs.InvalidArgument, "ice candidate has no sdpMLineIndex")
	}
	mid, ok := wire.String(m, "sdpMid")
	if !ok {
		return webrtc.ICECandidateInit{}, errs.New(errs.InvalidArgument, "ice candidate has no sdpMid")
	}
	lineIndex := uint16(index)
	return webrtc.ICECandidateInit{
		Candidate:     sdp,
		SDPMid:        &mid,
		SDPMLineIndex: &lineIndex,
	}, nil
}

// ICECandidateValue renders an engine candidate as {sdp, sdpMLineIndex, sdpMid}.
func ICECandidateValue(c webrtc.ICECandidateInit) wire.Map {
	m := wire.Map{
		"sdp": c.Candidate,
	}
	if c.SDPMLineIndex != nil {
		m["sdpMLineIndex"] = float64(*c.SDPMLineIndex)
	}
	if c.SDPMid != nil {
		m["sdpMid"] = *c.SDPMid
	}
	return m
}

// ICEServer builds an engine ICE server descriptor. The urls list is required
// and must be non-empty; username and credential are optional.
func ICEServer(m wire.Map) (webrtc.ICEServer, error) {
	urlsJSON, ok := wire.ChildArray(m, "urls")
	if !ok {
		return webrtc.ICEServer{}, errs.New(errs.InvalidArgument, "ice server has no urls")
	}
	if len(urlsJSON) == 0 {
		return webrtc.ICEServer{}, errs.New(errs.InvalidArgument, "ice server urls is empty")
	}
	urls, err := wire.Strings(urlsJSON)
	if err != nil {
		return webrtc.ICEServer{}, errs.New(errs.InvalidArgument, "ice server urls: %v", err)
	}

	server := webrtc.ICEServer{URLs: urls}
	if username, ok := wire.String(m, "username"); ok {
		server.Username = username
	}
	if credential, ok := wire.String(m, "credential"); ok {
		server.Credential = credential
		server.CredentialType = webrtc.ICECredentialTypePassword
	}
	return server, nil
}

// Configuration builds the engine configuration from wire input. Bundle
// policy, RTCP mux, continual gathering, DTLS-SRTP and the ECDSA key type are
// fixed policy and never read from the wire; unknown keys are ignored.
func Configuration(m wire.Map) (rtc.Configuration, error) {
	config := rtc.Configuration{
		BundlePolicy:       webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy:      webrtc.RTCPMuxPolicyRequire,
		ContinualGathering: true,
		DTLSSRTP:           true,
		KeyType:            rtc.KeyTypeECDSA,
	}

	if serversJSON, ok := wire.ChildArray(m, "iceServers"); ok {
		for _, serverJSON := range serversJSON {
			entry, ok := serverJSON.(map[string]interface{})
			if !ok {
				return rtc.Configuration{}, errs.New(errs.InvalidArgument, "each iceServers entry must be a map")
			}
			server, err := ICEServer(entry)
			if err != nil {
				return rtc.Configuration{}, err
			}
			config.ICEServers = append(config.ICEServers, server)
		}
	}

	if policy, ok := wire.String(m, "iceTransportPolicy"); ok {
		p, err := ICETransportPolicy(policy)
		if err != nil {
			return rtc.Configuration{}, err
		}
		config.ICETransportPolicy = p
	}

	if semantics, ok := wire.String(m, "sdpSemantics"); ok {
		s, err := SDPSemantics(semantics)
		if err != nil {
			return rtc.Configuration{}, err
		}
		config.SDPSemantics = s
	}

	return config, nil
}

// ICETransportPolicy maps a wire policy literal. The engine supports relay
// filtering and unrestricted gathering.
func ICETransportPolicy(s string) (webrtc.ICETransportPolicy, error) {
	switch s {
	case "all":
		return webrtc.ICETransportPolicyAll, nil
	case "relay":
		return webrtc.ICETransportPolicyRelay, nil
	default:
		return webrtc.ICETransportPolicy(0), errs.New(errs.InvalidArgument, "invalid ice transport policy %q", s)
	}
}

// SDPSemantics maps a wire semantics literal.
func SDPSemantics(s string) (webrtc.SDPSemantics, error) {
	switch s {
	case "unified":
		return webrtc.SDPSemanticsUnifiedPlan, nil
	case "planb":
		return webrtc.SDPSemanticsPlanB, nil
	default:
		return webrtc.SDPSemantics(0), errs.New(errs.InvalidArgument, "invalid sdp semantics %q", s)
	}
}

// MediaConstraints builds the mandatory/optional constraint lists. Non-string
// values are stringified in their fixed textual form; every wire type maps to
// some string. A nil input yields nil constraints.
func MediaConstraints(m wire.Map) *rtc.MediaConstraints {
	if m == nil {
		return nil
	}
	constraints := &rtc.MediaConstraints{}
	if mandatory, ok := wire.ChildMap(m, "mandatory"); ok {
		constraints.Mandatory = constraintPairs(mandatory)
	}
	if optional, ok := wire.ChildArray(m, "optional"); ok {
		for _, entry := range optional {
			if pairs, ok := entry.(map[string]interface{}); ok {
				constraints.Optional = append(constraints.Optional, constraintPairs(pairs)...)
			}
		}
	}
	return constraints
}

// constraintPairs flattens one constraint map. Keys are emitted in sorted
// order so the result is deterministic.
func constraintPairs(m wire.Map) []rtc.ConstraintPair {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]rtc.ConstraintPair, 0, len(m))
	for _, key := range keys {
		pairs = append(pairs, rtc.ConstraintPair{Key: key, Value: wire.Stringify(m[key])})
	}
	return pairs
}

// RTPParametersValue renders a full RTP parameter snapshot. One-directional:
// mutation goes through the targeted encoding-parameter operations, never
// through a wire round-trip.
func RTPParametersValue(p rtc.RTPParameters) wire.Map {
	rtcp := wire.Map{
		"cname":       p.RTCP.CName,
		"reducedSize": p.RTCP.ReducedSize,
	}

	headerExtensions := make(wire.Array, 0, len(p.HeaderExtensions))
	for _, extension := range p.HeaderExtensions {
		headerExtensions = append(headerExtensions, wire.Map{
			"uri":       extension.URI,
			"id":        float64(extension.ID),
			"encrypted": extension.Encrypted,
		})
	}

	encodings := make(wire.Array, 0, len(p.Encodings))
	for _, encoding := range p.Encodings {
		entry := wire.Map{
			"active": encoding.Active,
		}
		if encoding.MaxBitrate != nil {
			entry["maxBitrate"] = float64(*encoding.MaxBitrate)
		}
		if encoding.MinBitrate != nil {
			entry["minBitrate"] = float64(*encoding.MinBitrate)
		}
		if encoding.SSRC != nil {
			// The engine field is 64-bit but the wire carries a 32-bit
			// number. Values outside int32 range corrupt here; accepted
			// limitation of the wire contract.
			entry["ssrc"] = float64(int32(*encoding.SSRC))
		}
		encodings = append(encodings, entry)
	}

	codecs := make(wire.Array, 0, len(p.Codecs))
	for _, codec := range p.Codecs {
		parameters := wire.Map{}
		for key, value := range codec.Parameters {
			parameters[key] = value
		}
		entry := wire.Map{
			"payloadType": float64(codec.PayloadType),
			"mimeType":    codec.MimeType,
			"parameters":  parameters,
		}
		if codec.ClockRate != nil {
			entry["clockRate"] = float64(*codec.ClockRate)
		}
		if codec.Channels != nil {
			entry["channels"] = float64(*codec.Channels)
		}
		codecs = append(codecs, entry)
	}

	return wire.Map{
		"transactionId":    p.TransactionID,
		"rtcp":             rtcp,
		"headerExtensions": headerExtensions,
		"encodings":        encodings,
		"codecs":           codecs,
	}
}

// TrackValue renders a track, attaching its tag when the registry holds one.
func TrackValue(t rtc.Track, reg *registry.Registry) (wire.Map, error) {
	state, err := TrackStateString(t.State())
	if err != nil {
		return nil, err
	}
	m := wire.Map{
		"id":         t.ID(),
		"enabled":    t.Enabled(),
		"kind":       t.Kind(),
		"readyState": state,
	}
	if tag, ok := reg.Tracks.Tag(t.ID()); ok {
		m["valueTag"] = tag
	}
	return m, nil
}

// SenderValue renders a sender with its parameter snapshot, the stream-id
// list recorded at creation, its tag and its nested track.
func SenderValue(s rtc.Sender, reg *registry.Registry) (wire.Map, error) {
	m := wire.Map{
		"id":         s.ID(),
		"parameters": RTPParametersValue(s.Parameters()),
		"streamIds":  streamIDsValue(reg.StreamIDs(s)),
	}
	if tag, ok := reg.Senders.Tag(s.ID()); ok {
		m["valueTag"] = tag
	}
	if track := s.Track(); track != nil {
		trackValue, err := TrackValue(track, reg)
		if err != nil {
			return nil, err
		}
		m["track"] = trackValue
	}
	return m, nil
}

// ReceiverValue renders a receiver the same way SenderValue renders a sender.
func ReceiverValue(r rtc.Receiver, reg *registry.Registry) (wire.Map, error) {
	m := wire.Map{
		"id":         r.ID(),
		"parameters": RTPParametersValue(r.Parameters()),
		"streamIds":  streamIDsValue(reg.StreamIDs(r)),
	}
	if tag, ok := reg.Receivers.Tag(r.ID()); ok {
		m["valueTag"] = tag
	}
	if track := r.Track(); track != nil {
		trackValue, err := TrackValue(track, reg)
		if err != nil {
			return nil, err
		}
		m["track"] = trackValue
	}
	return m, nil
}

// TransceiverValue renders a transceiver with both ends tagged recursively.
func TransceiverValue(t rtc.Transceiver, reg *registry.Registry) (wire.Map, error) {
	senderValue, err := SenderValue(t.Sender(), reg)
	if err != nil {
		return nil, err
	}
	receiverValue, err := ReceiverValue(t.Receiver(), reg)
	if err != nil {
		return nil, err
	}
	m := wire.Map{
		"mid":      t.Mid(),
		"sender":   senderValue,
		"receiver": receiverValue,
		"stopped":  t.Stopped(),
	}
	if tag, ok := reg.Transceivers.Tag(t.ID()); ok {
		m["valueTag"] = tag
	}
	return m, nil
}

func streamIDsValue(ids []string) wire.Array {
	out := make(wire.Array, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}

// Direction maps a wire direction literal to the engine direction.
func Direction(s string) (webrtc.RTPTransceiverDirection, error) {
	switch s {
	case "sendrecv":
		return webrtc.RTPTransceiverDirectionSendrecv, nil
	case "sendonly":
		return webrtc.RTPTransceiverDirectionSendonly, nil
	case "recvonly":
		return webrtc.RTPTransceiverDirectionRecvonly, nil
	case "inactive":
		return webrtc.RTPTransceiverDirectionInactive, nil
	default:
		return webrtc.RTPTransceiverDirection(0), errs.New(errs.InvalidArgument, "invalid direction %q", s)
	}
}

// DirectionString maps an engine direction to its wire literal.
func DirectionString(d webrtc.RTPTransceiverDirection) (string, error) {
	switch d {
	case webrtc.RTPTransceiverDirectionSendrecv:
		return "sendrecv", nil
	case webrtc.RTPTransceiverDirectionSendonly:
		return "sendonly", nil
	case webrtc.RTPTransceiverDirectionRecvonly:
		return "recvonly", nil
	case webrtc.RTPTransceiverDirectionInactive:
		return "inactive", nil
	default:
		return "", errs.New(errs.InvalidState, "invalid direction %d", d)
	}
}

// SignalingStateString maps an engine signaling state to its wire literal.
func SignalingStateString(s webrtc.SignalingState) (string, error) {
	switch s {
	case webrtc.SignalingStateStable:
		return "stable", nil
	case webrtc.SignalingStateHaveLocalOffer:
		return "have-local-offer", nil
	case webrtc.SignalingStateHaveLocalPranswer:
		return "have-local-pranswer", nil
	case webrtc.SignalingStateHaveRemoteOffer:
		return "have-remote-offer", nil
	case webrtc.SignalingStateHaveRemotePranswer:
		return "have-remote-pranswer", nil
	case webrtc.SignalingStateClosed:
		return "closed", nil
	default:
		return "", errs.New(errs.InvalidState, "invalid signaling state %d", s)
	}
}

// ICEConnectionStateString maps an engine ICE connection state to its wire
// literal.
func ICEConnectionStateString(s webrtc.ICEConnectionState) (string, error) {
	switch s {
	case webrtc.ICEConnectionStateNew:
		return "new", nil
	case webrtc.ICEConnectionStateChecking:
		return "checking", nil
	case webrtc.ICEConnectionStateConnected:
		return "connected", nil
	case webrtc.ICEConnectionStateCompleted:
		return "completed", nil
	case webrtc.ICEConnectionStateFailed:
		return "failed", nil
	case webrtc.ICEConnectionStateDisconnected:
		return "disconnected", nil
	case webrtc.ICEConnectionStateClosed:
		return "closed", nil
	default:
		return "", errs.New(errs.InvalidState, "invalid ice connection state %d", s)
	}
}

// ICEGatheringStateString maps an engine gathering state to its wire literal.
func ICEGatheringStateString(s webrtc.ICEGathererState) (string, error) {
	switch s {
	case webrtc.ICEGathererStateNew:
		return "new", nil
	case webrtc.ICEGathererStateGathering:
		return "gathering", nil
	case webrtc.ICEGathererStateComplete:
		return "complete", nil
	default:
		return "", errs.New(errs.InvalidState, "invalid ice gathering state %d", s)
	}
}

// TrackStateString maps a track readiness state to its wire literal.
func TrackStateString(s rtc.TrackState) (string, error) {
	switch s {
	case rtc.TrackStateLive:
		return "live", nil
	case rtc.TrackStateEnded:
		return "ended", nil
	default:
		return "", errs.New(errs.InvalidState, "invalid track state %d", s)
	}
}
