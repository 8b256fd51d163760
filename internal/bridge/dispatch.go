package bridge

import (
	"context"

	"github.com/SB-IM/zircon/internal/bridge/errs"
	"github.com/SB-IM/zircon/internal/bridge/wire"
)

// request is one call frame from the scripting side.
type request struct {
	ID     string   `json:"id"`
	Method string   `json:"method"`
	Params wire.Map `json:"params,omitempty"`
}

// response answers exactly one request, carrying either a result or an error.
type response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// dispatch routes one request to the controller and shapes the reply.
// Unknown methods and malformed params answer with InvalidArgument; controller
// errors travel with their taxonomy code, anything uncoded as a generic
// peer connection failure.
func (s *Service) dispatch(ctx context.Context, req *request) *response {
	result, err := s.call(ctx, req)
	if err != nil {
		code := errs.CodeOf(err)
		if code == "" {
			code = errs.PeerConnectionFailed
		}
		return &response{ID: req.ID, Error: &errorBody{Code: string(code), Message: err.Error()}}
	}
	return &response{ID: req.ID, Result: result}
}

func (s *Service) call(ctx context.Context, req *request) (interface{}, error) {
	p := req.Params
	switch req.Method {
	case "finishLoading":
		return nil, s.controller.Teardown()

	case "peerConnectionInit":
		return s.controller.NewPeerConnection(wire.ChildMapOr(p, "configuration"))

	case "peerConnectionSetConfiguration":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		config, ok := wire.ChildMap(p, "configuration")
		if !ok {
			return nil, errs.New(errs.InvalidArgument, "configuration is required")
		}
		return nil, s.controller.SetConfiguration(tag, config)

	case "peerConnectionAddTrack":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		trackTag, err := requireString(p, "trackValueTag")
		if err != nil {
			return nil, err
		}
		streamIDs, err := optionalStrings(p, "streamIds")
		if err != nil {
			return nil, err
		}
		return s.controller.AddTrack(tag, trackTag, streamIDs)

	case "peerConnectionRemoveTrack":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		senderTag, err := requireString(p, "senderValueTag")
		if err != nil {
			return nil, err
		}
		return nil, s.controller.RemoveTrack(tag, senderTag)

	case "peerConnectionAddTransceiver":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		kind, err := requireString(p, "kind")
		if err != nil {
			return nil, err
		}
		direction, _ := wire.String(p, "direction")
		if direction == "" {
			direction = "sendrecv"
		}
		streamIDs, err := optionalStrings(p, "streamIds")
		if err != nil {
			return nil, err
		}
		return s.controller.AddTransceiver(tag, kind, direction, streamIDs)

	case "peerConnectionCreateOffer":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		return s.controller.CreateOffer(ctx, tag, wire.ChildMapOr(p, "constraints"))

	case "peerConnectionCreateAnswer":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		return s.controller.CreateAnswer(ctx, tag, wire.ChildMapOr(p, "constraints"))

	case "peerConnectionSetLocalDescription":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		sdp, ok := wire.ChildMap(p, "sdp")
		if !ok {
			return nil, errs.New(errs.InvalidArgument, "sdp is required")
		}
		return nil, s.controller.SetLocalDescription(ctx, tag, sdp)

	case "peerConnectionSetRemoteDescription":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		sdp, ok := wire.ChildMap(p, "sdp")
		if !ok {
			return nil, errs.New(errs.InvalidArgument, "sdp is required")
		}
		return nil, s.controller.SetRemoteDescription(ctx, tag, sdp)

	case "peerConnectionAddICECandidate":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		candidate, ok := wire.ChildMap(p, "candidate")
		if !ok {
			return nil, errs.New(errs.InvalidArgument, "candidate is required")
		}
		return nil, s.controller.AddICECandidate(tag, candidate)

	case "peerConnectionSignalingState":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		return s.controller.SignalingState(tag)

	case "peerConnectionClose":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		return nil, s.controller.Close(tag)

	case "createTrack":
		kind, err := requireString(p, "kind")
		if err != nil {
			return nil, err
		}
		return s.controller.NewTrack(kind)

	case "trackState":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		return s.controller.TrackState(tag)

	case "trackSetEnabled":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		enabled, ok := wire.Bool(p, "enabled")
		if !ok {
			return nil, errs.New(errs.InvalidArgument, "enabled is required")
		}
		return nil, s.controller.TrackSetEnabled(tag, enabled)

	case "transceiverDirection":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		return s.controller.TransceiverDirection(tag)

	case "transceiverSetDirection":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		value, err := requireString(p, "value")
		if err != nil {
			return nil, err
		}
		return nil, s.controller.TransceiverSetDirection(tag, value)

	case "transceiverCurrentDirection":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		return s.controller.TransceiverCurrentDirection(tag)

	case "transceiverStop":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		return nil, s.controller.TransceiverStop(tag)

	case "senderGetParameters":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		return s.controller.SenderParameters(tag)

	case "receiverGetParameters":
		tag, err := requireString(p, "valueTag")
		if err != nil {
			return nil, err
		}
		return s.controller.ReceiverParameters(tag)

	case "rtpEncodingParametersSetActive":
		tag, ssrc, err := encodingSelector(p)
		if err != nil {
			return nil, err
		}
		flag, ok := wire.Bool(p, "flag")
		if !ok {
			return nil, errs.New(errs.InvalidArgument, "flag is required")
		}
		return nil, s.controller.EncodingSetActive(tag, ssrc, flag)

	case "rtpEncodingParametersSetMaxBitrate":
		tag, ssrc, err := encodingSelector(p)
		if err != nil {
			return nil, err
		}
		bitrate, ok := wire.Number(p, "bitrate")
		if !ok {
			return nil, errs.New(errs.InvalidArgument, "bitrate is required")
		}
		return nil, s.controller.EncodingSetMaxBitrate(tag, ssrc, int(bitrate))

	case "rtpEncodingParametersSetMinBitrate":
		tag, ssrc, err := encodingSelector(p)
		if err != nil {
			return nil, err
		}
		bitrate, ok := wire.Number(p, "bitrate")
		if !ok {
			return nil, errs.New(errs.InvalidArgument, "bitrate is required")
		}
		return nil, s.controller.EncodingSetMinBitrate(tag, ssrc, int(bitrate))

	default:
		return nil, errs.New(errs.InvalidArgument, "unknown method %q", req.Method)
	}
}

func requireString(p wire.Map, key string) (string, error) {
	v, ok := wire.String(p, key)
	if !ok || v == "" {
		return "", errs.New(errs.InvalidArgument, "%s is required", key)
	}
	return v, nil
}

func optionalStrings(p wire.Map, key string) ([]string, error) {
	arr, ok := wire.ChildArray(p, key)
	if !ok {
		return nil, nil
	}
	ids, err := wire.Strings(arr)
	if err != nil {
		return nil, errs.New(errs.InvalidArgument, "%s: %v", key, err)
	}
	return ids, nil
}

// encodingSelector pulls the owner tag and the ssrc selector of an RTP
// encoding mutation. An absent ssrc selects the single encoding.
func encodingSelector(p wire.Map) (string, int64, error) {
	tag, err := requireString(p, "ownerValueTag")
	if err != nil {
		return "", 0, err
	}
	ssrc, ok := wire.Number(p, "ssrc")
	if !ok {
		return tag, 0, nil
	}
	return tag, int64(ssrc), nil
}
