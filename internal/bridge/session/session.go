// Package session implements the boundary operations the scripting side
// invokes. Every entity-referencing operation takes tags, resolves them
// through the registry, talks to the engine, and converts results back to
// wire values with tags attached. Negotiation operations are asynchronous
// and resolve or reject exactly once through a one-shot observer.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/SB-IM/zircon/internal/bridge/convert"
	"github.com/SB-IM/zircon/internal/bridge/errs"
	"github.com/SB-IM/zircon/internal/bridge/observe"
	"github.com/SB-IM/zircon/internal/bridge/registry"
	"github.com/SB-IM/zircon/internal/bridge/rtc"
	"github.com/SB-IM/zircon/internal/bridge/wire"
)

// EventFunc delivers an engine-originated event to the scripting side.
type EventFunc func(name string, payload wire.Map)

type conn struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Controller owns the registry and drives the engine on behalf of the
// scripting boundary.
type Controller struct {
	engine rtc.Engine
	reg    *registry.Registry
	logger zerolog.Logger
	emit   EventFunc

	mu    sync.Mutex
	conns map[string]*conn
}

// New returns a controller. emit may be nil when no event sink is attached.
func New(engine rtc.Engine, logger *zerolog.Logger, emit EventFunc) *Controller {
	return &Controller{
		engine: engine,
		reg:    registry.New(),
		logger: logger.With().Str("component", "session").Logger(),
		emit:   emit,
		conns:  make(map[string]*conn),
	}
}

// Registry exposes the controller's registry for inspection.
func (c *Controller) Registry() *registry.Registry {
	return c.reg
}

func (c *Controller) newTag() string {
	return uuid.NewString()
}

func (c *Controller) event(name string, payload wire.Map) {
	if c.emit != nil {
		c.emit(name, payload)
	}
}

// NewPeerConnection creates a peer connection from a wire configuration and
// returns {valueTag}. The tag is the only handle the scripting side gets.
func (c *Controller) NewPeerConnection(configJSON wire.Map) (wire.Map, error) {
	config, err := convert.Configuration(configJSON)
	if err != nil {
		return nil, err
	}
	pc, err := c.engine.NewPeerConnection(config)
	if err != nil {
		return nil, errs.New(errs.PeerConnectionFailed, "could not create peer connection: %v", err)
	}

	tag := c.newTag()
	release := c.reg.Hold()
	err = c.reg.AddPeerConnection(tag, pc)
	release()
	if err != nil {
		_ = pc.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conns[tag] = &conn{ctx: ctx, cancel: cancel}
	c.mu.Unlock()

	pc.SetHandlers(c.connectionHandlers(tag))
	c.logger.Debug().Str("value_tag", tag).Msg("created peer connection")
	return wire.Map{"valueTag": tag}, nil
}

// connectionHandlers surfaces engine callbacks as wire events. Handlers run
// on engine threads; everything they touch is concurrency-safe. A state value
// outside the converter's closed sets is a defect and is logged, never
// emitted coerced.
func (c *Controller) connectionHandlers(tag string) rtc.ConnectionHandlers {
	logger := c.logger.With().Str("value_tag", tag).Logger()
	return rtc.ConnectionHandlers{
		OnICECandidate: func(candidate webrtc.ICECandidateInit) {
			c.event("peerConnectionGotICECandidate", wire.Map{
				"valueTag":  tag,
				"candidate": convert.ICECandidateValue(candidate),
			})
		},
		OnSignalingStateChange: func(state webrtc.SignalingState) {
			value, err := convert.SignalingStateString(state)
			if err != nil {
				logger.Err(err).Msg("engine reported a signaling state outside the wire contract")
				return
			}
			c.event("peerConnectionSignalingStateChanged", wire.Map{
				"valueTag":       tag,
				"signalingState": value,
			})
		},
		OnICEConnectionStateChange: func(state webrtc.ICEConnectionState) {
			value, err := convert.ICEConnectionStateString(state)
			if err != nil {
				logger.Err(err).Msg("engine reported an ICE connection state outside the wire contract")
				return
			}
			c.event("peerConnectionIceConnectionStateChanged", wire.Map{
				"valueTag":           tag,
				"iceConnectionState": value,
			})
		},
		OnICEGatheringStateChange: func(state webrtc.ICEGathererState) {
			value, err := convert.ICEGatheringStateString(state)
			if err != nil {
				logger.Err(err).Msg("engine reported an ICE gathering state outside the wire contract")
				return
			}
			c.event("peerConnectionIceGatheringStateChanged", wire.Map{
				"valueTag":          tag,
				"iceGatheringState": value,
			})
		},
		OnNegotiationNeeded: func() {
			c.event("peerConnectionShouldNegotiate", wire.Map{"valueTag": tag})
		},
		OnTrack: func(receiver rtc.Receiver) {
			release := c.reg.Hold()
			if err := c.reg.Receivers.Add(receiver.ID(), c.newTag(), receiver); err != nil {
				release()
				logger.Err(err).Msg("could not register receiver")
				return
			}
			c.reg.SetStreamIDs(receiver, receiver.StreamIDs())
			if track := receiver.Track(); track != nil {
				if err := c.reg.Tracks.Add(track.ID(), c.newTag(), track); err != nil {
					logger.Err(err).Msg("could not register remote track")
				}
			}
			release()

			value, err := convert.ReceiverValue(receiver, c.reg)
			if err != nil {
				logger.Err(err).Msg("could not convert receiver")
				return
			}
			c.event("peerConnectionAddedReceiver", wire.Map{
				"valueTag": tag,
				"receiver": value,
			})
		},
	}
}

// SetConfiguration replaces the configuration of a live peer connection.
func (c *Controller) SetConfiguration(tag string, configJSON wire.Map) error {
	pc, ok := c.reg.PeerConnection(tag)
	if !ok {
		return errs.New(errs.NotFound, "peer connection is not found")
	}
	config, err := convert.Configuration(configJSON)
	if err != nil {
		return err
	}
	return pc.SetConfiguration(config)
}

// NewTrack creates a local track of the given media kind and registers it.
func (c *Controller) NewTrack(kind string) (wire.Map, error) {
	track, err := c.engine.NewLocalTrack(kind)
	if err != nil {
		return nil, errs.New(errs.InvalidArgument, "could not create track: %v", err)
	}
	release := c.reg.Hold()
	err = c.reg.Tracks.Add(track.ID(), c.newTag(), track)
	release()
	if err != nil {
		return nil, err
	}
	return convert.TrackValue(track, c.reg)
}

// TrackSetEnabled toggles a track.
func (c *Controller) TrackSetEnabled(tag string, enabled bool) error {
	track, ok := c.reg.Tracks.ByTag(tag)
	if !ok {
		return errs.New(errs.NotFound, "track is not found")
	}
	track.SetEnabled(enabled)
	return nil
}

// TrackState reports the readiness of a track as its wire literal.
func (c *Controller) TrackState(tag string) (string, error) {
	track, ok := c.reg.Tracks.ByTag(tag)
	if !ok {
		return "", errs.New(errs.NotFound, "track is not found")
	}
	return convert.TrackStateString(track.State())
}

// AddTrack attaches a registered track to a peer connection and returns the
// resulting sender as a tagged wire value. The stream-id list is recorded at
// this moment because the engine cannot report it later.
func (c *Controller) AddTrack(pcTag, trackTag string, streamIDs []string) (wire.Map, error) {
	pc, ok := c.reg.PeerConnection(pcTag)
	if !ok {
		return nil, errs.New(errs.NotFound, "peer connection is not found")
	}
	track, ok := c.reg.Tracks.ByTag(trackTag)
	if !ok {
		return nil, errs.New(errs.NotFound, "track is not found")
	}
	sender, err := pc.AddTrack(track, streamIDs)
	if err != nil {
		return nil, errs.New(errs.PeerConnectionFailed, "cannot add the track: %v", err)
	}

	release := c.reg.Hold()
	err = c.reg.Senders.Add(sender.ID(), c.newTag(), sender)
	c.reg.SetStreamIDs(sender, streamIDs)
	release()
	if err != nil {
		return nil, err
	}
	return convert.SenderValue(sender, c.reg)
}

// RemoveTrack detaches a sender from its peer connection. The sender's tag
// stops resolving even if the engine-side removal fails afterward.
func (c *Controller) RemoveTrack(pcTag, senderTag string) error {
	pc, ok := c.reg.PeerConnection(pcTag)
	if !ok {
		return errs.New(errs.NotFound, "peer connection is not found")
	}
	sender, ok := c.reg.Senders.ByTag(senderTag)
	if !ok {
		return errs.New(errs.NotFound, "sender is not found")
	}
	c.reg.Senders.RemoveByID(sender.ID())
	if err := pc.RemoveTrack(sender); err != nil {
		return errs.New(errs.PeerConnectionFailed, "cannot remove track: %v", err)
	}
	return nil
}

// AddTransceiver adds a transceiver of the given kind and direction and
// registers it together with both of its ends. Stream ids are recorded on the
// sending end because the engine cannot report them later.
func (c *Controller) AddTransceiver(pcTag, kind, direction string, streamIDs []string) (wire.Map, error) {
	pc, ok := c.reg.PeerConnection(pcTag)
	if !ok {
		return nil, errs.New(errs.NotFound, "peer connection is not found")
	}
	d, err := convert.Direction(direction)
	if err != nil {
		return nil, err
	}
	transceiver, err := pc.AddTransceiver(kind, d)
	if err != nil {
		return nil, errs.New(errs.PeerConnectionFailed, "cannot add transceiver: %v", err)
	}

	release := c.reg.Hold()
	err = c.reg.Transceivers.Add(transceiver.ID(), c.newTag(), transceiver)
	if err == nil {
		if sender := transceiver.Sender(); sender != nil {
			err = c.reg.Senders.Add(sender.ID(), c.newTag(), sender)
			c.reg.SetStreamIDs(sender, streamIDs)
		}
	}
	if err == nil {
		if receiver := transceiver.Receiver(); receiver != nil {
			err = c.reg.Receivers.Add(receiver.ID(), c.newTag(), receiver)
		}
	}
	release()
	if err != nil {
		return nil, err
	}
	return convert.TransceiverValue(transceiver, c.reg)
}

// TransceiverDirection reports the preferred direction of a transceiver.
func (c *Controller) TransceiverDirection(tag string) (string, error) {
	transceiver, ok := c.reg.Transceivers.ByTag(tag)
	if !ok {
		return "", errs.New(errs.NotFound, "transceiver is not found")
	}
	return convert.DirectionString(transceiver.Direction())
}

// TransceiverSetDirection changes the preferred direction of a transceiver.
func (c *Controller) TransceiverSetDirection(tag, direction string) error {
	transceiver, ok := c.reg.Transceivers.ByTag(tag)
	if !ok {
		return errs.New(errs.NotFound, "transceiver is not found")
	}
	d, err := convert.Direction(direction)
	if err != nil {
		return err
	}
	return transceiver.SetDirection(d)
}

// TransceiverCurrentDirection reports the negotiated direction, or "" when
// negotiation has not settled one yet.
func (c *Controller) TransceiverCurrentDirection(tag string) (string, error) {
	transceiver, ok := c.reg.Transceivers.ByTag(tag)
	if !ok {
		return "", errs.New(errs.NotFound, "transceiver is not found")
	}
	current := transceiver.CurrentDirection()
	if current == webrtc.RTPTransceiverDirection(0) {
		return "", nil
	}
	return convert.DirectionString(current)
}

// TransceiverStop stops a transceiver. The record stays registered: stopped
// transceivers are never removed individually.
func (c *Controller) TransceiverStop(tag string) error {
	transceiver, ok := c.reg.Transceivers.ByTag(tag)
	if !ok {
		return errs.New(errs.NotFound, "transceiver is not found")
	}
	return transceiver.Stop()
}

// SenderParameters returns a fresh RTP parameter snapshot for a sender.
func (c *Controller) SenderParameters(tag string) (wire.Map, error) {
	sender, ok := c.reg.Senders.ByTag(tag)
	if !ok {
		return nil, errs.New(errs.NotFound, "sender is not found")
	}
	return convert.RTPParametersValue(sender.Parameters()), nil
}

// ReceiverParameters returns a fresh RTP parameter snapshot for a receiver.
func (c *Controller) ReceiverParameters(tag string) (wire.Map, error) {
	receiver, ok := c.reg.Receivers.ByTag(tag)
	if !ok {
		return nil, errs.New(errs.NotFound, "receiver is not found")
	}
	return convert.RTPParametersValue(receiver.Parameters()), nil
}

// CreateOffer asks the engine for an offer and resolves to {sdp, type}.
func (c *Controller) CreateOffer(ctx context.Context, tag string, constraintsJSON wire.Map) (wire.Map, error) {
	pc, ok := c.reg.PeerConnection(tag)
	if !ok {
		return nil, errs.New(errs.NotFound, "peer connection is not found")
	}
	observer := observe.NewCreate(errs.CreateOfferFailed)
	pc.CreateOffer(convert.MediaConstraints(constraintsJSON), observer)

	ctx, cancel := c.connContext(ctx, tag)
	defer cancel()
	desc, err := observer.Await(ctx)
	if err != nil {
		return nil, err
	}
	return convert.SessionDescriptionValue(desc)
}

// CreateAnswer asks the engine for an answer and resolves to {sdp, type}.
func (c *Controller) CreateAnswer(ctx context.Context, tag string, constraintsJSON wire.Map) (wire.Map, error) {
	pc, ok := c.reg.PeerConnection(tag)
	if !ok {
		return nil, errs.New(errs.NotFound, "peer connection is not found")
	}
	observer := observe.NewCreate(errs.CreateAnswerFailed)
	pc.CreateAnswer(convert.MediaConstraints(constraintsJSON), observer)

	ctx, cancel := c.connContext(ctx, tag)
	defer cancel()
	desc, err := observer.Await(ctx)
	if err != nil {
		return nil, err
	}
	return convert.SessionDescriptionValue(desc)
}

// SetLocalDescription applies a local description and resolves empty.
func (c *Controller) SetLocalDescription(ctx context.Context, tag string, sdpJSON wire.Map) error {
	pc, ok := c.reg.PeerConnection(tag)
	if !ok {
		return errs.New(errs.NotFound, "peer connection is not found")
	}
	desc, err := convert.SessionDescription(sdpJSON)
	if err != nil {
		return err
	}
	observer := observe.NewSet(errs.SetLocalDescriptionFailed)
	pc.SetLocalDescription(desc, observer)

	ctx, cancel := c.connContext(ctx, tag)
	defer cancel()
	return observer.Await(ctx)
}

// SetRemoteDescription applies a remote description and resolves empty.
func (c *Controller) SetRemoteDescription(ctx context.Context, tag string, sdpJSON wire.Map) error {
	pc, ok := c.reg.PeerConnection(tag)
	if !ok {
		return errs.New(errs.NotFound, "peer connection is not found")
	}
	desc, err := convert.SessionDescription(sdpJSON)
	if err != nil {
		return err
	}
	observer := observe.NewSet(errs.SetRemoteDescriptionFailed)
	pc.SetRemoteDescription(desc, observer)

	ctx, cancel := c.connContext(ctx, tag)
	defer cancel()
	return observer.Await(ctx)
}

// AddICECandidate feeds a remote candidate to the engine.
func (c *Controller) AddICECandidate(tag string, candidateJSON wire.Map) error {
	pc, ok := c.reg.PeerConnection(tag)
	if !ok {
		return errs.New(errs.NotFound, "peer connection is not found")
	}
	candidate, err := convert.ICECandidate(candidateJSON)
	if err != nil {
		return err
	}
	return pc.AddICECandidate(candidate)
}

// SignalingState reports the engine's current signaling state.
func (c *Controller) SignalingState(tag string) (string, error) {
	pc, ok := c.reg.PeerConnection(tag)
	if !ok {
		return "", errs.New(errs.NotFound, "peer connection is not found")
	}
	return convert.SignalingStateString(pc.SignalingState())
}

// Close disposes a peer connection and invalidates its tag. Closing an
// already-closed or unknown tag is a no-op; pending negotiation calls on the
// connection are rejected with CancelledOnDispose.
func (c *Controller) Close(tag string) error {
	pc, ok := c.reg.PeerConnection(tag)
	if !ok {
		return nil
	}

	c.mu.Lock()
	if state, ok := c.conns[tag]; ok {
		state.cancel()
		delete(c.conns, tag)
	}
	c.mu.Unlock()

	c.reg.RemovePeerConnection(tag)
	if err := pc.Close(); err != nil {
		return fmt.Errorf("could not close peer connection: %w", err)
	}
	c.logger.Debug().Str("value_tag", tag).Msg("closed peer connection")
	return nil
}

// Teardown is the reload boundary: dispose every live peer connection, reject
// everything pending, then purge every registry. No tag issued before
// Teardown resolves afterward.
func (c *Controller) Teardown() error {
	var result *multierror.Error
	for _, pc := range c.reg.AllPeerConnections() {
		if err := pc.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("could not close peer connection: %w", err))
		}
	}

	c.mu.Lock()
	for tag, state := range c.conns {
		state.cancel()
		delete(c.conns, tag)
	}
	c.mu.Unlock()

	c.reg.Clear()
	c.logger.Info().Msg("tore down all peer connections and registries")
	return result.ErrorOrNil()
}

// connContext derives a context that is cancelled when either the caller's
// context or the peer connection's lifetime ends, so a dispose always rejects
// the pending call instead of leaking it.
func (c *Controller) connContext(ctx context.Context, tag string) (context.Context, context.CancelFunc) {
	c.mu.Lock()
	state, ok := c.conns[tag]
	c.mu.Unlock()
	if !ok {
		return context.WithCancel(ctx)
	}

	merged, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-state.ctx.Done():
			cancel()
		case <-merged.Done():
		}
	}()
	return merged, cancel
}
