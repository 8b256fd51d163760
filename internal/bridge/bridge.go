// bridge exposes the WebRTC session controller to a scripting peer over
// MQTT and WebSocket transports. Both transports speak the same JSON call
// frames; events flow the other way on an event topic and on every open
// socket.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/SB-IM/zircon/internal/bridge/cfg"
	"github.com/SB-IM/zircon/internal/bridge/engine"
	"github.com/SB-IM/zircon/internal/bridge/session"
	"github.com/SB-IM/zircon/internal/bridge/wire"
	"github.com/SB-IM/zircon/pkg/mqttclient"
)

// event is one unsolicited notification to the scripting side.
type event struct {
	Event   string   `json:"event"`
	Payload wire.Map `json:"payload"`
}

// Service drives one session controller over both transports.
type Service struct {
	controller *session.Controller
	client     mqtt.Client
	logger     zerolog.Logger
	config     cfg.ConfigOptions

	mu      sync.Mutex
	sockets map[*websocket.Conn]context.Context
}

func New(ctx context.Context, config cfg.ConfigOptions) (*Service, error) {
	logger := *log.Ctx(ctx)
	svc := &Service{
		client:  mqttclient.FromContext(ctx),
		logger:  logger,
		config:  config,
		sockets: make(map[*websocket.Conn]context.Context),
	}
	engineLogger := logger.With().Str("component", "engine").Logger()
	eng, err := engine.New(&engineLogger)
	if err != nil {
		return nil, fmt.Errorf("could not build webrtc engine: %w", err)
	}
	svc.controller = session.New(eng, &logger, svc.publishEvent)
	return svc, nil
}

// Run serves both transports until ctx is done, then tears the controller
// down so no tag survives a restart.
func (s *Service) Run(ctx context.Context) error {
	if err := s.subscribeRPC(ctx); err != nil {
		return err
	}

	r := mux.NewRouter()
	r.HandleFunc(s.config.Path, s.handleWebSocket(ctx))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    s.config.Host + ":" + strconv.Itoa(s.config.Port),
		Handler: r,
	}
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("host", s.config.Host).Int("port", s.config.Port).
			Msg("starting HTTP server for WebSocket")
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("could not serve websocket: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Err(err).Msg("could not shut down HTTP server")
	}
	return s.controller.Teardown()
}

// subscribeRPC wires the MQTT request topic into the dispatcher. Responses
// go out on the response topic with the caller's frame id.
func (s *Service) subscribeRPC(ctx context.Context) error {
	t := s.client.Subscribe(s.config.RPCTopic, byte(s.config.Qos), func(_ mqtt.Client, m mqtt.Message) {
		var req request
		if err := json.Unmarshal(m.Payload(), &req); err != nil {
			s.logger.Err(err).Msg("could not decode request frame")
			return
		}
		go func() {
			resp := s.dispatch(ctx, &req)
			s.publishResponse(resp)
		}()
	})
	t.Wait()
	if t.Error() != nil {
		return fmt.Errorf("could not subscribe to %s: %w", s.config.RPCTopic, t.Error())
	}
	s.logger.Info().Msgf("subscribed to %s", s.config.RPCTopic)
	return nil
}

func (s *Service) publishResponse(resp *response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Err(err).Msg("could not encode response frame")
		return
	}
	t := s.client.Publish(s.config.ResponseTopic, byte(s.config.Qos), s.config.Retained, payload)
	// Handle the token in a go routine so the subscriber callback never blocks.
	go func() {
		<-t.Done()
		if t.Error() != nil {
			s.logger.Err(t.Error()).Msgf("could not publish to %s", s.config.ResponseTopic)
		}
	}()
}

// publishEvent fans one controller event out to the MQTT event topic and to
// every open socket.
func (s *Service) publishEvent(name string, payload wire.Map) {
	ev := event{Event: name, Payload: payload}
	data, err := json.Marshal(&ev)
	if err != nil {
		s.logger.Err(err).Str("event", name).Msg("could not encode event")
		return
	}
	t := s.client.Publish(s.config.EventTopic, byte(s.config.Qos), s.config.Retained, data)
	go func() {
		<-t.Done()
		if t.Error() != nil {
			s.logger.Err(t.Error()).Msgf("could not publish to %s", s.config.EventTopic)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	for c, ctx := range s.sockets {
		if err := wsjson.Write(ctx, c, &ev); err != nil {
			s.logger.Err(err).Str("event", name).Msg("could not push event to socket")
		}
	}
}

// handleWebSocket serves call frames on one socket until the peer hangs up.
func (s *Service) handleWebSocket(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Err(err).Msg("could not accept websocket")
			return
		}
		defer c.Close(websocket.StatusInternalError, "")

		connCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		s.mu.Lock()
		s.sockets[c] = connCtx
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.sockets, c)
			s.mu.Unlock()
		}()

		for {
			var req request
			if err := wsjson.Read(connCtx, c, &req); err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					c.Close(websocket.StatusNormalClosure, "")
					return
				}
				s.logger.Debug().Err(err).Msg("socket read ended")
				return
			}
			resp := s.dispatch(connCtx, &req)
			if err := wsjson.Write(connCtx, c, resp); err != nil {
				s.logger.Err(err).Msg("could not write response frame")
				return
			}
		}
	}
}
