// mqttclient builds the paho MQTT client the bridge signals over, with the
// connection options the RPC and event topics rely on: unordered delivery,
// persistent sessions and automatic reconnection. The client travels through
// context so commands construct it once and services pull it out.
package mqttclient

import (
	"context"
	stdlog "log"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func init() {
	// Paho's internal logging is too noisy for normal runs; opt in with env.
	if env := os.Getenv("DEBUG_MQTT_CLIENT"); strings.ToLower(env) == "true" {
		mqtt.ERROR = stdlog.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = stdlog.New(os.Stdout, "[CRITICAL] ", 0)
		mqtt.WARN = stdlog.New(os.Stdout, "[WARN]  ", 0)
		mqtt.DEBUG = stdlog.New(os.Stdout, "[DEBUG] ", 0)
	}
}

type contextKey string

const clientKey = contextKey("mqtt_client")

// Client options.
const (
	writeTimeout = 1 * time.Second
	pingTimeout  = 10 * time.Second
)

var (
	missedMessageHandler mqtt.MessageHandler = func(client mqtt.Client, msg mqtt.Message) {
		log.Info().Str("msg", string(msg.Payload())).Str("topic", msg.Topic()).Msg("Received a message with no route")
	}

	connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
		log.Info().Msg("Client connected to broker")
	}

	connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
		log.Info().Err(err).Msg("Connection lost")
	}

	reconnectHandler mqtt.ReconnectHandler = func(mqtt.Client, *mqtt.ClientOptions) {
		log.Info().Msg("Attempting to reconnect")
	}
)

// ConfigOptions is config options for an MQTT client.
type ConfigOptions struct {
	Server   string
	ClientID string
	Username string
	Password string
}

// NewClient builds an unconnected client. Call CheckConnectivity to connect.
func NewClient(ctx context.Context, config ConfigOptions) mqtt.Client {
	setLogger(ctx)

	opts := mqtt.NewClientOptions()

	opts.AddBroker(config.Server)
	// A random suffix keeps restarted instances from kicking each other off
	// the broker.
	opts.SetClientID(config.ClientID + "-" + uuid.NewString())

	// Unordered delivery avoids deadlocks from blocking message handlers;
	// the RPC frames carry their own ids so ordering does not matter.
	opts.SetOrderMatters(false)
	// A persistent session replays subscriptions after a reconnect.
	opts.SetCleanSession(false)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(missedMessageHandler)
	opts.OnConnectionLost = connectLostHandler
	opts.OnReconnecting = reconnectHandler
	opts.OnConnect = connectHandler

	opts.WriteTimeout = writeTimeout // Minimal delays on writes
	opts.PingTimeout = pingTimeout

	// Keep trying to connect and reconnect if the network drops.
	opts.ConnectRetry = true

	return mqtt.NewClient(opts)
}

// setLogger routes the client's log output through the context logger so the
// command's debug toggle applies here too.
func setLogger(ctx context.Context) {
	log.Logger = log.Ctx(ctx).With().Str("component", "mqtt-client").Logger()
}

// CheckConnectivity checks MQTT client connectivity with a timeout.
func CheckConnectivity(client mqtt.Client, timeout time.Duration) error {
	if token := client.Connect(); token.WaitTimeout(timeout) && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// WithContext returns a context with the client attached.
func WithContext(ctx context.Context, client mqtt.Client) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// FromContext returns the MQTT client stored in context. If no such client exists, it returns nil.
func FromContext(ctx context.Context) mqtt.Client {
	if client, ok := ctx.Value(clientKey).(mqtt.Client); ok {
		return client
	}
	return nil
}
