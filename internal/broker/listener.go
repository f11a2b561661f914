package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rvachhani/presenced/internal/attend/types"
	"github.com/rvachhani/presenced/internal/metrics"
)

// Mode selects how inbound payloads are decoded. It is fixed at
// configuration time; the listener never guesses per message.
type Mode string

const (
	// ModeAssertion expects JSON events pre-resolved by an upstream
	// detector (employee_code / employee_name / present).
	ModeAssertion Mode = "assertion"
	// ModeCapture expects raw capture bytes that still need local
	// extraction and matching.
	ModeCapture Mode = "capture"
)

type Config struct {
	Broker      string // host:port
	Username    string
	Password    string
	ClientID    string
	TopicFrame  string
	TopicResult string
	QoS         byte
	Mode        Mode
}

// Dispatcher is the event pipeline as the listener sees it.
type Dispatcher interface {
	ProcessAssertionPayload(ctx context.Context, payload []byte) types.Outcome
	ProcessCapture(ctx context.Context, payload []byte) []types.Outcome
}

// Listener maintains the persistent subscription on the frame topic and
// feeds each message through the dispatcher on a dedicated goroutine.
// Reconnection is delegated to the paho client; the listener only
// tracks the connected flag for status reads.
type Listener struct {
	cfg        Config
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics

	client  mqtt.Client
	inbound chan []byte
	quit    chan struct{}
	done    chan struct{}

	mu        sync.RWMutex
	connected bool
}

func NewListener(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Listener {
	return &Listener{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		inbound: make(chan []byte, 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Bind attaches the dispatcher. Must be called before Start; it exists
// because the pipeline publishes through the listener, so the two are
// constructed listener-first.
func (l *Listener) Bind(d Dispatcher) { l.dispatcher = d }

// Start connects to the broker and launches the dispatch loop. The
// client keeps retrying in the background if the broker is down, so a
// connect timeout is logged rather than fatal.
func (l *Listener) Start(ctx context.Context) error {
	if l.dispatcher == nil {
		return fmt.Errorf("listener started without a dispatcher")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", l.cfg.Broker))
	opts.SetClientID(l.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	if l.cfg.Username != "" {
		opts.SetUsername(l.cfg.Username)
		opts.SetPassword(l.cfg.Password)
	}

	// Subscribing inside OnConnect means the subscription is restored
	// after every reconnect, not just the first session.
	opts.OnConnect = func(c mqtt.Client) {
		l.setConnected(true)
		token := c.Subscribe(l.cfg.TopicFrame, l.cfg.QoS, l.onMessage)
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				l.logger.Error("frame topic subscribe failed",
					"topic", l.cfg.TopicFrame, "error", err)
				return
			}
			l.logger.Info("mqtt connected",
				"broker", l.cfg.Broker,
				"client_id", l.cfg.ClientID,
				"topic", l.cfg.TopicFrame,
				"mode", string(l.cfg.Mode))
		}()
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		l.setConnected(false)
		l.logger.Warn("mqtt connection lost, auto-reconnecting", "error", err)
	}

	l.client = mqtt.NewClient(opts)

	l.logger.Info("connecting to mqtt broker", "broker", l.cfg.Broker)
	token := l.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		l.logger.Warn("mqtt broker not reachable yet, retrying in background",
			"broker", l.cfg.Broker)
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	go l.dispatchLoop(ctx)
	return nil
}

// Stop unsubscribes and disconnects, then waits for the dispatch loop
// to drain.
func (l *Listener) Stop() {
	if l.client != nil && l.client.IsConnected() {
		l.client.Unsubscribe(l.cfg.TopicFrame).Wait()
		l.client.Disconnect(250)
	}
	l.setConnected(false)
	close(l.quit)
	<-l.done
	l.logger.Info("mqtt listener stopped")
}

// Connected reports the current session state for the status snapshot.
func (l *Listener) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

// Publish emits an outcome as JSON on the result topic.
func (l *Listener) Publish(o types.Outcome) error {
	if l.client == nil || !l.client.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	token := l.client.Publish(l.cfg.TopicResult, l.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout on %s", l.cfg.TopicResult)
	}
	return token.Error()
}

func (l *Listener) setConnected(v bool) {
	l.mu.Lock()
	l.connected = v
	l.mu.Unlock()
	if v {
		l.metrics.BrokerConnected.Set(1)
	} else {
		l.metrics.BrokerConnected.Set(0)
	}
}

// onMessage runs on paho's callback goroutine; it only copies the
// payload and hands off, keeping the client responsive. A full buffer
// drops the message rather than stalling the broker session.
func (l *Listener) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	select {
	case l.inbound <- payload:
	default:
		l.logger.Warn("inbound buffer full, dropping message",
			"topic", msg.Topic(), "size", len(payload))
	}
}

// dispatchLoop is the single long-lived consumer of inbound messages.
// Each message runs the full synchronous pipeline; a bad message yields
// an error outcome and the loop moves on.
func (l *Listener) dispatchLoop(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("dispatch loop stopping")
			return
		case <-l.quit:
			return
		case payload := <-l.inbound:
			l.dispatch(ctx, payload)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, payload []byte) {
	l.logger.Debug("frame received", "size", len(payload), "mode", string(l.cfg.Mode))

	switch l.cfg.Mode {
	case ModeCapture:
		l.dispatcher.ProcessCapture(ctx, payload)
	default:
		l.dispatcher.ProcessAssertionPayload(ctx, payload)
	}
}
