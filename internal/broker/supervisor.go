//file: internal/broker/supervisor.go
package broker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"mqtt-span-bridge/config"
	"mqtt-span-bridge/internal/logger"
	"mqtt-span-bridge/internal/metrics"
	"mqtt-span-bridge/internal/rule"
)

// Supervisor owns the lifecycle of one side's broker connection:
// connect with backoff, resubscribe on reconnect, and dispatch of inbound
// messages to the handler. It implements Connection.
type Supervisor struct {
	side    rule.Side
	cfg     *config.BrokerConfig
	client  mqtt.Client
	logger  *logger.Logger
	metrics *metrics.Metrics

	handler   MessageHandler
	onConnect func()

	mu        sync.RWMutex
	state     State
	lastError error
}

// NewSupervisor creates a supervisor for one side. The handler receives
// every inbound message; onConnect runs after each successful (re)connect
// and is where the bridge restores the side's full subscription set.
func NewSupervisor(side rule.Side, cfg *config.BrokerConfig, log *logger.Logger, m *metrics.Metrics, handler MessageHandler, onConnect func()) (*Supervisor, error) {
	s := &Supervisor{
		side:      side,
		cfg:       cfg,
		logger:    log,
		metrics:   m,
		handler:   handler,
		onConnect: onConnect,
		state:     StateDisconnected,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URI()).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(connectTimeout).
		SetOrderMatters(false)

	opts.OnConnect = s.handleConnect
	opts.OnConnectionLost = s.handleConnectionLost
	opts.OnReconnecting = s.handleReconnecting

	if cfg.TLS.Enable {
		tlsConfig, err := newTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config for %s broker: %w", side, err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	s.client = mqtt.NewClient(opts)
	return s, nil
}

// Side returns which side of the bridge this supervisor serves.
func (s *Supervisor) Side() rule.Side {
	return s.side
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Start connects to the broker, retrying with exponential backoff until
// the context is cancelled. There is no terminal failure state; an
// unreachable broker just keeps the side retrying.
func (s *Supervisor) Start(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		s.setState(StateConnecting)

		err := s.connect()
		if err == nil {
			return nil
		}

		s.mu.Lock()
		s.state = StateDisconnected
		s.lastError = err
		s.mu.Unlock()

		delay := Backoff(attempt)
		s.logger.Error("broker connect failed",
			"side", string(s.side),
			"broker", s.cfg.URI(),
			"attempt", attempt+1,
			"retryIn", delay.String(),
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Supervisor) connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	return nil
}

// Stop disconnects from the broker, allowing in-flight work a short
// quiesce period.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.client.Disconnect(disconnectGrace)
	s.logger.Info("broker disconnected", "side", string(s.side))
}

// IsConnected reports whether the side is currently connected.
func (s *Supervisor) IsConnected() bool {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()
	return state == StateConnected && s.client.IsConnected()
}

// Subscribe adds a topic filter subscription. Inbound messages on the
// filter are delivered to the supervisor's handler.
func (s *Supervisor) Subscribe(filter string, qos byte) error {
	token := s.client.Subscribe(filter, qos, s.dispatch)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("subscribe timeout for %s", filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe failed for %s: %w", filter, err)
	}
	return nil
}

// Unsubscribe removes a topic filter subscription.
func (s *Supervisor) Unsubscribe(filter string) error {
	token := s.client.Unsubscribe(filter)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("unsubscribe timeout for %s", filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe failed for %s: %w", filter, err)
	}
	return nil
}

// Publish publishes a message on this side. Publishing while
// disconnected fails immediately; the caller decides what to do with the
// message.
func (s *Supervisor) Publish(topic string, payload []byte, qos byte, retain bool) error {
	if !s.IsConnected() {
		return fmt.Errorf("%s broker not connected", s.side)
	}

	token := s.client.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// dispatch converts a wire message and hands it to the handler. The
// client is configured with unordered delivery, so this already runs off
// the read loop and the handler may block on the opposite side's I/O.
func (s *Supervisor) dispatch(_ mqtt.Client, msg mqtt.Message) {
	s.handler(rule.Inbound{
		Side:    s.side,
		Topic:   msg.Topic(),
		Payload: msg.Payload(),
		QoS:     msg.Qos(),
		Retain:  msg.Retained(),
	})
}

// handleConnect runs on every successful connect, including automatic
// reconnects. The broker has no memory of prior subscriptions on a fresh
// session, so the full desired set is restored before the side is
// considered ready.
func (s *Supervisor) handleConnect(_ mqtt.Client) {
	s.setState(StateConnected)

	s.logger.Info("broker connected",
		"side", string(s.side),
		"broker", s.cfg.URI(),
		"clientId", s.cfg.ClientID)

	if s.metrics != nil {
		s.metrics.SetConnectionStatus(string(s.side), true)
	}

	if s.onConnect != nil {
		s.onConnect()
	}
}

func (s *Supervisor) handleConnectionLost(_ mqtt.Client, err error) {
	s.mu.Lock()
	s.state = StateDisconnected
	s.lastError = err
	s.mu.Unlock()

	s.logger.Error("broker connection lost",
		"side", string(s.side),
		"error", err)

	if s.metrics != nil {
		s.metrics.SetConnectionStatus(string(s.side), false)
	}
}

func (s *Supervisor) handleReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	s.setState(StateReconnecting)

	s.logger.Info("broker reconnecting",
		"side", string(s.side),
		"broker", s.cfg.URI())

	if s.metrics != nil {
		s.metrics.IncReconnects(string(s.side))
	}
}

// newTLSConfig creates a TLS configuration from PEM files.
func newTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
