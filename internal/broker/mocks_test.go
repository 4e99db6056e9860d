//file: internal/broker/mocks_test.go
package broker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"mqtt-span-bridge/config"
	"mqtt-span-bridge/internal/logger"
	"mqtt-span-bridge/internal/rule"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.NewLogger(&config.LogConfig{
		Level:      "error",
		OutputPath: "stdout",
		Encoding:   "console",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

type publishRecord struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// mockConn implements Connection for tests. Operations are recorded in
// order; individual filters/topics can be made to fail.
type mockConn struct {
	side      rule.Side
	connected bool

	mu          sync.Mutex
	subs        map[string]byte
	ops         []string // "sub:<filter>" / "unsub:<filter>" in call order
	published   []publishRecord
	failSub     map[string]error
	failUnsub   map[string]error
	failPublish error
}

func newMockConn(side rule.Side) *mockConn {
	return &mockConn{
		side:      side,
		connected: true,
		subs:      make(map[string]byte),
		failSub:   make(map[string]error),
		failUnsub: make(map[string]error),
	}
}

func (m *mockConn) Subscribe(filter string, qos byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failSub[filter]; ok {
		return err
	}
	m.subs[filter] = qos
	m.ops = append(m.ops, "sub:"+filter)
	return nil
}

func (m *mockConn) Unsubscribe(filter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failUnsub[filter]; ok {
		return err
	}
	delete(m.subs, filter)
	m.ops = append(m.ops, "unsub:"+filter)
	return nil
}

func (m *mockConn) Publish(topic string, payload []byte, qos byte, retain bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("%s broker not connected", m.side)
	}
	if m.failPublish != nil {
		return m.failPublish
	}
	m.published = append(m.published, publishRecord{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
	})
	return nil
}

func (m *mockConn) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockConn) Side() rule.Side {
	return m.side
}

func (m *mockConn) subscriptions() map[string]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]byte, len(m.subs))
	for k, v := range m.subs {
		out[k] = v
	}
	return out
}

func (m *mockConn) operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ops...)
}

func (m *mockConn) publishes() []publishRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishRecord(nil), m.published...)
}

// mockToken implements mqtt.Token for supervisor tests.
type mockToken struct {
	err  error
	done chan struct{}
}

func newMockToken(err error) *mockToken {
	t := &mockToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *mockToken) Wait() bool                       { return true }
func (t *mockToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *mockToken) Error() error                     { return t.err }
func (t *mockToken) Done() <-chan struct{}            { return t.done }

// mockClient implements mqtt.Client for supervisor tests.
type mockClient struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	connects    int
	handlers    map[string]mqtt.MessageHandler
	publishErr  error
	published   []publishRecord
	unsubbed    []string
}

func newMockClient() *mockClient {
	return &mockClient{
		handlers: make(map[string]mqtt.MessageHandler),
	}
}

func (m *mockClient) Connect() mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	if m.connectErr != nil {
		return newMockToken(m.connectErr)
	}
	m.connected = true
	return newMockToken(nil)
}

func (m *mockClient) Disconnect(quiesce uint) {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return newMockToken(m.publishErr)
	}
	m.published = append(m.published, publishRecord{
		Topic:   topic,
		Payload: payload.([]byte),
		QoS:     qos,
		Retain:  retained,
	})
	return newMockToken(nil)
}

func (m *mockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = callback
	return newMockToken(nil)
}

func (m *mockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return newMockToken(nil)
}

func (m *mockClient) Unsubscribe(topics ...string) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubbed = append(m.unsubbed, topics...)
	for _, t := range topics {
		delete(m.handlers, t)
	}
	return newMockToken(nil)
}

func (m *mockClient) AddRoute(topic string, callback mqtt.MessageHandler) {}

func (m *mockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockClient) IsConnectionOpen() bool { return m.IsConnected() }

func (m *mockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// mockMessage implements mqtt.Message for dispatch tests.
type mockMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return m.qos }
func (m *mockMessage) Retained() bool    { return m.retained }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}
