package broadcast

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrUnknownConnection = errors.New("unknown connection")

// Subscriber is one delivery target, usually a connection's outbox. Send must
// not block: it reports false when the message had to be dropped.
type Subscriber interface {
	Send(message any) bool
}

// TopicFor names the broadcast topic of one game session.
func TopicFor(gameID string) string {
	return "game/" + gameID
}

// Broadcaster fans messages out to per-topic subscribers and delivers
// personal messages to a single connection. Delivery is fire-and-forget; a
// slow subscriber loses messages instead of stalling the publisher.
type Broadcaster struct {
	logger *slog.Logger

	mu          sync.RWMutex
	connections map[string]Subscriber
	topics      map[string]map[string]Subscriber
}

func New(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger.With("component", "broadcaster"),

		connections: make(map[string]Subscriber),
		topics:      make(map[string]map[string]Subscriber),
	}
}

// Register makes a connection addressable for personal messages.
func (that *Broadcaster) Register(connID string, subscriber Subscriber) {
	that.mu.Lock()
	that.connections[connID] = subscriber
	that.mu.Unlock()
}

// Unregister removes the connection and all its topic subscriptions.
func (that *Broadcaster) Unregister(connID string) {
	that.mu.Lock()
	delete(that.connections, connID)

	for topic, subscribers := range that.topics {
		delete(subscribers, connID)
		if len(subscribers) == 0 {
			delete(that.topics, topic)
		}
	}
	that.mu.Unlock()
}

// Subscribe adds a registered connection to a topic.
func (that *Broadcaster) Subscribe(topic, connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	subscriber, ok := that.connections[connID]
	if !ok {
		return
	}

	subscribers, ok := that.topics[topic]
	if !ok {
		subscribers = make(map[string]Subscriber)
		that.topics[topic] = subscribers
	}

	subscribers[connID] = subscriber
}

// Unsubscribe removes one connection from a topic.
func (that *Broadcaster) Unsubscribe(topic, connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	subscribers, ok := that.topics[topic]
	if !ok {
		return
	}

	delete(subscribers, connID)
	if len(subscribers) == 0 {
		delete(that.topics, topic)
	}
}

// Publish delivers the message to every subscriber of the topic.
func (that *Broadcaster) Publish(topic string, message any) {
	that.mu.RLock()
	subscribers := make(map[string]Subscriber, len(that.topics[topic]))
	for connID, subscriber := range that.topics[topic] {
		subscribers[connID] = subscriber
	}
	that.mu.RUnlock()

	for connID, subscriber := range subscribers {
		if !subscriber.Send(message) {
			that.logger.Warn("dropped broadcast for slow subscriber", "topic", topic, "connID", connID)
		}
	}
}

// SendTo delivers a personal message to one connection.
func (that *Broadcaster) SendTo(connID string, message any) error {
	that.mu.RLock()
	subscriber, ok := that.connections[connID]
	that.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}

	if !subscriber.Send(message) {
		return fmt.Errorf("connection %s: outbox full, message dropped", connID)
	}

	return nil
}
