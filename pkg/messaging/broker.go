package messaging

import (
	"errors"
	"fmt"
	"sync"
)

// SimpleBroker implements the Broker interface
// subscribers is a map where keys are subscriber IDs and values are channels for receiving messages
type SimpleBroker struct {
	subscribers map[string]chan<- Message
	mu          sync.RWMutex
}

// NewBroker creates a new message broker
func NewBroker() *SimpleBroker {
	return &SimpleBroker{
		subscribers: make(map[string]chan<- Message),
	}
}

// Publish sends a message to specified recipients. Sends never block: a
// recipient whose channel is full misses the message and is reported in the
// returned error, the others still receive it.
func (b *SimpleBroker) Publish(msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// If no recipients specified, broadcast to all subscribers
	recipients := msg.To
	if len(recipients) == 0 {
		for id := range b.subscribers {
			if id != msg.From { // Don't send to self
				recipients = append(recipients, id)
			}
		}
	}

	var errs []error
	for _, recipientID := range recipients {
		ch, ok := b.subscribers[recipientID]
		if !ok {
			continue
		}

		select {
		case ch <- msg:
		default:
			errs = append(errs, fmt.Errorf("recipient %s's channel is full", recipientID))
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a channel to receive messages
func (b *SimpleBroker) Subscribe(id string, ch chan<- Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return fmt.Errorf("subscriber %s is already subscribed", id)
	}

	b.subscribers[id] = ch
	return nil
}

// Unsubscribe removes a subscription
func (b *SimpleBroker) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return fmt.Errorf("subscriber %s is not subscribed", id)
	}

	delete(b.subscribers, id)
	return nil
}

func (b *SimpleBroker) HasSubscriber(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subscribers[id]
	return ok
}

func (b *SimpleBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- Message)
}
