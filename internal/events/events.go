// Package events publishes one analysis event per resolved region to Kafka.
// Publishing never blocks the request path: when the queue is full the event is dropped.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

type Event struct {
	ID         string    `json:"id"`
	Strategy   string    `json:"strategy"`
	Region     string    `json:"region"`
	Kind       string    `json:"kind"`
	Period     string    `json:"period,omitempty"`
	Outcome    string    `json:"outcome"`
	Value      int64     `json:"value"`
	DurationMS int64     `json:"durationMs"`
	TS         time.Time `json:"ts"`
}

// Sink is what the HTTP layer publishes to.
type Sink interface {
	Publish(ev Event)
}

// Discard is the Sink used when event publishing is disabled.
type Discard struct{}

func (Discard) Publish(Event) {}

type Publisher struct {
	logger  *slog.Logger
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "terrai-alerts"
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	return cfg
}

func NewPublisher(logger *slog.Logger, brokers []string, topic string, queueSize int) (*Publisher, error) {
	prod, err := sarama.NewAsyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return NewWithProducer(logger, prod, topic, queueSize), nil
}

// NewWithProducer starts a publisher on an existing producer and takes ownership of it.
func NewWithProducer(logger *slog.Logger, prod sarama.AsyncProducer, topic string, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Publisher{
		logger:  logger,
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Warn("events: marshal failed", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Region),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("events: producer error", "err", err.Err, "topic", err.Msg.Topic)
			}
		}
	}()

	return p
}

func (p *Publisher) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		p.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.stopped
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
