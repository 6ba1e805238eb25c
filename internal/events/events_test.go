package events

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/IBM/sarama/mocks"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPublisher_SendsJSONWithGeneratedID(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, ProducerConfig())
	prod.ExpectInputWithCheckerFunctionAndSucceed(func(b []byte) error {
		var ev Event
		if err := json.Unmarshal(b, &ev); err != nil {
			return err
		}
		if _, err := uuid.Parse(ev.ID); err != nil {
			return fmt.Errorf("id %q is not a uuid: %w", ev.ID, err)
		}
		if ev.Region != "country:BRA" || ev.Value != 42 || ev.Outcome != "ok" {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		if ev.TS.IsZero() {
			return fmt.Errorf("timestamp not set")
		}
		return nil
	})

	p := NewWithProducer(discard(), prod, "terrai-analysis", 4)
	p.Publish(Event{Strategy: "histogram", Region: "country:BRA", Kind: "country", Outcome: "ok", Value: 42})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublisher_PublishAfterCloseIsNoop(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, ProducerConfig())
	p := NewWithProducer(discard(), prod, "t", 1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	p.Publish(Event{Region: "wdpa:1"})
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDiscard(t *testing.T) {
	var s Sink = Discard{}
	s.Publish(Event{})
}
