package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/messaging"
)

const (
	defaultNATSURL       = "nats://127.0.0.1:4222"
	defaultSubjectPrefix = "lms.events"
)

func main() {
	natsURL := flag.String("nats", defaultNATSURL, "NATS server URL")
	prefix := flag.String("prefix", defaultSubjectPrefix, "Subject prefix of the event stream")
	eventType := flag.String("type", "", "Event type, one of: "+supportedTypes())
	orgID := flag.String("org", "", "Organization ID")
	data := flag.String("data", "", "Event data as a JSON value")
	count := flag.Int("count", 1, "Number of events to publish")
	timeout := flag.Duration("timeout", 30*time.Second, "How long to keep retrying each publish")
	flag.Parse()

	events, err := buildEvents(*eventType, *orgID, *data, *count)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pub, err := messaging.NewPublisher(messaging.Config{
		URL:            *natsURL,
		SubjectPrefix:  *prefix,
		MaxReconnects:  3,
		ReconnectWait:  time.Second,
		ConnectionName: "ff-webhook-publish-event",
		PublishTimeout: *timeout,
	}, adapter.NewNatsJetStream(), adapter.NewJSON(), adapter.NewClock())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer pub.Close()

	for i, event := range events {
		id, err := pub.PublishEvent(ctx, event)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error publishing event %d: %v\n", i+1, err)
			os.Exit(1)
		}
		fmt.Printf("%s %s\n", event.Type, id)
	}
}

// buildEvents validates the flags and returns count copies of the event
func buildEvents(eventType, orgID, data string, count int) ([]domain.Event, error) {
	if count < 1 {
		return nil, fmt.Errorf("count must be at least 1")
	}

	event := domain.Event{
		Type:           domain.EventType(eventType),
		OrganizationID: orgID,
	}
	if data != "" {
		event.Data = json.RawMessage(data)
	}
	event.Normalize()
	if err := event.Validate(); err != nil {
		return nil, err
	}

	events := make([]domain.Event, count)
	for i := range events {
		events[i] = event
	}
	return events, nil
}

func supportedTypes() string {
	types := make([]string, 0, len(domain.SupportedEventTypes))
	for _, t := range domain.SupportedEventTypes {
		types = append(types, t.String())
	}
	return strings.Join(types, ", ")
}
