package main

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/menuboard-backend/pkg/outbox/registry"
)

// sender publishes one message and waits for the server ack.
type sender interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// pubsubSender caches one Publisher per topic so batching settings apply
// across rows.
type pubsubSender struct {
	source     topicSource
	publishers map[string]*gcppubsub.Publisher
	timeout    time.Duration
}

func newPubSubSender(source topicSource, timeout time.Duration) *pubsubSender {
	return &pubsubSender{source: source, publishers: map[string]*gcppubsub.Publisher{}, timeout: timeout}
}

func (s *pubsubSender) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub, ok := s.publishers[topic]
	if !ok {
		pub = s.source.Publisher(topic)
		if pub == nil {
			return registry.Permanent(fmt.Errorf("publisher not configured for topic %s", topic))
		}
		s.publishers[topic] = pub
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := pub.Publish(ctx, msg).Get(ctx)
	return classify(err)
}

// classify marks errors the topic will keep returning as permanent.
func classify(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition:
		return registry.Permanent(err)
	}
	return err
}

// Stop flushes and stops every cached publisher.
func (s *pubsubSender) Stop() {
	for _, pub := range s.publishers {
		pub.Stop()
	}
}
