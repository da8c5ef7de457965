package redis

import (
	"sync"

	"github.com/redis/go-redis/v9"
)

// Subscription adapts a redis PubSub to a plain payload channel.
type Subscription struct {
	ps        *redis.PubSub
	out       chan string
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(ps *redis.PubSub) *Subscription {
	s := &Subscription{
		ps:   ps,
		out:  make(chan string, 16),
		done: make(chan struct{}),
	}
	go s.pump(ps.Channel())
	return s
}

func (s *Subscription) pump(in <-chan *redis.Message) {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- msg.Payload:
			case <-s.done:
				return
			}
		}
	}
}

// Messages yields payloads until the subscription is closed.
func (s *Subscription) Messages() <-chan string {
	return s.out
}

// Close unsubscribes and stops delivery.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
