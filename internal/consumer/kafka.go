package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// KafkaSource implements Source over a sarama consumer group. Messages
// from every claimed partition are fanned into one channel so the loop
// sees a single ordered-per-partition stream.
//
// Offsets are marked as messages are handed over, before aggregation,
// and committed in the background by the client's auto-commit ticker.
// A crash between hand-over and a successful merge can therefore drop
// those messages on restart; committing manually after aggregation
// would close that window.
type KafkaSource struct {
	group    sarama.ConsumerGroup
	messages chan *sarama.ConsumerMessage
	errors   chan error

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewKafkaSource joins the consumer group and starts consuming the
// topic. A fresh group starts from the oldest available offset; an
// existing group resumes from its last committed offset.
func NewKafkaSource(brokers []string, topic, groupID, clientID string) (*KafkaSource, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("joining consumer group %q: %w", groupID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &KafkaSource{
		group:    group,
		messages: make(chan *sarama.ConsumerMessage, 64),
		errors:   make(chan error, 16),
		cancel:   cancel,
	}

	s.wg.Add(2)
	go s.consume(ctx, topic)
	go s.forwardErrors()

	slog.Info("kafka source started", "topic", topic, "group", groupID)
	return s, nil
}

// consume runs consumer group sessions until the source is closed.
// Consume returns on every rebalance; the next iteration joins a new
// session.
func (s *KafkaSource) consume(ctx context.Context, topic string) {
	defer s.wg.Done()

	for {
		err := s.group.Consume(ctx, []string{topic}, s)
		if ctx.Err() != nil || errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return
		}
		if err != nil {
			slog.Error("consumer group session failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (s *KafkaSource) forwardErrors() {
	defer s.wg.Done()
	for err := range s.group.Errors() {
		s.errors <- err
	}
}

// Setup implements sarama.ConsumerGroupHandler.
func (s *KafkaSource) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (s *KafkaSource) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim forwards one partition's messages into the shared
// channel. Each message is marked as consumed at hand-over; the
// auto-commit ticker persists marked offsets.
func (s *KafkaSource) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		select {
		case s.messages <- msg:
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
	return nil
}

// Poll implements Source.
func (s *KafkaSource) Poll(ctx context.Context, timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-s.messages:
		return &Message{Value: msg.Value, Partition: msg.Partition, Offset: msg.Offset}, nil
	case err := <-s.errors:
		return nil, err
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close leaves the consumer group. Buffered messages are discarded so
// in-flight forwards can drain and exit.
func (s *KafkaSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.group.Close()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		for {
			select {
			case <-s.messages:
			case <-s.errors:
			case <-done:
				return
			}
		}
	})
	return err
}
