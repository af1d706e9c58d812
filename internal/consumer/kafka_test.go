package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
)

// stubSession records offset marks, standing in for a live group
// session.
type stubSession struct {
	ctx context.Context

	mu     sync.Mutex
	marked []*sarama.ConsumerMessage
}

func (s *stubSession) Claims() map[string][]int32 { return nil }
func (s *stubSession) MemberID() string           { return "member" }
func (s *stubSession) GenerationID() int32        { return 1 }
func (s *stubSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
}
func (s *stubSession) Commit() {}
func (s *stubSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {
}
func (s *stubSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg)
}
func (s *stubSession) Context() context.Context { return s.ctx }

func (s *stubSession) markedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.marked)
}

type stubClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *stubClaim) Topic() string                            { return "notifications.decorated" }
func (c *stubClaim) Partition() int32                         { return 0 }
func (c *stubClaim) InitialOffset() int64                     { return 0 }
func (c *stubClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *stubClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestConsumeClaimForwardsAndMarks(t *testing.T) {
	source := &KafkaSource{
		messages: make(chan *sarama.ConsumerMessage, 4),
		errors:   make(chan error, 1),
	}
	sess := &stubSession{ctx: context.Background()}
	claim := &stubClaim{msgs: make(chan *sarama.ConsumerMessage, 2)}

	first := &sarama.ConsumerMessage{Value: []byte(`{"a":1}`), Offset: 7}
	second := &sarama.ConsumerMessage{Value: []byte(`{"b":2}`), Offset: 8}
	claim.msgs <- first
	claim.msgs <- second
	close(claim.msgs)

	if err := source.ConsumeClaim(sess, claim); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}

	// Every message is handed to the poll channel and its offset marked,
	// so a committed group resumes behind the last delivered message
	// instead of skipping to the newest offset.
	for i, want := range []*sarama.ConsumerMessage{first, second} {
		msg, err := source.Poll(context.Background(), 100*time.Millisecond)
		if err != nil {
			t.Fatalf("Poll %d: %v", i, err)
		}
		if msg == nil || msg.Offset != want.Offset {
			t.Fatalf("Poll %d = %+v, want offset %d", i, msg, want.Offset)
		}
	}

	if sess.markedCount() != 2 {
		t.Fatalf("marked %d offsets, want 2", sess.markedCount())
	}
	if sess.marked[0] != first || sess.marked[1] != second {
		t.Error("offsets marked out of delivery order")
	}
}

func TestConsumeClaimStopsOnSessionEnd(t *testing.T) {
	// A forwarder blocked on a full poll channel must exit when the
	// session ends, otherwise Close deadlocks behind it.
	source := &KafkaSource{
		messages: make(chan *sarama.ConsumerMessage), // unbuffered, nobody polls
		errors:   make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &stubSession{ctx: ctx}
	claim := &stubClaim{msgs: make(chan *sarama.ConsumerMessage, 1)}
	claim.msgs <- &sarama.ConsumerMessage{Value: []byte(`{}`)}

	done := make(chan error, 1)
	go func() { done <- source.ConsumeClaim(sess, claim) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ConsumeClaim: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ConsumeClaim did not return after session end")
	}

	if sess.markedCount() != 0 {
		t.Errorf("marked %d offsets, want 0 (message never handed over)", sess.markedCount())
	}
}
