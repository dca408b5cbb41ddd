package machshim

import (
	"context"
	"testing"
	"time"

	"github.com/hurd-go/ports"
)

func TestAllocateAndDestroyReceiveRight(t *testing.T) {
	s := New()
	right, err := s.AllocateReceiveRight()
	if err != nil {
		t.Fatalf("AllocateReceiveRight: %v", err)
	}
	if !right.Valid() {
		t.Fatalf("freshly allocated right should be valid")
	}

	if err := s.DestroyReceiveRight(right); err != nil {
		t.Fatalf("DestroyReceiveRight: %v", err)
	}
	if right.Valid() {
		t.Fatalf("right should be invalid after DestroyReceiveRight")
	}
}

func TestSetReceiveBlocksUntilEnqueue(t *testing.T) {
	set := NewSet(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := set.Receive(ctx); err == nil {
		t.Fatalf("Receive should time out with nothing enqueued")
	}

	msg := &ports.IncomingMessage{ID: ports.MessageID(7)}
	set.Enqueue(msg)

	got, err := set.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got != msg {
		t.Fatalf("Receive returned a different message than enqueued")
	}
}

func TestSetHasSendRightsReflectsInStatus(t *testing.T) {
	s := New()
	right, err := s.AllocateReceiveRight()
	if err != nil {
		t.Fatalf("AllocateReceiveRight: %v", err)
	}
	s.SetHasSendRights(right, true, 5)

	status, err := s.Status(right)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.HasSendRights || status.MakeSendCount != 5 {
		t.Fatalf("Status = %+v, want HasSendRights=true MakeSendCount=5", status)
	}
}
