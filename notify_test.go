package ports

import (
	"context"
	"testing"
)

func TestInterruptRPCOnNotificationFiresOnDeliver(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	tr, err := BeginRPC(context.Background(), p, MessageID(1), SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC: %v", err)
	}
	defer EndRPC(tr)

	name := p.Name()
	armed := false
	if err := InterruptRPCOnNotification(tr, name, NoSenders, func() error {
		armed = true
		return nil
	}); err != nil {
		t.Fatalf("InterruptRPCOnNotification: %v", err)
	}
	if !armed {
		t.Fatalf("arm callback should fire for the first subscriber")
	}

	select {
	case <-tr.Context().Done():
		t.Fatalf("RPC should not be cancelled before delivery")
	default:
	}

	DeliverNotification(name, NoSenders)

	select {
	case <-tr.Context().Done():
	default:
		t.Fatalf("RPC should be cancelled after DeliverNotification")
	}
}

func TestInterruptRPCOnNotificationArmsOnlyOncePerKey(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p1 := newTestPort(t, class, bucket)
	p2 := newTestPort(t, class, bucket)

	tr1, err := BeginRPC(context.Background(), p1, MessageID(1), SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC(tr1): %v", err)
	}
	defer EndRPC(tr1)
	tr2, err := BeginRPC(context.Background(), p2, MessageID(1), SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC(tr2): %v", err)
	}
	defer EndRPC(tr2)

	name := p1.Name()
	armCount := 0
	arm := func() error { armCount++; return nil }

	if err := InterruptRPCOnNotification(tr1, name, DeadName, arm); err != nil {
		t.Fatalf("InterruptRPCOnNotification(tr1): %v", err)
	}
	if err := InterruptRPCOnNotification(tr2, name, DeadName, arm); err != nil {
		t.Fatalf("InterruptRPCOnNotification(tr2): %v", err)
	}
	if armCount != 1 {
		t.Fatalf("arm called %d times, want 1 (shared subscription)", armCount)
	}

	DeliverNotification(name, DeadName)

	for _, tr := range []*RPCTracker{tr1, tr2} {
		select {
		case <-tr.Context().Done():
		default:
			t.Fatalf("both subscribers should be cancelled by one delivery")
		}
	}
}

func TestInterruptRPCOnNotificationInvalidNameCancelsImmediately(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	tr, err := BeginRPC(context.Background(), p, MessageID(1), SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC: %v", err)
	}
	defer EndRPC(tr)

	if err := InterruptRPCOnNotification(tr, Invalid, NoSenders, nil); err != nil {
		t.Fatalf("InterruptRPCOnNotification: %v", err)
	}

	select {
	case <-tr.Context().Done():
	default:
		t.Fatalf("RPC should be cancelled immediately for Invalid name")
	}
}

func TestEndRPCDetachesNotifyLinks(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	tr, err := BeginRPC(context.Background(), p, MessageID(1), SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC: %v", err)
	}

	name := p.Name()
	if err := InterruptRPCOnNotification(tr, name, NoSenders, func() error { return nil }); err != nil {
		t.Fatalf("InterruptRPCOnNotification: %v", err)
	}

	EndRPC(tr)

	mainLatch.Lock()
	_, stillRegistered := notifySubs[notifyKey{name: name, kind: NoSenders}]
	mainLatch.Unlock()
	if stillRegistered {
		t.Fatalf("subscription should be dropped once its last subscriber's RPC ends")
	}
}
