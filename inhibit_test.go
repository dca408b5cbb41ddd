package ports

import (
	"context"
	"testing"
	"time"
)

func TestInhibitPortRPCsCancelsInFlightExceptCaller(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	other, err := BeginRPC(context.Background(), p, MessageID(1), SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC(other): %v", err)
	}
	caller, err := BeginRPC(context.Background(), p, MessageID(1), SeqNo(2))
	if err != nil {
		t.Fatalf("BeginRPC(caller): %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- InhibitPortRPCs(context.Background(), p, caller)
	}()

	select {
	case <-other.Context().Done():
	case <-time.After(time.Second):
		t.Fatalf("other RPC was not cancelled by InhibitPortRPCs")
	}
	select {
	case <-caller.Context().Done():
		t.Fatalf("caller's own RPC should not be cancelled")
	default:
	}

	// InhibitPortRPCs is still waiting for `other` to EndRPC.
	select {
	case <-done:
		t.Fatalf("InhibitPortRPCs returned before in-flight RPC ended")
	case <-time.After(30 * time.Millisecond):
	}

	EndRPC(other)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("InhibitPortRPCs: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("InhibitPortRPCs never returned after in-flight RPC ended")
	}

	EndRPC(caller)
	ResumePortRPCs(p)
}

func TestInhibitPortRPCsTwiceReturnsBusy(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	if err := InhibitPortRPCs(context.Background(), p, nil); err != nil {
		t.Fatalf("InhibitPortRPCs: %v", err)
	}
	defer ResumePortRPCs(p)

	if err := InhibitPortRPCs(context.Background(), p, nil); err != BusyErr {
		t.Fatalf("second InhibitPortRPCs err = %v, want BusyErr", err)
	}
}

func TestInhibitPortRPCsCtxCancelReturnsInterrupted(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	tr, err := BeginRPC(context.Background(), p, MessageID(1), SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC: %v", err)
	}
	defer EndRPC(tr)
	defer ResumePortRPCs(p)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := InhibitPortRPCs(ctx, p, nil); err != InterruptedErr {
		t.Fatalf("InhibitPortRPCs err = %v, want InterruptedErr", err)
	}
}

func TestInhibitClassRPCsCoversEveryPortInClass(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p1 := newTestPort(t, class, bucket)
	p2 := newTestPort(t, class, bucket)

	tr1, err := BeginRPC(context.Background(), p1, MessageID(1), SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC(p1): %v", err)
	}
	tr2, err := BeginRPC(context.Background(), p2, MessageID(1), SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC(p2): %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- InhibitClassRPCs(context.Background(), class, nil) }()

	for _, tr := range []*RPCTracker{tr1, tr2} {
		select {
		case <-tr.Context().Done():
		case <-time.After(time.Second):
			t.Fatalf("InhibitClassRPCs did not cancel an RPC in flight on a port of the class")
		}
	}

	EndRPC(tr1)
	EndRPC(tr2)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("InhibitClassRPCs: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("InhibitClassRPCs did not return once the class's RPCs ended")
	}
	ResumeClassRPCs(class)
}
