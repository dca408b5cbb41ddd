package ports

import (
	"context"
	"testing"
	"time"
)

func TestBeginEndRPCTracksInFlight(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	tr, err := BeginRPC(context.Background(), p, MessageID(1), SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC: %v", err)
	}
	if class.RPCsInFlight() != 1 {
		t.Fatalf("class.RPCsInFlight() = %d, want 1", class.RPCsInFlight())
	}
	if bucket.RPCsInFlight() != 1 {
		t.Fatalf("bucket.RPCsInFlight() = %d, want 1", bucket.RPCsInFlight())
	}

	EndRPC(tr)
	if class.RPCsInFlight() != 0 {
		t.Fatalf("class.RPCsInFlight() after EndRPC = %d, want 0", class.RPCsInFlight())
	}
}

func TestBeginRPCSetsBlockedFlagWhileWaitingOnPortInhibition(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	mainLatch.Lock()
	p.bits |= flagInhibited
	mainLatch.Unlock()

	done := make(chan struct{})
	go func() {
		tr, err := BeginRPC(context.Background(), p, MessageID(1), SeqNo(1))
		if err == nil {
			EndRPC(tr)
		}
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		mainLatch.Lock()
		blocked := p.bits&flagBlocked != 0
		mainLatch.Unlock()
		if blocked {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for flagBlocked to be set on the waiting port")
		}
		time.Sleep(time.Millisecond)
	}

	ResumePortRPCs(p)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("BeginRPC never unblocked after ResumePortRPCs")
	}

	mainLatch.Lock()
	stillBlocked := p.bits&flagBlocked != 0
	mainLatch.Unlock()
	if stillBlocked {
		t.Fatalf("flagBlocked should be cleared once the RPC is admitted")
	}
}

func TestBeginRPCFailsOnDeadPort(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)
	if err := p.DestroyRight(); err != nil {
		t.Fatalf("DestroyRight: %v", err)
	}

	if _, err := BeginRPC(context.Background(), p, MessageID(1), SeqNo(1)); err != NotSupportedErr {
		t.Fatalf("BeginRPC on dead port err = %v, want NotSupportedErr", err)
	}
}

func TestBeginRPCPreCancelledByCancelThreshold(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	InterruptOperation(p, SeqNo(10))

	tr, err := BeginRPC(context.Background(), p, MessageID(1), SeqNo(5))
	if err != nil {
		t.Fatalf("BeginRPC: %v", err)
	}
	select {
	case <-tr.Context().Done():
	default:
		t.Fatalf("RPC with seqNo below cancel_threshold should start pre-cancelled")
	}
	EndRPC(tr)
}

func TestBeginRPCBlocksWhilePortInhibited(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	if err := InhibitPortRPCs(context.Background(), p, nil); err != nil {
		t.Fatalf("InhibitPortRPCs: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		tr, err := BeginRPC(context.Background(), p, MessageID(2), SeqNo(1))
		if err == nil {
			EndRPC(tr)
		}
		done <- err
	}()

	select {
	case <-done:
		t.Fatalf("BeginRPC returned while port inhibited")
	case <-time.After(50 * time.Millisecond):
	}

	ResumePortRPCs(p)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("BeginRPC after resume: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("BeginRPC never unblocked after ResumePortRPCs")
	}
}

func TestBeginRPCUninhibitableRangePassesThrough(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	p := newTestPort(t, class, bucket)

	if err := InhibitPortRPCs(context.Background(), p, nil); err != nil {
		t.Fatalf("InhibitPortRPCs: %v", err)
	}
	defer ResumePortRPCs(p)

	tr, err := BeginRPC(context.Background(), p, InterruptOperationID, SeqNo(1))
	if err != nil {
		t.Fatalf("BeginRPC for uninhibitable message ID: %v", err)
	}
	EndRPC(tr)
}
