package ports

import (
	"context"
	"testing"
	"time"

	"github.com/hurd-go/ports/internal/machshim"
)

func TestCreatePortInstallsIntoIndices(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)

	p := newTestPort(t, class, bucket)
	name := p.Name()
	if name == Invalid {
		t.Fatalf("Name() = Invalid after CreatePort")
	}

	got, err := Lookup(NameTarget(name), nil, nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	defer got.deref()
	if got != p {
		t.Fatalf("Lookup returned a different port")
	}
	if class.PortCount() != 1 {
		t.Fatalf("PortCount = %d, want 1", class.PortCount())
	}
	if bucket.PortCount() != 1 {
		t.Fatalf("bucket PortCount = %d, want 1", bucket.PortCount())
	}
}

func TestCreatePortInstallAddsToPortset(t *testing.T) {
	class := NewClass("test", nil, nil)
	ps := machshim.NewSet(8)
	bucket := NewBucket("test", ps)

	p, err := CreatePort(context.Background(), machshim.New(), class, bucket, true, nil)
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}

	ps.Enqueue(&IncomingMessage{Target: PayloadTarget(p)})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := ps.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg.Target.payload != p {
		t.Fatalf("received message targets a different port")
	}
}

func TestCreatePortBlocksOnNoAllocUntilCleared(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	class.SetNoAlloc(true)

	done := make(chan error, 1)
	go func() {
		_, err := CreatePort(context.Background(), machshim.New(), class, bucket, false, nil)
		done <- err
	}()

	select {
	case <-done:
		t.Fatalf("CreatePort returned before NoAlloc cleared")
	case <-time.After(50 * time.Millisecond):
	}

	class.SetNoAlloc(false)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("CreatePort: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("CreatePort never returned after NoAlloc cleared")
	}
}

func TestCreatePortCtxCancelDuringNoAlloc(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	class.SetNoAlloc(true)
	defer class.SetNoAlloc(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := CreatePort(ctx, machshim.New(), class, bucket, false, nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != InterruptedErr {
			t.Fatalf("CreatePort err = %v, want InterruptedErr", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("CreatePort never returned after ctx cancel")
	}
}

func TestImportPortPicksUpExistingSendRights(t *testing.T) {
	class := NewClass("test", nil, nil)
	bucket := newTestBucket(t)
	kernel := machshim.New()

	right, err := kernel.AllocateReceiveRight()
	if err != nil {
		t.Fatalf("AllocateReceiveRight: %v", err)
	}
	kernel.SetHasSendRights(right, true, 3)

	p, err := ImportPort(context.Background(), kernel, class, bucket, right, false, nil)
	if err != nil {
		t.Fatalf("ImportPort: %v", err)
	}
	if p.HardRefs() != 2 {
		t.Fatalf("HardRefs = %d, want 2 (one for caller, one for the pre-existing send rights)", p.HardRefs())
	}
}
