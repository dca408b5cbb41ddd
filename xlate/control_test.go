package xlate

import (
	"context"
	"testing"

	"github.com/hurd-go/ports"
	"github.com/hurd-go/ports/internal/machshim"
)

type fakeFS struct {
	goawayErr   error
	goawayCalls int
	argv        []string
}

func (f *fakeFS) Goaway(ctx context.Context, flags int32) error {
	f.goawayCalls++
	return f.goawayErr
}

func (f *fakeFS) SetOptions(ctx context.Context, argv []string) error {
	f.argv = argv
	return nil
}

func (f *fakeFS) GetOptions(ctx context.Context) ([]string, error) {
	return f.argv, nil
}

func newTestControl(t *testing.T, fs FSOps) (*Control, ports.Kernel) {
	t.Helper()
	kernel := machshim.New()
	controlBucket := ports.NewBucket("control", machshim.NewSet(8))
	protidBucket := ports.NewBucket("protid", machshim.NewSet(8))
	controlClass := ControlClass()
	protidClass := ProtidClass(nil)

	c, err := NewControl(context.Background(), kernel, controlClass, controlBucket, protidClass, protidBucket, fs, ports.Invalid)
	if err != nil {
		t.Fatalf("NewControl: %v", err)
	}
	return c, kernel
}

func TestNewControlInstallsPort(t *testing.T) {
	c, _ := newTestControl(t, &fakeFS{})
	if c.Port == nil {
		t.Fatalf("Control.Port is nil")
	}
	if c.GoneAway() {
		t.Fatalf("freshly created control reports GoneAway")
	}
}

func TestSetUnderlyingRoundTrips(t *testing.T) {
	c, _ := newTestControl(t, &fakeFS{})
	c.SetUnderlying(ports.PortName(42))
	if got := c.Underlying(); got != 42 {
		t.Fatalf("Underlying() = %v, want 42", got)
	}
}

func TestHandleGoawayDestroysControlPort(t *testing.T) {
	fs := &fakeFS{}
	c, _ := newTestControl(t, fs)

	if err := c.HandleGoaway(context.Background(), 0); err != nil {
		t.Fatalf("HandleGoaway: %v", err)
	}
	if fs.goawayCalls != 1 {
		t.Fatalf("Goaway called %d times, want 1", fs.goawayCalls)
	}
	if !c.GoneAway() {
		t.Fatalf("GoneAway() = false after HandleGoaway")
	}
	if err := c.Port.DestroyRight(); err == nil {
		t.Fatalf("destroying an already-destroyed right should fail")
	}
}

func TestHandleGoawayRefusalLeavesControlAlive(t *testing.T) {
	fs := &fakeFS{goawayErr: ports.BusyErr}
	c, _ := newTestControl(t, fs)

	if err := c.HandleGoaway(context.Background(), 0); err == nil {
		t.Fatalf("HandleGoaway should propagate the refusal")
	}
	if c.GoneAway() {
		t.Fatalf("GoneAway() = true after a refused goaway")
	}
	if err := c.Port.DestroyRight(); err != nil {
		t.Fatalf("control port should still be alive: DestroyRight: %v", err)
	}
}
