package xlate

import (
	"context"
	"errors"
	"testing"

	"github.com/hurd-go/ports"
	"github.com/hurd-go/ports/internal/machshim"
)

type fakeBootstrap struct {
	underlying ports.PortName
	err        error
	gotFlags   int32
	gotSend    ports.PortName
}

func (b *fakeBootstrap) Startup(ctx context.Context, controlSendRight ports.PortName, flags int32) (ports.PortName, error) {
	b.gotSend = controlSendRight
	b.gotFlags = flags
	return b.underlying, b.err
}

func TestStartupWithoutBootstrapLeavesUnderlyingInvalid(t *testing.T) {
	kernel := machshim.New()
	controlBucket := ports.NewBucket("control", machshim.NewSet(8))
	protidBucket := ports.NewBucket("protid", machshim.NewSet(8))

	c, err := Startup(context.Background(), kernel, ControlClass(), controlBucket, ProtidClass(nil), protidBucket, &fakeFS{}, nil, 0)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if c.Underlying() != ports.Invalid {
		t.Fatalf("Underlying() = %v, want Invalid", c.Underlying())
	}
}

func TestStartupRunsBootstrapHandshake(t *testing.T) {
	kernel := machshim.New()
	controlBucket := ports.NewBucket("control", machshim.NewSet(8))
	protidBucket := ports.NewBucket("protid", machshim.NewSet(8))
	bs := &fakeBootstrap{underlying: ports.PortName(123)}

	c, err := Startup(context.Background(), kernel, ControlClass(), controlBucket, ProtidClass(nil), protidBucket, &fakeFS{}, bs, 42)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if c.Underlying() != 123 {
		t.Fatalf("Underlying() = %v, want 123", c.Underlying())
	}
	if bs.gotFlags != 42 {
		t.Fatalf("bootstrap saw flags = %d, want 42", bs.gotFlags)
	}
	if bs.gotSend == ports.Invalid {
		t.Fatalf("bootstrap saw an invalid control send right")
	}
}

func TestStartupPropagatesBootstrapError(t *testing.T) {
	kernel := machshim.New()
	controlBucket := ports.NewBucket("control", machshim.NewSet(8))
	protidBucket := ports.NewBucket("protid", machshim.NewSet(8))
	bs := &fakeBootstrap{err: errors.New("bootstrap refused")}

	_, err := Startup(context.Background(), kernel, ControlClass(), controlBucket, ProtidClass(nil), protidBucket, &fakeFS{}, bs, 0)
	if err == nil {
		t.Fatalf("Startup should propagate the bootstrap's error")
	}
}
