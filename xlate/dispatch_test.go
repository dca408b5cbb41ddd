package xlate

import (
	"context"
	"errors"
	"testing"

	"github.com/hurd-go/ports"
)

func TestDispatcherRoutesToControlHandler(t *testing.T) {
	c, kernel := newTestControl(t, &fakeFS{})
	_ = kernel

	d := NewDispatcher()
	var gotFlags int32 = -1
	const msgGoaway ports.MessageID = 1000
	d.Register(msgGoaway, c.Port.Class(), c.Port.Bucket(), func(ctx context.Context, userData interface{}, msg *ports.IncomingMessage) error {
		cntl := userData.(*Control)
		gotFlags = int32(msg.Bits)
		return cntl.HandleGoaway(ctx, int32(msg.Bits))
	})

	demux := d.AsDemuxFunc()
	msg := &ports.IncomingMessage{
		Target: ports.PayloadTarget(c.Port),
		ID:     msgGoaway,
		Bits:   7,
	}
	if handled := demux(context.Background(), msg); !handled {
		t.Fatalf("demux did not recognize a registered message ID")
	}
	if gotFlags != 7 {
		t.Fatalf("handler saw Bits = %d, want 7", gotFlags)
	}
	if !c.GoneAway() {
		t.Fatalf("control should be gone away after dispatch")
	}
}

func TestDispatcherUnrecognizedIDReturnsFalse(t *testing.T) {
	d := NewDispatcher()
	demux := d.AsDemuxFunc()
	msg := &ports.IncomingMessage{ID: ports.MessageID(99999)}
	if handled := demux(context.Background(), msg); handled {
		t.Fatalf("demux should not claim an unregistered message ID")
	}
}

func TestDispatcherHandlerErrorStillReportsHandled(t *testing.T) {
	c, _ := newTestControl(t, &fakeFS{goawayErr: errors.New("refused")})

	d := NewDispatcher()
	const msgGoaway ports.MessageID = 1000
	d.Register(msgGoaway, c.Port.Class(), c.Port.Bucket(), func(ctx context.Context, userData interface{}, msg *ports.IncomingMessage) error {
		return userData.(*Control).HandleGoaway(ctx, 0)
	})

	demux := d.AsDemuxFunc()
	msg := &ports.IncomingMessage{Target: ports.PayloadTarget(c.Port), ID: msgGoaway}
	if handled := demux(context.Background(), msg); !handled {
		t.Fatalf("demux should report handled even when the handler errors")
	}
}
