package netsock

import "testing"

func TestLoopbackDeviceEchoesTransmittedPacket(t *testing.T) {
	var got *Packet
	dev := NewLoopbackDevice(func(name string, pkt *Packet) {
		if name != "lo" {
			t.Errorf("deliver called with dev %q, want %q", name, "lo")
		}
		got = pkt
	})

	pkt := &Packet{Payload: []byte("hello")}
	if err := dev.Transmit(pkt); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	if got != pkt {
		t.Fatalf("loopback device did not deliver the transmitted packet back")
	}

	stats := dev.Stats()
	if stats.TxPackets != 1 || stats.RxPackets != 1 {
		t.Fatalf("Stats = %+v, want one tx and one rx", stats)
	}
	if stats.TxBytes != 5 || stats.RxBytes != 5 {
		t.Fatalf("Stats = %+v, want 5 tx/rx bytes", stats)
	}
}

func TestDummyDeviceCountsAndDrops(t *testing.T) {
	dev := NewDummyDevice("dummy0")
	if err := dev.Transmit(&Packet{Payload: []byte("xyz")}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	stats := dev.Stats()
	if stats.TxPackets != 1 || stats.RxPackets != 0 {
		t.Fatalf("Stats = %+v, want one tx and zero rx", stats)
	}
}

func TestTunnelDeviceQueuesForExternalReader(t *testing.T) {
	dev := NewTunnelDevice("tun0", 4, nil)
	pkt := &Packet{Payload: []byte("abc")}
	if err := dev.Transmit(pkt); err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	got, ok := dev.ReadPacket()
	if !ok {
		t.Fatalf("ReadPacket reported the device closed")
	}
	if got != pkt {
		t.Fatalf("ReadPacket returned a different packet than transmitted")
	}
}

func TestTunnelDeviceInjectDelivers(t *testing.T) {
	var got *Packet
	dev := NewTunnelDevice("tun0", 4, func(name string, pkt *Packet) { got = pkt })

	pkt := &Packet{Payload: []byte("incoming")}
	dev.Inject(pkt)
	if got != pkt {
		t.Fatalf("Inject did not reach the delivery callback")
	}
	if dev.Stats().RxPackets != 1 {
		t.Fatalf("Stats().RxPackets = %d, want 1", dev.Stats().RxPackets)
	}
}

func TestTunnelDeviceTransmitAfterCloseFails(t *testing.T) {
	dev := NewTunnelDevice("tun0", 1, nil)
	dev.Close()
	if err := dev.Transmit(&Packet{Payload: []byte("x")}); err == nil {
		t.Fatalf("Transmit after Close should fail")
	}
}
