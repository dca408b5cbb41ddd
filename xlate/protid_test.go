package xlate

import (
	"context"
	"testing"
)

func TestNewProtidInstallsPortAndRefsPeropen(t *testing.T) {
	c, kernel := newTestControl(t, &fakeFS{})
	po := NewPeropen(c, 0)

	cred, err := NewProtid(context.Background(), kernel, c.ProtidClass, c.ProtidBucket, po, []int32{0}, []int32{0}, true)
	if err != nil {
		t.Fatalf("NewProtid: %v", err)
	}
	if cred.Port == nil {
		t.Fatalf("Protid.Port is nil")
	}
	if po.refcnt != 2 {
		t.Fatalf("peropen refcnt = %d, want 2 (1 for NewPeropen + 1 for NewProtid)", po.refcnt)
	}
}

func TestProtidDestroyDropsPeropenRef(t *testing.T) {
	var destroyed *Protid
	c, kernel := newTestControl(t, &fakeFS{})
	c.ProtidClass = ProtidClass(func(cred *Protid) { destroyed = cred })

	po := NewPeropen(c, 0)
	cred, err := NewProtid(context.Background(), kernel, c.ProtidClass, c.ProtidBucket, po, nil, nil, false)
	if err != nil {
		t.Fatalf("NewProtid: %v", err)
	}

	if err := cred.Port.DestroyRight(); err != nil {
		t.Fatalf("DestroyRight: %v", err)
	}
	// Drop the creator's reference; the clean routine runs once hard
	// reaches zero.
	cred.Port.Deref()
	if destroyed != cred {
		t.Fatalf("destroy hook did not receive the expected protid")
	}
	if po.refcnt != 1 {
		t.Fatalf("peropen refcnt = %d, want 1 after one protid destroyed", po.refcnt)
	}
}

func TestDuplicateSharesPeropen(t *testing.T) {
	c, kernel := newTestControl(t, &fakeFS{})
	po := NewPeropen(c, 0)
	cred, err := NewProtid(context.Background(), kernel, c.ProtidClass, c.ProtidBucket, po, nil, nil, false)
	if err != nil {
		t.Fatalf("NewProtid: %v", err)
	}

	dup, err := cred.Duplicate(context.Background(), kernel)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup.Peropen != cred.Peropen {
		t.Fatalf("duplicated protid does not share the original's peropen")
	}
	if po.refcnt != 3 {
		t.Fatalf("peropen refcnt = %d, want 3", po.refcnt)
	}
}
