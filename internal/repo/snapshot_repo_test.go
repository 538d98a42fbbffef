package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/snapshot"
)

func TestSnapshotKV_LoadMissing(t *testing.T) {
	kv := NewSnapshotKV(newIdemDB(t, &domain.Snapshot{}))
	if _, err := kv.Load(context.Background(), "merchants"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotKV_SaveOverwrites(t *testing.T) {
	kv := NewSnapshotKV(newIdemDB(t, &domain.Snapshot{}))
	ctx := context.Background()

	if err := kv.Save(ctx, "theme", []byte(`"light"`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := kv.Save(ctx, "theme", []byte(`"dark"`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	b, err := kv.Load(ctx, "theme")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(b) != `"dark"` {
		t.Fatalf("got %s", b)
	}
}

func TestSnapshotKV_Stats(t *testing.T) {
	kv := NewSnapshotKV(newIdemDB(t, &domain.Snapshot{}))
	ctx := context.Background()

	n, last, err := kv.Stats(ctx)
	if err != nil || n != 0 || last != nil {
		t.Fatalf("empty stats: n=%d last=%v err=%v", n, last, err)
	}
	_ = kv.Save(ctx, "merchants", []byte("[]"))
	_ = kv.Save(ctx, "reco", []byte("[]"))
	n, last, err = kv.Stats(ctx)
	if err != nil || n != 2 || last == nil || last.IsZero() {
		t.Fatalf("stats: n=%d last=%v err=%v", n, last, err)
	}
}
