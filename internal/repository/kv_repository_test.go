package repository

import (
	"context"
	"errors"
	"testing"
)

func newTestKV(t *testing.T) *KVRepository {
	t.Helper()
	db, err := NewDB("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewKVRepository(db)
}

func TestKVRepository(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	t.Run("MissingKey", func(t *testing.T) {
		if _, err := kv.Get(ctx, "nope"); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("err = %v, want ErrKeyNotFound", err)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		if err := kv.Set(ctx, "timers", `[{"id":"a"}]`); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := kv.Get(ctx, "timers")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != `[{"id":"a"}]` {
			t.Errorf("value = %q", got)
		}
	})

	t.Run("OverwriteSameKey", func(t *testing.T) {
		if err := kv.Set(ctx, "timers", `[]`); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := kv.Get(ctx, "timers")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != `[]` {
			t.Errorf("value after overwrite = %q, want []", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := kv.Set(ctx, "tmp", "x"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := kv.Delete(ctx, "tmp"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := kv.Get(ctx, "tmp"); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("err = %v, want ErrKeyNotFound after delete", err)
		}
	})
}
