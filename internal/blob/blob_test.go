package blob

import (
	"context"
	"errors"
	"testing"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem store: %v", err)
	}
	return map[string]Store{"fs": fsStore, "memory": NewMemory()}
}

func TestPutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Put(ctx, "layout.json", []byte(`{"racks":{}}`)); err != nil {
				t.Fatalf("put: %v", err)
			}
			// Snapshots overwrite in place.
			if _, err := store.Put(ctx, "layout.json", []byte(`{"racks":{"Mix":{}}}`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			data, info, err := store.Get(ctx, "layout.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(data) != `{"racks":{"Mix":{}}}` {
				t.Fatalf("data = %s", data)
			}
			if info.Size != int64(len(data)) || info.ETag == "" {
				t.Fatalf("info = %+v", info)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := store.Get(ctx, "nope.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Put(ctx, "samples.json", []byte(`{}`)); err != nil {
				t.Fatalf("put: %v", err)
			}
			if ok, err := store.Delete(ctx, "samples.json"); err != nil || !ok {
				t.Fatalf("delete = (%v, %v)", ok, err)
			}
			if ok, err := store.Delete(ctx, "samples.json"); err != nil || ok {
				t.Fatalf("second delete = (%v, %v)", ok, err)
			}
		})
	}
}

func TestListPrefixOrdered(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"state/waste.json", "state/layout.json", "other.json"} {
				if _, err := store.Put(ctx, key, []byte(`{}`)); err != nil {
					t.Fatalf("put %s: %v", key, err)
				}
			}
			infos, err := store.List(ctx, "state/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(infos) != 2 {
				t.Fatalf("list count = %d, want 2", len(infos))
			}
			if infos[0].Key != "state/layout.json" || infos[1].Key != "state/waste.json" {
				t.Fatalf("order = %s, %s", infos[0].Key, infos[1].Key)
			}
		})
	}
}

func TestKeySanitization(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", "/abs.json", "../escape.json"} {
				if _, err := store.Put(ctx, bad, []byte(`{}`)); err == nil {
					t.Fatalf("key %q accepted", bad)
				}
			}
		})
	}
}
