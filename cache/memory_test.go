package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testEntry(data string) Entry {
	return Entry{
		Endpoint:  "https://gateway.thegraph.com/api/k/subgraphs/id/s",
		Operation: "{ a }",
		Data:      json.RawMessage(data),
		Variables: json.RawMessage(`{}`),
	}
}

// storeContract runs the behavior every Store must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	got, ok, err := store.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get(missing) error = %v", err)
	}
	if ok || got != nil {
		t.Fatalf("Get(missing) = %v, %v; want miss", got, ok)
	}

	if err := store.Set(ctx, "k", testEntry(`{"data":{"a":1}}`), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err = store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = %v, %v; want hit", ok, err)
	}
	if string(got.Data) != `{"data":{"a":1}}` {
		t.Errorf("Data = %s", got.Data)
	}
	if got.Endpoint != testEntry("1").Endpoint || got.Operation != "{ a }" || string(got.Variables) != `{}` {
		t.Errorf("entry not reproduced: %+v", got)
	}

	// Last writer wins.
	if err := store.Set(ctx, "k", testEntry(`{"data":{"a":2}}`), time.Minute); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, ok, _ = store.Get(ctx, "k")
	if !ok || string(got.Data) != `{"data":{"a":2}}` {
		t.Errorf("overwrite not visible: %v %+v", ok, got)
	}

	// Zero TTL is not stored.
	if err := store.Set(ctx, "zero", testEntry(`1`), 0); err != nil {
		t.Fatalf("Set(ttl=0) error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "zero"); ok {
		t.Error("Set with zero TTL should not store")
	}

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Set(ctx, "k", testEntry(`1`), 5*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	now = now.Add(5*time.Minute - time.Millisecond)
	if _, ok, _ := store.Get(ctx, "k"); !ok {
		t.Fatal("entry should be live before TTL")
	}

	now = now.Add(time.Millisecond)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("entry should be absent at TTL")
	}
	if store.Len() != 0 {
		t.Errorf("expired entry not collected, Len() = %d", store.Len())
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Set(ctx, "k", testEntry(`{"x":1}`), time.Minute)

	first, _, _ := store.Get(ctx, "k")
	first.Data[2] = 'y'

	second, _, _ := store.Get(ctx, "k")
	if string(second.Data) != `{"x":1}` {
		t.Errorf("store shared memory with caller: %s", second.Data)
	}
}

func TestMemoryStore_ContextCancellation(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
	if err := store.Set(ctx, "k", testEntry(`1`), time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("Set() error = %v, want context.Canceled", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const numGoroutines = 50
	const opsPerGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				key := fmt.Sprintf("key-%d", j%10)
				if j%2 == 0 {
					_ = store.Set(ctx, key, testEntry(fmt.Sprintf(`%d`, id)), time.Minute)
				} else {
					_, _, _ = store.Get(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestMemoryStore_Close(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Set(context.Background(), "k", testEntry(`1`), time.Minute)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() after Close = %d", store.Len())
	}
}
