package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPersistHooks{}
	p.OnSave("prices.lgc", 12, time.Second, nil)
	p.OnLoad("prices.lgc", 0, time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "batch")
	c.OnCacheMiss(ctx, "batch")
	c.OnCacheSet(ctx, "batch", 1024)

	f := NoopFetchHooks{}
	f.OnBatchStart(ctx, 0, 8)
	f.OnBatchComplete(ctx, 0, 250, false, time.Second, nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Persist().(NoopPersistHooks); !ok {
		t.Error("Persist() should return NoopPersistHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := Fetch().(NoopFetchHooks); !ok {
		t.Error("Fetch() should return NoopFetchHooks by default")
	}

	customPersist := &testPersistHooks{}
	SetPersistHooks(customPersist)
	if Persist() != customPersist {
		t.Error("SetPersistHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customFetch := &testFetchHooks{}
	SetFetchHooks(customFetch)
	if Fetch() != customFetch {
		t.Error("SetFetchHooks should set custom hooks")
	}

	Reset()
	if _, ok := Persist().(NoopPersistHooks); !ok {
		t.Error("Reset() should restore NoopPersistHooks")
	}
	if _, ok := Fetch().(NoopFetchHooks); !ok {
		t.Error("Reset() should restore NoopFetchHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	custom := &testPersistHooks{}
	SetPersistHooks(custom)
	SetPersistHooks(nil)

	if Persist() != custom {
		t.Error("SetPersistHooks(nil) should be ignored")
	}
}

type testPersistHooks struct{ NoopPersistHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testFetchHooks struct{ NoopFetchHooks }
