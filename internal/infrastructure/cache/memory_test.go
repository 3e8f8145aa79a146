package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreSetNX(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.SetNX(ctx, "k", []byte("a"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX ok=%v err=%v", ok, err)
	}
	ok, _ = s.SetNX(ctx, "k", []byte("b"), time.Minute)
	if ok {
		t.Fatalf("second SetNX should fail while key is held")
	}

	// wrong value does not release
	_ = s.DeleteIfEquals(ctx, "k", []byte("b"))
	if _, found, _ := s.Get(ctx, "k"); !found {
		t.Fatalf("key released by non-owner")
	}
	_ = s.DeleteIfEquals(ctx, "k", []byte("a"))
	if _, found, _ := s.Get(ctx, "k"); found {
		t.Fatalf("key not released by owner")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, "k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, found, _ := s.Get(ctx, "k"); found {
		t.Fatalf("expected key to expire")
	}
	ok, _ := s.SetNX(ctx, "k", []byte("v2"), time.Minute)
	if !ok {
		t.Fatalf("SetNX should succeed after expiry")
	}
}
