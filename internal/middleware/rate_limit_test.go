package middleware

import "testing"

func TestTokenBucketDrains(t *testing.T) {
	tb := NewTokenBucket(5, 1)

	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d within capacity should pass", i)
		}
	}
	if tb.Allow() {
		t.Fatal("request beyond capacity should be limited")
	}
}

func TestTokenBucketEmptyDenies(t *testing.T) {
	tb := NewTokenBucket(0, 0)
	if tb.Allow() {
		t.Fatal("bucket without capacity must deny")
	}
}
