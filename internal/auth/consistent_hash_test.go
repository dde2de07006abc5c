package auth

import (
	"fmt"
	"testing"
)

func TestGetNodeStable(t *testing.T) {
	ring := NewConsistentHashRing([]string{"redis-a", "redis-b", "redis-c"}, 0)

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("token-%d", i)
		first := ring.GetNode(key)
		if first == "" {
			t.Fatalf("no node for key %s", key)
		}
		// 同一个 key 必须始终路由到同一节点
		for j := 0; j < 5; j++ {
			if got := ring.GetNode(key); got != first {
				t.Fatalf("key %s moved from %s to %s", key, first, got)
			}
		}
	}
}

func TestGetNodeFallbackNode(t *testing.T) {
	// 不给节点时生成默认节点，保证总能路由
	ring := NewConsistentHashRing(nil, 0)
	if got := ring.GetNode("any"); got == "" {
		t.Fatal("ring without nodes should still route to a fallback node")
	}
}

func TestAddNodeRemapsSubset(t *testing.T) {
	ring := NewConsistentHashRing([]string{"redis-a", "redis-b"}, 0)

	before := make(map[string]string)
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("token-%d", i)
		before[key] = ring.GetNode(key)
	}

	ring.Add("redis-c")

	moved := 0
	seenC := false
	for key, old := range before {
		now := ring.GetNode(key)
		if now != old {
			moved++
			// 一致性哈希下 key 只会迁往新节点
			if now != "redis-c" {
				t.Fatalf("key %s moved to existing node %s", key, now)
			}
		}
		if now == "redis-c" {
			seenC = true
		}
	}
	if !seenC {
		t.Fatal("new node received no keys")
	}
	if moved == len(before) {
		t.Fatal("adding one node must not remap every key")
	}
}
