package auth

import (
	"hash/crc32"
	"sort"
	"strconv"
	"sync"
)

// ConsistentHashRing 一致性哈希环。token 缓存按节点分桶时用它选桶，
// 增减节点只迁移落在新节点区间内的 key。
type ConsistentHashRing struct {
	mu       sync.RWMutex
	replicas int
	keys     []int          // 已排序的虚拟节点哈希
	owners   map[int]string // 虚拟节点哈希 -> 真实节点
	nodes    map[string]struct{}
}

// NewConsistentHashRing 构建哈希环。replicas <= 0 时取 50；
// nodes 为空时落到内置兜底节点，保证 GetNode 总有结果。
func NewConsistentHashRing(nodes []string, replicas int) *ConsistentHashRing {
	if replicas <= 0 {
		replicas = 50
	}
	if len(nodes) == 0 {
		nodes = []string{"auth-node-default"}
	}
	r := &ConsistentHashRing{
		replicas: replicas,
		owners:   make(map[int]string),
		nodes:    make(map[string]struct{}),
	}
	r.Add(nodes...)
	return r
}

// Add 注册节点并生成其虚拟节点，重复注册会被忽略
func (r *ConsistentHashRing) Add(nodes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, node := range nodes {
		if _, ok := r.nodes[node]; ok {
			continue
		}
		r.nodes[node] = struct{}{}
		for i := 0; i < r.replicas; i++ {
			h := int(crc32.ChecksumIEEE([]byte(node + "#" + strconv.Itoa(i))))
			r.keys = append(r.keys, h)
			r.owners[h] = node
		}
	}
	sort.Ints(r.keys)
}

// GetNode 返回 key 顺时针方向第一个虚拟节点所属的真实节点
func (r *ConsistentHashRing) GetNode(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.keys) == 0 {
		return ""
	}
	h := int(crc32.ChecksumIEEE([]byte(key)))
	idx := sort.Search(len(r.keys), func(i int) bool { return r.keys[i] >= h })
	if idx == len(r.keys) {
		// 越过环尾回绕到起点
		idx = 0
	}
	return r.owners[r.keys[idx]]
}
