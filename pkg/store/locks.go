package store

import (
	"hash/fnv"
	"sync"
)

// keyLocks serializes read-modify-write cycles per document key. The
// store is embedded and single-process, so striped in-process mutexes
// are sufficient to prevent lost updates between concurrent requests.
const lockStripes = 128

var keyLocks [lockStripes]sync.Mutex

func lockKey(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &keyLocks[h.Sum32()%lockStripes]
}

// withKeyLock runs fn while holding the stripe lock for key.
func withKeyLock(key string, fn func() error) error {
	mu := lockKey(key)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}
