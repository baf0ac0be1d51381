package cache

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyLocks serializes work on one key without a lock per key. Distinct keys
// may share a stripe; that only costs concurrency.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLocks) lock(namespace, key string) func() {
	h := fnv.New32a()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(key))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
