package structure

import (
	"hash/fnv"
	"math"
	"sync"
)

const (
	defaultFalseProb = 0.01
	maxBits          = 1 << 27
)

type BloomFilter struct {
	bitset []bool
	k      uint
	m      uint
	count  uint
	lock   sync.RWMutex
}

func NewBloomFilter(n uint, p float64) *BloomFilter {
	if n == 0 {
		n = 1
	}
	// p outside (0,1) makes the size formula infinite or negative
	if p <= 0 || p >= 1 {
		p = defaultFalseProb
	}
	// 理论最佳公式
	// m = - (n * ln(p)) / (ln(2)^2)
	// k = (m / n) * ln(2)
	m := uint(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m == 0 {
		m = 1
	}
	if m > maxBits {
		m = maxBits
	}
	k := uint(math.Ceil((float64(m) / float64(n)) * math.Ln2))
	if k == 0 {
		k = 1
	}

	return &BloomFilter{
		bitset: make([]bool, m),
		k:      k,
		m:      m,
	}
}

func (bf *BloomFilter) Add(key string) {
	bf.lock.Lock()
	defer bf.lock.Unlock()

	h1, h2 := hashes(key)
	for i := uint(0); i < bf.k; i++ {
		pos := (h1 + uint32(i)*h2) % uint32(bf.m)
		bf.bitset[pos] = true
	}
	bf.count++
}

// Contains never reports false for a key that was added.
func (bf *BloomFilter) Contains(key string) bool {
	bf.lock.RLock()
	defer bf.lock.RUnlock()

	h1, h2 := hashes(key)
	for i := uint(0); i < bf.k; i++ {
		pos := (h1 + uint32(i)*h2) % uint32(bf.m)
		if !bf.bitset[pos] {
			return false
		}
	}
	return true
}

func hashes(key string) (uint32, uint32) {
	h := fnv.New64a()
	h.Write([]byte(key))
	sum := h.Sum64()
	h1 := uint32(sum)
	h2 := uint32(sum >> 32)
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

func (bf *BloomFilter) Stats() map[string]interface{} {
	bf.lock.RLock()
	defer bf.lock.RUnlock()
	return map[string]interface{}{
		"bloom_bits_size": bf.m,
		"bloom_hashes":    bf.k,
		"bloom_count":     bf.count,
	}
}
