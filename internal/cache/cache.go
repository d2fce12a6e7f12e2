// Package cache stores encoded ranking responses keyed by a digest of the
// request, in memory or in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/sawpanic/topsisrun/internal/topsis"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "topsis:rank:"

// Cache is a byte-value store with per-entry TTL. A miss returns
// found=false with a nil error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Key derives a deterministic key from everything that affects a ranking:
// headers, labels, criteria values, weights, impacts and policy.
func Key(headers, labels []string, values []float64, weights []float64, impacts []topsis.Impact, policy topsis.DegeneratePolicy) string {
	h := sha256.New()
	var buf [8]byte

	writeStrings := func(ss []string) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(ss)))
		h.Write(buf[:])
		for _, s := range ss {
			binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
			h.Write(buf[:])
			h.Write([]byte(s))
		}
	}
	writeFloats := func(fs []float64) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(fs)))
		h.Write(buf[:])
		for _, f := range fs {
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
			h.Write(buf[:])
		}
	}

	writeStrings(headers)
	writeStrings(labels)
	writeFloats(values)
	writeFloats(weights)
	h.Write([]byte(topsis.FormatImpacts(impacts)))
	h.Write([]byte{0})
	h.Write([]byte(policy))

	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

const (
	memoryMaxEntries = 10000
	sweepInterval    = time.Minute
)

type memory struct {
	mu        sync.Mutex
	m         map[string]entry
	max       int
	nextSweep time.Time
	now       func() time.Time
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory returns a process-local cache holding at most 10000 entries.
// Expired entries are swept on Set at most once a minute, or whenever the
// cache is full.
func NewMemory() Cache {
	return newMemory(memoryMaxEntries, time.Now)
}

func newMemory(maxEntries int, now func() time.Time) *memory {
	return &memory{m: make(map[string]entry), max: maxEntries, now: now}
}

func (c *memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		delete(c.m, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.b...), true, nil
}

func (c *memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	_, exists := c.m[key]
	full := !exists && c.max > 0 && len(c.m) >= c.max
	if full || !now.Before(c.nextSweep) {
		c.sweep(now)
	}
	if !exists && c.max > 0 && len(c.m) >= c.max {
		// still full of live entries: drop an arbitrary one
		for k := range c.m {
			delete(c.m, k)
			break
		}
	}

	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = now.Add(ttl)
	}
	c.m[key] = e
	return nil
}

func (c *memory) sweep(now time.Time) {
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
		}
	}
	c.nextSweep = now.Add(sweepInterval)
}
