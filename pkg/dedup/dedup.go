// Package dedup drops repeated message deliveries. QoS 1 subscriptions can
// redeliver the same payload after a reconnect; callers hash the payload and
// ask Seen before processing.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type Deduper struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	expiry  map[string]time.Time
}

func New(ttl time.Duration, maxSize int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Deduper{ttl: ttl, maxSize: maxSize, expiry: make(map[string]time.Time, maxSize)}
}

// Seen reports whether id was already recorded within the TTL, recording it
// as a side effect when it was not.
func (d *Deduper) Seen(id string) bool {
	if id == "" {
		return false
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.expiry[id]; ok && now.Before(exp) {
		return true
	}
	d.expiry[id] = now.Add(d.ttl)
	if len(d.expiry) > d.maxSize {
		d.evict(now)
	}
	return false
}

// SeenPayload hashes a raw payload and applies Seen to the digest.
func (d *Deduper) SeenPayload(payload []byte) bool {
	h := sha256.Sum256(payload)
	return d.Seen(hex.EncodeToString(h[:]))
}

// Len returns the number of tracked ids, expired ones included.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.expiry)
}

// evict removes expired entries first, then arbitrary ones until the map
// fits. Caller holds the lock.
func (d *Deduper) evict(now time.Time) {
	for id, exp := range d.expiry {
		if now.After(exp) {
			delete(d.expiry, id)
		}
	}
	for id := range d.expiry {
		if len(d.expiry) <= d.maxSize {
			return
		}
		delete(d.expiry, id)
	}
}
