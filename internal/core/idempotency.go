package core

import "container/list"

// DBIdempotencyChecker is the Postgres-backed dedup lookup. The event log
// table is the durable tier; the LRU in front of it absorbs the hot path.
type DBIdempotencyChecker interface {
	IsDuplicate(idempotencyKey string) (bool, error)
}

// IdempotencyChecker deduplicates delta-carrying events with a two-tier
// lookup: an in-memory LRU and, on miss, the event log in Postgres.
//
// Balance events do not go through here. They re-read ground truth and are
// naturally idempotent; only events that apply deltas (campaign deposits
// and withdrawals, mints, redeems, campaign end) need dedup.
type IdempotencyChecker struct {
	lru *idempotencyLRU
	db  DBIdempotencyChecker

	lruHits  int64
	dbHits   int64
	dbErrors int64
}

func NewIdempotencyChecker(capacity int, db DBIdempotencyChecker) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru: newIdempotencyLRU(capacity),
		db:  db,
	}
}

// IsDuplicate reports whether the key was already processed. A failed DB
// lookup counts as "not a duplicate" so a database hiccup never blocks
// event processing; replay through the ledgers is safe regardless.
func (ic *IdempotencyChecker) IsDuplicate(key string) bool {
	if ic.lru.contains(key) {
		ic.lruHits++
		return true
	}
	if ic.db != nil {
		dup, err := ic.db.IsDuplicate(key)
		if err != nil {
			ic.dbErrors++
			return false
		}
		if dup {
			ic.dbHits++
			ic.lru.add(key)
			return true
		}
	}
	return false
}

// MarkProcessed records a key after its event was applied.
func (ic *IdempotencyChecker) MarkProcessed(key string) {
	ic.lru.add(key)
}

// Warm preloads recently persisted keys so a restart does not pay the DB
// cold path for every in-flight event.
func (ic *IdempotencyChecker) Warm(keys []string) {
	for _, key := range keys {
		ic.lru.add(key)
	}
}

// Size returns current LRU occupancy.
func (ic *IdempotencyChecker) Size() int { return ic.lru.size() }

// Evictions returns total LRU evictions.
func (ic *IdempotencyChecker) Evictions() int64 { return ic.lru.evictions }

// Stats returns tier hit counts for metrics export.
func (ic *IdempotencyChecker) Stats() (lruHits, dbHits, dbErrors int64) {
	return ic.lruHits, ic.dbHits, ic.dbErrors
}

// idempotencyLRU is not thread-safe; it is only touched from the
// single-writer core loop.
type idempotencyLRU struct {
	capacity  int
	cache     map[string]*list.Element
	order     *list.List
	evictions int64
}

func newIdempotencyLRU(capacity int) *idempotencyLRU {
	return &idempotencyLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (lru *idempotencyLRU) contains(key string) bool {
	elem, ok := lru.cache[key]
	if ok {
		lru.order.MoveToFront(elem)
	}
	return ok
}

func (lru *idempotencyLRU) add(key string) {
	if elem, ok := lru.cache[key]; ok {
		lru.order.MoveToFront(elem)
		return
	}
	lru.cache[key] = lru.order.PushFront(key)
	if lru.order.Len() > lru.capacity {
		back := lru.order.Back()
		lru.order.Remove(back)
		delete(lru.cache, back.Value.(string))
		lru.evictions++
	}
}

func (lru *idempotencyLRU) size() int { return lru.order.Len() }
