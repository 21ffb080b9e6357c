package event

import "fmt"

// BlockTick is emitted by the upstream indexer for every processed block.
// It drives the watermark-gated daily revaluation sweep; most ticks are
// no-ops inside the core.
type BlockTick struct {
	Order     OrderKey
	Timestamp int64
}

func (e *BlockTick) EventKind() Kind { return KindBlockTick }

func (e *BlockTick) IdempotencyKey() string {
	return fmt.Sprintf("tick:%d", e.Order.BlockNumber)
}

func (e *BlockTick) OrderKey() OrderKey { return e.Order }
func (e *BlockTick) BlockTime() int64   { return e.Timestamp }
func (e *BlockTick) Partition() string  { return "global" }
