package event

// Kind discriminates event payloads.
type Kind int32

const (
	KindUnknown Kind = iota
	KindTokenTransfer
	KindPoolDeposit
	KindPoolWithdraw
	KindPoolDepositChange
	KindCampaignDeposit
	KindCampaignWithdraw
	KindCampaignEnd
	KindGenesisClaim
	KindTokenMint
	KindTokenRedeem
	KindBlockTick
)

// SourceKind classifies a reward source for accrual bookkeeping.
type SourceKind int32

const (
	SourceUnknown SourceKind = iota
	SourceTokenHolding
	SourcePoolDeposit
	SourceSailToken
)

// OrderKey is the total order assigned by the chain: (block number, log index).
// The upstream indexer delivers events in non-decreasing OrderKey order and
// replays the same keys after a reorganization.
type OrderKey struct {
	BlockNumber uint64
	LogIndex    uint32
}

// Before reports whether k precedes other in chain order.
func (k OrderKey) Before(other OrderKey) bool {
	if k.BlockNumber != other.BlockNumber {
		return k.BlockNumber < other.BlockNumber
	}
	return k.LogIndex < other.LogIndex
}

// Envelope wraps every event recorded in the log.
type Envelope struct {
	// Global monotonic sequence assigned by the core
	Sequence int64

	// Stable idempotency key derived from the chain position
	IdempotencyKey string

	Kind Kind

	// Chain position of the source log
	Order OrderKey

	// Block timestamp in unix seconds, never wall clock
	Timestamp int64

	// JSON-encoded event payload
	Payload []byte
}

// Event is the interface all chain event payloads implement.
type Event interface {
	// EventKind returns the discriminator.
	EventKind() Kind

	// IdempotencyKey returns the stable dedup key for this event.
	IdempotencyKey() string

	// OrderKey returns the chain position used for ordering validation.
	OrderKey() OrderKey

	// BlockTime returns the block timestamp in unix seconds.
	BlockTime() int64

	// Partition returns the ordering partition (contract address or "global").
	Partition() string
}

func (k Kind) String() string {
	switch k {
	case KindTokenTransfer:
		return "TokenTransfer"
	case KindPoolDeposit:
		return "PoolDeposit"
	case KindPoolWithdraw:
		return "PoolWithdraw"
	case KindPoolDepositChange:
		return "PoolDepositChange"
	case KindCampaignDeposit:
		return "CampaignDeposit"
	case KindCampaignWithdraw:
		return "CampaignWithdraw"
	case KindCampaignEnd:
		return "CampaignEnd"
	case KindGenesisClaim:
		return "GenesisClaim"
	case KindTokenMint:
		return "TokenMint"
	case KindTokenRedeem:
		return "TokenRedeem"
	case KindBlockTick:
		return "BlockTick"
	default:
		return "Unknown"
	}
}

func (sk SourceKind) String() string {
	switch sk {
	case SourceTokenHolding:
		return "token-holding"
	case SourcePoolDeposit:
		return "pool-deposit"
	case SourceSailToken:
		return "sail-token"
	default:
		return "unknown"
	}
}
