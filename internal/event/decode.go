package event

import (
	"encoding/json"
	"fmt"
)

// Decode rebuilds a typed event from a logged envelope payload. Used by
// startup replay to drive the core from the event log.
func Decode(kind Kind, payload []byte) (Event, error) {
	var evt Event
	switch kind {
	case KindTokenTransfer:
		evt = &TokenTransfer{}
	case KindPoolDeposit:
		evt = &PoolDeposit{}
	case KindPoolWithdraw:
		evt = &PoolWithdraw{}
	case KindPoolDepositChange:
		evt = &PoolDepositChange{}
	case KindCampaignDeposit:
		evt = &CampaignDeposit{}
	case KindCampaignWithdraw:
		evt = &CampaignWithdraw{}
	case KindCampaignEnd:
		evt = &CampaignEnd{}
	case KindGenesisClaim:
		evt = &GenesisClaim{}
	case KindTokenMint:
		evt = &TokenMint{}
	case KindTokenRedeem:
		evt = &TokenRedeem{}
	case KindBlockTick:
		evt = &BlockTick{}
	default:
		return nil, fmt.Errorf("decode: unknown event kind %d", kind)
	}
	if err := json.Unmarshal(payload, evt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return evt, nil
}
