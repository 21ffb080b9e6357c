package oracle

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/baofinance/harbor-app-sub003/internal/chain"
	"github.com/baofinance/harbor-app-sub003/internal/market"
)

const (
	// latestAnswer()
	scalarSelector = "0x50d25bcd"
	// getPrice()
	wrappedSelector = "0x98d5fdca"

	// Aggregator answers quote 8 decimals, wrapped tuples 18.
	scalarFeedDecimals  = -8
	wrappedFeedDecimals = -18
)

// RPCSource reads price feeds through an Ethereum JSON-RPC endpoint. The
// decode shape per oracle address comes from the market registry; block
// times are mapped to "latest" since feeds are only read at the head or
// during a sweep.
type RPCSource struct {
	url    string
	client *http.Client
	kinds  map[string]market.OracleKind
}

func NewRPCSource(url string, reg *market.Registry) *RPCSource {
	kinds := make(map[string]market.OracleKind)
	for _, m := range reg.Markets() {
		if m.OracleAddress != "" {
			kinds[m.OracleAddress] = m.OracleKind
		}
	}
	// Peg conversion feeds are plain aggregators.
	for _, addr := range reg.PegFeeds() {
		kinds[addr] = market.OracleScalar
	}
	return &RPCSource{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		kinds: kinds,
	}
}

func (s *RPCSource) Read(ctx context.Context, oracleAddr string, _ int64) (Reading, error) {
	kind, ok := s.kinds[oracleAddr]
	if !ok {
		return Reading{}, fmt.Errorf("oracle: unconfigured feed %s", oracleAddr)
	}

	switch kind {
	case market.OracleScalar:
		result, err := chain.EthCall(ctx, s.client, s.url, oracleAddr, scalarSelector, 0)
		if err != nil {
			return Reading{}, ErrUnavailable
		}
		words, err := chain.DecodeWords(result, 1)
		if err != nil {
			return Reading{}, fmt.Errorf("oracle %s: %w", oracleAddr, err)
		}
		return Reading{
			Kind:  market.OracleScalar,
			Price: decimal.NewFromBigInt(chain.SignedWord(words[0]), scalarFeedDecimals),
		}, nil

	case market.OracleWrappedTuple:
		result, err := chain.EthCall(ctx, s.client, s.url, oracleAddr, wrappedSelector, 0)
		if err != nil {
			return Reading{}, ErrUnavailable
		}
		words, err := chain.DecodeWords(result, 4)
		if err != nil {
			return Reading{}, fmt.Errorf("oracle %s: %w", oracleAddr, err)
		}
		return Reading{
			Kind:          market.OracleWrappedTuple,
			MinUnderlying: decimal.NewFromBigInt(words[0], wrappedFeedDecimals),
			MaxUnderlying: decimal.NewFromBigInt(words[1], wrappedFeedDecimals),
			MinRate:       decimal.NewFromBigInt(words[2], wrappedFeedDecimals),
			MaxRate:       decimal.NewFromBigInt(words[3], wrappedFeedDecimals),
		}, nil
	}
	return Reading{}, fmt.Errorf("oracle %s: unknown kind %q", oracleAddr, kind)
}
