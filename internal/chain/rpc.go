package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// balanceOf(address)
const balanceOfSelector = "0x70a08231"

// RPCReader reads balances through an Ethereum JSON-RPC endpoint using
// eth_call. Token balances use the ERC-20 balanceOf getter; pool deposits
// are tokenized shares, so pools answer balanceOf too.
type RPCReader struct {
	url    string
	client *http.Client
}

func NewRPCReader(url string) *RPCReader {
	return &RPCReader{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (r *RPCReader) TokenBalance(ctx context.Context, token, user string, block uint64) (decimal.Decimal, error) {
	return r.balanceOf(ctx, token, user, block)
}

func (r *RPCReader) PoolBalance(ctx context.Context, pool, user string, block uint64) (decimal.Decimal, error) {
	return r.balanceOf(ctx, pool, user, block)
}

func (r *RPCReader) balanceOf(ctx context.Context, contract, user string, block uint64) (decimal.Decimal, error) {
	data := balanceOfSelector + padAddress(user)
	result, err := EthCall(ctx, r.client, r.url, contract, data, block)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf %s/%s: %w", contract, user, err)
	}
	words, err := DecodeWords(result, 1)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf %s/%s: %w", contract, user, err)
	}
	return decimal.NewFromBigInt(words[0], 0), nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// EthCall performs a read-only contract call at the given block height.
// Block 0 means the head of the chain.
func EthCall(ctx context.Context, client *http.Client, url, to, data string, block uint64) (string, error) {
	blockParam := "latest"
	if block > 0 {
		blockParam = fmt.Sprintf("0x%x", block)
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params: []interface{}{
			map[string]string{"to": to, "data": data},
			blockParam,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode rpc response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}

// DecodeWords splits an eth_call result into 32-byte words.
func DecodeWords(result string, want int) ([]*big.Int, error) {
	hexData := strings.TrimPrefix(result, "0x")
	if len(hexData) < want*64 {
		return nil, fmt.Errorf("short return data: %d hex chars, want %d", len(hexData), want*64)
	}
	words := make([]*big.Int, want)
	for i := 0; i < want; i++ {
		w, ok := new(big.Int).SetString(hexData[i*64:(i+1)*64], 16)
		if !ok {
			return nil, fmt.Errorf("bad return word %d", i)
		}
		words[i] = w
	}
	return words, nil
}

var wordModulus = new(big.Int).Lsh(big.NewInt(1), 256)

// SignedWord reinterprets a 256-bit return word as a two's-complement
// signed integer. Aggregator answers are int256 and can go negative.
func SignedWord(w *big.Int) *big.Int {
	if w.Bit(255) == 0 {
		return w
	}
	return new(big.Int).Sub(w, wordModulus)
}

// padAddress left-pads a hex address to a 32-byte call argument. Oversized
// inputs keep their low-order bytes, matching ABI address truncation.
func padAddress(addr string) string {
	a := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	if len(a) >= 64 {
		return a[len(a)-64:]
	}
	return strings.Repeat("0", 64-len(a)) + a
}
