package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"launchforge/state"
)

// bridgeClient speaks JSON-RPC to the host node's AMM bridge. The AMM itself
// lives on the host; the daemon only instructs it and reads its reserves.
type bridgeClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
}

func newBridgeClient(baseURL string) (*bridgeClient, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("bridge URL required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge URL: %w", err)
	}
	return &bridgeClient{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		timeout:    30 * time.Second,
	}, nil
}

type bridgeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type bridgeResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *bridgeClient) call(method string, params interface{}, result interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	payload := bridgeRequest{JSONRPC: "2.0", Method: method, ID: 1}
	if params != nil {
		payload.Params = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge %s: %w", method, err)
	}
	defer resp.Body.Close()

	var decoded bridgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("bridge %s: decode response: %w", method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("bridge %s: %s (code %d)", method, decoded.Error.Message, decoded.Error.Code)
	}
	if result != nil {
		if err := json.Unmarshal(decoded.Result, result); err != nil {
			return fmt.Errorf("bridge %s: decode result: %w", method, err)
		}
	}
	return nil
}

func bridgeAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func bridgeAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func parseBridgeAmount(s string) (*uint256.Int, error) {
	if strings.TrimSpace(s) == "" {
		return uint256.NewInt(0), nil
	}
	return uint256.FromDecimal(strings.TrimSpace(s))
}

func parseBridgeAddress(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return addr, err
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("bridge returned %d-byte address", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// ledgerMirror applies the leg amounts the host AMM reports to the local
// ledgers, so reserve reads through the engine ports match the host pool.
type ledgerMirror struct {
	base      *state.BaseLedger
	tokens    *state.TokenLedger
	synthetic *state.SynthLedger

	pair     [20]byte
	wrapped  [20]byte
	contract [20]byte
	helper   [20]byte
	custody  [20]byte
}

func (m *ledgerMirror) moveWrapped(from, to [20]byte, amount *uint256.Int) error {
	return m.tokens.Transfer(m.wrapped, from, to, amount)
}

func (m *ledgerMirror) moveSynthetic(from, to [20]byte, amount *uint256.Int) error {
	return m.synthetic.Transfer(from, to, amount)
}

func (m *ledgerMirror) moveToken(token, from, to [20]byte, amount *uint256.Int) error {
	if token == m.contract {
		return m.moveSynthetic(from, to, amount)
	}
	return m.tokens.Transfer(token, from, to, amount)
}

// launchRouter adapts the bridge to the investment engine's router port.
type launchRouter struct {
	client *bridgeClient
	mirror *ledgerMirror
}

func (r *launchRouter) SwapExactTokensForBase(amountIn *uint256.Int, path [2][20]byte, deadline uint64) ([2]*uint256.Int, error) {
	var result struct {
		AmountIn  string `json:"amountIn"`
		AmountOut string `json:"amountOut"`
	}
	err := r.client.call("amm_swapExactTokensForBase", map[string]interface{}{
		"amountIn": bridgeAmount(amountIn),
		"path":     []string{bridgeAddress(path[0]), bridgeAddress(path[1])},
		"deadline": deadline,
	}, &result)
	if err != nil {
		return [2]*uint256.Int{}, err
	}
	in, err := parseBridgeAmount(result.AmountIn)
	if err != nil {
		return [2]*uint256.Int{}, err
	}
	out, err := parseBridgeAmount(result.AmountOut)
	if err != nil {
		return [2]*uint256.Int{}, err
	}
	// The swapped token leaves for the host pool; the base output arrives in
	// custody.
	if err := r.mirror.tokens.Burn(path[0], r.mirror.custody, in); err != nil {
		return [2]*uint256.Int{}, err
	}
	if err := r.mirror.base.Credit(r.mirror.custody, out); err != nil {
		return [2]*uint256.Int{}, err
	}
	return [2]*uint256.Int{in, out}, nil
}

func (r *launchRouter) AddLiquidity(tokenA, tokenB [20]byte, amountA, amountB, minA, minB *uint256.Int, to [20]byte, deadline uint64) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	var result struct {
		AmountA   string `json:"amountA"`
		AmountB   string `json:"amountB"`
		Liquidity string `json:"liquidity"`
	}
	err := r.client.call("amm_addLiquidity", map[string]interface{}{
		"tokenA":   bridgeAddress(tokenA),
		"tokenB":   bridgeAddress(tokenB),
		"amountA":  bridgeAmount(amountA),
		"amountB":  bridgeAmount(amountB),
		"minA":     bridgeAmount(minA),
		"minB":     bridgeAmount(minB),
		"to":       bridgeAddress(to),
		"deadline": deadline,
	}, &result)
	if err != nil {
		return nil, nil, nil, err
	}
	usedA, err := parseBridgeAmount(result.AmountA)
	if err != nil {
		return nil, nil, nil, err
	}
	usedB, err := parseBridgeAmount(result.AmountB)
	if err != nil {
		return nil, nil, nil, err
	}
	liquidity, err := parseBridgeAmount(result.Liquidity)
	if err != nil {
		return nil, nil, nil, err
	}
	return usedA, usedB, liquidity, nil
}

// pegRouter adapts the bridge to the peg engine's router port.
type pegRouter struct {
	client *bridgeClient
	pair   [20]byte
	mirror *ledgerMirror
}

func (r *pegRouter) AddLiquidity(amountWrapped, amountSynthetic, minWrapped, minSynthetic *uint256.Int, to [20]byte, deadline uint64) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	var result struct {
		AmountWrapped   string `json:"amountWrapped"`
		AmountSynthetic string `json:"amountSynthetic"`
		Liquidity       string `json:"liquidity"`
	}
	err := r.client.call("peg_addLiquidity", map[string]interface{}{
		"pair":            bridgeAddress(r.pair),
		"amountWrapped":   bridgeAmount(amountWrapped),
		"amountSynthetic": bridgeAmount(amountSynthetic),
		"minWrapped":      bridgeAmount(minWrapped),
		"minSynthetic":    bridgeAmount(minSynthetic),
		"to":              bridgeAddress(to),
		"deadline":        deadline,
	}, &result)
	if err != nil {
		return nil, nil, nil, err
	}
	usedWrapped, err := parseBridgeAmount(result.AmountWrapped)
	if err != nil {
		return nil, nil, nil, err
	}
	usedSynthetic, err := parseBridgeAmount(result.AmountSynthetic)
	if err != nil {
		return nil, nil, nil, err
	}
	liquidity, err := parseBridgeAmount(result.Liquidity)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := r.mirror.moveWrapped(r.mirror.contract, r.pair, usedWrapped); err != nil {
		return nil, nil, nil, err
	}
	if err := r.mirror.moveSynthetic(r.mirror.contract, r.pair, usedSynthetic); err != nil {
		return nil, nil, nil, err
	}
	return usedWrapped, usedSynthetic, liquidity, nil
}

func (r *pegRouter) RemoveLiquidity(liquidity *uint256.Int, deadline uint64) (*uint256.Int, *uint256.Int, error) {
	var result struct {
		AmountWrapped   string `json:"amountWrapped"`
		AmountSynthetic string `json:"amountSynthetic"`
	}
	err := r.client.call("peg_removeLiquidity", map[string]interface{}{
		"pair":      bridgeAddress(r.pair),
		"liquidity": bridgeAmount(liquidity),
		"deadline":  deadline,
	}, &result)
	if err != nil {
		return nil, nil, err
	}
	wrapped, err := parseBridgeAmount(result.AmountWrapped)
	if err != nil {
		return nil, nil, err
	}
	synthetic, err := parseBridgeAmount(result.AmountSynthetic)
	if err != nil {
		return nil, nil, err
	}
	if err := r.mirror.moveWrapped(r.pair, r.mirror.contract, wrapped); err != nil {
		return nil, nil, err
	}
	if err := r.mirror.moveSynthetic(r.pair, r.mirror.contract, synthetic); err != nil {
		return nil, nil, err
	}
	return wrapped, synthetic, nil
}

func (r *pegRouter) swap(method string, amountIn, minOut *uint256.Int, deadline uint64) (*uint256.Int, error) {
	var result struct {
		AmountOut string `json:"amountOut"`
	}
	err := r.client.call(method, map[string]interface{}{
		"pair":     bridgeAddress(r.pair),
		"amountIn": bridgeAmount(amountIn),
		"minOut":   bridgeAmount(minOut),
		"deadline": deadline,
	}, &result)
	if err != nil {
		return nil, err
	}
	return parseBridgeAmount(result.AmountOut)
}

func (r *pegRouter) SwapWrappedForSynthetic(amountIn, minOut *uint256.Int, deadline uint64) (*uint256.Int, error) {
	out, err := r.swap("peg_swapWrappedForSynthetic", amountIn, minOut, deadline)
	if err != nil {
		return nil, err
	}
	if err := r.mirror.moveWrapped(r.mirror.contract, r.pair, amountIn); err != nil {
		return nil, err
	}
	if err := r.mirror.moveSynthetic(r.pair, r.mirror.helper, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pegRouter) SwapSyntheticForWrapped(amountIn, minOut *uint256.Int, deadline uint64) (*uint256.Int, error) {
	out, err := r.swap("peg_swapSyntheticForWrapped", amountIn, minOut, deadline)
	if err != nil {
		return nil, err
	}
	if err := r.mirror.moveSynthetic(r.mirror.contract, r.pair, amountIn); err != nil {
		return nil, err
	}
	if err := r.mirror.moveWrapped(r.pair, r.mirror.helper, out); err != nil {
		return nil, err
	}
	return out, nil
}

// pegPair adapts the bridge to the peg engine's pair port.
type pegPair struct {
	client *bridgeClient
	pair   [20]byte
	mirror *ledgerMirror
}

func (p *pegPair) amountQuery(method string, params map[string]interface{}) (*uint256.Int, error) {
	var result struct {
		Amount string `json:"amount"`
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	params["pair"] = bridgeAddress(p.pair)
	if err := p.client.call(method, params, &result); err != nil {
		return nil, err
	}
	return parseBridgeAmount(result.Amount)
}

func (p *pegPair) TotalSupply() (*uint256.Int, error) {
	return p.amountQuery("pair_totalSupply", nil)
}

func (p *pegPair) LPBalance(holder [20]byte) (*uint256.Int, error) {
	return p.amountQuery("pair_lpBalance", map[string]interface{}{
		"holder": bridgeAddress(holder),
	})
}

func (p *pegPair) Skim(to [20]byte) error {
	var result struct {
		AmountWrapped   string `json:"amountWrapped"`
		AmountSynthetic string `json:"amountSynthetic"`
	}
	err := p.client.call("pair_skim", map[string]interface{}{
		"pair": bridgeAddress(p.pair),
		"to":   bridgeAddress(to),
	}, &result)
	if err != nil {
		return err
	}
	wrapped, err := parseBridgeAmount(result.AmountWrapped)
	if err != nil {
		return err
	}
	synthetic, err := parseBridgeAmount(result.AmountSynthetic)
	if err != nil {
		return err
	}
	if !wrapped.IsZero() {
		if err := p.mirror.moveWrapped(p.pair, to, wrapped); err != nil {
			return err
		}
	}
	if !synthetic.IsZero() {
		if err := p.mirror.moveSynthetic(p.pair, to, synthetic); err != nil {
			return err
		}
	}
	return nil
}

func (p *pegPair) TransferFrom(owner, recipient [20]byte, amount *uint256.Int) error {
	return p.client.call("pair_transferFrom", map[string]interface{}{
		"pair":      bridgeAddress(p.pair),
		"owner":     bridgeAddress(owner),
		"recipient": bridgeAddress(recipient),
		"amount":    bridgeAmount(amount),
	}, nil)
}

// pegHelper adapts the bridge to the transfer helper port.
type pegHelper struct {
	client *bridgeClient
	mirror *ledgerMirror
}

func (h *pegHelper) InvokerAddress() ([20]byte, error) {
	var result struct {
		Address string `json:"address"`
	}
	if err := h.client.call("helper_invoker", nil, &result); err != nil {
		return [20]byte{}, err
	}
	return parseBridgeAddress(result.Address)
}

func (h *pegHelper) ForwardFunds(token [20]byte, amount *uint256.Int) error {
	err := h.client.call("helper_forwardFunds", map[string]interface{}{
		"token":  bridgeAddress(token),
		"amount": bridgeAmount(amount),
	}, nil)
	if err != nil {
		return err
	}
	return h.mirror.moveToken(token, h.mirror.helper, h.mirror.contract, amount)
}

// pegFactory adapts the bridge to the pair factory port.
type pegFactory struct {
	client *bridgeClient
}

func (f *pegFactory) CreatePair(tokenA, tokenB, pair [20]byte) error {
	return f.client.call("factory_createPair", map[string]interface{}{
		"tokenA": bridgeAddress(tokenA),
		"tokenB": bridgeAddress(tokenB),
		"pair":   bridgeAddress(pair),
	}, nil)
}
