package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"

	"launchforge/native/synth"
	"launchforge/native/transformer"
)

type stubTransformer struct {
	contributions int
	settleErr     error
	redeemPayout  *uint256.Int
	funded        *uint256.Int
}

func stubAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func (s *stubTransformer) Contribute(_ [20]byte, _ *uint256.Int, _ uint8) error {
	s.contributions++
	return nil
}

func (s *stubTransformer) ContributeWithToken(_, _ [20]byte, _ *uint256.Int, _ uint8) error {
	s.contributions++
	return nil
}

func (s *stubTransformer) Settle() error { return s.settleErr }

func (s *stubTransformer) Redeem(_ [20]byte) (*uint256.Int, error) {
	return s.redeemPayout.Clone(), nil
}

func (s *stubTransformer) RequestRefund(_ [20]byte) (*uint256.Int, *uint256.Int, error) {
	return uint256.NewInt(2_000_000_000_000), uint256.MustFromDecimal("2640002000000000"), nil
}

func (s *stubTransformer) Fund(_ [20]byte, amount *uint256.Int) error {
	s.funded = amount.Clone()
	return nil
}

func (s *stubTransformer) Configure(_ [20]byte, _, _, _ [20]byte) error { return nil }

func (s *stubTransformer) RenounceKeeper(_ [20]byte) error { return nil }

func (s *stubTransformer) BuildSwapPath(token [20]byte) ([2][20]byte, error) {
	return [2][20]byte{token, stubAddr(0xAA)}, nil
}

func (s *stubTransformer) CurrentDay() uint64 { return 7 }

func (s *stubTransformer) CurrentPhase() (transformer.Phase, error) {
	return transformer.PhaseOpen, nil
}

func (s *stubTransformer) Globals() (*transformer.Globals, error) {
	return &transformer.Globals{
		TotalContributed: uint256.NewInt(2_000_000_000_000),
		TotalTokensSold:  uint256.MustFromDecimal("2640002000000000"),
		InvestorCount:    1,
		CashBackTotal:    uint256.NewInt(0),
	}, nil
}

func (s *stubTransformer) Investor(_ [20]byte) (*transformer.InvestorRecord, error) {
	return &transformer.InvestorRecord{
		Contributed:     uint256.NewInt(2_000_000_000_000),
		TokensPurchased: uint256.MustFromDecimal("2640002000000000"),
	}, nil
}

type stubSynth struct {
	depositErr error
	adminErr   error
	receives   int
}

func (s *stubSynth) Deposit(_ [20]byte, _ *uint256.Int) error { return s.depositErr }

func (s *stubSynth) Withdraw(_ [20]byte, _ *uint256.Int) error { return nil }

func (s *stubSynth) Receive(_ [20]byte, _ *uint256.Int) error {
	s.receives++
	return nil
}

func (s *stubSynth) DefineToken(_ [20]byte) error { return s.adminErr }

func (s *stubSynth) DefineHelper(_ [20]byte) error { return s.adminErr }

func (s *stubSynth) CreatePair(_, _ [20]byte) error { return s.adminErr }

func (s *stubSynth) RegisterTransformer(_, _ [20]byte) error { return s.adminErr }

func (s *stubSynth) AddLPTokens(_, _ [20]byte, _, _ *uint256.Int) error { return s.adminErr }

func (s *stubSynth) ForwardOwnership(_, _ [20]byte) error { return s.adminErr }

func (s *stubSynth) RenounceOwnership(_ [20]byte) error { return s.adminErr }

func (s *stubSynth) Evaluation() (*uint256.Int, error) {
	return uint256.NewInt(250_000), nil
}

func (s *stubSynth) CachedEvaluation() (*uint256.Int, error) {
	return uint256.NewInt(62_500), nil
}

func (s *stubSynth) LiquidityPercent() (*uint256.Int, error) {
	return uint256.NewInt(1_000_000_000_000), nil
}

func (s *stubSynth) PairReserves() (*uint256.Int, *uint256.Int, error) {
	return uint256.NewInt(500), uint256.NewInt(500), nil
}

func (s *stubSynth) Lifecycle() (*synth.Lifecycle, error) {
	return &synth.Lifecycle{AllowDeposit: true}, nil
}

func newTestServer(t *testing.T) (*Server, *stubTransformer, *stubSynth, *httptest.Server) {
	t.Helper()
	transformerStub := &stubTransformer{redeemPayout: uint256.MustFromDecimal("2640002000000000")}
	synthStub := &stubSynth{}
	server := NewServer(transformerStub, synthStub)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, transformerStub, synthStub, ts
}

func postRPC(t *testing.T, url, method string, params interface{}) (*http.Response, RPCResponse) {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"method":  method,
		"id":      1,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	var decoded RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestHandleRejectsEmptyBody(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	resp, decoded := postRPC(t, ts.URL, "launch_doesNotExist", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusNotFound)
	}
	if decoded.Error == nil || decoded.Error.Code != codeMethodNotFound {
		t.Fatalf("error: got %+v want code %d", decoded.Error, codeMethodNotFound)
	}
}

func TestLaunchContribute(t *testing.T) {
	_, transformerStub, _, ts := newTestServer(t)

	resp, decoded := postRPC(t, ts.URL, "launch_contribute", map[string]interface{}{
		"investor": "0x1111111111111111111111111111111111111111",
		"amount":   "2000000000000",
		"mode":     1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.Error != nil {
		t.Fatalf("unexpected error: %+v", decoded.Error)
	}
	if transformerStub.contributions != 1 {
		t.Fatalf("contributions: got %d want 1", transformerStub.contributions)
	}
}

func TestLaunchContributeRejectsBadAddress(t *testing.T) {
	_, transformerStub, _, ts := newTestServer(t)

	resp, decoded := postRPC(t, ts.URL, "launch_contribute", map[string]interface{}{
		"investor": "not-hex",
		"amount":   "2000000000000",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if decoded.Error == nil || decoded.Error.Code != codeLaunchInvalidParams {
		t.Fatalf("error: got %+v want code %d", decoded.Error, codeLaunchInvalidParams)
	}
	if transformerStub.contributions != 0 {
		t.Fatalf("contributions: got %d want 0", transformerStub.contributions)
	}
}

func TestLaunchSettleMapsPhaseError(t *testing.T) {
	_, transformerStub, _, ts := newTestServer(t)
	transformerStub.settleErr = transformer.ErrOngoingInvestmentPhase

	resp, decoded := postRPC(t, ts.URL, "launch_settle", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusConflict)
	}
	if decoded.Error == nil || decoded.Error.Code != codeLaunchWrongPhase {
		t.Fatalf("error: got %+v want code %d", decoded.Error, codeLaunchWrongPhase)
	}
}

func TestLaunchRedeemReturnsPayout(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	_, decoded := postRPC(t, ts.URL, "launch_redeem", map[string]interface{}{
		"address": "0x1111111111111111111111111111111111111111",
	})
	if decoded.Error != nil {
		t.Fatalf("unexpected error: %+v", decoded.Error)
	}
	result, ok := decoded.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result type: %T", decoded.Result)
	}
	if result["payout"] != "2640002000000000" {
		t.Fatalf("payout: got %v", result["payout"])
	}
}

func TestLaunchGlobals(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	_, decoded := postRPC(t, ts.URL, "launch_globals", nil)
	if decoded.Error != nil {
		t.Fatalf("unexpected error: %+v", decoded.Error)
	}
	result, ok := decoded.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result type: %T", decoded.Result)
	}
	if result["totalTokensSold"] != "2640002000000000" {
		t.Fatalf("totalTokensSold: got %v", result["totalTokensSold"])
	}
	if result["investorCount"] != float64(1) {
		t.Fatalf("investorCount: got %v", result["investorCount"])
	}
}

func TestLaunchPhase(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	_, decoded := postRPC(t, ts.URL, "launch_phase", nil)
	result, ok := decoded.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result type: %T", decoded.Result)
	}
	if result["phase"] != "open" {
		t.Fatalf("phase: got %v", result["phase"])
	}
}

func TestLaunchFund(t *testing.T) {
	_, transformerStub, _, ts := newTestServer(t)

	resp, decoded := postRPC(t, ts.URL, "launch_fund", map[string]interface{}{
		"from":   "0x0101010101010101010101010101010101010101",
		"amount": "20000000000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.Error != nil {
		t.Fatalf("unexpected error: %+v", decoded.Error)
	}
	if transformerStub.funded == nil || transformerStub.funded.Dec() != "20000000000" {
		t.Fatalf("funded: got %v want 20000000000", transformerStub.funded)
	}
}

func TestLaunchSwapPath(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	_, decoded := postRPC(t, ts.URL, "launch_swapPath", map[string]interface{}{
		"token": "0x7777777777777777777777777777777777777777",
	})
	if decoded.Error != nil {
		t.Fatalf("unexpected error: %+v", decoded.Error)
	}
	result, ok := decoded.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result type: %T", decoded.Result)
	}
	path, ok := result["path"].([]interface{})
	if !ok || len(path) != 2 {
		t.Fatalf("path: got %v", result["path"])
	}
	if path[0] != "0x7777777777777777777777777777777777777777" {
		t.Fatalf("path[0]: got %v", path[0])
	}
	if path[1] != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("path[1]: got %v", path[1])
	}
}

func TestSynthAdminMapsForbiddenError(t *testing.T) {
	_, _, synthStub, ts := newTestServer(t)
	synthStub.adminErr = synth.ErrNotMaster

	resp, decoded := postRPC(t, ts.URL, "synth_registerTransformer", map[string]interface{}{
		"caller":      "0x9999999999999999999999999999999999999999",
		"transformer": "0x0202020202020202020202020202020202020202",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusForbidden)
	}
	if decoded.Error == nil || decoded.Error.Code != codeSynthForbidden {
		t.Fatalf("error: got %+v want code %d", decoded.Error, codeSynthForbidden)
	}
}

func TestSynthReceive(t *testing.T) {
	_, _, synthStub, ts := newTestServer(t)

	resp, decoded := postRPC(t, ts.URL, "synth_receive", map[string]interface{}{
		"from":   "0x2222222222222222222222222222222222222222",
		"amount": "50",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.Error != nil {
		t.Fatalf("unexpected error: %+v", decoded.Error)
	}
	if synthStub.receives != 1 {
		t.Fatalf("receives: got %d want 1", synthStub.receives)
	}
}

func TestSynthDepositMapsDisabledError(t *testing.T) {
	_, _, synthStub, ts := newTestServer(t)
	synthStub.depositErr = synth.ErrDepositsDisabled

	resp, decoded := postRPC(t, ts.URL, "synth_deposit", map[string]interface{}{
		"from":   "0x2222222222222222222222222222222222222222",
		"amount": "100",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusConflict)
	}
	if decoded.Error == nil || decoded.Error.Code != codeSynthDisabled {
		t.Fatalf("error: got %+v want code %d", decoded.Error, codeSynthDisabled)
	}
}

func TestSynthQueries(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	_, decoded := postRPC(t, ts.URL, "synth_evaluation", nil)
	result, ok := decoded.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result type: %T", decoded.Result)
	}
	if result["evaluation"] != "250000" {
		t.Fatalf("evaluation: got %v", result["evaluation"])
	}

	_, decoded = postRPC(t, ts.URL, "synth_reserves", nil)
	result, ok = decoded.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result type: %T", decoded.Result)
	}
	if result["wrapped"] != "500" || result["synthetic"] != "500" {
		t.Fatalf("reserves: got %v", result)
	}

	_, decoded = postRPC(t, ts.URL, "synth_lifecycle", nil)
	result, ok = decoded.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result type: %T", decoded.Result)
	}
	if result["allowDeposit"] != true {
		t.Fatalf("allowDeposit: got %v", result["allowDeposit"])
	}
}

func TestAuthTokenGuardsMutations(t *testing.T) {
	transformerStub := &stubTransformer{redeemPayout: uint256.NewInt(0)}
	server := NewServer(transformerStub, &stubSynth{})
	server.authToken = "secret"
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	resp, decoded := postRPC(t, ts.URL, "launch_settle", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if decoded.Error == nil || decoded.Error.Code != codeUnauthorized {
		t.Fatalf("error: got %+v want code %d", decoded.Error, codeUnauthorized)
	}

	// Admin methods sit behind the same gate.
	resp, decoded = postRPC(t, ts.URL, "synth_defineToken", map[string]interface{}{
		"caller": "0x0101010101010101010101010101010101010101",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("admin status: got %d want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if decoded.Error == nil || decoded.Error.Code != codeUnauthorized {
		t.Fatalf("admin error: got %+v want code %d", decoded.Error, codeUnauthorized)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion, "method": "launch_settle", "id": 1,
	})
	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d want %d", authed.StatusCode, http.StatusOK)
	}

	// Queries stay open without a token.
	resp, _ = postRPC(t, ts.URL, "launch_currentDay", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query status: got %d want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestHealthz(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusOK)
	}
}
