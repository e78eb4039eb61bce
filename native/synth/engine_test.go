package synth

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"launchforge/core/events"
)

// world wires every port against a single shared mock pool so the pipeline
// tests exercise realistic balance movements.
type world struct {
	t     *testing.T
	calls []string

	synthBal map[[20]byte]*uint256.Int
	wrapBal  map[[20]byte]*uint256.Int
	payouts  map[[20]byte]*uint256.Int
	vault    *uint256.Int

	lpBal   map[[20]byte]*uint256.Int
	lpTotal *uint256.Int

	selfAddr    [20]byte
	pairAddr    [20]byte
	wrappedAddr [20]byte
	helperAddr  [20]byte
	invoker     [20]byte
	synthetic   [20]byte

	lifecycle *Lifecycle
	settings  *Settings
	eval      *uint256.Int

	failPay bool

	emitted []string
}

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func balOf(m map[[20]byte]*uint256.Int, key [20]byte) *uint256.Int {
	if v, ok := m[key]; ok {
		return v
	}
	zero := u(0)
	m[key] = zero
	return zero
}

func newWorld(t *testing.T) (*world, *Engine) {
	w := &world{
		t:           t,
		synthBal:    make(map[[20]byte]*uint256.Int),
		wrapBal:     make(map[[20]byte]*uint256.Int),
		payouts:     make(map[[20]byte]*uint256.Int),
		vault:       u(0),
		lpBal:       make(map[[20]byte]*uint256.Int),
		lpTotal:     u(0),
		selfAddr:    addr(0xCC),
		pairAddr:    addr(0xBB),
		wrappedAddr: addr(0xAA),
		helperAddr:  addr(0x03),
		eval:        u(0),
	}
	w.invoker = w.selfAddr
	w.synthetic = w.selfAddr
	w.lifecycle = &Lifecycle{Master: addr(0x01)}
	w.settings = &Settings{
		Pair:         w.pairAddr,
		WrappedToken: w.wrappedAddr,
		Transformer:  addr(0x02),
	}

	engine := NewEngine()
	engine.SetState((*mockSynthState)(w))
	engine.SetLedger((*mockLedger)(w))
	engine.SetWrapped((*mockWrapped)(w))
	engine.SetPair((*mockPair)(w))
	engine.SetRouter((*mockSynthRouter)(w))
	engine.SetVault((*mockVault)(w))
	engine.SetHelper((*mockHelper)(w))
	engine.SetFactory((*mockFactory)(w))
	engine.SetRegistry((*mockRegistry)(w))
	engine.SetEmitter((*mockEmitter)(w))
	engine.SetContractAddress(w.selfAddr)
	engine.SetNowFunc(func() int64 { return 1_000 })
	return w, engine
}

func (w *world) record(call string) { w.calls = append(w.calls, call) }

// seedPool sets up the pair with the given reserves, fully owned by the
// engine at the given LP supply.
func (w *world) seedPool(wrapped, synthetic, lpSupply uint64) {
	w.wrapBal[w.pairAddr] = u(wrapped)
	w.synthBal[w.pairAddr] = u(synthetic)
	w.lpTotal = u(lpSupply)
	w.lpBal[w.selfAddr] = u(lpSupply)
	w.lifecycle.AllowDeposit = true
}

type mockSynthState world

func (m *mockSynthState) LifecycleGet() (*Lifecycle, error) { return m.lifecycle.Clone(), nil }
func (m *mockSynthState) LifecyclePut(l *Lifecycle) error {
	m.lifecycle = l.Clone()
	return nil
}
func (m *mockSynthState) SettingsGet() (*Settings, error) { return m.settings.Clone(), nil }
func (m *mockSynthState) SettingsPut(s *Settings) error {
	m.settings = s.Clone()
	return nil
}
func (m *mockSynthState) EvaluationGet() (*uint256.Int, error) { return new(uint256.Int).Set(m.eval), nil }
func (m *mockSynthState) EvaluationPut(v *uint256.Int) error {
	(*world)(m).record("evalput")
	m.eval = new(uint256.Int).Set(v)
	return nil
}

type mockLedger world

func (m *mockLedger) Mint(to [20]byte, amount *uint256.Int) error {
	(*world)(m).record("mint")
	bal := balOf(m.synthBal, to)
	m.synthBal[to] = new(uint256.Int).Add(bal, amount)
	return nil
}

func (m *mockLedger) Burn(from [20]byte, amount *uint256.Int) error {
	(*world)(m).record("burn")
	bal := balOf(m.synthBal, from)
	if bal.Lt(amount) {
		return errors.New("ledger: burn exceeds balance")
	}
	m.synthBal[from] = new(uint256.Int).Sub(bal, amount)
	return nil
}

func (m *mockLedger) BalanceOf(holder [20]byte) (*uint256.Int, error) {
	return new(uint256.Int).Set(balOf(m.synthBal, holder)), nil
}

type mockWrapped world

func (m *mockWrapped) BalanceOf(holder [20]byte) (*uint256.Int, error) {
	return new(uint256.Int).Set(balOf(m.wrapBal, holder)), nil
}

func (m *mockWrapped) Deposit(amount *uint256.Int) error {
	(*world)(m).record("wrap")
	if m.vault.Lt(amount) {
		return errors.New("wrapped: vault underfunded")
	}
	m.vault = new(uint256.Int).Sub(m.vault, amount)
	bal := balOf(m.wrapBal, m.selfAddr)
	m.wrapBal[m.selfAddr] = new(uint256.Int).Add(bal, amount)
	return nil
}

func (m *mockWrapped) Withdraw(amount *uint256.Int) error {
	(*world)(m).record("unwrap")
	bal := balOf(m.wrapBal, m.selfAddr)
	if bal.Lt(amount) {
		return errors.New("wrapped: balance underfunded")
	}
	m.wrapBal[m.selfAddr] = new(uint256.Int).Sub(bal, amount)
	m.vault = new(uint256.Int).Add(m.vault, amount)
	return nil
}

type mockPair world

func (m *mockPair) TotalSupply() (*uint256.Int, error) {
	return new(uint256.Int).Set(m.lpTotal), nil
}

func (m *mockPair) LPBalance(holder [20]byte) (*uint256.Int, error) {
	return new(uint256.Int).Set(balOf(m.lpBal, holder)), nil
}

func (m *mockPair) Skim(to [20]byte) error {
	(*world)(m).record("skim")
	return nil
}

func (m *mockPair) TransferFrom(owner, recipient [20]byte, amount *uint256.Int) error {
	bal := balOf(m.lpBal, owner)
	if bal.Lt(amount) {
		return errors.New("pair: transfer exceeds balance")
	}
	m.lpBal[owner] = new(uint256.Int).Sub(bal, amount)
	m.lpBal[recipient] = new(uint256.Int).Add(balOf(m.lpBal, recipient), amount)
	return nil
}

type mockSynthRouter world

func (m *mockSynthRouter) AddLiquidity(amountWrapped, amountSynthetic, minWrapped, minSynthetic *uint256.Int, to [20]byte, deadline uint64) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	(*world)(m).record("add")
	w := (*world)(m)
	reserveW := balOf(w.wrapBal, w.pairAddr)
	reserveS := balOf(w.synthBal, w.pairAddr)

	wrappedUsed := new(uint256.Int).Set(amountWrapped)
	var syntheticUsed, liquidity *uint256.Int
	if w.lpTotal.IsZero() {
		syntheticUsed = new(uint256.Int).Set(amountSynthetic)
		liquidity = new(uint256.Int).Sqrt(new(uint256.Int).Mul(wrappedUsed, syntheticUsed))
	} else {
		syntheticUsed = new(uint256.Int).Div(new(uint256.Int).Mul(wrappedUsed, reserveS), reserveW)
		liquidity = new(uint256.Int).Div(new(uint256.Int).Mul(w.lpTotal, wrappedUsed), reserveW)
	}

	selfWrap := balOf(w.wrapBal, w.selfAddr)
	if selfWrap.Lt(wrappedUsed) {
		return nil, nil, nil, errors.New("router: wrapped leg underfunded")
	}
	selfSynth := balOf(w.synthBal, w.selfAddr)
	if selfSynth.Lt(syntheticUsed) {
		return nil, nil, nil, errors.New("router: synthetic leg underfunded")
	}
	w.wrapBal[w.selfAddr] = new(uint256.Int).Sub(selfWrap, wrappedUsed)
	w.synthBal[w.selfAddr] = new(uint256.Int).Sub(selfSynth, syntheticUsed)
	w.wrapBal[w.pairAddr] = new(uint256.Int).Add(reserveW, wrappedUsed)
	w.synthBal[w.pairAddr] = new(uint256.Int).Add(reserveS, syntheticUsed)
	w.lpTotal = new(uint256.Int).Add(w.lpTotal, liquidity)
	w.lpBal[to] = new(uint256.Int).Add(balOf(w.lpBal, to), liquidity)
	return wrappedUsed, syntheticUsed, liquidity, nil
}

func (m *mockSynthRouter) RemoveLiquidity(liquidity *uint256.Int, deadline uint64) (*uint256.Int, *uint256.Int, error) {
	(*world)(m).record("remove")
	w := (*world)(m)
	held := balOf(w.lpBal, w.selfAddr)
	if held.Lt(liquidity) || w.lpTotal.Lt(liquidity) {
		return nil, nil, errors.New("router: liquidity exceeds holding")
	}
	reserveW := balOf(w.wrapBal, w.pairAddr)
	reserveS := balOf(w.synthBal, w.pairAddr)
	outW := new(uint256.Int).Div(new(uint256.Int).Mul(reserveW, liquidity), w.lpTotal)
	outS := new(uint256.Int).Div(new(uint256.Int).Mul(reserveS, liquidity), w.lpTotal)

	w.lpBal[w.selfAddr] = new(uint256.Int).Sub(held, liquidity)
	w.lpTotal = new(uint256.Int).Sub(w.lpTotal, liquidity)
	w.wrapBal[w.pairAddr] = new(uint256.Int).Sub(reserveW, outW)
	w.synthBal[w.pairAddr] = new(uint256.Int).Sub(reserveS, outS)
	w.wrapBal[w.selfAddr] = new(uint256.Int).Add(balOf(w.wrapBal, w.selfAddr), outW)
	w.synthBal[w.selfAddr] = new(uint256.Int).Add(balOf(w.synthBal, w.selfAddr), outS)
	return outW, outS, nil
}

func (m *mockSynthRouter) SwapWrappedForSynthetic(amountIn, minOut *uint256.Int, deadline uint64) (*uint256.Int, error) {
	(*world)(m).record("swapWrapped")
	w := (*world)(m)
	selfWrap := balOf(w.wrapBal, w.selfAddr)
	if selfWrap.Lt(amountIn) {
		return nil, errors.New("router: swap input underfunded")
	}
	reserveW := balOf(w.wrapBal, w.pairAddr)
	reserveS := balOf(w.synthBal, w.pairAddr)
	out := new(uint256.Int).Div(
		new(uint256.Int).Mul(reserveS, amountIn),
		new(uint256.Int).Add(reserveW, amountIn),
	)
	if out.Lt(minOut) {
		return nil, errors.New("router: insufficient output")
	}
	w.wrapBal[w.selfAddr] = new(uint256.Int).Sub(selfWrap, amountIn)
	w.wrapBal[w.pairAddr] = new(uint256.Int).Add(reserveW, amountIn)
	w.synthBal[w.pairAddr] = new(uint256.Int).Sub(reserveS, out)
	w.synthBal[w.helperAddr] = new(uint256.Int).Add(balOf(w.synthBal, w.helperAddr), out)
	return out, nil
}

func (m *mockSynthRouter) SwapSyntheticForWrapped(amountIn, minOut *uint256.Int, deadline uint64) (*uint256.Int, error) {
	(*world)(m).record("swapSynthetic")
	w := (*world)(m)
	selfSynth := balOf(w.synthBal, w.selfAddr)
	if selfSynth.Lt(amountIn) {
		return nil, errors.New("router: swap input underfunded")
	}
	reserveW := balOf(w.wrapBal, w.pairAddr)
	reserveS := balOf(w.synthBal, w.pairAddr)
	out := new(uint256.Int).Div(
		new(uint256.Int).Mul(reserveW, amountIn),
		new(uint256.Int).Add(reserveS, amountIn),
	)
	if out.Lt(minOut) {
		return nil, errors.New("router: insufficient output")
	}
	w.synthBal[w.selfAddr] = new(uint256.Int).Sub(selfSynth, amountIn)
	w.synthBal[w.pairAddr] = new(uint256.Int).Add(reserveS, amountIn)
	w.wrapBal[w.pairAddr] = new(uint256.Int).Sub(reserveW, out)
	w.wrapBal[w.helperAddr] = new(uint256.Int).Add(balOf(w.wrapBal, w.helperAddr), out)
	return out, nil
}

type mockVault world

func (m *mockVault) Balance() (*uint256.Int, error) {
	return new(uint256.Int).Set(m.vault), nil
}

func (m *mockVault) Credit(from [20]byte, amount *uint256.Int) error {
	(*world)(m).record("credit")
	m.vault = new(uint256.Int).Add(m.vault, amount)
	return nil
}

func (m *mockVault) Pay(to [20]byte, amount *uint256.Int) error {
	(*world)(m).record("pay")
	if m.failPay {
		return errors.New("vault: payout refused")
	}
	if m.vault.Lt(amount) {
		return errors.New("vault: underfunded")
	}
	m.vault = new(uint256.Int).Sub(m.vault, amount)
	m.payouts[to] = new(uint256.Int).Add(balOf(m.payouts, to), amount)
	return nil
}

type mockHelper world

func (m *mockHelper) InvokerAddress() ([20]byte, error) { return m.invoker, nil }

func (m *mockHelper) ForwardFunds(token [20]byte, amount *uint256.Int) error {
	(*world)(m).record("forward")
	w := (*world)(m)
	if token == w.wrappedAddr {
		held := balOf(w.wrapBal, w.helperAddr)
		if held.Lt(amount) {
			return errors.New("helper: wrapped underfunded")
		}
		w.wrapBal[w.helperAddr] = new(uint256.Int).Sub(held, amount)
		w.wrapBal[w.selfAddr] = new(uint256.Int).Add(balOf(w.wrapBal, w.selfAddr), amount)
		return nil
	}
	held := balOf(w.synthBal, w.helperAddr)
	if held.Lt(amount) {
		return errors.New("helper: synthetic underfunded")
	}
	w.synthBal[w.helperAddr] = new(uint256.Int).Sub(held, amount)
	w.synthBal[w.selfAddr] = new(uint256.Int).Add(balOf(w.synthBal, w.selfAddr), amount)
	return nil
}

type mockFactory world

func (m *mockFactory) CreatePair(tokenA, tokenB, pair [20]byte) error {
	(*world)(m).record("createpair")
	return nil
}

type mockRegistry world

func (m *mockRegistry) SyntheticAddress() ([20]byte, error) { return m.synthetic, nil }

type mockEmitter world

func (m *mockEmitter) Emit(evt events.Event) {
	m.emitted = append(m.emitted, evt.EventType())
}

func (w *world) sawEvent(eventType string) bool {
	for _, e := range w.emitted {
		if e == eventType {
			return true
		}
	}
	return false
}

func TestDepositRequiresOpenWindow(t *testing.T) {
	_, engine := newWorld(t)
	if err := engine.Deposit(addr(0x10), u(100)); !errors.Is(err, ErrDepositsDisabled) {
		t.Fatalf("expected ErrDepositsDisabled, got %v", err)
	}
	if err := engine.Receive(addr(0x10), u(100)); !errors.Is(err, ErrDepositsDisabled) {
		t.Fatalf("expected ErrDepositsDisabled on receive, got %v", err)
	}
}

func TestBootstrapTransformerGate(t *testing.T) {
	w, engine := newWorld(t)
	stranger := addr(0x99)
	if err := engine.LiquidityDeposit(stranger, stranger, u(100)); !errors.Is(err, ErrNotTransformer) {
		t.Fatalf("expected ErrNotTransformer, got %v", err)
	}
	if _, err := engine.FormLiquidity(stranger); !errors.Is(err, ErrNotTransformer) {
		t.Fatalf("expected ErrNotTransformer, got %v", err)
	}

	transformer := w.settings.Transformer
	if err := engine.LiquidityDeposit(transformer, transformer, u(1000)); err != nil {
		t.Fatalf("liquidity deposit: %v", err)
	}
	if w.vault.Uint64() != 1000 {
		t.Fatalf("expected vault 1000, got %s", w.vault.Dec())
	}
	if balOf(w.synthBal, transformer).Uint64() != 1000 {
		t.Fatalf("expected transformer minted 1000, got %s", balOf(w.synthBal, transformer).Dec())
	}
}

func TestFormLiquidityBootstrap(t *testing.T) {
	w, engine := newWorld(t)
	transformer := w.settings.Transformer
	if err := engine.LiquidityDeposit(transformer, transformer, u(1000)); err != nil {
		t.Fatalf("liquidity deposit: %v", err)
	}
	cover, err := engine.FormLiquidity(transformer)
	if err != nil {
		t.Fatalf("form liquidity: %v", err)
	}
	if cover.Uint64() != 500 {
		t.Fatalf("expected cover amount 500, got %s", cover.Dec())
	}
	if balOf(w.wrapBal, w.pairAddr).Uint64() != 500 || balOf(w.synthBal, w.pairAddr).Uint64() != 500 {
		t.Fatalf("expected 500/500 reserves, got %s/%s",
			balOf(w.wrapBal, w.pairAddr).Dec(), balOf(w.synthBal, w.pairAddr).Dec())
	}
	// The vault remainder is swept to the master.
	if balOf(w.payouts, w.lifecycle.Master).Uint64() != 500 {
		t.Fatalf("expected remainder 500 to master, got %s", balOf(w.payouts, w.lifecycle.Master).Dec())
	}
	if !w.lifecycle.AllowDeposit {
		t.Fatal("deposits should be open after bootstrap")
	}
	if w.eval.Uint64() != 250_000 {
		t.Fatalf("expected cached evaluation 250000, got %s", w.eval.Dec())
	}

	// The bootstrap is one-shot.
	if _, err := engine.FormLiquidity(transformer); !errors.Is(err, ErrDepositsAlreadyOpen) {
		t.Fatalf("expected ErrDepositsAlreadyOpen, got %v", err)
	}
	if err := engine.LiquidityDeposit(transformer, transformer, u(1)); !errors.Is(err, ErrDepositsAlreadyOpen) {
		t.Fatalf("expected ErrDepositsAlreadyOpen, got %v", err)
	}
}

func TestDepositBalancedPoolNoAdjustments(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(500, 500, 500)
	w.eval = u(250_000)
	user := addr(0x10)
	w.synthBal[user] = u(100)

	if err := engine.Deposit(user, u(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if balOf(w.payouts, user).Uint64() != 100 {
		t.Fatalf("expected payout 100, got %s", balOf(w.payouts, user).Dec())
	}
	if !balOf(w.synthBal, user).IsZero() {
		t.Fatalf("expected user synthetic burned, got %s", balOf(w.synthBal, user).Dec())
	}
	if w.sawEvent(EventTypeFeesToMaster) || w.sawEvent(EventTypeArbitrageProfit) {
		t.Fatalf("balanced pool must not trigger fees or arbitrage: %v", w.emitted)
	}
	if !w.sawEvent(EventTypeDepositedLiquidity) {
		t.Fatalf("expected deposit event, got %v", w.emitted)
	}
	// 400/400 reserves remain; evaluation cache reflects them.
	if w.eval.Uint64() != 160_000 {
		t.Fatalf("expected cached evaluation 160000, got %s", w.eval.Dec())
	}
}

func TestPipelineOrder(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(500, 500, 500)
	w.eval = u(250_000)
	user := addr(0x10)
	w.synthBal[user] = u(100)

	if err := engine.Deposit(user, u(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	index := func(call string) int {
		for i, c := range w.calls {
			if c == call {
				return i
			}
		}
		t.Fatalf("call %q never happened: %v", call, w.calls)
		return -1
	}
	if !(index("skim") < index("remove") && index("remove") < index("unwrap") && index("unwrap") < index("pay")) {
		t.Fatalf("pipeline ran out of order: %v", w.calls)
	}
	if w.calls[len(w.calls)-1] != "evalput" {
		t.Fatalf("evaluation must be cached last, got %v", w.calls)
	}
}

func TestFeeExtraction(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(500, 500, 500)
	// Cached evaluation one quarter of the live one triggers the harvest.
	w.eval = u(62_500)
	user := addr(0x10)
	w.synthBal[user] = u(10)

	if err := engine.Withdraw(user, u(10)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !w.sawEvent(EventTypeFeesToMaster) {
		t.Fatalf("expected fee harvest, got %v", w.emitted)
	}
	if balOf(w.payouts, w.lifecycle.Master).Uint64() != 250 {
		t.Fatalf("expected master fee 250, got %s", balOf(w.payouts, w.lifecycle.Master).Dec())
	}
	if balOf(w.payouts, user).Uint64() != 10 {
		t.Fatalf("expected user payout 10, got %s", balOf(w.payouts, user).Dec())
	}
	if w.eval.Uint64() != 57_600 {
		t.Fatalf("expected cached evaluation 57600, got %s", w.eval.Dec())
	}
}

func TestArbitrageGuardNearEqualReserves(t *testing.T) {
	w, engine := newWorld(t)
	// One part in a million of imbalance is inside the guard band.
	w.seedPool(1_000_000, 1_000_001, 1_000_000)
	w.eval = new(uint256.Int).Mul(u(1), PrecisionP4) // suppress fee harvest
	user := addr(0x10)
	w.synthBal[user] = u(10)

	if err := engine.Withdraw(user, u(10)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if w.sawEvent(EventTypeArbitrageProfit) {
		t.Fatalf("guard band must suppress arbitrage: %v", w.emitted)
	}
}

func TestArbitrageBaseBranch(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(400, 900, 600)
	w.eval = new(uint256.Int).Mul(u(1), PrecisionP4) // suppress fee harvest
	user := addr(0x10)
	w.synthBal[user] = u(10)

	if err := engine.Withdraw(user, u(10)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !w.sawEvent(EventTypeArbitrageProfit) {
		t.Fatalf("expected arbitrage pass, got %v", w.emitted)
	}
	if balOf(w.payouts, w.lifecycle.Master).Uint64() != 99 {
		t.Fatalf("expected master profit 99, got %s", balOf(w.payouts, w.lifecycle.Master).Dec())
	}
	if balOf(w.payouts, user).Uint64() != 7 {
		t.Fatalf("expected user payout 7, got %s", balOf(w.payouts, user).Dec())
	}
	// The corrective swap sells wrapped into the pool.
	for _, c := range w.calls {
		if c == "swapSynthetic" {
			t.Fatalf("base branch must swap wrapped for synthetic: %v", w.calls)
		}
	}
	if w.eval.Uint64() != 166_992 {
		t.Fatalf("expected cached evaluation 166992, got %s", w.eval.Dec())
	}
	if !balOf(w.synthBal, w.selfAddr).IsZero() {
		t.Fatalf("self synthetic must be burned, got %s", balOf(w.synthBal, w.selfAddr).Dec())
	}
}

func TestArbitrageSyntheticBranch(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(900, 400, 600)
	w.eval = new(uint256.Int).Mul(u(1), PrecisionP4) // suppress fee harvest
	user := addr(0x10)
	w.synthBal[user] = u(10)

	if err := engine.Withdraw(user, u(10)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !w.sawEvent(EventTypeArbitrageProfit) {
		t.Fatalf("expected arbitrage pass, got %v", w.emitted)
	}
	if balOf(w.payouts, w.lifecycle.Master).Uint64() != 99 {
		t.Fatalf("expected master profit 99, got %s", balOf(w.payouts, w.lifecycle.Master).Dec())
	}
	if balOf(w.payouts, user).Uint64() != 7 {
		t.Fatalf("expected user payout 7, got %s", balOf(w.payouts, user).Dec())
	}
	for _, c := range w.calls {
		if c == "swapWrapped" {
			t.Fatalf("synthetic branch must swap synthetic for wrapped: %v", w.calls)
		}
	}
	if w.eval.Uint64() != 1_213_232 {
		t.Fatalf("expected cached evaluation 1213232, got %s", w.eval.Dec())
	}
	// The transient mint must be fully burned.
	if !balOf(w.synthBal, w.selfAddr).IsZero() {
		t.Fatalf("self synthetic must be burned, got %s", balOf(w.synthBal, w.selfAddr).Dec())
	}
}

func TestWithdrawPayoutFailureSkipsEvaluationCache(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(500, 500, 500)
	w.eval = u(250_000)
	w.failPay = true
	user := addr(0x10)
	w.synthBal[user] = u(100)

	if err := engine.Withdraw(user, u(100)); err == nil {
		t.Fatal("expected withdraw to fail on refused payout")
	}
	if w.eval.Uint64() != 250_000 {
		t.Fatalf("evaluation cache must be untouched on failure, got %s", w.eval.Dec())
	}
	for _, c := range w.calls {
		if c == "evalput" {
			t.Fatalf("failed pass must not cache an evaluation: %v", w.calls)
		}
	}
	if w.sawEvent(EventTypeWithdrawal) {
		t.Fatalf("failed pass must not emit a withdrawal: %v", w.emitted)
	}
}

func TestReceiveBypassPassthrough(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(500, 500, 500)
	w.lifecycle.BypassEnabled = true
	before := len(w.calls)

	if err := engine.Receive(addr(0x10), u(50)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if w.vault.Uint64() != 50 {
		t.Fatalf("expected vault credited 50, got %s", w.vault.Dec())
	}
	for _, c := range w.calls[before:] {
		if c != "credit" {
			t.Fatalf("bypass must only credit the vault, got %v", w.calls[before:])
		}
	}
}

func TestDefineHandshakes(t *testing.T) {
	w, engine := newWorld(t)
	master := w.lifecycle.Master

	if err := engine.DefineToken(addr(0x99)); !errors.Is(err, ErrNotMaster) {
		t.Fatalf("expected ErrNotMaster, got %v", err)
	}
	if err := engine.DefineToken(master); err != nil {
		t.Fatalf("define token: %v", err)
	}
	if err := engine.DefineToken(master); !errors.Is(err, ErrAlreadyDefined) {
		t.Fatalf("expected ErrAlreadyDefined, got %v", err)
	}

	w.invoker = addr(0x55)
	if err := engine.DefineHelper(master); !errors.Is(err, ErrHandshakeMismatch) {
		t.Fatalf("expected ErrHandshakeMismatch, got %v", err)
	}
	w.invoker = w.selfAddr
	if err := engine.DefineHelper(master); err != nil {
		t.Fatalf("define helper: %v", err)
	}
	if err := engine.DefineHelper(master); !errors.Is(err, ErrAlreadyDefined) {
		t.Fatalf("expected ErrAlreadyDefined, got %v", err)
	}
}

func TestOwnershipRenounceIsFinal(t *testing.T) {
	w, engine := newWorld(t)
	master := w.lifecycle.Master
	next := addr(0x20)

	if err := engine.ForwardOwnership(master, next); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if err := engine.RegisterTransformer(master, addr(0x02)); !errors.Is(err, ErrNotMaster) {
		t.Fatalf("old master must be revoked, got %v", err)
	}
	if err := engine.RenounceOwnership(next); err != nil {
		t.Fatalf("renounce: %v", err)
	}
	if err := engine.RegisterTransformer(next, addr(0x02)); !errors.Is(err, ErrNotMaster) {
		t.Fatalf("expected ErrNotMaster after renounce, got %v", err)
	}
	if err := engine.ForwardOwnership(next, next); !errors.Is(err, ErrNotMaster) {
		t.Fatalf("renounce must be final, got %v", err)
	}
}
