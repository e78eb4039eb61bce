package synth

import (
	"time"

	"github.com/holiman/uint256"

	"launchforge/core/events"
	"launchforge/core/types"
	"launchforge/native/numeric"
)

type synthEvent struct {
	evt *types.Event
}

func (e synthEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e synthEvent) Event() *types.Event { return e.evt }

// Engine implements the peg evaluation and rebalancing over the wrapped/
// synthetic AMM pair. All collaborators are injected as narrow ports.
type Engine struct {
	state    engineState
	ledger   Ledger
	wrapped  Wrapped
	pair     Pair
	router   Router
	vault    Vault
	helper   Helper
	factory  Factory
	registry Registry
	emitter  events.Emitter

	contractAddr [20]byte
	nowFn        func() int64
}

// NewEngine creates a peg engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the synthetic token supply ledger.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetWrapped configures the wrapped base-currency token port.
func (e *Engine) SetWrapped(wrapped Wrapped) { e.wrapped = wrapped }

// SetPair configures the AMM pair port.
func (e *Engine) SetPair(pair Pair) { e.pair = pair }

// SetRouter configures the AMM router port.
func (e *Engine) SetRouter(router Router) { e.router = router }

// SetVault configures the base-currency vault port.
func (e *Engine) SetVault(vault Vault) { e.vault = vault }

// SetHelper configures the transfer helper port. The helper is usable only
// after DefineHelper has verified its back-pointer.
func (e *Engine) SetHelper(helper Helper) { e.helper = helper }

// SetFactory configures the AMM factory port.
func (e *Engine) SetFactory(factory Factory) { e.factory = factory }

// SetRegistry configures the launch-contract registry port used by the
// DefineToken handshake.
func (e *Engine) SetRegistry(registry Registry) { e.registry = registry }

// SetContractAddress configures the engine's own token identity.
func (e *Engine) SetContractAddress(addr [20]byte) { e.contractAddr = addr }

// SetNowFunc overrides the time source used for AMM deadlines. Primarily
// intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(synthEvent{evt: event})
}

func (e *Engine) deadline() uint64 {
	now := time.Now().Unix()
	if e != nil && e.nowFn != nil {
		now = e.nowFn()
	}
	return uint64(now) + swapDeadlineSlack
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil || e.wrapped == nil || e.pair == nil || e.router == nil || e.vault == nil || e.helper == nil {
		return errNilPorts
	}
	return nil
}

func (e *Engine) load() (*Lifecycle, *Settings, error) {
	lifecycle, err := e.state.LifecycleGet()
	if err != nil {
		return nil, nil, err
	}
	settings, err := e.state.SettingsGet()
	if err != nil {
		return nil, nil, err
	}
	return ensureLifecycle(lifecycle), settings.Clone(), nil
}

func (e *Engine) requireTransformer(caller [20]byte, settings *Settings) error {
	if settings.Transformer == zeroAddress || caller != settings.Transformer {
		return ErrNotTransformer
	}
	return nil
}

// rebalance runs the fixed pipeline shared by Deposit and Withdraw. The
// settlement amount is removed as liquidity and paid out to the recipient;
// the evaluation cache is refreshed last.
func (e *Engine) rebalance(lifecycle *Lifecycle, settings *Settings, depositAmount, settleAmount *uint256.Int, caller, recipient [20]byte) error {
	if err := e.cleanUp(lifecycle, depositAmount); err != nil {
		return err
	}
	if err := e.feesDecision(lifecycle, settings); err != nil {
		return err
	}
	if err := e.arbitrageDecision(lifecycle, settings); err != nil {
		return err
	}
	if err := e.settleBase(settleAmount, caller, recipient); err != nil {
		return err
	}
	return e.updateEvaluation(settings)
}

// Deposit accepts base currency, runs a full rebalancing pass, and settles
// the deposit amount back to the depositor.
func (e *Engine) Deposit(from [20]byte, amount *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	amount = numeric.Clone(amount)
	lifecycle, settings, err := e.load()
	if err != nil {
		return err
	}
	if err := lifecycle.RequireDeposits(); err != nil {
		return err
	}
	if err := e.vault.Credit(from, amount); err != nil {
		return err
	}
	if err := e.rebalance(lifecycle, settings, amount, amount, from, from); err != nil {
		return err
	}
	e.emit(NewDepositedLiquidityEvent(from, amount))
	return nil
}

// Withdraw converts the caller's synthetic tokens back into base currency
// through the same rebalancing pipeline, with no deposit leg.
func (e *Engine) Withdraw(from [20]byte, tokenAmount *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	tokenAmount = numeric.Clone(tokenAmount)
	lifecycle, settings, err := e.load()
	if err != nil {
		return err
	}
	if err := e.rebalance(lifecycle, settings, uint256.NewInt(0), tokenAmount, from, from); err != nil {
		return err
	}
	e.emit(NewWithdrawalEvent(from, tokenAmount))
	return nil
}

// Receive is the plain-transfer entry point. Funds arriving while the bypass
// latch is raised are internal unwrap proceeds and pass straight into the
// vault; anything else is treated as a deposit.
func (e *Engine) Receive(from [20]byte, amount *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	amount = numeric.Clone(amount)
	lifecycle, _, err := e.load()
	if err != nil {
		return err
	}
	if err := lifecycle.RequireDeposits(); err != nil {
		return err
	}
	if lifecycle.BypassEnabled {
		return e.vault.Credit(from, amount)
	}
	return e.Deposit(from, amount)
}

// LiquidityDeposit accepts the transformer's pooled contributions before the
// bootstrap. Transformer only, pre-bootstrap only.
func (e *Engine) LiquidityDeposit(caller, from [20]byte, amount *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	amount = numeric.Clone(amount)
	lifecycle, settings, err := e.load()
	if err != nil {
		return err
	}
	if err := e.requireTransformer(caller, settings); err != nil {
		return err
	}
	if err := lifecycle.RequireBootstrap(); err != nil {
		return err
	}
	if err := e.vault.Credit(from, amount); err != nil {
		return err
	}
	if err := e.ledger.Mint(caller, amount); err != nil {
		return err
	}
	e.emit(NewDepositedLiquidityEvent(caller, amount))
	return nil
}

// FormLiquidity bootstraps the pool exactly once: half the vault becomes the
// wrapped leg, an equal synthetic mint becomes the other leg, and the deposit
// window opens. The vault remainder is swept to the master. Returns the cover
// amount.
func (e *Engine) FormLiquidity(caller [20]byte) (*uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	lifecycle, settings, err := e.load()
	if err != nil {
		return nil, err
	}
	if err := e.requireTransformer(caller, settings); err != nil {
		return nil, err
	}
	lifecycle = lifecycle.Clone()
	if err := lifecycle.OpenDeposits(); err != nil {
		return nil, err
	}
	if err := e.state.LifecyclePut(lifecycle); err != nil {
		return nil, err
	}

	balance, err := e.vault.Balance()
	if err != nil {
		return nil, err
	}
	coverAmount, err := numeric.Div(balance, numeric.U64(2))
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Mint(e.contractAddr, coverAmount); err != nil {
		return nil, err
	}
	if err := e.wrapped.Deposit(coverAmount); err != nil {
		return nil, err
	}
	wrappedUsed, syntheticUsed, liquidity, err := e.router.AddLiquidity(
		coverAmount, coverAmount,
		uint256.NewInt(0), uint256.NewInt(0),
		e.contractAddr, e.deadline(),
	)
	if err != nil {
		return nil, err
	}
	e.emit(NewFormedLiquidityEvent(coverAmount, wrappedUsed, syntheticUsed, liquidity))

	remaining, err := e.vault.Balance()
	if err != nil {
		return nil, err
	}
	if !remaining.IsZero() {
		if err := e.profit(lifecycle, remaining); err != nil {
			return nil, err
		}
	}
	if err := e.updateEvaluation(settings); err != nil {
		return nil, err
	}
	return coverAmount, nil
}

// --- governance --- //

// DefineToken verifies the launch contract's back-pointer and latches the
// token handshake. Master only, once.
func (e *Engine) DefineToken(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.registry == nil {
		return errNilPorts
	}
	lifecycle, _, err := e.load()
	if err != nil {
		return err
	}
	if err := lifecycle.RequireMaster(caller); err != nil {
		return err
	}
	lifecycle = lifecycle.Clone()
	if err := lifecycle.MarkTokenDefined(); err != nil {
		return err
	}
	synthetic, err := e.registry.SyntheticAddress()
	if err != nil {
		return err
	}
	if synthetic != e.contractAddr {
		return ErrHandshakeMismatch
	}
	return e.state.LifecyclePut(lifecycle)
}

// DefineHelper verifies the transfer helper's invoker back-pointer and
// latches the helper handshake. Master only, once.
func (e *Engine) DefineHelper(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.helper == nil {
		return errNilPorts
	}
	lifecycle, _, err := e.load()
	if err != nil {
		return err
	}
	if err := lifecycle.RequireMaster(caller); err != nil {
		return err
	}
	lifecycle = lifecycle.Clone()
	if err := lifecycle.MarkHelperDefined(); err != nil {
		return err
	}
	invoker, err := e.helper.InvokerAddress()
	if err != nil {
		return err
	}
	if invoker != e.contractAddr {
		return ErrHandshakeMismatch
	}
	return e.state.LifecyclePut(lifecycle)
}

// CreatePair creates the wrapped/synthetic pair on the factory and records
// its address. Master only.
func (e *Engine) CreatePair(caller [20]byte, pair [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.factory == nil {
		return errNilPorts
	}
	lifecycle, settings, err := e.load()
	if err != nil {
		return err
	}
	if err := lifecycle.RequireMaster(caller); err != nil {
		return err
	}
	if err := e.factory.CreatePair(settings.WrappedToken, e.contractAddr, pair); err != nil {
		return err
	}
	settings.Pair = pair
	return e.state.SettingsPut(settings)
}

// RegisterTransformer records the transformer authorized for the bootstrap
// operations. Master only.
func (e *Engine) RegisterTransformer(caller, transformer [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	lifecycle, settings, err := e.load()
	if err != nil {
		return err
	}
	if err := lifecycle.RequireMaster(caller); err != nil {
		return err
	}
	settings.Transformer = transformer
	return e.state.SettingsPut(settings)
}

// AddLPTokens lets the master deposit base currency and move additional LP
// tokens onto the engine in one step.
func (e *Engine) AddLPTokens(caller, from [20]byte, amount, tokenAmount *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	lifecycle, settings, err := e.load()
	if err != nil {
		return err
	}
	if err := lifecycle.RequireMaster(caller); err != nil {
		return err
	}
	if err := e.Deposit(from, amount); err != nil {
		return err
	}
	if err := e.pair.TransferFrom(caller, e.contractAddr, numeric.Clone(tokenAmount)); err != nil {
		return err
	}
	return e.updateEvaluation(settings)
}

// ForwardOwnership hands the master capability to a new address. Master only.
func (e *Engine) ForwardOwnership(caller, newMaster [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	lifecycle, _, err := e.load()
	if err != nil {
		return err
	}
	if err := lifecycle.RequireMaster(caller); err != nil {
		return err
	}
	lifecycle = lifecycle.Clone()
	lifecycle.Master = newMaster
	return e.state.LifecyclePut(lifecycle)
}

// RenounceOwnership permanently revokes the master capability.
func (e *Engine) RenounceOwnership(caller [20]byte) error {
	return e.ForwardOwnership(caller, zeroAddress)
}

// --- queries --- //

// Evaluation computes the live evaluation from current reserves.
func (e *Engine) Evaluation() (*uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	_, settings, err := e.load()
	if err != nil {
		return nil, err
	}
	return e.evaluation(settings)
}

// CachedEvaluation returns the evaluation recorded at the end of the last
// rebalancing pass.
func (e *Engine) CachedEvaluation() (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cached, err := e.state.EvaluationGet()
	if err != nil {
		return nil, err
	}
	return numeric.Clone(cached), nil
}

// LiquidityPercent reports the pool share ratio at P2 scale.
func (e *Engine) LiquidityPercent() (*uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.liquidityPercent()
}

// PairReserves reports the wrapped and synthetic reserves of the pair.
func (e *Engine) PairReserves() (*uint256.Int, *uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	_, settings, err := e.load()
	if err != nil {
		return nil, nil, err
	}
	wrapped, err := e.wrappedReserve(settings)
	if err != nil {
		return nil, nil, err
	}
	synthetic, err := e.syntheticReserve(settings)
	if err != nil {
		return nil, nil, err
	}
	return wrapped, synthetic, nil
}

// LPTokenBalance reports the engine's LP holding.
func (e *Engine) LPTokenBalance() (*uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.lpTokenBalance()
}

// Lifecycle returns a copy of the lifecycle record.
func (e *Engine) Lifecycle() (*Lifecycle, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	lifecycle, err := e.state.LifecycleGet()
	if err != nil {
		return nil, err
	}
	return ensureLifecycle(lifecycle).Clone(), nil
}
