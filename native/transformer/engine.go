package transformer

import (
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"launchforge/core/events"
	"launchforge/core/types"
	"launchforge/native/numeric"
)

// swapDeadlineSlack is added to the current time for AMM router deadlines.
const swapDeadlineSlack = 7_200

var zeroAddress = [20]byte{}

type transformerEvent struct {
	evt *types.Event
}

func (e transformerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e transformerEvent) Event() *types.Event { return e.evt }

// Engine implements the investment ledger and the settlement/redemption flow.
// All external collaborators are injected as narrow ports; the engine itself
// never reaches outside its state interface.
type Engine struct {
	state     engineState
	bank      Bank
	minter    TokenMinter
	router    Router
	tokens    TokenTransfer
	synthetic Synthetic
	emitter   events.Emitter

	contractAddr [20]byte
	launchTime   int64
	nowFn        func() int64
}

// NewEngine creates a transformer engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the base-currency custody port.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetMinter configures the claim-token mint port.
func (e *Engine) SetMinter(minter TokenMinter) { e.minter = minter }

// SetRouter configures the AMM router port.
func (e *Engine) SetRouter(router Router) { e.router = router }

// SetTokenTransfer configures the token pull port used by token contributions.
func (e *Engine) SetTokenTransfer(tokens TokenTransfer) { e.tokens = tokens }

// SetSynthetic configures the synthetic-currency settlement hook.
func (e *Engine) SetSynthetic(synthetic Synthetic) { e.synthetic = synthetic }

// SetContractAddress configures the engine's own custody identity, the
// recipient of the pooled claim-token mint during settlement.
func (e *Engine) SetContractAddress(addr [20]byte) { e.contractAddr = addr }

// SetLaunchTime fixes the timestamp day 1 is measured from.
func (e *Engine) SetLaunchTime(ts int64) { e.launchTime = ts }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
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
	e.emitter.Emit(transformerEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.bank == nil {
		return errNilBank
	}
	return nil
}

func investorKey(addr [20]byte) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash(addr[:]))
}

// CurrentDay reports the one-based investment day, or 0 before launch.
func (e *Engine) CurrentDay() uint64 {
	now := e.now()
	if e.launchTime == 0 || now < e.launchTime {
		return 0
	}
	return uint64((now-e.launchTime)/secondsPerDay) + 1
}

// CurrentPhase derives the lifecycle phase from the day counter and the
// settlement latch.
func (e *Engine) CurrentPhase() (Phase, error) {
	if e == nil || e.state == nil {
		return PhasePending, errNilState
	}
	globals, err := e.state.GlobalsGet()
	if err != nil {
		return PhasePending, err
	}
	globals = ensureGlobals(globals)
	if globals.Settled {
		return PhaseSettled, nil
	}
	day := e.CurrentDay()
	switch {
	case day == 0:
		return PhasePending, nil
	case day <= InvestmentDays:
		return PhaseOpen, nil
	case day <= InvestmentDays+RefundGraceDays:
		return PhaseAwaitingSettlement, nil
	default:
		return PhaseRefundable, nil
	}
}

// --- guards --- //

func (e *Engine) requireInvestmentDay() error {
	day := e.CurrentDay()
	if day == 0 || day > InvestmentDays {
		return ErrWrongInvestmentDay
	}
	return nil
}

func (e *Engine) requireSupplyHeadroom(globals *Globals) error {
	if globals.TotalTokensSold.Cmp(MaxSupply) >= 0 {
		return ErrMaxSupplyReached
	}
	return nil
}

func (e *Engine) requireKeeper(caller [20]byte, settings *Settings) error {
	if settings.Keeper == zeroAddress || caller != settings.Keeper {
		return ErrNotKeeper
	}
	return nil
}

// --- governance --- //

// Configure updates the collaborating contract references. Keeper only.
func (e *Engine) Configure(caller [20]byte, claimToken, pair, synthetic [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	settings, err := e.state.SettingsGet()
	if err != nil {
		return err
	}
	settings = settings.Clone()
	if err := e.requireKeeper(caller, settings); err != nil {
		return err
	}
	settings.ClaimToken = claimToken
	settings.Pair = pair
	settings.Synthetic = synthetic
	return e.state.SettingsPut(settings)
}

// RenounceKeeper permanently revokes the keeper capability.
func (e *Engine) RenounceKeeper(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	settings, err := e.state.SettingsGet()
	if err != nil {
		return err
	}
	settings = settings.Clone()
	if err := e.requireKeeper(caller, settings); err != nil {
		return err
	}
	settings.Keeper = zeroAddress
	return e.state.SettingsPut(settings)
}

// --- contributions --- //

// Contribute records a base-currency contribution. The funds are pulled from
// the investor's account into custody before the ledger is touched.
func (e *Engine) Contribute(investor [20]byte, amount *uint256.Int, mode uint8) error {
	if err := e.ready(); err != nil {
		return err
	}
	amount = numeric.Clone(amount)
	if err := e.requireInvestmentDay(); err != nil {
		return err
	}
	globals, err := e.state.GlobalsGet()
	if err != nil {
		return err
	}
	globals = ensureGlobals(globals)
	if err := e.requireSupplyHeadroom(globals); err != nil {
		return err
	}
	if amount.Lt(TokenCost) {
		return ErrMinInvestNotMet
	}
	if mode >= maxInvestmentMode {
		return ErrInvalidMode
	}
	if err := e.bank.TransferToCustody(investor, amount); err != nil {
		return err
	}
	return e.reserve(globals, investor, amount, mode)
}

// ContributeWithToken accepts an arbitrary token, swaps it into base currency
// through the AMM, and feeds the realized output into the same ledger core.
// The swap result is snapshotted before any bookkeeping so the ledger only
// ever sees post-swap base-currency amounts.
func (e *Engine) ContributeWithToken(investor [20]byte, token [20]byte, amount *uint256.Int, mode uint8) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.router == nil || e.tokens == nil {
		return errNilPorts
	}
	amount = numeric.Clone(amount)
	if err := e.requireInvestmentDay(); err != nil {
		return err
	}
	globals, err := e.state.GlobalsGet()
	if err != nil {
		return err
	}
	globals = ensureGlobals(globals)
	if err := e.requireSupplyHeadroom(globals); err != nil {
		return err
	}
	if mode >= maxInvestmentMode {
		return ErrInvalidMode
	}

	if err := e.tokens.TransferFrom(token, investor, e.contractAddr, amount); err != nil {
		return err
	}
	path, err := e.BuildSwapPath(token)
	if err != nil {
		return err
	}
	deadline := uint64(e.now()) + swapDeadlineSlack
	amounts, err := e.router.SwapExactTokensForBase(amount, path, deadline)
	if err != nil {
		return err
	}
	swappedOut := numeric.Clone(amounts[1])
	if swappedOut.Lt(TokenCost) {
		return ErrInvestmentBelowMinimum
	}
	return e.reserve(globals, investor, swappedOut, mode)
}

// reserve is the single bookkeeping core behind both contribution paths. The
// caller has already moved senderValue into custody and validated the phase,
// supply headroom, and mode.
func (e *Engine) reserve(globals *Globals, investor [20]byte, senderValue *uint256.Int, mode uint8) error {
	key := investorKey(investor)
	record, err := e.state.InvestorGet(key)
	if err != nil {
		return err
	}
	record = ensureInvestor(record)

	if record.Contributed.IsZero() {
		if err := e.state.UniqueInvestorPut(globals.InvestorCount, investor); err != nil {
			return err
		}
		globals.InvestorCount++
	}

	tokens, refund, err := allocate(globals.TotalContributed, globals.TotalTokensSold, senderValue)
	if err != nil {
		return err
	}

	if globals.TotalContributed, err = numeric.Add(globals.TotalContributed, senderValue); err != nil {
		return err
	}
	if globals.TotalTokensSold, err = numeric.Add(globals.TotalTokensSold, tokens); err != nil {
		return err
	}
	if record.Contributed, err = numeric.Add(record.Contributed, senderValue); err != nil {
		return err
	}
	if record.TokensPurchased, err = numeric.Add(record.TokensPurchased, tokens); err != nil {
		return err
	}

	if mode == 0 && globals.CashBackTotal.Lt(RefundCap) && refund.Lt(senderValue) {
		net, err := numeric.Sub(senderValue, refund)
		if err != nil {
			return err
		}
		cashBack, err := numeric.Div(net, numeric.U64(100))
		if err != nil {
			return err
		}
		projected, err := numeric.Add(globals.CashBackTotal, cashBack)
		if err != nil {
			return err
		}
		if projected.Cmp(RefundCap) >= 0 {
			// Clip to the remaining headroom; this is one of the two
			// designed saturation points.
			if cashBack, err = numeric.Sub(RefundCap, globals.CashBackTotal); err != nil {
				return err
			}
		}
		if globals.CashBackTotal, err = numeric.Add(globals.CashBackTotal, cashBack); err != nil {
			return err
		}
		if err := e.bank.TransferFromCustody(investor, cashBack); err != nil {
			return err
		}
		e.emit(NewCashBackEvent(investor, senderValue, cashBack))
	}

	if !refund.IsZero() {
		if err := e.bank.TransferFromCustody(investor, refund); err != nil {
			return err
		}
		e.emit(NewRefundEvent(investor, refund))
	}

	if err := e.state.InvestorPut(key, record); err != nil {
		return err
	}
	if err := e.state.GlobalsPut(globals); err != nil {
		return err
	}

	e.emit(NewReservationEvent(investor, senderValue, tokens, e.CurrentDay(), mode))
	return nil
}

// --- settlement --- //

// Settle converts the collected contributions into protocol-owned AMM
// liquidity. Callable exactly once, only after the window has closed.
func (e *Engine) Settle() error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.minter == nil || e.router == nil || e.synthetic == nil {
		return errNilPorts
	}
	if e.CurrentDay() <= InvestmentDays {
		return ErrOngoingInvestmentPhase
	}
	globals, err := e.state.GlobalsGet()
	if err != nil {
		return err
	}
	globals = ensureGlobals(globals)
	if globals.Settled {
		return ErrAlreadySettled
	}
	settings, err := e.state.SettingsGet()
	if err != nil {
		return err
	}

	contributed := numeric.Clone(globals.TotalContributed)
	sold := numeric.Clone(globals.TotalTokensSold)

	// Mode-0 cash-backs are paid out of custody, so the purse can sit below
	// the contribution total until the keeper tops it up via Fund.
	custody, err := e.bank.CustodyBalance()
	if err != nil {
		return err
	}
	if custody.Lt(contributed) {
		return ErrCustodyShortfall
	}

	if err := e.bank.TransferFromCustody(settings.Synthetic, contributed); err != nil {
		return err
	}
	if err := e.synthetic.LiquidityDeposit(contributed); err != nil {
		return err
	}
	if _, err := e.synthetic.FormLiquidity(settings.Pair); err != nil {
		return err
	}
	if err := e.minter.MintSupply(e.contractAddr, sold); err != nil {
		return err
	}

	deadline := uint64(e.now()) + swapDeadlineSlack
	// Zero minimums: the contract owns both sides of the trade, so slippage
	// against itself is accepted unconditionally.
	amountA, amountB, liquidity, err := e.router.AddLiquidity(
		settings.ClaimToken, settings.Synthetic,
		sold, contributed,
		uint256.NewInt(0), uint256.NewInt(0),
		zeroAddress, deadline,
	)
	if err != nil {
		return err
	}

	globals.Settled = true
	if err := e.state.GlobalsPut(globals); err != nil {
		return err
	}
	e.emit(NewSwapResultEvent(amountA, amountB, liquidity))
	return nil
}

// Redeem mints an investor's purchased claim tokens after settlement and
// zeroes the position. A zero position is an idempotent no-op, not an error.
// Permissionless: anyone may trigger a payout on behalf of any investor.
func (e *Engine) Redeem(investor [20]byte) (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.minter == nil {
		return nil, errNilPorts
	}
	globals, err := e.state.GlobalsGet()
	if err != nil {
		return nil, err
	}
	globals = ensureGlobals(globals)
	if !globals.Settled {
		return nil, ErrSettleFirst
	}
	key := investorKey(investor)
	record, err := e.state.InvestorGet(key)
	if err != nil {
		return nil, err
	}
	record = ensureInvestor(record)
	payout := numeric.Clone(record.TokensPurchased)
	record.TokensPurchased = uint256.NewInt(0)
	if err := e.state.InvestorPut(key, record); err != nil {
		return nil, err
	}
	if !payout.IsZero() {
		if err := e.minter.MintSupply(investor, payout); err != nil {
			return nil, err
		}
		e.emit(NewRedeemedEvent(investor, payout))
	}
	return payout, nil
}

// RequestRefund returns an investor's full contribution if settlement never
// happened within the grace window. Zeroes both sides of the record and
// shrinks the sold-token counter with checked arithmetic.
func (e *Engine) RequestRefund(investor [20]byte) (*uint256.Int, *uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	globals, err := e.state.GlobalsGet()
	if err != nil {
		return nil, nil, err
	}
	globals = ensureGlobals(globals)
	key := investorKey(investor)
	record, err := e.state.InvestorGet(key)
	if err != nil {
		return nil, nil, err
	}
	record = ensureInvestor(record)

	if globals.Settled ||
		record.Contributed.IsZero() ||
		record.TokensPurchased.IsZero() ||
		e.CurrentDay() <= InvestmentDays+RefundGraceDays {
		return nil, nil, ErrRefundNotPossible
	}

	amount := numeric.Clone(record.Contributed)
	tokens := numeric.Clone(record.TokensPurchased)
	record.Contributed = uint256.NewInt(0)
	record.TokensPurchased = uint256.NewInt(0)

	if globals.TotalTokensSold, err = numeric.Sub(globals.TotalTokensSold, tokens); err != nil {
		return nil, nil, fmt.Errorf("transformer: sold counter underflow: %w", err)
	}

	// Pay first: the claim must survive a failed custody transfer so the
	// investor can retry once custody is topped up.
	if err := e.bank.TransferFromCustody(investor, amount); err != nil {
		return nil, nil, err
	}
	if err := e.state.InvestorPut(key, record); err != nil {
		return nil, nil, err
	}
	if err := e.state.GlobalsPut(globals); err != nil {
		return nil, nil, err
	}
	e.emit(NewRefundEvent(investor, amount))
	return amount, tokens, nil
}

// Fund tops up the engine custody without touching the ledger.
func (e *Engine) Fund(from [20]byte, amount *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.bank.TransferToCustody(from, numeric.Clone(amount))
}

// BuildSwapPath returns the two-hop swap path from an arbitrary token into
// the wrapped base currency.
func (e *Engine) BuildSwapPath(token [20]byte) ([2][20]byte, error) {
	if e == nil || e.state == nil {
		return [2][20]byte{}, errNilState
	}
	settings, err := e.state.SettingsGet()
	if err != nil {
		return [2][20]byte{}, err
	}
	return [2][20]byte{token, settings.WrappedBase}, nil
}

// --- queries --- //

// Globals returns a copy of the aggregate counters.
func (e *Engine) Globals() (*Globals, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	globals, err := e.state.GlobalsGet()
	if err != nil {
		return nil, err
	}
	return ensureGlobals(globals).Clone(), nil
}

// Investor returns a copy of an investor's cumulative position.
func (e *Engine) Investor(addr [20]byte) (*InvestorRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, err := e.state.InvestorGet(investorKey(addr))
	if err != nil {
		return nil, err
	}
	return ensureInvestor(record).Clone(), nil
}

// UniqueInvestorAt returns the investor address registered at a dense index.
func (e *Engine) UniqueInvestorAt(index uint64) ([20]byte, bool, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, false, errNilState
	}
	return e.state.UniqueInvestorAt(index)
}
