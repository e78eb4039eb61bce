package main

import (
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"launchforge/core/events"
	"launchforge/core/types"
	"launchforge/native/synth"
	"launchforge/native/transformer"
	"launchforge/observability/metrics"
	"launchforge/state"
)

// bankAdapter backs the investment engine's custody moves with the base
// ledger.
type bankAdapter struct {
	ledger  *state.BaseLedger
	custody [20]byte
}

func (b *bankAdapter) TransferToCustody(from [20]byte, amount *uint256.Int) error {
	return b.ledger.Transfer(from, b.custody, amount)
}

func (b *bankAdapter) TransferFromCustody(to [20]byte, amount *uint256.Int) error {
	return b.ledger.Transfer(b.custody, to, amount)
}

func (b *bankAdapter) CustodyBalance() (*uint256.Int, error) {
	return b.ledger.Balance(b.custody)
}

// vaultAdapter backs the peg engine's vault with a base ledger account.
type vaultAdapter struct {
	ledger *state.BaseLedger
	vault  [20]byte
}

func (v *vaultAdapter) Balance() (*uint256.Int, error) {
	return v.ledger.Balance(v.vault)
}

func (v *vaultAdapter) Credit(from [20]byte, amount *uint256.Int) error {
	return v.ledger.Transfer(from, v.vault, amount)
}

func (v *vaultAdapter) Pay(to [20]byte, amount *uint256.Int) error {
	return v.ledger.Transfer(v.vault, to, amount)
}

// minterAdapter mints claim tokens into the token ledger.
type minterAdapter struct {
	tokens *state.TokenLedger
	token  [20]byte
}

func (m *minterAdapter) MintSupply(recipient [20]byte, amount *uint256.Int) error {
	return m.tokens.Mint(m.token, recipient, amount)
}

// tokenTransferAdapter pulls arbitrary tokens through the token ledger.
type tokenTransferAdapter struct {
	tokens *state.TokenLedger
}

func (t *tokenTransferAdapter) TransferFrom(token, owner, recipient [20]byte, amount *uint256.Int) error {
	return t.tokens.Transfer(token, owner, recipient, amount)
}

// wrappedAdapter models the wrapped base token: Deposit moves vault funds
// behind freshly minted wrapped tokens, Withdraw unwinds them. The wrapped
// token address doubles as the backing reserve account.
type wrappedAdapter struct {
	base   *state.BaseLedger
	tokens *state.TokenLedger
	token  [20]byte
	vault  [20]byte
	holder [20]byte
}

func (w *wrappedAdapter) BalanceOf(holder [20]byte) (*uint256.Int, error) {
	return w.tokens.BalanceOf(w.token, holder)
}

func (w *wrappedAdapter) Deposit(amount *uint256.Int) error {
	if err := w.base.Transfer(w.vault, w.token, amount); err != nil {
		return err
	}
	return w.tokens.Mint(w.token, w.holder, amount)
}

func (w *wrappedAdapter) Withdraw(amount *uint256.Int) error {
	if err := w.tokens.Burn(w.token, w.holder, amount); err != nil {
		return err
	}
	return w.base.Transfer(w.token, w.vault, amount)
}

// syntheticAdapter is the settlement hook the investment engine calls on the
// peg engine. The bank has already moved the funds onto the peg contract's
// account when LiquidityDeposit runs, so the vault credit is a self-transfer.
type syntheticAdapter struct {
	engine      *synth.Engine
	transformer [20]byte
	funds       [20]byte
}

func (s *syntheticAdapter) LiquidityDeposit(amount *uint256.Int) error {
	return s.engine.LiquidityDeposit(s.transformer, s.funds, amount)
}

func (s *syntheticAdapter) FormLiquidity(_ [20]byte) (*uint256.Int, error) {
	return s.engine.FormLiquidity(s.transformer)
}

// registryAdapter resolves the synthetic token address the investment engine
// advertises, for the peg engine's define handshake.
type registryAdapter struct {
	state *state.TransformerState
}

func (r *registryAdapter) SyntheticAddress() ([20]byte, error) {
	settings, err := r.state.SettingsGet()
	if err != nil {
		return [20]byte{}, err
	}
	if settings == nil {
		return [20]byte{}, fmt.Errorf("launch contract not configured")
	}
	return settings.Synthetic, nil
}

// metricsEmitter translates engine events into Prometheus counters and a
// debug log line.
type metricsEmitter struct {
	logger  *slog.Logger
	metrics *metrics.LaunchMetrics
}

func (m *metricsEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	var attrs map[string]string
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if inner := carrier.Event(); inner != nil {
			attrs = inner.Attributes
		}
	}
	switch evt.EventType() {
	case transformer.EventTypeReservation:
		m.metrics.ObserveContribution(attrs["mode"])
	case transformer.EventTypeCashBackIssued:
		m.metrics.ObserveCashBack()
	case transformer.EventTypeRefundIssued:
		m.metrics.ObserveRefund()
	case transformer.EventTypeRedeemed:
		m.metrics.ObserveRedemption()
	case transformer.EventTypeSwapResult:
		m.metrics.ObserveSettlement()
	case synth.EventTypeDepositedLiquidity:
		m.metrics.ObserveRebalance("deposit")
	case synth.EventTypeWithdrawal:
		m.metrics.ObserveRebalance("withdraw")
	case synth.EventTypeFeesToMaster:
		m.metrics.ObserveFeeHarvest()
	case synth.EventTypeArbitrageProfit:
		m.metrics.ObserveArbitrage("executed")
	}
	if m.logger != nil {
		m.logger.Debug("engine event", slog.String("type", evt.EventType()), slog.Any("attributes", attrs))
	}
}
