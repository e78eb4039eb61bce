package synth

import (
	"github.com/holiman/uint256"

	"launchforge/native/numeric"
)

// The rebalancing pipeline runs in a fixed order on every deposit and
// withdrawal: cleanUp, feesDecision, arbitrageDecision, settleBase, then
// updateEvaluation. The cached evaluation is written only in the last step so
// every decision within a pass compares against the pre-pass snapshot.

func (e *Engine) cleanUp(lifecycle *Lifecycle, depositAmount *uint256.Int) error {
	if err := e.pair.Skim(lifecycle.Master); err != nil {
		return err
	}
	if err := e.selfBurn(); err != nil {
		return err
	}
	balance, err := e.vault.Balance()
	if err != nil {
		return err
	}
	// Anything in the vault above the incoming deposit is stray and swept
	// to the master.
	if balance.Gt(depositAmount) {
		excess, err := numeric.Sub(balance, depositAmount)
		if err != nil {
			return err
		}
		if err := e.profit(lifecycle, excess); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) selfBurn() error {
	balance, err := e.ledger.BalanceOf(e.contractAddr)
	if err != nil {
		return err
	}
	if balance.IsZero() {
		return nil
	}
	return e.ledger.Burn(e.contractAddr, balance)
}

// unwrap converts engine-held wrapped tokens back into vault funds. The
// bypass latch is raised for the duration so the inbound transfer is not
// mistaken for a user deposit.
func (e *Engine) unwrap(amount *uint256.Int) error {
	lifecycle, err := e.state.LifecycleGet()
	if err != nil {
		return err
	}
	lifecycle = ensureLifecycle(lifecycle).Clone()
	lifecycle.BypassEnabled = true
	if err := e.state.LifecyclePut(lifecycle); err != nil {
		return err
	}
	withdrawErr := e.wrapped.Withdraw(amount)
	lifecycle.BypassEnabled = false
	if err := e.state.LifecyclePut(lifecycle); err != nil {
		return err
	}
	return withdrawErr
}

func (e *Engine) profit(lifecycle *Lifecycle, amount *uint256.Int) error {
	if err := e.vault.Pay(lifecycle.Master, amount); err != nil {
		return err
	}
	e.emit(NewMasterProfitEvent(amount, lifecycle.Master))
	return nil
}

func (e *Engine) feesDecision(lifecycle *Lifecycle, settings *Settings) error {
	previous, err := e.state.EvaluationGet()
	if err != nil {
		return err
	}
	previous = numeric.Clone(previous)
	current, err := e.evaluation(settings)
	if err != nil {
		return err
	}
	previousCondition, err := numeric.Mul(previous, TradingFeeCondition)
	if err != nil {
		return err
	}
	newCondition, err := numeric.Mul(current, EqualizeSizeValue)
	if err != nil {
		return err
	}
	if newCondition.Gt(previousCondition) {
		return e.extractAndSendFees(lifecycle, settings, previous, current)
	}
	return nil
}

func (e *Engine) extractAndSendFees(lifecycle *Lifecycle, settings *Settings, previousEvaluation, currentEvaluation *uint256.Int) error {
	fee, err := e.tradingFeeAmount(previousEvaluation, currentEvaluation, settings)
	if err != nil {
		return err
	}
	amountWrapped, amountSynthetic, err := e.removeLiquidity(fee)
	if err != nil {
		return err
	}
	e.emit(NewLiquidityRemovedEvent(amountWrapped, amountSynthetic))
	if err := e.unwrap(amountWrapped); err != nil {
		return err
	}
	if err := e.profit(lifecycle, amountWrapped); err != nil {
		return err
	}
	if err := e.ledger.Burn(e.contractAddr, amountSynthetic); err != nil {
		return err
	}
	e.emit(NewFeesToMasterEvent(amountWrapped, lifecycle.Master))
	return nil
}

func (e *Engine) arbitrageDecision(lifecycle *Lifecycle, settings *Settings) error {
	wrapped, err := e.wrappedReserve(settings)
	if err != nil {
		return err
	}
	synthetic, err := e.syntheticReserve(settings)
	if err != nil {
		return err
	}
	if wrapped.Lt(synthetic) {
		return e.arbitrageBase(lifecycle, settings, wrapped, synthetic)
	}
	if wrapped.Gt(synthetic) {
		return e.arbitrageSynth(lifecycle, settings, wrapped, synthetic)
	}
	return nil
}

// arbitrageBase corrects a pool holding less wrapped than synthetic: skim the
// imbalance profit, then sell removed wrapped back into the pool for
// synthetic, which is burned.
func (e *Engine) arbitrageBase(lifecycle *Lifecycle, settings *Settings, wrapped, synthetic *uint256.Int) error {
	conditionWrapped, err := numeric.Mul(wrapped, ArbitrageCondition)
	if err != nil {
		return err
	}
	conditionSynthetic, err := numeric.Mul(synthetic, PrecisionPoints)
	if err != nil {
		return err
	}
	if conditionWrapped.Cmp(conditionSynthetic) >= 0 {
		return nil
	}

	amount, err := e.profitArbitrageRemove(settings)
	if err != nil {
		return err
	}
	amountWrapped, amountSynthetic, err := e.removeLiquidity(amount)
	if err != nil {
		return err
	}
	e.emit(NewLiquidityRemovedEvent(amountWrapped, amountSynthetic))
	if err := e.unwrap(amountWrapped); err != nil {
		return err
	}
	if err := e.profit(lifecycle, amountWrapped); err != nil {
		return err
	}

	toRemove, err := e.toRemoveBase(settings)
	if err != nil {
		return err
	}
	swapWrapped, swapSynthetic, err := e.removeLiquidity(toRemove)
	if err != nil {
		return err
	}
	// The synthetic leg stays on the contract and is burned below.
	e.emit(NewLiquidityRemovedEvent(swapWrapped, swapSynthetic))

	received, err := e.router.SwapWrappedForSynthetic(swapWrapped, uint256.NewInt(0), e.deadline())
	if err != nil {
		return err
	}
	if err := e.helper.ForwardFunds(e.contractAddr, received); err != nil {
		return err
	}
	if err := e.selfBurn(); err != nil {
		return err
	}
	e.emit(NewArbitrageProfitEvent(amountWrapped, lifecycle.Master))
	return nil
}

// arbitrageSynth corrects a pool holding more wrapped than synthetic: skim the
// imbalance profit, mint transient synthetic, sell it for wrapped, and re-add
// both legs as liquidity. The transient mint is burned before returning.
func (e *Engine) arbitrageSynth(lifecycle *Lifecycle, settings *Settings, wrapped, synthetic *uint256.Int) error {
	conditionWrapped, err := numeric.Mul(wrapped, PrecisionPoints)
	if err != nil {
		return err
	}
	conditionSynthetic, err := numeric.Mul(synthetic, ArbitrageCondition)
	if err != nil {
		return err
	}
	if conditionWrapped.Cmp(conditionSynthetic) <= 0 {
		return nil
	}

	amount, err := e.profitArbitrageRemove(settings)
	if err != nil {
		return err
	}
	amountWrapped, amountSynthetic, err := e.removeLiquidity(amount)
	if err != nil {
		return err
	}
	e.emit(NewLiquidityRemovedEvent(amountWrapped, amountSynthetic))
	if err := e.unwrap(amountWrapped); err != nil {
		return err
	}
	if err := e.profit(lifecycle, amountWrapped); err != nil {
		return err
	}

	if err := e.ledger.Mint(e.contractAddr, LimitAmount); err != nil {
		return err
	}
	swapAmount, err := e.swapAmountArbitrageSynth(settings)
	if err != nil {
		return err
	}
	received, err := e.router.SwapSyntheticForWrapped(swapAmount, uint256.NewInt(0), e.deadline())
	if err != nil {
		return err
	}
	if err := e.helper.ForwardFunds(settings.WrappedToken, received); err != nil {
		return err
	}
	remaining, err := e.ledger.BalanceOf(e.contractAddr)
	if err != nil {
		return err
	}
	if err := e.addLiquidity(received, remaining); err != nil {
		return err
	}
	if err := e.selfBurn(); err != nil {
		return err
	}
	e.emit(NewArbitrageProfitEvent(amountWrapped, lifecycle.Master))
	return nil
}

// settleBase converts an LP amount back into base currency for the recipient
// and burns both the caller's synthetic and the contract-side leg.
func (e *Engine) settleBase(amount *uint256.Int, caller, recipient [20]byte) error {
	amountWrapped, amountSynthetic, err := e.removeLiquidity(amount)
	if err != nil {
		return err
	}
	if err := e.unwrap(amountWrapped); err != nil {
		return err
	}
	if err := e.vault.Pay(recipient, amountWrapped); err != nil {
		return err
	}
	if err := e.ledger.Burn(caller, amount); err != nil {
		return err
	}
	return e.ledger.Burn(e.contractAddr, amountSynthetic)
}

func (e *Engine) updateEvaluation(settings *Settings) error {
	current, err := e.evaluation(settings)
	if err != nil {
		return err
	}
	return e.state.EvaluationPut(current)
}

func (e *Engine) removeLiquidity(amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	return e.router.RemoveLiquidity(amount, e.deadline())
}

func (e *Engine) addLiquidity(amountWrapped, amountSynthetic *uint256.Int) error {
	wrappedUsed, syntheticUsed, liquidity, err := e.router.AddLiquidity(
		amountWrapped, amountSynthetic,
		uint256.NewInt(0), uint256.NewInt(0),
		e.contractAddr, e.deadline(),
	)
	if err != nil {
		return err
	}
	e.emit(NewLiquidityAddedEvent(wrappedUsed, syntheticUsed, liquidity))
	return nil
}
