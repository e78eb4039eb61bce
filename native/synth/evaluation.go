package synth

import (
	"github.com/holiman/uint256"

	"launchforge/native/numeric"
)

// The peg formulas below never clamp: a division by zero or an ordering
// violation surfaces as an error and aborts the whole operation.

func (e *Engine) wrappedReserve(settings *Settings) (*uint256.Int, error) {
	return e.wrapped.BalanceOf(settings.Pair)
}

func (e *Engine) syntheticReserve(settings *Settings) (*uint256.Int, error) {
	return e.ledger.BalanceOf(settings.Pair)
}

func (e *Engine) lpTokenBalance() (*uint256.Int, error) {
	return e.pair.LPBalance(e.contractAddr)
}

// liquidityPercent is the pool total supply over the engine's LP holding, at
// P2 scale. 1*P2 means the engine owns the whole pool.
func (e *Engine) liquidityPercent() (*uint256.Int, error) {
	total, err := e.pair.TotalSupply()
	if err != nil {
		return nil, err
	}
	held, err := e.lpTokenBalance()
	if err != nil {
		return nil, err
	}
	return numeric.MulDiv(total, PrecisionP2, held)
}

// evaluation measures the engine-owned share of the pool as
// wrapped * P4 * synthetic / liquidityPercent^2. Comparing evaluations over
// time isolates fee growth from price movement.
func (e *Engine) evaluation(settings *Settings) (*uint256.Int, error) {
	percent, err := e.liquidityPercent()
	if err != nil {
		return nil, err
	}
	squared, err := numeric.Mul(percent, percent)
	if err != nil {
		return nil, err
	}
	wrapped, err := e.wrappedReserve(settings)
	if err != nil {
		return nil, err
	}
	synthetic, err := e.syntheticReserve(settings)
	if err != nil {
		return nil, err
	}
	product, err := numeric.Mul(wrapped, PrecisionP4)
	if err != nil {
		return nil, err
	}
	if product, err = numeric.Mul(product, synthetic); err != nil {
		return nil, err
	}
	return numeric.Div(product, squared)
}

// tradingFeeAmount converts evaluation growth into the LP amount whose removal
// harvests exactly the accrued fees.
func (e *Engine) tradingFeeAmount(previousEvaluation, currentEvaluation *uint256.Int, settings *Settings) (*uint256.Int, error) {
	ratio, err := numeric.MulDiv(previousEvaluation, PrecisionP4, currentEvaluation)
	if err != nil {
		return nil, err
	}
	synthetic, err := e.syntheticReserve(settings)
	if err != nil {
		return nil, err
	}
	wrapped, err := e.wrappedReserve(settings)
	if err != nil {
		return nil, err
	}
	recipient, err := numeric.MulDiv(synthetic, PrecisionP2, wrapped)
	if err != nil {
		return nil, err
	}
	difference, err := numeric.Sub(PrecisionP2, numeric.Sqrt(ratio))
	if err != nil {
		return nil, err
	}
	if difference, err = numeric.Mul(difference, numeric.Sqrt(recipient)); err != nil {
		return nil, err
	}
	held, err := e.lpTokenBalance()
	if err != nil {
		return nil, err
	}
	if difference, err = numeric.Mul(difference, held); err != nil {
		return nil, err
	}
	percent, err := e.liquidityPercent()
	if err != nil {
		return nil, err
	}
	if difference, err = numeric.Div(difference, percent); err != nil {
		return nil, err
	}
	return numeric.Div(difference, PrecisionPoints)
}

// amountPayout converts a base-currency amount into the LP amount backing it.
func (e *Engine) amountPayout(amount *uint256.Int, settings *Settings) (*uint256.Int, error) {
	percent, err := e.liquidityPercent()
	if err != nil {
		return nil, err
	}
	product, err := numeric.Mul(amount, percent)
	if err != nil {
		return nil, err
	}
	if product, err = numeric.Mul(product, PrecisionPoints); err != nil {
		return nil, err
	}
	held, err := e.lpTokenBalance()
	if err != nil {
		return nil, err
	}
	if product, err = numeric.Mul(product, held); err != nil {
		return nil, err
	}
	wrapped, err := e.wrappedReserve(settings)
	if err != nil {
		return nil, err
	}
	if product, err = numeric.Div(product, wrapped); err != nil {
		return nil, err
	}
	return numeric.Div(product, PrecisionP3)
}

// sqrtTerm is the shared radical of both arbitrage sizings:
// sqrt(big*small*TradingFee*4/P2 + small^2*InverseTradingFee^2/P4).
func sqrtTerm(small, big *uint256.Int) (*uint256.Int, error) {
	term1, err := numeric.Mul(big, small)
	if err != nil {
		return nil, err
	}
	if term1, err = numeric.Mul(term1, TradingFee); err != nil {
		return nil, err
	}
	if term1, err = numeric.Mul(term1, numeric.U64(4)); err != nil {
		return nil, err
	}
	if term1, err = numeric.Div(term1, PrecisionP2); err != nil {
		return nil, err
	}
	term2, err := numeric.Mul(small, small)
	if err != nil {
		return nil, err
	}
	if term2, err = numeric.Mul(term2, InverseTradingFee); err != nil {
		return nil, err
	}
	if term2, err = numeric.Mul(term2, InverseTradingFee); err != nil {
		return nil, err
	}
	if term2, err = numeric.Div(term2, PrecisionP4); err != nil {
		return nil, err
	}
	sum, err := numeric.Add(term1, term2)
	if err != nil {
		return nil, err
	}
	return numeric.Sqrt(sum), nil
}

// profitArbitrageRemove sizes the LP removal that skims the imbalance profit
// before an arbitrage swap, corrected down by half a percent.
func (e *Engine) profitArbitrageRemove(settings *Settings) (*uint256.Int, error) {
	wrapped, err := e.wrappedReserve(settings)
	if err != nil {
		return nil, err
	}
	synthetic, err := e.syntheticReserve(settings)
	if err != nil {
		return nil, err
	}
	product, err := numeric.Mul(wrapped, synthetic)
	if err != nil {
		return nil, err
	}
	doubleRoot, err := numeric.Mul(numeric.Sqrt(product), numeric.U64(2))
	if err != nil {
		return nil, err
	}
	difference, err := numeric.Add(wrapped, synthetic)
	if err != nil {
		return nil, err
	}
	if difference, err = numeric.Sub(difference, doubleRoot); err != nil {
		return nil, err
	}
	held, err := e.lpTokenBalance()
	if err != nil {
		return nil, err
	}
	if difference, err = numeric.Mul(difference, held); err != nil {
		return nil, err
	}
	percent, err := e.liquidityPercent()
	if err != nil {
		return nil, err
	}
	if difference, err = numeric.Mul(difference, percent); err != nil {
		return nil, err
	}
	if difference, err = numeric.Div(difference, wrapped); err != nil {
		return nil, err
	}
	if difference, err = numeric.Mul(difference, LiquidityPercentageCorrection); err != nil {
		return nil, err
	}
	return numeric.Div(difference, PrecisionP3)
}

// toRemoveBase sizes the second LP removal of the base-side arbitrage, the
// one whose wrapped leg funds the corrective swap.
func (e *Engine) toRemoveBase(settings *Settings) (*uint256.Int, error) {
	small, err := e.wrappedReserve(settings)
	if err != nil {
		return nil, err
	}
	big, err := e.syntheticReserve(settings)
	if err != nil {
		return nil, err
	}
	radical, err := sqrtTerm(small, big)
	if err != nil {
		return nil, err
	}
	term2, err := numeric.Mul(small, InverseTradingFee)
	if err != nil {
		return nil, err
	}
	if term2, err = numeric.Mul(term2, PrecisionP2); err != nil {
		return nil, err
	}
	scaledRadical, err := numeric.Mul(radical, PrecisionP4)
	if err != nil {
		return nil, err
	}
	leftOver, err := numeric.Add(term2, scaledRadical)
	if err != nil {
		return nil, err
	}
	if leftOver, err = numeric.Mul(leftOver, PrecisionPoints); err != nil {
		return nil, err
	}
	doubled, err := numeric.Mul(big, numeric.U64(2))
	if err != nil {
		return nil, err
	}
	if leftOver, err = numeric.Div(leftOver, doubled); err != nil {
		return nil, err
	}
	total, err := e.pair.TotalSupply()
	if err != nil {
		return nil, err
	}
	remaining, err := numeric.Sub(PrecisionP5, leftOver)
	if err != nil {
		return nil, err
	}
	if remaining, err = numeric.Mul(remaining, total); err != nil {
		return nil, err
	}
	return numeric.Div(remaining, PrecisionP5)
}

// swapAmountArbitrageSynth sizes the corrective swap of the synthetic-side
// arbitrage.
func (e *Engine) swapAmountArbitrageSynth(settings *Settings) (*uint256.Int, error) {
	small, err := e.syntheticReserve(settings)
	if err != nil {
		return nil, err
	}
	big, err := e.wrappedReserve(settings)
	if err != nil {
		return nil, err
	}
	radical, err := sqrtTerm(small, big)
	if err != nil {
		return nil, err
	}
	doubledP2, err := numeric.Mul(PrecisionP2, numeric.U64(2))
	if err != nil {
		return nil, err
	}
	factor, err := numeric.Sub(doubledP2, InverseTradingFee)
	if err != nil {
		return nil, err
	}
	numTerm2, err := numeric.Mul(small, factor)
	if err != nil {
		return nil, err
	}
	numerator, err := numeric.Mul(radical, PrecisionP2)
	if err != nil {
		return nil, err
	}
	if numerator, err = numeric.Sub(numerator, numTerm2); err != nil {
		return nil, err
	}
	denominator, err := numeric.Mul(TradingFee, numeric.U64(2))
	if err != nil {
		return nil, err
	}
	return numeric.Div(numerator, denominator)
}
