package synth

import "launchforge/native/numeric"

// Precision constants for the peg math. All percentages and ratios are carried
// in PrecisionPoints (1e6) or one of its powers; mixing powers is the usual
// source of bugs, so every formula spells out which power it divides by.
var (
	PrecisionPoints = numeric.MustU256("1000000")
	PrecisionP2     = numeric.MustU256("1000000000000")
	PrecisionP3     = numeric.MustU256("1000000000000000000")
	PrecisionP4     = numeric.MustU256("1000000000000000000000000")
	PrecisionP5     = numeric.MustU256("1000000000000000000000000000000")

	// TradingFee is the AMM fee retention factor at P2 scale (0.25% fee).
	TradingFee = numeric.MustU256("997500000000")
	// InverseTradingFee is 1/TradingFee at P2 scale, rounded up.
	InverseTradingFee = numeric.MustU256("1002506265664")

	// EqualizeSizeValue and TradingFeeCondition gate the fee-extraction
	// decision: fees are harvested only when the evaluation grew by more
	// than one part in a hundred million.
	EqualizeSizeValue   = numeric.MustU256("100000000")
	TradingFeeCondition = numeric.MustU256("100000001")

	// ArbitrageCondition gates both arbitrage branches: reserves within one
	// part in a million of each other are left alone.
	ArbitrageCondition = numeric.MustU256("1000001")

	// LiquidityPercentageCorrection shaves 0.5% off the arbitrage removal
	// to keep the position solvent through rounding.
	LiquidityPercentageCorrection = numeric.MustU256("995000")

	// LimitAmount is the transient mint used to guarantee swap liquidity
	// during the synthetic-side arbitrage. Always burned before returning.
	LimitAmount = numeric.MustU256("100000000000000000000000000000000000000000000000000")
)

// swapDeadlineSlack is added to the current time for AMM deadlines.
const swapDeadlineSlack = 7_200
