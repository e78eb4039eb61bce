package synth

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"launchforge/native/numeric"
)

func TestLiquidityPercent(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(400, 900, 600)
	// The engine holds half the pool.
	w.lpBal[w.selfAddr] = u(300)

	percent, err := engine.LiquidityPercent()
	if err != nil {
		t.Fatalf("liquidity percent: %v", err)
	}
	want := new(uint256.Int).Mul(u(2), PrecisionP2)
	if percent.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want.Dec(), percent.Dec())
	}
}

func TestLiquidityPercentZeroHolding(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(400, 900, 600)
	w.lpBal[w.selfAddr] = u(0)

	if _, err := engine.LiquidityPercent(); !errors.Is(err, numeric.ErrDivideByZero) {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
}

func TestEvaluationWholePoolOwnership(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(400, 900, 600)

	// With the pool fully owned, liquidityPercent is exactly P2 and the
	// evaluation collapses to wrapped*synthetic.
	evaluation, err := engine.Evaluation()
	if err != nil {
		t.Fatalf("evaluation: %v", err)
	}
	if evaluation.Uint64() != 360_000 {
		t.Fatalf("expected 360000, got %s", evaluation.Dec())
	}
}

func TestEvaluationScaleInvariance(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(400, 900, 600)
	base, err := engine.Evaluation()
	if err != nil {
		t.Fatalf("evaluation: %v", err)
	}

	// Redenominating the LP supply without changing the ownership share or
	// the reserves must not change the evaluation.
	w.lpTotal = u(1_200)
	w.lpBal[w.selfAddr] = u(1_200)
	rescaled, err := engine.Evaluation()
	if err != nil {
		t.Fatalf("evaluation: %v", err)
	}
	if base.Cmp(rescaled) != 0 {
		t.Fatalf("evaluation must be LP-denomination invariant: %s vs %s", base.Dec(), rescaled.Dec())
	}
}

func TestTradingFeeAmount(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(500, 500, 500)

	// A live evaluation four times the previous one yields sqrt(ratio) of
	// P2/2 and a fee of half the LP holding times 1e-6 precision steps.
	fee, err := engine.tradingFeeAmount(u(62_500), u(250_000), w.settings)
	if err != nil {
		t.Fatalf("trading fee: %v", err)
	}
	if fee.Uint64() != 250 {
		t.Fatalf("expected fee 250, got %s", fee.Dec())
	}
}

func TestTradingFeeAmountRejectsShrinkingEvaluation(t *testing.T) {
	w, engine := newWorld(t)
	w.seedPool(500, 500, 500)

	// previous > current drives sqrt(ratio) above P2; the subtraction must
	// fail instead of clamping.
	if _, err := engine.tradingFeeAmount(u(1_000_000), u(1), w.settings); !errors.Is(err, numeric.ErrUnderflow) {
		t.Fatalf("expected ErrUnderflow, got %v", err)
	}
}

func TestAmountPayoutIdentityPool(t *testing.T) {
	w, engine := newWorld(t)
	lp := uint64(1_000_000_000_000)
	w.seedPool(lp, lp, lp)

	// Whole-pool ownership with wrapped reserve equal to the LP supply
	// makes the payout the identity function.
	payout, err := engine.amountPayout(u(777), w.settings)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if payout.Uint64() != 777 {
		t.Fatalf("expected payout 777, got %s", payout.Dec())
	}
}

func TestSqrtTermBalancedReserves(t *testing.T) {
	// With small == big == 1e6 the radical reduces to
	// sqrt(1e12*(4*TradingFee + ITF^2/P2)/P2) evaluated in floor math.
	radical, err := sqrtTerm(u(1_000_000), u(1_000_000))
	if err != nil {
		t.Fatalf("sqrt term: %v", err)
	}
	// term1 = 1e12 * 9975e8 * 4 / 1e12 = 3_990_000_000_000
	// term2 = 1e12 * ITF^2 / 1e24 = 1_005_018_812_695
	// sqrt(4_995_018_812_695) = 2_234_953
	if radical.Uint64() != 2_234_953 {
		t.Fatalf("expected 2234953, got %s", radical.Dec())
	}
}
