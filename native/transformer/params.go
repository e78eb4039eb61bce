package transformer

import (
	"github.com/holiman/uint256"

	"launchforge/native/numeric"
)

// Investment window and pricing constants. TokenCost is the price of one
// whole claim token (Scale base units) in base currency.
const (
	InvestmentDays  = 15
	RefundGraceDays = 10
	secondsPerDay   = 86_400

	// Investment modes 0..5; mode 0 additionally qualifies for cash-back.
	maxInvestmentMode = 6
)

var (
	// MaxSupply is the hard cap on claim tokens allocated during the window:
	// 264,000,000 whole tokens at 1e9 base units each.
	MaxSupply = numeric.MustU256("264000000000000000")
	// MaxInvest is the total base currency the window can absorb: 200,000
	// units at 1e9.
	MaxInvest = numeric.MustU256("200000000000000")
	// TokenCost = MaxInvest / (MaxSupply / Scale), floored.
	TokenCost = numeric.MustU256("757575")
	// RefundCap bounds the cumulative cash-back paid to mode-0 investors.
	RefundCap = numeric.MustU256("100000000000")
	// Scale converts whole claim tokens to base units (1e9).
	Scale = uint256.NewInt(1_000_000_000)
)
