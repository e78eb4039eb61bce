package transformer

import "github.com/holiman/uint256"

// engineState is the subset of persistent state the transformer engine needs.
// Implementations must return deep copies; the engine writes back explicitly.
type engineState interface {
	GlobalsGet() (*Globals, error)
	GlobalsPut(*Globals) error
	SettingsGet() (*Settings, error)
	SettingsPut(*Settings) error
	InvestorGet(key [32]byte) (*InvestorRecord, error)
	InvestorPut(key [32]byte, rec *InvestorRecord) error
	UniqueInvestorPut(index uint64, addr [20]byte) error
	UniqueInvestorAt(index uint64) ([20]byte, bool, error)
}

// Bank moves base currency between investor accounts and the engine's custody
// purse. Every money movement in the engine goes through this port so the
// flows stay auditable.
type Bank interface {
	TransferToCustody(from [20]byte, amount *uint256.Int) error
	TransferFromCustody(to [20]byte, amount *uint256.Int) error
	CustodyBalance() (*uint256.Int, error)
}

// TokenMinter mints claim tokens. Settlement mints the pooled allocation to
// the engine's own custody; redemption mints directly to investors.
type TokenMinter interface {
	MintSupply(recipient [20]byte, amount *uint256.Int) error
}

// Router is the AMM router surface the engine consumes. Swap results report
// the realized output amount; the engine never inspects pool internals.
type Router interface {
	// SwapExactTokensForBase swaps amountIn of the path's first token into
	// base currency delivered to the engine custody. Returns the amounts
	// array as reported by the AMM: [amountIn, amountOut].
	SwapExactTokensForBase(amountIn *uint256.Int, path [2][20]byte, deadline uint64) ([2]*uint256.Int, error)
	// AddLiquidity supplies both legs to the pair with the given minimums.
	AddLiquidity(tokenA, tokenB [20]byte, amountA, amountB, minA, minB *uint256.Int, to [20]byte, deadline uint64) (*uint256.Int, *uint256.Int, *uint256.Int, error)
}

// TokenTransfer pulls an arbitrary token from a holder into the engine before
// the swap leg of a token contribution.
type TokenTransfer interface {
	TransferFrom(token, owner, recipient [20]byte, amount *uint256.Int) error
}

// Synthetic is the settlement hook on the synthetic-currency contract.
type Synthetic interface {
	LiquidityDeposit(amount *uint256.Int) error
	FormLiquidity(pair [20]byte) (*uint256.Int, error)
}
