package synth

import "github.com/holiman/uint256"

// engineState is the persistent state the peg engine needs. Implementations
// must return deep copies; the engine writes back explicitly.
type engineState interface {
	LifecycleGet() (*Lifecycle, error)
	LifecyclePut(*Lifecycle) error
	SettingsGet() (*Settings, error)
	SettingsPut(*Settings) error
	EvaluationGet() (*uint256.Int, error)
	EvaluationPut(*uint256.Int) error
}

// Settings references the collaborating contracts.
type Settings struct {
	Pair         [20]byte
	WrappedToken [20]byte
	Transformer  [20]byte
}

// Clone returns a copy of the settings.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return &Settings{}
	}
	clone := *s
	return &clone
}

// Ledger is the synthetic token supply. The engine mints and burns against it
// during rebalancing; pair reserves on the synthetic side are read from it.
type Ledger interface {
	Mint(to [20]byte, amount *uint256.Int) error
	Burn(from [20]byte, amount *uint256.Int) error
	BalanceOf(holder [20]byte) (*uint256.Int, error)
}

// Wrapped is the wrapped base-currency token. Deposit wraps vault funds into
// wrapped tokens held by the engine; Withdraw unwraps engine-held wrapped
// tokens back into the vault.
type Wrapped interface {
	BalanceOf(holder [20]byte) (*uint256.Int, error)
	Deposit(amount *uint256.Int) error
	Withdraw(amount *uint256.Int) error
}

// Pair is the AMM pair holding the wrapped/synthetic reserves.
type Pair interface {
	TotalSupply() (*uint256.Int, error)
	LPBalance(holder [20]byte) (*uint256.Int, error)
	Skim(to [20]byte) error
	TransferFrom(owner, recipient [20]byte, amount *uint256.Int) error
}

// Router is the AMM router surface used by the rebalancer. Liquidity legs are
// always reported wrapped-first.
type Router interface {
	AddLiquidity(amountWrapped, amountSynthetic, minWrapped, minSynthetic *uint256.Int, to [20]byte, deadline uint64) (*uint256.Int, *uint256.Int, *uint256.Int, error)
	RemoveLiquidity(liquidity *uint256.Int, deadline uint64) (*uint256.Int, *uint256.Int, error)
	// SwapWrappedForSynthetic delivers the output to the transfer helper.
	SwapWrappedForSynthetic(amountIn, minOut *uint256.Int, deadline uint64) (*uint256.Int, error)
	// SwapSyntheticForWrapped delivers the output to the transfer helper.
	SwapSyntheticForWrapped(amountIn, minOut *uint256.Int, deadline uint64) (*uint256.Int, error)
}

// Vault holds the engine's base currency. Credit pulls funds in from an
// account; Pay sends funds out.
type Vault interface {
	Balance() (*uint256.Int, error)
	Credit(from [20]byte, amount *uint256.Int) error
	Pay(to [20]byte, amount *uint256.Int) error
}

// Helper is the transfer helper that receives swap outputs and forwards them
// back to the engine.
type Helper interface {
	InvokerAddress() ([20]byte, error)
	ForwardFunds(token [20]byte, amount *uint256.Int) error
}

// Factory creates AMM pairs.
type Factory interface {
	CreatePair(tokenA, tokenB, pair [20]byte) error
}

// Registry resolves the synthetic token address advertised by the launch
// contract, used for the DefineToken handshake.
type Registry interface {
	SyntheticAddress() ([20]byte, error)
}
