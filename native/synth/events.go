package synth

import (
	"encoding/hex"

	"github.com/holiman/uint256"

	"launchforge/core/types"
)

const (
	EventTypeDepositedLiquidity = "synth.deposited_liquidity"
	EventTypeWithdrawal         = "synth.withdrawal"
	EventTypeFormedLiquidity    = "synth.formed_liquidity"
	EventTypeLiquidityRemoved   = "synth.liquidity_removed"
	EventTypeLiquidityAdded     = "synth.liquidity_added"
	EventTypeFeesToMaster       = "synth.fees_to_master"
	EventTypeMasterProfit       = "synth.master_profit"
	EventTypeArbitrageProfit    = "synth.arbitrage_profit"
)

// NewDepositedLiquidityEvent captures an inbound deposit.
func NewDepositedLiquidityEvent(depositor [20]byte, amount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDepositedLiquidity,
		Attributes: map[string]string{
			"depositor": hex.EncodeToString(depositor[:]),
			"amount":    amountString(amount),
		},
	}
}

// NewWithdrawalEvent captures a synthetic-to-base withdrawal.
func NewWithdrawalEvent(from [20]byte, tokenAmount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawal,
		Attributes: map[string]string{
			"from":        hex.EncodeToString(from[:]),
			"tokenAmount": amountString(tokenAmount),
		},
	}
}

// NewFormedLiquidityEvent captures the one-time liquidity bootstrap.
func NewFormedLiquidityEvent(coverAmount, amountWrapped, amountSynthetic, liquidity *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFormedLiquidity,
		Attributes: map[string]string{
			"coverAmount":     amountString(coverAmount),
			"amountWrapped":   amountString(amountWrapped),
			"amountSynthetic": amountString(amountSynthetic),
			"liquidity":       amountString(liquidity),
		},
	}
}

// NewLiquidityRemovedEvent captures both legs of a liquidity removal.
func NewLiquidityRemovedEvent(amountWrapped, amountSynthetic *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeLiquidityRemoved,
		Attributes: map[string]string{
			"amountWrapped":   amountString(amountWrapped),
			"amountSynthetic": amountString(amountSynthetic),
		},
	}
}

// NewLiquidityAddedEvent captures both legs and the minted liquidity of a
// liquidity addition.
func NewLiquidityAddedEvent(amountWrapped, amountSynthetic, liquidity *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeLiquidityAdded,
		Attributes: map[string]string{
			"amountWrapped":   amountString(amountWrapped),
			"amountSynthetic": amountString(amountSynthetic),
			"liquidity":       amountString(liquidity),
		},
	}
}

// NewFeesToMasterEvent captures a harvested trading fee.
func NewFeesToMasterEvent(amountWrapped *uint256.Int, master [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeFeesToMaster,
		Attributes: map[string]string{
			"amountWrapped": amountString(amountWrapped),
			"master":        hex.EncodeToString(master[:]),
		},
	}
}

// NewMasterProfitEvent captures base currency swept to the master.
func NewMasterProfitEvent(amount *uint256.Int, master [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeMasterProfit,
		Attributes: map[string]string{
			"amount": amountString(amount),
			"master": hex.EncodeToString(master[:]),
		},
	}
}

// NewArbitrageProfitEvent captures the wrapped leg realized by an arbitrage
// pass.
func NewArbitrageProfitEvent(amountWrapped *uint256.Int, master [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeArbitrageProfit,
		Attributes: map[string]string{
			"amountWrapped": amountString(amountWrapped),
			"master":        hex.EncodeToString(master[:]),
		},
	}
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
