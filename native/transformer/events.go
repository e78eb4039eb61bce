package transformer

import (
	"encoding/hex"
	"strconv"

	"github.com/holiman/uint256"

	"launchforge/core/types"
)

const (
	EventTypeReservation    = "transformer.reservation"
	EventTypeCashBackIssued = "transformer.cashback_issued"
	EventTypeRefundIssued   = "transformer.refund_issued"
	EventTypeSwapResult     = "transformer.swap_result"
	EventTypeRedeemed       = "transformer.redeemed"
)

// NewReservationEvent captures a recorded contribution.
func NewReservationEvent(investor [20]byte, amount, tokens *uint256.Int, day uint64, mode uint8) *types.Event {
	return &types.Event{
		Type: EventTypeReservation,
		Attributes: map[string]string{
			"investor": hex.EncodeToString(investor[:]),
			"amount":   amountString(amount),
			"tokens":   amountString(tokens),
			"day":      strconv.FormatUint(day, 10),
			"mode":     strconv.FormatUint(uint64(mode), 10),
		},
	}
}

// NewCashBackEvent captures a mode-0 cash-back payment.
func NewCashBackEvent(investor [20]byte, senderValue, cashBack *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeCashBackIssued,
		Attributes: map[string]string{
			"investor":    hex.EncodeToString(investor[:]),
			"senderValue": amountString(senderValue),
			"cashBack":    amountString(cashBack),
		},
	}
}

// NewRefundEvent captures base currency returned to an investor, either as
// cap-clipping excess or as a failure-window refund.
func NewRefundEvent(investor [20]byte, amount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRefundIssued,
		Attributes: map[string]string{
			"investor": hex.EncodeToString(investor[:]),
			"amount":   amountString(amount),
		},
	}
}

// NewSwapResultEvent captures the realized settlement liquidity.
func NewSwapResultEvent(amountTokenA, amountTokenB, liquidity *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeSwapResult,
		Attributes: map[string]string{
			"amountTokenA": amountString(amountTokenA),
			"amountTokenB": amountString(amountTokenB),
			"liquidity":    amountString(liquidity),
		},
	}
}

// NewRedeemedEvent captures a post-settlement claim-token payout.
func NewRedeemedEvent(investor [20]byte, amount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRedeemed,
		Attributes: map[string]string{
			"investor": hex.EncodeToString(investor[:]),
			"amount":   amountString(amount),
		},
	}
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
