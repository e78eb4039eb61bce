package transformer

import "errors"

var (
	errNilState = errors.New("transformer engine: state not configured")
	errNilBank  = errors.New("transformer engine: bank not configured")
	errNilPorts = errors.New("transformer engine: external ports not configured")

	// Phase violations.
	ErrWrongInvestmentDay     = errors.New("transformer: outside investment day window")
	ErrOngoingInvestmentPhase = errors.New("transformer: investment phase still ongoing")
	ErrAlreadySettled         = errors.New("transformer: liquidity already settled")
	ErrSettleFirst            = errors.New("transformer: settle liquidity first")
	ErrRefundNotPossible      = errors.New("transformer: refund not possible")

	// Economic limits.
	ErrMaxSupplyReached       = errors.New("transformer: max token supply reached")
	ErrMinInvestNotMet        = errors.New("transformer: contribution below minimum")
	ErrInvalidMode            = errors.New("transformer: invalid investment mode")
	ErrInvestmentBelowMinimum = errors.New("transformer: swapped amount below minimum")
	ErrCustodyShortfall       = errors.New("transformer: custody cannot cover settlement")

	// Authorization.
	ErrNotKeeper = errors.New("transformer: caller is not the keeper")
)
