package transformer

import (
	"github.com/holiman/uint256"

	"launchforge/native/numeric"
)

// allocate converts a contribution into claim tokens against the running
// aggregates. Division truncates toward zero: the unspent remainder when the
// contribution is not an exact multiple of TokenCost stays with the protocol
// and is not refunded or accounted anywhere.
//
// When the allocation would breach MaxSupply the purchase is clipped to the
// remaining headroom and the unfundable excess is returned exactly as
// contribution - (MaxInvest - totalContributed). This clip and the cash-back
// cap clip are the only two places saturation is allowed; every other
// arithmetic failure aborts the call.
func allocate(totalContributed, totalTokensSold, contribution *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	units, err := numeric.Div(contribution, TokenCost)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := numeric.Mul(units, Scale)
	if err != nil {
		return nil, nil, err
	}

	newSupply, err := numeric.Add(totalTokensSold, tokens)
	if err != nil {
		return nil, nil, err
	}

	refund := uint256.NewInt(0)
	if newSupply.Gt(MaxSupply) {
		tokens, err = numeric.Sub(MaxSupply, totalTokensSold)
		if err != nil {
			return nil, nil, err
		}
		available, err := numeric.Sub(MaxInvest, totalContributed)
		if err != nil {
			return nil, nil, err
		}
		refund, err = numeric.Sub(contribution, available)
		if err != nil {
			return nil, nil, err
		}
	}
	return tokens, refund, nil
}
