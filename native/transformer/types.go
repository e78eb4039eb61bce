package transformer

import (
	"github.com/holiman/uint256"

	"launchforge/native/numeric"
)

// Phase is the derived lifecycle state of the investment window. Terminal
// phases are sticky: once Settled or Refundable, the window never reopens.
type Phase uint8

const (
	// PhasePending precedes launch (day 0).
	PhasePending Phase = iota
	// PhaseOpen accepts contributions (days 1..InvestmentDays).
	PhaseOpen
	// PhaseAwaitingSettlement follows the window close and precedes Settle.
	PhaseAwaitingSettlement
	// PhaseSettled enables redemption; entered by a successful Settle.
	PhaseSettled
	// PhaseRefundable enables refunds when Settle never happened within the
	// grace window.
	PhaseRefundable
)

// String renders the phase for logs and events.
func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseOpen:
		return "open"
	case PhaseAwaitingSettlement:
		return "awaiting_settlement"
	case PhaseSettled:
		return "settled"
	case PhaseRefundable:
		return "refundable"
	default:
		return "unknown"
	}
}

// Globals is the singleton aggregate state mutated by every contribution.
type Globals struct {
	TotalContributed *uint256.Int
	TotalTokensSold  *uint256.Int
	InvestorCount    uint64
	CashBackTotal    *uint256.Int
	Settled          bool
}

// Clone returns a deep copy so callers cannot mutate shared pointers.
func (g *Globals) Clone() *Globals {
	if g == nil {
		return &Globals{
			TotalContributed: uint256.NewInt(0),
			TotalTokensSold:  uint256.NewInt(0),
			CashBackTotal:    uint256.NewInt(0),
		}
	}
	return &Globals{
		TotalContributed: numeric.Clone(g.TotalContributed),
		TotalTokensSold:  numeric.Clone(g.TotalTokensSold),
		InvestorCount:    g.InvestorCount,
		CashBackTotal:    numeric.Clone(g.CashBackTotal),
		Settled:          g.Settled,
	}
}

func ensureGlobals(g *Globals) *Globals {
	if g == nil {
		return (*Globals)(nil).Clone()
	}
	if g.TotalContributed == nil {
		g.TotalContributed = uint256.NewInt(0)
	}
	if g.TotalTokensSold == nil {
		g.TotalTokensSold = uint256.NewInt(0)
	}
	if g.CashBackTotal == nil {
		g.CashBackTotal = uint256.NewInt(0)
	}
	return g
}

// InvestorRecord tracks one investor's cumulative position. Records are
// created lazily on first contribution and zeroed, never deleted, on refund
// or payout.
type InvestorRecord struct {
	Contributed     *uint256.Int
	TokensPurchased *uint256.Int
}

// Clone returns a deep copy of the record.
func (r *InvestorRecord) Clone() *InvestorRecord {
	if r == nil {
		return &InvestorRecord{
			Contributed:     uint256.NewInt(0),
			TokensPurchased: uint256.NewInt(0),
		}
	}
	return &InvestorRecord{
		Contributed:     numeric.Clone(r.Contributed),
		TokensPurchased: numeric.Clone(r.TokensPurchased),
	}
}

func ensureInvestor(r *InvestorRecord) *InvestorRecord {
	if r == nil {
		return (*InvestorRecord)(nil).Clone()
	}
	if r.Contributed == nil {
		r.Contributed = uint256.NewInt(0)
	}
	if r.TokensPurchased == nil {
		r.TokensPurchased = uint256.NewInt(0)
	}
	return r
}

// Settings references the collaborating contracts and the privileged keeper.
// The keeper capability is one-way revocable: once set to the zero address no
// keeper-gated operation can ever succeed again.
type Settings struct {
	ClaimToken  [20]byte
	Pair        [20]byte
	Synthetic   [20]byte
	WrappedBase [20]byte
	Keeper      [20]byte
}

// Clone returns a copy of the settings.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return &Settings{}
	}
	clone := *s
	return &clone
}
