package transformer

import (
	"testing"

	"github.com/holiman/uint256"

	"launchforge/native/numeric"
)

func TestAllocateOneTokenAtCost(t *testing.T) {
	tokens, refund, err := allocate(uint256.NewInt(0), uint256.NewInt(0), TokenCost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens.Cmp(Scale) != 0 {
		t.Fatalf("expected one whole token (%s), got %s", Scale.Dec(), tokens.Dec())
	}
	if !refund.IsZero() {
		t.Fatalf("expected zero refund, got %s", refund.Dec())
	}
}

func TestAllocateFloorsDust(t *testing.T) {
	// A contribution that is not an exact multiple of TokenCost buys the
	// floored number of tokens; the remainder stays with the protocol.
	contribution, err := numeric.Add(TokenCost, numeric.U64(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens, refund, err := allocate(uint256.NewInt(0), uint256.NewInt(0), contribution)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens.Cmp(Scale) != 0 {
		t.Fatalf("expected one whole token, got %s", tokens.Dec())
	}
	if !refund.IsZero() {
		t.Fatalf("dust must not be refunded, got %s", refund.Dec())
	}
}

func TestAllocateClipsAtMaxSupply(t *testing.T) {
	// Fill the window to one token short of the cap, then contribute enough
	// for two tokens: the purchase is clipped and the unfundable excess is
	// returned exactly.
	soldBefore, err := numeric.Sub(MaxSupply, Scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contributedBefore, err := numeric.Sub(MaxInvest, TokenCost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contribution, err := numeric.Mul(TokenCost, numeric.U64(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens, refund, err := allocate(contributedBefore, soldBefore, contribution)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens.Cmp(Scale) != 0 {
		t.Fatalf("expected clipped allocation of one token, got %s", tokens.Dec())
	}
	wantRefund, err := numeric.Sub(contribution, TokenCost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refund.Cmp(wantRefund) != 0 {
		t.Fatalf("expected refund %s, got %s", wantRefund.Dec(), refund.Dec())
	}
}

func TestAllocateReferenceAmounts(t *testing.T) {
	// Reference pricing: 2000 / 4000 / 6000 base units (at 1e9 decimals)
	// buy 2,640,002 / 5,280,005 / 7,920,007 whole tokens respectively.
	cases := []struct {
		contribution string
		wantTokens   string
	}{
		{"2000000000000", "2640002000000000"},
		{"4000000000000", "5280005000000000"},
		{"6000000000000", "7920007000000000"},
	}
	for _, tc := range cases {
		tokens, refund, err := allocate(uint256.NewInt(0), uint256.NewInt(0), numeric.MustU256(tc.contribution))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tokens.Dec() != tc.wantTokens {
			t.Fatalf("contribution %s: expected %s tokens, got %s", tc.contribution, tc.wantTokens, tokens.Dec())
		}
		if !refund.IsZero() {
			t.Fatalf("contribution %s: unexpected refund %s", tc.contribution, refund.Dec())
		}
	}
}
