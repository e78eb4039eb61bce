package main

import (
	"sync"

	"github.com/holiman/uint256"

	"launchforge/core/events"
	"launchforge/native/synth"
	"launchforge/native/transformer"
	"launchforge/state"
)

// stateViews is satisfied by both the store and one of its transactions.
type stateViews interface {
	Transformer() *state.TransformerState
	Synth() *state.SynthState
	SynthLedger() *state.SynthLedger
	BaseLedger() *state.BaseLedger
	TokenLedger() *state.TokenLedger
}

// node is the RPC-facing facade over both engines. Mutating operations are
// serialized behind one mutex and scoped to a single store transaction, so a
// failure rolls back every state and ledger write the operation made. Events
// are buffered and forwarded only after the transaction commits.
type node struct {
	mu         sync.Mutex
	store      *state.Store
	addrs      *addresses
	launchTime int64
	bridge     *bridgeClient
	emitter    events.Emitter
}

func newNode(store *state.Store, addrs *addresses, launchTime int64, bridge *bridgeClient, emitter events.Emitter) *node {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &node{
		store:      store,
		addrs:      addrs,
		launchTime: launchTime,
		bridge:     bridge,
		emitter:    emitter,
	}
}

// eventBuffer holds engine events until the enclosing transaction commits.
type eventBuffer struct {
	buffered []events.Event
}

func (b *eventBuffer) Emit(evt events.Event) { b.buffered = append(b.buffered, evt) }

// engines wires both engines against the given state views. With a
// transaction as the view source every port write lands in that transaction.
func (n *node) engines(views stateViews, emitter events.Emitter) (*transformer.Engine, *synth.Engine) {
	base := views.BaseLedger()
	tokens := views.TokenLedger()

	peg := synth.NewEngine()
	peg.SetState(views.Synth())
	peg.SetLedger(views.SynthLedger())
	peg.SetWrapped(&wrappedAdapter{
		base:   base,
		tokens: tokens,
		token:  n.addrs.wrappedBase,
		vault:  n.addrs.syntheticToken,
		holder: n.addrs.syntheticToken,
	})
	peg.SetVault(&vaultAdapter{ledger: base, vault: n.addrs.syntheticToken})
	peg.SetRegistry(&registryAdapter{state: views.Transformer()})
	peg.SetContractAddress(n.addrs.syntheticToken)
	peg.SetEmitter(emitter)

	launch := transformer.NewEngine()
	launch.SetState(views.Transformer())
	launch.SetBank(&bankAdapter{ledger: base, custody: n.addrs.transformer})
	launch.SetMinter(&minterAdapter{tokens: tokens, token: n.addrs.claimToken})
	launch.SetTokenTransfer(&tokenTransferAdapter{tokens: tokens})
	launch.SetSynthetic(&syntheticAdapter{
		engine:      peg,
		transformer: n.addrs.transformer,
		funds:       n.addrs.syntheticToken,
	})
	launch.SetContractAddress(n.addrs.transformer)
	launch.SetLaunchTime(n.launchTime)
	launch.SetEmitter(emitter)

	if n.bridge != nil {
		mirror := &ledgerMirror{
			base:      base,
			tokens:    tokens,
			synthetic: views.SynthLedger(),
			pair:      n.addrs.liquidityPair,
			wrapped:   n.addrs.wrappedBase,
			contract:  n.addrs.syntheticToken,
			helper:    n.addrs.transferHelper,
			custody:   n.addrs.transformer,
		}
		launch.SetRouter(&launchRouter{client: n.bridge, mirror: mirror})
		peg.SetRouter(&pegRouter{client: n.bridge, pair: n.addrs.liquidityPair, mirror: mirror})
		peg.SetPair(&pegPair{client: n.bridge, pair: n.addrs.liquidityPair, mirror: mirror})
		peg.SetHelper(&pegHelper{client: n.bridge, mirror: mirror})
		peg.SetFactory(&pegFactory{client: n.bridge})
	}
	return launch, peg
}

func (n *node) write(fn func(launch *transformer.Engine, peg *synth.Engine) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	buffer := &eventBuffer{}
	if err := n.store.Update(func(tx *state.Tx) error {
		launch, peg := n.engines(tx, buffer)
		return fn(launch, peg)
	}); err != nil {
		return err
	}
	for _, evt := range buffer.buffered {
		n.emitter.Emit(evt)
	}
	return nil
}

func (n *node) read() (*transformer.Engine, *synth.Engine) {
	return n.engines(n.store, events.NoopEmitter{})
}

// --- investment engine surface --- //

func (n *node) Contribute(investor [20]byte, amount *uint256.Int, mode uint8) error {
	return n.write(func(launch *transformer.Engine, _ *synth.Engine) error {
		return launch.Contribute(investor, amount, mode)
	})
}

func (n *node) ContributeWithToken(investor, token [20]byte, amount *uint256.Int, mode uint8) error {
	return n.write(func(launch *transformer.Engine, _ *synth.Engine) error {
		return launch.ContributeWithToken(investor, token, amount, mode)
	})
}

func (n *node) Settle() error {
	return n.write(func(launch *transformer.Engine, _ *synth.Engine) error {
		return launch.Settle()
	})
}

func (n *node) Redeem(investor [20]byte) (*uint256.Int, error) {
	var payout *uint256.Int
	err := n.write(func(launch *transformer.Engine, _ *synth.Engine) error {
		var err error
		payout, err = launch.Redeem(investor)
		return err
	})
	return payout, err
}

func (n *node) RequestRefund(investor [20]byte) (*uint256.Int, *uint256.Int, error) {
	var refunded, released *uint256.Int
	err := n.write(func(launch *transformer.Engine, _ *synth.Engine) error {
		var err error
		refunded, released, err = launch.RequestRefund(investor)
		return err
	})
	return refunded, released, err
}

func (n *node) Fund(from [20]byte, amount *uint256.Int) error {
	return n.write(func(launch *transformer.Engine, _ *synth.Engine) error {
		return launch.Fund(from, amount)
	})
}

func (n *node) Configure(caller [20]byte, claimToken, pair, synthetic [20]byte) error {
	return n.write(func(launch *transformer.Engine, _ *synth.Engine) error {
		return launch.Configure(caller, claimToken, pair, synthetic)
	})
}

func (n *node) RenounceKeeper(caller [20]byte) error {
	return n.write(func(launch *transformer.Engine, _ *synth.Engine) error {
		return launch.RenounceKeeper(caller)
	})
}

func (n *node) BuildSwapPath(token [20]byte) ([2][20]byte, error) {
	launch, _ := n.read()
	return launch.BuildSwapPath(token)
}

func (n *node) CurrentDay() uint64 {
	launch, _ := n.read()
	return launch.CurrentDay()
}

func (n *node) CurrentPhase() (transformer.Phase, error) {
	launch, _ := n.read()
	return launch.CurrentPhase()
}

func (n *node) Globals() (*transformer.Globals, error) {
	launch, _ := n.read()
	return launch.Globals()
}

func (n *node) Investor(addr [20]byte) (*transformer.InvestorRecord, error) {
	launch, _ := n.read()
	return launch.Investor(addr)
}

// --- peg engine surface --- //

func (n *node) Deposit(from [20]byte, amount *uint256.Int) error {
	return n.write(func(_ *transformer.Engine, peg *synth.Engine) error {
		return peg.Deposit(from, amount)
	})
}

func (n *node) Withdraw(from [20]byte, tokenAmount *uint256.Int) error {
	return n.write(func(_ *transformer.Engine, peg *synth.Engine) error {
		return peg.Withdraw(from, tokenAmount)
	})
}

func (n *node) Receive(from [20]byte, amount *uint256.Int) error {
	return n.write(func(_ *transformer.Engine, peg *synth.Engine) error {
		return peg.Receive(from, amount)
	})
}

func (n *node) DefineToken(caller [20]byte) error {
	return n.write(func(_ *transformer.Engine, peg *synth.Engine) error {
		return peg.DefineToken(caller)
	})
}

func (n *node) DefineHelper(caller [20]byte) error {
	return n.write(func(_ *transformer.Engine, peg *synth.Engine) error {
		return peg.DefineHelper(caller)
	})
}

func (n *node) CreatePair(caller, pair [20]byte) error {
	return n.write(func(_ *transformer.Engine, peg *synth.Engine) error {
		return peg.CreatePair(caller, pair)
	})
}

func (n *node) RegisterTransformer(caller, transformerAddr [20]byte) error {
	return n.write(func(_ *transformer.Engine, peg *synth.Engine) error {
		return peg.RegisterTransformer(caller, transformerAddr)
	})
}

func (n *node) AddLPTokens(caller, from [20]byte, amount, tokenAmount *uint256.Int) error {
	return n.write(func(_ *transformer.Engine, peg *synth.Engine) error {
		return peg.AddLPTokens(caller, from, amount, tokenAmount)
	})
}

func (n *node) ForwardOwnership(caller, newMaster [20]byte) error {
	return n.write(func(_ *transformer.Engine, peg *synth.Engine) error {
		return peg.ForwardOwnership(caller, newMaster)
	})
}

func (n *node) RenounceOwnership(caller [20]byte) error {
	return n.write(func(_ *transformer.Engine, peg *synth.Engine) error {
		return peg.RenounceOwnership(caller)
	})
}

func (n *node) Evaluation() (*uint256.Int, error) {
	_, peg := n.read()
	return peg.Evaluation()
}

func (n *node) CachedEvaluation() (*uint256.Int, error) {
	_, peg := n.read()
	return peg.CachedEvaluation()
}

func (n *node) LiquidityPercent() (*uint256.Int, error) {
	_, peg := n.read()
	return peg.LiquidityPercent()
}

func (n *node) PairReserves() (*uint256.Int, *uint256.Int, error) {
	_, peg := n.read()
	return peg.PairReserves()
}

func (n *node) Lifecycle() (*synth.Lifecycle, error) {
	_, peg := n.read()
	return peg.Lifecycle()
}
