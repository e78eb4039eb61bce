package synth

// Lifecycle centralizes every one-shot latch and the master capability. All
// transition checks live on this struct so no operation tests a raw boolean
// directly.
type Lifecycle struct {
	AllowDeposit  bool
	TokenDefined  bool
	HelperDefined bool
	BypassEnabled bool
	Master        [20]byte
}

var zeroAddress = [20]byte{}

// Clone returns a copy of the lifecycle record.
func (l *Lifecycle) Clone() *Lifecycle {
	if l == nil {
		return &Lifecycle{}
	}
	clone := *l
	return &clone
}

func ensureLifecycle(l *Lifecycle) *Lifecycle {
	if l == nil {
		return &Lifecycle{}
	}
	return l
}

// RequireMaster authorizes a master-gated operation. The master capability is
// one-way revocable: once renounced to the zero address nothing passes.
func (l *Lifecycle) RequireMaster(caller [20]byte) error {
	if l.Master == zeroAddress || caller != l.Master {
		return ErrNotMaster
	}
	return nil
}

// RequireDeposits gates the public deposit surface on the FormLiquidity latch.
func (l *Lifecycle) RequireDeposits() error {
	if !l.AllowDeposit {
		return ErrDepositsDisabled
	}
	return nil
}

// RequireBootstrap gates the transformer-only bootstrap operations, which are
// valid only before deposits open.
func (l *Lifecycle) RequireBootstrap() error {
	if l.AllowDeposit {
		return ErrDepositsAlreadyOpen
	}
	return nil
}

// OpenDeposits flips the deposit latch exactly once.
func (l *Lifecycle) OpenDeposits() error {
	if l.AllowDeposit {
		return ErrDepositsAlreadyOpen
	}
	l.AllowDeposit = true
	return nil
}

// MarkTokenDefined sets the token handshake latch exactly once.
func (l *Lifecycle) MarkTokenDefined() error {
	if l.TokenDefined {
		return ErrAlreadyDefined
	}
	l.TokenDefined = true
	return nil
}

// MarkHelperDefined sets the helper handshake latch exactly once.
func (l *Lifecycle) MarkHelperDefined() error {
	if l.HelperDefined {
		return ErrAlreadyDefined
	}
	l.HelperDefined = true
	return nil
}
