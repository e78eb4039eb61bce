package synth

import "errors"

var (
	errNilState = errors.New("synth engine: state not configured")
	errNilPorts = errors.New("synth engine: required port not configured")

	// ErrNotMaster is returned when a master-gated operation is called by
	// anyone else, including after ownership has been renounced.
	ErrNotMaster = errors.New("synth engine: caller is not master")
	// ErrNotTransformer is returned when a transformer-only operation is
	// called by anyone other than the registered transformer.
	ErrNotTransformer = errors.New("synth engine: caller is not the registered transformer")
	// ErrDepositsDisabled is returned by Deposit and Receive before
	// FormLiquidity has opened the deposit window.
	ErrDepositsDisabled = errors.New("synth engine: deposits are disabled")
	// ErrDepositsAlreadyOpen is returned by the bootstrap operations once
	// FormLiquidity has run.
	ErrDepositsAlreadyOpen = errors.New("synth engine: deposits already open")
	// ErrAlreadyDefined is returned when DefineToken or DefineHelper is
	// retried after its one-shot latch has been set.
	ErrAlreadyDefined = errors.New("synth engine: already defined")
	// ErrHandshakeMismatch is returned when a collaborator's back-pointer
	// does not resolve to this contract.
	ErrHandshakeMismatch = errors.New("synth engine: handshake mismatch")
)
