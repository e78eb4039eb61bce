package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"launchforge/native/synth"
)

const (
	codeSynthInvalidParams = -32041
	codeSynthDisabled      = -32042
	codeSynthForbidden     = -32043
	codeSynthInternal      = -32044
)

type synthAmountParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type synthCallerParams struct {
	Caller string `json:"caller"`
}

type synthCreatePairParams struct {
	Caller string `json:"caller"`
	Pair   string `json:"pair"`
}

type synthRegisterTransformerParams struct {
	Caller      string `json:"caller"`
	Transformer string `json:"transformer"`
}

type synthAddLPTokensParams struct {
	Caller      string `json:"caller"`
	From        string `json:"from"`
	Amount      string `json:"amount"`
	TokenAmount string `json:"tokenAmount"`
}

type synthForwardOwnershipParams struct {
	Caller    string `json:"caller"`
	NewMaster string `json:"newMaster"`
}

type synthReservesResult struct {
	Wrapped   string `json:"wrapped"`
	Synthetic string `json:"synthetic"`
}

type synthLifecycleResult struct {
	AllowDeposit  bool   `json:"allowDeposit"`
	TokenDefined  bool   `json:"tokenDefined"`
	HelperDefined bool   `json:"helperDefined"`
	BypassEnabled bool   `json:"bypassEnabled"`
	Master        string `json:"master"`
}

func writeSynthError(w http.ResponseWriter, id interface{}, err error) {
	code := codeSynthInternal
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, synth.ErrDepositsDisabled), errors.Is(err, synth.ErrDepositsAlreadyOpen):
		code = codeSynthDisabled
		status = http.StatusConflict
	case errors.Is(err, synth.ErrNotMaster), errors.Is(err, synth.ErrNotTransformer):
		code = codeSynthForbidden
		status = http.StatusForbidden
	case errors.Is(err, synth.ErrAlreadyDefined), errors.Is(err, synth.ErrHandshakeMismatch):
		code = codeSynthDisabled
		status = http.StatusConflict
	}
	writeError(w, status, id, code, err.Error(), nil)
}

func (s *Server) decodeSynthAmount(w http.ResponseWriter, req *RPCRequest) ([20]byte, string, bool) {
	var zero [20]byte
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", "exactly one parameter object expected")
		return zero, "", false
	}
	var params synthAmountParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return zero, "", false
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return zero, "", false
	}
	return from, params.Amount, true
}

func (s *Server) handleSynthDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	from, rawAmount, ok := s.decodeSynthAmount(w, req)
	if !ok {
		return
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.synth.Deposit(from, amount); err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"accepted": true})
}

func (s *Server) handleSynthWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	from, rawAmount, ok := s.decodeSynthAmount(w, req)
	if !ok {
		return
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.synth.Withdraw(from, amount); err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"accepted": true})
}

func (s *Server) handleSynthReceive(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	from, rawAmount, ok := s.decodeSynthAmount(w, req)
	if !ok {
		return
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.synth.Receive(from, amount); err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"accepted": true})
}

func (s *Server) decodeSynthCaller(w http.ResponseWriter, req *RPCRequest) ([20]byte, bool) {
	var zero [20]byte
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", "exactly one parameter object expected")
		return zero, false
	}
	var params synthCallerParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return zero, false
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return zero, false
	}
	return caller, true
}

func (s *Server) handleSynthDefineToken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeSynthCaller(w, req)
	if !ok {
		return
	}
	if err := s.synth.DefineToken(caller); err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"defined": true})
}

func (s *Server) handleSynthDefineHelper(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeSynthCaller(w, req)
	if !ok {
		return
	}
	if err := s.synth.DefineHelper(caller); err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"defined": true})
}

func (s *Server) handleSynthCreatePair(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params synthCreatePairParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	pair, err := parseAddress(params.Pair)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.synth.CreatePair(caller, pair); err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"pair": formatAddress(pair)})
}

func (s *Server) handleSynthRegisterTransformer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params synthRegisterTransformerParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	transformerAddr, err := parseAddress(params.Transformer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.synth.RegisterTransformer(caller, transformerAddr); err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"registered": true})
}

func (s *Server) handleSynthAddLPTokens(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params synthAddLPTokensParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	tokenAmount, err := parseAmount(params.TokenAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.synth.AddLPTokens(caller, from, amount, tokenAmount); err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"accepted": true})
}

func (s *Server) handleSynthForwardOwnership(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params synthForwardOwnershipParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	newMaster, err := parseAddress(params.NewMaster)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSynthInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.synth.ForwardOwnership(caller, newMaster); err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"forwarded": true})
}

func (s *Server) handleSynthRenounceOwnership(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, ok := s.decodeSynthCaller(w, req)
	if !ok {
		return
	}
	if err := s.synth.RenounceOwnership(caller); err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"renounced": true})
}

func (s *Server) handleSynthEvaluation(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	evaluation, err := s.synth.Evaluation()
	if err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"evaluation": evaluation.Dec()})
}

func (s *Server) handleSynthCachedEvaluation(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	evaluation, err := s.synth.CachedEvaluation()
	if err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"evaluation": evaluation.Dec()})
}

func (s *Server) handleSynthLiquidityPercent(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	percent, err := s.synth.LiquidityPercent()
	if err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"liquidityPercent": percent.Dec()})
}

func (s *Server) handleSynthReserves(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	wrapped, synthetic, err := s.synth.PairReserves()
	if err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, synthReservesResult{
		Wrapped:   wrapped.Dec(),
		Synthetic: synthetic.Dec(),
	})
}

func (s *Server) handleSynthLifecycle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	lifecycle, err := s.synth.Lifecycle()
	if err != nil {
		writeSynthError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, synthLifecycleResult{
		AllowDeposit:  lifecycle.AllowDeposit,
		TokenDefined:  lifecycle.TokenDefined,
		HelperDefined: lifecycle.HelperDefined,
		BypassEnabled: lifecycle.BypassEnabled,
		Master:        formatAddress(lifecycle.Master),
	})
}
