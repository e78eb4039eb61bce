package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"launchforge/native/transformer"
)

const (
	codeLaunchInvalidParams = -32031
	codeLaunchWrongPhase    = -32032
	codeLaunchLimitReached  = -32033
	codeLaunchForbidden     = -32034
	codeLaunchInternal      = -32035
)

type launchContributeParams struct {
	Investor string `json:"investor"`
	Amount   string `json:"amount"`
	Mode     uint8  `json:"mode"`
}

type launchContributeTokenParams struct {
	Investor string `json:"investor"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Mode     uint8  `json:"mode"`
}

type launchInvestorParams struct {
	Address string `json:"address"`
}

type launchFundParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type launchConfigureParams struct {
	Caller     string `json:"caller"`
	ClaimToken string `json:"claimToken"`
	Pair       string `json:"pair"`
	Synthetic  string `json:"synthetic"`
}

type launchCallerParams struct {
	Caller string `json:"caller"`
}

type launchSwapPathParams struct {
	Token string `json:"token"`
}

type launchSwapPathResult struct {
	Path []string `json:"path"`
}

type launchGlobalsResult struct {
	TotalContributed string `json:"totalContributed"`
	TotalTokensSold  string `json:"totalTokensSold"`
	InvestorCount    uint64 `json:"investorCount"`
	CashBackTotal    string `json:"cashBackTotal"`
	Settled          bool   `json:"settled"`
}

type launchInvestorResult struct {
	Address         string `json:"address"`
	Contributed     string `json:"contributed"`
	TokensPurchased string `json:"tokensPurchased"`
}

type launchPayoutResult struct {
	Payout string `json:"payout"`
}

type launchRefundResult struct {
	RefundedBase   string `json:"refundedBase"`
	ReleasedTokens string `json:"releasedTokens"`
}

func launchErrorCode(err error) int {
	switch {
	case errors.Is(err, transformer.ErrWrongInvestmentDay),
		errors.Is(err, transformer.ErrOngoingInvestmentPhase),
		errors.Is(err, transformer.ErrAlreadySettled),
		errors.Is(err, transformer.ErrSettleFirst),
		errors.Is(err, transformer.ErrRefundNotPossible):
		return codeLaunchWrongPhase
	case errors.Is(err, transformer.ErrMaxSupplyReached),
		errors.Is(err, transformer.ErrMinInvestNotMet),
		errors.Is(err, transformer.ErrInvestmentBelowMinimum),
		errors.Is(err, transformer.ErrCustodyShortfall):
		return codeLaunchLimitReached
	case errors.Is(err, transformer.ErrInvalidMode):
		return codeLaunchInvalidParams
	case errors.Is(err, transformer.ErrNotKeeper):
		return codeLaunchForbidden
	default:
		return codeLaunchInternal
	}
}

func writeLaunchError(w http.ResponseWriter, id interface{}, err error) {
	code := launchErrorCode(err)
	status := http.StatusConflict
	switch code {
	case codeLaunchInvalidParams:
		status = http.StatusBadRequest
	case codeLaunchForbidden:
		status = http.StatusForbidden
	case codeLaunchInternal:
		status = http.StatusInternalServerError
	}
	writeError(w, status, id, code, err.Error(), nil)
}

func (s *Server) handleLaunchContribute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params launchContributeParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	investor, err := parseAddress(params.Investor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.transformer.Contribute(investor, amount, params.Mode); err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"accepted": true})
}

func (s *Server) handleLaunchContributeWithToken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params launchContributeTokenParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	investor, err := parseAddress(params.Investor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	token, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.transformer.ContributeWithToken(investor, token, amount, params.Mode); err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"accepted": true})
}

func (s *Server) handleLaunchSettle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if err := s.transformer.Settle(); err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"settled": true})
}

func (s *Server) handleLaunchRedeem(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params launchInvestorParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	investor, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	payout, err := s.transformer.Redeem(investor)
	if err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, launchPayoutResult{Payout: payout.Dec()})
}

func (s *Server) handleLaunchRequestRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params launchInvestorParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	investor, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	refunded, released, err := s.transformer.RequestRefund(investor)
	if err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, launchRefundResult{
		RefundedBase:   refunded.Dec(),
		ReleasedTokens: released.Dec(),
	})
}

func (s *Server) handleLaunchFund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params launchFundParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.transformer.Fund(from, amount); err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"funded": true})
}

func (s *Server) handleLaunchConfigure(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params launchConfigureParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	claimToken, err := parseAddress(params.ClaimToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	pair, err := parseAddress(params.Pair)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	synthetic, err := parseAddress(params.Synthetic)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.transformer.Configure(caller, claimToken, pair, synthetic); err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"configured": true})
}

func (s *Server) handleLaunchRenounceKeeper(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params launchCallerParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.transformer.RenounceKeeper(caller); err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"renounced": true})
}

func (s *Server) handleLaunchSwapPath(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params launchSwapPathParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	token, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	path, err := s.transformer.BuildSwapPath(token)
	if err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, launchSwapPathResult{
		Path: []string{formatAddress(path[0]), formatAddress(path[1])},
	})
}

func (s *Server) handleLaunchCurrentDay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]uint64{"day": s.transformer.CurrentDay()})
}

func (s *Server) handleLaunchPhase(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	phase, err := s.transformer.CurrentPhase()
	if err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"phase": phase.String()})
}

func (s *Server) handleLaunchGlobals(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	globals, err := s.transformer.Globals()
	if err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, launchGlobalsResult{
		TotalContributed: globals.TotalContributed.Dec(),
		TotalTokensSold:  globals.TotalTokensSold.Dec(),
		InvestorCount:    globals.InvestorCount,
		CashBackTotal:    globals.CashBackTotal.Dec(),
		Settled:          globals.Settled,
	})
}

func (s *Server) handleLaunchInvestor(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params launchInvestorParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLaunchInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := s.transformer.Investor(addr)
	if err != nil {
		writeLaunchError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, launchInvestorResult{
		Address:         formatAddress(addr),
		Contributed:     record.Contributed.Dec(),
		TokensPurchased: record.TokensPurchased.Dec(),
	})
}
