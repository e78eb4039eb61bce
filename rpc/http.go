package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"launchforge/native/synth"
	"launchforge/native/transformer"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// TransformerService is the slice of the investment engine the RPC
// surface needs.
type TransformerService interface {
	Contribute(investor [20]byte, amount *uint256.Int, mode uint8) error
	ContributeWithToken(investor, token [20]byte, amount *uint256.Int, mode uint8) error
	Settle() error
	Redeem(investor [20]byte) (*uint256.Int, error)
	RequestRefund(investor [20]byte) (*uint256.Int, *uint256.Int, error)
	Fund(from [20]byte, amount *uint256.Int) error
	Configure(caller [20]byte, claimToken, pair, synthetic [20]byte) error
	RenounceKeeper(caller [20]byte) error
	BuildSwapPath(token [20]byte) ([2][20]byte, error)
	CurrentDay() uint64
	CurrentPhase() (transformer.Phase, error)
	Globals() (*transformer.Globals, error)
	Investor(addr [20]byte) (*transformer.InvestorRecord, error)
}

// SynthService is the slice of the peg engine the RPC surface needs.
type SynthService interface {
	Deposit(from [20]byte, amount *uint256.Int) error
	Withdraw(from [20]byte, tokenAmount *uint256.Int) error
	Receive(from [20]byte, amount *uint256.Int) error
	DefineToken(caller [20]byte) error
	DefineHelper(caller [20]byte) error
	CreatePair(caller, pair [20]byte) error
	RegisterTransformer(caller, transformer [20]byte) error
	AddLPTokens(caller, from [20]byte, amount, tokenAmount *uint256.Int) error
	ForwardOwnership(caller, newMaster [20]byte) error
	RenounceOwnership(caller [20]byte) error
	Evaluation() (*uint256.Int, error)
	CachedEvaluation() (*uint256.Int, error)
	LiquidityPercent() (*uint256.Int, error)
	PairReserves() (*uint256.Int, *uint256.Int, error)
	Lifecycle() (*synth.Lifecycle, error)
}

type Server struct {
	transformer TransformerService
	synth       SynthService
	authToken   string
}

func NewServer(transformerSvc TransformerService, synthSvc SynthService) *Server {
	token := strings.TrimSpace(os.Getenv("LAUNCHFORGE_RPC_TOKEN"))
	return &Server{
		transformer: transformerSvc,
		synth:       synthSvc,
		authToken:   token,
	}
}

// Handler builds the HTTP router: the JSON-RPC endpoint plus health and
// metrics endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) Start(addr string) error {
	fmt.Printf("Starting JSON-RPC server on %s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "bearer token required"}
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "launch_contribute":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleLaunchContribute(w, r, req)
	case "launch_contributeWithToken":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleLaunchContributeWithToken(w, r, req)
	case "launch_settle":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleLaunchSettle(w, r, req)
	case "launch_redeem":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleLaunchRedeem(w, r, req)
	case "launch_requestRefund":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleLaunchRequestRefund(w, r, req)
	case "launch_fund":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleLaunchFund(w, r, req)
	case "launch_configure":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleLaunchConfigure(w, r, req)
	case "launch_renounceKeeper":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleLaunchRenounceKeeper(w, r, req)
	case "launch_swapPath":
		s.handleLaunchSwapPath(w, r, req)
	case "launch_currentDay":
		s.handleLaunchCurrentDay(w, r, req)
	case "launch_phase":
		s.handleLaunchPhase(w, r, req)
	case "launch_globals":
		s.handleLaunchGlobals(w, r, req)
	case "launch_investor":
		s.handleLaunchInvestor(w, r, req)
	case "synth_deposit":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSynthDeposit(w, r, req)
	case "synth_withdraw":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSynthWithdraw(w, r, req)
	case "synth_receive":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSynthReceive(w, r, req)
	case "synth_defineToken":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSynthDefineToken(w, r, req)
	case "synth_defineHelper":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSynthDefineHelper(w, r, req)
	case "synth_createPair":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSynthCreatePair(w, r, req)
	case "synth_registerTransformer":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSynthRegisterTransformer(w, r, req)
	case "synth_addLPTokens":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSynthAddLPTokens(w, r, req)
	case "synth_forwardOwnership":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSynthForwardOwnership(w, r, req)
	case "synth_renounceOwnership":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSynthRenounceOwnership(w, r, req)
	case "synth_evaluation":
		s.handleSynthEvaluation(w, r, req)
	case "synth_cachedEvaluation":
		s.handleSynthCachedEvaluation(w, r, req)
	case "synth_liquidityPercent":
		s.handleSynthLiquidityPercent(w, r, req)
	case "synth_reserves":
		s.handleSynthReserves(w, r, req)
	case "synth_lifecycle":
		s.handleSynthLifecycle(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

func parseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: want 20 bytes, got %d", s, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func parseAmount(s string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}
