package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	pollprogram "pollchain/contexts/ledger-voting/poll-program"
	pollerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	pollhttp "pollchain/contexts/ledger-voting/poll-program/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "pollchain/internal/platform/httpserver/docs"
)

const maxRequestBodyBytes = 64 << 10

type Options struct {
	// SignerJWTSecret switches signer resolution from the X-User-Id header
	// to HS256 bearer tokens.
	SignerJWTSecret string
	EnableSwagger   bool
}

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	polls   pollprogram.Module
	signers signerResolver
	opts    Options
	httpSrv *http.Server
}

func New(
	polls pollprogram.Module,
	logger *slog.Logger,
	addr string,
	opts Options,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		polls:   polls,
		signers: newSignerResolver(opts.SignerJWTSecret),
		opts:    opts,
	}
	s.registerRoutes()
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	if s.opts.EnableSwagger {
		s.mux.Handle("/swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /v1/polls", s.handleInitializePool)
	s.mux.HandleFunc("POST /v1/polls/{poll_id}/candidates", s.handleInitializeCandidate)
	s.mux.HandleFunc("POST /v1/polls/{poll_id}/votes", s.handleVote)
	s.mux.HandleFunc("POST /v1/polls/{poll_id}/close", s.handleClosePoll)

	s.mux.HandleFunc("GET /v1/polls/{poll_id}", s.handleGetPoll)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}/candidates", s.handleListCandidates)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}/candidates/{name}", s.handleGetCandidate)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}/voters/{voter_id}", s.handleGetVoterRecord)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInitializePool(w http.ResponseWriter, r *http.Request) {
	signer, ok := s.requireSigner(w, r)
	if !ok {
		return
	}
	var req pollhttp.InitializePoolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.polls.Handler.InitializePoolHandler(r.Context(), signer, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		s.writePollDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleInitializeCandidate(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	signer, ok := s.requireSigner(w, r)
	if !ok {
		return
	}
	var req pollhttp.InitializeCandidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.polls.Handler.InitializeCandidateHandler(r.Context(), signer, r.Header.Get("Idempotency-Key"), pollID, req)
	if err != nil {
		s.writePollDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	signer, ok := s.requireSigner(w, r)
	if !ok {
		return
	}
	var req pollhttp.VoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.polls.Handler.VoteHandler(r.Context(), signer, r.Header.Get("Idempotency-Key"), pollID, req)
	if err != nil {
		s.writePollDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClosePoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	signer, ok := s.requireSigner(w, r)
	if !ok {
		return
	}
	resp, err := s.polls.Handler.ClosePollHandler(r.Context(), signer, r.Header.Get("Idempotency-Key"), pollID)
	if err != nil {
		s.writePollDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	resp, err := s.polls.Handler.GetPollHandler(r.Context(), pollID)
	if err != nil {
		s.writePollDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	resp, err := s.polls.Handler.ListCandidatesHandler(r.Context(), pollID)
	if err != nil {
		s.writePollDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	resp, err := s.polls.Handler.GetCandidateHandler(r.Context(), pollID, r.PathValue("name"))
	if err != nil {
		s.writePollDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetVoterRecord(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	resp, err := s.polls.Handler.GetVoterRecordHandler(r.Context(), pollID, r.PathValue("voter_id"))
	if err != nil {
		s.writePollDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requireSigner(w http.ResponseWriter, r *http.Request) (string, bool) {
	signer, err := s.signers.Resolve(r)
	if err != nil {
		s.logger.Warn("signer resolution failed",
			"event", "http_signer_rejected",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writePollError(w, http.StatusUnauthorized, "missing_signer", err.Error())
		return "", false
	}
	return signer, true
}

func parsePollID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	pollID, err := strconv.ParseUint(strings.TrimSpace(r.PathValue("poll_id")), 10, 64)
	if err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_poll_id", "poll_id must be an unsigned 64-bit integer")
		return 0, false
	}
	return pollID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writePollError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body is too large")
			return false
		}
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func (s *Server) writePollDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pollerrors.ErrInvalidInput):
		writePollError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, pollerrors.ErrInvalidPollWindow):
		writePollError(w, http.StatusBadRequest, "invalid_poll_window", err.Error())
	case errors.Is(err, pollerrors.ErrUnauthorized):
		writePollError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, pollerrors.ErrPollNotFound),
		errors.Is(err, pollerrors.ErrCandidateNotFound),
		errors.Is(err, pollerrors.ErrVoterRecordNotFound),
		errors.Is(err, pollerrors.ErrAccountNotFound):
		writePollError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, pollerrors.ErrAlreadyVoted):
		writePollError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, pollerrors.ErrPollClosed):
		writePollError(w, http.StatusConflict, "poll_closed", err.Error())
	case errors.Is(err, pollerrors.ErrPollAlreadyClosed):
		writePollError(w, http.StatusConflict, "poll_already_closed", err.Error())
	case errors.Is(err, pollerrors.ErrAlreadyExists):
		writePollError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, pollerrors.ErrIdempotencyConflict):
		writePollError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, pollerrors.ErrAccountDataTooLarge):
		writePollError(w, http.StatusRequestEntityTooLarge, "account_data_too_large", err.Error())
	default:
		s.logger.Error("poll request failed",
			"event", "http_poll_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writePollError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePollError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pollhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
