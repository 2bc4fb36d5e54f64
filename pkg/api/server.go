// Package api exposes the governance read API and registry operations over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/1Crazymoney/governance-v2/pkg/registry"
	"github.com/1Crazymoney/governance-v2/pkg/snapshot"
	"github.com/1Crazymoney/governance-v2/pkg/strategy"
)

// Server serves the governance HTTP API.
type Server struct {
	registry  *registry.Registry
	validator *strategy.ProposalValidator
	strategy  *strategy.Strategy
	clock     *registry.HeightClock
	stores    map[string]*snapshot.Store
	port      int
	router    *mux.Router
	server    *http.Server
	log       *zap.Logger

	metrics  *prometheus.Registry
	requests *prometheus.CounterVec
}

// NewServer creates the API server. stores maps token names ("primary",
// "staked") to their snapshot stores for the seeding endpoints.
func NewServer(
	reg *registry.Registry,
	validator *strategy.ProposalValidator,
	strat *strategy.Strategy,
	clock *registry.HeightClock,
	stores map[string]*snapshot.Store,
	port int,
	log *zap.Logger,
) *Server {
	metrics := prometheus.NewRegistry()
	s := &Server{
		registry:  reg,
		validator: validator,
		strategy:  strat,
		clock:     clock,
		stores:    stores,
		port:      port,
		log:       log,
		metrics:   metrics,
		requests: promauto.With(metrics).NewCounterVec(prometheus.CounterOpts{
			Namespace: "governance",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
	}
	s.setupRoutes()
	return s
}

// enableCORS enables CORS for all routes
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(enableCORS)

	// Strategy read API
	s.router.HandleFunc("/api/rules", s.getRules).Methods("GET")
	s.router.HandleFunc("/api/supply/{type}", s.getSupply).Methods("GET")
	s.router.HandleFunc("/api/power/{type}/{address}", s.getPower).Methods("GET")

	// Proposal routes
	s.router.HandleFunc("/api/proposals", s.listProposals).Methods("GET")
	s.router.HandleFunc("/api/proposals", s.createProposal).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}", s.getProposal).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/votes", s.submitVote).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/finalize", s.finalizeProposal).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/passed", s.getProposalPassed).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/quorum", s.getProposalQuorum).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/differential", s.getProposalDifferential).Methods("GET")

	// Chain height routes
	s.router.HandleFunc("/api/chain/height", s.getHeight).Methods("GET")
	s.router.HandleFunc("/api/chain/advance", s.advanceHeight).Methods("POST")

	// Snapshot seeding routes
	s.router.HandleFunc("/api/snapshots/{token}/power", s.recordPower).Methods("POST")
	s.router.HandleFunc("/api/snapshots/{token}/supply", s.recordSupply).Methods("POST")

	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{})).Methods("GET")
}

// Start begins serving. It blocks until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.log.Info("api server listening", zap.Int("port", s.port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the configured router, for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) writeJSON(w http.ResponseWriter, route string, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response", zap.String("route", route), zap.Error(err))
	}
	s.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (s *Server) writeError(w http.ResponseWriter, route string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrProposalNotFound),
		errors.Is(err, strategy.ErrSnapshotUnavailable):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrAlreadyVoted),
		errors.Is(err, registry.ErrVotingClosed),
		errors.Is(err, registry.ErrVotingStillOpen):
		status = http.StatusConflict
	case errors.Is(err, registry.ErrNoVotingPower),
		errors.Is(err, registry.ErrNoPropositionPower),
		errors.Is(err, registry.ErrChainAtGenesis),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	s.log.Warn("request failed", zap.String("route", route), zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, route, status, map[string]string{"error": err.Error()})
}

var errBadRequest = errors.New("bad request")

func badRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errBadRequest}, args...)...)
}

func blockParam(r *http.Request) (strategy.BlockRef, error) {
	raw := r.URL.Query().Get("block")
	if raw == "" {
		return 0, badRequestf("missing block query parameter")
	}
	block, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequestf("invalid block %q", raw)
	}
	return strategy.BlockRef(block), nil
}

func powerTypeParam(raw string) (strategy.PowerType, error) {
	switch raw {
	case "voting":
		return strategy.PowerVoting, nil
	case "proposition":
		return strategy.PowerProposition, nil
	default:
		return 0, badRequestf("unknown power type %q", raw)
	}
}

func (s *Server) getRules(w http.ResponseWriter, r *http.Request) {
	rules := s.validator.Rules()
	s.writeJSON(w, "rules", http.StatusOK, map[string]string{
		"votingDuration":          strconv.FormatUint(rules.VotingDuration(), 10),
		"voteDifferential":        rules.VoteDifferential().Dec(),
		"minimumQuorum":           rules.MinimumQuorum().Dec(),
		"oneHundredWithPrecision": rules.OneHundredWithPrecision().Dec(),
	})
}

func (s *Server) getSupply(w http.ResponseWriter, r *http.Request) {
	kind, err := powerTypeParam(mux.Vars(r)["type"])
	if err != nil {
		s.writeError(w, "supply", err)
		return
	}
	block, err := blockParam(r)
	if err != nil {
		s.writeError(w, "supply", err)
		return
	}

	var supply *uint256.Int
	if kind == strategy.PowerVoting {
		supply, err = s.strategy.GetTotalVotingSupplyAt(block)
	} else {
		supply, err = s.strategy.GetTotalPropositionSupplyAt(block)
	}
	if err != nil {
		s.writeError(w, "supply", err)
		return
	}
	s.writeJSON(w, "supply", http.StatusOK, map[string]string{
		"type":   kind.String(),
		"block":  strconv.FormatUint(uint64(block), 10),
		"supply": supply.Dec(),
	})
}

func (s *Server) getPower(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, err := powerTypeParam(vars["type"])
	if err != nil {
		s.writeError(w, "power", err)
		return
	}
	block, err := blockParam(r)
	if err != nil {
		s.writeError(w, "power", err)
		return
	}

	account := strategy.Account(vars["address"])
	power, err := s.strategy.GetPowerAt(account, block, kind)
	if err != nil {
		s.writeError(w, "power", err)
		return
	}
	s.writeJSON(w, "power", http.StatusOK, map[string]string{
		"account": string(account),
		"type":    kind.String(),
		"block":   strconv.FormatUint(uint64(block), 10),
		"power":   power.Dec(),
	})
}

type proposalJSON struct {
	ID            string `json:"id"`
	Creator       string `json:"creator"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	SnapshotBlock uint64 `json:"snapshotBlock"`
	StartBlock    uint64 `json:"startBlock"`
	EndBlock      uint64 `json:"endBlock"`
	ForVotes      string `json:"forVotes"`
	AgainstVotes  string `json:"againstVotes"`
	Status        string `json:"status"`
}

func toProposalJSON(p *registry.Proposal) proposalJSON {
	return proposalJSON{
		ID:            p.ID,
		Creator:       string(p.Creator),
		Title:         p.Title,
		Description:   p.Description,
		SnapshotBlock: uint64(p.SnapshotBlock),
		StartBlock:    uint64(p.StartBlock),
		EndBlock:      uint64(p.EndBlock),
		ForVotes:      p.ForVotes.Dec(),
		AgainstVotes:  p.AgainstVotes.Dec(),
		Status:        p.Status.String(),
	}
}

func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := s.registry.ListProposals()
	if err != nil {
		s.writeError(w, "proposals", err)
		return
	}
	out := make([]proposalJSON, 0, len(proposals))
	for _, p := range proposals {
		out = append(out, toProposalJSON(p))
	}
	s.writeJSON(w, "proposals", http.StatusOK, out)
}

func (s *Server) createProposal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Creator     string `json:"creator"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "proposals", badRequestf("invalid body: %v", err))
		return
	}
	if req.Creator == "" || req.Title == "" {
		s.writeError(w, "proposals", badRequestf("creator and title are required"))
		return
	}

	p, err := s.registry.CreateProposal(strategy.Account(req.Creator), req.Title, req.Description)
	if err != nil {
		s.writeError(w, "proposals", err)
		return
	}
	s.writeJSON(w, "proposals", http.StatusCreated, toProposalJSON(p))
}

func (s *Server) getProposal(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.GetProposal(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, "proposal", err)
		return
	}
	s.writeJSON(w, "proposal", http.StatusOK, toProposalJSON(p))
}

func (s *Server) submitVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Voter   string `json:"voter"`
		Support *bool  `json:"support"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "votes", badRequestf("invalid body: %v", err))
		return
	}
	if req.Voter == "" || req.Support == nil {
		s.writeError(w, "votes", badRequestf("voter and support are required"))
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.registry.SubmitVote(strategy.Account(req.Voter), id, *req.Support); err != nil {
		s.writeError(w, "votes", err)
		return
	}
	s.writeJSON(w, "votes", http.StatusOK, map[string]string{"proposal": id, "voter": req.Voter})
}

func (s *Server) finalizeProposal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, err := s.registry.FinalizeProposal(id, s.validator)
	if err != nil {
		s.writeError(w, "finalize", err)
		return
	}
	s.writeJSON(w, "finalize", http.StatusOK, map[string]string{"proposal": id, "status": status.String()})
}

func (s *Server) getProposalPassed(w http.ResponseWriter, r *http.Request) {
	s.proposalCheck(w, r, "passed", s.validator.IsProposalPassed)
}

func (s *Server) getProposalQuorum(w http.ResponseWriter, r *http.Request) {
	s.proposalCheck(w, r, "quorum", s.validator.IsQuorumValid)
}

func (s *Server) getProposalDifferential(w http.ResponseWriter, r *http.Request) {
	s.proposalCheck(w, r, "differential", s.validator.IsVoteDifferentialValid)
}

func (s *Server) proposalCheck(w http.ResponseWriter, r *http.Request, route string, check func(string) (bool, error)) {
	id := mux.Vars(r)["id"]
	ok, err := check(id)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, route, http.StatusOK, map[string]any{"proposal": id, route: ok})
}

func (s *Server) getHeight(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, "height", http.StatusOK, map[string]uint64{
		"height": uint64(s.clock.CurrentBlock()),
	})
}

func (s *Server) advanceHeight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Blocks uint64 `json:"blocks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "advance", badRequestf("invalid body: %v", err))
		return
	}
	if req.Blocks == 0 {
		req.Blocks = 1
	}
	height := s.clock.Advance(req.Blocks)
	s.writeJSON(w, "advance", http.StatusOK, map[string]uint64{"height": uint64(height)})
}

func (s *Server) tokenStore(r *http.Request) (*snapshot.Store, error) {
	name := mux.Vars(r)["token"]
	store, ok := s.stores[name]
	if !ok {
		return nil, badRequestf("unknown token %q", name)
	}
	return store, nil
}

func (s *Server) recordPower(w http.ResponseWriter, r *http.Request) {
	store, err := s.tokenStore(r)
	if err != nil {
		s.writeError(w, "recordPower", err)
		return
	}

	var req struct {
		Account string `json:"account"`
		Block   uint64 `json:"block"`
		Type    string `json:"type"`
		Value   string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "recordPower", badRequestf("invalid body: %v", err))
		return
	}
	kind, err := powerTypeParam(req.Type)
	if err != nil {
		s.writeError(w, "recordPower", err)
		return
	}
	value, err := uint256.FromDecimal(req.Value)
	if err != nil {
		s.writeError(w, "recordPower", badRequestf("invalid value %q: %v", req.Value, err))
		return
	}

	if err := store.RecordPower(strategy.Account(req.Account), strategy.BlockRef(req.Block), kind, value); err != nil {
		s.writeError(w, "recordPower", badRequestf("%v", err))
		return
	}
	s.writeJSON(w, "recordPower", http.StatusCreated, map[string]string{"account": req.Account})
}

func (s *Server) recordSupply(w http.ResponseWriter, r *http.Request) {
	store, err := s.tokenStore(r)
	if err != nil {
		s.writeError(w, "recordSupply", err)
		return
	}

	var req struct {
		Block uint64 `json:"block"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "recordSupply", badRequestf("invalid body: %v", err))
		return
	}
	value, err := uint256.FromDecimal(req.Value)
	if err != nil {
		s.writeError(w, "recordSupply", badRequestf("invalid value %q: %v", req.Value, err))
		return
	}

	if err := store.RecordSupply(strategy.BlockRef(req.Block), value); err != nil {
		s.writeError(w, "recordSupply", badRequestf("%v", err))
		return
	}
	s.writeJSON(w, "recordSupply", http.StatusCreated, map[string]string{"block": strconv.FormatUint(req.Block, 10)})
}
