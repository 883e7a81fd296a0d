package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/heliosquant/helios/internal/backtest"
	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/data"
	"github.com/heliosquant/helios/internal/evaluate"
	"github.com/heliosquant/helios/internal/policyconfig"
	"github.com/heliosquant/helios/internal/schedule"
	"github.com/heliosquant/helios/pkg/logger"
)

// RunStatus is the lifecycle of an API-launched backtest
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunDone     RunStatus = "done"
	RunFailed   RunStatus = "failed"
	RunNotFound RunStatus = "not_found"
)

// ProgressUpdate is one websocket frame of backtest progress
type ProgressUpdate struct {
	RunID  string  `json:"run_id"`
	Step   int     `json:"step"`
	Total  int     `json:"total"`
	AsOf   string  `json:"as_of"`
	Equity float64 `json:"equity"`
	Done   bool    `json:"done"`
}

// run tracks one in-flight or finished backtest
type run struct {
	id        string
	status    RunStatus
	createdAt time.Time
	cancel    context.CancelFunc

	mu     sync.Mutex
	subs   map[chan ProgressUpdate]struct{}
	result *contracts.BacktestResult
	errMsg string
}

func (r *run) subscribe() chan ProgressUpdate {
	ch := make(chan ProgressUpdate, 16)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

func (r *run) unsubscribe(ch chan ProgressUpdate) {
	r.mu.Lock()
	delete(r.subs, ch)
	r.mu.Unlock()
}

// publish fans an update out to subscribers; a slow subscriber drops
// frames rather than blocking the engine
func (r *run) publish(u ProgressUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (r *run) finish(status RunStatus, result *contracts.BacktestResult, errMsg string) {
	r.mu.Lock()
	r.status = status
	r.result = result
	r.errMsg = errMsg
	for ch := range r.subs {
		close(ch)
	}
	r.subs = make(map[chan ProgressUpdate]struct{})
	r.mu.Unlock()
}

// BacktestHandler launches and tracks backtest runs
type BacktestHandler struct {
	policyCfg  *policyconfig.Config
	policyHash string
	source     contracts.CandidateSource
	evaluator  *evaluate.Evaluator
	prices     contracts.PriceProvider
	calendar   schedule.Calendar
	results    *data.ResultRepository // nil when persistence is off
	logger     *logger.Logger
	upgrader   websocket.Upgrader

	mu   sync.Mutex
	runs map[string]*run
}

// NewBacktestHandler creates a new backtest handler. results may be
// nil to keep runs in memory only.
func NewBacktestHandler(
	policyCfg *policyconfig.Config,
	policyHash string,
	source contracts.CandidateSource,
	evaluator *evaluate.Evaluator,
	prices contracts.PriceProvider,
	calendar schedule.Calendar,
	results *data.ResultRepository,
	log *logger.Logger,
) *BacktestHandler {
	return &BacktestHandler{
		policyCfg:  policyCfg,
		policyHash: policyHash,
		source:     source,
		evaluator:  evaluator,
		prices:     prices,
		calendar:   calendar,
		results:    results,
		logger:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		runs: make(map[string]*run),
	}
}

// StartRunRequest overrides the run window from the policy file
type StartRunRequest struct {
	StartDate   string  `json:"start_date,omitempty"`
	EndDate     string  `json:"end_date,omitempty"`
	CadenceDays int     `json:"cadence_days,omitempty"`
	CostBps     float64 `json:"cost_bps,omitempty"`
	Benchmark   string  `json:"benchmark,omitempty"`
}

// StartRun launches a backtest in the background
// POST /api/backtests
func (h *BacktestHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := h.runConfig(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := newRunID()
	ctx, cancel := context.WithCancel(context.Background())
	rn := &run{
		id:        id,
		status:    RunRunning,
		createdAt: time.Now().UTC(),
		cancel:    cancel,
		subs:      make(map[chan ProgressUpdate]struct{}),
	}

	h.mu.Lock()
	h.runs[id] = rn
	h.mu.Unlock()

	engine := backtest.NewEngine(&h.policyCfg.Policy, h.source, h.evaluator, h.prices, h.calendar, h.logger)
	engine.WithProgress(func(step, total int, asOf time.Time, equity float64) {
		rn.publish(ProgressUpdate{
			RunID:  id,
			Step:   step,
			Total:  total,
			AsOf:   asOf.Format("2006-01-02"),
			Equity: equity,
		})
	})

	go func() {
		defer cancel()

		result, err := engine.Run(ctx, cfg)
		if err != nil {
			h.logger.WithError(err).WithField("run_id", id).Error("Backtest run failed")
			rn.finish(RunFailed, nil, err.Error())
			return
		}

		if h.results != nil {
			rec := &data.RunRecord{
				ID:         id,
				PolicyID:   h.policyCfg.Meta.PolicyID,
				PolicyHash: h.policyHash,
				CreatedAt:  rn.createdAt,
				Result:     result,
			}
			if saveErr := h.results.Save(context.Background(), rec); saveErr != nil {
				h.logger.WithError(saveErr).WithField("run_id", id).Warn("Failed to persist run")
			}
		}

		rn.finish(RunDone, result, "")
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": id,
		"status": string(RunRunning),
	})
}

// GetRun returns a run's status, and its result once finished
// GET /api/backtests/{id}
func (h *BacktestHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.mu.Lock()
	rn, ok := h.runs[id]
	h.mu.Unlock()

	if !ok {
		// Fall back to persisted history
		if h.results != nil {
			if rec, err := h.results.Get(r.Context(), id); err == nil {
				respondJSON(w, http.StatusOK, map[string]interface{}{
					"run_id": rec.ID,
					"status": string(RunDone),
					"result": rec.Result,
				})
				return
			}
		}
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	rn.mu.Lock()
	status, result, errMsg := rn.status, rn.result, rn.errMsg
	rn.mu.Unlock()

	body := map[string]interface{}{
		"run_id": id,
		"status": string(status),
	}
	if result != nil {
		body["result"] = result
	}
	if errMsg != "" {
		body["error"] = errMsg
	}
	respondJSON(w, http.StatusOK, body)
}

// ListRuns returns in-memory runs plus persisted history
// GET /api/backtests
func (h *BacktestHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	type item struct {
		RunID     string    `json:"run_id"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"created_at"`
	}

	h.mu.Lock()
	items := make([]item, 0, len(h.runs))
	seen := make(map[string]bool, len(h.runs))
	for id, rn := range h.runs {
		rn.mu.Lock()
		items = append(items, item{RunID: id, Status: string(rn.status), CreatedAt: rn.createdAt})
		rn.mu.Unlock()
		seen[id] = true
	}
	h.mu.Unlock()

	if h.results != nil {
		if summaries, err := h.results.List(r.Context(), 50); err == nil {
			for _, s := range summaries {
				if !seen[s.ID] {
					items = append(items, item{RunID: s.ID, Status: string(RunDone), CreatedAt: s.CreatedAt})
				}
			}
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": items})
}

// StreamProgress streams per-step progress over a websocket until the
// run finishes or the client goes away
// GET /ws/backtests/{id}
func (h *BacktestHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.mu.Lock()
	rn, ok := h.runs[id]
	h.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := rn.subscribe()
	defer rn.unsubscribe(ch)

	// Already finished: a single terminal frame
	rn.mu.Lock()
	status := rn.status
	rn.mu.Unlock()
	if status != RunRunning {
		conn.WriteJSON(ProgressUpdate{RunID: id, Done: true})
		return
	}

	for update := range ch {
		if err := conn.WriteJSON(update); err != nil {
			return
		}
	}
	conn.WriteJSON(ProgressUpdate{RunID: id, Done: true})
}

// runConfig merges the policy file's run parameters with request
// overrides
func (h *BacktestHandler) runConfig(req StartRunRequest) (backtest.Config, error) {
	cfg := backtest.Config{
		CadenceDays: h.policyCfg.Run.CadenceDays,
		CostBps:     h.policyCfg.Run.CostBps,
		Benchmark:   h.policyCfg.Run.Benchmark,
	}

	var err error
	if cfg.StartDate, err = h.policyCfg.Run.Start(); err != nil {
		return cfg, err
	}
	if cfg.EndDate, err = h.policyCfg.Run.End(); err != nil {
		return cfg, err
	}

	if req.StartDate != "" {
		if cfg.StartDate, err = time.Parse("2006-01-02", req.StartDate); err != nil {
			return cfg, err
		}
	}
	if req.EndDate != "" {
		if cfg.EndDate, err = time.Parse("2006-01-02", req.EndDate); err != nil {
			return cfg, err
		}
	}
	if req.CadenceDays > 0 {
		cfg.CadenceDays = req.CadenceDays
	}
	if req.CostBps > 0 {
		cfg.CostBps = req.CostBps
	}
	if req.Benchmark != "" {
		cfg.Benchmark = req.Benchmark
	}
	return cfg, nil
}

// newRunID returns a 16-hex-char random identifier
func newRunID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
