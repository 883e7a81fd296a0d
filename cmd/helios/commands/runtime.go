package commands

import (
	"fmt"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/data"
	"github.com/heliosquant/helios/internal/evaluate"
	"github.com/heliosquant/helios/internal/policyconfig"
	"github.com/heliosquant/helios/internal/providers"
	"github.com/heliosquant/helios/internal/providers/webquote"
	"github.com/heliosquant/helios/internal/schedule"
	"github.com/heliosquant/helios/internal/scoring"
	"github.com/heliosquant/helios/pkg/config"
	"github.com/heliosquant/helios/pkg/database"
	"github.com/heliosquant/helios/pkg/httputil"
	"github.com/heliosquant/helios/pkg/logger"
	"github.com/heliosquant/helios/pkg/redis"
)

// runtime holds the wired application stack shared by the commands
type runtime struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB
	cache      *redis.Client
	policyCfg  *policyconfig.Config
	policyHash string

	priceRepo  *data.PriceRepository
	scoreRepo  *data.ScoreRepository
	resultRepo *data.ResultRepository
	source     contracts.CandidateSource
	prices     contracts.PriceProvider
	evaluator  *evaluate.Evaluator
	calendar   schedule.Calendar
}

// newRuntime loads config, connects the stores and wires the engine
// components
func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	if policyFile != "" {
		cfg.PolicyFile = policyFile
	}
	policyCfg, _, err := policyconfig.Load(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", cfg.PolicyFile, err)
	}
	hash, err := policyconfig.Hash(policyCfg)
	if err != nil {
		return nil, fmt.Errorf("hash policy: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"policy_id": policyCfg.Meta.PolicyID,
		"hash":      hash,
	}).Info("Policy loaded")

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	cache, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	priceRepo := data.NewPriceRepository(db.Pool)
	scoreRepo := data.NewScoreRepository(db.Pool)
	resultRepo := data.NewResultRepository(db.Pool)
	source := data.NewCandidateRepository(db.Pool)

	httpClient := httputil.New(cfg, log)
	if cache.Enabled() {
		httpClient = httpClient.WithRateLimiter(redis.NewRateLimiter(cache, "helios"), redis.QuoteRateLimit)
	}
	quotes := webquote.NewClient(httpClient, cfg.Providers.QuoteBaseURL, log)
	prices := providers.NewLayeredPriceProvider(priceRepo, quotes, priceRepo, log)

	aggregator, err := scoring.NewAggregator(policyCfg.Policy.AgentWeights)
	if err != nil {
		db.Close()
		cache.Close()
		return nil, fmt.Errorf("invalid agent weights: %w", err)
	}

	scoreProviders := make([]contracts.ScoreProvider, 0, len(policyCfg.Policy.AgentWeights))
	for agentID := range policyCfg.Policy.AgentWeights {
		scoreProviders = append(scoreProviders, data.NewStoredScoreProvider(scoreRepo, agentID))
	}

	evaluator := evaluate.New(scoreProviders, aggregator, cfg.Providers, log)
	if cache.Enabled() {
		evaluator = evaluator.WithRateLimiter(redis.NewRateLimiter(cache, "helios"))
	}

	return &runtime{
		cfg:        cfg,
		log:        log,
		db:         db,
		cache:      cache,
		policyCfg:  policyCfg,
		policyHash: hash,
		priceRepo:  priceRepo,
		scoreRepo:  scoreRepo,
		resultRepo: resultRepo,
		source:     source,
		prices:     prices,
		evaluator:  evaluator,
		calendar:   schedule.NewWeekdayCalendar(),
	}, nil
}

// Close releases the runtime's connections
func (r *runtime) Close() {
	if r.cache != nil {
		r.cache.Close()
	}
	if r.db != nil {
		r.db.Close()
	}
}
