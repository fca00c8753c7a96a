package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stayrate/occupancy-proxy/internal/config"
	"github.com/stayrate/occupancy-proxy/pkg/batch"
	"github.com/stayrate/occupancy-proxy/pkg/occupancy"
	"github.com/stayrate/occupancy-proxy/pkg/ratelimit"
	"github.com/stayrate/occupancy-proxy/pkg/report"
	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// ValidateTimeout bounds the single fetch made by ValidateSession.
const ValidateTimeout = 10 * time.Second

// NewFromConfig builds a Service and its collaborators from cfg.
// guard may be nil.
func NewFromConfig(cfg *config.Config, guard *ratelimit.Guard, logger zerolog.Logger) (*Service, error) {
	fetchCfg := cfg.ScheduleConfig()
	client, err := schedule.New(fetchCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create schedule client: %w", err)
	}

	validateCfg := fetchCfg
	validateCfg.Timeout = min(fetchCfg.Timeout, ValidateTimeout)
	validateCfg.Retry = schedule.DefaultRetryConfig()
	validator, err := schedule.New(validateCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create validation client: %w", err)
	}

	var aggOpts []occupancy.Option
	if cfg.StrictDates {
		aggOpts = append(aggOpts, occupancy.WithStrictDates())
	}

	return New(Dependencies{
		Scheduler:  batch.NewScheduler(client, cfg.BatchConfig(), logger),
		Aggregator: occupancy.NewAggregator(logger, aggOpts...),
		Renderer:   report.NewRenderer(cfg.DetailURLBase, logger),
		Validator:  validator,
		Guard:      guard,
	}, cfg.Location(), logger), nil
}
