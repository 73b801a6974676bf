package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/cadence-api/internal/config"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
)

// loadAppConfig loads the application configuration from environment variables or config file.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// logConfig reports the loaded configuration without secrets.
func logConfig(cfg *config.Config, log *slog.Logger) {
	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"escalation_enabled", cfg.Escalation.Enabled,
		"escalation_schedule", cfg.Escalation.Schedule)

	log.Debug("optional integrations",
		"redis_configured", cfg.Redis.URL != "",
		"rabbitmq_configured", cfg.RabbitMQ.URL != "",
		"threshold_overrides", len(cfg.Escalation.Thresholds))
}

// lifecycleParams builds the lifecycle parameters from the escalation
// threshold overrides. Keys are status and priority names as accepted by
// domain.ParseStatus and domain.ParsePriority.
func lifecycleParams(cfg config.EscalationConfig) (*lifecycle.Params, error) {
	if len(cfg.Thresholds) == 0 {
		return lifecycle.NewDefaultParams(), nil
	}

	overrides := make(map[domain.Status]map[domain.Priority]int, len(cfg.Thresholds))
	for statusName, row := range cfg.Thresholds {
		status, err := domain.ParseStatus(statusName)
		if err != nil {
			return nil, fmt.Errorf("escalation.thresholds: %w", err)
		}
		parsed := make(map[domain.Priority]int, len(row))
		for priorityName, days := range row {
			priority, err := domain.ParsePriority(priorityName)
			if err != nil {
				return nil, fmt.Errorf("escalation.thresholds.%s: %w", statusName, err)
			}
			parsed[priority] = days
		}
		overrides[status] = parsed
	}

	params, err := lifecycle.NewParams(lifecycle.ParamsConfig{Escalation: overrides})
	if err != nil {
		return nil, fmt.Errorf("escalation.thresholds: %w", err)
	}
	return params, nil
}
