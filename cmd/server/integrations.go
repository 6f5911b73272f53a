package main

import (
	"context"
	"log/slog"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/search"
)

// integrations holds the optional backends. A backend that is not
// configured or not reachable is left nil and the service runs without it.
type integrations struct {
	publisher events.Publisher
	redis     *cache.Redis
	cache     cache.Cache
	index     *search.Client
}

func connectIntegrations(ctx context.Context, cfg config.Config, logger *slog.Logger) *integrations {
	integ := &integrations{publisher: events.LogPublisher{Logger: logger}}

	if len(cfg.KafkaBrokers) > 0 {
		p, err := events.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Warn("kafka_disabled", "error", err)
		} else {
			integ.publisher = p
			logger.Info("kafka_enabled", "brokers", cfg.KafkaBrokers, "topics", events.Topics())
		}
	}

	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis_disabled", "error", err)
		} else {
			integ.redis = r
			integ.cache = r
		}
	}

	if cfg.ESURL != "" {
		c, err := search.NewClient(ctx, search.Config{
			URL:      cfg.ESURL,
			User:     cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESIndex,
		})
		if err != nil {
			logger.Warn("elasticsearch_disabled", "error", err)
		} else {
			integ.index = c
		}
	}
	return integ
}

func (i *integrations) close(logger *slog.Logger) {
	if err := i.publisher.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}
}
