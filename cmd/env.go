package cmd

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/nikogura/doc-reformatter/pkg/config"
	"github.com/nikogura/doc-reformatter/pkg/llm"
	"github.com/nikogura/doc-reformatter/pkg/logging"
	"github.com/nikogura/doc-reformatter/pkg/pipeline"
	"github.com/nikogura/doc-reformatter/pkg/store"
	"github.com/nikogura/doc-reformatter/pkg/style"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// styleCacheTTL bounds how long extracted style rules live in Redis.
const styleCacheTTL = 24 * time.Hour

// env carries the wired dependencies shared by commands.
type env struct {
	cfg    config.Config
	logger *zap.SugaredLogger
	store  *store.Store
	styles *style.Service
	rdb    *redis.Client
}

// setup loads configuration and opens the template store and style cache.
func setup(ctx context.Context) (e *env, err error) {
	e = &env{}

	e.cfg, err = config.Load(getConfigFile())
	if err != nil {
		err = errors.Wrap(err, "failed to load config")
		return e, err
	}

	e.logger, err = logging.New(e.cfg.LogMode, getVerbose())
	if err != nil {
		return e, err
	}

	err = os.MkdirAll(filepath.Dir(e.cfg.DatabasePath), 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create database directory for %s", e.cfg.DatabasePath)
		return e, err
	}

	e.store, err = store.Open(ctx, e.cfg.DatabasePath)
	if err != nil {
		return e, err
	}

	var cache style.Cache = style.NewMemoryCache()
	if e.cfg.RedisAddr != "" {
		e.rdb = redis.NewClient(&redis.Options{
			Addr:        e.cfg.RedisAddr,
			DialTimeout: 5 * time.Second,
		})
		err = e.rdb.Ping(ctx).Err()
		if err != nil {
			err = errors.Wrapf(err, "failed to connect to redis at %s", e.cfg.RedisAddr)
			return e, err
		}
		cache = style.NewRedisCache(e.rdb, "", styleCacheTTL)
		e.logger.Debugw("Using redis style cache", "addr", e.cfg.RedisAddr)
	}
	e.styles = style.NewService(cache, e.logger)

	return e, err
}

// Close releases whatever setup opened.
func (e *env) Close() {
	if e == nil {
		return
	}
	if e.store != nil {
		_ = e.store.Close()
	}
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// buildPipeline builds the conversion pipeline over the configured model endpoint.
func (e *env) buildPipeline() (p *pipeline.Pipeline) {
	log := e.logger
	client := llm.NewClient(llm.Options{
		APIKey:      e.cfg.APIKey,
		BaseURL:     e.cfg.APIURL,
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Timeout:     e.cfg.Timeout,
		Retry: llm.RetryPolicy{
			Attempts:  e.cfg.Retry.Attempts,
			BaseDelay: e.cfg.Retry.BaseDelay,
			Retryable: llm.IsTransient,
			OnRetry: func(attempt uint, err error) {
				log.Debugw("Retrying model request", "attempt", attempt+1, "error", err)
			},
		},
		Logger: e.logger,
	})

	p = pipeline.New(pipeline.Options{
		Gateway:   llm.NewGateway(client, e.logger),
		Styles:    e.styles,
		ChunkSize: e.cfg.ChunkSize,
		Workers:   e.cfg.Workers,
		Logger:    e.logger,
	})
	return p
}

// defaultOwner is the local user's name, used when --owner is not given.
func defaultOwner() (owner string) {
	u, err := user.Current()
	if err == nil && u.Username != "" {
		owner = u.Username
		return owner
	}
	owner = os.Getenv("USER")
	if owner == "" {
		owner = "default"
	}
	return owner
}
