// Package commands implements CLI commands.
package commands

import (
	"time"

	"go.uber.org/zap"

	"github.com/hutchstack/bunny-go/config"
	"github.com/hutchstack/bunny-go/logging"
	"github.com/hutchstack/bunny-go/obfuscation"
	"github.com/hutchstack/bunny-go/query/executor"
	"github.com/hutchstack/bunny-go/query/sqlgen"
	"github.com/hutchstack/bunny-go/solver"
	"github.com/hutchstack/bunny-go/upstream"
)

// app bundles the wired worker components a command needs.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	exec   *executor.Executor
	solver *solver.Solver
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	dialect, err := sqlgen.New(cfg.Database.Dialect)
	if err != nil {
		return nil, err
	}

	pool := executor.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Hour,
	}
	exec, err := executor.Open(dialect, cfg.Database.DSN, pool, cfg.Database.QueryTimeout)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		log:    log,
		exec:   exec,
		solver: solver.New(exec, pipelineFrom(cfg), log),
	}, nil
}

func (a *app) close() {
	_ = a.exec.Close()
	_ = a.log.Sync()
}

func (a *app) client() (*upstream.Client, error) {
	return upstream.NewClient(upstream.ClientConfig{
		BaseURL:      a.cfg.TaskAPI.BaseURL,
		Username:     a.cfg.TaskAPI.Username,
		Password:     a.cfg.TaskAPI.Password,
		CollectionID: a.cfg.TaskAPI.CollectionID,
		EnforceHTTPS: a.cfg.TaskAPI.EnforceHTTPS,
		Timeout:      a.cfg.TaskAPI.Timeout,
	}, a.log)
}

func (a *app) retryPolicy() upstream.Policy {
	return upstream.Policy{
		MaxAttempts:  a.cfg.Polling.MaxRetries,
		InitialDelay: a.cfg.Polling.InitialBackoff,
		MaxDelay:     a.cfg.Polling.MaxBackoff,
		Factor:       2.0,
		Jitter:       true,
	}
}

func pipelineFrom(cfg *config.Config) obfuscation.Pipeline {
	return obfuscation.Pipeline{
		Threshold: cfg.Obfuscation.LowNumberThreshold,
		Nearest:   cfg.Obfuscation.RoundingTarget,
	}
}
