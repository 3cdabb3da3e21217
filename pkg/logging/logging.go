package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// New builds a sugared logger. "prod" (or "production") logs JSON; anything else uses
// the human-readable development encoder. verbose lowers the level to debug.
func New(mode string, verbose bool) (logger *zap.SugaredLogger, err error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	var base *zap.Logger
	base, err = cfg.Build()
	if err != nil {
		err = errors.Wrap(err, "failed to build logger")
		return logger, err
	}

	logger = base.Sugar()
	return logger, err
}

// Nop returns a logger that discards everything.
func Nop() (logger *zap.SugaredLogger) {
	logger = zap.NewNop().Sugar()
	return logger
}

// HashID shortens an identifier such as an owner name to a stable, non-reversible
// token for logs.
func HashID(id string) (hashed string) {
	if id == "" {
		return hashed
	}
	sum := sha256.Sum256([]byte(id))
	hashed = "hash:" + hex.EncodeToString(sum[:])[:12]
	return hashed
}
