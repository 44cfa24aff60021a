package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"festreg/internal/metrics"
)

const (
	defaultCodePrefix       = "FST"
	defaultCodeSuffixLength = 6
	defaultCodeMaxAttempts  = 20
	codeAlphabet            = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type CodeConfig struct {
	Prefix       string
	SuffixLength int
	MaxAttempts  int
}

// CodeLookup answers whether a user code is already taken.
type CodeLookup interface {
	UserCodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator produces short participant codes: a fixed prefix and a random suffix.
// After MaxAttempts collisions it falls back to a timestamp-derived suffix so it
// always terminates.
type CodeGenerator struct {
	cfg    CodeConfig
	suffix func(n int) (string, error)
	now    func() time.Time
	log    *zerolog.Logger
}

func NewCodeGenerator(cfg CodeConfig, log *zerolog.Logger) *CodeGenerator {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultCodePrefix
	}
	if cfg.SuffixLength <= 0 {
		cfg.SuffixLength = defaultCodeSuffixLength
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultCodeMaxAttempts
	}
	return &CodeGenerator{cfg: cfg, suffix: randomSuffix, now: time.Now, log: log}
}

func (g *CodeGenerator) Config() CodeConfig {
	return g.cfg
}

func (g *CodeGenerator) Generate(ctx context.Context, lookup CodeLookup) (string, error) {
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		suffix, err := g.suffix(g.cfg.SuffixLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate code suffix: %w", err)
		}
		code := g.cfg.Prefix + suffix

		taken, err := lookup.UserCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}

		metrics.CodeCollisions.Inc()
		g.log.Warn().Str("code", code).Int("attempt", attempt).Msg("user code collision, retrying")
	}

	code := g.cfg.Prefix + g.fallbackSuffix()
	g.log.Warn().
		Str("code", code).
		Int("attempts", g.cfg.MaxAttempts).
		Msg("user code attempts exhausted, using timestamp suffix")
	return code, nil
}

func (g *CodeGenerator) fallbackSuffix() string {
	return strings.ToUpper(strconv.FormatInt(g.now().UnixNano(), 36))
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
