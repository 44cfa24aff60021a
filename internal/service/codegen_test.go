package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type setLookup struct {
	taken map[string]bool
	calls int
	err   error
}

func (l *setLookup) UserCodeExists(_ context.Context, code string) (bool, error) {
	l.calls++
	if l.err != nil {
		return false, l.err
	}
	return l.taken[code], nil
}

func TestCodeGenerator_UniqueAcrossManyGenerations(t *testing.T) {
	t.Parallel()

	log := zerolog.Nop()
	gen := NewCodeGenerator(CodeConfig{}, &log)
	lookup := &setLookup{taken: map[string]bool{}}

	for i := 0; i < 10000; i++ {
		code, err := gen.Generate(context.Background(), lookup)
		require.NoError(t, err)
		require.False(t, lookup.taken[code], "duplicate code %s at iteration %d", code, i)
		require.True(t, strings.HasPrefix(code, defaultCodePrefix))
		require.Len(t, code, len(defaultCodePrefix)+defaultCodeSuffixLength)
		lookup.taken[code] = true
	}
}

func TestCodeGenerator_FallsBackAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	log := zerolog.Nop()
	gen := NewCodeGenerator(CodeConfig{Prefix: "TST", SuffixLength: 4, MaxAttempts: 5}, &log)
	gen.suffix = func(n int) (string, error) { return strings.Repeat("A", n), nil }
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	gen.now = func() time.Time { return fixed }

	lookup := &setLookup{taken: map[string]bool{"TSTAAAA": true}}

	code, err := gen.Generate(context.Background(), lookup)
	require.NoError(t, err)
	assert.Equal(t, 5, lookup.calls, "must not exceed the attempt cap")
	assert.Equal(t, "TST"+strings.ToUpper(strconv.FormatInt(fixed.UnixNano(), 36)), code)
}

func TestCodeGenerator_RetriesUntilFree(t *testing.T) {
	t.Parallel()

	log := zerolog.Nop()
	gen := NewCodeGenerator(CodeConfig{Prefix: "P", SuffixLength: 1, MaxAttempts: 10}, &log)
	seq := []string{"A", "B", "C"}
	gen.suffix = func(int) (string, error) {
		s := seq[0]
		seq = seq[1:]
		return s, nil
	}
	lookup := &setLookup{taken: map[string]bool{"PA": true, "PB": true}}

	code, err := gen.Generate(context.Background(), lookup)
	require.NoError(t, err)
	assert.Equal(t, "PC", code)
	assert.Equal(t, 3, lookup.calls)
}

func TestCodeGenerator_LookupError(t *testing.T) {
	t.Parallel()

	log := zerolog.Nop()
	gen := NewCodeGenerator(CodeConfig{}, &log)
	boom := errors.New("store down")

	_, err := gen.Generate(context.Background(), &setLookup{err: boom})
	require.ErrorIs(t, err, boom)
}

func TestNewCodeGenerator_Defaults(t *testing.T) {
	t.Parallel()

	log := zerolog.Nop()
	cfg := NewCodeGenerator(CodeConfig{}, &log).Config()
	assert.Equal(t, CodeConfig{Prefix: "FST", SuffixLength: 6, MaxAttempts: 20}, cfg)
}
