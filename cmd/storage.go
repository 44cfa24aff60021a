package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"festreg/cmd/buildCFG"
	"festreg/internal/repo"
)

// openRepository connects the configured store. The returned func releases it.
func openRepository(cfg *config.Config, log *zerolog.Logger) (repo.Repository, string, func(), error) {
	driver, err := buildCFG.BuildStorageDriver(cfg)
	if err != nil {
		return nil, "", nil, err
	}
	if driver == buildCFG.DriverMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return repo.NewMemory(), driver, func() {}, nil
	}

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, log)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to build DB config: %w", err)
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	closeDB := func() {
		if err := db.Master.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close master connection")
		}
		for _, s := range db.Slaves {
			_ = s.Close()
		}
	}

	repository, err := repo.NewRepository(db, log)
	if err != nil {
		closeDB()
		return nil, "", nil, fmt.Errorf("failed to initialize repository: %w", err)
	}
	log.Info().Msg("Database connected successfully")
	return repository, driver, closeDB, nil
}
