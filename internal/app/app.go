// Package app wires configuration into repositories and services for the
// server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/andresuchdata/rxstock/backend-go/internal/api"
	"github.com/andresuchdata/rxstock/backend-go/internal/cache"
	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	"github.com/andresuchdata/rxstock/backend-go/internal/drive"
	"github.com/andresuchdata/rxstock/backend-go/internal/events"
	"github.com/andresuchdata/rxstock/backend-go/internal/ingest"
	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository/sqldb"
	"github.com/andresuchdata/rxstock/backend-go/internal/service"
	"github.com/andresuchdata/rxstock/backend-go/internal/storage"
	"github.com/andresuchdata/rxstock/backend-go/internal/suggestion"
	"github.com/rs/zerolog/log"
)

type App struct {
	DB          *sqldb.DB
	Objects     storage.ObjectStorage
	Publisher   events.Publisher
	Periodicity *service.PeriodicityService
	Buffer      *service.BufferService
	Suggestion  *service.SuggestionService
	Patient     *service.PatientService
	Ingest      *ingest.Service
}

// New opens the database and builds every service. Optional integrations
// (redis, object storage, drive, kafka) degrade to no-ops when unconfigured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := sqldb.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	bufferCache, err := cache.NewBufferCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("buffer cache unavailable, continuing without cache")
		bufferCache = cache.NewNoopBufferCache()
	}
	statsCache, err := cache.NewStatsCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("stats cache unavailable, continuing without cache")
		statsCache = cache.NewNoopStatsCache()
	}

	var objects storage.ObjectStorage
	if cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			db.Close()
			return nil, err
		}
		objects = client
	}

	var downloader ingest.ReportDownloader
	if cfg.Drive.CredentialsFile != "" {
		driveService, err := drive.NewServiceFromFile(ctx, cfg.Drive.CredentialsFile)
		if err != nil {
			db.Close()
			return nil, err
		}
		downloader = drive.NewDownloader(driveService)
	}

	publisher := events.NewPublisher(cfg.Events)

	timeseries := repository.NewTimeseriesRepository(db)
	periodicityRepo := repository.NewPeriodicityRepository(db)
	patients := repository.NewPatientRepository(db)
	skips := repository.NewSkipRepository(db)
	inventory := repository.NewInventoryRepository(db)

	analysis := cfg.Analysis
	eligibility := suggestion.DefaultEligibility()
	eligibility.DrugType = analysis.DrugType
	if analysis.MaxMonthlyUsage > 0 {
		eligibility.MaxMonthlyUsage = analysis.MaxMonthlyUsage
	}
	if analysis.DiscontinuedMonths > 0 {
		eligibility.DiscontinuedMonths = analysis.DiscontinuedMonths
	}

	a := &App{
		DB:        db,
		Objects:   objects,
		Publisher: publisher,
		Periodicity: service.NewPeriodicityService(timeseries, periodicityRepo,
			periodicity.NewAnalyzer(analysis.MinLag, analysis.MaxLag), publisher, statsCache, analysis.RecomputeWorkers),
		Buffer: service.NewBufferService(patients, bufferCache, analysis.DefaultRiskLevel),
		Suggestion: service.NewSuggestionService(service.SuggestionRepositories{
			Timeseries:  timeseries,
			Periodicity: periodicityRepo,
			Patients:    patients,
			Skips:       skips,
			Inventory:   inventory,
		}, suggestion.NewRanker(analysis.MinPatients), eligibility, analysis.Neighbours, statsCache, bufferCache),
		Patient: service.NewPatientService(patients, bufferCache, statsCache),
		Ingest:  ingest.NewService(timeseries, inventory, objects, downloader),
	}
	return a, nil
}

// Services exposes the HTTP-facing services.
func (a *App) Services() *api.Services {
	return &api.Services{
		Periodicity: a.Periodicity,
		Buffer:      a.Buffer,
		Suggestion:  a.Suggestion,
		Patient:     a.Patient,
	}
}

func (a *App) Close() error {
	if err := a.Publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close event publisher")
	}
	return a.DB.Close()
}
