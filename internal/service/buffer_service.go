package service

import (
	"context"
	"fmt"

	"github.com/andresuchdata/rxstock/backend-go/internal/buffer"
	"github.com/andresuchdata/rxstock/backend-go/internal/cache"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
)

// BufferRequest selects the risk level of a buffer computation. A positive
// Threshold wins over RiskLevel; an empty RiskLevel uses the service default.
type BufferRequest struct {
	RiskLevel string
	Threshold float64
}

type BufferService struct {
	patients    repository.PatientRepository
	cache       cache.BufferCache
	defaultRisk string
}

func NewBufferService(patients repository.PatientRepository, cacheImpl cache.BufferCache, defaultRisk string) *BufferService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopBufferCache()
	}
	if defaultRisk == "" {
		defaultRisk = buffer.DefaultRiskLevel
	}
	return &BufferService{patients: patients, cache: cacheImpl, defaultRisk: defaultRisk}
}

func (s *BufferService) resolve(req BufferRequest) (buffer.RiskLevel, error) {
	if req.Threshold != 0 {
		level, err := buffer.CustomRiskLevel(req.Threshold)
		if err != nil {
			return buffer.RiskLevel{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return level, nil
	}
	key := req.RiskLevel
	if key == "" {
		key = s.defaultRisk
	}
	return buffer.ResolveRiskLevel(key), nil
}

// Calculate computes the minimum buffer for the patients linked to code.
func (s *BufferService) Calculate(ctx context.Context, code string, req BufferRequest) (*buffer.Result, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: drug code is required", ErrInvalidInput)
	}
	level, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	profiles, err := s.patients.VisitProfiles(ctx, code)
	if err != nil {
		return nil, err
	}

	if cached, ok, err := s.cache.Get(ctx, code, level.Threshold, profiles); err == nil && ok {
		cached.RiskLevel = level
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Str("drug_code", code).Msg("buffer: cache get failed")
	}

	result, err := buffer.MinimumBuffer(profiles, level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if err := s.cache.Set(ctx, code, level.Threshold, profiles, &result); err != nil {
		log.Warn().Err(err).Str("drug_code", code).Msg("buffer: cache set failed")
	}

	return &result, nil
}

func (s *BufferService) RiskLevels() []buffer.RiskLevel {
	return buffer.RiskLevels()
}

// InvalidateDrug drops cached results after the links of a drug change.
func (s *BufferService) InvalidateDrug(ctx context.Context, code string) {
	if err := s.cache.InvalidateDrug(ctx, code); err != nil {
		log.Warn().Err(err).Str("drug_code", code).Msg("buffer: cache invalidate failed")
	}
}
