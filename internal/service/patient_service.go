package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/andresuchdata/rxstock/backend-go/internal/buffer"
	"github.com/andresuchdata/rxstock/backend-go/internal/cache"
	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
)

// PatientService manages patients and their drug links. Every change drops the
// cached buffer results and suggestion stats it can affect.
type PatientService struct {
	patients repository.PatientRepository
	buffers  cache.BufferCache
	stats    cache.StatsCache
}

func NewPatientService(patients repository.PatientRepository, buffers cache.BufferCache, stats cache.StatsCache) *PatientService {
	if buffers == nil {
		buffers = cache.NewNoopBufferCache()
	}
	if stats == nil {
		stats = cache.NewNoopStatsCache()
	}
	return &PatientService{patients: patients, buffers: buffers, stats: stats}
}

func (s *PatientService) Save(ctx context.Context, p domain.Patient) (*domain.Patient, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.ID <= 0 {
		return nil, fmt.Errorf("%w: patient id must be positive", ErrInvalidInput)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrInvalidInput)
	}
	if p.VisitCycleDays < 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, buffer.ErrNegativeCycle)
	}

	if err := s.patients.Upsert(ctx, p); err != nil {
		return nil, err
	}
	// visit cycles feed every buffer this patient is part of
	s.invalidate(ctx, true)
	return s.patients.Get(ctx, p.ID)
}

func (s *PatientService) Get(ctx context.Context, id int64) (*domain.Patient, error) {
	return s.patients.Get(ctx, id)
}

func (s *PatientService) List(ctx context.Context) ([]domain.Patient, error) {
	patients, err := s.patients.List(ctx)
	if err != nil {
		return nil, err
	}
	if patients == nil {
		patients = []domain.Patient{}
	}
	return patients, nil
}

func (s *PatientService) Delete(ctx context.Context, id int64) error {
	if err := s.patients.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, true)
	return nil
}

// Unlink removes a single drug link.
func (s *PatientService) Unlink(ctx context.Context, drugCode string, patientID int64) error {
	if err := s.patients.Unlink(ctx, drugCode, patientID); err != nil {
		return err
	}
	if err := s.buffers.InvalidateDrug(ctx, drugCode); err != nil {
		log.Warn().Err(err).Str("drug_code", drugCode).Msg("patient: buffer cache invalidate failed")
	}
	s.invalidate(ctx, false)
	return nil
}

func (s *PatientService) invalidate(ctx context.Context, allBuffers bool) {
	if allBuffers {
		if err := s.buffers.InvalidateAll(ctx); err != nil {
			log.Warn().Err(err).Msg("patient: buffer cache invalidate failed")
		}
	}
	if err := s.stats.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("patient: stats cache invalidate failed")
	}
}
