package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/cache"
	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/events"
	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository"
	"github.com/andresuchdata/rxstock/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultRecomputeWorkers = 4

// newDrugMaxPeaks is the highest peak count still reported as a new drug.
const newDrugMaxPeaks = periodicity.MinPeaks - 1

type PeriodicityService struct {
	timeseries  repository.TimeseriesRepository
	periodicity repository.PeriodicityRepository
	analyzer    *periodicity.Analyzer
	publisher   events.Publisher
	stats       cache.StatsCache
	workers     int
	now         func() time.Time
}

func NewPeriodicityService(
	timeseries repository.TimeseriesRepository,
	periodicityRepo repository.PeriodicityRepository,
	analyzer *periodicity.Analyzer,
	publisher events.Publisher,
	stats cache.StatsCache,
	workers int,
) *PeriodicityService {
	if analyzer == nil {
		analyzer = periodicity.NewAnalyzer(periodicity.DefaultMinLag, periodicity.DefaultMaxLag)
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	if stats == nil {
		stats = cache.NewNoopStatsCache()
	}
	if workers <= 0 {
		workers = defaultRecomputeWorkers
	}
	return &PeriodicityService{
		timeseries:  timeseries,
		periodicity: periodicityRepo,
		analyzer:    analyzer,
		publisher:   publisher,
		stats:       stats,
		workers:     workers,
		now:         time.Now,
	}
}

// RecalculateDrug analyses one drug, stores the result and publishes an event.
func (s *PeriodicityService) RecalculateDrug(ctx context.Context, code string) (*domain.PeriodicityRecord, error) {
	drug, err := s.timeseries.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	rec, err := s.recalculate(ctx, drug)
	if err != nil {
		return nil, err
	}

	if err := s.stats.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("periodicity: stats cache invalidate failed")
	}
	return rec, nil
}

func (s *PeriodicityService) recalculate(ctx context.Context, drug *domain.Drug) (*domain.PeriodicityRecord, error) {
	if len(drug.MonthlyUsage) == 0 {
		return nil, fmt.Errorf("%s: %w", drug.Code, ErrNoUsage)
	}

	series := []int(drug.MonthlyUsage)
	metrics, err := s.analyzer.Analyze(series)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", drug.Code, err)
	}

	rec := domain.NewPeriodicityRecord(drug.Code, metrics, periodicity.BuildFeatureVector(metrics, series), s.now().UTC())
	if err := s.periodicity.Upsert(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.publisher.PeriodicityUpdated(ctx, events.NewPeriodicityUpdated(rec)); err != nil {
		log.Warn().Err(err).Str("drug_code", drug.Code).Msg("periodicity: publish event failed")
	}
	return &rec, nil
}

// RecalculateAll analyses every stored drug on a bounded worker pool. Drugs
// with no usage are skipped and per-drug failures are counted, not returned.
func (s *PeriodicityService) RecalculateAll(ctx context.Context) (domain.RecalculateSummary, error) {
	start := time.Now()

	drugs, err := s.timeseries.List(ctx)
	if err != nil {
		return domain.RecalculateSummary{}, err
	}

	var calculated, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range drugs {
		drug := &drugs[i]
		if len(drug.MonthlyUsage) == 0 {
			skipped.Add(1)
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := s.recalculate(gctx, drug); err != nil {
				failed.Add(1)
				log.Error().Err(err).Str("drug_code", drug.Code).Msg("periodicity: recalculation failed")
				return nil
			}
			calculated.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return domain.RecalculateSummary{}, err
	}

	if err := s.stats.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("periodicity: stats cache invalidate failed")
	}

	summary := domain.RecalculateSummary{
		Total:      len(drugs),
		Calculated: int(calculated.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	log.Info().
		Int("total", summary.Total).
		Int("calculated", summary.Calculated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("took", time.Since(start)).
		Msg("periodicity recalculated")

	return summary, nil
}

func (s *PeriodicityService) Get(ctx context.Context, code string) (*domain.PeriodicityRecord, error) {
	return s.periodicity.Get(ctx, code)
}

// ListNewDrugs returns drugs with too few peaks to analyse, named from their
// time series.
func (s *PeriodicityService) ListNewDrugs(ctx context.Context) ([]domain.NewDrug, error) {
	return listNewDrugs(ctx, s.timeseries, s.periodicity)
}

func listNewDrugs(ctx context.Context, ts repository.TimeseriesRepository, pr repository.PeriodicityRepository) ([]domain.NewDrug, error) {
	recs, err := pr.ListNew(ctx, newDrugMaxPeaks)
	if err != nil {
		return nil, err
	}
	drugs, err := drugsByCode(ctx, ts)
	if err != nil {
		return nil, err
	}

	out := make([]domain.NewDrug, 0, len(recs))
	for _, rec := range recs {
		d := drugs[rec.DrugCode]
		out = append(out, domain.NewDrug{
			DrugCode:         rec.DrugCode,
			DrugName:         d.Name,
			Company:          d.Company,
			DrugType:         d.DrugType,
			PeakCount:        rec.PeakCount,
			PeriodicityScore: rec.PeriodicityScore,
		})
	}
	return out, nil
}

// Snapshot is the exported form of all periodicity rows.
type Snapshot struct {
	GeneratedAt  time.Time                  `json:"generated_at"`
	FeatureNames []string                   `json:"feature_names"`
	Drugs        []domain.PeriodicityRecord `json:"drugs"`
}

// Export uploads a JSON snapshot of every periodicity row under key.
func (s *PeriodicityService) Export(ctx context.Context, objects storage.ObjectStorage, key string) (int, error) {
	recs, err := s.periodicity.List(ctx)
	if err != nil {
		return 0, err
	}
	if recs == nil {
		recs = []domain.PeriodicityRecord{}
	}

	body, err := json.Marshal(Snapshot{
		GeneratedAt:  s.now().UTC(),
		FeatureNames: periodicity.FeatureNames[:],
		Drugs:        recs,
	})
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}

	if err := objects.UploadObject(ctx, key, body); err != nil {
		return 0, err
	}
	log.Info().Str("key", key).Int("drugs", len(recs)).Msg("periodicity snapshot exported")
	return len(recs), nil
}

func drugsByCode(ctx context.Context, ts repository.TimeseriesRepository) (map[string]domain.Drug, error) {
	drugs, err := ts.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Drug, len(drugs))
	for _, d := range drugs {
		out[d.Code] = d
	}
	return out, nil
}
