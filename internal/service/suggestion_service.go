package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/rxstock/backend-go/internal/buffer"
	"github.com/andresuchdata/rxstock/backend-go/internal/cache"
	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository"
	"github.com/andresuchdata/rxstock/backend-go/internal/suggestion"
	"github.com/rs/zerolog/log"
)

// RegisterRequest links a patient to a suggested drug.
type RegisterRequest struct {
	DrugCode       string `json:"drug_code"`
	PatientID      int64  `json:"patient_id"`
	DosagePerVisit int    `json:"dosage_per_visit"`
}

// SuggestionRepositories groups the stores the suggestion flow reads.
type SuggestionRepositories struct {
	Timeseries  repository.TimeseriesRepository
	Periodicity repository.PeriodicityRepository
	Patients    repository.PatientRepository
	Skips       repository.SkipRepository
	Inventory   repository.InventoryRepository
}

type SuggestionService struct {
	repos       SuggestionRepositories
	ranker      *suggestion.Ranker
	eligibility suggestion.Eligibility
	neighbours  int
	stats       cache.StatsCache
	buffers     cache.BufferCache
}

func NewSuggestionService(
	repos SuggestionRepositories,
	ranker *suggestion.Ranker,
	eligibility suggestion.Eligibility,
	neighbours int,
	stats cache.StatsCache,
	buffers cache.BufferCache,
) *SuggestionService {
	if ranker == nil {
		ranker = suggestion.NewRanker(suggestion.DefaultMinPatients)
	}
	if neighbours <= 0 {
		neighbours = suggestion.DefaultNeighbours
	}
	if stats == nil {
		stats = cache.NewNoopStatsCache()
	}
	if buffers == nil {
		buffers = cache.NewNoopBufferCache()
	}
	return &SuggestionService{
		repos:       repos,
		ranker:      ranker,
		eligibility: eligibility,
		neighbours:  neighbours,
		stats:       stats,
		buffers:     buffers,
	}
}

// pool is the candidate set and link state at one point in time.
type pool struct {
	candidates []suggestion.Candidate
	linked     []periodicity.FeatureVector
	refs       []suggestion.Reference
	skips      map[string]int
	registered map[string]int
	drugs      map[string]domain.Drug
	records    map[string]domain.PeriodicityRecord
}

func (s *SuggestionService) loadPool(ctx context.Context) (*pool, error) {
	drugs, err := drugsByCode(ctx, s.repos.Timeseries)
	if err != nil {
		return nil, err
	}

	all, err := s.repos.Periodicity.List(ctx)
	if err != nil {
		return nil, err
	}
	records := make(map[string]domain.PeriodicityRecord, len(all))
	for _, rec := range all {
		records[rec.DrugCode] = rec
	}

	registered, err := s.repos.Patients.RegisteredCounts(ctx)
	if err != nil {
		return nil, err
	}
	skips, err := s.repos.Skips.All(ctx)
	if err != nil {
		return nil, err
	}

	linkedCodes, err := s.repos.Patients.DrugsWithPatients(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := s.repos.Periodicity.FeatureVectors(ctx, linkedCodes)
	if err != nil {
		return nil, err
	}

	p := &pool{
		skips:      skips,
		registered: registered,
		drugs:      drugs,
		records:    records,
	}
	for _, code := range linkedCodes {
		if v, ok := vectors[code]; ok {
			p.linked = append(p.linked, v)
			p.refs = append(p.refs, suggestion.Reference{DrugCode: code, Vector: v})
		}
	}

	periodic, err := s.repos.Periodicity.ListPeriodic(ctx, periodicity.MinPeaks)
	if err != nil {
		return nil, err
	}
	for _, rec := range periodic {
		drug, ok := drugs[rec.DrugCode]
		if !ok {
			continue
		}
		if reason := s.eligibility.Check(profileOf(drug, rec)); reason != suggestion.ReasonNone {
			log.Debug().Str("drug_code", rec.DrugCode).Str("reason", string(reason)).Msg("suggestion: drug not eligible")
			continue
		}
		p.candidates = append(p.candidates, candidateOf(drug, rec, registered[rec.DrugCode]))
	}

	return p, nil
}

func profileOf(drug domain.Drug, rec domain.PeriodicityRecord) suggestion.DrugProfile {
	return suggestion.DrugProfile{
		DrugType:       drug.DrugType,
		MonthlyAverage: drug.MovingAvg12M,
		Metrics:        rec.Metrics(),
		Series:         drug.MonthlyUsage,
	}
}

func candidateOf(drug domain.Drug, rec domain.PeriodicityRecord, registered int) suggestion.Candidate {
	vector := rec.FeatureVector.Vector
	if !rec.FeatureVector.Valid {
		vector = periodicity.BuildFeatureVector(rec.Metrics(), drug.MonthlyUsage)
	}
	return suggestion.Candidate{
		DrugCode:         rec.DrugCode,
		Vector:           vector,
		PeriodicityScore: rec.PeriodicityScore,
		RegisteredCount:  registered,
	}
}

// Status reports whether suggestions are active.
func (s *SuggestionService) Status(ctx context.Context) (suggestion.Activation, error) {
	links, err := s.repos.Patients.LinkCounts(ctx)
	if err != nil {
		return suggestion.Activation{}, err
	}
	return s.ranker.Activation(links), nil
}

// Next returns the best drug to link next, or an inactive or empty status.
func (s *SuggestionService) Next(ctx context.Context) (*domain.NextSuggestion, error) {
	links, err := s.repos.Patients.LinkCounts(ctx)
	if err != nil {
		return nil, err
	}
	activation := s.ranker.Activation(links)
	if !activation.Active {
		return &domain.NextSuggestion{Status: suggestion.StatusInactive, Activation: activation}, nil
	}

	p, err := s.loadPool(ctx)
	if err != nil {
		return nil, err
	}

	out := s.ranker.Next(suggestion.Input{
		Linked:     p.linked,
		Candidates: p.candidates,
		SkipCounts: p.skips,
		Links:      links,
	})
	res := &domain.NextSuggestion{Status: out.Status, Activation: out.Activation}
	if out.Best == nil {
		return res, nil
	}

	var vector periodicity.FeatureVector
	for _, c := range p.candidates {
		if c.DrugCode == out.Best.DrugCode {
			vector = c.Vector
			break
		}
	}

	detail, err := s.detail(ctx, p, *out.Best, vector)
	if err != nil {
		return nil, err
	}
	detail.RemainingCount = out.Remaining
	res.Suggestion = detail
	return res, nil
}

// DrugDetail scores a single analysed drug against the current links.
func (s *SuggestionService) DrugDetail(ctx context.Context, code string) (*domain.SuggestionDetail, error) {
	drug, err := s.repos.Timeseries.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	rec, err := s.repos.Periodicity.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	p, err := s.loadPool(ctx)
	if err != nil {
		return nil, err
	}

	cand := candidateOf(*drug, *rec, p.registered[code])
	ranked := s.ranker.Rank(p.linked, []suggestion.Candidate{cand}, p.skips)
	return s.detail(ctx, p, ranked[0], cand.Vector)
}

func (s *SuggestionService) detail(ctx context.Context, p *pool, r suggestion.Ranked, vector periodicity.FeatureVector) (*domain.SuggestionDetail, error) {
	drug := p.drugs[r.DrugCode]
	rec := p.records[r.DrugCode]
	series := []int(drug.MonthlyUsage)
	activity := periodicity.ActiveMonths(series)

	stock := 0
	item, err := s.repos.Inventory.Get(ctx, r.DrugCode)
	switch {
	case err == nil:
		stock = item.CurrentStock
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	refs := make([]suggestion.Reference, 0, len(p.refs))
	for _, ref := range p.refs {
		if ref.DrugCode != r.DrugCode {
			refs = append(refs, ref)
		}
	}
	nearest := suggestion.Nearest(vector, refs, s.neighbours)
	neighbours := make([]domain.NeighbourDrug, len(nearest))
	for i, n := range nearest {
		neighbours[i] = domain.NeighbourDrug{
			DrugCode:    n.DrugCode,
			DrugName:    p.drugs[n.DrugCode].Name,
			AvgInterval: p.records[n.DrugCode].AvgInterval,
			Distance:    n.Distance,
		}
	}

	usage := series
	if usage == nil {
		usage = []int{}
	}

	return &domain.SuggestionDetail{
		DrugCode:           r.DrugCode,
		DrugName:           drug.Name,
		Company:            drug.Company,
		DrugType:           drug.DrugType,
		AvgInterval:        rec.AvgInterval,
		IntervalCV:         rec.IntervalCV,
		HeightCV:           rec.HeightCV,
		PeriodicityScore:   rec.PeriodicityScore,
		AvgPeakHeight:      avgPeakHeight(series),
		ActiveMonths:       activity.ActiveMonths,
		TotalMonths:        activity.TotalMonths,
		MonthlyAvg:         drug.MovingAvg12M,
		CurrentStock:       stock,
		MonthlyUsage:       usage,
		NearestDrugs:       neighbours,
		Similarity:         r.RawSimilarity * 100,
		AdjustedSimilarity: r.AdjustedSimilarity * 100,
		KNNSimilarity:      suggestion.KNNSimilarity(vector, refs, s.neighbours) * 100,
		SkipCount:          r.SkipCount,
		RegisteredCount:    r.RegisteredCount,
	}, nil
}

func avgPeakHeight(series []int) float64 {
	peaks := periodicity.FindPeaks(series)
	if len(peaks) == 0 {
		return 0
	}
	var sum int
	for _, pk := range peaks {
		sum += pk.Value
	}
	return float64(sum) / float64(len(peaks))
}

// Register links a patient to a drug and clears the drug's skip history.
func (s *SuggestionService) Register(ctx context.Context, req RegisterRequest) error {
	if req.DrugCode == "" {
		return fmt.Errorf("%w: drug code is required", ErrInvalidInput)
	}
	if req.PatientID <= 0 {
		return fmt.Errorf("%w: patient id must be positive", ErrInvalidInput)
	}
	if req.DosagePerVisit < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, buffer.ErrNegativeDosage)
	}
	dosage := req.DosagePerVisit
	if dosage == 0 {
		dosage = buffer.DefaultDosage
	}

	if err := s.repos.Patients.Link(ctx, req.DrugCode, req.PatientID, dosage); err != nil {
		return err
	}
	if err := s.repos.Skips.Reset(ctx, req.DrugCode); err != nil {
		return err
	}

	s.invalidate(ctx, req.DrugCode)
	log.Info().Str("drug_code", req.DrugCode).Int64("patient_id", req.PatientID).Msg("suggestion registered")
	return nil
}

// Skip records a skip and returns the new count.
func (s *SuggestionService) Skip(ctx context.Context, code string) (int, error) {
	if code == "" {
		return 0, fmt.Errorf("%w: drug code is required", ErrInvalidInput)
	}
	if _, err := s.repos.Timeseries.Get(ctx, code); err != nil {
		return 0, err
	}

	count, err := s.repos.Skips.Add(ctx, code)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, "")
	return count, nil
}

// Skipped lists skipped drugs, least skipped first.
func (s *SuggestionService) Skipped(ctx context.Context) ([]domain.SkippedDrug, error) {
	records, err := s.repos.Skips.List(ctx)
	if err != nil {
		return nil, err
	}
	drugs, err := drugsByCode(ctx, s.repos.Timeseries)
	if err != nil {
		return nil, err
	}

	out := make([]domain.SkippedDrug, 0, len(records))
	for _, r := range records {
		d := drugs[r.DrugCode]
		out = append(out, domain.SkippedDrug{
			DrugCode:  r.DrugCode,
			DrugName:  d.Name,
			Company:   d.Company,
			SkipCount: r.SkipCount,
		})
	}
	return out, nil
}

// ClearSkipped wipes every skip count.
func (s *SuggestionService) ClearSkipped(ctx context.Context) (int64, error) {
	n, err := s.repos.Skips.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, "")
	return n, nil
}

// Stats summarises the eligible pool.
func (s *SuggestionService) Stats(ctx context.Context) (*domain.SuggestionStats, error) {
	if stats, ok, err := s.stats.Get(ctx); err == nil && ok {
		return stats, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("suggestion: stats cache get failed")
	}

	p, err := s.loadPool(ctx)
	if err != nil {
		return nil, err
	}
	newDrugs, err := s.repos.Periodicity.ListNew(ctx, newDrugMaxPeaks)
	if err != nil {
		return nil, err
	}

	stats := &domain.SuggestionStats{
		TotalPeriodic: len(p.candidates),
		NewDrugs:      len(newDrugs),
	}
	for _, c := range p.candidates {
		switch {
		case c.RegisteredCount > 0:
			stats.AlreadyRegistered++
		case p.skips[c.DrugCode] > 0:
			stats.Skipped++
		default:
			stats.Pending++
		}
	}

	if err := s.stats.Set(ctx, stats); err != nil {
		log.Warn().Err(err).Msg("suggestion: stats cache set failed")
	}
	return stats, nil
}

func (s *SuggestionService) NewDrugs(ctx context.Context) ([]domain.NewDrug, error) {
	return listNewDrugs(ctx, s.repos.Timeseries, s.repos.Periodicity)
}

func (s *SuggestionService) invalidate(ctx context.Context, drugCode string) {
	if err := s.stats.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("suggestion: stats cache invalidate failed")
	}
	if drugCode == "" {
		return
	}
	if err := s.buffers.InvalidateDrug(ctx, drugCode); err != nil {
		log.Warn().Err(err).Str("drug_code", drugCode).Msg("suggestion: buffer cache invalidate failed")
	}
}
