package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/events"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository/sqldb/sqldbtest"
	"github.com/andresuchdata/rxstock/backend-go/internal/storage"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// every third month, the shape shared by the linked drugs
var quarterly = domain.UsageSeries{10, 0, 0, 10, 0, 0, 10, 0, 0, 10, 0, 0}

type repos struct {
	timeseries  repository.TimeseriesRepository
	periodicity repository.PeriodicityRepository
	patients    repository.PatientRepository
	skips       repository.SkipRepository
	inventory   repository.InventoryRepository
}

func newRepos(t *testing.T) repos {
	t.Helper()
	db := sqldbtest.New(t)
	return repos{
		timeseries:  repository.NewTimeseriesRepository(db),
		periodicity: repository.NewPeriodicityRepository(db),
		patients:    repository.NewPatientRepository(db),
		skips:       repository.NewSkipRepository(db),
		inventory:   repository.NewInventoryRepository(db),
	}
}

func (r repos) suggestionRepos() SuggestionRepositories {
	return SuggestionRepositories{
		Timeseries:  r.timeseries,
		Periodicity: r.periodicity,
		Patients:    r.patients,
		Skips:       r.skips,
		Inventory:   r.inventory,
	}
}

func scaled(series domain.UsageSeries, factor int) domain.UsageSeries {
	out := make(domain.UsageSeries, len(series))
	for i, v := range series {
		out[i] = v * factor
	}
	return out
}

func drug(code string, series domain.UsageSeries) domain.Drug {
	return domain.Drug{
		Code:         code,
		Name:         "Drug " + code,
		Company:      "Acme",
		DrugType:     "prescription",
		MonthlyUsage: series,
		MovingAvg12M: domain.TrailingAverage(series, 12),
		UpdatedAt:    fixedNow,
	}
}

// seedDrugs stores the linked drugs L1..L5, the candidates C1 and C2, drugs
// the eligibility rules drop, a new drug and an empty one.
func seedDrugs(t *testing.T, r repos) {
	t.Helper()
	drugs := []domain.Drug{
		drug("L1", quarterly),
		drug("L2", quarterly),
		drug("L3", quarterly),
		drug("L4", quarterly),
		drug("L5", quarterly),
		drug("C1", scaled(quarterly, 2)),
		drug("C2", domain.UsageSeries{5, 0, 9, 0, 0, 0, 0, 3, 0, 0, 1, 0}),
		drug("H1", scaled(quarterly, 90)),
		drug("M1", domain.UsageSeries{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}),
		drug("D1", domain.UsageSeries{5, 0, 0, 5, 0, 0, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}),
		drug("N1", domain.UsageSeries{0, 4, 0, 0, 0, 0, 0, 0, 0, 0, 4, 0}),
		drug("E1", domain.UsageSeries{}),
	}
	if err := r.timeseries.Upsert(context.Background(), drugs); err != nil {
		t.Fatalf("seed drugs: %v", err)
	}
}

func seedPatients(t *testing.T, r repos, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		p := domain.Patient{ID: int64(i), Name: "Patient", VisitCycleDays: 30}
		if err := r.patients.Upsert(context.Background(), p); err != nil {
			t.Fatalf("seed patient %d: %v", i, err)
		}
	}
}

// linkLinkedDrugs ties patient i to drug Li.
func linkLinkedDrugs(t *testing.T, r repos) {
	t.Helper()
	for i, code := range []string{"L1", "L2", "L3", "L4", "L5"} {
		if err := r.patients.Link(context.Background(), code, int64(i+1), 1); err != nil {
			t.Fatalf("link %s: %v", code, err)
		}
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PeriodicityUpdated
}

func (p *recordingPublisher) PeriodicityUpdated(ctx context.Context, ev events.PeriodicityUpdated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type memoryObjects struct {
	objects map[string][]byte
}

func (m *memoryObjects) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func (m *memoryObjects) DownloadObject(ctx context.Context, key, destPath string) error {
	return nil
}

func (m *memoryObjects) UploadObject(ctx context.Context, key string, data []byte) error {
	m.objects[key] = data
	return nil
}

func newPeriodicityService(r repos, pub events.Publisher) *PeriodicityService {
	svc := NewPeriodicityService(r.timeseries, r.periodicity, nil, pub, nil, 3)
	svc.now = func() time.Time { return fixedNow }
	return svc
}
