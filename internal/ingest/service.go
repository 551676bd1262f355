package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/drive"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository"
	"github.com/andresuchdata/rxstock/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

// ReportDownloader fetches usage reports from a remote folder as local CSV files.
type ReportDownloader interface {
	DownloadUsageReports(ctx context.Context, opts drive.DownloadOptions) ([]string, error)
}

// Result summarises an ingest run.
type Result struct {
	Files     int      `json:"files"`
	Drugs     int      `json:"drugs"`
	Inventory int      `json:"inventory"`
	Codes     []string `json:"-"`
}

// Add accumulates another run into r.
func (r *Result) Add(other Result) {
	r.Files += other.Files
	r.Drugs += other.Drugs
	r.Inventory += other.Inventory
	r.Codes = append(r.Codes, other.Codes...)
}

type Service struct {
	timeseries repository.TimeseriesRepository
	inventory  repository.InventoryRepository
	objects    storage.ObjectStorage
	drive      ReportDownloader
	now        func() time.Time
}

func NewService(
	timeseries repository.TimeseriesRepository,
	inventory repository.InventoryRepository,
	objects storage.ObjectStorage,
	drive ReportDownloader,
) *Service {
	return &Service{
		timeseries: timeseries,
		inventory:  inventory,
		objects:    objects,
		drive:      drive,
		now:        time.Now,
	}
}

// IngestFile parses a local report and upserts its time series and stock.
func (s *Service) IngestFile(ctx context.Context, path string) (Result, error) {
	report, err := ReadFile(path, s.now().UTC())
	if err != nil {
		return Result{}, err
	}
	return s.store(ctx, path, report)
}

func (s *Service) store(ctx context.Context, source string, report *Report) (Result, error) {
	if err := s.timeseries.Upsert(ctx, report.Drugs); err != nil {
		return Result{}, fmt.Errorf("store time series from %s: %w", source, err)
	}
	for _, item := range report.Inventory {
		if err := s.inventory.Upsert(ctx, item); err != nil {
			return Result{}, fmt.Errorf("store inventory %s: %w", item.DrugCode, err)
		}
	}

	codes := make([]string, len(report.Drugs))
	for i, d := range report.Drugs {
		codes[i] = d.Code
	}

	log.Info().
		Str("source", source).
		Int("months", len(report.Months)).
		Int("drugs", len(report.Drugs)).
		Int("inventory", len(report.Inventory)).
		Msg("usage report ingested")

	return Result{Files: 1, Drugs: len(report.Drugs), Inventory: len(report.Inventory), Codes: codes}, nil
}

// IngestBucket downloads every report under prefix into a temporary directory
// and ingests them in key order.
func (s *Service) IngestBucket(ctx context.Context, prefix string) (Result, error) {
	if s.objects == nil {
		return Result{}, fmt.Errorf("object storage is not configured")
	}

	objects, err := s.objects.ListObjects(ctx, prefix)
	if err != nil {
		return Result{}, err
	}

	dir, err := os.MkdirTemp("", "rxstock-ingest-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var total Result
	for i, obj := range objects {
		if !IsReport(obj.Key) {
			continue
		}
		dest := filepath.Join(dir, fmt.Sprintf("%03d-%s", i, filepath.Base(obj.Key)))
		if err := s.objects.DownloadObject(ctx, obj.Key, dest); err != nil {
			return total, err
		}
		res, err := s.IngestFile(ctx, dest)
		if err != nil {
			return total, fmt.Errorf("%s: %w", obj.Key, err)
		}
		total.Add(res)
	}
	return total, nil
}

// IngestDrive downloads the reports of a Drive folder and ingests them.
func (s *Service) IngestDrive(ctx context.Context, folderID string) (Result, error) {
	if s.drive == nil {
		return Result{}, fmt.Errorf("google drive is not configured")
	}

	dir, err := os.MkdirTemp("", "rxstock-drive-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	paths, err := s.drive.DownloadUsageReports(ctx, drive.DownloadOptions{FolderID: folderID, DownloadDir: dir})
	if err != nil {
		return Result{}, err
	}

	var total Result
	for _, p := range paths {
		res, err := s.IngestFile(ctx, p)
		if err != nil {
			return total, err
		}
		total.Add(res)
	}
	return total, nil
}
