package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileSource is the subset of Service the downloader needs.
type FileSource interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	DownloadFile(ctx context.Context, f *File, w io.Writer) error
}

// DownloadOptions controls how usage reports are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader pulls usage reports out of a Drive folder.
type Downloader struct {
	source FileSource
}

func NewDownloader(s FileSource) *Downloader {
	return &Downloader{source: s}
}

// DownloadUsageReports downloads every CSV, XLSX and Google Sheets report in
// the folder and returns local CSV paths. Workbooks are flattened to CSV and
// the downloaded workbook is removed.
func (d *Downloader) DownloadUsageReports(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.source.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ext := reportExt(f)
		if ext == "" {
			log.Debug().Str("file", f.Name).Str("mime_type", f.MimeType).Msg("skipping non report file")
			continue
		}

		base := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name))
		localPath := filepath.Join(opts.DownloadDir, base+ext)
		if err := d.fetch(ctx, f, localPath); err != nil {
			return nil, err
		}

		if ext == ".xlsx" {
			csvPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".csv"
			if err := convertXLSXToCSV(localPath, csvPath); err != nil {
				return nil, fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
			}
			_ = os.Remove(localPath)
			localPath = csvPath
		}

		log.Info().Str("file", f.Name).Str("path", localPath).Msg("usage report downloaded")
		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}

func (d *Downloader) fetch(ctx context.Context, f *File, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer out.Close()

	if err := d.source.DownloadFile(ctx, f, out); err != nil {
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	return nil
}

// reportExt is the local extension a file is saved under, or "" when the
// file is not a usage report.
func reportExt(f *File) string {
	if f.IsSpreadsheet() {
		return ".xlsx"
	}
	switch ext := strings.ToLower(filepath.Ext(f.Name)); ext {
	case ".csv", ".xlsx":
		return ext
	}
	return ""
}
