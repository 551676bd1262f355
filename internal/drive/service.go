package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	sheetMimeType  = "application/vnd.google-apps.spreadsheet"
	xlsxMimeType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Service struct {
	srv *drive.Service
}

// NewServiceFromFile reads service account credentials from disk.
func NewServiceFromFile(ctx context.Context, path string) (*Service, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drive credentials: %w", err)
	}
	return NewService(ctx, raw)
}

func NewService(ctx context.Context, credentialsJSON []byte) (*Service, error) {
	config, err := google.JWTConfigFromJSON(credentialsJSON, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	return &Service{srv: srv}, nil
}

// File is a Drive file listed from a report folder.
type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,string,omitempty"`
}

func (s *Service) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	if folderID == "" {
		folderID = "root"
	}

	var files []*File
	err := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))).
		Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
		OrderBy("name").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, &File{
					ID:           f.Id,
					Name:         f.Name,
					MimeType:     f.MimeType,
					ModifiedTime: f.ModifiedTime,
					Size:         f.Size,
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}

	return files, nil
}

// IsSpreadsheet reports whether f is a native Google Sheets document.
func (f *File) IsSpreadsheet() bool {
	return f.MimeType == sheetMimeType
}

// DownloadFile streams f into w. Native spreadsheets are exported as XLSX.
func (s *Service) DownloadFile(ctx context.Context, f *File, w io.Writer) error {
	var (
		resp *http.Response
		err  error
	)
	if f.IsSpreadsheet() {
		resp, err = s.srv.Files.Export(f.ID, xlsxMimeType).Context(ctx).Download()
	} else {
		resp, err = s.srv.Files.Get(f.ID).Context(ctx).Download()
	}
	if err != nil {
		return fmt.Errorf("unable to download file %s: %w", f.Name, err)
	}
	defer resp.Body.Close()

	_, err = io.Copy(w, resp.Body)
	return err
}

// FindFolderByPath resolves a slash separated folder path starting at root.
func (s *Service) FindFolderByPath(ctx context.Context, path string) (string, error) {
	currentID := "root"

	for _, folder := range strings.Split(path, "/") {
		if folder == "" {
			continue
		}

		result, err := s.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escapeQuery(currentID), escapeQuery(folder), folderMimeType)).
			Fields("files(id, name)").
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}

		if len(result.Files) == 0 {
			return "", fmt.Errorf("folder not found: %s", folder)
		}

		currentID = result.Files[0].Id
	}

	return currentID, nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}
