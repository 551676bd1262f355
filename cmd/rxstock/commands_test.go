package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresuchdata/rxstock/backend-go/internal/config"
)

func runCLI(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newCLI(config.Defaults)
	app.Writer = &out
	argv := append([]string{"rxstock", "--db-driver", "sqlite", "--sqlite-path", dbPath, "--log-level", "error"}, args...)
	if err := app.Run(argv); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestCLI_IngestRecalculateBuffer(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "rx.db")
	report := filepath.Join(dir, "usage.csv")
	csv := "drug_code,drug_name,2024-01,2024-02,2024-03,2024-04,2024-05,2024-06\n" +
		"A100,Alpha,10,0,10,0,10,0\n" +
		"B200,Beta,0,0,0,0,0,0\n"
	if err := os.WriteFile(report, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	runCLI(t, dbPath, "migrate")

	out := runCLI(t, dbPath, "ingest", "--file", report, "--recalculate")
	if !strings.Contains(out, "ingested 1 files, 2 drugs") {
		t.Errorf("unexpected ingest output %q", out)
	}
	if !strings.Contains(out, "recalculated 2 of 2 drugs") {
		t.Errorf("unexpected recalculate output %q", out)
	}

	out = runCLI(t, dbPath, "buffer", "--drug", "A100", "--risk-level", "normal")
	if !strings.Contains(out, "A100: minimum buffer 0") {
		t.Errorf("unexpected buffer output %q", out)
	}
}

func TestCLI_IngestRequiresSource(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rx.db")
	runCLI(t, dbPath, "migrate")

	app := newCLI(config.Defaults)
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"rxstock", "--db-driver", "sqlite", "--sqlite-path", dbPath, "ingest"})
	if err == nil {
		t.Fatal("expected an error without a report source")
	}
}

func TestCLI_ExportRequiresStorage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rx.db")
	runCLI(t, dbPath, "migrate")

	app := newCLI(config.Defaults)
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"rxstock", "--db-driver", "sqlite", "--sqlite-path", dbPath, "export"})
	if err == nil || !strings.Contains(err.Error(), "object storage") {
		t.Fatalf("expected storage error, got %v", err)
	}
}
