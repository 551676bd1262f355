package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/app"
	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	"github.com/andresuchdata/rxstock/backend-go/internal/ingest"
	"github.com/andresuchdata/rxstock/backend-go/internal/service"
	"github.com/andresuchdata/rxstock/backend-go/pkg/logger"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const appKey = "app"

func newCLI(loadConfig func() *config.Config) *cli.App {
	return &cli.App{
		Name:  "rxstock",
		Usage: "Maintain drug usage history, periodicity and buffer stock",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-driver",
				Usage:   "Database driver (postgres, pgx or sqlite)",
				Value:   config.DriverPGX,
				EnvVars: []string{"DB_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "db-url",
				Usage:   "Database connection string",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "sqlite-path",
				Usage:   "SQLite database file when --db-driver=sqlite",
				EnvVars: []string{"DB_SQLITE_PATH"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "console or json",
				Value:   logger.FormatConsole,
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Configure(c.String("log-level"), c.String("log-format"))

			cfg := *loadConfig()
			cfg.Database.Driver = c.String("db-driver")
			if url := c.String("db-url"); url != "" {
				cfg.Database.URL = url
			}
			if path := c.String("sqlite-path"); path != "" {
				cfg.Database.SQLitePath = path
			}

			a, err := app.New(c.Context, &cfg)
			if err != nil {
				return err
			}
			if c.App.Metadata == nil {
				c.App.Metadata = map[string]interface{}{}
			}
			c.App.Metadata[appKey] = a
			return nil
		},
		After: func(c *cli.Context) error {
			if a, ok := c.App.Metadata[appKey].(*app.App); ok && a != nil {
				return a.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply the database schema",
				Action: runMigrate,
			},
			{
				Name:  "ingest",
				Usage: "Load monthly usage reports into the drug time series",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "file",
						Usage: "Local .csv or .xlsx report (repeatable)",
					},
					&cli.StringFlag{
						Name:  "bucket-prefix",
						Usage: "Object storage prefix holding reports",
					},
					&cli.StringFlag{
						Name:    "drive-folder",
						Usage:   "Google Drive folder id holding reports",
						EnvVars: []string{"DRIVE_FOLDER_ID"},
					},
					&cli.BoolFlag{
						Name:  "recalculate",
						Usage: "Recalculate periodicity after ingesting",
					},
				},
				Action: runIngest,
			},
			{
				Name:   "recalculate",
				Usage:  "Recalculate periodicity for every drug",
				Action: runRecalculate,
			},
			{
				Name:  "export",
				Usage: "Upload a JSON snapshot of periodicity rows to object storage",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "key",
						Usage: "Object key of the snapshot",
						Value: "periodicity/snapshot-" + time.Now().UTC().Format("20060102") + ".json",
					},
				},
				Action: runExport,
			},
			{
				Name:  "buffer",
				Usage: "Print the minimum buffer for a drug",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "drug", Required: true},
					&cli.StringFlag{Name: "risk-level", Usage: "relaxed, normal, safe or very_safe"},
					&cli.Float64Flag{Name: "threshold", Usage: "Explicit shortage probability in (0,1)"},
					&cli.BoolFlag{Name: "json", Usage: "Print the full result as JSON"},
				},
				Action: runBuffer,
			},
		},
	}
}

func appFrom(c *cli.Context) *app.App {
	return c.App.Metadata[appKey].(*app.App)
}

func runMigrate(c *cli.Context) error {
	a := appFrom(c)
	if err := a.DB.Migrate(c.Context); err != nil {
		return err
	}
	log.Info().Str("driver", a.DB.Driver()).Msg("schema applied")
	return nil
}

func runIngest(c *cli.Context) error {
	a := appFrom(c)
	files := c.StringSlice("file")
	prefix := c.String("bucket-prefix")
	folder := c.String("drive-folder")
	if len(files) == 0 && prefix == "" && folder == "" {
		return fmt.Errorf("one of --file, --bucket-prefix or --drive-folder is required")
	}

	var total ingest.Result
	for _, f := range files {
		res, err := a.Ingest.IngestFile(c.Context, f)
		if err != nil {
			return err
		}
		total.Add(res)
	}
	if prefix != "" {
		res, err := a.Ingest.IngestBucket(c.Context, prefix)
		if err != nil {
			return err
		}
		total.Add(res)
	}
	if folder != "" && len(files) == 0 && prefix == "" {
		res, err := a.Ingest.IngestDrive(c.Context, folder)
		if err != nil {
			return err
		}
		total.Add(res)
	}

	fmt.Fprintf(c.App.Writer, "ingested %d files, %d drugs, %d inventory rows\n", total.Files, total.Drugs, total.Inventory)

	if c.Bool("recalculate") {
		return runRecalculate(c)
	}
	return nil
}

func runRecalculate(c *cli.Context) error {
	summary, err := appFrom(c).Periodicity.RecalculateAll(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "recalculated %d of %d drugs (%d skipped, %d failed)\n",
		summary.Calculated, summary.Total, summary.Skipped, summary.Failed)
	return nil
}

func runExport(c *cli.Context) error {
	a := appFrom(c)
	if a.Objects == nil {
		return fmt.Errorf("object storage is not configured (STORAGE_ENABLED)")
	}
	n, err := a.Periodicity.Export(c.Context, a.Objects, c.String("key"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "exported %d drugs to %s\n", n, c.String("key"))
	return nil
}

func runBuffer(c *cli.Context) error {
	result, err := appFrom(c).Buffer.Calculate(c.Context, c.String("drug"), service.BufferRequest{
		RiskLevel: c.String("risk-level"),
		Threshold: c.Float64("threshold"),
	})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintf(c.App.Writer, "%s: minimum buffer %d (%s)\n%s\n",
		c.String("drug"), result.MinBuffer, result.RiskLevel.Name, result.Explanation)
	return nil
}
