package config

import (
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("expected postgres driver, got %s", cfg.Database.Driver)
	}
	if cfg.Analysis.MinPatients != 5 || cfg.Analysis.MinLag != 2 || cfg.Analysis.MaxLag != 6 {
		t.Errorf("unexpected analysis defaults %+v", cfg.Analysis)
	}
	if cfg.Analysis.DefaultRiskLevel != "safe" {
		t.Errorf("expected safe risk level, got %s", cfg.Analysis.DefaultRiskLevel)
	}
	if cfg.Analysis.MaxMonthlyUsage != 200 || cfg.Analysis.DiscontinuedMonths != 9 {
		t.Errorf("unexpected eligibility defaults %+v", cfg.Analysis)
	}
	if len(cfg.Events.Brokers) != 0 {
		t.Errorf("expected no brokers, got %v", cfg.Events.Brokers)
	}
	if !reflect.DeepEqual(cfg.Server.AllowedOrigins, []string{"*"}) {
		t.Errorf("expected wildcard origin, got %v", cfg.Server.AllowedOrigins)
	}
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", " SQLite ")
	v.Set("DB_SQLITE_PATH", "/tmp/rx.db")
	v.Set("KAFKA_BROKERS", "k1:9092, k2:9092")
	v.Set("ANALYSIS_MIN_PATIENTS", 8)

	cfg := FromViper(v)

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN() != "/tmp/rx.db" {
		t.Errorf("expected sqlite path as dsn, got %s", cfg.Database.DSN())
	}
	if !reflect.DeepEqual(cfg.Events.Brokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("unexpected brokers %v", cfg.Events.Brokers)
	}
	if cfg.Analysis.MinPatients != 8 {
		t.Errorf("expected min patients 8, got %d", cfg.Analysis.MinPatients)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "parts",
			cfg: DatabaseConfig{Driver: DriverPostgres, Host: "db", Port: "5432",
				User: "rx", Password: "p@ss", DBName: "rxstock", SSLMode: "disable"},
			want: "postgres://rx:p%40ss@db:5432/rxstock?sslmode=disable",
		},
		{
			name: "url wins",
			cfg:  DatabaseConfig{Driver: DriverPGX, URL: "postgres://u@h/d", Host: "ignored"},
			want: "postgres://u@h/d",
		},
		{
			name: "sqlite",
			cfg:  DatabaseConfig{Driver: DriverSQLite, SQLitePath: "rx.db", URL: "postgres://u@h/d"},
			want: "rx.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DSN(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
