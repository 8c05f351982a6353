package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/coursegen-backend/internal/platform/envutil"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

const sqlitePrefix = "sqlite://"

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type Service struct {
	db      *gorm.DB
	dialect Dialect
	log     *logger.Logger
}

// Open connects using DATABASE_URI. A "sqlite://<path>" URI selects sqlite,
// anything else is handed to the postgres driver.
func Open(logg *logger.Logger) (*Service, error) {
	uri := strings.TrimSpace(envutil.String("DATABASE_URI", ""))
	if uri == "" {
		return nil, fmt.Errorf("missing DATABASE_URI")
	}
	return OpenURI(logg, uri)
}

func OpenURI(logg *logger.Logger, uri string) (*Service, error) {
	serviceLog := logg.With("service", "DatabaseService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{Logger: gormLog}

	dialect := DialectPostgres
	var dial gorm.Dialector
	if strings.HasPrefix(uri, sqlitePrefix) {
		dialect = DialectSQLite
		dial = sqlite.Open(strings.TrimPrefix(uri, sqlitePrefix) + "?_foreign_keys=on")
	} else {
		dial = postgres.Open(uri)
	}

	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if dialect == DialectSQLite {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY under the job runner.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(envutil.Int("DB_MAX_OPEN_CONNS", 20))
		sqlDB.SetMaxIdleConns(envutil.Int("DB_MAX_IDLE_CONNS", 5))
		sqlDB.SetConnMaxLifetime(envutil.Duration("DB_CONN_MAX_LIFETIME", 30*time.Minute))
	}

	serviceLog.Info("Database connected", "dialect", dialect)
	return &Service{db: db, dialect: dialect, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Dialect() Dialect { return s.dialect }

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
