package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

const (
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"

	maxSerializableAttempts = 3
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// serializable runs fn in a SERIALIZABLE transaction on postgres, retrying
// serialization failures. Other dialects use their default isolation.
func serializable(ctx context.Context, db *gorm.DB, log *logger.Logger, fn func(tx *gorm.DB) error) error {
	var opts []*sql.TxOptions
	if db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	var err error
	for attempt := 1; attempt <= maxSerializableAttempts; attempt++ {
		err = db.WithContext(ctx).Transaction(fn, opts...)
		switch pgCode(err) {
		case pgSerializationFailure:
			log.Warn("Serialization failure, retrying", "attempt", attempt)
			continue
		case pgUniqueViolation:
			return apierr.New(apierr.KindConflict, err)
		}
		return err
	}
	return apierr.New(apierr.KindConflict, err)
}
