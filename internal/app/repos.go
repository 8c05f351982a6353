package app

import (
	"gorm.io/gorm"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

func wireRepos(db *gorm.DB, log *logger.Logger) repos.Set {
	log.Info("Wiring repos...")
	return repos.NewSet(db, log)
}
