package learning

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type TopicRepo interface {
	// UpsertByExternalID inserts or updates topics keyed by (course_id, external_id)
	// and replaces each topic's skills with the given set.
	UpsertByExternalID(dbc dbctx.Context, courseID uint, topics []*learning.Topic) ([]*learning.Topic, error)
	GetByID(dbc dbctx.Context, id uint) (*learning.Topic, error)
	ListByCourse(dbc dbctx.Context, courseID uint) ([]*learning.Topic, error)
	ListByIDs(dbc dbctx.Context, courseID uint, ids []uint) ([]*learning.Topic, error)
}

type topicRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicRepo(db *gorm.DB, baseLog *logger.Logger) TopicRepo {
	return &topicRepo{db: db, log: baseLog.With("repo", "TopicRepo")}
}

func (r *topicRepo) UpsertByExternalID(dbc dbctx.Context, courseID uint, topics []*learning.Topic) ([]*learning.Topic, error) {
	transaction := dbc.DB(r.db)
	out := make([]*learning.Topic, 0, len(topics))
	for _, t := range topics {
		if t == nil || t.ExternalID == "" {
			return nil, apierr.Validation("topic external_id required")
		}
		cid := courseID
		t.CourseID = &cid
		skills := t.Skills
		t.Skills = nil

		var existing learning.Topic
		err := transaction.Where("course_id = ? AND external_id = ?", courseID, t.ExternalID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := transaction.Omit("Skills", "Lessons").Create(t).Error; err != nil {
				return nil, apierr.Persistence("create topic", err)
			}
		case err != nil:
			return nil, apierr.Persistence("find topic", err)
		default:
			t.ID = existing.ID
			t.CreatedAt = existing.CreatedAt
			if err := transaction.Model(&learning.Topic{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
				"name":            t.Name,
				"description":     t.Description,
				"order":           t.Order,
				"prerequisites":   t.Prerequisites,
				"lesson_outlines": t.LessonOutlines,
			}).Error; err != nil {
				return nil, apierr.Persistence("update topic", err)
			}
		}

		if err := transaction.Where("topic_id = ?", t.ID).Delete(&learning.Skill{}).Error; err != nil {
			return nil, apierr.Persistence("clear skills", err)
		}
		for i := range skills {
			skills[i].ID = 0
			skills[i].TopicID = t.ID
		}
		if len(skills) > 0 {
			if err := transaction.Create(&skills).Error; err != nil {
				return nil, apierr.Persistence("create skills", err)
			}
		}
		t.Skills = skills
		out = append(out, t)
	}
	return out, nil
}

func (r *topicRepo) GetByID(dbc dbctx.Context, id uint) (*learning.Topic, error) {
	var t learning.Topic
	err := dbc.DB(r.db).Preload("Skills", orderByID).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("topic %d not found", id)
	}
	if err != nil {
		return nil, apierr.Persistence("get topic", err)
	}
	return &t, nil
}

func (r *topicRepo) ListByCourse(dbc dbctx.Context, courseID uint) ([]*learning.Topic, error) {
	var out []*learning.Topic
	err := dbc.DB(r.db).Preload("Skills", orderByID).
		Where("course_id = ?", courseID).
		Order(byOrder()).
		Find(&out).Error
	if err != nil {
		return nil, apierr.Persistence("list topics", err)
	}
	return out, nil
}

func (r *topicRepo) ListByIDs(dbc dbctx.Context, courseID uint, ids []uint) ([]*learning.Topic, error) {
	var out []*learning.Topic
	if len(ids) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).Preload("Skills", orderByID).
		Where("course_id = ? AND id IN ?", courseID, ids).
		Order(byOrder()).
		Find(&out).Error
	if err != nil {
		return nil, apierr.Persistence("list topics", err)
	}
	if len(out) != len(uniqueUints(ids)) {
		return nil, apierr.NotFound("one or more topics do not belong to course %d", courseID)
	}
	return out, nil
}

func orderByID(db *gorm.DB) *gorm.DB { return db.Order("id") }

func uniqueUints(in []uint) []uint {
	seen := make(map[uint]struct{}, len(in))
	out := make([]uint, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
