package learning

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/learning/draftdoc"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type DraftRepo interface {
	Get(dbc dbctx.Context, courseID uint) (*learning.Draft, error)
	Load(dbc dbctx.Context, courseID uint) (*learning.Draft, draftdoc.Content, error)
	// Replace writes a new pending version and returns the row it displaced, if any.
	Replace(dbc dbctx.Context, courseID uint, sessionID string, content draftdoc.Content) (*learning.Draft, *learning.Draft, error)
	Transition(dbc dbctx.Context, courseID uint, version int, from, to learning.DraftStatus) (bool, error)
	AppendTurn(dbc dbctx.Context, turn *learning.ReviewChatTurn) error
	ListTurns(dbc dbctx.Context, courseID uint) ([]learning.ReviewChatTurn, error)
}

type draftRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDraftRepo(db *gorm.DB, baseLog *logger.Logger) DraftRepo {
	return &draftRepo{db: db, log: baseLog.With("repo", "DraftRepo")}
}

func (r *draftRepo) Get(dbc dbctx.Context, courseID uint) (*learning.Draft, error) {
	var d learning.Draft
	err := dbc.DB(r.db).Where("course_id = ?", courseID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("no draft for course %d", courseID)
	}
	if err != nil {
		return nil, apierr.Persistence("get draft", err)
	}
	return &d, nil
}

func (r *draftRepo) Load(dbc dbctx.Context, courseID uint) (*learning.Draft, draftdoc.Content, error) {
	d, err := r.Get(dbc, courseID)
	if err != nil {
		return nil, draftdoc.Content{}, err
	}
	content, err := draftdoc.Decode(d.ContentJSON)
	if err != nil {
		return nil, draftdoc.Content{}, err
	}
	return d, content, nil
}

func (r *draftRepo) Replace(dbc dbctx.Context, courseID uint, sessionID string, content draftdoc.Content) (*learning.Draft, *learning.Draft, error) {
	raw, err := draftdoc.Encode(content)
	if err != nil {
		return nil, nil, err
	}
	transaction := dbc.DB(r.db)

	var prev learning.Draft
	err = transaction.Where("course_id = ?", courseID).First(&prev).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		d := &learning.Draft{
			CourseID:    courseID,
			Version:     1,
			SessionID:   sessionID,
			Status:      learning.DraftPending,
			ContentJSON: datatypes.JSON(raw),
		}
		if err := transaction.Create(d).Error; err != nil {
			return nil, nil, apierr.Persistence("create draft", err)
		}
		return d, nil, nil
	case err != nil:
		return nil, nil, apierr.Persistence("get draft", err)
	}

	next := prev
	next.Version = prev.Version + 1
	next.SessionID = sessionID
	next.Status = learning.DraftPending
	next.ContentJSON = datatypes.JSON(raw)
	next.UpdatedAt = time.Now().UTC()
	res := transaction.Model(&learning.Draft{}).
		Where("id = ? AND version = ?", prev.ID, prev.Version).
		Updates(map[string]interface{}{
			"version":      next.Version,
			"session_id":   next.SessionID,
			"status":       next.Status,
			"content_json": next.ContentJSON,
			"updated_at":   next.UpdatedAt,
		})
	if res.Error != nil {
		return nil, nil, apierr.Persistence("replace draft", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil, apierr.Conflict("draft for course %d changed concurrently", courseID)
	}
	return &next, &prev, nil
}

func (r *draftRepo) Transition(dbc dbctx.Context, courseID uint, version int, from, to learning.DraftStatus) (bool, error) {
	res := dbc.DB(r.db).Model(&learning.Draft{}).
		Where("course_id = ? AND version = ? AND status = ?", courseID, version, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, apierr.Persistence("transition draft", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *draftRepo) AppendTurn(dbc dbctx.Context, turn *learning.ReviewChatTurn) error {
	if turn == nil || turn.Message == "" {
		return apierr.Validation("chat message required")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	if err := dbc.DB(r.db).Create(turn).Error; err != nil {
		return apierr.Persistence("append chat turn", err)
	}
	return nil
}

func (r *draftRepo) ListTurns(dbc dbctx.Context, courseID uint) ([]learning.ReviewChatTurn, error) {
	var out []learning.ReviewChatTurn
	err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "created_at"}},
			{Column: clause.Column{Name: "id"}},
		}}).
		Find(&out).Error
	if err != nil {
		return nil, apierr.Persistence("list chat turns", err)
	}
	return out, nil
}
