package conversationrepo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/infrastructure/database"
	"jan-server/services/session-api/internal/infrastructure/database/dbschema"
	"jan-server/services/session-api/internal/infrastructure/database/transaction"
	"jan-server/services/session-api/internal/infrastructure/observability"
	"jan-server/services/session-api/internal/utils/functional"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

// ConversationGormRepository stores conversations in postgres. A Put is one transaction: the
// row is locked, ownership checked, new turns inserted and the aggregate columns updated.
type ConversationGormRepository struct {
	db  *transaction.Database
	log zerolog.Logger
}

const tracerName = "session-api/conversationrepo"

var _ conversation.Store = (*ConversationGormRepository)(nil)

func NewConversationGormRepository(db *transaction.Database, log zerolog.Logger) *ConversationGormRepository {
	return &ConversationGormRepository{
		db:  db,
		log: log.With().Str("component", "conversation-store").Str("backend", "postgres").Logger(),
	}
}

// Get reads from the primary so a mutation always starts from the latest commit.
func (repo *ConversationGormRepository) Get(ctx context.Context, id, ownerID string) (*conversation.Conversation, error) {
	primary := repo.db.GetTx(ctx).Clauses(dbresolver.Write)

	var row dbschema.Conversation
	if err := primary.Where("id = ? AND owner_id = ?", id, ownerID).Take(&row).Error; err != nil {
		return nil, repo.wrap(ctx, err, "failed to load conversation")
	}
	if err := repo.db.GetTx(ctx).Clauses(dbresolver.Write).
		Where("conversation_id = ?", id).
		Order("seq ASC").
		Find(&row.Turns).Error; err != nil {
		return nil, repo.wrap(ctx, err, "failed to load conversation turns")
	}

	conv, err := row.EtoD()
	if err != nil {
		return nil, repo.wrap(ctx, err, "failed to decode conversation")
	}
	return conv, nil
}

func (repo *ConversationGormRepository) Put(ctx context.Context, conv *conversation.Conversation) error {
	ctx, span := observability.StartSpan(ctx, tracerName, "ConversationGormRepository.Put")
	defer span.End()
	observability.AddSpanAttributes(ctx,
		attribute.String("conversation.id", conv.ID),
		attribute.Int("conversation.turns", len(conv.Turns)),
	)

	row, err := dbschema.NewSchemaConversation(conv)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeInternal, "failed to encode conversation", err, "5b37b2a2-b08a-4b34-aaf0-b23f0f087096")
	}
	turns := row.Turns
	row.Turns = nil

	err = repo.db.Transaction(ctx, func(ctx context.Context) error {
		tx := repo.db.GetTx(ctx)

		var existing dbschema.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "owner_id", "turn_count").
			Where("id = ?", conv.ID).
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Omit(clause.Associations).Create(row).Error; err != nil {
				return err
			}
			existing.TurnCount = 0
		case err != nil:
			return err
		case existing.OwnerID != conv.OwnerID:
			return gorm.ErrRecordNotFound
		default:
			if existing.TurnCount > len(turns) {
				return errTurnsRemoved
			}
			if err := tx.Model(&dbschema.Conversation{ID: conv.ID}).
				Select("title", "title_locked", "model_id", "total_tokens", "turn_count", "archived", "tags", "last_activity", "updated_at").
				Updates(row).Error; err != nil {
				return err
			}
		}

		if pending := turns[existing.TurnCount:]; len(pending) > 0 {
			if err := tx.Create(&pending).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		observability.RecordError(ctx, err)
		return repo.wrap(ctx, err, "failed to commit conversation")
	}
	return nil
}

func (repo *ConversationGormRepository) Delete(ctx context.Context, id, ownerID string) error {
	result := repo.db.GetTx(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&dbschema.Conversation{})
	if result.Error != nil {
		return repo.wrap(ctx, result.Error, "failed to delete conversation")
	}
	if result.RowsAffected == 0 {
		return repo.wrap(ctx, gorm.ErrRecordNotFound, "failed to delete conversation")
	}
	return nil
}

func (repo *ConversationGormRepository) Query(ctx context.Context, filter conversation.Filter, page, pageSize int) ([]conversation.Summary, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&dbschema.Conversation{}).
			Where("owner_id = ? AND archived = ?", filter.OwnerID, filter.Archived)
		if filter.Tag != nil {
			tag, _ := json.Marshal([]string{*filter.Tag})
			db = db.Where("tags @> ?::jsonb", string(tag))
		}
		return db
	}

	var total int64
	if err := repo.db.GetTx(ctx).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, repo.wrap(ctx, err, "failed to count conversations")
	}

	if int64(page) > int64(functional.PageCount(int(total), pageSize)) {
		return []conversation.Summary{}, total, nil
	}

	var rows []dbschema.Conversation
	err := repo.db.GetTx(ctx).Scopes(scope).
		Order("last_activity DESC").
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, repo.wrap(ctx, err, "failed to list conversations")
	}

	summaries := make([]conversation.Summary, 0, len(rows))
	for i := range rows {
		summary, err := rows[i].Summary()
		if err != nil {
			return nil, 0, repo.wrap(ctx, err, "failed to decode conversation")
		}
		summaries = append(summaries, summary)
	}
	return summaries, total, nil
}

func (repo *ConversationGormRepository) Stats(ctx context.Context) (conversation.Stats, error) {
	var rows []struct {
		Archived bool
		Count    int64
	}
	err := repo.db.GetTx(ctx).
		Model(&dbschema.Conversation{}).
		Select("archived, COUNT(*) AS count").
		Group("archived").
		Scan(&rows).Error
	if err != nil {
		return conversation.Stats{}, repo.wrap(ctx, err, "failed to count conversations")
	}

	var stats conversation.Stats
	for _, r := range rows {
		if r.Archived {
			stats.Archived = r.Count
		} else {
			stats.Active = r.Count
		}
	}
	return stats, nil
}

func (repo *ConversationGormRepository) Ping(ctx context.Context) error {
	if err := database.Ping(ctx, repo.db.DB()); err != nil {
		return repo.wrap(ctx, err, "database unreachable")
	}
	return nil
}

var errTurnsRemoved = errors.New("stored conversation has more turns than the committed copy")

func (repo *ConversationGormRepository) wrap(ctx context.Context, err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "6eff8362-753c-4b80-99da-4941c2484dfe")
	}
	perr := platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err, "")
	platformerrors.LogError(repo.log, perr)
	return perr
}
