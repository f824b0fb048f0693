package chatrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/infrastructure/database/dbschema"
	"physio-server/services/physio-api/internal/infrastructure/database/transaction"
	"physio-server/services/physio-api/internal/utils/functional"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

var summaryKey = []clause.Column{{Name: "owner_id"}, {Name: "other_user_id"}}

// newestWins keeps the stored value of column unless the incoming row is at
// least as recent, so a late commit of an older message cannot roll the
// preview back.
func newestWins(column string) clause.Expr {
	return gorm.Expr("CASE WHEN excluded.last_message_time >= conversation_summaries.last_message_time " +
		"THEN excluded." + column + " ELSE conversation_summaries." + column + " END")
}

func summaryPreview() map[string]interface{} {
	return map[string]interface{}{
		"last_message":      newestWins("last_message"),
		"last_message_time": newestWins("last_message_time"),
		"last_sender_id":    newestWins("last_sender_id"),
	}
}

// ChatGormRepository stores messages and summaries. Every read goes to the
// primary so subscribers reloading after a change see that change.
type ChatGormRepository struct {
	db *transaction.Database
}

var _ chat.Repository = (*ChatGormRepository)(nil)

func NewChatGormRepository(db *transaction.Database) *ChatGormRepository {
	return &ChatGormRepository{db: db}
}

func (repo *ChatGormRepository) primary(ctx context.Context) *gorm.DB {
	return repo.db.GetTx(ctx).Clauses(dbresolver.Write)
}

func (repo *ChatGormRepository) SaveMessage(ctx context.Context, msg *chat.Message) error {
	return repo.db.InTx(ctx, func(ctx context.Context) error {
		tx := repo.db.GetTx(ctx)
		if err := tx.Create(dbschema.NewSchemaMessage(msg)).Error; err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to store message", err, "6a1f0e2b-3c4d-4e5f-8a9b-0c1d2e3f4a5b")
		}

		senderSummary := dbschema.ConversationSummary{
			OwnerID:         msg.SenderID,
			OtherUserID:     msg.ReceiverID,
			LastMessage:     msg.Content,
			LastMessageTime: msg.Timestamp,
			LastSenderID:    msg.SenderID,
			UnreadCount:     0,
		}
		senderUpdates := summaryPreview()
		senderUpdates["unread_count"] = 0
		err := tx.Clauses(clause.OnConflict{
			Columns:   summaryKey,
			DoUpdates: clause.Assignments(senderUpdates),
		}).Create(&senderSummary).Error
		if err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update sender conversation", err, "")
		}

		receiverSummary := dbschema.ConversationSummary{
			OwnerID:         msg.ReceiverID,
			OtherUserID:     msg.SenderID,
			LastMessage:     msg.Content,
			LastMessageTime: msg.Timestamp,
			LastSenderID:    msg.SenderID,
			UnreadCount:     1,
		}
		receiverUpdates := summaryPreview()
		receiverUpdates["unread_count"] = gorm.Expr("conversation_summaries.unread_count + 1")
		err = tx.Clauses(clause.OnConflict{
			Columns:   summaryKey,
			DoUpdates: clause.Assignments(receiverUpdates),
		}).Create(&receiverSummary).Error
		if err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update receiver conversation", err, "")
		}
		return nil
	})
}

func (repo *ChatGormRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*chat.Message, error) {
	var entities []dbschema.Message
	err := repo.primary(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sent_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list messages", err, "")
	}

	messages := make([]*chat.Message, 0, len(entities))
	for i := len(entities) - 1; i >= 0; i-- {
		messages = append(messages, entities[i].EtoD())
	}
	return messages, nil
}

func (repo *ChatGormRepository) FindMessage(ctx context.Context, conversationID, messageID string) (*chat.Message, error) {
	var entity dbschema.Message
	err := repo.primary(ctx).
		Where("conversation_id = ? AND id = ?", conversationID, messageID).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "message not found", err, "")
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load message", err, "")
	}
	return entity.EtoD(), nil
}

func (repo *ChatGormRepository) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	result := repo.db.GetTx(ctx).
		Where("conversation_id = ? AND id = ?", conversationID, messageID).
		Delete(&dbschema.Message{})
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to delete message", result.Error, "")
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "message not found", nil, "")
	}
	return nil
}

func (repo *ChatGormRepository) ListSummaries(ctx context.Context, ownerID string) ([]*chat.Summary, error) {
	var entities []dbschema.ConversationSummary
	err := repo.primary(ctx).
		Where("owner_id = ?", ownerID).
		Order("last_message_time DESC").
		Find(&entities).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list conversations", err, "")
	}
	return functional.Map(entities, func(e dbschema.ConversationSummary) *chat.Summary { return e.EtoD() }), nil
}

func (repo *ChatGormRepository) MarkRead(ctx context.Context, ownerID, otherUserID string) (chat.MarkReadResult, error) {
	var result chat.MarkReadResult
	err := repo.db.InTx(ctx, func(ctx context.Context) error {
		tx := repo.db.GetTx(ctx)

		var count int64
		if err := tx.Model(&dbschema.ConversationSummary{}).
			Where("owner_id = ? AND other_user_id = ?", ownerID, otherUserID).
			Count(&count).Error; err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load conversation", err, "")
		}
		if count > 0 {
			result.SummaryFound = true
			if err := tx.Model(&dbschema.ConversationSummary{}).
				Where("owner_id = ? AND other_user_id = ?", ownerID, otherUserID).
				Update("unread_count", 0).Error; err != nil {
				return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to reset unread count", err, "")
			}
		}

		updated := tx.Model(&dbschema.Message{}).
			Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", chat.ConversationID(ownerID, otherUserID), ownerID, false).
			Update("is_read", true)
		if updated.Error != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to flag messages as read", updated.Error, "")
		}
		result.MessagesUpdated = updated.RowsAffected
		return nil
	})
	return result, err
}

func (repo *ChatGormRepository) DeleteSummary(ctx context.Context, ownerID, otherUserID string) error {
	err := repo.db.GetTx(ctx).
		Where("owner_id = ? AND other_user_id = ?", ownerID, otherUserID).
		Delete(&dbschema.ConversationSummary{}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to delete conversation", err, "")
	}
	return nil
}

func (repo *ChatGormRepository) SumUnread(ctx context.Context, ownerID string) (int, error) {
	var total int64
	err := repo.primary(ctx).
		Model(&dbschema.ConversationSummary{}).
		Where("owner_id = ?", ownerID).
		Select("COALESCE(SUM(unread_count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to count unread messages", err, "")
	}
	return int(total), nil
}
