package store

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"ragchat/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &ConversationModel{}, &MessageModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateUser inserts a user and returns it with the assigned id.
func (s *GormStore) CreateUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// DeleteUser removes the user, its conversations, and their messages.
// The explicit transactional cascade also covers databases migrated
// before the FK constraints existed.
func (s *GormStore) DeleteUser(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(
			"conversation_id IN (?)",
			tx.Model(&ConversationModel{}).Select("id").Where("owner_id = ?", id),
		).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ConversationModel{}, "owner_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// CreateConversation inserts a conversation and returns it with the assigned id.
func (s *GormStore) CreateConversation(c domain.Conversation) (domain.Conversation, error) {
	model := conversationToModel(c)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Conversation{}, err
	}
	return conversationFromModel(model), nil
}

// GetConversationByOwner returns one conversation scoped to its owner.
func (s *GormStore) GetConversationByOwner(id, ownerID int64) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ListConversationsByOwner returns the owner's conversations newest-first.
func (s *GormStore) ListConversationsByOwner(ownerID int64) ([]domain.Conversation, error) {
	var models []ConversationModel
	if err := s.db.Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Conversation, 0, len(models))
	for _, model := range models {
		items = append(items, conversationFromModel(model))
	}
	return items, nil
}

// SetConversationTitle updates the title of one conversation.
func (s *GormStore) SetConversationTitle(id int64, title string) error {
	return s.db.Model(&ConversationModel{}).Where("id = ?", id).Update("title", title).Error
}

// AppendMessage inserts a message and returns it with the assigned id.
func (s *GormStore) AppendMessage(msg domain.Message) (domain.Message, error) {
	model, err := messageToModel(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode sources: %w", err)
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Message{}, err
	}
	return messageFromModel(model), nil
}

// ListMessages returns the conversation transcript in chronological order.
func (s *GormStore) ListMessages(conversationID int64) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, messageFromModel(model))
	}
	return msgs, nil
}
