package lfmessages

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Message est une soumission du formulaire de contact.
// Écrite une fois, relue par la vue admin, jamais modifiée.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null" json:"email"`
	Subject   string    `gorm:"not null" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(message *Message) error {
	if err := s.db.Create(message).Error; err != nil {
		return fmt.Errorf("error creating message: %w", err)
	}
	return nil
}

func (s *Service) List() ([]Message, error) {
	var messages []Message
	err := s.db.Order("created_at DESC").Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	return messages, nil
}

func (s *Service) Get(id uint) (*Message, error) {
	var message Message
	if err := s.db.First(&message, id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}
