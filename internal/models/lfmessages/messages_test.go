package lfmessages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestService(t *testing.T) *Service {
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(&Message{}))

	return NewService(testDB)
}

func TestCreateAndGet(t *testing.T) {
	s := setupTestService(t)

	message := &Message{
		Name:    "Jean Dupont",
		Email:   "jean@example.com",
		Subject: "Proposition",
		Message: "Bonjour, votre portfolio est superbe.",
	}
	require.NoError(t, s.Create(message))
	assert.NotZero(t, message.ID)
	assert.WithinDuration(t, time.Now(), message.CreatedAt, time.Minute)

	found, err := s.Get(message.ID)
	require.NoError(t, err)
	assert.Equal(t, "jean@example.com", found.Email)
}

func TestGet_NotFound(t *testing.T) {
	s := setupTestService(t)

	_, err := s.Get(999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	s := setupTestService(t)

	older := &Message{Name: "A", Email: "a@example.com", Subject: "s", Message: "m"}
	require.NoError(t, s.Create(older))
	require.NoError(t, s.db.Model(older).Update("created_at", time.Now().Add(-time.Hour)).Error)

	newer := &Message{Name: "B", Email: "b@example.com", Subject: "s", Message: "m"}
	require.NoError(t, s.Create(newer))

	messages, err := s.List()
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "B", messages[0].Name)
}
