package worker

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ganttly/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled :memory: database is a different database per connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.ShareLink{}))
	return db
}

func TestSweepRemovesOnlyExpiredLinks(t *testing.T) {
	db := newTestDB(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	links := []models.ShareLink{
		{OwnerID: 1, Token: "expired", ResourceType: models.ResourceTask, ResourceID: 1, Permission: "view", ExpiresAt: &past},
		{OwnerID: 1, Token: "live", ResourceType: models.ResourceTask, ResourceID: 2, Permission: "view", ExpiresAt: &future},
		{OwnerID: 1, Token: "forever", ResourceType: models.ResourceTask, ResourceID: 3, Permission: "view"},
	}
	for i := range links {
		require.NoError(t, db.Create(&links[i]).Error)
	}

	sweeper := NewLinkSweeper(db, time.Minute, log.New(io.Discard, "", 0))
	sweeper.Sweep()

	var remaining []models.ShareLink
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	tokens := []string{remaining[0].Token, remaining[1].Token}
	assert.ElementsMatch(t, []string{"live", "forever"}, tokens)

	// The expired row is gone for good, not soft-deleted.
	var count int64
	require.NoError(t, db.Unscoped().Model(&models.ShareLink{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSweepEmptyTable(t *testing.T) {
	db := newTestDB(t)
	sweeper := NewLinkSweeper(db, time.Minute, log.New(io.Discard, "", 0))
	sweeper.Sweep()

	var count int64
	require.NoError(t, db.Model(&models.ShareLink{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
