package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"ganttly/models"
)

// LinkSweeper periodically deletes expired share links. The access resolver
// and list filter already treat expired links as nonexistent, so the sweeper
// only keeps the table from accumulating dead rows.
type LinkSweeper struct {
	DB       *gorm.DB
	Interval time.Duration
	Logger   *log.Logger
}

func NewLinkSweeper(db *gorm.DB, interval time.Duration, logger *log.Logger) *LinkSweeper {
	return &LinkSweeper{
		DB:       db,
		Interval: interval,
		Logger:   logger,
	}
}

func (ls *LinkSweeper) Start(ctx context.Context) {
	ls.Logger.Println("Link sweeper started")

	ticker := time.NewTicker(ls.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ls.Logger.Println("Link sweeper shutting down...")
			return
		case <-ticker.C:
			ls.Sweep()
		}
	}
}

// Sweep removes every link whose expiry has passed.
func (ls *LinkSweeper) Sweep() {
	result := ls.DB.Unscoped().
		Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now()).
		Delete(&models.ShareLink{})
	if result.Error != nil {
		ls.Logger.Printf("Error sweeping expired share links: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		ls.Logger.Printf("Swept %d expired share links", result.RowsAffected)
	}
}
