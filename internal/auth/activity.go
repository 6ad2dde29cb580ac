package auth

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// activitySource names a collaborator table and the column holding the
// owning user id.
type activitySource struct {
	table  string
	column string
	field  func(*ActivityCounts) *int64
}

var activitySources = []activitySource{
	{"presets", "author_id", func(c *ActivityCounts) *int64 { return &c.Presets }},
	{"likes", "user_id", func(c *ActivityCounts) *int64 { return &c.Likes }},
	{"favorites", "user_id", func(c *ActivityCounts) *int64 { return &c.Favorites }},
	{"comments", "user_id", func(c *ActivityCounts) *int64 { return &c.Comments }},
	{"donations", "creator_id", func(c *ActivityCounts) *int64 { return &c.ReceivedDonations }},
}

type gormActivityCounter struct {
	db *gorm.DB
}

// NewActivityCounter counts rows in collaborator tables. Tables that do not
// exist in this database count as zero.
func NewActivityCounter(db *gorm.DB) ActivityCounter {
	return &gormActivityCounter{db: db}
}

func (c *gormActivityCounter) Counts(ctx context.Context, userID int64) (ActivityCounts, error) {
	var counts ActivityCounts
	db := c.db.WithContext(ctx)

	for _, src := range activitySources {
		if !db.Migrator().HasTable(src.table) {
			continue
		}
		if err := db.Table(src.table).Where(src.column+" = ?", userID).Count(src.field(&counts)).Error; err != nil {
			return ActivityCounts{}, fmt.Errorf("failed to count %s: %w", src.table, err)
		}
	}

	return counts, nil
}
