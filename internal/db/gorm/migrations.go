package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/thebtf/chorus/pkg/models"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Core tables (Comment, Annotation, PostRecord)
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				// AutoMigrate creates tables with all indexes from struct tags
				if err := tx.AutoMigrate(&models.Comment{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&models.Annotation{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&models.PostRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("comments", "annotations", "post_records")
			},
		},
	})

	return m.Migrate()
}
