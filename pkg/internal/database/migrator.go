package database

import (
	"fmt"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"gorm.io/gorm"
)

var AutoMaintainRange = []any{
	&models.Channel{},
	&models.ChannelMember{},
	&models.Meeting{},
	&models.MeetingParticipant{},
	&models.Event{},
}

func RunMigration(source *gorm.DB) error {
	if err := source.AutoMigrate(AutoMaintainRange...); err != nil {
		return err
	}

	// Backstop beneath the transactional check in the meeting manager,
	// a second active meeting for a channel fails with a unique violation.
	table := source.NamingStrategy.TableName("Meeting")
	if err := source.Exec(fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_active_channel ON %s (channel_id) WHERE is_active",
		table, table,
	)).Error; err != nil {
		return fmt.Errorf("unable to create active meeting index: %v", err)
	}

	return nil
}
