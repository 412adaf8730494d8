package services

import (
	"context"
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MeetingRepository is the unit of work behind the meeting manager.
// Lookups that find nothing return gorm.ErrRecordNotFound.
type MeetingRepository interface {
	// Transaction runs fn against a repository bound to one database transaction.
	// Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx MeetingRepository) error) error
	// ForUpdate returns a view whose active meeting lookups lock the meeting
	// row until the surrounding transaction ends. Every participant mutation
	// goes through such a lookup so they apply one at a time per meeting.
	ForUpdate() MeetingRepository

	GetChannel(ctx context.Context, id uint) (models.Channel, error)

	FindActiveMeetingByChannel(ctx context.Context, channelId uint) (models.Meeting, error)
	FindActiveMeetingByRoomName(ctx context.Context, roomName string) (models.Meeting, error)
	ListActiveMeetings(ctx context.Context) ([]models.Meeting, error)
	ListMeetings(ctx context.Context, channelId uint, take, offset int) ([]models.Meeting, error)
	CreateMeeting(ctx context.Context, meeting *models.Meeting, host *models.MeetingParticipant) error
	EndMeeting(ctx context.Context, meeting *models.Meeting, at time.Time) error

	FindParticipant(ctx context.Context, meetingId, accountId uint) (models.MeetingParticipant, error)
	SaveParticipant(ctx context.Context, participant *models.MeetingParticipant) error
	ListPresentParticipants(ctx context.Context, meetingId uint) ([]models.MeetingParticipant, error)
	CountPresentParticipants(ctx context.Context, meetingId uint) (int64, error)
	MarkAllPresentLeft(ctx context.Context, meetingId uint, at time.Time) (int64, error)

	CreateEvent(ctx context.Context, event *models.Event) error
}

type gormMeetingRepository struct {
	db   *gorm.DB
	lock bool
}

func NewMeetingRepository(db *gorm.DB) MeetingRepository {
	return &gormMeetingRepository{db: db}
}

func (v *gormMeetingRepository) Transaction(ctx context.Context, fn func(tx MeetingRepository) error) error {
	return v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormMeetingRepository{db: tx})
	})
}

func (v *gormMeetingRepository) ForUpdate() MeetingRepository {
	return &gormMeetingRepository{db: v.db, lock: true}
}

func (v *gormMeetingRepository) activeMeetings(ctx context.Context) *gorm.DB {
	tx := v.db.WithContext(ctx)
	if v.lock {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (v *gormMeetingRepository) GetChannel(ctx context.Context, id uint) (models.Channel, error) {
	var channel models.Channel
	if err := v.db.WithContext(ctx).
		Where("id = ?", id).
		First(&channel).Error; err != nil {
		return channel, err
	}
	return channel, nil
}

func (v *gormMeetingRepository) FindActiveMeetingByChannel(ctx context.Context, channelId uint) (models.Meeting, error) {
	var meeting models.Meeting
	if err := v.activeMeetings(ctx).
		Where("channel_id = ? AND is_active = ?", channelId, true).
		First(&meeting).Error; err != nil {
		return meeting, err
	}
	return meeting, nil
}

func (v *gormMeetingRepository) FindActiveMeetingByRoomName(ctx context.Context, roomName string) (models.Meeting, error) {
	var meeting models.Meeting
	if err := v.activeMeetings(ctx).
		Where("external_room_name = ? AND is_active = ?", roomName, true).
		First(&meeting).Error; err != nil {
		return meeting, err
	}
	return meeting, nil
}

func (v *gormMeetingRepository) ListActiveMeetings(ctx context.Context) ([]models.Meeting, error) {
	var meetings []models.Meeting
	if err := v.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("started_at ASC").
		Find(&meetings).Error; err != nil {
		return meetings, err
	}
	return meetings, nil
}

func (v *gormMeetingRepository) ListMeetings(ctx context.Context, channelId uint, take, offset int) ([]models.Meeting, error) {
	var meetings []models.Meeting
	if err := v.db.WithContext(ctx).
		Where("channel_id = ?", channelId).
		Limit(take).
		Offset(offset).
		Order("started_at DESC").
		Find(&meetings).Error; err != nil {
		return meetings, err
	}
	return meetings, nil
}

func (v *gormMeetingRepository) CreateMeeting(ctx context.Context, meeting *models.Meeting, host *models.MeetingParticipant) error {
	tx := v.db.WithContext(ctx)
	if err := tx.Omit("Participants").Create(meeting).Error; err != nil {
		return err
	}
	host.MeetingID = meeting.ID
	if err := tx.Create(host).Error; err != nil {
		return err
	}
	meeting.Participants = []models.MeetingParticipant{*host}
	return nil
}

func (v *gormMeetingRepository) EndMeeting(ctx context.Context, meeting *models.Meeting, at time.Time) error {
	tx := v.db.WithContext(ctx).
		Model(&models.Meeting{}).
		Where("id = ? AND is_active = ?", meeting.ID, true).
		Updates(map[string]any{
			"is_active": false,
			"ended_at":  at,
		})
	if tx.Error != nil {
		return tx.Error
	} else if tx.RowsAffected == 0 {
		return ErrNoActiveMeeting
	}

	meeting.IsActive = false
	meeting.EndedAt = &at
	return nil
}

func (v *gormMeetingRepository) FindParticipant(ctx context.Context, meetingId, accountId uint) (models.MeetingParticipant, error) {
	var participant models.MeetingParticipant
	if err := v.db.WithContext(ctx).
		Where("meeting_id = ? AND account_id = ?", meetingId, accountId).
		First(&participant).Error; err != nil {
		return participant, err
	}
	return participant, nil
}

func (v *gormMeetingRepository) SaveParticipant(ctx context.Context, participant *models.MeetingParticipant) error {
	return v.db.WithContext(ctx).Save(participant).Error
}

func (v *gormMeetingRepository) ListPresentParticipants(ctx context.Context, meetingId uint) ([]models.MeetingParticipant, error) {
	var participants []models.MeetingParticipant
	if err := v.db.WithContext(ctx).
		Where("meeting_id = ? AND left_at IS NULL", meetingId).
		Order("joined_at ASC").
		Find(&participants).Error; err != nil {
		return participants, err
	}
	return participants, nil
}

func (v *gormMeetingRepository) CountPresentParticipants(ctx context.Context, meetingId uint) (int64, error) {
	var count int64
	if err := v.db.WithContext(ctx).
		Model(&models.MeetingParticipant{}).
		Where("meeting_id = ? AND left_at IS NULL", meetingId).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (v *gormMeetingRepository) MarkAllPresentLeft(ctx context.Context, meetingId uint, at time.Time) (int64, error) {
	tx := v.db.WithContext(ctx).
		Model(&models.MeetingParticipant{}).
		Where("meeting_id = ? AND left_at IS NULL", meetingId).
		Update("left_at", at)
	return tx.RowsAffected, tx.Error
}

func (v *gormMeetingRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	return v.db.WithContext(ctx).Create(event).Error
}
