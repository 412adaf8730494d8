package models

import "time"

// Meeting is the control-plane record of one video session bound to a channel.
// At most one row per channel may have IsActive set, which the database
// enforces with a partial unique index created by the migrator.
type Meeting struct {
	BaseModel

	Title     string     `json:"title"`
	ChannelID uint       `json:"channel_id" gorm:"index"`
	HostID    uint       `json:"host_id"`
	IsActive  bool       `json:"is_active" gorm:"index"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`

	// Connection material, only handed out through token issuance.
	ExternalRoomName string `json:"-" gorm:"uniqueIndex"`
	ExternalRoomURL  string `json:"-"`

	Participants []MeetingParticipant `json:"participants,omitempty"`
}

type MeetingParticipant struct {
	BaseModel

	MeetingID uint       `json:"meeting_id" gorm:"uniqueIndex:idx_meeting_participant"`
	AccountID uint       `json:"account_id" gorm:"uniqueIndex:idx_meeting_participant"`
	JoinedAt  time.Time  `json:"joined_at"`
	LeftAt    *time.Time `json:"left_at"`

	DisplayName string `json:"display_name,omitempty" gorm:"-"`
}

func (v MeetingParticipant) IsPresent() bool {
	return v.LeftAt == nil
}
