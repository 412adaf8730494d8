package models

import "gorm.io/datatypes"

const (
	EventMeetingStart = "meetings.start"
	EventMeetingEnd   = "meetings.end"
)

type Event struct {
	BaseModel

	Uuid      string            `json:"uuid"`
	Body      datatypes.JSONMap `json:"body"`
	Type      string            `json:"type"`
	ChannelID uint              `json:"channel_id" gorm:"index"`
	SenderID  uint              `json:"sender_id"`
}
