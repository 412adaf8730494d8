package services

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultRoomExpiry    = 10 * time.Minute
	DefaultTokenExpiry   = 10 * time.Minute
	DefaultPresenceGrace = 10 * time.Minute
	MaxExpiry            = 10 * time.Minute
)

type MeetingConfig struct {
	// RoomExpiry is the provider side empty-room timeout. The meeting row
	// stays authoritative, this only reaps rooms the manager forgot.
	RoomExpiry      time.Duration
	TokenExpiry     time.Duration
	MaxParticipants uint32
	Features        RoomFeatures
	// PresenceGrace is how long a participant may be recorded present
	// without showing up at the provider before reconciliation drops them.
	PresenceGrace time.Duration
}

func DefaultMeetingConfig() MeetingConfig {
	return MeetingConfig{
		RoomExpiry:    DefaultRoomExpiry,
		TokenExpiry:   DefaultTokenExpiry,
		PresenceGrace: DefaultPresenceGrace,
		Features: RoomFeatures{
			ScreenShare: true,
			Chat:        false,
		},
	}
}

func ReadMeetingConfig() MeetingConfig {
	config := DefaultMeetingConfig()
	if viper.IsSet("calling.room_expiry") {
		config.RoomExpiry = viper.GetDuration("calling.room_expiry")
	}
	if viper.IsSet("calling.token_expiry") {
		config.TokenExpiry = viper.GetDuration("calling.token_expiry")
	}
	if viper.IsSet("calling.presence_grace") {
		config.PresenceGrace = viper.GetDuration("calling.presence_grace")
	}
	if viper.IsSet("calling.enable_screen_share") {
		config.Features.ScreenShare = viper.GetBool("calling.enable_screen_share")
	}
	if viper.IsSet("calling.enable_chat") {
		config.Features.Chat = viper.GetBool("calling.enable_chat")
	}
	config.MaxParticipants = viper.GetUint32("calling.max_participants")
	return config.normalize()
}

func (v MeetingConfig) normalize() MeetingConfig {
	v.RoomExpiry = boundExpiry(v.RoomExpiry, DefaultRoomExpiry)
	v.TokenExpiry = boundExpiry(v.TokenExpiry, DefaultTokenExpiry)
	if v.PresenceGrace <= 0 {
		v.PresenceGrace = DefaultPresenceGrace
	}
	return v
}

func boundExpiry(val, fallback time.Duration) time.Duration {
	if val <= 0 {
		return fallback
	}
	if val > MaxExpiry {
		return MaxExpiry
	}
	return val
}
