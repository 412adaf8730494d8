package services

import (
	"context"
	"time"
)

type RoomFeatures struct {
	ScreenShare bool `json:"screen_share"`
	Chat        bool `json:"chat"`
}

type RoomOptions struct {
	NameHint string
	// Private rooms refuse anonymous joins, a minted token is mandatory.
	Private         bool
	Expiry          time.Duration
	MaxParticipants uint32
	Features        RoomFeatures
}

type ProvisionedRoom struct {
	Name string
	URL  string
}

type TokenRequest struct {
	RoomName    string
	DisplayName string
	Identity    string
	IsOwner     bool
	Expiry      time.Duration
	Features    RoomFeatures
}

// RoomProvider is the external service that hosts the media session.
// None of its calls are retried here.
type RoomProvider interface {
	CreateRoom(ctx context.Context, opts RoomOptions) (ProvisionedRoom, error)
	DeleteRoom(ctx context.Context, name string) error
	MintToken(ctx context.Context, req TokenRequest) (string, error)
	RemoveParticipant(ctx context.Context, roomName, identity string) error
	ListParticipants(ctx context.Context, roomName string) ([]string, error)
}
