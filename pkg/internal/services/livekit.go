package services

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const livekitCallTimeout = 10 * time.Second

// The subset of lksdk.RoomServiceClient the provider depends on.
type livekitRoomService interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
	ListRooms(ctx context.Context, req *livekit.ListRoomsRequest) (*livekit.ListRoomsResponse, error)
	ListParticipants(ctx context.Context, req *livekit.ListParticipantsRequest) (*livekit.ListParticipantsResponse, error)
	RemoveParticipant(ctx context.Context, req *livekit.RoomParticipantIdentity) (*livekit.RemoveParticipantResponse, error)
}

type LiveKitProvider struct {
	rooms     livekitRoomService
	endpoint  string
	apiKey    string
	apiSecret string
}

func NewLiveKitProvider(rooms livekitRoomService, endpoint, apiKey, apiSecret string) *LiveKitProvider {
	return &LiveKitProvider{
		rooms:     rooms,
		endpoint:  endpoint,
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

func SetupLiveKit() *LiveKitProvider {
	endpoint := viper.GetString("calling.endpoint")
	apiKey := viper.GetString("calling.api_key")
	apiSecret := viper.GetString("calling.api_secret")

	client := lksdk.NewRoomServiceClient("https://"+endpoint, apiKey, apiSecret)
	return NewLiveKitProvider(client, endpoint, apiKey, apiSecret)
}

func (v *LiveKitProvider) RoomURL() string {
	return "wss://" + v.endpoint
}

func (v *LiveKitProvider) CreateRoom(ctx context.Context, opts RoomOptions) (ProvisionedRoom, error) {
	ctx, cancel := context.WithTimeout(ctx, livekitCallTimeout)
	defer cancel()

	// LiveKit never admits a connection without a signed token, so every
	// room is private regardless of opts.Private. The features ride along
	// in the room metadata for clients to render.
	metadata, _ := jsoniter.MarshalToString(opts.Features)

	room, err := v.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            opts.NameHint,
		EmptyTimeout:    uint32(opts.Expiry / time.Second),
		MaxParticipants: opts.MaxParticipants,
		Metadata:        metadata,
	})
	if err != nil {
		return ProvisionedRoom{}, fmt.Errorf("%w: remote livekit error: %v", ErrProvider, err)
	}
	if room == nil || len(room.GetName()) == 0 || len(room.GetSid()) == 0 {
		return ProvisionedRoom{}, fmt.Errorf("%w: livekit returned a room without name or sid", ErrProvider)
	}

	return ProvisionedRoom{Name: room.GetName(), URL: v.RoomURL()}, nil
}

func (v *LiveKitProvider) DeleteRoom(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, livekitCallTimeout)
	defer cancel()

	if _, err := v.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name}); err != nil {
		return fmt.Errorf("%w: unable to delete room %s: %v", ErrProvider, name, err)
	}
	return nil
}

func (v *LiveKitProvider) MintToken(ctx context.Context, req TokenRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, livekitCallTimeout)
	defer cancel()

	res, err := v.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{req.RoomName}})
	if err != nil {
		return "", fmt.Errorf("%w: remote livekit error: %v", ErrProvider, err)
	} else if len(res.GetRooms()) == 0 {
		return "", fmt.Errorf("%w: room %s is unknown to livekit", ErrProvider, req.RoomName)
	}

	return v.EncodeToken(req)
}

// EncodeToken signs a join token locally without asking LiveKit whether the room exists.
func (v *LiveKitProvider) EncodeToken(req TokenRequest) (string, error) {
	sources := []livekit.TrackSource{
		livekit.TrackSource_CAMERA,
		livekit.TrackSource_MICROPHONE,
	}
	if req.Features.ScreenShare {
		sources = append(sources, livekit.TrackSource_SCREEN_SHARE, livekit.TrackSource_SCREEN_SHARE_AUDIO)
	}

	grant := &auth.VideoGrant{
		Room:      req.RoomName,
		RoomJoin:  true,
		RoomAdmin: req.IsOwner,
	}
	grant.SetCanPublishSources(sources)
	grant.SetCanPublishData(req.Features.Chat)

	metadata, _ := jsoniter.MarshalToString(map[string]any{
		"identity": req.Identity,
		"is_owner": req.IsOwner,
	})

	tk := auth.NewAccessToken(v.apiKey, v.apiSecret)
	tk.AddGrant(grant).
		SetIdentity(req.Identity).
		SetName(req.DisplayName).
		SetMetadata(metadata).
		SetValidFor(req.Expiry)

	token, err := tk.ToJWT()
	if err != nil {
		return "", fmt.Errorf("%w: unable to sign token: %v", ErrProvider, err)
	}
	return token, nil
}

func (v *LiveKitProvider) RemoveParticipant(ctx context.Context, roomName, identity string) error {
	ctx, cancel := context.WithTimeout(ctx, livekitCallTimeout)
	defer cancel()

	if _, err := v.rooms.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     roomName,
		Identity: identity,
	}); err != nil {
		return fmt.Errorf("%w: unable to remove participant: %v", ErrProvider, err)
	}
	return nil
}

func (v *LiveKitProvider) ListParticipants(ctx context.Context, roomName string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, livekitCallTimeout)
	defer cancel()

	res, err := v.rooms.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: roomName})
	if err != nil {
		return nil, fmt.Errorf("%w: remote livekit error: %v", ErrProvider, err)
	}
	return lo.Map(res.GetParticipants(), func(item *livekit.ParticipantInfo, _ int) string {
		return item.GetIdentity()
	}), nil
}
