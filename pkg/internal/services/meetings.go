package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const releaseRoomTimeout = 15 * time.Second

type MeetingCredential struct {
	Token   string `json:"token"`
	RoomURL string `json:"url"`
}

// MeetingManager owns every state change of meetings and their participants.
// It holds no locks of its own, all serialization happens inside repository
// transactions so several processes may share one database.
type MeetingManager struct {
	repo     MeetingRepository
	provider RoomProvider
	members  MembershipLookup
	config   MeetingConfig

	now func() time.Time
}

func NewMeetingManager(repo MeetingRepository, provider RoomProvider, members MembershipLookup, config MeetingConfig) *MeetingManager {
	return &MeetingManager{
		repo:     repo,
		provider: provider,
		members:  members,
		config:   config.normalize(),
		now:      time.Now,
	}
}

func NewRoomName(channel models.Channel) string {
	prefix := channel.Alias
	if len(prefix) == 0 {
		prefix = "channel"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s+%d+%s", prefix, channel.ID, suffix)
}

func FormatIdentity(accountId uint) string {
	return strconv.FormatUint(uint64(accountId), 10)
}

func ParseIdentity(identity string) (uint, error) {
	id, err := strconv.ParseUint(identity, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid participant identity %q: %v", identity, err)
	}
	return uint(id), nil
}

func (v *MeetingManager) getChannel(ctx context.Context, id uint) (models.Channel, error) {
	channel, err := v.repo.GetChannel(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return channel, fmt.Errorf("%w: channel %d does not exist", ErrNotFound, id)
		}
		return channel, err
	}
	return channel, nil
}

func findActiveMeeting(ctx context.Context, repo MeetingRepository, channelId uint) (models.Meeting, error) {
	meeting, err := repo.FindActiveMeetingByChannel(ctx, channelId)
	if err != nil && isRecordNotFound(err) {
		return meeting, ErrNoActiveMeeting
	}
	return meeting, err
}

func (v *MeetingManager) StartMeeting(ctx context.Context, channelId, callerId uint, title string) (models.Meeting, error) {
	channel, err := v.getChannel(ctx, channelId)
	if err != nil {
		return models.Meeting{}, err
	}

	// Fail fast before provisioning a room. The transaction below repeats
	// this check and is the one that actually decides.
	if _, err := v.repo.FindActiveMeetingByChannel(ctx, channel.ID); err == nil {
		return models.Meeting{}, ErrAlreadyActive
	} else if !isRecordNotFound(err) {
		return models.Meeting{}, err
	}

	room, err := v.provider.CreateRoom(ctx, RoomOptions{
		NameHint:        NewRoomName(channel),
		Private:         true,
		Expiry:          v.config.RoomExpiry,
		MaxParticipants: v.config.MaxParticipants,
		Features:        v.config.Features,
	})
	if err != nil {
		return models.Meeting{}, wrapProviderError(err)
	}

	now := v.now()
	meeting := models.Meeting{
		Title:            title,
		ChannelID:        channel.ID,
		HostID:           callerId,
		IsActive:         true,
		StartedAt:        now,
		ExternalRoomName: room.Name,
		ExternalRoomURL:  room.URL,
	}
	err = v.repo.Transaction(ctx, func(tx MeetingRepository) error {
		if _, err := tx.FindActiveMeetingByChannel(ctx, channel.ID); err == nil {
			return ErrConflictRace
		} else if !isRecordNotFound(err) {
			return err
		}

		host := models.MeetingParticipant{AccountID: callerId, JoinedAt: now}
		if err := tx.CreateMeeting(ctx, &meeting, &host); err != nil {
			if isUniqueViolation(err) {
				return ErrConflictRace
			}
			return err
		}

		return tx.CreateEvent(ctx, &models.Event{
			Uuid:      uuid.NewString(),
			Type:      models.EventMeetingStart,
			ChannelID: channel.ID,
			SenderID:  callerId,
			Body: map[string]any{
				"meeting_id": meeting.ID,
				"title":      meeting.Title,
			},
		})
	})
	if err != nil {
		// Nothing references the room anymore.
		if errors.Is(err, ErrConflictRace) {
			log.Debug().Uint("channel", channel.ID).Str("room", room.Name).
				Msg("Lost a concurrent meeting start, releasing the provisioned room...")
		}
		v.releaseRoom(ctx, room.Name)
		return models.Meeting{}, err
	}

	log.Info().Uint("channel", channel.ID).Uint("meeting", meeting.ID).Uint("host", callerId).
		Msg("A meeting has been started.")
	return meeting, nil
}

// GetActiveMeeting returns the ongoing meeting of the channel with its present
// participants, or nil when there is none.
func (v *MeetingManager) GetActiveMeeting(ctx context.Context, channelId uint) (*models.Meeting, error) {
	if _, err := v.getChannel(ctx, channelId); err != nil {
		return nil, err
	}

	meeting, err := v.repo.FindActiveMeetingByChannel(ctx, channelId)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if meeting.Participants, err = v.repo.ListPresentParticipants(ctx, meeting.ID); err != nil {
		return nil, err
	}

	names, err := v.members.DisplayNames(ctx, channelId, lo.Map(meeting.Participants, func(item models.MeetingParticipant, _ int) uint {
		return item.AccountID
	}))
	if err != nil {
		log.Warn().Err(err).Uint("meeting", meeting.ID).Msg("Unable to resolve participant names.")
	}
	for idx := range meeting.Participants {
		meeting.Participants[idx].DisplayName = names[meeting.Participants[idx].AccountID]
	}
	return &meeting, nil
}

func (v *MeetingManager) ListMeetings(ctx context.Context, channelId uint, take, offset int) ([]models.Meeting, error) {
	if _, err := v.getChannel(ctx, channelId); err != nil {
		return nil, err
	}
	if take <= 0 || take > 100 {
		take = 100
	}
	if offset < 0 {
		offset = 0
	}
	return v.repo.ListMeetings(ctx, channelId, take, offset)
}

func (v *MeetingManager) JoinMeeting(ctx context.Context, channelId, callerId uint) (MeetingCredential, error) {
	if _, err := v.getChannel(ctx, channelId); err != nil {
		return MeetingCredential{}, err
	}

	member, err := v.members.GetMembership(ctx, channelId, callerId)
	if err != nil {
		return MeetingCredential{}, err
	} else if member == nil {
		return MeetingCredential{}, fmt.Errorf("%w: you are not a member of this channel", ErrForbidden)
	}

	var meeting models.Meeting
	err = v.repo.Transaction(ctx, func(tx MeetingRepository) error {
		var err error
		if meeting, err = findActiveMeeting(ctx, tx.ForUpdate(), channelId); err != nil {
			return err
		}
		return admitParticipant(ctx, tx, meeting.ID, callerId, v.now())
	})
	if err != nil {
		return MeetingCredential{}, err
	}

	// The participant stays recorded even if minting fails, joining again
	// only retries the token.
	token, err := v.provider.MintToken(ctx, TokenRequest{
		RoomName:    meeting.ExternalRoomName,
		DisplayName: member.DisplayName(),
		Identity:    FormatIdentity(callerId),
		IsOwner:     CanHostMeeting(*member),
		Expiry:      v.config.TokenExpiry,
		Features:    v.config.Features,
	})
	if err != nil {
		return MeetingCredential{}, wrapProviderError(err)
	}

	return MeetingCredential{Token: token, RoomURL: meeting.ExternalRoomURL}, nil
}

func admitParticipant(ctx context.Context, tx MeetingRepository, meetingId, accountId uint, now time.Time) error {
	participant, err := tx.FindParticipant(ctx, meetingId, accountId)
	if err != nil {
		if !isRecordNotFound(err) {
			return err
		}
		participant = models.MeetingParticipant{
			MeetingID: meetingId,
			AccountID: accountId,
			JoinedAt:  now,
		}
		return tx.SaveParticipant(ctx, &participant)
	}

	if participant.IsPresent() {
		return nil
	}
	participant.LeftAt = nil
	participant.JoinedAt = now
	return tx.SaveParticipant(ctx, &participant)
}

// LeaveMeeting records the caller's departure and reports whether it was the
// last one, which ends the meeting.
func (v *MeetingManager) LeaveMeeting(ctx context.Context, channelId, callerId uint) (bool, error) {
	if _, err := v.getChannel(ctx, channelId); err != nil {
		return false, err
	}

	var ended bool
	var meeting models.Meeting
	err := v.repo.Transaction(ctx, func(tx MeetingRepository) error {
		var err error
		if meeting, err = findActiveMeeting(ctx, tx.ForUpdate(), channelId); err != nil {
			return err
		}
		ended, err = departParticipant(ctx, tx, &meeting, callerId, v.now())
		return err
	})
	if err != nil {
		return false, err
	}

	if ended {
		v.releaseRoom(ctx, meeting.ExternalRoomName)
	}
	return ended, nil
}

// ForceLeave handles a disconnect reported by the provider, which only knows
// the room. A room without an active meeting is ignored.
func (v *MeetingManager) ForceLeave(ctx context.Context, roomName string, accountId uint) error {
	var ended, matched bool
	var meeting models.Meeting
	err := v.repo.Transaction(ctx, func(tx MeetingRepository) error {
		var err error
		if meeting, err = tx.ForUpdate().FindActiveMeetingByRoomName(ctx, roomName); err != nil {
			if isRecordNotFound(err) {
				return nil
			}
			return err
		}
		matched = true
		ended, err = departParticipant(ctx, tx, &meeting, accountId, v.now())
		return err
	})
	if err != nil {
		return err
	}

	if !matched {
		log.Debug().Str("room", roomName).Msg("Disconnect signal for a room without ongoing meeting, skipped.")
		return nil
	}
	if ended {
		v.releaseRoom(ctx, meeting.ExternalRoomName)
	}
	return nil
}

func departParticipant(ctx context.Context, tx MeetingRepository, meeting *models.Meeting, accountId uint, now time.Time) (bool, error) {
	participant, err := tx.FindParticipant(ctx, meeting.ID, accountId)
	if err == nil && participant.IsPresent() {
		participant.LeftAt = &now
		if err := tx.SaveParticipant(ctx, &participant); err != nil {
			return false, err
		}
	} else if err != nil && !isRecordNotFound(err) {
		return false, err
	}

	remaining, err := tx.CountPresentParticipants(ctx, meeting.ID)
	if err != nil {
		return false, err
	} else if remaining > 0 {
		return false, nil
	}

	if err := closeMeeting(ctx, tx, meeting, accountId, now); err != nil {
		return false, err
	}
	return true, nil
}

func closeMeeting(ctx context.Context, tx MeetingRepository, meeting *models.Meeting, senderId uint, now time.Time) error {
	if err := tx.EndMeeting(ctx, meeting, now); err != nil {
		return err
	}
	return tx.CreateEvent(ctx, &models.Event{
		Uuid:      uuid.NewString(),
		Type:      models.EventMeetingEnd,
		ChannelID: meeting.ChannelID,
		SenderID:  senderId,
		Body: map[string]any{
			"meeting_id": meeting.ID,
			"last":       now.Unix() - meeting.StartedAt.Unix(),
		},
	})
}

func (v *MeetingManager) EndMeeting(ctx context.Context, channelId, callerId uint) error {
	if _, err := v.getChannel(ctx, channelId); err != nil {
		return err
	}

	var meeting models.Meeting
	err := v.repo.Transaction(ctx, func(tx MeetingRepository) error {
		var err error
		if meeting, err = findActiveMeeting(ctx, tx.ForUpdate(), channelId); err != nil {
			return err
		}
		if meeting.HostID != callerId {
			return fmt.Errorf("%w: only the meeting host can end this meeting", ErrForbidden)
		}

		now := v.now()
		if _, err := tx.MarkAllPresentLeft(ctx, meeting.ID, now); err != nil {
			return err
		}
		return closeMeeting(ctx, tx, &meeting, callerId, now)
	})
	if err != nil {
		return err
	}

	v.releaseRoom(ctx, meeting.ExternalRoomName)
	return nil
}

// KickParticipant disconnects target at the provider and then records the
// departure like a regular leave.
func (v *MeetingManager) KickParticipant(ctx context.Context, channelId, callerId, targetId uint) (bool, error) {
	if _, err := v.getChannel(ctx, channelId); err != nil {
		return false, err
	}

	meeting, err := findActiveMeeting(ctx, v.repo, channelId)
	if err != nil {
		return false, err
	}
	if meeting.HostID != callerId {
		member, err := v.members.GetMembership(ctx, channelId, callerId)
		if err != nil {
			return false, err
		} else if member == nil || !CanHostMeeting(*member) {
			return false, fmt.Errorf("%w: only meeting host or channel moderator can kick participants", ErrForbidden)
		}
	}

	if err := v.provider.RemoveParticipant(ctx, meeting.ExternalRoomName, FormatIdentity(targetId)); err != nil {
		return false, wrapProviderError(err)
	}

	var ended bool
	err = v.repo.Transaction(ctx, func(tx MeetingRepository) error {
		var err error
		if meeting, err = findActiveMeeting(ctx, tx.ForUpdate(), channelId); err != nil {
			return err
		}
		ended, err = departParticipant(ctx, tx, &meeting, targetId, v.now())
		return err
	})
	if err != nil {
		return false, err
	}

	if ended {
		v.releaseRoom(ctx, meeting.ExternalRoomName)
	}
	return ended, nil
}

// releaseRoom deletes the provider room after the meeting state committed.
// Failures are only logged, the database stays authoritative.
func (v *MeetingManager) releaseRoom(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseRoomTimeout)
	defer cancel()

	if err := v.provider.DeleteRoom(ctx, name); err != nil {
		log.Error().Err(err).Str("room", name).Msg("Unable to delete room at provider side")
	}
}
