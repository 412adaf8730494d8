package services

import (
	"context"
	"fmt"
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// MembershipLookup answers who belongs to a channel. A nil member with a nil
// error means the account holds no membership.
type MembershipLookup interface {
	GetMembership(ctx context.Context, channelId, accountId uint) (*models.ChannelMember, error)
	DisplayNames(ctx context.Context, channelId uint, accountIds []uint) (map[uint]string, error)
}

// CanHostMeeting reports whether the member's role carries host privileges.
func CanHostMeeting(member models.ChannelMember) bool {
	return member.PowerLevel >= models.PowerLevelModerator
}

type membershipCacheEntry struct {
	Name string
	Nick string
}

type MembershipService struct {
	db    *gorm.DB
	store store.StoreInterface
}

// NewMembershipService reads memberships from db. Display names are cached in
// cacheStore when one is given, admission always goes to the database.
func NewMembershipService(db *gorm.DB, cacheStore store.StoreInterface) *MembershipService {
	return &MembershipService{db: db, store: cacheStore}
}

func GetMembershipCacheKey(channelId, accountId uint) string {
	return fmt.Sprintf("channel-membership#%d@%d", accountId, channelId)
}

func (v *MembershipService) GetMembership(ctx context.Context, channelId, accountId uint) (*models.ChannelMember, error) {
	var member models.ChannelMember
	if err := v.db.WithContext(ctx).
		Where("channel_id = ? AND account_id = ?", channelId, accountId).
		First(&member).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	v.setCached(ctx, member)
	return &member, nil
}

// DisplayNames resolves names for presentation only, cached entries may lag
// behind the member table until they expire.
func (v *MembershipService) DisplayNames(ctx context.Context, channelId uint, accountIds []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(accountIds))
	var missing []uint
	for _, id := range accountIds {
		if name, ok := v.getCached(ctx, channelId, id); ok {
			out[id] = name
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	var members []models.ChannelMember
	if err := v.db.WithContext(ctx).
		Where("channel_id = ? AND account_id IN ?", channelId, missing).
		Find(&members).Error; err != nil {
		return out, err
	}
	for _, member := range members {
		out[member.AccountID] = member.DisplayName()
		v.setCached(ctx, member)
	}
	return out, nil
}

func (v *MembershipService) getCached(ctx context.Context, channelId, accountId uint) (string, bool) {
	if v.store == nil {
		return "", false
	}
	marshal := marshaler.New(cache.New[any](v.store))
	val, err := marshal.Get(ctx, GetMembershipCacheKey(channelId, accountId), new(membershipCacheEntry))
	if err != nil {
		return "", false
	}
	entry := val.(*membershipCacheEntry)
	return models.ChannelMember{Name: entry.Name, Nick: entry.Nick}.DisplayName(), true
}

func (v *MembershipService) setCached(ctx context.Context, member models.ChannelMember) {
	if v.store == nil {
		return
	}
	marshal := marshaler.New(cache.New[any](v.store))
	if err := marshal.Set(
		ctx,
		GetMembershipCacheKey(member.ChannelID, member.AccountID),
		membershipCacheEntry{Name: member.Name, Nick: member.Nick},
		store.WithExpiration(5*time.Minute),
		store.WithTags([]string{
			"channel-membership",
			fmt.Sprintf("channel#%d", member.ChannelID),
			fmt.Sprintf("user#%d", member.AccountID),
		}),
	); err != nil {
		log.Warn().Err(err).Msg("Unable to cache channel member name.")
	}
}
