package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/database"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	hostAccount      uint = 1
	memberAccount    uint = 2
	moderatorAccount uint = 3
	outsiderAccount  uint = 9
)

type fakeProvider struct {
	mu sync.Mutex

	created []RoomOptions
	deleted []string
	removed []string
	tokens  []TokenRequest

	connected map[string][]string

	createErr error
	deleteErr error
	mintErr   error
	removeErr error
	listErr   error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{connected: make(map[string][]string)}
}

func (v *fakeProvider) CreateRoom(_ context.Context, opts RoomOptions) (ProvisionedRoom, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.createErr != nil {
		return ProvisionedRoom{}, v.createErr
	}
	v.created = append(v.created, opts)
	return ProvisionedRoom{Name: opts.NameHint, URL: "wss://rooms.example.test"}, nil
}

func (v *fakeProvider) DeleteRoom(_ context.Context, name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deleted = append(v.deleted, name)
	return v.deleteErr
}

func (v *fakeProvider) MintToken(_ context.Context, req TokenRequest) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mintErr != nil {
		return "", v.mintErr
	}
	v.tokens = append(v.tokens, req)
	return "token-for-" + req.Identity, nil
}

func (v *fakeProvider) RemoveParticipant(_ context.Context, _ string, identity string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.removeErr != nil {
		return v.removeErr
	}
	v.removed = append(v.removed, identity)
	return nil
}

func (v *fakeProvider) ListParticipants(_ context.Context, roomName string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.listErr != nil {
		return nil, v.listErr
	}
	return v.connected[roomName], nil
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "meeting.db") + "?_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection makes concurrent transactions queue up behind each other.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.RunMigration(db))
	return db
}

type fixture struct {
	db       *gorm.DB
	provider *fakeProvider
	manager  *MeetingManager
	channel  models.Channel
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := openTestDatabase(t)
	channel := models.Channel{Alias: "standup", Name: "Standup"}
	require.NoError(t, db.Create(&channel).Error)
	for _, member := range []models.ChannelMember{
		{ChannelID: channel.ID, AccountID: hostAccount, Name: "alice", PowerLevel: models.PowerLevelMember},
		{ChannelID: channel.ID, AccountID: memberAccount, Name: "bob", Nick: "Bobby", PowerLevel: models.PowerLevelMember},
		{ChannelID: channel.ID, AccountID: moderatorAccount, Name: "carol", PowerLevel: models.PowerLevelModerator},
	} {
		require.NoError(t, db.Create(&member).Error)
	}

	f := &fixture{
		db:       db,
		provider: newFakeProvider(),
		channel:  channel,
		clock:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.manager = NewMeetingManager(
		NewMeetingRepository(db),
		f.provider,
		NewMembershipService(db, nil),
		DefaultMeetingConfig(),
	)
	f.manager.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) meeting(t *testing.T, id uint) models.Meeting {
	t.Helper()
	var meeting models.Meeting
	require.NoError(t, f.db.First(&meeting, id).Error)
	return meeting
}

func (f *fixture) participant(t *testing.T, meetingId, accountId uint) models.MeetingParticipant {
	t.Helper()
	var participant models.MeetingParticipant
	require.NoError(t, f.db.Where("meeting_id = ? AND account_id = ?", meetingId, accountId).First(&participant).Error)
	return participant
}

func (f *fixture) countActive(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Meeting{}).
		Where("channel_id = ? AND is_active = ?", f.channel.ID, true).
		Count(&count).Error)
	return count
}
