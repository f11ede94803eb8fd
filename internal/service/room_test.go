package service

import (
	"testing"

	"github.com/ghasnhhz/chat-app/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createTestUser(t *testing.T, gdb *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Email: email, PasswordHash: "hash", Username: email}
	require.NoError(t, gdb.Create(&user).Error)
	return user
}

func countMembers(t *testing.T, gdb *gorm.DB, roomID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, gdb.Model(&models.RoomMember{}).Where("room_id = ?", roomID).Count(&count).Error)
	return count
}

func TestRoomService_Create(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewRoomService(gdb, testConfig(), newStubChannel())
	creator := createTestUser(t, gdb, "creator@example.com")

	room, inviteLink, err := svc.Create("general", creator.ID)
	require.NoError(t, err)
	assert.Equal(t, "general", room.Name)
	assert.Equal(t, creator.ID, room.CreatorID)
	assert.Len(t, room.InviteToken, 8)
	assert.Equal(t, "http://localhost:8080/join/"+room.InviteToken, inviteLink)

	// the creator is the only initial member
	assert.EqualValues(t, 1, countMembers(t, gdb, room.ID))

	ok, err := svc.IsMember(room.ID, creator.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRoomService_Create_UniqueInviteTokens(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewRoomService(gdb, testConfig(), newStubChannel())
	creator := createTestUser(t, gdb, "creator@example.com")

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		room, _, err := svc.Create("room", creator.ID)
		require.NoError(t, err)
		assert.False(t, seen[room.InviteToken], "duplicate invite token %s", room.InviteToken)
		seen[room.InviteToken] = true
	}
}

func TestRoomService_Create_NonCollisionErrorSurfaces(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewRoomService(gdb, testConfig(), newStubChannel())
	creator := createTestUser(t, gdb, "creator@example.com")

	// Only invite-token collisions are retried; other failures surface as-is
	require.NoError(t, gdb.Exec("DROP TABLE room_members").Error)
	_, _, err := svc.Create("general", creator.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestDuplicatedKeyTranslation(t *testing.T) {
	gdb := openTestDB(t)
	createTestUser(t, gdb, "dup@example.com")

	// the invite-token retry in Create relies on this translation
	err := gdb.Create(&models.User{Email: "dup@example.com", PasswordHash: "x"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestRoomService_Join_Idempotent(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewRoomService(gdb, testConfig(), newStubChannel())
	creator := createTestUser(t, gdb, "creator@example.com")
	joiner := createTestUser(t, gdb, "joiner@example.com")

	room, _, err := svc.Create("general", creator.ID)
	require.NoError(t, err)

	joined, err := svc.Join(room.InviteToken, joiner.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.ID)
	assert.EqualValues(t, 2, countMembers(t, gdb, room.ID))

	// joining again changes nothing
	joined, err = svc.Join(room.InviteToken, joiner.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.ID)
	assert.EqualValues(t, 2, countMembers(t, gdb, room.ID))
}

func TestRoomService_Join_InvalidToken(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewRoomService(gdb, testConfig(), newStubChannel())
	user := createTestUser(t, gdb, "user@example.com")

	_, err := svc.Join("deadbeef", user.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_Get(t *testing.T) {
	gdb := openTestDB(t)
	channel := newStubChannel()
	svc := NewRoomService(gdb, testConfig(), channel)
	creator := createTestUser(t, gdb, "creator@example.com")
	joiner := createTestUser(t, gdb, "joiner@example.com")

	room, _, err := svc.Create("general", creator.ID)
	require.NoError(t, err)
	_, err = svc.Join(room.InviteToken, joiner.ID)
	require.NoError(t, err)
	channel.online[room.ID] = 3

	detail, err := svc.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, detail.Room.ID)
	assert.Len(t, detail.Members, 2)
	assert.Equal(t, creator.ID, detail.Members[0].ID)
	assert.Equal(t, creator.Username, detail.Members[0].Username)
	assert.Equal(t, 3, detail.Online)

	_, err = svc.Get(9999)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_ListForUser(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewRoomService(gdb, testConfig(), newStubChannel())
	alice := createTestUser(t, gdb, "alice@example.com")
	bob := createTestUser(t, gdb, "bob@example.com")

	first, _, err := svc.Create("first", alice.ID)
	require.NoError(t, err)
	second, _, err := svc.Create("second", alice.ID)
	require.NoError(t, err)
	_, _, err = svc.Create("bobs", bob.ID)
	require.NoError(t, err)

	rooms, err := svc.ListForUser(alice.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	// newest first
	assert.Equal(t, second.ID, rooms[0].ID)
	assert.Equal(t, first.ID, rooms[1].ID)
}

func TestRoomService_Leave(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewRoomService(gdb, testConfig(), newStubChannel())
	creator := createTestUser(t, gdb, "creator@example.com")
	joiner := createTestUser(t, gdb, "joiner@example.com")

	room, _, err := svc.Create("general", creator.ID)
	require.NoError(t, err)
	_, err = svc.Join(room.InviteToken, joiner.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Leave(room.ID, joiner.ID))
	assert.EqualValues(t, 1, countMembers(t, gdb, room.ID))

	// leaving when already out is a silent no-op
	require.NoError(t, svc.Leave(room.ID, joiner.ID))
	assert.EqualValues(t, 1, countMembers(t, gdb, room.ID))

	assert.ErrorIs(t, svc.Leave(9999, joiner.ID), ErrRoomNotFound)
}

func TestRoomService_Delete(t *testing.T) {
	gdb := openTestDB(t)
	channel := newStubChannel()
	svc := NewRoomService(gdb, testConfig(), channel)
	msgSvc := NewMessageService(gdb)
	creator := createTestUser(t, gdb, "creator@example.com")
	joiner := createTestUser(t, gdb, "joiner@example.com")

	room, _, err := svc.Create("general", creator.ID)
	require.NoError(t, err)
	_, err = svc.Join(room.InviteToken, joiner.ID)
	require.NoError(t, err)
	_, err = msgSvc.Append(room.ID, creator.ID, "hello")
	require.NoError(t, err)

	// only the creator may delete, a failed attempt leaves everything intact
	err = svc.Delete(room.ID, joiner.ID)
	assert.ErrorIs(t, err, ErrNotRoomCreator)
	assert.EqualValues(t, 2, countMembers(t, gdb, room.ID))
	assert.Empty(t, channel.closed)

	require.NoError(t, svc.Delete(room.ID, creator.ID))
	assert.Equal(t, []uint{room.ID}, channel.closed)
	assert.EqualValues(t, 0, countMembers(t, gdb, room.ID))

	var msgCount int64
	require.NoError(t, gdb.Model(&models.Message{}).Where("room_id = ?", room.ID).Count(&msgCount).Error)
	assert.EqualValues(t, 0, msgCount)

	_, err = svc.Get(room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	assert.ErrorIs(t, svc.Delete(room.ID, creator.ID), ErrRoomNotFound)
}
