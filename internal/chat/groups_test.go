package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-engine/internal/models"
	"chat-engine/internal/store"
)

func TestCreateGroup(t *testing.T) {
	s := newTestService()
	aliceSess, _, alice := join(t, s, "alice")

	group, err := s.CreateGroup(aliceSess, "gophers", "go talk")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, group.CreatorID)
	assert.Equal(t, []string{alice.ID}, group.Members)

	users := s.Users()
	for _, u := range users {
		if u.ID == alice.ID {
			assert.Contains(t, u.Groups, group.ID)
		}
	}

	_, err = s.CreateGroup(aliceSess, "GOPHERS", "")
	assert.ErrorIs(t, err, store.ErrNameTaken)
	_, err = s.CreateGroup(aliceSess, "  ", "")
	assert.ErrorIs(t, err, store.ErrNameRequired)
}

func TestJoinGroupNoticesEveryone(t *testing.T) {
	s := newTestService()
	aliceSess, aliceConn, _ := join(t, s, "alice")
	bobSess, bobConn, bob := join(t, s, "bob")

	group, err := s.CreateGroup(aliceSess, "gophers", "")
	require.NoError(t, err)
	aliceConn.reset()
	bobConn.reset()

	joined, err := s.JoinGroup(bobSess, group.ID)
	require.NoError(t, err)
	assert.Contains(t, joined.Members, bob.ID)

	// The system message reaches other members and the joiner alike.
	require.Equal(t, 1, aliceConn.count(models.PushMessageReceived))
	require.Equal(t, 1, bobConn.count(models.PushMessageReceived))
	data, _ := bobConn.last(models.PushMessageReceived)
	notice := data.(models.MessageReceivedEvent).Message
	assert.Equal(t, models.KindSystem, notice.Kind)
	assert.Equal(t, models.SystemSender, notice.SenderID)
	assert.Equal(t, "bob joined the group", notice.Content)

	// The updated group shape goes to the others; the joiner has the ack.
	assert.Equal(t, 1, aliceConn.count(models.PushGroupUpdated))
	assert.Equal(t, 0, bobConn.count(models.PushGroupUpdated))

	// The notice lands in the group log too.
	msgs, ok := s.GroupMessages(group.ID, 0)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob joined the group", msgs[0].Content)
	assert.True(t, msgs[0].Delivered)
}

func TestJoinGroupErrors(t *testing.T) {
	s := newTestService()
	aliceSess, _, _ := join(t, s, "alice")

	_, err := s.JoinGroup(aliceSess, "nope")
	assert.ErrorIs(t, err, store.ErrGroupNotFound)

	group, err := s.CreateGroup(aliceSess, "gophers", "")
	require.NoError(t, err)
	_, err = s.JoinGroup(aliceSess, group.ID)
	assert.ErrorIs(t, err, store.ErrAlreadyMember)
}

func TestLeaveGroupNotifiesRemaining(t *testing.T) {
	s := newTestService()
	aliceSess, aliceConn, _ := join(t, s, "alice")
	bobSess, bobConn, bob := join(t, s, "bob")

	group, err := s.CreateGroup(aliceSess, "gophers", "")
	require.NoError(t, err)
	_, err = s.JoinGroup(bobSess, group.ID)
	require.NoError(t, err)
	aliceConn.reset()
	bobConn.reset()

	require.NoError(t, s.LeaveGroup(bobSess, group.ID))

	require.Equal(t, 1, aliceConn.count(models.PushMessageReceived))
	data, _ := aliceConn.last(models.PushMessageReceived)
	assert.Equal(t, "bob left the group", data.(models.MessageReceivedEvent).Message.Content)
	assert.Equal(t, 1, aliceConn.count(models.PushGroupUpdated))
	assert.Equal(t, 0, bobConn.count(models.PushMessageReceived), "the leaver hears nothing")

	assert.ErrorIs(t, s.LeaveGroup(bobSess, group.ID), store.ErrNotMember)

	for _, u := range s.Users() {
		if u.ID == bob.ID {
			assert.NotContains(t, u.Groups, group.ID)
		}
	}
}

func TestLastMemberLeavingDeletesGroup(t *testing.T) {
	s := newTestService()
	aliceSess, aliceConn, _ := join(t, s, "alice")

	group, err := s.CreateGroup(aliceSess, "gophers", "")
	require.NoError(t, err)
	_, err = s.SendGroupMessage(aliceSess, group.ID, "hello, empty room", nil, "")
	require.NoError(t, err)
	aliceConn.reset()

	require.NoError(t, s.LeaveGroup(aliceSess, group.ID))

	_, ok := s.Group(group.ID)
	assert.False(t, ok, "empty group is deleted as a side effect of leave")
	require.Equal(t, 1, aliceConn.count(models.PushGroupDeleted))
	data, _ := aliceConn.last(models.PushGroupDeleted)
	assert.Equal(t, group.ID, data.(models.GroupDeletedEvent).GroupID)

	_, ok = s.GroupMessages(group.ID, 0)
	assert.False(t, ok, "the conversation log is gone with the group")
}

func TestDeleteGroupCreatorOnly(t *testing.T) {
	s := newTestService()
	aliceSess, _, _ := join(t, s, "alice")
	bobSess, bobConn, _ := join(t, s, "bob")

	group, err := s.CreateGroup(aliceSess, "gophers", "")
	require.NoError(t, err)
	_, err = s.JoinGroup(bobSess, group.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteGroup(bobSess, group.ID), store.ErrNotCreator)

	bobConn.reset()
	require.NoError(t, s.DeleteGroup(aliceSess, group.ID))

	_, ok := s.Group(group.ID)
	assert.False(t, ok)
	require.Equal(t, 1, bobConn.count(models.PushGroupDeleted))

	for _, u := range s.Users() {
		assert.NotContains(t, u.Groups, group.ID, "membership is scrubbed for every former member")
	}

	// The id is dead: joining it again is a not-found, not a revival.
	_, err = s.JoinGroup(bobSess, group.ID)
	assert.ErrorIs(t, err, store.ErrGroupNotFound)
}

func TestDeleteGroupUnknown(t *testing.T) {
	s := newTestService()
	aliceSess, _, _ := join(t, s, "alice")

	assert.ErrorIs(t, s.DeleteGroup(aliceSess, "nope"), store.ErrGroupNotFound)
}
