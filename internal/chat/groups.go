package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"chat-engine/internal/models"
)

// CreateGroup makes a new group with the caller as creator and first member.
func (s *Service) CreateGroup(sess *Session, name, description string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return nil, err
	}
	group, err := s.groups.Create(name, description, user.ID)
	if err != nil {
		return nil, err
	}
	s.presence.AddGroup(user.ID, group.ID)
	s.emitAudit(fmt.Sprintf("group created name=%q group_id=%s", group.Name, group.ID), sess.conn.ID(), user.ID)
	g := group.Clone()
	return &g, nil
}

// JoinGroup adds the caller to a group, tells the room with a system
// message, and pushes the updated group shape to the other members.
func (s *Service) JoinGroup(sess *Session, groupID string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return nil, err
	}
	group, err := s.groups.Join(groupID, user.ID)
	if err != nil {
		return nil, err
	}
	s.presence.AddGroup(user.ID, group.ID)
	s.systemNotice(group, fmt.Sprintf("%s joined the group", user.Name))
	s.pushGroupUpdated(group, user.ID)
	g := group.Clone()
	return &g, nil
}

// LeaveGroup removes the caller from a group. The last member leaving
// deletes the group and its conversation log outright.
func (s *Service) LeaveGroup(sess *Session, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return err
	}
	group, deleted, err := s.groups.Leave(groupID, user.ID)
	if err != nil {
		return err
	}
	s.presence.RemoveGroup(user.ID, group.ID)
	if deleted {
		s.convs.DeleteLog(group.ID)
		s.dropTypingInGroup(group.ID)
		s.delivery.ToUser(user.ID, models.PushGroupDeleted, models.GroupDeletedEvent{GroupID: group.ID, Name: group.Name})
		return nil
	}
	s.systemNotice(group, fmt.Sprintf("%s left the group", user.Name))
	s.pushGroupUpdated(group, "")
	return nil
}

// DeleteGroup removes a group outright. Only the creator may do this; every
// former member has the group scrubbed from their list and gets a deletion
// notice.
func (s *Service) DeleteGroup(sess *Session, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return err
	}
	group, err := s.groups.Delete(groupID, user.ID)
	if err != nil {
		return err
	}
	s.convs.DeleteLog(group.ID)
	s.dropTypingInGroup(group.ID)
	notice := models.GroupDeletedEvent{GroupID: group.ID, Name: group.Name}
	for _, memberID := range group.Members {
		s.presence.RemoveGroup(memberID, group.ID)
		if memberID == user.ID {
			continue
		}
		s.delivery.ToUser(memberID, models.PushGroupDeleted, notice)
	}
	s.emitAudit(fmt.Sprintf("group deleted name=%q group_id=%s", group.Name, group.ID), sess.conn.ID(), user.ID)
	return nil
}

// systemNotice appends an engine-generated message to the group log and
// delivers it to every online member, the actor included.
func (s *Service) systemNotice(group *models.Group, text string) {
	msg := &models.Message{
		ID:        uuid.NewString(),
		Kind:      models.KindSystem,
		SenderID:  models.SystemSender,
		Recipient: group.ID,
		Content:   text,
		Timestamp: time.Now(),
	}
	s.convs.Append(group.ID, msg)
	deliveredTo := s.delivery.ToGroup(group, msg, "")
	msg.Delivered = len(deliveredTo) > 0
}

func (s *Service) pushGroupUpdated(group *models.Group, exclude string) {
	event := models.GroupUpdatedEvent{Group: group.Clone(), Members: s.memberSummaries(group)}
	for _, memberID := range group.Members {
		if memberID == exclude {
			continue
		}
		s.delivery.ToUser(memberID, models.PushGroupUpdated, event)
	}
}

func (s *Service) memberSummaries(group *models.Group) []models.UserSummary {
	summaries := make([]models.UserSummary, 0, len(group.Members))
	for _, memberID := range group.Members {
		if member, ok := s.presence.Get(memberID); ok {
			summaries = append(summaries, member.Summary())
		}
	}
	return summaries
}
