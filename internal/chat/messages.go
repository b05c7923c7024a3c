package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-engine/internal/models"
	"chat-engine/internal/store"
)

// Target names one conversation from the caller's perspective: a group id,
// or the other participant's user id for private chats. Exactly one is set.
type Target struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

// GroupMessageResult is the caller's view of a group send.
type GroupMessageResult struct {
	Message     models.MessageView `json:"message"`
	DeliveredTo []string           `json:"deliveredTo"`
}

// PrivateMessageResult is the caller's view of a private send. Delivered
// means the push reached the recipient's connection; RecipientOnline can be
// true with Delivered false when the push was dropped.
type PrivateMessageResult struct {
	Message         models.MessageView `json:"message"`
	Delivered       bool               `json:"delivered"`
	RecipientOnline bool               `json:"recipientOnline"`
}

// resolveTarget maps a target to its conversation key. Group targets must
// name a live group; private targets must name a known user.
func (s *Service) resolveTarget(viewer *models.User, target Target) (string, *models.Group, *models.User, error) {
	switch {
	case target.GroupID != "":
		group, ok := s.groups.Get(target.GroupID)
		if !ok {
			return "", nil, nil, store.ErrGroupNotFound
		}
		return group.ID, group, nil, nil
	case target.UserID != "":
		other, ok := s.presence.Get(target.UserID)
		if !ok {
			return "", nil, nil, store.ErrUserNotFound
		}
		return store.DirectKey(viewer.ID, other.ID), nil, other, nil
	default:
		return "", nil, nil, ErrTargetRequired
	}
}

// SendGroupMessage appends a message to a group log and fans it out to the
// online members. The result reports who it actually reached.
func (s *Service) SendGroupMessage(sess *Session, groupID, content string, attachments []string, replyTo string) (*GroupMessageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return nil, err
	}
	group, ok := s.groups.Get(groupID)
	if !ok {
		return nil, store.ErrGroupNotFound
	}
	if !group.HasMember(user.ID) {
		return nil, store.ErrNotMember
	}
	content = strings.TrimSpace(content)
	if content == "" && len(attachments) == 0 {
		return nil, ErrEmptyContent
	}
	ref, err := s.replyRef(group.ID, replyTo)
	if err != nil {
		return nil, err
	}

	msg := newMessage(models.KindGroup, user, group.ID, content, attachments, ref)
	s.convs.Append(group.ID, msg)
	deliveredTo := s.delivery.ToGroup(group, msg, user.ID)
	msg.Delivered = len(deliveredTo) > 0
	if deliveredTo == nil {
		deliveredTo = []string{}
	}
	return &GroupMessageResult{Message: msg.ViewFor(user.ID), DeliveredTo: deliveredTo}, nil
}

// SendPrivateMessage appends a message to the pairwise log and pushes it to
// the recipient when they are online here. The message stays in the log for
// later retrieval either way; there is no queued-delivery retry.
func (s *Service) SendPrivateMessage(sess *Session, to, content string, attachments []string, replyTo string) (*PrivateMessageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return nil, err
	}
	recipient, ok := s.presence.Get(to)
	if !ok {
		return nil, store.ErrUserNotFound
	}
	if recipient.Instance != s.instance {
		return nil, ErrDifferentInstance
	}
	content = strings.TrimSpace(content)
	if content == "" && len(attachments) == 0 {
		return nil, ErrEmptyContent
	}
	key := store.DirectKey(user.ID, recipient.ID)
	ref, err := s.replyRef(key, replyTo)
	if err != nil {
		return nil, err
	}

	msg := newMessage(models.KindPrivate, user, recipient.ID, content, attachments, ref)
	s.convs.Append(key, msg)
	delivered := false
	if recipient.ID != user.ID {
		delivered = s.delivery.ToRecipient(msg)
	}
	if delivered {
		msg.Delivered = true
		s.delivery.ToUser(user.ID, models.PushMessageDelivered, models.MessageDeliveredEvent{MessageID: msg.ID, To: recipient.ID})
	}
	return &PrivateMessageResult{
		Message:         msg.ViewFor(user.ID),
		Delivered:       delivered,
		RecipientOnline: recipient.Online,
	}, nil
}

// Messages returns the most recent messages of a conversation as the caller
// sees them, oldest first.
func (s *Service) Messages(sess *Session, target Target, limit int) ([]models.MessageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return nil, err
	}
	key, _, _, err := s.resolveTarget(user, target)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return viewsFor(s.convs.ReadFor(key, user.ID, limit), user.ID), nil
}

// MessagesBefore pages further back through a conversation: up to limit
// messages strictly older than the given time, oldest first.
func (s *Service) MessagesBefore(sess *Session, target Target, before time.Time, limit int) ([]models.MessageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return nil, err
	}
	key, _, _, err := s.resolveTarget(user, target)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return viewsFor(s.convs.ReadBeforeFor(key, user.ID, before, limit), user.ID), nil
}

// MarkRead flips the read flag on every unread message addressed to the
// caller in one conversation and notifies each original sender still
// connected. It returns how many messages were flipped.
func (s *Service) MarkRead(sess *Session, target Target) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return 0, err
	}
	key, group, _, err := s.resolveTarget(user, target)
	if err != nil {
		return 0, err
	}
	flipped := s.convs.MarkRead(key, user.ID)

	bySender := make(map[string][]string)
	for _, msg := range flipped {
		if msg.SenderID == models.SystemSender {
			continue
		}
		bySender[msg.SenderID] = append(bySender[msg.SenderID], msg.ID)
	}
	for senderID, messageIDs := range bySender {
		event := models.MessageReadEvent{ReaderID: user.ID, MessageIDs: messageIDs}
		if group != nil {
			event.GroupID = group.ID
		} else {
			event.UserID = user.ID
		}
		s.delivery.ToUser(senderID, models.PushMessageRead, event)
	}
	return len(flipped), nil
}

// DeleteMessage soft-deletes one message. Delete-for-me hides it from the
// caller only; delete-for-everyone substitutes the placeholder and tells the
// rest of the conversation.
func (s *Service) DeleteMessage(sess *Session, target Target, messageID string, forEveryone bool) (*models.MessageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return nil, err
	}
	key, group, other, err := s.resolveTarget(user, target)
	if err != nil {
		return nil, err
	}
	msg, err := s.convs.SoftDelete(key, messageID, user.ID, forEveryone)
	if err != nil {
		return nil, err
	}
	if forEveryone {
		event := models.MessageDeletedEvent{MessageID: msg.ID, DeletedBy: user.ID}
		if group != nil {
			event.GroupID = group.ID
			for _, memberID := range group.Members {
				if memberID != user.ID {
					s.delivery.ToUser(memberID, models.PushMessageDeleted, event)
				}
			}
		} else {
			event.UserID = user.ID
			if other.ID != user.ID {
				s.delivery.ToUser(other.ID, models.PushMessageDeleted, event)
			}
		}
		s.emitAudit(fmt.Sprintf("message deleted for everyone message_id=%s", msg.ID), sess.conn.ID(), user.ID)
	}
	view := msg.ViewFor(user.ID)
	return &view, nil
}

// DeleteChat removes an entire conversation log. Group logs may only be
// cleared by the group's creator; either participant may clear a private
// log, and both lose the scroll-back.
func (s *Service) DeleteChat(sess *Session, target Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return err
	}
	key, group, _, err := s.resolveTarget(user, target)
	if err != nil {
		return err
	}
	if group != nil && group.CreatorID != user.ID {
		return store.ErrForbidden
	}
	s.convs.DeleteLog(key)
	s.emitAudit(fmt.Sprintf("conversation log deleted key=%s", key), sess.conn.ID(), user.ID)
	return nil
}

// replyRef freezes the quoted message snapshot at send time.
func (s *Service) replyRef(key, messageID string) (*models.ReplyRef, error) {
	if messageID == "" {
		return nil, nil
	}
	quoted, ok := s.convs.Get(key, messageID)
	if !ok {
		return nil, store.ErrMessageNotFound
	}
	return &models.ReplyRef{
		MessageID:  quoted.ID,
		SenderID:   quoted.SenderID,
		SenderName: quoted.SenderName,
		Content:    quoted.Content,
	}, nil
}

func newMessage(kind models.MessageKind, sender *models.User, recipient, content string, attachments []string, replyTo *models.ReplyRef) *models.Message {
	return &models.Message{
		ID:          uuid.NewString(),
		Kind:        kind,
		SenderID:    sender.ID,
		SenderName:  sender.Name,
		Recipient:   recipient,
		Content:     content,
		Attachments: attachments,
		Timestamp:   time.Now(),
		ReplyTo:     replyTo,
	}
}

func viewsFor(msgs []*models.Message, viewerID string) []models.MessageView {
	views := make([]models.MessageView, 0, len(msgs))
	for _, msg := range msgs {
		views = append(views, msg.ViewFor(viewerID))
	}
	return views
}
