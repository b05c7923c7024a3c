package chat

import (
	"context"
	"log"
	"time"

	"chat-engine/internal/models"
	"chat-engine/internal/observability"
	"chat-engine/internal/store"
)

// typingEntry is one user's live composing state. Each (re)start allocates a
// fresh entry, so a pending timer callback can tell whether it was
// superseded by comparing pointers.
type typingEntry struct {
	userID   string
	userName string
	key      string
	groupID  string
	otherID  string
	private  bool
	since    time.Time
	timer    *time.Timer
}

// TypingStart marks the caller as composing in one conversation, announces
// it to the audience, and arms the auto-stop timer. A start for a different
// conversation first clears the old indicator.
func (s *Service) TypingStart(sess *Session, target Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return err
	}
	key, group, other, err := s.resolveTarget(user, target)
	if err != nil {
		return err
	}
	if group != nil && !group.HasMember(user.ID) {
		return store.ErrNotMember
	}

	if prev := s.typing[user.ID]; prev != nil {
		prev.timer.Stop()
		delete(s.typing, user.ID)
		if prev.key != key {
			s.broadcastTyping(prev, false)
		}
	}

	entry := &typingEntry{
		userID:   user.ID,
		userName: user.Name,
		key:      key,
		since:    time.Now(),
	}
	if group != nil {
		entry.groupID = group.ID
	} else {
		entry.otherID = other.ID
		entry.private = true
	}
	s.typing[user.ID] = entry
	entry.timer = time.AfterFunc(s.cfg.TypingStop, func() { s.expireTyping(entry) })
	s.broadcastTyping(entry, true)
	return nil
}

// TypingStop clears the caller's indicator for one conversation and
// announces the stop. A stop for a conversation the caller is not composing
// in is a no-op.
func (s *Service) TypingStop(sess *Session, target Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(sess)
	if err != nil {
		return err
	}
	key, _, _, err := s.resolveTarget(user, target)
	if err != nil {
		return err
	}
	entry := s.typing[user.ID]
	if entry == nil || entry.key != key {
		return nil
	}
	entry.timer.Stop()
	delete(s.typing, user.ID)
	s.broadcastTyping(entry, false)
	return nil
}

// expireTyping is the auto-stop timer callback. A stale callback whose entry
// was superseded or explicitly stopped does nothing.
func (s *Service) expireTyping(entry *typingEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.typing[entry.userID] != entry {
		return
	}
	delete(s.typing, entry.userID)
	s.broadcastTyping(entry, false)
	observability.IncTypingExpired("timer")
}

// RunTypingSweeper periodically purges typing entries whose timers never
// fired, announcing the stop for each. It blocks until ctx is done; run it
// on its own goroutine.
func (s *Service) RunTypingSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TypingSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepTyping(time.Now())
		}
	}
}

func (s *Service) sweepTyping(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, entry := range s.typing {
		if now.Sub(entry.since) <= s.cfg.TypingStale {
			continue
		}
		entry.timer.Stop()
		delete(s.typing, userID)
		s.broadcastTyping(entry, false)
		observability.IncTypingExpired("sweep")
		log.Printf("stale typing entry swept user_id=%s key=%s", userID, entry.key)
	}
}

// clearTypingFor drops a user's indicator on disconnect, announcing the stop.
func (s *Service) clearTypingFor(userID string) {
	entry := s.typing[userID]
	if entry == nil {
		return
	}
	entry.timer.Stop()
	delete(s.typing, userID)
	s.broadcastTyping(entry, false)
}

// dropTypingInGroup silently discards indicators for a group that no longer
// exists; there is no audience left to notify.
func (s *Service) dropTypingInGroup(groupID string) {
	for userID, entry := range s.typing {
		if entry.groupID == groupID {
			entry.timer.Stop()
			delete(s.typing, userID)
		}
	}
}

func (s *Service) broadcastTyping(entry *typingEntry, typing bool) {
	event := models.TypingEvent{
		UserID:  entry.userID,
		Name:    entry.userName,
		GroupID: entry.groupID,
		Private: entry.private,
		Typing:  typing,
	}
	if entry.private {
		s.delivery.ToUser(entry.otherID, models.PushUserTyping, event)
		return
	}
	group, ok := s.groups.Get(entry.groupID)
	if !ok {
		return
	}
	for _, memberID := range group.Members {
		if memberID == entry.userID {
			continue
		}
		s.delivery.ToUser(memberID, models.PushUserTyping, event)
	}
}
