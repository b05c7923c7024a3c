package chat

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"chat-engine/internal/models"
	"chat-engine/internal/store"
	"chat-engine/internal/telemetry"
)

const (
	defaultTypingStop  = 3 * time.Second
	defaultTypingStale = 10 * time.Second
	defaultTypingSweep = 60 * time.Second

	// DefaultHistoryLimit bounds history reads when the caller passes no limit.
	DefaultHistoryLimit = 50
)

// Config carries engine tunables. Zero values fall back to the defaults above.
type Config struct {
	Instance    string
	TypingStop  time.Duration
	TypingStale time.Duration
	TypingSweep time.Duration
}

func (c Config) withDefaults() Config {
	if c.Instance == "" {
		c.Instance = "chat-engine"
	}
	if c.TypingStop <= 0 {
		c.TypingStop = defaultTypingStop
	}
	if c.TypingStale <= 0 {
		c.TypingStale = defaultTypingStale
	}
	if c.TypingSweep <= 0 {
		c.TypingSweep = defaultTypingSweep
	}
	return c
}

// Service is the session coordinator: the single owner of all mutable chat
// state on this instance. Every operation takes the one engine mutex, so
// state transitions apply in the order connections deliver them and no
// operation holds the lock across I/O.
type Service struct {
	mu sync.Mutex

	cfg      Config
	instance string

	presence *store.Presence
	groups   *store.Groups
	convs    *store.Conversations
	delivery *Delivery
	typing   map[string]*typingEntry

	audit *telemetry.AuditEmitter
}

// NewService builds an engine with empty state.
func NewService(cfg Config, audit *telemetry.AuditEmitter) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:      cfg,
		instance: cfg.Instance,
		presence: store.NewPresence(cfg.Instance),
		groups:   store.NewGroups(),
		convs:    store.NewConversations(),
		delivery: NewDelivery(),
		typing:   make(map[string]*typingEntry),
		audit:    audit,
	}
}

// Instance returns the engine's instance label.
func (s *Service) Instance() string {
	return s.instance
}

// Connect opens an anonymous session for a new connection.
func (s *Service) Connect(conn Conn) *Session {
	return &Session{conn: conn, state: SessionAnonymous}
}

// Register identifies the session as a named user, creating the user or
// reactivating an offline record with that name, and announces the arrival.
func (s *Service) Register(sess *Session, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.state != SessionAnonymous {
		return nil, store.ErrForbidden
	}
	user, err := s.presence.Register(name)
	if err != nil {
		return nil, err
	}
	s.identify(sess, user)
	s.emitAudit(fmt.Sprintf("user registered name=%q", user.Name), sess.conn.ID(), user.ID)
	u := user.Clone()
	return &u, nil
}

// Reconnect identifies the session as a previously known user by id and
// announces the arrival. When the user is still bound to an older
// connection, the new one takes the binding over.
func (s *Service) Reconnect(sess *Session, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.state != SessionAnonymous {
		return nil, store.ErrForbidden
	}
	user, err := s.presence.Reconnect(userID)
	if err != nil {
		return nil, err
	}
	s.identify(sess, user)
	s.emitAudit(fmt.Sprintf("user reconnected name=%q", user.Name), sess.conn.ID(), user.ID)
	u := user.Clone()
	return &u, nil
}

func (s *Service) identify(sess *Session, user *models.User) {
	if old := s.delivery.Bind(user.ID, sess.conn); old != nil {
		log.Printf("binding moved to newer connection user_id=%s old_conn=%s new_conn=%s", user.ID, old.ID(), sess.conn.ID())
	}
	sess.state = SessionIdentified
	sess.user = user
	s.delivery.Broadcast(models.PushUserJoined, models.UserJoinedEvent{User: user.Summary()}, user.ID)
}

// Disconnect tears the session down and is idempotent: transports signal it
// on connection loss, possibly after an explicit user:leave already closed
// the session. It returns the user taken offline, if any.
func (s *Service) Disconnect(sess *Session) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.state == SessionDisconnected {
		return nil
	}
	user := sess.user
	sess.state = SessionDisconnected
	sess.user = nil
	if user == nil {
		return nil
	}
	if !s.delivery.Unbind(user.ID, sess.conn.ID()) {
		// A newer connection holds the binding; this one goes quietly.
		return nil
	}
	s.presence.Disconnect(user.ID)
	s.clearTypingFor(user.ID)
	s.delivery.Broadcast(models.PushUserLeft, models.UserLeftEvent{UserID: user.ID, Name: user.Name}, user.ID)
	s.emitAudit(fmt.Sprintf("user disconnected name=%q", user.Name), sess.conn.ID(), user.ID)
	u := user.Clone()
	return &u
}

func (s *Service) requireUser(sess *Session) (*models.User, error) {
	if sess == nil || sess.state != SessionIdentified || sess.user == nil {
		return nil, ErrUnauthenticated
	}
	return sess.user, nil
}

// emitAudit publishes an audit event off the engine goroutine so the lock is
// never held across broker I/O.
func (s *Service) emitAudit(text, connID, userID string) {
	if s.audit == nil {
		return
	}
	var uid *string
	if userID != "" {
		uid = &userID
	}
	go s.audit.Emit(context.Background(), "info", text, connID, uid)
}

// Pull-style accessors for the read-only query surface. They copy records
// so callers can serialize them after the lock is released.

// Users returns every user this instance has seen.
func (s *Service) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUsers(s.presence.All())
}

// OnlineUsers returns the currently online users.
func (s *Service) OnlineUsers() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUsers(s.presence.ListOnline(""))
}

// Groups returns every live group.
func (s *Service) Groups() []models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := s.groups.List()
	out := make([]models.Group, 0, len(groups))
	for _, group := range groups {
		out = append(out, group.Clone())
	}
	return out
}

// Group returns one group by id.
func (s *Service) Group(groupID string) (models.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups.Get(groupID)
	if !ok {
		return models.Group{}, false
	}
	return group.Clone(), true
}

// GroupMembers returns the member users of a group.
func (s *Service) GroupMembers(groupID string) ([]models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups.Get(groupID)
	if !ok {
		return nil, false
	}
	members := make([]models.User, 0, len(group.Members))
	for _, memberID := range group.Members {
		if member, found := s.presence.Get(memberID); found {
			members = append(members, member.Clone())
		}
	}
	return members, true
}

// GroupMessages returns the raw group conversation log, newest last.
func (s *Service) GroupMessages(groupID string, limit int) ([]models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups.Get(groupID); !ok {
		return nil, false
	}
	return cloneMessages(s.convs.Read(groupID, limit)), true
}

// PrivateMessages returns the raw pairwise log for two users, newest last.
// Argument order is irrelevant.
func (s *Service) PrivateMessages(userA, userB string, limit int) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.convs.Read(store.DirectKey(userA, userB), limit))
}

func cloneUsers(users []*models.User) []models.User {
	out := make([]models.User, 0, len(users))
	for _, user := range users {
		out = append(out, user.Clone())
	}
	return out
}

func cloneMessages(msgs []*models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.Clone())
	}
	return out
}
