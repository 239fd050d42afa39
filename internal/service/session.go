package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/set-night/pagecraft/internal/config"
	"github.com/set-night/pagecraft/internal/domain"
)

// SessionLimits bounds what a single user may keep in memory.
type SessionLimits struct {
	MaxFiles      int
	MaxFileBytes  int64
	MaxTotalBytes int64
	TTL           time.Duration
}

// Upload is a file about to be stored in a session.
type Upload struct {
	Filename  string
	MimeType  string
	Kind      domain.Kind
	Content   []byte
	MessageID int
	Origin    domain.Origin
}

// Session is one user's ordered file registry. Methods other than those on
// SessionStore expect the caller to hold the session through
// SessionStore.Do.
type Session struct {
	UserID int64

	mu         sync.Mutex
	entries    []*domain.FileEntry
	seq        int
	byMessage  map[int]int
	totalBytes int64
	lastActive time.Time
	evicted    bool
	limits     SessionLimits
}

func newSession(userID int64, limits SessionLimits, now time.Time) *Session {
	return &Session{
		UserID:     userID,
		byMessage:  make(map[int]int),
		lastActive: now,
		limits:     limits,
	}
}

// Entries returns the stored entries in upload order.
func (s *Session) Entries() []*domain.FileEntry {
	out := make([]*domain.FileEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Session) Len() int { return len(s.entries) }

func (s *Session) TotalBytes() int64 { return s.totalBytes }

func (s *Session) Get(number int) (*domain.FileEntry, error) {
	for _, e := range s.entries {
		if e.Number == number {
			return e, nil
		}
	}
	return nil, domain.NewError(domain.ErrNotFound, fmt.Sprintf("#%d", number), "")
}

// ByMessage returns the entry carried by a transport message, if tracked.
func (s *Session) ByMessage(messageID int) (*domain.FileEntry, bool) {
	if messageID == 0 {
		return nil, false
	}
	number, ok := s.byMessage[messageID]
	if !ok {
		return nil, false
	}
	e, err := s.Get(number)
	return e, err == nil
}

// Latest returns the most recent entry of one of the given kinds.
func (s *Session) Latest(kinds ...domain.Kind) (*domain.FileEntry, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if hasKind(s.entries[i], kinds) {
			return s.entries[i], true
		}
	}
	return nil, false
}

// Add appends an entry and assigns it the next number. On failure the
// session is unchanged.
func (s *Session) Add(up Upload, now time.Time) (*domain.FileEntry, error) {
	size := int64(len(up.Content))

	switch {
	case s.limits.MaxFiles > 0 && len(s.entries) >= s.limits.MaxFiles:
		return nil, domain.NewError(domain.ErrCapacity, up.Filename,
			fmt.Sprintf("session already holds %d files, use /clear first", s.limits.MaxFiles))
	case s.limits.MaxFileBytes > 0 && size > s.limits.MaxFileBytes:
		return nil, domain.NewError(domain.ErrCapacity, up.Filename,
			fmt.Sprintf("%s exceeds the %s per-file limit", formatBytes(size), formatBytes(s.limits.MaxFileBytes)))
	case s.limits.MaxTotalBytes > 0 && s.totalBytes+size > s.limits.MaxTotalBytes:
		return nil, domain.NewError(domain.ErrCapacity, up.Filename,
			fmt.Sprintf("session would exceed %s in total", formatBytes(s.limits.MaxTotalBytes)))
	}

	origin := up.Origin
	if origin == "" {
		origin = domain.OriginUploaded
	}
	mime := up.MimeType
	if mime == "" {
		mime = domain.MimeTypeFor(up.Filename)
	}

	s.seq++
	entry := &domain.FileEntry{
		Number:     s.seq,
		Name:       up.Filename,
		Kind:       up.Kind,
		MimeType:   mime,
		Content:    up.Content,
		Size:       size,
		UploadedAt: now,
		MessageID:  up.MessageID,
		Origin:     origin,
	}
	s.entries = append(s.entries, entry)
	s.totalBytes += size
	if up.MessageID != 0 {
		s.byMessage[up.MessageID] = entry.Number
	}
	s.lastActive = now
	return entry, nil
}

// TrackMessage links another transport message to an existing entry, so
// replying to it targets that entry.
func (s *Session) TrackMessage(messageID, number int) {
	if messageID != 0 {
		s.byMessage[messageID] = number
	}
}

// Clear drops every entry and resets numbering.
func (s *Session) Clear() {
	for _, e := range s.entries {
		e.Content = nil
	}
	s.entries = nil
	s.seq = 0
	s.totalBytes = 0
	s.byMessage = make(map[int]int)
}

// SessionStore owns every user's session. The store mutex guards only the
// map; each session has its own mutex, so users never contend beyond the
// map lookup.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	limits   SessionLimits
	now      func() time.Time
	logger   *slog.Logger
}

func NewSessionStore(limits SessionLimits, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		sessions: make(map[int64]*Session),
		limits:   limits,
		now:      time.Now,
		logger:   logger,
	}
}

func (st *SessionStore) Limits() SessionLimits { return st.limits }

// acquire returns the user's session locked, creating it when create is
// set. It returns nil if the user has no session and create is false.
func (st *SessionStore) acquire(userID int64, create bool) *Session {
	for {
		st.mu.Lock()
		sess, ok := st.sessions[userID]
		if !ok {
			if !create {
				st.mu.Unlock()
				return nil
			}
			sess = newSession(userID, st.limits, st.now())
			st.sessions[userID] = sess
		}
		st.mu.Unlock()

		sess.mu.Lock()
		if !sess.evicted {
			return sess
		}
		// Evicted between lookup and lock; the map no longer holds it.
		sess.mu.Unlock()
	}
}

// drop removes a locked session from the map. Lock order is session, then
// map, matching Evict.
func (st *SessionStore) drop(sess *Session) {
	st.mu.Lock()
	if st.sessions[sess.UserID] == sess {
		delete(st.sessions, sess.UserID)
	}
	st.mu.Unlock()
	sess.evicted = true
}

// Register stores an upload and returns its entry number.
func (st *SessionStore) Register(userID int64, up Upload) (int, error) {
	sess := st.acquire(userID, true)
	defer sess.mu.Unlock()

	entry, err := sess.Add(up, st.now())
	if err != nil {
		if sess.Len() == 0 {
			st.drop(sess)
		}
		return 0, err
	}
	return entry.Number, nil
}

// List returns content-free summaries in upload order.
func (st *SessionStore) List(userID int64) []domain.FileEntry {
	sess := st.acquire(userID, false)
	if sess == nil {
		return nil
	}
	defer sess.mu.Unlock()

	sess.lastActive = st.now()
	out := make([]domain.FileEntry, len(sess.entries))
	for i, e := range sess.entries {
		out[i] = e.Summary()
	}
	return out
}

// Clear wipes the user's session. Clearing an absent session is a no-op.
func (st *SessionStore) Clear(userID int64) {
	sess := st.acquire(userID, false)
	if sess == nil {
		return
	}
	defer sess.mu.Unlock()

	sess.Clear()
	st.drop(sess)
}

func (st *SessionStore) Get(userID int64, number int) (*domain.FileEntry, error) {
	sess := st.acquire(userID, false)
	if sess == nil {
		return nil, domain.NewError(domain.ErrNotFound, fmt.Sprintf("#%d", number), "")
	}
	defer sess.mu.Unlock()
	return sess.Get(number)
}

func (st *SessionStore) TotalBytes(userID int64) int64 {
	sess := st.acquire(userID, false)
	if sess == nil {
		return 0
	}
	defer sess.mu.Unlock()
	return sess.totalBytes
}

// Do runs fn with the user's session held exclusively, creating the
// session if needed. An empty session left behind by fn is dropped.
func (st *SessionStore) Do(ctx context.Context, userID int64, fn func(*Session) error) error {
	sess := st.acquire(userID, true)
	defer sess.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	defer func() {
		sess.lastActive = st.now()
		if sess.Len() == 0 {
			st.drop(sess)
		}
	}()
	return fn(sess)
}

// Count reports how many sessions are held and their combined size.
func (st *SessionStore) Count() (sessions int, bytes int64) {
	st.mu.Lock()
	snapshot := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		snapshot = append(snapshot, s)
	}
	st.mu.Unlock()

	for _, s := range snapshot {
		if !s.mu.TryLock() {
			sessions++
			continue
		}
		if !s.evicted {
			sessions++
			bytes += s.totalBytes
		}
		s.mu.Unlock()
	}
	return sessions, bytes
}

// Evict drops sessions idle longer than the TTL and returns how many were
// removed. A session busy with an operation is active and is skipped.
func (st *SessionStore) Evict(now time.Time) int {
	if st.limits.TTL <= 0 {
		return 0
	}

	st.mu.Lock()
	snapshot := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		snapshot = append(snapshot, s)
	}
	st.mu.Unlock()

	evicted := 0
	for _, sess := range snapshot {
		if !sess.mu.TryLock() {
			continue
		}
		if !sess.evicted && now.Sub(sess.lastActive) >= st.limits.TTL {
			sess.Clear()
			st.drop(sess)
			evicted++
		}
		sess.mu.Unlock()
	}
	return evicted
}

// RunEviction calls Evict every interval until ctx is done.
func (st *SessionStore) RunEviction(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Evict(st.now()); n > 0 {
				st.logger.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

func hasKind(e *domain.FileEntry, kinds []domain.Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}

func formatBytes(n int64) string {
	if n >= config.MB {
		return fmt.Sprintf("%.1f MB", float64(n)/config.MB)
	}
	return fmt.Sprintf("%d KB", (n+1023)/1024)
}
