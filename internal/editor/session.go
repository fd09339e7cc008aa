package editor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Sessions keeps one server-side Editor per (user, project) pair.
type Sessions struct {
	// Now is the clock used for idle tracking.
	Now func() time.Time

	mu        sync.Mutex
	sessions  map[string]*Session
	persister Persister
	opts      []Option
}

func NewSessions(persister Persister, opts ...Option) *Sessions {
	return &Sessions{
		Now:       time.Now,
		sessions:  make(map[string]*Session),
		persister: persister,
		opts:      opts,
	}
}

func sessionKey(userID, projectID string) string { return userID + "/" + projectID }

// Open returns the existing session for the pair, or loads the project and
// starts a new one.
func (s *Sessions) Open(ctx context.Context, userID, projectID string) (*Session, error) {
	if sess, ok := s.Get(userID, projectID); ok {
		return sess, nil
	}

	project, err := s.persister.LoadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(userID, projectID)
	if sess, ok := s.sessions[key]; ok {
		return sess, nil
	}
	ed := New(append([]Option{WithPersister(s.persister)}, s.opts...)...)
	ed.SetProject(project)
	sess := &Session{ProjectID: projectID, UserID: userID, editor: ed, persister: s.persister}
	sess.touch(s.Now())
	s.sessions[key] = sess
	return sess, nil
}

// Get returns the open session for the pair and marks it as used.
func (s *Sessions) Get(userID, projectID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey(userID, projectID)]
	if ok {
		sess.touch(s.Now())
	}
	return sess, ok
}

// Len is the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ExpireIdle drops sessions unused for longer than ttl, discarding their
// unsaved edits. Sessions with a save in flight are kept. It returns how
// many were dropped.
func (s *Sessions) ExpireIdle(ttl time.Duration) int {
	cutoff := s.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, sess := range s.sessions {
		if sess.lastUsed().After(cutoff) || sess.saving() {
			continue
		}
		delete(s.sessions, key)
		n++
	}
	return n
}

// RunJanitor calls ExpireIdle every ttl/4 until ctx is done.
func (s *Sessions) RunJanitor(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(max(ttl/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ExpireIdle(ttl); n > 0 {
				log.Printf("[Editor] Closed %d idle session(s)", n)
			}
		}
	}
}

// Close drops the session without saving.
func (s *Sessions) Close(userID, projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(userID, projectID)
	_, ok := s.sessions[key]
	delete(s.sessions, key)
	return ok
}

// CloseProject drops every session editing projectID.
func (s *Sessions) CloseProject(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sess := range s.sessions {
		if sess.ProjectID == projectID {
			delete(s.sessions, key)
		}
	}
}

// Session serialises every call into its Editor.
type Session struct {
	ProjectID string
	UserID    string

	mu        sync.Mutex
	editor    *Editor
	persister Persister
	used      atomic.Int64 // unix nanos
}

func (ss *Session) touch(now time.Time) { ss.used.Store(now.UnixNano()) }

func (ss *Session) lastUsed() time.Time { return time.Unix(0, ss.used.Load()) }

func (ss *Session) saving() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.editor.IsSaving()
}

func (ss *Session) Apply(cmd Command) (Result, State, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	res, err := Apply(ss.editor, cmd)
	return res, ss.editor.State(), err
}

func (ss *Session) State() State {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.editor.State()
}

// Save persists a snapshot without holding the session lock during the
// external call, so edits can continue while the save is in flight.
func (ss *Session) Save(ctx context.Context) (State, error) {
	ss.mu.Lock()
	snapshot, err := ss.editor.BeginSave()
	ss.mu.Unlock()
	if err != nil {
		return ss.State(), err
	}

	saveErr := ss.persister.SaveProject(ctx, snapshot)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	err = ss.editor.FinishSave(snapshot.ID, saveErr)
	return ss.editor.State(), err
}
