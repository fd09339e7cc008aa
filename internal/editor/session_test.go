package editor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sitesmithapp/sitesmith/internal/editor"
	"github.com/sitesmithapp/sitesmith/internal/testutil"
)

type mapPersister struct {
	mu       sync.Mutex
	projects map[string]*editor.Project
	loads    int
	saveErr  error
}

func newMapPersister(projects ...*editor.Project) *mapPersister {
	m := &mapPersister{projects: make(map[string]*editor.Project)}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *mapPersister) SaveProject(_ context.Context, p *editor.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.projects[p.ID] = p.Clone()
	return nil
}

func (m *mapPersister) LoadProject(_ context.Context, id string) (*editor.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	p, ok := m.projects[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p.Clone(), nil
}

func TestSessions_OpenReusesSession(t *testing.T) {
	store := newMapPersister(editor.NewProject("site-1", "Site", homeID))
	sessions := editor.NewSessions(store, editor.WithIDGenerator(testutil.NewStubIDGenerator()))
	ctx := context.Background()

	a, err := sessions.Open(ctx, "user-1", "site-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	b, err := sessions.Open(ctx, "user-1", "site-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if a != b {
		t.Errorf("second Open returned a new session")
	}
	if store.loads != 1 {
		t.Errorf("loads = %d, want 1", store.loads)
	}

	other, err := sessions.Open(ctx, "user-2", "site-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if other == a {
		t.Errorf("sessions shared between users")
	}

	if _, err := sessions.Open(ctx, "user-1", "missing"); err == nil {
		t.Errorf("Open(missing) succeeded")
	}
}

func TestSession_ApplyAndSave(t *testing.T) {
	store := newMapPersister(editor.NewProject("site-1", "Site", homeID))
	sessions := editor.NewSessions(store, editor.WithIDGenerator(testutil.NewStubIDGenerator()))
	ctx := context.Background()

	sess, err := sessions.Open(ctx, "user-1", "site-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	res, st, err := sess.Apply(editor.Command{Op: editor.OpAddElement, PageID: homeID, Type: editor.TypeHero})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if st.SelectedElementID != res.CreatedID || !st.CanUndo {
		t.Errorf("state after add = %+v", st)
	}

	st, err = sess.Save(ctx)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if st.IsSaving || st.LastSaveError != "" {
		t.Errorf("state after save = %+v", st)
	}
	home, _ := store.projects["site-1"].Page(homeID)
	if len(home.Elements) != 1 {
		t.Errorf("persisted elements = %d, want 1", len(home.Elements))
	}

	store.saveErr = errors.New("database unavailable")
	st, err = sess.Save(ctx)
	var saveErr *editor.SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("Save() error = %v, want *SaveError", err)
	}
	if st.LastSaveError == "" || !st.CanUndo {
		t.Errorf("state after failed save = %+v", st)
	}
}

func TestSessions_Close(t *testing.T) {
	store := newMapPersister(editor.NewProject("site-1", "Site", homeID))
	sessions := editor.NewSessions(store)
	ctx := context.Background()

	_, _ = sessions.Open(ctx, "user-1", "site-1")
	_, _ = sessions.Open(ctx, "user-2", "site-1")

	if !sessions.Close("user-1", "site-1") {
		t.Errorf("Close() = false for open session")
	}
	if sessions.Close("user-1", "site-1") {
		t.Errorf("Close() = true for closed session")
	}

	sessions.CloseProject("site-1")
	if _, ok := sessions.Get("user-2", "site-1"); ok {
		t.Errorf("CloseProject left a session behind")
	}
}

func TestSession_ConcurrentApply(t *testing.T) {
	store := newMapPersister(editor.NewProject("site-1", "Site", homeID))
	sessions := editor.NewSessions(store, editor.WithHistoryLimit(100))
	sess, err := sessions.Open(context.Background(), "user-1", "site-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = sess.Apply(editor.Command{Op: editor.OpAddElement, PageID: homeID, Type: editor.TypeText})
		}()
	}
	wg.Wait()

	home, _ := sess.State().Project.Page(homeID)
	if len(home.Elements) != 20 {
		t.Errorf("elements = %d, want 20", len(home.Elements))
	}
}

func TestSessions_ExpireIdle(t *testing.T) {
	store := newMapPersister(
		editor.NewProject("site-1", "Site", homeID),
		editor.NewProject("site-2", "Other", homeID),
	)
	clock := testutil.FixedClock()
	sessions := editor.NewSessions(store, editor.WithIDGenerator(testutil.NewStubIDGenerator()))
	sessions.Now = clock.Now
	ctx := context.Background()

	if _, err := sessions.Open(ctx, "user-1", "site-1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := sessions.Open(ctx, "user-1", "site-2"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	clock.Advance(90 * time.Minute)
	if _, ok := sessions.Get("user-1", "site-2"); !ok {
		t.Fatal("site-2 session missing")
	}
	clock.Advance(45 * time.Minute)

	if n := sessions.ExpireIdle(time.Hour); n != 1 {
		t.Errorf("ExpireIdle() = %d, want 1", n)
	}
	if _, ok := sessions.Get("user-1", "site-1"); ok {
		t.Error("idle site-1 session still open")
	}
	if _, ok := sessions.Get("user-1", "site-2"); !ok {
		t.Error("recently used site-2 session expired")
	}
	if sessions.Len() != 1 {
		t.Errorf("Len() = %d, want 1", sessions.Len())
	}
}

func TestSessions_RunJanitorStops(t *testing.T) {
	sessions := editor.NewSessions(newMapPersister())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sessions.RunJanitor(ctx, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunJanitor did not stop")
	}
}
