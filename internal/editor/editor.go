// Package editor is the in-memory website editing engine: it owns one
// Project, the editing focus (current page, selected element, open panel)
// and a bounded undo/redo history of whole-project snapshots.
//
// An Editor is not safe for concurrent use. Callers that share one across
// goroutines must serialise access themselves; Sessions does that for the
// HTTP layer.
package editor

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
)

// Persister is the persistence collaborator used by SaveProject.
type Persister interface {
	SaveProject(ctx context.Context, project *Project) error
	LoadProject(ctx context.Context, id string) (*Project, error)
}

// IDGenerator produces ids for new pages and elements.
type IDGenerator interface {
	New() string
}

type uuidGenerator struct{}

func (uuidGenerator) New() string { return uuid.New().String() }

type Option func(*Editor)

// WithHistoryLimit bounds the undo and redo stacks.
func WithHistoryLimit(n int) Option {
	return func(e *Editor) {
		e.past = newHistory(n)
		e.future = newHistory(n)
	}
}

func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Editor) { e.ids = ids }
}

func WithPersister(p Persister) Option {
	return func(e *Editor) { e.persister = p }
}

type Editor struct {
	project           *Project
	currentPageID     string
	selectedElementID string
	openPanel         string

	past   *history
	future *history

	ids       IDGenerator
	persister Persister

	saving      bool
	lastSaveErr error
}

func New(opts ...Option) *Editor {
	e := &Editor{
		past:   newHistory(DefaultHistoryLimit),
		future: newHistory(DefaultHistoryLimit),
		ids:    uuidGenerator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State is a read-only view of the editor.
type State struct {
	Project           *Project `json:"project"`
	CurrentPageID     string   `json:"currentPageId,omitempty"`
	SelectedElementID string   `json:"selectedElementId,omitempty"`
	OpenPanel         string   `json:"openPanel,omitempty"`
	CanUndo           bool     `json:"canUndo"`
	CanRedo           bool     `json:"canRedo"`
	IsSaving          bool     `json:"isSaving"`
	LastSaveError     string   `json:"lastSaveError,omitempty"`
}

func (e *Editor) State() State {
	s := State{
		Project:           e.Project(),
		CurrentPageID:     e.currentPageID,
		SelectedElementID: e.selectedElementID,
		OpenPanel:         e.openPanel,
		CanUndo:           e.CanUndo(),
		CanRedo:           e.CanRedo(),
		IsSaving:          e.saving,
	}
	if e.lastSaveErr != nil {
		s.LastSaveError = e.lastSaveErr.Error()
	}
	return s
}

// Project returns a copy of the live project, or nil when none is loaded.
func (e *Editor) Project() *Project { return e.project.Clone() }

func (e *Editor) CurrentPageID() string     { return e.currentPageID }
func (e *Editor) SelectedElementID() string { return e.selectedElementID }
func (e *Editor) OpenPanel() string         { return e.openPanel }
func (e *Editor) CanUndo() bool             { return e.past.len() > 0 }
func (e *Editor) CanRedo() bool             { return e.future.len() > 0 }
func (e *Editor) IsSaving() bool            { return e.saving }

// SetProject replaces the whole editor state with a copy of p and forgets
// all history.
func (e *Editor) SetProject(p *Project) {
	e.project = p.Clone()
	e.currentPageID = ""
	if e.project != nil && len(e.project.Pages) > 0 {
		e.currentPageID = e.project.Pages[0].ID
	}
	e.selectedElementID = ""
	e.past.clear()
	e.future.clear()
}

func (e *Editor) SetCurrentPage(pageID string) error {
	if e.project == nil {
		return ErrNoProject
	}
	if _, ok := e.project.Page(pageID); !ok {
		return ErrPageNotFound
	}
	if e.currentPageID != pageID {
		e.selectedElementID = ""
	}
	e.currentPageID = pageID
	return nil
}

// SelectElement focuses an element; an empty id clears the selection.
func (e *Editor) SelectElement(elementID string) { e.selectedElementID = elementID }

// SetOpenPanel records which side panel is open; empty closes it.
func (e *Editor) SetOpenPanel(name string) { e.openPanel = name }

// mutate runs fn against a copy of the live project. Only when fn succeeds
// does the copy become live and the previous project an undo entry, so a
// rejected operation leaves no trace.
func (e *Editor) mutate(fn func(p *Project) error) error {
	if e.project == nil {
		return ErrNoProject
	}
	next := e.project.Clone()
	if err := fn(next); err != nil {
		return err
	}
	e.past.push(e.project)
	e.future.clear()
	e.project = next
	return nil
}

func (e *Editor) UpdateProjectSettings(patch SettingsPatch) error {
	return e.mutate(func(p *Project) error {
		p.Settings = patch.Apply(p.Settings)
		return nil
	})
}

// AddPage appends a page named name and makes it current. The first page
// of a project becomes its home page.
func (e *Editor) AddPage(name string) (string, error) {
	id := e.ids.New()
	err := e.mutate(func(p *Project) error {
		p.Pages = append(p.Pages, Page{
			ID:       id,
			Name:     name,
			Slug:     Slugify(name),
			IsHome:   len(p.Pages) == 0,
			Elements: []Element{},
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	e.currentPageID = id
	e.selectedElementID = ""
	return id, nil
}

// UpdatePage patches a page's name and slug. A slug that is not a valid
// URL segment is rejected.
func (e *Editor) UpdatePage(pageID string, patch PagePatch) error {
	if patch.Slug != nil && !ValidSlug(*patch.Slug) {
		return ErrInvalidSlug
	}
	return e.mutate(func(p *Project) error {
		pg, ok := p.Page(pageID)
		if !ok {
			return ErrPageNotFound
		}
		patch.apply(pg)
		return nil
	})
}

// DeletePage removes a page. The only page and the home page are kept.
func (e *Editor) DeletePage(pageID string) error {
	err := e.mutate(func(p *Project) error {
		idx := -1
		for i := range p.Pages {
			if p.Pages[i].ID == pageID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrPageNotFound
		}
		if len(p.Pages) <= 1 {
			return ErrLastPage
		}
		if p.Pages[idx].IsHome {
			return ErrHomePage
		}
		p.Pages = append(p.Pages[:idx], p.Pages[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	if e.currentPageID == pageID {
		e.currentPageID = e.project.Pages[0].ID
		e.selectedElementID = ""
	}
	return nil
}

// SetHomePage flags pageID as home and clears the flag everywhere else.
func (e *Editor) SetHomePage(pageID string) error {
	return e.mutate(func(p *Project) error {
		if _, ok := p.Page(pageID); !ok {
			return ErrPageNotFound
		}
		for i := range p.Pages {
			p.Pages[i].IsHome = p.Pages[i].ID == pageID
		}
		return nil
	})
}

// AddElement appends an element with the type's default content after the
// page's highest position, and selects it.
func (e *Editor) AddElement(pageID, elementType string) (string, error) {
	return e.addElement(pageID, elementType, nil)
}

// AddElementAt is AddElement with an explicit position.
func (e *Editor) AddElementAt(pageID, elementType string, position int) (string, error) {
	return e.addElement(pageID, elementType, &position)
}

func (e *Editor) addElement(pageID, elementType string, position *int) (string, error) {
	id := e.ids.New()
	err := e.mutate(func(p *Project) error {
		pg, ok := p.Page(pageID)
		if !ok {
			return ErrPageNotFound
		}
		pos := nextPosition(pg.Elements)
		if position != nil {
			pos = *position
		}
		pg.Elements = append(pg.Elements, Element{
			ID:       id,
			Type:     elementType,
			Content:  DefaultContent(elementType),
			Position: pos,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	e.selectedElementID = id
	return id, nil
}

func nextPosition(elements []Element) int {
	next := 0
	for _, el := range elements {
		if el.Position+1 > next {
			next = el.Position + 1
		}
	}
	return next
}

func (e *Editor) UpdateElement(pageID, elementID string, patch ElementPatch) error {
	return e.mutate(func(p *Project) error {
		pg, ok := p.Page(pageID)
		if !ok {
			return ErrPageNotFound
		}
		el, _, ok := pg.element(elementID)
		if !ok {
			return ErrElementNotFound
		}
		patch.apply(el)
		return nil
	})
}

func (e *Editor) DeleteElement(pageID, elementID string) error {
	err := e.mutate(func(p *Project) error {
		pg, ok := p.Page(pageID)
		if !ok {
			return ErrPageNotFound
		}
		_, idx, ok := pg.element(elementID)
		if !ok {
			return ErrElementNotFound
		}
		pg.Elements = append(pg.Elements[:idx], pg.Elements[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	if e.selectedElementID == elementID {
		e.selectedElementID = ""
	}
	return nil
}

// ReorderElements sorts the page's elements by position, moves the element
// at startIndex to endIndex, then renumbers every position to its index.
func (e *Editor) ReorderElements(pageID string, startIndex, endIndex int) error {
	return e.mutate(func(p *Project) error {
		pg, ok := p.Page(pageID)
		if !ok {
			return ErrPageNotFound
		}
		n := len(pg.Elements)
		if startIndex < 0 || startIndex >= n || endIndex < 0 || endIndex >= n {
			return ErrIndexOutOfRange
		}
		sorted := append([]Element(nil), pg.Elements...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Position < sorted[j].Position
		})
		moved := sorted[startIndex]
		sorted = append(sorted[:startIndex], sorted[startIndex+1:]...)
		sorted = append(sorted[:endIndex], append([]Element{moved}, sorted[endIndex:]...)...)
		for i := range sorted {
			sorted[i].Position = i
		}
		pg.Elements = sorted
		return nil
	})
}

// Undo restores the project as it was before the last mutation. It reports
// false when there is nothing to undo.
func (e *Editor) Undo() bool {
	prev, ok := e.past.pop()
	if !ok {
		return false
	}
	e.future.push(e.project)
	e.project = prev
	e.reconcileFocus()
	return true
}

// Redo re-applies the last undone mutation. It reports false when there is
// nothing to redo.
func (e *Editor) Redo() bool {
	next, ok := e.future.pop()
	if !ok {
		return false
	}
	e.past.push(e.project)
	e.project = next
	e.reconcileFocus()
	return true
}

// reconcileFocus drops focus that points at pages or elements a history
// step removed.
func (e *Editor) reconcileFocus() {
	pg, ok := e.project.Page(e.currentPageID)
	if !ok {
		e.currentPageID = ""
		e.selectedElementID = ""
		if len(e.project.Pages) > 0 {
			e.currentPageID = e.project.Pages[0].ID
		}
		return
	}
	if e.selectedElementID != "" {
		if _, _, ok := pg.element(e.selectedElementID); !ok {
			e.selectedElementID = ""
		}
	}
}

// BeginSave marks a save as in flight and returns the snapshot to persist.
// Edits made before FinishSave stay local and go out with the next save.
func (e *Editor) BeginSave() (*Project, error) {
	if e.project == nil {
		return nil, ErrNoProject
	}
	if e.saving {
		return nil, ErrSaveInProgress
	}
	e.saving = true
	return e.project.Clone(), nil
}

// FinishSave clears the in-flight flag and records the outcome. A failure
// is returned as a *SaveError; the project itself is never rolled back.
func (e *Editor) FinishSave(projectID string, err error) error {
	e.saving = false
	if err != nil {
		e.lastSaveErr = &SaveError{ProjectID: projectID, Err: err}
		return e.lastSaveErr
	}
	e.lastSaveErr = nil
	return nil
}

// SaveProject hands the current project to the configured Persister.
func (e *Editor) SaveProject(ctx context.Context) error {
	snapshot, err := e.BeginSave()
	if err != nil {
		return err
	}
	if e.persister == nil {
		return e.FinishSave(snapshot.ID, errors.New("no persister configured"))
	}
	return e.FinishSave(snapshot.ID, e.persister.SaveProject(ctx, snapshot))
}

// LoadProject fetches a project through the Persister and installs it.
func (e *Editor) LoadProject(ctx context.Context, id string) error {
	if e.persister == nil {
		return errors.New("no persister configured")
	}
	p, err := e.persister.LoadProject(ctx, id)
	if err != nil {
		return err
	}
	e.SetProject(p)
	return nil
}
