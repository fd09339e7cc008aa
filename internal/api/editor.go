package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sitesmithapp/sitesmith/internal/editor"
	"github.com/sitesmithapp/sitesmith/internal/middleware"
)

type editorResponse struct {
	Result *editor.Result `json:"result,omitempty"`
	State  editor.State   `json:"state"`
}

// session returns the caller's editor session for the website in the URL,
// opening one if needed. It writes the error response itself.
func (h *Handler) session(w http.ResponseWriter, r *http.Request, open bool) (*editor.Session, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	websiteID := mux.Vars(r)["websiteId"]

	if _, err := h.WebsiteService.GetWebsite(r.Context(), websiteID, user.Sub); err != nil {
		respondServiceError(w, err, "Website not found")
		return nil, false
	}

	if !open {
		sess, ok := h.Sessions.Get(user.Sub, websiteID)
		if !ok {
			middleware.RespondError(w, http.StatusNotFound, "Editor session not open")
		}
		return sess, ok
	}

	sess, err := h.Sessions.Open(r.Context(), user.Sub, websiteID)
	if err != nil {
		respondServiceError(w, err, "Project not found")
		return nil, false
	}
	return sess, true
}

// OpenEditor handles POST /websites/{websiteId}/editor
func (h *Handler) OpenEditor(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r, true)
	if !ok {
		return
	}
	middleware.RespondJSON(w, http.StatusOK, editorResponse{State: sess.State()})
}

// EditorState handles GET /websites/{websiteId}/editor
func (h *Handler) EditorState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r, false)
	if !ok {
		return
	}
	middleware.RespondJSON(w, http.StatusOK, editorResponse{State: sess.State()})
}

// ApplyCommand handles POST /websites/{websiteId}/editor/commands
func (h *Handler) ApplyCommand(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r, false)
	if !ok {
		return
	}

	var cmd editor.Command
	if !decodeJSON(w, r, &cmd) {
		return
	}
	h.apply(w, sess, cmd)
}

// Undo handles POST /websites/{websiteId}/editor/undo
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	if sess, ok := h.session(w, r, false); ok {
		h.apply(w, sess, editor.Command{Op: editor.OpUndo})
	}
}

// Redo handles POST /websites/{websiteId}/editor/redo
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	if sess, ok := h.session(w, r, false); ok {
		h.apply(w, sess, editor.Command{Op: editor.OpRedo})
	}
}

func (h *Handler) apply(w http.ResponseWriter, sess *editor.Session, cmd editor.Command) {
	res, state, err := sess.Apply(cmd)
	if err != nil {
		respondServiceError(w, err, "Not found")
		return
	}
	middleware.RespondJSON(w, http.StatusOK, editorResponse{Result: &res, State: state})
}

// SaveEditor handles POST /websites/{websiteId}/editor/save. A failed save
// keeps every edit in the session.
func (h *Handler) SaveEditor(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r, false)
	if !ok {
		return
	}

	state, err := sess.Save(r.Context())
	if err != nil {
		log.Printf("[Editor] Save failed for project %s: %v", sess.ProjectID, err)
		respondServiceError(w, err, "Project not found")
		return
	}
	middleware.RespondJSON(w, http.StatusOK, editorResponse{State: state})
}

// CloseEditor handles DELETE /websites/{websiteId}/editor. Unsaved edits
// are discarded.
func (h *Handler) CloseEditor(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !h.Sessions.Close(user.Sub, mux.Vars(r)["websiteId"]) {
		middleware.RespondError(w, http.StatusNotFound, "Editor session not open")
		return
	}
	middleware.RespondJSON(w, http.StatusOK, map[string]string{"message": "Editor closed"})
}
