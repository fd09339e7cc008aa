package editor

// DefaultHistoryLimit is the number of undo snapshots kept when none is
// configured.
const DefaultHistoryLimit = 50

// history is a bounded stack of whole-project snapshots. When full, the
// oldest snapshot is dropped.
type history struct {
	limit     int
	snapshots []*Project
}

func newHistory(limit int) *history {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	return &history{limit: limit}
}

func (h *history) push(p *Project) {
	if len(h.snapshots) == h.limit {
		copy(h.snapshots, h.snapshots[1:])
		h.snapshots[len(h.snapshots)-1] = nil
		h.snapshots = h.snapshots[:len(h.snapshots)-1]
	}
	h.snapshots = append(h.snapshots, p)
}

func (h *history) pop() (*Project, bool) {
	n := len(h.snapshots)
	if n == 0 {
		return nil, false
	}
	p := h.snapshots[n-1]
	h.snapshots[n-1] = nil
	h.snapshots = h.snapshots[:n-1]
	return p, true
}

func (h *history) len() int { return len(h.snapshots) }

func (h *history) clear() {
	clear(h.snapshots)
	h.snapshots = h.snapshots[:0]
}
