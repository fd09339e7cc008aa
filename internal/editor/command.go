package editor

import "fmt"

// Command is the wire form of one editor operation, e.g.
//
//	{"op":"addElement","pageId":"p1","type":"hero"}
//	{"op":"reorderElements","pageId":"p1","startIndex":0,"endIndex":2}
type Command struct {
	Op string `json:"op"`

	PageID    string `json:"pageId,omitempty"`
	ElementID string `json:"elementId,omitempty"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"type,omitempty"`
	Position  *int   `json:"position,omitempty"`

	StartIndex int `json:"startIndex,omitempty"`
	EndIndex   int `json:"endIndex,omitempty"`

	Settings *SettingsPatch `json:"settings,omitempty"`
	Page     *PagePatch     `json:"page,omitempty"`
	Element  *ElementPatch  `json:"element,omitempty"`
}

const (
	OpSelectElement         = "selectElement"
	OpSetCurrentPage        = "setCurrentPage"
	OpSetOpenPanel          = "setOpenPanel"
	OpUpdateProjectSettings = "updateProjectSettings"
	OpAddPage               = "addPage"
	OpUpdatePage            = "updatePage"
	OpDeletePage            = "deletePage"
	OpSetHomePage           = "setHomePage"
	OpAddElement            = "addElement"
	OpUpdateElement         = "updateElement"
	OpDeleteElement         = "deleteElement"
	OpReorderElements       = "reorderElements"
	OpUndo                  = "undo"
	OpRedo                  = "redo"
)

// Result carries the id created by addPage/addElement, if any.
type Result struct {
	CreatedID string `json:"createdId,omitempty"`
	Applied   bool   `json:"applied"`
}

// Apply runs cmd against e.
func Apply(e *Editor, cmd Command) (Result, error) {
	var (
		id  string
		err error
	)
	switch cmd.Op {
	case OpSelectElement:
		e.SelectElement(cmd.ElementID)
	case OpSetCurrentPage:
		err = e.SetCurrentPage(cmd.PageID)
	case OpSetOpenPanel:
		e.SetOpenPanel(cmd.Name)
	case OpUpdateProjectSettings:
		if cmd.Settings == nil {
			return Result{}, fmt.Errorf("%w: settings are required", ErrRejected)
		}
		err = e.UpdateProjectSettings(*cmd.Settings)
	case OpAddPage:
		id, err = e.AddPage(cmd.Name)
	case OpUpdatePage:
		if cmd.Page == nil {
			return Result{}, fmt.Errorf("%w: page fields are required", ErrRejected)
		}
		err = e.UpdatePage(cmd.PageID, *cmd.Page)
	case OpDeletePage:
		err = e.DeletePage(cmd.PageID)
	case OpSetHomePage:
		err = e.SetHomePage(cmd.PageID)
	case OpAddElement:
		if cmd.Position != nil {
			id, err = e.AddElementAt(cmd.PageID, cmd.Type, *cmd.Position)
		} else {
			id, err = e.AddElement(cmd.PageID, cmd.Type)
		}
	case OpUpdateElement:
		if cmd.Element == nil {
			return Result{}, fmt.Errorf("%w: element fields are required", ErrRejected)
		}
		err = e.UpdateElement(cmd.PageID, cmd.ElementID, *cmd.Element)
	case OpDeleteElement:
		err = e.DeleteElement(cmd.PageID, cmd.ElementID)
	case OpReorderElements:
		err = e.ReorderElements(cmd.PageID, cmd.StartIndex, cmd.EndIndex)
	case OpUndo:
		return Result{Applied: e.Undo()}, nil
	case OpRedo:
		return Result{Applied: e.Redo()}, nil
	default:
		return Result{}, fmt.Errorf("%w %q", ErrUnknownCommand, cmd.Op)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{CreatedID: id, Applied: true}, nil
}
