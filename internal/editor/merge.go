package editor

// Merge semantics used by the editor:
//
//   - Project settings: deep. Every nested group (colors, fonts, globalStyles)
//     is merged field by field; unset patch fields keep their value.
//   - Page updates: shallow. Name and slug are replaced when given; id,
//     isHome and elements are never touched by an update.
//   - Element content and settings: deep, key by key (MergeMaps). Nested
//     objects merge recursively, arrays and scalars replace, a nil value
//     is stored as null. Keys are never removed by an update.

// SettingsPatch is a partial WebsiteSettings update. Nil groups and nil
// fields are left as they are.
type SettingsPatch struct {
	Colors       *ColorsPatch       `json:"colors,omitempty"`
	Fonts        *FontsPatch        `json:"fonts,omitempty"`
	GlobalStyles *GlobalStylesPatch `json:"globalStyles,omitempty"`
}

type ColorsPatch struct {
	Primary    *string `json:"primary,omitempty"`
	Secondary  *string `json:"secondary,omitempty"`
	Accent     *string `json:"accent,omitempty"`
	Background *string `json:"background,omitempty"`
	Text       *string `json:"text,omitempty"`
}

type FontsPatch struct {
	Heading *string `json:"heading,omitempty"`
	Body    *string `json:"body,omitempty"`
}

type GlobalStylesPatch struct {
	BorderRadius *string `json:"borderRadius,omitempty"`
	ButtonStyle  *string `json:"buttonStyle,omitempty"`
}

// PagePatch is a partial Page update.
type PagePatch struct {
	Name *string `json:"name,omitempty"`
	Slug *string `json:"slug,omitempty"`
}

// ElementPatch is a partial Element update.
type ElementPatch struct {
	Type     *string        `json:"type,omitempty"`
	Content  map[string]any `json:"content,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
	Position *int           `json:"position,omitempty"`
}

// Apply returns s with the patch merged in.
func (p SettingsPatch) Apply(s WebsiteSettings) WebsiteSettings {
	out := s
	if c := p.Colors; c != nil {
		setString(&out.Colors.Primary, c.Primary)
		setString(&out.Colors.Secondary, c.Secondary)
		setString(&out.Colors.Accent, c.Accent)
		setString(&out.Colors.Background, c.Background)
		setString(&out.Colors.Text, c.Text)
	}
	if f := p.Fonts; f != nil {
		setString(&out.Fonts.Heading, f.Heading)
		setString(&out.Fonts.Body, f.Body)
	}
	if g := p.GlobalStyles; g != nil {
		gs := GlobalStyles{}
		if s.GlobalStyles != nil {
			gs = *s.GlobalStyles
		}
		setString(&gs.BorderRadius, g.BorderRadius)
		setString(&gs.ButtonStyle, g.ButtonStyle)
		out.GlobalStyles = &gs
	} else if s.GlobalStyles != nil {
		gs := *s.GlobalStyles
		out.GlobalStyles = &gs
	}
	return out
}

func (p PagePatch) apply(pg *Page) {
	setString(&pg.Name, p.Name)
	setString(&pg.Slug, p.Slug)
}

func (p ElementPatch) apply(el *Element) {
	setString(&el.Type, p.Type)
	if p.Content != nil {
		el.Content = MergeMaps(el.Content, p.Content)
	}
	if p.Settings != nil {
		el.Settings = MergeMaps(el.Settings, p.Settings)
	}
	if p.Position != nil {
		el.Position = *p.Position
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// MergeMaps returns a new map holding dst deep-merged with patch. Neither
// argument is modified and the result shares no nested values with them.
func MergeMaps(dst, patch map[string]any) map[string]any {
	out := cloneMap(dst)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			out[k] = nil
			continue
		}
		src, srcIsMap := v.(map[string]any)
		cur, curIsMap := out[k].(map[string]any)
		if srcIsMap && curIsMap {
			out[k] = MergeMaps(cur, src)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
