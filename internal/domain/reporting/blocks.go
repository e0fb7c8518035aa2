package reporting

// Block is a closed union over the supported evidence block kinds.
// The marker method keeps the set sealed inside this package; the wire
// encoder switches over every variant and logs anything it does not know.
type Block interface {
	isBlock()
}

// MarkdownBlock free-form markdown text
type MarkdownBlock struct {
	Text string `json:"text"`
}

// DividerBlock visual separator, carries no data
type DividerBlock struct{}

// FileBlock raw file attachment; Contents is base64-encoded on the wire
type FileBlock struct {
	Filename string `json:"filename"`
	Contents []byte `json:"contents"`
}

// HeaderBlock section header text
type HeaderBlock struct {
	Text string `json:"text"`
}

// ListBlock bullet list items
type ListBlock struct {
	Items []string `json:"items"`
}

// TableBlock tabular data; ColumnRenderers maps header name → renderer hint
type TableBlock struct {
	Headers         []string          `json:"headers"`
	Rows            [][]string        `json:"rows"`
	ColumnRenderers map[string]string `json:"column_renderers,omitempty"`
}

// DiffPath one changed path in a resource diff
type DiffPath struct {
	FormattedPath string `json:"formatted_path"`
}

// KubernetesDiffBlock old/new snapshots of a changed resource
type KubernetesDiffBlock struct {
	Old              string     `json:"old"`
	New              string     `json:"new"`
	ResourceName     string     `json:"resource_name"`
	NumAdditions     int        `json:"num_additions"`
	NumDeletions     int        `json:"num_deletions"`
	NumModifications int        `json:"num_modifications"`
	Diffs            []DiffPath `json:"diffs"`
}

// CallbackChoice one user-facing action: label + the action it triggers
type CallbackChoice struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

// CallbackBlock user-triggerable actions; each choice is issued as a signed
// opaque token by the encoder, executed elsewhere when the user clicks it.
// Choices keep insertion order (unlike a map) so rendering is stable.
type CallbackBlock struct {
	Choices []CallbackChoice `json:"choices"`
	Context map[string]any   `json:"context,omitempty"`
}

func (MarkdownBlock) isBlock()       {}
func (DividerBlock) isBlock()        {}
func (FileBlock) isBlock()           {}
func (HeaderBlock) isBlock()         {}
func (ListBlock) isBlock()           {}
func (TableBlock) isBlock()          {}
func (KubernetesDiffBlock) isBlock() {}
func (CallbackBlock) isBlock()       {}
