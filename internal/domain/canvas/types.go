package canvas

// NodeType is the closed set of node kinds a canvas can contain.
type NodeType string

const (
	NodeTypeText       NodeType = "text"
	NodeTypeFile       NodeType = "file"
	NodeTypeImageGen   NodeType = "image-gen"
	NodeTypeLLM        NodeType = "llm"
	NodeTypeResize     NodeType = "resize"
	NodeTypeCrop       NodeType = "crop"
	NodeTypeBlur       NodeType = "blur"
	NodeTypeCompositor NodeType = "compositor"
	NodeTypePreview    NodeType = "preview"
	NodeTypeExport     NodeType = "export"
)

// DataType is the set of semantic handle payload types.
type DataType string

const (
	DataTypeText    DataType = "Text"
	DataTypeNumber  DataType = "Number"
	DataTypeBoolean DataType = "Boolean"
	DataTypeImage   DataType = "Image"
	DataTypeVideo   DataType = "Video"
	DataTypeAudio   DataType = "Audio"
	DataTypeSVG     DataType = "SVG"
)

// HandleType distinguishes a port's direction.
type HandleType string

const (
	HandleTypeInput  HandleType = "Input"
	HandleTypeOutput HandleType = "Output"
)

// Handle is a typed port belonging to a node.
type Handle struct {
	ID        string     `json:"id"`
	NodeID    string     `json:"nodeId"`
	Type      HandleType `json:"type"`
	DataTypes []DataType `json:"dataTypes"`
	Label     string     `json:"label,omitempty"`
	Order     int        `json:"order"`
	Required  bool       `json:"required"`
}

// AcceptsDataType reports whether the handle's declared dataTypes include d.
func (h Handle) AcceptsDataType(d DataType) bool {
	for _, got := range h.DataTypes {
		if got == d {
			return true
		}
	}
	return false
}

// Template describes the shape of a node type: its handles and persistence
// behaviour. Loaded once per NodeType, never mutated by the scheduler.
type Template struct {
	Type        NodeType `json:"type"`
	IsTransient bool     `json:"isTransient"`
	IsTerminal  bool     `json:"isTerminal"`
	Handles     []Handle `json:"handles"`
}

// Node is a unit of work in a canvas graph.
type Node struct {
	ID       string                 `json:"id"`
	Type     NodeType               `json:"type"`
	Name     string                 `json:"name"`
	Config   map[string]interface{} `json:"config,omitempty"`
	Result   *NodeResult            `json:"result,omitempty"`
	IsDirty  bool                   `json:"isDirty"`
	Template *Template              `json:"template,omitempty"`
}

// Edge is a directed connection between an output handle and an input handle.
type Edge struct {
	ID             string `json:"id"`
	Source         string `json:"source"`
	SourceHandleID string `json:"sourceHandleId"`
	Target         string `json:"target"`
	TargetHandleID string `json:"targetHandleId"`
}

// NodeResult is the outcome of one successful node execution.
type NodeResult struct {
	Outputs             []Output `json:"outputs"`
	SelectedOutputIndex int      `json:"selectedOutputIndex"`
}

// SelectedOutput returns the output picked by SelectedOutputIndex, or nil if
// the index is out of range.
func (r *NodeResult) SelectedOutput() *Output {
	if r == nil || r.SelectedOutputIndex < 0 || r.SelectedOutputIndex >= len(r.Outputs) {
		return nil
	}
	return &r.Outputs[r.SelectedOutputIndex]
}

// Output is one ordered group of result items.
type Output struct {
	Items []OutputItem `json:"items"`
}

// ItemForHandle returns the first item tagged with outputHandleID, or nil.
func (o Output) ItemForHandle(outputHandleID string) *OutputItem {
	for i := range o.Items {
		if o.Items[i].OutputHandleID != nil && *o.Items[i].OutputHandleID == outputHandleID {
			return &o.Items[i]
		}
	}
	return nil
}

// OutputItem is a single typed value produced by a node.
type OutputItem struct {
	Type           DataType    `json:"type"`
	Data           interface{} `json:"data"`
	OutputHandleID *string     `json:"outputHandleId,omitempty"`
}

// PersistedFile is a FileData backed by durable object storage.
type PersistedFile struct {
	Key      string `json:"key"`
	Bucket   string `json:"bucket"`
	MimeType string `json:"mimeType"`
}

// TransientFile is a FileData produced mid-batch and not yet persisted.
type TransientFile struct {
	TempKey  string  `json:"tempKey"`
	DataURL  string  `json:"dataUrl,omitempty"`
	MimeType string  `json:"mimeType"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// FileData is either a persisted entity or an in-flight transient file.
// Exactly one of Entity/ProcessData should be set.
type FileData struct {
	Entity      *PersistedFile `json:"entity,omitempty"`
	ProcessData *TransientFile `json:"processData,omitempty"`
}

// VirtualMedia is an opaque tree of media operations: leaves hold a source
// FileData, internal nodes hold a transformation. The scheduler and resolver
// never interpret it, only carry it as OutputItem.Data.
type VirtualMedia struct {
	Operation string                 `json:"operation,omitempty"`
	Source    *FileData              `json:"source,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Children  []VirtualMedia         `json:"children,omitempty"`
}

// TaskStatus is the lifecycle state of a single task within a batch.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "QUEUED"
	TaskStatusExecuting TaskStatus = "EXECUTING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)
