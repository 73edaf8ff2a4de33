package shared

// ServerInfo contains information about the server
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	AgentID string `json:"agentId,omitempty"`
}

// ClientInfo contains the name and version a client declares at initialize
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Capabilities represents the server's capabilities
type Capabilities struct {
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Tools     *ToolsCapability     `json:"tools,omitempty"`
}

// ResourcesCapability indicates support for resources
type ResourcesCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsCapability indicates support for tools
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// Tool represents a tool exposed by the server
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema interface{} `json:"inputSchema"`
}

// Resource represents a resource exposed by the server
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

// ResourceContents represents one content item of a resources/read result
type ResourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// Content represents content returned by tools
type Content interface {
	GetType() string
}

// TextContent represents text content
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// GetType returns the content type
func (t TextContent) GetType() string {
	return t.Type
}

// NewTextContent creates a TextContent with the type field populated.
func NewTextContent(text string) TextContent {
	return TextContent{Type: "text", Text: text}
}

// ResourceContent embeds a serialized resource in a tool result
type ResourceContent struct {
	Type     string           `json:"type"`
	Resource ResourceContents `json:"resource"`
}

// GetType returns the content type
func (r ResourceContent) GetType() string {
	return r.Type
}
