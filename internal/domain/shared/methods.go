package shared

// MCP method names
const (
	MethodInitialize = "initialize"

	MethodListResources = "resources/list"
	MethodReadResource  = "resources/read"

	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"
)

// Notification method names pushed by the server.
const (
	NotificationGameMove         = "notifications/game/move"
	NotificationGameState        = "notifications/game/state"
	NotificationTournamentUpdate = "notifications/tournament/update"
)

// InitializeParams represents parameters for the initialize method
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion,omitempty"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// InitializeResult represents the result of the initialize method
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// ListToolsResult represents the result of the tools/list method
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams represents parameters for the tools/call method
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// CallToolResult represents the result of the tools/call method
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// ListResourcesResult represents the result of the resources/list method
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

// ReadResourceParams represents parameters for the resources/read method
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResult represents the result of the resources/read method
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}
