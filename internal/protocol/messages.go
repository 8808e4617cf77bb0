package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	AgentName       string     `json:"agent_name"`
	MaxQueue        int        `json:"max_queue,omitempty"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	ResumeToken string `json:"resume_token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	AgentID         string      `json:"agent_id"`
	ResumeToken     string      `json:"resume_token"`
	WorldParams     WorldParams `json:"world_params"`
	Inventory       []ItemStack `json:"inventory"`
	Pos             [3]float64  `json:"pos"`
}

type WorldParams struct {
	WorldID        string  `json:"world_id"`
	TickRateHz     int     `json:"tick_rate_hz"`
	Seed           int64   `json:"seed"`
	InventoryCols  int     `json:"inventory_cols"`
	InventoryRows  int     `json:"inventory_rows"`
	MaxStack       int     `json:"max_stack"`
	DrawerCapacity int     `json:"drawer_capacity"`
	SearchRadius   float64 `json:"search_radius"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
	Slot  [2]int `json:"slot"`
}

// MOVE (client -> server)
type MoveMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [3]float64 `json:"pos"`
}

// STACK_DONE (client -> server): the client's own stacking pass finished
// after moving Moved stacks.
type StackDoneMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Moved           int    `json:"moved"`
}

// STACK_RESULT (server -> client)
type StackResultMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	PassID          string      `json:"pass_id,omitempty"`
	Moved           int         `json:"moved"`
	Issued          int         `json:"issued"`
	Containers      int         `json:"containers"`
	Radius          float64     `json:"radius"`
	Inventory       []ItemStack `json:"inventory"`
}

// RECONCILE (server -> client): one transfer was verified.
type ReconcileMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	TransferID      string `json:"transfer_id"`
	PassID          string `json:"pass_id,omitempty"`
	ContainerID     string `json:"container_id"`
	Item            string `json:"item"`
	Requested       int    `json:"requested"`
	Accepted        int    `json:"accepted"`
	Shortfall       int    `json:"shortfall"`
	State           string `json:"state"`
	RecoveredTo     string `json:"recovered_to"`
	Code            string `json:"code,omitempty"`
}

type NoticeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Text            string `json:"text"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}
