package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
	TypeCommand   = "COMMAND"
	TypeError     = "ERROR"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// Client -> Server. Pointer interactions and settings from the presentation
// layer. X/Y are screen coordinates.
type CommandMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Command         string    `json:"command"`
	X               float64   `json:"x,omitempty"`
	Y               float64   `json:"y,omitempty"`
	HandOff         bool      `json:"hand_off,omitempty"`
	Settings        *Settings `json:"settings,omitempty"`
}

type Settings struct {
	Scale           float64  `json:"scale"`
	BaseSpeed       float64  `json:"base_speed"`
	SneakChance     float64  `json:"sneak_chance"`
	MischiefChance  float64  `json:"mischief_chance"`
	AllowedMonitors []string `json:"allowed_monitors"`
	SneakEnabled    bool     `json:"sneak_enabled"`
	MischiefEnabled bool     `json:"mischief_enabled"`
	ChaosMode       bool     `json:"chaos_mode"`
	FunMode         bool     `json:"fun_mode"`
}

// Server -> Client. Rejected command or subscribe.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Message         string `json:"message"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	RunID           string      `json:"run_id,omitempty"`
	Tick            uint64      `json:"tick"`
	Params          WorldParams `json:"world_params"`
	Monitors        []Monitor   `json:"monitors"`
	Settings        Settings    `json:"settings"`
	Frame           FrameMsg    `json:"frame"`
}

type WorldParams struct {
	TickMs        int   `json:"tick_ms"`
	OverlayTickMs int   `json:"overlay_tick_ms"`
	FrameSize     int   `json:"frame_size"`
	Seed          int64 `json:"seed"`
}

type Monitor struct {
	DeviceID string     `json:"device_id"`
	WorkArea [4]float64 `json:"work_area"`
	Bounds   [4]float64 `json:"bounds"`
	Primary  bool       `json:"primary"`
	Allowed  bool       `json:"allowed"`
}

// Server -> Client. Sent every behavior tick.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AtMs            int64  `json:"at_ms"`

	Agent      AgentView       `json:"agent"`
	Bubble     *BubbleView     `json:"bubble,omitempty"`
	Toy        *ToyView        `json:"toy,omitempty"`
	Footprints []FootprintView `json:"footprints,omitempty"`
	Reveal     *RevealView     `json:"reveal,omitempty"`
}

type AgentView struct {
	State  string     `json:"state"`
	Pos    [2]float64 `json:"pos"`
	Size   float64    `json:"size"`
	Scale  float64    `json:"scale"`
	Facing string     `json:"facing"`

	// Sheet is idle, move or sleep; Row is only meaningful for move.
	Sheet  string `json:"sheet"`
	Row    int    `json:"row"`
	Column int    `json:"column"`

	Topmost       bool   `json:"topmost"`
	Occluded      bool   `json:"occluded"`
	CursorCarried bool   `json:"cursor_carried"`
	Pending       string `json:"pending,omitempty"`
	Zoomies       bool   `json:"zoomies,omitempty"`
}

type BubbleView struct {
	Text    string  `json:"text"`
	Opacity float64 `json:"opacity"`
}

type ToyView struct {
	Pos       [2]float64 `json:"pos"`
	Spin      float64    `json:"spin"`
	Carried   bool       `json:"carried"`
	Following bool       `json:"following"`
}

type FootprintView struct {
	Pos     [2]float64 `json:"pos"`
	Angle   float64    `json:"angle"`
	Scale   float64    `json:"scale"`
	Opacity float64    `json:"opacity"`
}

type RevealView struct {
	ItemID string     `json:"item_id"`
	Rect   [4]float64 `json:"rect"`
}
