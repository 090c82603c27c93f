package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	// Pilot clients drive the observer position. Others only watch.
	Pilot    bool `json:"pilot,omitempty"`
	MaxQueue int  `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz     int         `json:"tick_rate_hz"`
	Seed           int32       `json:"seed"`
	ObserverRadius float64     `json:"observer_radius"`
	Foreground     LayerParams `json:"foreground"`
	Background     LayerParams `json:"background"`
	Home           *Planet     `json:"home,omitempty"`
}

type LayerParams struct {
	ChunkSize            float64 `json:"chunk_size"`
	ViewDistanceInChunks int     `json:"view_distance_in_chunks"`
	MinPlanetRadius      float64 `json:"min_planet_radius"`
	MaxPlanetRadius      float64 `json:"max_planet_radius"`
	MaxPlanetsPerChunk   int     `json:"max_planets_per_chunk"`
	PlanetsPerFrame      int     `json:"planets_per_frame"`
}

type Planet struct {
	ID       uint64     `json:"id,omitempty"`
	Pos      [2]float64 `json:"pos"`
	Radius   float64    `json:"radius"`
	Chunk    [2]int     `json:"chunk"`
	Category string     `json:"category"`
	Rotation float64    `json:"rotation,omitempty"`
}

// TICK (server -> client)
type TickMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Observer        [2]float64 `json:"observer"`
	ObserverChunk   [2]int     `json:"observer_chunk"`
	Unlocked        []string   `json:"unlocked"`
	// Resync tells the client to drop its entity set; Events then lists
	// every live entity.
	Resync   bool          `json:"resync,omitempty"`
	Events   []EntityEvent `json:"events,omitempty"`
	Contacts []Planet      `json:"contacts,omitempty"`
	Digest   string        `json:"digest"`
}

type EntityEvent struct {
	Type     string     `json:"type"`
	ID       uint64     `json:"id"`
	Kind     string     `json:"kind"`
	Layer    string     `json:"layer"`
	Chunk    [2]int     `json:"chunk"`
	Pos      [2]float64 `json:"pos,omitempty"`
	Radius   float64    `json:"radius,omitempty"`
	Category string     `json:"category,omitempty"`
	Rotation float64    `json:"rotation,omitempty"`
}

// MOVE (client -> server)
type MoveMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [2]float64 `json:"pos"`
}

// LEVEL_WON (client -> server)
type LevelWonMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Level           int    `json:"level"`
}

// RESIDUE (client -> server)
type ResidueMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [2]float64 `json:"pos"`
	Radius          float64    `json:"radius"`
	Background      bool       `json:"background,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
