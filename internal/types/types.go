package types

// DetectionEvent is the per-frame record published to clients, the event log
// and downstream motion consumers.
type DetectionEvent struct {
	Type       string  `json:"type" cbor:"type"`
	SessionID  string  `json:"session_id" cbor:"session_id"`
	Seq        uint64  `json:"seq" cbor:"seq"`
	Timestamp  float64 `json:"timestamp" cbor:"timestamp"`
	Found      bool    `json:"found" cbor:"found"`
	X          int     `json:"x" cbor:"x"`
	Y          int     `json:"y" cbor:"y"`
	Confidence float64 `json:"confidence" cbor:"confidence"`
	Zone       string  `json:"zone" cbor:"zone"`
	Stale      bool    `json:"stale,omitempty" cbor:"stale,omitempty"`
	Seeds      int     `json:"seeds" cbor:"seeds"`
}

// TimingSummary describes a rolling window of stage durations in milliseconds.
type TimingSummary struct {
	Count  int     `json:"count"`
	MeanMS float64 `json:"mean_ms"`
	StdMS  float64 `json:"std_ms"`
	P50MS  float64 `json:"p50_ms"`
	P95MS  float64 `json:"p95_ms"`
	MaxMS  float64 `json:"max_ms"`
}

type UISnapshot struct {
	Type       string                   `json:"type"`
	Frames     uint64                   `json:"frames"`
	Found      uint64                   `json:"found"`
	Stale      uint64                   `json:"stale"`
	ZoneCounts map[string]uint64        `json:"zone_counts"`
	Last       *DetectionEvent          `json:"last,omitempty"`
	Timings    map[string]TimingSummary `json:"timings"`
	PreviewSeq uint64                   `json:"preview_seq,omitempty"`
}
