package domain

// Stats is a point-in-time summary of the fan-out core.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	Rooms            map[string]int `json:"rooms"`
	EventsRetained   int            `json:"events_retained"`
	LatestEventID    int64          `json:"latest_event_id"`
	Heartbeats       int            `json:"heartbeats"`
	Streams          int            `json:"streams"`
}
