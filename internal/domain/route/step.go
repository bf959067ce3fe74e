package route

// RawStep is a single maneuver as reported by the routing service.
type RawStep struct {
	Instruction string    `json:"instruction"`
	Type        string    `json:"type"`
	Modifier    string    `json:"modifier,omitempty"`
	Name        string    `json:"name,omitempty"`
	DistanceM   float64   `json:"distance_m"`
	DurationS   float64   `json:"duration_s"`
	Location    *GeoPoint `json:"location,omitempty"`
}

// FinalStep is a simplified, display-ready direction. Type, modifier and
// name are cleared when several raw steps were folded into a generic
// "continue" step.
type FinalStep struct {
	Instruction string  `json:"instruction"`
	DistanceM   float64 `json:"distance_m"`
	DurationS   float64 `json:"duration_s"`
	Type        string  `json:"type,omitempty"`
	Modifier    string  `json:"modifier,omitempty"`
	Name        string  `json:"name,omitempty"`
}
