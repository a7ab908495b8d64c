package harness

// FieldSample is one recorded field buffer: Count elements of Stride
// components each, element-major.
type FieldSample struct {
	Count  int       `json:"count"`
	Stride int       `json:"stride"`
	Data   []float64 `json:"data"`
}

// FrameRecord is everything sampled from one executed frame.
type FrameRecord struct {
	Frame   int64                  `json:"frame"`
	TimeMS  float64                `json:"time_ms"`
	Signals map[string][]float64   `json:"signals,omitempty"`
	Fields  map[string]FieldSample `json:"fields,omitempty"`
	Passes  int                    `json:"passes"`
}

// DiagRecord is one deduplicated runtime diagnostic at the end of the run.
type DiagRecord struct {
	Code  string `json:"code"`
	Key   string `json:"key,omitempty"`
	Frame int64  `json:"frame"`
	Count int64  `json:"count"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Frames holds the per-frame recording, in execution order.
	Frames []FrameRecord `json:"frames"`

	// Diags holds the engine's runtime diagnostics after the last frame.
	Diags []DiagRecord `json:"diags,omitempty"`

	// Errors lists assertion failures. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// AddError records an assertion failure and fails the result.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// At returns the recording of a 1-based frame; frame 0 means the last one.
func (r *Result) At(frame int64) (FrameRecord, bool) {
	if len(r.Frames) == 0 {
		return FrameRecord{}, false
	}
	if frame == 0 {
		return r.Frames[len(r.Frames)-1], true
	}
	idx := int(frame) - 1
	if idx < 0 || idx >= len(r.Frames) {
		return FrameRecord{}, false
	}
	return r.Frames[idx], true
}
