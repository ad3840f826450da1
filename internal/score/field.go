package score

import "math"

// FieldEntry is one metric's field-verification state. A nil AdjustedScore
// means "use the computed value".
type FieldEntry struct {
	AdjustedScore *float64 `json:"adjustedScore"`
	Observation   string   `json:"observation"`
}

// FieldData is the field-verification override map. It lives client-side
// for the duration of a report view; the engine only ever consumes it as an
// argument, never stores it.
type FieldData struct {
	Verifier string                   `json:"verifier,omitempty"`
	Entries  map[MetricKey]FieldEntry `json:"entries"`
}

// NewFieldData returns an empty override map with every metric in the
// computed state.
func NewFieldData() FieldData {
	entries := make(map[MetricKey]FieldEntry, len(MetricKeys))
	for _, k := range MetricKeys {
		entries[k] = FieldEntry{}
	}
	return FieldData{Entries: entries}
}

// Step adjusts one metric by delta (±0.5 per button press), starting from
// the existing adjustment or the computed value. Results are clamped to
// [0,10] and rounded to the nearest 0.5.
func (f *FieldData) Step(k MetricKey, original WalkabilityMetrics, delta float64) {
	if !k.Valid() {
		return
	}
	if f.Entries == nil {
		f.Entries = make(map[MetricKey]FieldEntry)
	}
	entry := f.Entries[k]
	cur := original.Get(k)
	if entry.AdjustedScore != nil {
		cur = *entry.AdjustedScore
	}
	v := roundHalf(clamp0to10(cur + delta))
	entry.AdjustedScore = &v
	f.Entries[k] = entry
}

// SetObservation records the verifier's note for one metric.
func (f *FieldData) SetObservation(k MetricKey, obs string) {
	if !k.Valid() {
		return
	}
	if f.Entries == nil {
		f.Entries = make(map[MetricKey]FieldEntry)
	}
	entry := f.Entries[k]
	entry.Observation = obs
	f.Entries[k] = entry
}

// Reset returns one metric to the computed state. The observation text is
// kept; only the score override is discarded.
func (f *FieldData) Reset(k MetricKey) {
	if f.Entries == nil {
		return
	}
	entry, ok := f.Entries[k]
	if !ok {
		return
	}
	entry.AdjustedScore = nil
	f.Entries[k] = entry
}

// ResetAll returns every metric to the computed state and clears the
// verifier name.
func (f *FieldData) ResetAll() {
	f.Verifier = ""
	for k, entry := range f.Entries {
		entry.AdjustedScore = nil
		f.Entries[k] = entry
	}
}

// Recalculate recomputes the legacy score with adjusted values substituted
// for computed ones wherever an override exists. The original is never
// modified, so computed and verified results can be displayed side by side.
// Pure and deterministic given (original, f); cheap enough to run on every
// keystroke.
func Recalculate(original WalkabilityMetrics, f FieldData) WalkabilityMetrics {
	m := original
	for _, k := range MetricKeys {
		if entry, ok := f.Entries[k]; ok && entry.AdjustedScore != nil {
			m.set(k, *entry.AdjustedScore)
		}
	}
	return CalculateMetrics(m)
}

func clamp0to10(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}

// roundHalf rounds to the nearest 0.5.
func roundHalf(v float64) float64 {
	return math.Round(v*2) / 2
}
