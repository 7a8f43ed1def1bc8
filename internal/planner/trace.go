package planner

import (
	"fmt"

	"go.uber.org/zap"
)

// Stage names the pipeline step that produced a trace entry.
type Stage string

const (
	StageSnapshot  Stage = "snapshot"
	StageAnchors   Stage = "anchors"
	StageGeocode   Stage = "geocode"
	StageProximity Stage = "proximity"
	StageConfirm   Stage = "confirm"
	StageGravity   Stage = "gravity"
	StageAllocate  Stage = "allocate"
	StageRepechage Stage = "repechage"
	StageWrite     Stage = "write"
)

// TraceLevel is the severity of a trace entry.
type TraceLevel string

const (
	TraceInfo TraceLevel = "info"
	TraceWarn TraceLevel = "warn"
)

// TraceEntry is one recorded planner decision.
type TraceEntry struct {
	Stage   Stage          `json:"stage"`
	Level   TraceLevel     `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Trace is the per-run decision log returned with every planner result.
// It is not safe for concurrent use.
type Trace struct {
	Entries []TraceEntry `json:"entries"`
}

// Info records an entry for stage. kv holds alternating field names and
// values.
func (t *Trace) Info(stage Stage, msg string, kv ...any) {
	t.add(stage, TraceInfo, msg, kv)
}

// Warn records an entry that degraded the run, such as a failed lookup or
// a locked day.
func (t *Trace) Warn(stage Stage, msg string, kv ...any) {
	t.add(stage, TraceWarn, msg, kv)
}

// Count returns the number of entries recorded for stage at level.
func (t *Trace) Count(stage Stage, level TraceLevel) int {
	n := 0
	for _, e := range t.Entries {
		if e.Stage == stage && e.Level == level {
			n++
		}
	}
	return n
}

func (t *Trace) add(stage Stage, level TraceLevel, msg string, kv []any) {
	entry := TraceEntry{Stage: stage, Level: level, Message: msg}
	zfields := []zap.Field{zap.String("stage", string(stage))}
	if len(kv) > 0 {
		entry.Fields = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key := fmt.Sprint(kv[i])
			entry.Fields[key] = kv[i+1]
			zfields = append(zfields, zap.Any(key, kv[i+1]))
		}
	}
	t.Entries = append(t.Entries, entry)
	zap.L().Debug("planner: "+msg, zfields...)
}
