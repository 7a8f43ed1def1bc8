package planner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visit-planner/internal/model"
)

// VisitStore persists calendar visits.
type VisitStore interface {
	ListExistingVisits(ctx context.Context, repID string, from, to time.Time) ([]model.Visit, error)
	// WriteVisit inserts the visit unless one already exists for the same
	// rep, candidate and date.
	WriteVisit(ctx context.Context, visit model.Visit) (model.WriteOutcome, error)
}

// WriteStats counts the outcome of a schedule write.
type WriteStats struct {
	Written  int `json:"written"`
	Existing int `json:"existing"`
	Failed   int `json:"failed"`
}

// ScheduleWriter persists a week schedule idempotently.
type ScheduleWriter struct {
	store VisitStore
	now   func() time.Time
}

// NewScheduleWriter creates a ScheduleWriter.
func NewScheduleWriter(store VisitStore) *ScheduleWriter {
	return &ScheduleWriter{store: store, now: time.Now}
}

func visitKey(date time.Time, candidateID string) string {
	return date.Format(model.DateLayout) + "|" + candidateID
}

// Write stores every filled slot not yet persisted. Presence is checked by
// same-day, same-candidate lookup against the store, never by slot index. A
// failed record is logged and counted; it does not stop the batch.
func (w *ScheduleWriter) Write(ctx context.Context, schedule model.WeekSchedule, trace *Trace) (WriteStats, error) {
	var stats WriteStats
	if len(schedule.Days) == 0 {
		return stats, nil
	}

	from := schedule.Days[0].Date
	to := schedule.Days[len(schedule.Days)-1].Date
	existing, err := w.store.ListExistingVisits(ctx, schedule.RepID, from, to)
	if err != nil {
		return stats, eris.Wrap(err, "writer: list existing visits")
	}
	present := make(map[string]bool, len(existing))
	for _, v := range existing {
		present[visitKey(v.Date, v.CandidateID)] = true
	}

	log := zap.L().With(zap.String("rep_id", schedule.RepID))

	for _, day := range schedule.Days {
		for _, slot := range day.Slots {
			if slot.CandidateID == "" {
				continue
			}
			key := visitKey(day.Date, slot.CandidateID)
			if present[key] {
				stats.Existing++
				continue
			}

			visit := model.Visit{
				ID:          uuid.NewString(),
				RepID:       schedule.RepID,
				CandidateID: slot.CandidateID,
				Date:        day.Date,
				Reason:      string(slot.Reason),
				CreatedAt:   w.now().UTC(),
			}
			outcome, werr := w.store.WriteVisit(ctx, visit)
			switch {
			case werr != nil || outcome == model.WriteError:
				stats.Failed++
				log.Warn("writer: visit write failed",
					zap.String("candidate_id", slot.CandidateID),
					zap.String("date", day.Key()),
					zap.Error(werr),
				)
				msg := "write failed"
				if werr != nil {
					msg = werr.Error()
				}
				trace.Warn(StageWrite, "visit write failed", "candidate_id", slot.CandidateID, "date", day.Key(), "error", msg)
			case outcome == model.WriteAlreadyExists:
				stats.Existing++
			default:
				stats.Written++
			}
			present[key] = true
		}
	}

	trace.Info(StageWrite, "schedule written", "written", stats.Written, "existing", stats.Existing, "failed", stats.Failed)
	return stats, nil
}
