package notion

import "time"

// TimeLayout is how Notion renders timestamps and how state is persisted.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// ParseTime parses an ISO-8601 timestamp as returned by the API.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Watermark is the cursor of one incremental stream read. Records arrive in
// no particular time order, so the maximum seen is only published once the
// stream is finished; until then Value reports the floor the read started
// from, so a checkpoint taken mid-stream never skips unread records.
//
// A Watermark is owned by the goroutine reading the stream.
type Watermark struct {
	floor      time.Time
	currentMax time.Time
	finished   bool
}

// NewWatermark starts a watermark at floor.
func NewWatermark(floor time.Time) *Watermark {
	return &Watermark{floor: floor, currentMax: floor}
}

// Advance folds t into the running maximum.
func (w *Watermark) Advance(t time.Time) {
	if t.After(w.currentMax) {
		w.currentMax = t
	}
}

// MarkFinished publishes the running maximum. It cannot be undone.
func (w *Watermark) MarkFinished() {
	w.finished = true
}

// Floor returns the lower bound records are filtered against.
func (w *Watermark) Floor() time.Time {
	return w.floor
}

// Value returns the floor until the stream is finished, the maximum after.
func (w *Watermark) Value() time.Time {
	if w.finished {
		return w.currentMax
	}
	return w.floor
}
