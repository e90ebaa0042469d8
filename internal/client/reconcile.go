package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSaveFailed is the single caller-facing signal for any failed commit.
	ErrSaveFailed = errors.New("save failed")
	// ErrCommitInFlight rejects a second commit for a date whose first commit
	// has not resolved yet.
	ErrCommitInFlight = errors.New("commit already in flight for this date")
)

const dateLayout = "2006-01-02"

// RecordRef distinguishes a record that exists in storage from a synthesized
// placeholder. The zero value is a placeholder; once a record carries a
// persisted ref it never reverts, so a commit can never create a second row
// for the same date.
type RecordRef struct {
	id        uint
	persisted bool
}

// PersistedRef refers to a stored record by id.
func PersistedRef(id uint) RecordRef {
	return RecordRef{id: id, persisted: true}
}

// ID returns the stored record id; ok is false for a placeholder.
func (r RecordRef) ID() (uint, bool) {
	return r.id, r.persisted
}

// Persisted reports whether the ref points at a stored record.
func (r RecordRef) Persisted() bool {
	return r.persisted
}

// DayRecord is one day's entry in a reconciled window: either a stored record
// or an all-false placeholder for a day with no data yet.
type DayRecord struct {
	Ref            RecordRef
	Date           string
	MorningTaken   bool
	AfternoonTaken bool
	EveningTaken   bool
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func dayFromRecord(rec Record) DayRecord {
	return DayRecord{
		Ref:            PersistedRef(rec.ID),
		Date:           rec.Date,
		MorningTaken:   rec.MorningTaken,
		AfternoonTaken: rec.AfternoonTaken,
		EveningTaken:   rec.EveningTaken,
		Notes:          rec.Notes,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

// BuildWindow produces exactly days entries counting backward from anchor
// inclusive, most recent first. Days with a stored record use it verbatim;
// the rest get placeholders, so callers never special-case missing data.
// Should the input ever contain duplicate rows for one date, the last one
// encountered wins.
func BuildWindow(anchor string, days int, sparse []Record) ([]DayRecord, error) {
	anchorDate, err := time.Parse(dateLayout, anchor)
	if err != nil {
		return nil, fmt.Errorf("invalid anchor date %q: %w", anchor, err)
	}
	if days <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", days)
	}

	byDate := make(map[string]Record, len(sparse))
	for _, rec := range sparse {
		byDate[rec.Date] = rec
	}

	window := make([]DayRecord, 0, days)
	for i := 0; i < days; i++ {
		date := anchorDate.AddDate(0, 0, -i).Format(dateLayout)
		if rec, ok := byDate[date]; ok {
			window = append(window, dayFromRecord(rec))
		} else {
			window = append(window, DayRecord{Date: date})
		}
	}
	return window, nil
}

// ApplyEdit returns a copy of rec with exactly the named field replaced. The
// input is not mutated and its identity (ref, date, timestamps) is preserved.
// Boolean fields take a bool value, notes takes a string.
func ApplyEdit(rec DayRecord, field string, value any) (DayRecord, error) {
	switch field {
	case "morning_taken", "afternoon_taken", "evening_taken":
		flag, ok := value.(bool)
		if !ok {
			return DayRecord{}, fmt.Errorf("field %s requires a bool, got %T", field, value)
		}
		switch field {
		case "morning_taken":
			rec.MorningTaken = flag
		case "afternoon_taken":
			rec.AfternoonTaken = flag
		case "evening_taken":
			rec.EveningTaken = flag
		}
	case "notes":
		notes, ok := value.(string)
		if !ok {
			return DayRecord{}, fmt.Errorf("field notes requires a string, got %T", value)
		}
		rec.Notes = notes
	default:
		return DayRecord{}, fmt.Errorf("unknown field %q", field)
	}
	return rec, nil
}

// RecordAPI is the repository contract the reconciler commits through.
// *Client satisfies it.
type RecordAPI interface {
	CreateRecord(ctx context.Context, payload RecordPayload) (Record, error)
	UpdateRecord(ctx context.Context, id uint, payload RecordPayload) (Record, error)
}

// Window is a reconciled sequence of day records that can merge edits back
// into storage. Commits for a given date are serialized: while one is in
// flight, further commits for that date are rejected rather than raced.
type Window struct {
	api      RecordAPI
	days     []DayRecord
	inFlight map[string]bool
}

// NewWindow reconciles sparse records into a window anchored at anchor.
func NewWindow(api RecordAPI, anchor string, size int, sparse []Record) (*Window, error) {
	days, err := BuildWindow(anchor, size, sparse)
	if err != nil {
		return nil, err
	}
	return &Window{
		api:      api,
		days:     days,
		inFlight: make(map[string]bool),
	}, nil
}

// Days returns the window entries, most recent first.
func (w *Window) Days() []DayRecord {
	return w.days
}

// Day returns the entry for the given date.
func (w *Window) Day(date string) (DayRecord, bool) {
	for _, d := range w.days {
		if d.Date == date {
			return d, true
		}
	}
	return DayRecord{}, false
}

// Commit persists a day record in exactly one round trip: a placeholder
// becomes a create, a persisted ref becomes an update addressed by its id.
// On success the server's echo replaces the window entry matched by date. On
// failure the window is left untouched so in-progress edits survive a retry,
// and the caller gets the single generic save error with the cause attached.
func (w *Window) Commit(ctx context.Context, rec DayRecord) error {
	if w.inFlight[rec.Date] {
		return ErrCommitInFlight
	}
	w.inFlight[rec.Date] = true
	defer delete(w.inFlight, rec.Date)

	payload := RecordPayload{
		Date:           rec.Date,
		MorningTaken:   rec.MorningTaken,
		AfternoonTaken: rec.AfternoonTaken,
		EveningTaken:   rec.EveningTaken,
		Notes:          rec.Notes,
	}

	var (
		saved Record
		err   error
	)
	if id, ok := rec.Ref.ID(); ok {
		saved, err = w.api.UpdateRecord(ctx, id, payload)
	} else {
		saved, err = w.api.CreateRecord(ctx, payload)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	for i, d := range w.days {
		if d.Date == saved.Date {
			w.days[i] = dayFromRecord(saved)
			break
		}
	}
	return nil
}
