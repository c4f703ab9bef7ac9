package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("query record not found")
	ErrInconsistentRecord = errors.New("query record has inconsistent escalation state")
)

// State is the lifecycle position of a persisted query. Queries answered
// from the corpus are never persisted, so there is no Open state here.
type State int

const (
	StateEscalated State = iota + 1
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateEscalated:
		return "escalated"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Resolution is the staff outcome of an escalated query. Text and Flag are
// always set together.
type Resolution struct {
	Text string `json:"text"`
	Flag string `json:"flag"`
}

type QueryRecord struct {
	ID         int64       `json:"id"`
	Question   string      `json:"question"`
	Email      string      `json:"email"`
	State      State       `json:"state"`
	Resolution *Resolution `json:"resolution,omitempty"`
}

func NewEscalated(id int64, question, email string) *QueryRecord {
	return &QueryRecord{
		ID:       id,
		Question: question,
		Email:    email,
		State:    StateEscalated,
	}
}

func (r *QueryRecord) Escalated() bool {
	return r.State == StateEscalated
}

// Resolve moves the record to StateResolved. Resolving an already resolved
// record replaces its resolution.
func (r *QueryRecord) Resolve(res Resolution) {
	r.State = StateResolved
	r.Resolution = &res
}

// Decode rebuilds a record from the queries table columns, rejecting rows
// whose escalated flag disagrees with the resolution columns.
func Decode(id int64, question, email string, escalated int, resolution, flag *string) (*QueryRecord, error) {
	record := &QueryRecord{ID: id, Question: question, Email: email}

	switch {
	case escalated == 1 && resolution == nil && flag == nil:
		record.State = StateEscalated
	case escalated == 0 && resolution != nil && flag != nil:
		record.State = StateResolved
		record.Resolution = &Resolution{Text: *resolution, Flag: *flag}
	default:
		return nil, fmt.Errorf("%w: id %d", ErrInconsistentRecord, id)
	}

	return record, nil
}
