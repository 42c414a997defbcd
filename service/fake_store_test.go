package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-crud-service/query"
)

type widget struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"createdAt"`
}

// fakeStore keeps widgets in memory and records every call with the options
// it received.
type fakeStore struct {
	mu      sync.Mutex
	rows    []widget
	nextID  int
	calls   []string
	lastOpt FindOptions
	lastCol []string

	// vanish makes UpdateOne behave as if the row was deleted concurrently.
	vanish bool
	err    error
}

var _ Store[widget] = (*fakeStore)(nil)

func newFakeStore(rows ...widget) *fakeStore {
	return &fakeStore{rows: rows, nextID: len(rows) + 1}
}

func (s *fakeStore) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *fakeStore) count(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (s *fakeStore) matching(filter query.Filter) []int {
	var idx []int
	for i, row := range s.rows {
		if matches(filter, row) {
			idx = append(idx, i)
		}
	}
	return idx
}

func (s *fakeStore) FindOne(ctx context.Context, filter query.Filter, opts FindOptions) (*widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindOne")
	s.lastOpt = opts
	if s.err != nil {
		return nil, s.err
	}
	idx := s.matching(filter)
	if len(idx) == 0 {
		return nil, nil
	}
	w := s.rows[idx[0]]
	return &w, nil
}

func (s *fakeStore) Find(ctx context.Context, filter query.Filter, opts FindOptions) ([]widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Find")
	s.lastOpt = opts
	if s.err != nil {
		return nil, s.err
	}
	var out []widget
	for _, i := range s.matching(filter) {
		out = append(out, s.rows[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []widget{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *fakeStore) Count(ctx context.Context, filter query.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Count")
	return len(s.matching(filter)), s.err
}

func (s *fakeStore) Exists(ctx context.Context, filter query.Filter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Exists")
	return len(s.matching(filter)) > 0, s.err
}

func (s *fakeStore) Insert(ctx context.Context, record *widget) (*widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Insert")
	if s.err != nil {
		return nil, s.err
	}
	w := *record
	if w.ID == "" {
		w.ID = "w" + strconv.Itoa(s.nextID)
		s.nextID++
	}
	s.rows = append(s.rows, w)
	return &w, nil
}

func (s *fakeStore) apply(dst *widget, draft *widget, columns []string) {
	if len(columns) == 0 {
		if draft.Name != "" {
			dst.Name = draft.Name
		}
		if draft.Owner != "" {
			dst.Owner = draft.Owner
		}
		if draft.Age != 0 {
			dst.Age = draft.Age
		}
		return
	}
	for _, c := range columns {
		switch c {
		case "name":
			dst.Name = draft.Name
		case "owner":
			dst.Owner = draft.Owner
		case "age":
			dst.Age = draft.Age
		}
	}
}

func (s *fakeStore) UpdateOne(ctx context.Context, filter query.Filter, draft *widget, columns []string) (*widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UpdateOne")
	s.lastCol = columns
	if s.err != nil {
		return nil, s.err
	}
	idx := s.matching(filter)
	if len(idx) == 0 || s.vanish {
		return nil, nil
	}
	s.apply(&s.rows[idx[0]], draft, columns)
	w := s.rows[idx[0]]
	return &w, nil
}

func (s *fakeStore) UpdateMany(ctx context.Context, filter query.Filter, draft *widget, columns []string) (BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UpdateMany")
	s.lastCol = columns
	idx := s.matching(filter)
	for _, i := range idx {
		s.apply(&s.rows[i], draft, columns)
	}
	return BulkResult{Affected: int64(len(idx))}, s.err
}

func (s *fakeStore) DeleteOne(ctx context.Context, filter query.Filter) (*widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DeleteOne")
	idx := s.matching(filter)
	if len(idx) == 0 {
		return nil, s.err
	}
	w := s.rows[idx[0]]
	s.rows = append(s.rows[:idx[0]], s.rows[idx[0]+1:]...)
	return &w, s.err
}

func (s *fakeStore) DeleteMany(ctx context.Context, filter query.Filter) (BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DeleteMany")
	idx := s.matching(filter)
	keep := s.rows[:0]
	for i, row := range s.rows {
		if !containsInt(idx, i) {
			keep = append(keep, row)
		}
	}
	s.rows = keep
	return BulkResult{Affected: int64(len(idx))}, s.err
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// matches evaluates the subset of operators the service tests use.
func matches(filter query.Filter, w widget) bool {
	raw, _ := json.Marshal(w)
	var doc map[string]any
	_ = json.Unmarshal(raw, &doc)

	for _, pred := range filter.Fields {
		got := fmt.Sprint(doc[pred.Field])
		for _, c := range pred.Comparisons {
			switch c.Op {
			case query.OpEq:
				if got != fmt.Sprint(c.Value) {
					return false
				}
			case query.OpNe:
				if got == fmt.Sprint(c.Value) {
					return false
				}
			case query.OpIn:
				values, _ := query.SliceOf(c.Value)
				found := false
				for _, v := range values {
					if fmt.Sprint(v) == got {
						found = true
					}
				}
				if !found {
					return false
				}
			case query.OpGte:
				n, _ := doc[pred.Field].(float64)
				if n < toFloat(c.Value) {
					return false
				}
			}
		}
	}
	return true
}

func toFloat(v any) float64 {
	f, _ := strconv.ParseFloat(fmt.Sprint(v), 64)
	return f
}
