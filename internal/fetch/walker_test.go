package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sport-activities/internal/activity"
	"sport-activities/internal/session"
)

// fakeUpstream serves a fixed listing by offset and limit.
type fakeUpstream struct {
	mu         sync.Mutex
	records    []map[string]any
	details    map[string]map[string]any
	failPage   int // page index to fail at, -1 for never
	calls      []session.PageRequest
	acquired   int
	released   int
	acquireErr error
}

func newUpstream(records []map[string]any) *fakeUpstream {
	return &fakeUpstream{records: records, failPage: -1}
}

func (u *fakeUpstream) Acquire(context.Context) (session.Handle, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.acquireErr != nil {
		return nil, u.acquireErr
	}
	u.acquired++
	return &fakeHandle{u: u}, nil
}

func (u *fakeUpstream) Release(session.Handle) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.released++
}

type fakeHandle struct{ u *fakeUpstream }

func (h *fakeHandle) ID() string { return "fake" }

func (h *fakeHandle) ListActivities(_ context.Context, req session.PageRequest) ([]map[string]any, error) {
	u := h.u
	u.mu.Lock()
	defer u.mu.Unlock()
	page := len(u.calls)
	u.calls = append(u.calls, req)
	if page == u.failPage {
		return nil, errors.New("connection reset")
	}
	if req.Offset >= len(u.records) {
		return []map[string]any{}, nil
	}
	end := min(req.Offset+req.Limit, len(u.records))
	return u.records[req.Offset:end], nil
}

func (h *fakeHandle) ActivityDetails(_ context.Context, id string) (map[string]any, error) {
	if id == "broken" {
		return nil, errors.New("401 unauthorized")
	}
	return h.u.details[id], nil
}

func record(id int, start time.Time, typeKey string) map[string]any {
	return map[string]any{
		"activityId":     float64(id),
		"activityName":   fmt.Sprintf("Activity %d", id),
		"activityType":   map[string]any{"typeKey": typeKey},
		"beginTimestamp": float64(start.UnixMilli()),
		"distance":       1000.123 * float64(id),
	}
}

var june = Query{
	Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
}

// dataset returns 60 activities newest-first, 18 hours apart, starting at
// 2025-07-10 and ending in late May.
func dataset() []map[string]any {
	types := []string{"running", "road_biking", "lap_swimming", "yoga"}
	first := time.Date(2025, 7, 10, 6, 0, 0, 0, time.UTC)
	var out []map[string]any
	for i := 0; i < 60; i++ {
		out = append(out, record(i+1, first.Add(-time.Duration(i)*18*time.Hour), types[i%len(types)]))
	}
	return out
}

func ids(res *Result) []activity.ID {
	var out []activity.ID
	for _, s := range res.Activities {
		out = append(out, s.ActivityID)
	}
	return out
}

func expectedInRange(records []map[string]any, q Query) []activity.ID {
	from, to := q.window()
	var out []activity.ID
	for _, raw := range records {
		s := activity.Classify(raw)
		if !s.BeginTimestamp.Before(from) && s.BeginTimestamp.Before(to) {
			out = append(out, s.ActivityID)
		}
	}
	return out
}

func TestFetchRangeCompleteAcrossPageSizes(t *testing.T) {
	records := dataset()
	want := expectedInRange(records, june)
	require.NotEmpty(t, want)

	for _, size := range []int{5, 7, 50} {
		t.Run(fmt.Sprintf("page_size_%d", size), func(t *testing.T) {
			up := newUpstream(records)
			q := june
			q.PageSize = size

			res, err := NewWalker(up, nil).FetchRange(context.Background(), q)
			require.NoError(t, err)

			assert.Equal(t, want, ids(res))
			assert.Zero(t, res.Duplicates)
			for i, call := range up.calls {
				assert.Equal(t, i*size, call.Offset)
				assert.Equal(t, size, call.Limit)
			}
			assert.Equal(t, 1, up.acquired)
			assert.Equal(t, 1, up.released)
		})
	}
}

func TestFetchRangeIdempotent(t *testing.T) {
	up := newUpstream(dataset())
	w := NewWalker(up, nil)

	first, err := w.FetchRange(context.Background(), june)
	require.NoError(t, err)
	second, err := w.FetchRange(context.Background(), june)
	require.NoError(t, err)

	assert.Equal(t, ids(first), ids(second))
}

func TestFetchRangeDayBoundaries(t *testing.T) {
	records := []map[string]any{
		record(1, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), "running"),
		record(2, time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC), "running"),
		record(3, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), "running"),
		record(4, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "running"),
		record(5, time.Date(2025, 5, 31, 23, 59, 59, 0, time.UTC), "running"),
	}

	res, err := NewWalker(newUpstream(records), nil).FetchRange(context.Background(), june)
	require.NoError(t, err)

	assert.Equal(t, []activity.ID{"2", "3", "4"}, ids(res))
	assert.Equal(t, 2, res.Skipped)
}

func TestFetchRangeZonedQueryDates(t *testing.T) {
	records := []map[string]any{
		record(1, time.Date(2025, 6, 30, 20, 0, 0, 0, time.UTC), "running"),
		record(2, time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC), "running"),
		record(3, time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC), "running"),
	}
	cest := time.FixedZone("CEST", 2*60*60)
	q := Query{
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, cest),
		End:   time.Date(2025, 6, 30, 0, 0, 0, 0, cest),
	}

	res, err := NewWalker(newUpstream(records), nil).FetchRange(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []activity.ID{"1", "2"}, ids(res))
	assert.Equal(t, 1, res.Skipped)
}

func TestFetchRangeSingleDay(t *testing.T) {
	records := []map[string]any{
		record(1, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), "running"),
		record(2, time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC), "running"),
		record(3, time.Date(2025, 5, 31, 18, 30, 0, 0, time.UTC), "running"),
	}
	q, err := NewQuery("2025-06-01", "2025-06-01")
	require.NoError(t, err)

	res, err := NewWalker(newUpstream(records), nil).FetchRange(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []activity.ID{"2"}, ids(res))
}

func TestFetchRangeTypeFilter(t *testing.T) {
	q := june
	q.Types = []string{"Running", "lap_swimming"}

	res, err := NewWalker(newUpstream(dataset()), nil).FetchRange(context.Background(), q)
	require.NoError(t, err)

	require.NotEmpty(t, res.Activities)
	for _, s := range res.Activities {
		assert.Contains(t, []string{"running", "lap_swimming"}, s.TypeKey)
	}
}

func TestFetchRangeMaxPages(t *testing.T) {
	up := newUpstream(dataset())
	q := june
	q.PageSize = 5
	q.MaxPages = 2

	res, err := NewWalker(up, nil).FetchRange(context.Background(), q)
	require.NoError(t, err)

	assert.Len(t, up.calls, 2)
	assert.Equal(t, 2, res.Pages)
}

func TestFetchRangeStopsOnEmptyPageOnly(t *testing.T) {
	// 12 records with page size 5: pages of 5, 5, 2 and then an empty page.
	records := dataset()[20:32]
	up := newUpstream(records)
	q := june
	q.PageSize = 5

	_, err := NewWalker(up, nil).FetchRange(context.Background(), q)
	require.NoError(t, err)

	assert.Len(t, up.calls, 4)
}

func TestFetchRangeDeduplicates(t *testing.T) {
	day := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	// A record shifted between pages shows up twice.
	records := []map[string]any{
		record(1, day, "running"),
		record(2, day.Add(-time.Hour), "running"),
		record(2, day.Add(-time.Hour), "running"),
		record(3, day.Add(-2*time.Hour), "running"),
	}
	q := june
	q.PageSize = 2

	res, err := NewWalker(newUpstream(records), nil).FetchRange(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []activity.ID{"1", "2", "3"}, ids(res))
	assert.Equal(t, 1, res.Duplicates)
}

func TestFetchRangeFailureCarriesPage(t *testing.T) {
	up := newUpstream(dataset())
	up.failPage = 2
	q := june
	q.PageSize = 5

	res, err := NewWalker(up, nil).FetchRange(context.Background(), q)

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrFetchFailed)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2, fe.Page)
	assert.Equal(t, OpList, fe.Op)
	assert.Equal(t, 1, up.released)
}

func TestFetchRangeAcquireFailure(t *testing.T) {
	up := newUpstream(dataset())
	up.acquireErr = errors.New("login rejected")

	_, err := NewWalker(up, nil).FetchRange(context.Background(), june)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Empty(t, up.calls)
}

func TestFetchRangeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWalker(newUpstream(dataset()), nil).FetchRange(ctx, june)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchRangeSkipsMalformed(t *testing.T) {
	day := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	noID := record(0, day, "running")
	delete(noID, "activityId")
	noTime := record(9, day, "running")
	delete(noTime, "beginTimestamp")
	records := []map[string]any{record(1, day, "running"), noID, noTime, record(2, day, "cycling")}

	res, err := NewWalker(newUpstream(records), nil).FetchRange(context.Background(), june)
	require.NoError(t, err)

	assert.Equal(t, []activity.ID{"1", "2"}, ids(res))
	require.Len(t, res.Malformed, 2)
	assert.Equal(t, "missing activity id", res.Malformed[0].Reason)
	assert.Equal(t, activity.ID("9"), res.Malformed[1].ActivityID)
	assert.Equal(t, 2, res.Skipped)
}

func TestFetchRangeNewestFirstShortCircuit(t *testing.T) {
	up := newUpstream(dataset())
	q := june
	q.PageSize = 5
	q.NewestFirst = true

	res, err := NewWalker(up, nil).FetchRange(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, expectedInRange(dataset(), june), ids(res))
	// 60 records in pages of 5 would take 13 requests without the early stop.
	assert.Less(t, len(up.calls), 13)
}

func TestFetchRangeShortCircuitDisabledByDisorder(t *testing.T) {
	old := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	inRange := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	// The first page is entirely before June but out of order, so the
	// in-range record on the next page must still be found.
	records := []map[string]any{
		record(1, old, "running"),
		record(2, old.Add(time.Hour), "running"),
		record(3, inRange, "running"),
	}
	q := june
	q.PageSize = 2
	q.NewestFirst = true

	res, err := NewWalker(newUpstream(records), nil).FetchRange(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []activity.ID{"3"}, ids(res))
}

func TestFetchRangeNoShortCircuitByDefault(t *testing.T) {
	up := newUpstream(dataset())
	q := june
	q.PageSize = 5

	_, err := NewWalker(up, nil).FetchRange(context.Background(), q)
	require.NoError(t, err)

	assert.Len(t, up.calls, 13)
}

func TestFetchRangeInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  error
	}{
		{"reversed", Query{Start: june.End, End: june.Start}, ErrInvalidRange},
		{"missing", Query{}, ErrInvalidRange},
		{"page size too big", Query{Start: june.Start, End: june.End, PageSize: 201}, ErrInvalidPageSize},
		{"negative page size", Query{Start: june.Start, End: june.End, PageSize: -1}, ErrInvalidPageSize},
		{"negative max pages", Query{Start: june.Start, End: june.End, MaxPages: -1}, ErrInvalidPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(dataset())

			_, err := NewWalker(up, nil).FetchRange(context.Background(), tt.query)

			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, up.acquired)
			assert.Empty(t, up.calls)
		})
	}
}

func TestFetchRangeRemoteDateFilter(t *testing.T) {
	up := newUpstream(dataset())

	filtered, err := NewWalker(up, nil, WithRemoteDateFilter(true)).FetchRange(context.Background(), june)
	require.NoError(t, err)

	require.NotEmpty(t, up.calls)
	assert.Equal(t, june.Start, up.calls[0].Start)
	assert.Equal(t, june.End, up.calls[0].End)

	// The fake ignores the remote range, so local filtering must still apply
	local, err := NewWalker(newUpstream(dataset()), nil).FetchRange(context.Background(), june)
	require.NoError(t, err)
	assert.Equal(t, ids(local), ids(filtered))
	assert.Positive(t, filtered.Skipped)
}
