package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crimson-sun/fortiwatch/internal/connector"
	"github.com/crimson-sun/fortiwatch/internal/connector/httpclient"
	"github.com/crimson-sun/fortiwatch/internal/engine"
	"github.com/crimson-sun/fortiwatch/internal/model"
	"github.com/crimson-sun/fortiwatch/internal/retry"
)

// --- mocks ---

// mockConnector returns queued errors first, then batches in order,
// repeating the last batch.
type mockConnector struct {
	mu      sync.Mutex
	errs    []error
	batches [][]model.RawRecord
	calls   int
	during  func() // invoked inside Fetch
	release chan struct{}
}

func (m *mockConnector) Fetch(ctx context.Context, _ connector.QueryParams) ([]model.RawRecord, error) {
	m.mu.Lock()
	m.calls++
	during, release := m.during, m.release
	var err error
	if len(m.errs) > 0 {
		err, m.errs = m.errs[0], m.errs[1:]
	}
	var batch []model.RawRecord
	if err == nil && len(m.batches) > 0 {
		batch = m.batches[0]
		if len(m.batches) > 1 {
			m.batches = m.batches[1:]
		}
	}
	m.mu.Unlock()

	if during != nil {
		during()
	}
	if release != nil {
		<-release
	}
	return batch, err
}

func (m *mockConnector) Test(context.Context) connector.Verdict {
	return connector.Verdict{Success: true, Message: "ok"}
}

func (m *mockConnector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockOutput struct {
	mu      sync.Mutex
	records []model.Record
	closed  bool
}

func (m *mockOutput) Write(_ context.Context, r model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *mockOutput) Close() error {
	m.closed = true
	return nil
}

func (m *mockOutput) Records() []model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Record(nil), m.records...)
}

func raws(ids ...int) []model.RawRecord {
	out := make([]model.RawRecord, len(ids))
	for i, id := range ids {
		out[i] = model.RawRecord{
			"id":        id,
			"timestamp": 1700000000 + id,
			"level":     "warning",
			"msg":       fmt.Sprintf("event %d", id),
		}
	}
	return out
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxRetries: 3, BaseDelay: 5 * time.Millisecond}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- tests ---

func TestCycle_Success(t *testing.T) {
	conn := &mockConnector{batches: [][]model.RawRecord{raws(2, 1)}}
	var updates int
	var got []model.Record
	p := New(conn, engine.New(nil), WithOnUpdate(func(recs []model.Record, err error) {
		updates++
		got = recs
		if err != nil {
			t.Errorf("unexpected update error: %v", err)
		}
	}))

	records, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].ID != "2" || records[1].ID != "1" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if updates != 1 || len(got) != 2 {
		t.Fatalf("expected one update with 2 records, got %d/%d", updates, len(got))
	}
	if p.State() != model.StateIdle {
		t.Fatalf("expected idle, got %s", p.State())
	}
	if p.LastError() != nil {
		t.Fatalf("expected no last error, got %v", p.LastError())
	}
}

func TestCycle_StateDuringFetch(t *testing.T) {
	conn := &mockConnector{}
	p := New(conn, engine.New(nil))
	var during model.State
	conn.during = func() { during = p.State() }

	p.Cycle(context.Background())
	if during != model.StateFetching {
		t.Fatalf("expected fetching during fetch, got %s", during)
	}
}

func TestCycle_RetriesThenSucceeds(t *testing.T) {
	boom := &httpclient.StatusError{StatusCode: 503}
	conn := &mockConnector{errs: []error{boom, boom}, batches: [][]model.RawRecord{raws(1)}}
	p := New(conn, engine.New(nil), WithRetry(retry.Policy{MaxRetries: 3, BaseDelay: 20 * time.Millisecond}))

	start := time.Now()
	records, err := p.Cycle(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if conn.Calls() != 3 {
		t.Fatalf("expected 3 fetch calls, got %d", conn.Calls())
	}
	// 1x then 2x the base delay.
	if elapsed < 60*time.Millisecond {
		t.Fatalf("expected linear backoff of at least 60ms, took %s", elapsed)
	}
}

func TestCycle_FailureKeepsWindow(t *testing.T) {
	conn := &mockConnector{batches: [][]model.RawRecord{raws(1, 2)}}
	var lastErr error
	var lastRecs []model.Record
	p := New(conn, engine.New(nil), WithRetry(fastRetry()), WithOnUpdate(func(recs []model.Record, err error) {
		lastRecs, lastErr = recs, err
	}))

	if _, err := p.Cycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	boom := &httpclient.StatusError{StatusCode: 503}
	conn.mu.Lock()
	conn.errs = []error{boom, boom, boom, boom}
	conn.mu.Unlock()

	_, err := p.Cycle(context.Background())
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FetchError, got %T %v", err, err)
	}
	if err.Error() != "Failed to fetch logs: Server error: 503" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if ferr.Kind() != httpclient.KindServerError {
		t.Fatalf("unexpected kind: %s", ferr.Kind())
	}
	if conn.Calls() != 5 {
		t.Fatalf("expected 1 + 4 fetch calls, got %d", conn.Calls())
	}
	if p.Window().Len() != 2 {
		t.Fatalf("window must be untouched on failure, got %d records", p.Window().Len())
	}
	if lastErr != err || len(lastRecs) != 2 {
		t.Fatalf("expected failure update with unchanged window, got %v / %d", lastErr, len(lastRecs))
	}
	if p.LastError() != err {
		t.Fatalf("expected LastError to hold the failure")
	}
	if p.State() != model.StateIdle {
		t.Fatalf("expected idle after failure, got %s", p.State())
	}

	// A later success clears the error.
	if _, err := p.Cycle(context.Background()); err != nil {
		t.Fatalf("recovery cycle: %v", err)
	}
	if p.LastError() != nil {
		t.Fatal("expected LastError cleared after success")
	}
}

func TestCycle_MergeKeepsNewestAndCaps(t *testing.T) {
	first := make([]int, 60)
	second := make([]int, 60)
	for i := range first {
		first[i] = 100 + i
		second[i] = 200 + i
	}
	conn := &mockConnector{batches: [][]model.RawRecord{raws(first...), raws(second...)}}
	p := New(conn, engine.New(nil))

	p.Cycle(context.Background())
	records, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 100 {
		t.Fatalf("expected cap of 100, got %d", len(records))
	}
	if records[0].ID != "200" || records[60].ID != "100" || records[99].ID != "139" {
		t.Fatalf("unexpected order: first=%s mid=%s last=%s", records[0].ID, records[60].ID, records[99].ID)
	}
}

func TestCycle_IdempotentMerge(t *testing.T) {
	conn := &mockConnector{batches: [][]model.RawRecord{raws(3, 2, 1)}}
	p := New(conn, engine.New(nil))

	a, _ := p.Refresh(context.Background())
	b, _ := p.Refresh(context.Background())
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("expected 3 records both times, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("record %d changed: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestCycle_OutputReceivesOnlyNewRecords(t *testing.T) {
	conn := &mockConnector{batches: [][]model.RawRecord{raws(2, 1), raws(3, 2, 1)}}
	out := &mockOutput{}
	p := New(conn, engine.New(nil), WithOutput(out))

	p.Cycle(context.Background())
	p.Cycle(context.Background())

	got := out.Records()
	if len(got) != 3 {
		t.Fatalf("expected 3 records written, got %d", len(got))
	}
	if got[2].ID != "3" {
		t.Fatalf("expected record 3 written last, got %+v", got)
	}

	p.Close()
	if !out.closed {
		t.Fatal("Close should close the output")
	}
}

func TestCycle_StaleAfterStop(t *testing.T) {
	release := make(chan struct{})
	conn := &mockConnector{batches: [][]model.RawRecord{raws(1)}, release: release}
	updates := 0
	p := New(conn, engine.New(nil), WithOnUpdate(func([]model.Record, error) { updates++ }))

	done := make(chan error, 1)
	go func() {
		_, err := p.Cycle(context.Background())
		done <- err
	}()
	waitFor(t, func() bool { return conn.Calls() == 1 })

	p.Stop()
	close(release)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if p.Window().Len() != 0 {
		t.Fatal("stale result must not reach the window")
	}
	if updates != 0 {
		t.Fatal("stale result must not be reported")
	}
}

func TestCycle_StaleAfterReset(t *testing.T) {
	release := make(chan struct{})
	conn := &mockConnector{batches: [][]model.RawRecord{raws(1)}, release: release}
	p := New(conn, engine.New(nil))

	done := make(chan error, 1)
	go func() {
		_, err := p.Cycle(context.Background())
		done <- err
	}()
	waitFor(t, func() bool { return conn.Calls() == 1 })

	p.Window().Reset()
	close(release)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if p.Window().Closed() {
		t.Fatal("reset window should be open")
	}
}

func TestCycle_StaleFailureReturnsToIdle(t *testing.T) {
	release := make(chan struct{})
	conn := &mockConnector{errs: []error{errors.New("boom")}, release: release}
	p := New(conn, engine.New(nil), WithRetry(fastRetry()))

	done := make(chan error, 1)
	go func() {
		_, err := p.Cycle(context.Background())
		done <- err
	}()
	waitFor(t, func() bool { return conn.Calls() == 1 })

	p.Window().Reset()
	close(release)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if s := p.State(); s != model.StateIdle {
		t.Fatalf("expected idle after stale failure, got %s", s)
	}
	if p.LastError() != nil {
		t.Fatalf("stale failure must not be recorded, got %v", p.LastError())
	}
	if conn.Calls() != 1 {
		t.Fatalf("no retry may run after reset, got %d calls", conn.Calls())
	}
}

func TestCycle_StopDuringRetryWaitSkipsNextAttempt(t *testing.T) {
	boom := errors.New("boom")
	conn := &mockConnector{errs: []error{boom, boom, boom, boom}}
	p := New(conn, engine.New(nil), WithRetry(retry.Policy{MaxRetries: 3, BaseDelay: 50 * time.Millisecond}))

	done := make(chan error, 1)
	go func() {
		_, err := p.Cycle(context.Background())
		done <- err
	}()
	waitFor(t, func() bool { return conn.Calls() == 1 })
	p.Stop()

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if conn.Calls() != 1 {
		t.Fatalf("fetch ran after Stop: %d calls", conn.Calls())
	}
	if s := p.State(); s != model.StateIdle {
		t.Fatalf("expected idle, got %s", s)
	}
}

func TestCycle_ClosedWindowSkipsFetch(t *testing.T) {
	conn := &mockConnector{batches: [][]model.RawRecord{raws(1)}}
	p := New(conn, engine.New(nil))
	p.Window().Close()

	if _, err := p.Cycle(context.Background()); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if conn.Calls() != 0 {
		t.Fatalf("expected no fetch on a closed window, got %d", conn.Calls())
	}
}

func TestCycle_CanceledContextSkipsFetch(t *testing.T) {
	conn := &mockConnector{batches: [][]model.RawRecord{raws(1)}}
	p := New(conn, engine.New(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Cycle(ctx); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if conn.Calls() != 0 {
		t.Fatalf("expected no fetch with a canceled context, got %d", conn.Calls())
	}
}

func TestStart_CanceledBeforeImmediateCycle(t *testing.T) {
	conn := &mockConnector{batches: [][]model.RawRecord{raws(1)}}
	p := New(conn, engine.New(nil), WithSchedule(Every(time.Hour)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p.Start(ctx)
	p.Stop()

	if conn.Calls() != 0 {
		t.Fatalf("expected zero fetches after cancellation, got %d", conn.Calls())
	}
	if p.Window().Len() != 0 {
		t.Fatal("window must stay empty")
	}
}

func TestStart_ImmediateCycleThenStop(t *testing.T) {
	conn := &mockConnector{batches: [][]model.RawRecord{raws(1)}}
	p := New(conn, engine.New(nil), WithSchedule(Every(time.Hour)))

	p.Start(context.Background())
	p.Start(context.Background()) // no-op
	if !p.Running() {
		t.Fatal("expected running")
	}
	waitFor(t, func() bool { return p.Window().Len() == 1 })

	p.Stop()
	p.Stop() // idempotent
	if p.Running() {
		t.Fatal("expected stopped")
	}
	if conn.Calls() != 1 {
		t.Fatalf("expected exactly the immediate cycle, got %d calls", conn.Calls())
	}
}

func TestStart_PollsOnSchedule(t *testing.T) {
	conn := &mockConnector{}
	p := New(conn, engine.New(nil), WithSchedule(Every(10*time.Millisecond)))

	p.Start(context.Background())
	waitFor(t, func() bool { return conn.Calls() >= 4 })
	p.Stop()

	n := conn.Calls()
	time.Sleep(50 * time.Millisecond)
	if conn.Calls() != n {
		t.Fatalf("fetch ran after Stop: %d -> %d", n, conn.Calls())
	}
}

func TestStart_RestartAfterStop(t *testing.T) {
	conn := &mockConnector{batches: [][]model.RawRecord{raws(1), raws(2)}}
	p := New(conn, engine.New(nil), WithSchedule(Every(time.Hour)))

	p.Start(context.Background())
	waitFor(t, func() bool { return p.Window().Len() == 1 })
	p.Stop()

	p.Start(context.Background())
	waitFor(t, func() bool { return p.Window().Len() == 2 })
	p.Stop()
}

func TestStop_NeverStarted(t *testing.T) {
	p := New(&mockConnector{}, engine.New(nil))
	p.Stop()
	if p.Running() {
		t.Fatal("expected not running")
	}
}

func TestTestConnection(t *testing.T) {
	p := New(&mockConnector{}, engine.New(nil))
	if v := p.TestConnection(context.Background()); !v.Success {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if p.Window().Len() != 0 {
		t.Fatal("test must not touch the window")
	}
}
