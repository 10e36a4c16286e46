package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"
	"time"

	"seat_monitor_bot/internal/domain/monitoring"
	"seat_monitor_bot/internal/domain/upstream"
	"seat_monitor_bot/internal/domain/watch"
	idb "seat_monitor_bot/internal/infra/database"
	"seat_monitor_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// --- fakes ---

type fakeWatchRepo struct {
	watches []*watch.Request
}

func (r *fakeWatchRepo) Create(_ context.Context, req *watch.Request) error {
	req.ID = int64(len(r.watches) + 1)
	req.IsActive = true
	req.CreatedAt = time.Now()
	r.watches = append(r.watches, req)
	return nil
}

func (r *fakeWatchRepo) GetByID(_ context.Context, id int64) (*watch.Request, error) {
	for _, w := range r.watches {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, idb.ErrWatchNotFound
}

func (r *fakeWatchRepo) ListAll(_ context.Context) ([]*watch.Request, error) {
	return r.watches, nil
}

func (r *fakeWatchRepo) ListActive(_ context.Context) ([]*watch.Request, error) {
	active := make([]*watch.Request, 0)
	for _, w := range r.watches {
		if w.IsActive {
			active = append(active, w)
		}
	}
	return active, nil
}

func (r *fakeWatchRepo) Disable(_ context.Context, id int64) error {
	for _, w := range r.watches {
		if w.ID == id {
			w.IsActive = false
			return nil
		}
	}
	return idb.ErrWatchNotFound
}

type checkLogRow struct {
	watchID sql.NullInt64
	status  monitoring.CheckStatus
	message string
	osValue sql.NullInt64
}

type alertLogRow struct {
	watchID   sql.NullInt64
	alertType monitoring.AlertType
	payload   map[string]any
}

// fakeMonRepo mirrors the SQL semantics the monitor depends on: the seat
// upsert preserves last_opened_alert_at, and marking the session valid
// clears the error and the relogin gate.
type fakeMonRepo struct {
	seatStates map[int64]monitoring.SeatState
	session    monitoring.SessionState
	checkLogs  []checkLogRow
	alertLogs  []alertLogRow
}

func newFakeMonRepo() *fakeMonRepo {
	return &fakeMonRepo{
		seatStates: make(map[int64]monitoring.SeatState),
		session:    monitoring.SessionState{State: monitoring.SessionStateUnknown},
	}
}

func (r *fakeMonRepo) GetSeatState(_ context.Context, watchID int64) (*monitoring.SeatState, error) {
	state, ok := r.seatStates[watchID]
	if !ok {
		return nil, idb.ErrSeatStateNotFound
	}
	copied := state
	return &copied, nil
}

func (r *fakeMonRepo) UpsertSeatState(_ context.Context, watchID int64, lastOS sql.NullInt64, status monitoring.CheckStatus, lastError sql.NullString) error {
	prev := r.seatStates[watchID]
	r.seatStates[watchID] = monitoring.SeatState{
		WatchRequestID:    watchID,
		LastOS:            lastOS,
		LastStatus:        sql.NullString{String: string(status), Valid: true},
		LastCheckedAt:     sql.NullTime{Time: time.Now(), Valid: true},
		LastOpenedAlertAt: prev.LastOpenedAlertAt,
		LastError:         lastError,
	}
	return nil
}

func (r *fakeMonRepo) SetOpenedAlertAt(_ context.Context, watchID int64, sentAt time.Time) error {
	state := r.seatStates[watchID]
	state.LastOpenedAlertAt = sql.NullTime{Time: sentAt, Valid: true}
	r.seatStates[watchID] = state
	return nil
}

func (r *fakeMonRepo) AppendCheckLog(_ context.Context, watchID sql.NullInt64, status monitoring.CheckStatus, message string, osValue sql.NullInt64) error {
	r.checkLogs = append(r.checkLogs, checkLogRow{watchID, status, message, osValue})
	return nil
}

func (r *fakeMonRepo) AppendAlertLog(_ context.Context, watchID sql.NullInt64, alertType monitoring.AlertType, payload map[string]any) error {
	r.alertLogs = append(r.alertLogs, alertLogRow{watchID, alertType, payload})
	return nil
}

func (r *fakeMonRepo) PruneCheckLogs(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeMonRepo) GetSessionState(_ context.Context) (*monitoring.SessionState, error) {
	copied := r.session
	return &copied, nil
}

func (r *fakeMonRepo) SetSessionValid(_ context.Context) error {
	now := sql.NullTime{Time: time.Now(), Valid: true}
	r.session.State = monitoring.SessionStateValid
	r.session.LastCheckedAt = now
	r.session.LastValidAt = now
	r.session.LastError = sql.NullString{}
	r.session.ReloginNotifiedAt = sql.NullTime{}
	return nil
}

func (r *fakeMonRepo) SetSessionExpired(_ context.Context, errMsg string) error {
	r.session.State = monitoring.SessionStateExpired
	r.session.LastCheckedAt = sql.NullTime{Time: time.Now(), Valid: true}
	r.session.LastError = sql.NullString{String: errMsg, Valid: true}
	return nil
}

func (r *fakeMonRepo) SetSessionFetchError(_ context.Context, errMsg string) error {
	r.session.State = monitoring.SessionStateFetchError
	r.session.LastCheckedAt = sql.NullTime{Time: time.Now(), Valid: true}
	r.session.LastError = sql.NullString{String: errMsg, Valid: true}
	return nil
}

func (r *fakeMonRepo) SetReloginNotified(_ context.Context, notifiedAt time.Time) error {
	r.session.ReloginNotifiedAt = sql.NullTime{Time: notifiedAt, Valid: true}
	return nil
}

func (r *fakeMonRepo) countCheckLogs(status monitoring.CheckStatus) int {
	n := 0
	for _, row := range r.checkLogs {
		if row.status == status {
			n++
		}
	}
	return n
}

func (r *fakeMonRepo) countAlertLogs(alertType monitoring.AlertType) int {
	n := 0
	for _, row := range r.alertLogs {
		if row.alertType == alertType {
			n++
		}
	}
	return n
}

type fakeFetcher struct {
	responses []fetchResponse
	calls     int
}

type fetchResponse struct {
	body string
	err  error
}

func (f *fakeFetcher) FetchXML(_ context.Context) (string, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	resp := f.responses[idx]
	return resp.body, resp.err
}

type sentMessage struct {
	recipient string
	subject   string
	body      string
}

type fakeNotifier struct {
	sent     []sentMessage
	failWith error
}

func (n *fakeNotifier) Send(recipient, subject, body string) error {
	if n.failWith != nil {
		return n.failWith
	}
	n.sent = append(n.sent, sentMessage{recipient, subject, body})
	return nil
}

// --- helpers ---

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testWatch(id int64, email string) *watch.Request {
	return &watch.Request{
		ID:          id,
		Email:       email,
		TermCode:    "W",
		SectionCode: "M",
		BlockKey:    "F57V03",
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
}

func seatDoc(osValue int) string {
	return fmt.Sprintf(`<addcourse><block pn="W" usn="M" key="F57V03" os="%d"/></addcourse>`, osValue)
}

func newTestMonitor(watches []*watch.Request, fetcher *fakeFetcher) (*MonitorService, *fakeMonRepo, *fakeNotifier) {
	cfg := &config.AppConfig{
		AlertCooldownMinutes:  30,
		AlertRecipientDefault: "fallback@example.org",
	}
	monRepo := newFakeMonRepo()
	notifier := &fakeNotifier{}
	svc := NewMonitorService(cfg, &fakeWatchRepo{watches: watches}, monRepo, fetcher, notifier, nil, quietLogger())
	return svc, monRepo, notifier
}

// --- alert decision ---

func TestShouldSendOpenAlert(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	openState := func(lastOS int64, alertAgo time.Duration) *monitoring.SeatState {
		state := &monitoring.SeatState{LastOS: sql.NullInt64{Int64: lastOS, Valid: true}}
		if alertAgo > 0 {
			state.LastOpenedAlertAt = sql.NullTime{Time: now.Add(-alertAgo), Valid: true}
		}
		return state
	}

	cases := []struct {
		name     string
		previous *monitoring.SeatState
		current  int
		want     bool
	}{
		{"no previous state", nil, 5, true},
		{"previous count unknown", &monitoring.SeatState{}, 5, true},
		{"zero seats never alerts", nil, 0, false},
		{"negative seats never alerts", openState(4, 0), -2, false},
		{"full to open ignores cooldown", openState(0, 5*time.Minute), 3, true},
		{"still open, never alerted", openState(4, 0), 2, true},
		{"still open, inside cooldown", openState(4, 5*time.Minute), 2, false},
		{"still open, past cooldown", openState(4, 31*time.Minute), 2, true},
		{"still open, exactly at cooldown", openState(4, 30*time.Minute), 2, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := shouldSendOpenAlert(tc.previous, tc.current, 30, now)
			if got != tc.want {
				t.Errorf("shouldSendOpenAlert = %v, want %v", got, tc.want)
			}
		})
	}
}

// --- monitor cycle ---

func TestRunCycleNoActiveWatchesSkipsFetch(t *testing.T) {
	fetcher := &fakeFetcher{responses: []fetchResponse{{body: seatDoc(5)}}}
	svc, monRepo, notifier := newTestMonitor(nil, fetcher)

	svc.RunCycle(context.Background())

	if fetcher.calls != 0 {
		t.Errorf("expected no fetch, got %d calls", fetcher.calls)
	}
	if len(monRepo.checkLogs) != 0 || len(notifier.sent) != 0 {
		t.Errorf("expected a no-op cycle")
	}
}

func TestRunCycleFullThenOpenSendsExactlyOneAlert(t *testing.T) {
	w := testWatch(1, "student@example.org")
	fetcher := &fakeFetcher{responses: []fetchResponse{
		{body: seatDoc(0)},
		{body: seatDoc(5)},
	}}
	svc, monRepo, notifier := newTestMonitor([]*watch.Request{w}, fetcher)

	// First cycle: section is full.
	svc.RunCycle(context.Background())

	state := monRepo.seatStates[1]
	if state.LastStatus.String != "full" {
		t.Fatalf("first cycle status = %q, want full", state.LastStatus.String)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("no alert expected on a full section, got %d", len(notifier.sent))
	}
	if monRepo.session.State != monitoring.SessionStateValid {
		t.Errorf("session state = %s, want valid", monRepo.session.State)
	}

	// Second cycle: seats opened.
	svc.RunCycle(context.Background())

	state = monRepo.seatStates[1]
	if state.LastStatus.String != "open" {
		t.Fatalf("second cycle status = %q, want open", state.LastStatus.String)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(notifier.sent))
	}
	if notifier.sent[0].recipient != "student@example.org" {
		t.Errorf("alert went to %q", notifier.sent[0].recipient)
	}
	if !state.LastOpenedAlertAt.Valid {
		t.Error("last opened alert timestamp not stamped after successful send")
	}
	if monRepo.countAlertLogs(monitoring.AlertTypeSeatOpen) != 1 {
		t.Errorf("expected one seat_open alert log")
	}
	if monRepo.countCheckLogs(monitoring.CheckStatusAlertSent) != 1 {
		t.Errorf("expected one alert_sent check log")
	}
}

func TestRunCycleOpenStaysOpenThrottledByCooldown(t *testing.T) {
	w := testWatch(1, "student@example.org")
	fetcher := &fakeFetcher{responses: []fetchResponse{{body: seatDoc(4)}}}
	svc, _, notifier := newTestMonitor([]*watch.Request{w}, fetcher)

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	current := base
	svc.now = func() time.Time { return current }

	svc.RunCycle(context.Background()) // first observation, alerts
	if len(notifier.sent) != 1 {
		t.Fatalf("expected first alert, got %d", len(notifier.sent))
	}

	current = base.Add(5 * time.Minute)
	svc.RunCycle(context.Background()) // still open, inside cooldown
	if len(notifier.sent) != 1 {
		t.Fatalf("cooldown did not suppress repeat alert, got %d sends", len(notifier.sent))
	}

	current = base.Add(31 * time.Minute)
	svc.RunCycle(context.Background()) // past cooldown
	if len(notifier.sent) != 2 {
		t.Fatalf("expected repeat alert after cooldown, got %d sends", len(notifier.sent))
	}
}

func TestRunCycleFlappingReopenOverridesCooldown(t *testing.T) {
	w := testWatch(1, "student@example.org")
	fetcher := &fakeFetcher{responses: []fetchResponse{
		{body: seatDoc(3)},
		{body: seatDoc(0)},
		{body: seatDoc(2)},
	}}
	svc, _, notifier := newTestMonitor([]*watch.Request{w}, fetcher)

	svc.RunCycle(context.Background()) // open: alert
	svc.RunCycle(context.Background()) // full: nothing
	svc.RunCycle(context.Background()) // reopened: alert despite recent cooldown stamp

	if len(notifier.sent) != 2 {
		t.Fatalf("expected 2 alerts across a flap, got %d", len(notifier.sent))
	}
}

func TestRunCycleSessionExpiredAbortsAndNotifiesOnce(t *testing.T) {
	watches := []*watch.Request{testWatch(1, "a@example.org"), testWatch(2, "b@example.org")}
	expiredErr := fmt.Errorf("%w: received HTTP 403 from VSB", upstream.ErrSessionExpired)
	fetcher := &fakeFetcher{responses: []fetchResponse{{err: expiredErr}}}
	svc, monRepo, notifier := newTestMonitor(watches, fetcher)

	svc.RunCycle(context.Background())
	svc.RunCycle(context.Background())

	if monRepo.session.State != monitoring.SessionStateExpired {
		t.Errorf("session state = %s, want expired", monRepo.session.State)
	}
	// One session_expired check log per watch per cycle.
	if got := monRepo.countCheckLogs(monitoring.CheckStatusSessionExpired); got != 4 {
		t.Errorf("expected 4 session_expired check logs, got %d", got)
	}
	// The relogin alert is gated to a single send across both cycles.
	if got := monRepo.countAlertLogs(monitoring.AlertTypeReloginRequired); got != 1 {
		t.Errorf("expected exactly one relogin_required alert log, got %d", got)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected exactly one relogin email, got %d", len(notifier.sent))
	}
	if notifier.sent[0].recipient != "fallback@example.org" {
		t.Errorf("relogin email went to %q", notifier.sent[0].recipient)
	}
}

func TestRunCycleReloginGateResetsWhenSessionRecovers(t *testing.T) {
	w := testWatch(1, "a@example.org")
	expiredErr := fmt.Errorf("%w: received HTTP 401 from VSB", upstream.ErrSessionExpired)
	fetcher := &fakeFetcher{responses: []fetchResponse{
		{err: expiredErr},
		{body: seatDoc(0)},
		{err: expiredErr},
	}}
	svc, monRepo, _ := newTestMonitor([]*watch.Request{w}, fetcher)

	svc.RunCycle(context.Background()) // expired: relogin alert
	svc.RunCycle(context.Background()) // valid again: gate cleared
	svc.RunCycle(context.Background()) // expired again: new relogin alert

	if got := monRepo.countAlertLogs(monitoring.AlertTypeReloginRequired); got != 2 {
		t.Errorf("expected a fresh relogin alert after recovery, got %d total", got)
	}
}

func TestRunCycleFetchErrorMarksSessionAndLogsAllWatches(t *testing.T) {
	watches := []*watch.Request{testWatch(1, "a@example.org"), testWatch(2, "b@example.org")}
	fetcher := &fakeFetcher{responses: []fetchResponse{{err: fmt.Errorf("%w: request failed after 3 attempts", upstream.ErrFetchFailed)}}}
	svc, monRepo, notifier := newTestMonitor(watches, fetcher)

	svc.RunCycle(context.Background())

	if monRepo.session.State != monitoring.SessionStateFetchError {
		t.Errorf("session state = %s, want fetch_error", monRepo.session.State)
	}
	if got := monRepo.countCheckLogs(monitoring.CheckStatusFetchError); got != 2 {
		t.Errorf("expected fetch_error log per watch, got %d", got)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("no notification expected on fetch error")
	}
}

func TestRunCycleInvalidXMLAbortsCycle(t *testing.T) {
	w := testWatch(1, "a@example.org")
	fetcher := &fakeFetcher{responses: []fetchResponse{{body: "<addcourse><block"}}}
	svc, monRepo, _ := newTestMonitor([]*watch.Request{w}, fetcher)

	svc.RunCycle(context.Background())

	if monRepo.session.State != monitoring.SessionStateFetchError {
		t.Errorf("session state = %s, want fetch_error", monRepo.session.State)
	}
	if got := monRepo.countCheckLogs(monitoring.CheckStatusInvalidXML); got != 1 {
		t.Errorf("expected invalid_xml check log, got %d", got)
	}
	if len(monRepo.seatStates) != 0 {
		t.Errorf("seat state must not be written on an aborted cycle")
	}
}

func TestRunCycleBlockNotFoundIsIsolatedPerWatch(t *testing.T) {
	matching := testWatch(1, "a@example.org")
	missing := testWatch(2, "b@example.org")
	missing.BlockKey = "NOPE"
	fetcher := &fakeFetcher{responses: []fetchResponse{{body: seatDoc(5)}}}
	svc, monRepo, notifier := newTestMonitor([]*watch.Request{missing, matching}, fetcher)

	svc.RunCycle(context.Background())

	missingState := monRepo.seatStates[2]
	if missingState.LastStatus.String != "not_found" {
		t.Errorf("missing watch status = %q, want not_found", missingState.LastStatus.String)
	}
	if missingState.LastOS.Valid {
		t.Errorf("missing watch must have unknown seat count")
	}
	// The sibling watch still got checked and alerted.
	if len(notifier.sent) != 1 {
		t.Fatalf("expected the matching watch to alert, got %d sends", len(notifier.sent))
	}
	if monRepo.seatStates[1].LastStatus.String != "open" {
		t.Errorf("matching watch status = %q, want open", monRepo.seatStates[1].LastStatus.String)
	}
}

func TestRunCycleNotifierFailureLeavesAlertTimestampForRetry(t *testing.T) {
	w := testWatch(1, "a@example.org")
	fetcher := &fakeFetcher{responses: []fetchResponse{{body: seatDoc(5)}}}
	svc, monRepo, notifier := newTestMonitor([]*watch.Request{w}, fetcher)
	notifier.failWith = fmt.Errorf("smtp down")

	svc.RunCycle(context.Background())

	if monRepo.seatStates[1].LastOpenedAlertAt.Valid {
		t.Error("alert timestamp must not be stamped on a failed send")
	}
	if got := monRepo.countCheckLogs(monitoring.CheckStatusAlertError); got != 1 {
		t.Errorf("expected alert_error check log, got %d", got)
	}

	// Next cycle retries the send once the notifier recovers.
	notifier.failWith = nil
	svc.RunCycle(context.Background())
	if len(notifier.sent) != 1 {
		t.Fatalf("expected a retried alert, got %d sends", len(notifier.sent))
	}
	if !monRepo.seatStates[1].LastOpenedAlertAt.Valid {
		t.Error("alert timestamp should be stamped after the retried send")
	}
}

func TestRunCycleAlertSkippedWithoutAnyRecipient(t *testing.T) {
	w := testWatch(1, "")
	fetcher := &fakeFetcher{responses: []fetchResponse{{body: seatDoc(5)}}}
	svc, monRepo, notifier := newTestMonitor([]*watch.Request{w}, fetcher)
	svc.cfg.AlertRecipientDefault = ""

	svc.RunCycle(context.Background())

	if len(notifier.sent) != 0 {
		t.Errorf("no send expected without a recipient")
	}
	if got := monRepo.countCheckLogs(monitoring.CheckStatusAlertSkipped); got != 1 {
		t.Errorf("expected alert_skipped check log, got %d", got)
	}
}
