package service

import (
	"context"
	"testing"
	"time"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"

	"github.com/google/uuid"
)

type monitorFixture struct {
	svc           *monitorService
	periods       *fakePeriodRepo
	rosterRepo    *fakeRosterRepo
	notifications *fakeNotificationRepo
	principals    map[string]uuid.UUID
	creator       uuid.UUID
	now           time.Time
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	periods := newFakePeriodRepo()
	rosterRepo := newFakeRosterRepo()
	notifications := newFakeNotificationRepo()
	roster := NewRosterService(rosterRepo, passTxManager{})

	f := &monitorFixture{
		periods:       periods,
		rosterRepo:    rosterRepo,
		notifications: notifications,
		principals:    seedRoster(t, rosterRepo, 104, model.RoleToolPusher, model.RoleDS, model.RoleOSE),
		now:           time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC),
	}
	f.creator = f.principals[model.RoleToolPusher]

	f.svc = NewMonitorService(periods, notifications, roster, DefaultMonitorConfig()).(*monitorService)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *monitorFixture) seedPeriod(t *testing.T, status string, submittedAgo time.Duration) *model.PeriodReport {
	t.Helper()
	submittedAt := f.now.Add(-submittedAgo)
	period := &model.PeriodReport{
		PeriodKey:   "2025-05",
		RigNumber:   104,
		Status:      status,
		SlaDays:     model.DefaultSlaDays,
		CreatedBy:   &f.creator,
		SubmittedAt: &submittedAt,
	}
	if err := f.periods.Create(context.Background(), period); err != nil {
		t.Fatalf("seed period: %v", err)
	}
	return period
}

func TestSlaCheckNotifiesOverduePeriodsOnce(t *testing.T) {
	ctx := context.Background()
	f := newMonitorFixture(t)
	f.seedPeriod(t, model.PeriodSubmitted, 8*24*time.Hour) // one day past the 7-day SLA

	emitted, err := f.svc.RunSlaCheck(ctx)
	if err != nil {
		t.Fatalf("sla check: %v", err)
	}
	// Three distinct role holders, one of whom is also the creator.
	if emitted != 3 {
		t.Fatalf("emitted %d notifications, want one per distinct recipient", emitted)
	}
	for _, n := range f.notifications.byRule(model.RuleOverSla) {
		if n.DedupKey == nil {
			t.Fatalf("sweep notification missing its dedup key: %+v", n)
		}
	}

	// A re-run inside the same dedup bucket inserts nothing.
	f.now = f.now.Add(time.Hour)
	emitted, err = f.svc.RunSlaCheck(ctx)
	if err != nil {
		t.Fatalf("second sla check: %v", err)
	}
	if emitted != 0 {
		t.Fatalf("emitted %d on re-run, want dedup to swallow the repeats", emitted)
	}

	// The next bucket nudges again while the period is still overdue.
	f.now = f.now.Add(24 * time.Hour)
	emitted, err = f.svc.RunSlaCheck(ctx)
	if err != nil {
		t.Fatalf("third sla check: %v", err)
	}
	if emitted != 3 {
		t.Fatalf("emitted %d in the next bucket, want a fresh round", emitted)
	}
}

func TestSlaCheckIgnoresPeriodsInsideTheirSla(t *testing.T) {
	f := newMonitorFixture(t)
	f.seedPeriod(t, model.PeriodSubmitted, 3*24*time.Hour)

	emitted, err := f.svc.RunSlaCheck(context.Background())
	if err != nil {
		t.Fatalf("sla check: %v", err)
	}
	if emitted != 0 {
		t.Fatalf("emitted %d for a period inside its SLA, want none", emitted)
	}
}

func TestStallCheckUsesLatestStageEvent(t *testing.T) {
	ctx := context.Background()
	f := newMonitorFixture(t)
	period := f.seedPeriod(t, model.PeriodInReview, 10*24*time.Hour)

	// Review activity two days ago keeps the period inside the 72h
	// threshold even though submission is long past.
	recent := f.now.Add(-48 * time.Hour)
	if err := f.periods.AppendStageEvent(ctx, &model.StageEvent{
		PeriodReportID: period.ID,
		Stage:          model.StageReviewStarted,
		CreatedAt:      recent,
	}); err != nil {
		t.Fatalf("seed stage event: %v", err)
	}

	emitted, err := f.svc.RunStallCheck(ctx)
	if err != nil {
		t.Fatalf("stall check: %v", err)
	}
	if emitted != 0 {
		t.Fatalf("emitted %d despite recent activity, want none", emitted)
	}

	// Four days later with no new events the creator gets nudged.
	f.now = f.now.Add(4 * 24 * time.Hour)
	emitted, err = f.svc.RunStallCheck(ctx)
	if err != nil {
		t.Fatalf("stall check after idle: %v", err)
	}
	if emitted != 1 {
		t.Fatalf("emitted %d, want exactly the creator nudge", emitted)
	}
	stalled := f.notifications.byRule(model.RuleStalled)
	if len(stalled) != 1 || stalled[0].RecipientID != f.creator {
		t.Fatalf("stall notification %+v, want the creator as recipient", stalled)
	}

	// Re-run in the same bucket stays quiet.
	emitted, err = f.svc.RunStallCheck(ctx)
	if err != nil {
		t.Fatalf("stall re-run: %v", err)
	}
	if emitted != 0 {
		t.Fatalf("emitted %d on re-run, want dedup to hold", emitted)
	}
}

func TestSweepsNeverTransitionPeriods(t *testing.T) {
	ctx := context.Background()
	f := newMonitorFixture(t)
	period := f.seedPeriod(t, model.PeriodSubmitted, 30*24*time.Hour)

	if _, err := f.svc.RunSlaCheck(ctx); err != nil {
		t.Fatalf("sla check: %v", err)
	}
	if _, err := f.svc.RunStallCheck(ctx); err != nil {
		t.Fatalf("stall check: %v", err)
	}

	stored, err := f.periods.FindByID(ctx, period.ID)
	if err != nil {
		t.Fatalf("reload period: %v", err)
	}
	if stored.Status != model.PeriodSubmitted {
		t.Fatalf("status %q after sweeps, the monitor must stay read-only", stored.Status)
	}
}
