package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type periodFixture struct {
	svc           PeriodService
	periods       *fakePeriodRepo
	rosterRepo    *fakeRosterRepo
	notifications *fakeNotificationRepo
	principals    map[string]uuid.UUID
	creator       uuid.UUID
}

func newPeriodFixture(t *testing.T, rig int) *periodFixture {
	t.Helper()
	periods := newFakePeriodRepo()
	rosterRepo := newFakeRosterRepo()
	notifications := newFakeNotificationRepo()
	roster := NewRosterService(rosterRepo, passTxManager{})

	f := &periodFixture{
		svc:           NewPeriodService(periods, notifications, roster, passTxManager{}, nil),
		periods:       periods,
		rosterRepo:    rosterRepo,
		notifications: notifications,
		principals:    seedRoster(t, rosterRepo, rig, model.RoleToolPusher, model.RoleDS, model.RoleOSE),
	}
	f.creator = f.principals[model.RoleToolPusher]
	return f
}

func (f *periodFixture) upsertDay(t *testing.T, day int, hours float64, category string) *model.PeriodReport {
	t.Helper()
	period, err := f.svc.UpsertDaySlice(context.Background(), UpsertDaySliceRequest{
		PeriodKey: "2025-05",
		RigNumber: 104,
		SliceDate: time.Date(2025, 5, day, 0, 0, 0, 0, time.UTC),
		Hours:     decimal.NewFromFloat(hours),
		Category:  category,
	}, f.creator.String())
	if err != nil {
		t.Fatalf("upsert day %d: %v", day, err)
	}
	return period
}

func TestPeriodTotalsFollowDaySlices(t *testing.T) {
	f := newPeriodFixture(t, 104)

	f.upsertDay(t, 3, 2, "drilling")
	f.upsertDay(t, 4, 3, "drilling")
	period := f.upsertDay(t, 5, 1, "drilling")

	if period.Status != model.PeriodDraft {
		t.Fatalf("status %q, want Draft for a freshly aggregated period", period.Status)
	}
	if !period.TotalHours.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("total hours %s, want 6", period.TotalHours)
	}
	totals, err := period.HoursByCategory()
	if err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if !totals["drilling"].Equal(decimal.NewFromInt(6)) {
		t.Fatalf("drilling total %s, want 6", totals["drilling"])
	}

	// Rewriting one day replaces its contribution instead of adding to it.
	period = f.upsertDay(t, 4, 5, "drilling")
	if !period.TotalHours.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("total hours %s after day rewrite, want 8", period.TotalHours)
	}

	slices, err := f.svc.ListDaySlices(context.Background(), "2025-05", 104)
	if err != nil {
		t.Fatalf("list slices: %v", err)
	}
	if len(slices) != 3 {
		t.Fatalf("got %d slices, want one row per day", len(slices))
	}

	// A second category lands in its own bucket.
	period = f.upsertDay(t, 6, 2, "E-Maintenance")
	totals, _ = period.HoursByCategory()
	if !totals["e.maintenance"].Equal(decimal.NewFromInt(2)) {
		t.Fatalf("maintenance total %s, want 2 under the normalized key", totals["e.maintenance"])
	}
	if !period.TotalHours.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("total hours %s, want 10 across categories", period.TotalHours)
	}
}

func TestPeriodLifecycleSubmitReviewApprove(t *testing.T) {
	ctx := context.Background()
	f := newPeriodFixture(t, 104)
	f.upsertDay(t, 3, 4, "drilling")

	// Only the creator may submit.
	_, err := f.svc.Submit(ctx, "2025-05", 104, f.principals[model.RoleDS].String(), PeriodActionRequest{})
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized for a non-creator submit", err)
	}

	period, err := f.svc.Submit(ctx, "2025-05", 104, f.creator.String(), PeriodActionRequest{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if period.Status != model.PeriodSubmitted || period.SubmittedAt == nil {
		t.Fatalf("after submit: status %q submitted_at %v", period.Status, period.SubmittedAt)
	}
	if got := f.notifications.byRule(model.RuleSubmitted); len(got) == 0 {
		t.Fatalf("submit must notify the approver role holders")
	}

	// A second submit is a transition error.
	if _, err := f.svc.Submit(ctx, "2025-05", 104, f.creator.String(), PeriodActionRequest{}); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition for double submit", err)
	}

	period, err = f.svc.StartReview(ctx, "2025-05", 104, f.principals[model.RoleDS].String(), PeriodActionRequest{})
	if err != nil {
		t.Fatalf("start review: %v", err)
	}
	if period.Status != model.PeriodInReview {
		t.Fatalf("status %q, want In_Review", period.Status)
	}

	period, err = f.svc.Approve(ctx, "2025-05", 104, f.principals[model.RoleOSE].String(), PeriodActionRequest{Comment: "month closed"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if period.Status != model.PeriodApproved || period.ApprovedAt == nil {
		t.Fatalf("after approve: status %q approved_at %v", period.Status, period.ApprovedAt)
	}
	if got := f.notifications.byRule(model.RuleApprovalComplete); len(got) != 1 || got[0].RecipientID != f.creator {
		t.Fatalf("approve must notify the creator, got %+v", got)
	}

	// An approved month is locked against further slice writes.
	_, err = f.svc.UpsertDaySlice(ctx, UpsertDaySliceRequest{
		PeriodKey: "2025-05",
		RigNumber: 104,
		SliceDate: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
		Hours:     decimal.NewFromInt(1),
		Category:  "drilling",
	}, f.creator.String())
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition writing into an approved period", err)
	}

	events, err := f.svc.History(ctx, "2025-05", 104)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	wantStages := []string{model.StageSubmitted, model.StageReviewStarted, model.StageApproved}
	if len(events) != len(wantStages) {
		t.Fatalf("got %d stage events, want %d", len(events), len(wantStages))
	}
	for i, event := range events {
		if event.Stage != wantStages[i] {
			t.Fatalf("event %d stage %q, want %q", i, event.Stage, wantStages[i])
		}
	}
}

func TestPeriodRejectAndResubmit(t *testing.T) {
	ctx := context.Background()
	f := newPeriodFixture(t, 104)
	f.upsertDay(t, 3, 4, "drilling")

	if _, err := f.svc.Submit(ctx, "2025-05", 104, f.creator.String(), PeriodActionRequest{}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err := f.svc.Reject(ctx, "2025-05", 104, f.principals[model.RoleDS].String(), PeriodActionRequest{})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation for a reason-less reject", err)
	}

	period, err := f.svc.Reject(ctx, "2025-05", 104, f.principals[model.RoleDS].String(), PeriodActionRequest{Comment: "day 7 missing"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if period.Status != model.PeriodRejected || period.RejectionReason == "" {
		t.Fatalf("after reject: status %q reason %q", period.Status, period.RejectionReason)
	}
	if got := f.notifications.byRule(model.RuleRejected); len(got) != 1 || got[0].RecipientID != f.creator {
		t.Fatalf("reject must notify the creator, got %+v", got)
	}

	// A rejected period stays editable.
	f.upsertDay(t, 7, 2, "drilling")

	period, err = f.svc.Resubmit(ctx, "2025-05", 104, f.creator.String(), PeriodActionRequest{})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if period.Status != model.PeriodSubmitted || period.RejectionReason != "" {
		t.Fatalf("after resubmit: status %q reason %q", period.Status, period.RejectionReason)
	}

	events, _ := f.svc.History(ctx, "2025-05", 104)
	last := events[len(events)-1]
	if last.Stage != model.StageResubmitted {
		t.Fatalf("last stage %q, want resubmitted", last.Stage)
	}
}

func TestPeriodApproveRequiresApproverRole(t *testing.T) {
	ctx := context.Background()
	f := newPeriodFixture(t, 104)
	f.upsertDay(t, 3, 4, "drilling")

	if _, err := f.svc.Submit(ctx, "2025-05", 104, f.creator.String(), PeriodActionRequest{}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	outsider := uuid.New()
	_, err := f.svc.Approve(ctx, "2025-05", 104, outsider.String(), PeriodActionRequest{})
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized for a caller with no role on the rig", err)
	}

	// Approving a Draft period (nothing submitted yet elsewhere) fails too.
	f2 := newPeriodFixture(t, 104)
	f2.upsertDay(t, 3, 1, "drilling")
	_, err = f2.svc.Approve(ctx, "2025-05", 104, f2.principals[model.RoleDS].String(), PeriodActionRequest{})
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition approving a Draft", err)
	}
}

func TestPeriodUnknownKeyIsNotFound(t *testing.T) {
	f := newPeriodFixture(t, 104)
	_, err := f.svc.Submit(context.Background(), "2030-01", 104, f.creator.String(), PeriodActionRequest{})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound for a period never written to", err)
	}
}
