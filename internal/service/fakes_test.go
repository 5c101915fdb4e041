package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// In-memory repository fakes. They mirror the store contracts closely
// enough for service-level tests: record-not-found maps to
// gorm.ErrRecordNotFound, dedup keys are unique, delegation queries come
// back most recently created first.

type passTxManager struct{}

func (passTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- reports ---

type fakeReportRepo struct {
	reports map[uuid.UUID]model.NptReport
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: make(map[uuid.UUID]model.NptReport)}
}

func (f *fakeReportRepo) Create(ctx context.Context, report *model.NptReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	f.reports[report.ID] = *report
	return nil
}

func (f *fakeReportRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.NptReport, error) {
	report, ok := f.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &report, nil
}

func (f *fakeReportRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.NptReport, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeReportRepo) Update(ctx context.Context, report *model.NptReport) error {
	f.reports[report.ID] = *report
	return nil
}

func (f *fakeReportRepo) List(ctx context.Context, filter repository.ReportFilter, page, limit int) ([]model.NptReport, int64, error) {
	var out []model.NptReport
	for _, report := range f.reports {
		if filter.WorkflowStatus != "" && report.WorkflowStatus != filter.WorkflowStatus {
			continue
		}
		if filter.RigNumber != 0 && report.RigNumber != filter.RigNumber {
			continue
		}
		if filter.Category != "" && report.Category != filter.Category {
			continue
		}
		out = append(out, report)
	}
	return out, int64(len(out)), nil
}

// --- approval records ---

type fakeRecordRepo struct {
	records []model.ApprovalRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{}
}

func (f *fakeRecordRepo) Append(ctx context.Context, record *model.ApprovalRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeRecordRepo) ListByReport(ctx context.Context, reportID uuid.UUID) ([]model.ApprovalRecord, error) {
	var out []model.ApprovalRecord
	for _, record := range f.records {
		if record.ReportID == reportID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) CountByReport(ctx context.Context, reportID uuid.UUID) (int64, error) {
	records, _ := f.ListByReport(ctx, reportID)
	return int64(len(records)), nil
}

// --- roster ---

type fakeRosterRepo struct {
	assignments []model.RoleAssignment
	delegations []model.Delegation
	clock       time.Time
}

func newFakeRosterRepo() *fakeRosterRepo {
	return &fakeRosterRepo{clock: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}
}

// tick hands out strictly increasing creation times so "most recently
// created" is well defined no matter how fast the test runs.
func (f *fakeRosterRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeRosterRepo) ActiveAssignment(ctx context.Context, rig int, role string) (*model.RoleAssignment, error) {
	for i := range f.assignments {
		a := f.assignments[i]
		if a.RigNumber == rig && a.Role == role && a.IsActive {
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRosterRepo) AssignmentAt(ctx context.Context, rig int, role string, at time.Time) (*model.RoleAssignment, error) {
	var match *model.RoleAssignment
	for i := range f.assignments {
		a := f.assignments[i]
		if a.RigNumber != rig || a.Role != role {
			continue
		}
		if a.CreatedAt.After(at) {
			continue
		}
		if a.DeactivatedAt != nil && !a.DeactivatedAt.After(at) {
			continue
		}
		if match == nil || a.CreatedAt.After(match.CreatedAt) {
			match = &a
		}
	}
	if match == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return match, nil
}

func (f *fakeRosterRepo) ActiveAssignmentsForRig(ctx context.Context, rig int) ([]model.RoleAssignment, error) {
	var out []model.RoleAssignment
	for _, a := range f.assignments {
		if a.RigNumber == rig && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRosterRepo) CreateAssignment(ctx context.Context, assignment *model.RoleAssignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	assignment.CreatedAt = f.tick()
	f.assignments = append(f.assignments, *assignment)
	return nil
}

func (f *fakeRosterRepo) DeactivateAssignment(ctx context.Context, id uuid.UUID, at time.Time) error {
	for i := range f.assignments {
		if f.assignments[i].ID == id {
			f.assignments[i].IsActive = false
			f.assignments[i].DeactivatedAt = &at
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRosterRepo) CreateDelegation(ctx context.Context, delegation *model.Delegation) error {
	if delegation.ID == uuid.Nil {
		delegation.ID = uuid.New()
	}
	delegation.CreatedAt = f.tick()
	f.delegations = append(f.delegations, *delegation)
	return nil
}

func (f *fakeRosterRepo) RevokeDelegation(ctx context.Context, id uuid.UUID, at time.Time) error {
	for i := range f.delegations {
		if f.delegations[i].ID == id {
			f.delegations[i].IsActive = false
			f.delegations[i].RevokedAt = &at
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRosterRepo) ScopedDelegations(ctx context.Context, rig int, role string, at time.Time) ([]model.Delegation, error) {
	var out []model.Delegation
	for _, d := range f.delegations {
		if d.Scoped() && *d.RigNumber == rig && *d.Role == role && d.Covers(at) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRosterRepo) UnscopedDelegationsFrom(ctx context.Context, delegatorID uuid.UUID, at time.Time) ([]model.Delegation, error) {
	var out []model.Delegation
	for _, d := range f.delegations {
		if !d.Scoped() && d.DelegatorID == delegatorID && d.Covers(at) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRosterRepo) ListDelegations(ctx context.Context, rig int) ([]model.Delegation, error) {
	var out []model.Delegation
	for _, d := range f.delegations {
		if d.RigNumber == nil || *d.RigNumber == rig {
			out = append(out, d)
		}
	}
	return out, nil
}

// --- periods ---

type fakePeriodRepo struct {
	periods map[uuid.UUID]model.PeriodReport
	slices  map[uuid.UUID]map[string]model.DaySlice
	events  []model.StageEvent
	clock   time.Time
}

func newFakePeriodRepo() *fakePeriodRepo {
	return &fakePeriodRepo{
		periods: make(map[uuid.UUID]model.PeriodReport),
		slices:  make(map[uuid.UUID]map[string]model.DaySlice),
		clock:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakePeriodRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakePeriodRepo) Create(ctx context.Context, period *model.PeriodReport) error {
	if period.ID == uuid.Nil {
		period.ID = uuid.New()
	}
	f.periods[period.ID] = *period
	return nil
}

func (f *fakePeriodRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PeriodReport, error) {
	period, ok := f.periods[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &period, nil
}

func (f *fakePeriodRepo) FindByKey(ctx context.Context, periodKey string, rig int) (*model.PeriodReport, error) {
	for _, period := range f.periods {
		if period.PeriodKey == periodKey && period.RigNumber == rig {
			p := period
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePeriodRepo) FindByKeyForUpdate(ctx context.Context, periodKey string, rig int) (*model.PeriodReport, error) {
	return f.FindByKey(ctx, periodKey, rig)
}

func (f *fakePeriodRepo) Update(ctx context.Context, period *model.PeriodReport) error {
	f.periods[period.ID] = *period
	return nil
}

func (f *fakePeriodRepo) ListByStatuses(ctx context.Context, statuses []string) ([]model.PeriodReport, error) {
	var out []model.PeriodReport
	for _, period := range f.periods {
		for _, status := range statuses {
			if period.Status == status {
				out = append(out, period)
				break
			}
		}
	}
	return out, nil
}

func (f *fakePeriodRepo) UpsertDaySlice(ctx context.Context, slice *model.DaySlice) error {
	if slice.ID == uuid.Nil {
		slice.ID = uuid.New()
	}
	byDate, ok := f.slices[slice.PeriodReportID]
	if !ok {
		byDate = make(map[string]model.DaySlice)
		f.slices[slice.PeriodReportID] = byDate
	}
	key := slice.SliceDate.Format("2006-01-02")
	if existing, ok := byDate[key]; ok {
		slice.ID = existing.ID
	}
	byDate[key] = *slice
	return nil
}

func (f *fakePeriodRepo) ListDaySlices(ctx context.Context, periodID uuid.UUID) ([]model.DaySlice, error) {
	var out []model.DaySlice
	for _, slice := range f.slices[periodID] {
		out = append(out, slice)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SliceDate.Before(out[j].SliceDate) })
	return out, nil
}

func (f *fakePeriodRepo) SumHoursByCategory(ctx context.Context, periodID uuid.UUID) (map[string]decimal.Decimal, error) {
	totals := make(map[string]decimal.Decimal)
	for _, slice := range f.slices[periodID] {
		totals[slice.Category] = totals[slice.Category].Add(slice.Hours)
	}
	return totals, nil
}

func (f *fakePeriodRepo) AppendStageEvent(ctx context.Context, event *model.StageEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = f.tick()
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakePeriodRepo) ListStageEvents(ctx context.Context, periodID uuid.UUID) ([]model.StageEvent, error) {
	var out []model.StageEvent
	for _, event := range f.events {
		if event.PeriodReportID == periodID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (f *fakePeriodRepo) LatestStageEvent(ctx context.Context, periodID uuid.UUID) (*model.StageEvent, error) {
	var latest *model.StageEvent
	for i := range f.events {
		event := f.events[i]
		if event.PeriodReportID != periodID {
			continue
		}
		if latest == nil || event.CreatedAt.After(latest.CreatedAt) {
			latest = &event
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

// --- notifications ---

type fakeNotificationRepo struct {
	notifications []model.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (f *fakeNotificationRepo) Create(ctx context.Context, notification *model.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	f.notifications = append(f.notifications, *notification)
	return nil
}

func (f *fakeNotificationRepo) CreateDeduped(ctx context.Context, notification *model.Notification) (bool, error) {
	if notification.DedupKey != nil {
		for _, existing := range f.notifications {
			if existing.DedupKey != nil && *existing.DedupKey == *notification.DedupKey {
				return false, nil
			}
		}
	}
	return true, f.Create(ctx, notification)
}

func (f *fakeNotificationRepo) ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page, limit int) ([]model.Notification, int64, error) {
	var out []model.Notification
	for _, n := range f.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	for i := range f.notifications {
		if f.notifications[i].ID == id && f.notifications[i].RecipientID == recipientID {
			f.notifications[i].IsRead = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeNotificationRepo) byRule(rule string) []model.Notification {
	var out []model.Notification
	for _, n := range f.notifications {
		if n.RuleTag == rule {
			out = append(out, n)
		}
	}
	return out
}

// --- shared seeding helpers ---

// seedRoster assigns a fresh principal to each given role on the rig and
// returns them keyed by role.
func seedRoster(t *testing.T, repo *fakeRosterRepo, rig int, roles ...string) map[string]uuid.UUID {
	t.Helper()
	principals := make(map[string]uuid.UUID, len(roles))
	for _, role := range roles {
		principal := uuid.New()
		err := repo.CreateAssignment(context.Background(), &model.RoleAssignment{
			RigNumber:   rig,
			Role:        role,
			PrincipalID: principal,
			IsActive:    true,
		})
		if err != nil {
			t.Fatalf("seed assignment for %s: %v", role, err)
		}
		principals[role] = principal
	}
	return principals
}
