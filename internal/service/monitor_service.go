package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MonitorConfig tunes the periodic sweep.
type MonitorConfig struct {
	// StallThreshold is how long a submitted period may sit without a new
	// stage event before its creator is nudged. Independent of SlaDays.
	StallThreshold time.Duration
	// DedupBucket is the window within which repeated sweeps collapse to
	// one notification per (period, rule, recipient). Across buckets the
	// sweep is at-least-once.
	DedupBucket time.Duration
}

// DefaultMonitorConfig mirrors the hourly-sweep deployment defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		StallThreshold: 72 * time.Hour,
		DedupBucket:    24 * time.Hour,
	}
}

// MonitorService is the SLA/stall sweep. It only reads workflow state and
// inserts notifications, never transitions anything, so it is safe to run
// on any schedule and from several instances at once.
type MonitorService interface {
	// RunSlaCheck notifies the creator and the current approver-role
	// holders of every Submitted period older than its SLA. Returns how
	// many notifications were actually inserted.
	RunSlaCheck(ctx context.Context) (int, error)
	// RunStallCheck notifies the creator of every open period whose most
	// recent stage event is older than the stall threshold.
	RunStallCheck(ctx context.Context) (int, error)
}

type monitorService struct {
	periods       repository.PeriodRepository
	notifications repository.NotificationRepository
	roster        RosterService
	config        MonitorConfig
	now           func() time.Time
}

func NewMonitorService(
	periods repository.PeriodRepository,
	notifications repository.NotificationRepository,
	roster RosterService,
	config MonitorConfig,
) MonitorService {
	return &monitorService{
		periods:       periods,
		notifications: notifications,
		roster:        roster,
		config:        config,
		now:           time.Now,
	}
}

func (s *monitorService) RunSlaCheck(ctx context.Context) (int, error) {
	now := s.now()
	periods, err := s.periods.ListByStatuses(ctx, []string{model.PeriodSubmitted})
	if err != nil {
		return 0, fmt.Errorf("failed to list submitted periods: %w", err)
	}

	emitted := 0
	for i := range periods {
		period := &periods[i]
		if period.SubmittedAt == nil {
			continue
		}
		deadline := period.SubmittedAt.Add(time.Duration(period.SlaDays) * 24 * time.Hour)
		if !now.After(deadline) {
			continue
		}

		recipients, err := s.slaRecipients(ctx, period, now)
		if err != nil {
			// One unresolvable rig must not starve the rest of the sweep.
			log.Printf("sla sweep: skipping period %s rig %d: %v", period.PeriodKey, period.RigNumber, err)
			continue
		}
		message := fmt.Sprintf("Period report %s for rig %d exceeded its %d-day review SLA",
			period.PeriodKey, period.RigNumber, period.SlaDays)
		count, err := s.emit(ctx, period, model.RuleOverSla, message, recipients, now)
		if err != nil {
			return emitted, err
		}
		emitted += count
	}
	return emitted, nil
}

func (s *monitorService) RunStallCheck(ctx context.Context) (int, error) {
	now := s.now()
	periods, err := s.periods.ListByStatuses(ctx, []string{model.PeriodSubmitted, model.PeriodInReview})
	if err != nil {
		return 0, fmt.Errorf("failed to list open periods: %w", err)
	}

	emitted := 0
	for i := range periods {
		period := &periods[i]

		lastActivity := period.SubmittedAt
		event, err := s.periods.LatestStageEvent(ctx, period.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return emitted, fmt.Errorf("failed to load latest stage event: %w", err)
		}
		if event != nil {
			lastActivity = &event.CreatedAt
		}
		if lastActivity == nil || now.Sub(*lastActivity) <= s.config.StallThreshold {
			continue
		}

		if period.CreatedBy == nil {
			continue
		}
		message := fmt.Sprintf("Period report %s for rig %d has had no review activity since %s",
			period.PeriodKey, period.RigNumber, lastActivity.Format("2006-01-02"))
		count, err := s.emit(ctx, period, model.RuleStalled, message, []uuid.UUID{*period.CreatedBy}, now)
		if err != nil {
			return emitted, err
		}
		emitted += count
	}
	return emitted, nil
}

func (s *monitorService) slaRecipients(ctx context.Context, period *model.PeriodReport, now time.Time) ([]uuid.UUID, error) {
	recipients, err := s.roster.ApproverRoleHolders(ctx, period.RigNumber, now)
	if err != nil {
		return nil, err
	}
	if period.CreatedBy != nil {
		found := false
		for _, r := range recipients {
			if r == *period.CreatedBy {
				found = true
				break
			}
		}
		if !found {
			recipients = append(recipients, *period.CreatedBy)
		}
	}
	return recipients, nil
}

// emit inserts one deduplicated notification per recipient. The dedup key
// buckets emission time, so a sweep re-run inside the bucket inserts
// nothing new.
func (s *monitorService) emit(ctx context.Context, period *model.PeriodReport, rule, message string, recipients []uuid.UUID, now time.Time) (int, error) {
	bucket := now.Truncate(s.config.DedupBucket).Unix()
	inserted := 0
	for _, recipient := range recipients {
		key := fmt.Sprintf("%s:%s:%s:%d", rule, period.ID, recipient, bucket)
		notification := &model.Notification{
			RecipientID: recipient,
			RefID:       period.ID,
			RefType:     model.RefPeriod,
			RuleTag:     rule,
			Message:     message,
			Channel:     model.ChannelInApp,
			DedupKey:    &key,
		}
		created, err := s.notifications.CreateDeduped(ctx, notification)
		if err != nil {
			return inserted, fmt.Errorf("failed to enqueue %s notification: %w", rule, err)
		}
		if created {
			inserted++
		}
	}
	return inserted, nil
}
