package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go-office-trash/internal/model"
	"go-office-trash/internal/repository"
	"go-office-trash/pkg/apierror"
)

const (
	AuditActionCapture    = "trash.capture"
	AuditActionDiscard    = "trash.discard"
	AuditActionRestore    = "trash.restore"
	AuditActionPurge      = "trash.purge"
	AuditActionHardDelete = "entity.hard_delete"
	AuditActionCreate     = "entity.create"
	AuditActionUpdate     = "entity.update"

	AuditStatusSuccess = "success"
	AuditStatusFailed  = "failed"
)

type AuditService struct {
	repo *repository.AuditRepository
	now  func() time.Time
}

func NewAuditService(repo *repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo, now: time.Now}
}

func (s *AuditService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Log appends an audit record. A failed write is logged and returned; callers
// whose primary action already happened decide whether it matters.
func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, before any, after any, errText string) error {
	if s == nil {
		return nil
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: s.now().UTC().Format(time.RFC3339Nano),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Before:     before,
		After:      after,
		Error:      errText,
	}

	if err := s.repo.Log(ctx, entry); err != nil {
		slog.Warn("audit write failed", "action", action, "resource", resource, "error", err)
		return err
	}
	return nil
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	from, err := parseOptionalAuditTime(query.From)
	if err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'from' datetime format", query.From)
	}

	to, err := parseOptionalAuditTime(query.To)
	if err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'to' datetime format", query.To)
	}

	return s.repo.Query(ctx, query, from, to)
}

// PurgesOnDay counts successful purges (manual and expiry) on the calendar
// day of now, in now's location.
func (s *AuditService) PurgesOnDay(ctx context.Context, now time.Time) (int, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.repo.Count(ctx, AuditActionPurge, AuditStatusSuccess, start, start.AddDate(0, 0, 1))
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	return parseAuditTime(trimmed)
}

func parseAuditTime(raw string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}

	return value.UTC(), nil
}
