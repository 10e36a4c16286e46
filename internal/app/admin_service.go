package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"seat_monitor_bot/internal/domain/monitoring"
	"seat_monitor_bot/internal/domain/watch"
)

// Custom application-level errors for admin service
var ErrInvalidWatchRequest = fmt.Errorf("watch request is missing required fields")

// AdminService mediates between the HTTP API and the repositories. It never
// writes seat state; that belongs to the monitor cycle alone.
type AdminService struct {
	watchRepo watch.Repository
	monRepo   monitoring.Repository
	appName   string
}

func NewAdminService(watchRepo watch.Repository, monRepo monitoring.Repository, appName string) *AdminService {
	return &AdminService{
		watchRepo: watchRepo,
		monRepo:   monRepo,
		appName:   appName,
	}
}

// CreateWatch registers a new watch request. The term code defaults to "W"
// when omitted, matching the upstream's winter-term default.
func (s *AdminService) CreateWatch(ctx context.Context, email, termCode, sectionCode, blockKey, courseLabel string) (*watch.Request, error) {
	email = strings.TrimSpace(email)
	termCode = strings.TrimSpace(termCode)
	sectionCode = strings.TrimSpace(sectionCode)
	blockKey = strings.TrimSpace(blockKey)

	if email == "" || sectionCode == "" || blockKey == "" {
		return nil, ErrInvalidWatchRequest
	}
	if termCode == "" {
		termCode = "W"
	}

	req := &watch.Request{
		Email:       email,
		TermCode:    termCode,
		SectionCode: sectionCode,
		BlockKey:    blockKey,
	}
	if courseLabel != "" {
		req.CourseLabel = sql.NullString{String: courseLabel, Valid: true}
	}

	if err := s.watchRepo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create watch request: %w", err)
	}
	return req, nil
}

func (s *AdminService) ListWatches(ctx context.Context) ([]*watch.Request, error) {
	return s.watchRepo.ListAll(ctx)
}

// DisableWatch soft-deletes a watch request and returns its updated record.
func (s *AdminService) DisableWatch(ctx context.Context, id int64) (*watch.Request, error) {
	if _, err := s.watchRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.watchRepo.Disable(ctx, id); err != nil {
		return nil, err
	}
	return s.watchRepo.GetByID(ctx, id)
}

func (s *AdminService) SessionState(ctx context.Context) (*monitoring.SessionState, error) {
	return s.monRepo.GetSessionState(ctx)
}

// HealthReport is the read-only health summary exposed by the API.
type HealthReport struct {
	Status        string
	App           string
	ActiveWatches int
	SessionState  monitoring.SessionStateTag
}

func (s *AdminService) Health(ctx context.Context) (*HealthReport, error) {
	session, err := s.monRepo.GetSessionState(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.watchRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return &HealthReport{
		Status:        "ok",
		App:           s.appName,
		ActiveWatches: len(active),
		SessionState:  session.State,
	}, nil
}
