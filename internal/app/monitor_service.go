// internal/app/monitor_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"seat_monitor_bot/internal/domain/monitoring"
	"seat_monitor_bot/internal/domain/notify"
	"seat_monitor_bot/internal/domain/upstream"
	"seat_monitor_bot/internal/domain/watch"
	idb "seat_monitor_bot/internal/infra/database" // For ErrSeatStateNotFound
	"seat_monitor_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// AdminPinger is an optional secondary channel for relogin alerts (e.g. a
// Telegram ping to an admin chat).
type AdminPinger interface {
	SendToAdmin(text string) error
}

// MonitorService runs one polling cycle at a time: fetch the seat document,
// classify session errors, look up every active watch, persist seat state
// and decide whether an open-seat alert should go out.
type MonitorService struct {
	cfg         *config.AppConfig
	watchRepo   watch.Repository
	monRepo     monitoring.Repository
	client      upstream.Client
	notifier    notify.Notifier
	adminPinger AdminPinger // May be nil
	logger      *logrus.Logger
	now         func() time.Time
}

func NewMonitorService(
	cfg *config.AppConfig,
	watchRepo watch.Repository,
	monRepo monitoring.Repository,
	client upstream.Client,
	notifier notify.Notifier,
	adminPinger AdminPinger,
	logger *logrus.Logger,
) *MonitorService {
	return &MonitorService{
		cfg:         cfg,
		watchRepo:   watchRepo,
		monRepo:     monRepo,
		client:      client,
		notifier:    notifier,
		adminPinger: adminPinger,
		logger:      logger,
		now:         time.Now,
	}
}

// RunCycle performs one polling pass. Session-level failures (expiry, fetch
// error, invalid XML) abort the whole cycle after logging a check entry for
// every active watch; per-watch failures never interrupt sibling watches.
func (s *MonitorService) RunCycle(ctx context.Context) {
	watches, err := s.watchRepo.ListActive(ctx)
	if err != nil {
		s.logger.Errorf("Failed to list active watch requests: %v", err)
		return
	}
	if len(watches) == 0 {
		s.logger.Info("No active watch requests; monitor cycle skipped")
		return
	}

	xmlPayload, err := s.client.FetchXML(ctx)
	if err != nil {
		if errors.Is(err, upstream.ErrSessionExpired) {
			if repoErr := s.monRepo.SetSessionExpired(ctx, err.Error()); repoErr != nil {
				s.logger.Errorf("Failed to record expired session state: %v", repoErr)
			}
			s.notifyReloginOnce(ctx, err.Error())
			s.logCheckForAll(ctx, watches, monitoring.CheckStatusSessionExpired, err.Error())
			s.logger.Warn("Session expired; cycle aborted")
			return
		}
		// NotConfigured and exhausted retries both surface as fetch errors.
		if repoErr := s.monRepo.SetSessionFetchError(ctx, err.Error()); repoErr != nil {
			s.logger.Errorf("Failed to record fetch-error session state: %v", repoErr)
		}
		s.logCheckForAll(ctx, watches, monitoring.CheckStatusFetchError, err.Error())
		s.logger.Errorf("VSB fetch failed: %v", err)
		return
	}

	if err := s.monRepo.SetSessionValid(ctx); err != nil {
		s.logger.Errorf("Failed to record valid session state: %v", err)
	}

	doc, err := upstream.ParseDocument(xmlPayload)
	if err != nil {
		if repoErr := s.monRepo.SetSessionFetchError(ctx, err.Error()); repoErr != nil {
			s.logger.Errorf("Failed to record fetch-error session state: %v", repoErr)
		}
		s.logCheckForAll(ctx, watches, monitoring.CheckStatusInvalidXML, err.Error())
		s.logger.Errorf("Invalid XML payload: %v", err)
		return
	}

	for _, w := range watches {
		s.checkWatch(ctx, w, doc)
	}
}

// logCheckForAll appends the same check-log entry for every active watch.
func (s *MonitorService) logCheckForAll(ctx context.Context, watches []*watch.Request, status monitoring.CheckStatus, message string) {
	for _, w := range watches {
		if err := s.monRepo.AppendCheckLog(ctx, nullInt64(w.ID), status, message, sql.NullInt64{}); err != nil {
			s.logger.Errorf("Failed to append %s check log for watch %d: %v", status, w.ID, err)
		}
	}
}

// checkWatch processes one watch against the parsed document. All failures
// are recorded and swallowed here so one bad watch cannot abort the others.
func (s *MonitorService) checkWatch(ctx context.Context, w *watch.Request, doc *upstream.Document) {
	label := w.Label()

	osValue, err := doc.FindOpenSeats(w.TermCode, w.SectionCode, w.BlockKey)
	if err != nil {
		if upsertErr := s.monRepo.UpsertSeatState(ctx, w.ID, sql.NullInt64{}, monitoring.CheckStatusNotFound, nullString(err.Error())); upsertErr != nil {
			s.logger.Errorf("Failed to upsert seat state for watch %d: %v", w.ID, upsertErr)
		}
		if logErr := s.monRepo.AppendCheckLog(ctx, nullInt64(w.ID), monitoring.CheckStatusNotFound, err.Error(), sql.NullInt64{}); logErr != nil {
			s.logger.Errorf("Failed to append not_found check log for watch %d: %v", w.ID, logErr)
		}
		s.logger.Warnf("%s: block not found", label)
		return
	}

	status := monitoring.CheckStatusFull
	if osValue > 0 {
		status = monitoring.CheckStatusOpen
	}

	// Read the previous state before overwriting it: the alert decision
	// must see the prior cycle's observation, not this one.
	previous, err := s.monRepo.GetSeatState(ctx, w.ID)
	if err != nil {
		if err != idb.ErrSeatStateNotFound {
			s.logger.Errorf("Failed to read previous seat state for watch %d: %v", w.ID, err)
		}
		previous = nil
	}

	if err := s.monRepo.UpsertSeatState(ctx, w.ID, nullInt64(int64(osValue)), status, sql.NullString{}); err != nil {
		s.logger.Errorf("Failed to upsert seat state for watch %d: %v", w.ID, err)
	}
	message := fmt.Sprintf("Checked %s; open seats=%d", label, osValue)
	if err := s.monRepo.AppendCheckLog(ctx, nullInt64(w.ID), status, message, nullInt64(int64(osValue))); err != nil {
		s.logger.Errorf("Failed to append check log for watch %d: %v", w.ID, err)
	}

	s.logger.Infof("Checked %s - Status: %s (os=%d)", label, status, osValue)

	if shouldSendOpenAlert(previous, osValue, s.cfg.AlertCooldownMinutes, s.now()) {
		s.sendOpenAlert(ctx, w, osValue)
	}
}

// shouldSendOpenAlert decides whether an open-seat notification fires, given
// the previous cycle's seat state. Rules:
//   - zero or negative current count never alerts;
//   - a first observation with seats open always alerts;
//   - while the section stays continuously open, repeat alerts are throttled
//     by the cooldown window;
//   - a full-to-open transition always alerts, even inside a cooldown window
//     left over from an earlier open period.
func shouldSendOpenAlert(previous *monitoring.SeatState, currentOS int, cooldownMinutes int, now time.Time) bool {
	if currentOS <= 0 {
		return false
	}
	if previous == nil || !previous.LastOS.Valid {
		return true
	}
	if previous.LastOS.Int64 > 0 {
		// Still open from a previous check, only alert again after cooldown.
		if !previous.LastOpenedAlertAt.Valid {
			return true
		}
		cooldownCutoff := now.Add(-time.Duration(cooldownMinutes) * time.Minute)
		return !previous.LastOpenedAlertAt.Time.After(cooldownCutoff)
	}
	// Transition from full to open.
	return true
}

// sendOpenAlert resolves the recipient, delivers the notification and, only
// on success, stamps the seat state's alert timestamp and the alert log. A
// failed send leaves the timestamp untouched so the next cycle retries.
func (s *MonitorService) sendOpenAlert(ctx context.Context, w *watch.Request, osValue int) {
	recipient := w.Email
	if recipient == "" {
		recipient = s.cfg.AlertRecipientDefault
	}
	if recipient == "" {
		if err := s.monRepo.AppendCheckLog(ctx, nullInt64(w.ID), monitoring.CheckStatusAlertSkipped,
			"No recipient configured for open-seat alert", nullInt64(int64(osValue))); err != nil {
			s.logger.Errorf("Failed to append alert_skipped check log for watch %d: %v", w.ID, err)
		}
		return
	}

	label := w.Label()
	if !w.CourseLabel.Valid || w.CourseLabel.String == "" {
		label = fmt.Sprintf("Section %s (%s)", w.SectionCode, w.BlockKey)
	}
	subject := fmt.Sprintf("[YorkU Seat Alert] %s now has open seats", label)
	body := fmt.Sprintf(
		"A seat may be available now.\n\n"+
			"Course: %s\n"+
			"Term: %s\n"+
			"Section: %s\n"+
			"Block key: %s\n"+
			"Open seats (os): %d\n"+
			"Detected at (UTC): %s\n\n"+
			"Login to VSB quickly to verify and enroll.",
		label, w.TermCode, w.SectionCode, w.BlockKey, osValue,
		s.now().UTC().Format(time.RFC3339))

	if err := s.notifier.Send(recipient, subject, body); err != nil {
		if logErr := s.monRepo.AppendCheckLog(ctx, nullInt64(w.ID), monitoring.CheckStatusAlertError, err.Error(), nullInt64(int64(osValue))); logErr != nil {
			s.logger.Errorf("Failed to append alert_error check log for watch %d: %v", w.ID, logErr)
		}
		s.logger.Errorf("Failed sending alert for watch %d: %v", w.ID, err)
		return
	}

	sentAt := s.now().UTC()
	if err := s.monRepo.SetOpenedAlertAt(ctx, w.ID, sentAt); err != nil {
		s.logger.Errorf("Failed to stamp opened alert timestamp for watch %d: %v", w.ID, err)
	}
	if err := s.monRepo.AppendAlertLog(ctx, nullInt64(w.ID), monitoring.AlertTypeSeatOpen, map[string]any{
		"recipient":    recipient,
		"os":           osValue,
		"term_code":    w.TermCode,
		"section_code": w.SectionCode,
		"block_key":    w.BlockKey,
	}); err != nil {
		s.logger.Errorf("Failed to append alert log for watch %d: %v", w.ID, err)
	}
	if err := s.monRepo.AppendCheckLog(ctx, nullInt64(w.ID), monitoring.CheckStatusAlertSent,
		fmt.Sprintf("Open-seat alert sent to %s", recipient), nullInt64(int64(osValue))); err != nil {
		s.logger.Errorf("Failed to append alert_sent check log for watch %d: %v", w.ID, err)
	}
	s.logger.Infof("Open-seat alert sent to %s for watch %d (os=%d)", recipient, w.ID, osValue)
}

// notifyReloginOnce sends the relogin-required alert if it has not been sent
// since the session was last valid. A successful send stamps the one-shot
// gate; send failures leave the gate unset so the next expired cycle
// retries. The optional admin ping stamps the gate only when no default
// email recipient is configured at all.
func (s *MonitorService) notifyReloginOnce(ctx context.Context, errorMessage string) {
	session, err := s.monRepo.GetSessionState(ctx)
	if err != nil {
		s.logger.Errorf("Failed to read session state for relogin notification: %v", err)
		return
	}
	if session.ReloginNotifiedAt.Valid {
		return
	}

	recipient := s.cfg.AlertRecipientDefault
	if recipient == "" && s.adminPinger == nil {
		return
	}

	subject := "[YorkU Seat Monitor] VSB session expired - relogin required"
	body := fmt.Sprintf(
		"The monitor cannot access VSB because the York session appears expired.\n\n"+
			"Error: %s\n"+
			"Detected at (UTC): %s\n\n"+
			"Please log in to York + Duo, refresh VSB cookies, and update VSB_COOKIE_HEADER.",
		errorMessage, s.now().UTC().Format(time.RFC3339))

	notified := false
	if recipient != "" {
		if err := s.notifier.Send(recipient, subject, body); err != nil {
			s.logger.Errorf("Failed sending relogin alert: %v", err)
		} else {
			notified = true
			if err := s.monRepo.AppendAlertLog(ctx, sql.NullInt64{}, monitoring.AlertTypeReloginRequired, map[string]any{
				"recipient": recipient,
				"error":     errorMessage,
			}); err != nil {
				s.logger.Errorf("Failed to append relogin alert log: %v", err)
			}
		}
	}

	if s.adminPinger != nil {
		if err := s.adminPinger.SendToAdmin(subject + "\n\n" + body); err != nil {
			s.logger.Errorf("Failed sending relogin admin ping: %v", err)
		} else if recipient == "" {
			notified = true
			if err := s.monRepo.AppendAlertLog(ctx, sql.NullInt64{}, monitoring.AlertTypeReloginRequired, map[string]any{
				"channel": "telegram",
				"error":   errorMessage,
			}); err != nil {
				s.logger.Errorf("Failed to append relogin alert log: %v", err)
			}
		}
	}

	if notified {
		if err := s.monRepo.SetReloginNotified(ctx, s.now().UTC()); err != nil {
			s.logger.Errorf("Failed to stamp relogin notified timestamp: %v", err)
		}
	}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
