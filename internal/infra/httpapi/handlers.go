package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"seat_monitor_bot/internal/app"
	"seat_monitor_bot/internal/domain/monitoring"
	"seat_monitor_bot/internal/domain/watch"
	idb "seat_monitor_bot/internal/infra/database"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type handlers struct {
	admin  *app.AdminService
	logger *logrus.Logger
}

type watchRequestCreate struct {
	Email       string `json:"email" binding:"required,email"`
	TermCode    string `json:"term_code"`
	SectionCode string `json:"section_code" binding:"required"`
	BlockKey    string `json:"block_key" binding:"required"`
	CourseLabel string `json:"course_label"`
}

type watchRequestOut struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	TermCode    string  `json:"term_code"`
	SectionCode string  `json:"section_code"`
	BlockKey    string  `json:"block_key"`
	CourseLabel *string `json:"course_label"`
	IsActive    bool    `json:"is_active"`
	CreatedAt   string  `json:"created_at"`
}

type sessionStatusOut struct {
	State             string  `json:"state"`
	LastCheckedAt     *string `json:"last_checked_at"`
	LastValidAt       *string `json:"last_valid_at"`
	LastError         *string `json:"last_error"`
	ReloginNotifiedAt *string `json:"relogin_notified_at"`
}

func toWatchOut(req *watch.Request) watchRequestOut {
	out := watchRequestOut{
		ID:          req.ID,
		Email:       req.Email,
		TermCode:    req.TermCode,
		SectionCode: req.SectionCode,
		BlockKey:    req.BlockKey,
		IsActive:    req.IsActive,
		CreatedAt:   req.CreatedAt.UTC().Format(time.RFC3339),
	}
	if req.CourseLabel.Valid {
		label := req.CourseLabel.String
		out.CourseLabel = &label
	}
	return out
}

func toSessionOut(session *monitoring.SessionState) sessionStatusOut {
	out := sessionStatusOut{State: string(session.State)}
	if session.LastCheckedAt.Valid {
		v := session.LastCheckedAt.Time.UTC().Format(time.RFC3339)
		out.LastCheckedAt = &v
	}
	if session.LastValidAt.Valid {
		v := session.LastValidAt.Time.UTC().Format(time.RFC3339)
		out.LastValidAt = &v
	}
	if session.LastError.Valid {
		v := session.LastError.String
		out.LastError = &v
	}
	if session.ReloginNotifiedAt.Valid {
		v := session.ReloginNotifiedAt.Time.UTC().Format(time.RFC3339)
		out.ReloginNotifiedAt = &v
	}
	return out
}

func (h *handlers) health(c *gin.Context) {
	report, err := h.admin.Health(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Health check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          report.Status,
		"app":             report.App,
		"active_watchers": report.ActiveWatches,
		"session_state":   string(report.SessionState),
	})
}

func (h *handlers) sessionStatus(c *gin.Context) {
	session, err := h.admin.SessionState(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Session status read failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read session state"})
		return
	}
	c.JSON(http.StatusOK, toSessionOut(session))
}

func (h *handlers) listWatchers(c *gin.Context) {
	rows, err := h.admin.ListWatches(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Watcher list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to list watch requests"})
		return
	}
	out := make([]watchRequestOut, 0, len(rows))
	for _, row := range rows {
		out = append(out, toWatchOut(row))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) createWatcher(c *gin.Context) {
	var payload watchRequestCreate
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	row, err := h.admin.CreateWatch(c.Request.Context(),
		payload.Email, payload.TermCode, payload.SectionCode, payload.BlockKey, payload.CourseLabel)
	if err != nil {
		if errors.Is(err, app.ErrInvalidWatchRequest) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
			return
		}
		h.logger.Errorf("Watcher create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to create watch request"})
		return
	}
	c.JSON(http.StatusCreated, toWatchOut(row))
}

func (h *handlers) disableWatcher(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid watcher id"})
		return
	}

	row, err := h.admin.DisableWatch(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, idb.ErrWatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		h.logger.Errorf("Watcher disable failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to disable watch request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": row.ID, "is_active": row.IsActive})
}
