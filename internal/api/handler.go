package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/generator"
	"maintenance-backend/internal/mw"
	"maintenance-backend/internal/store"
)

// TaskGenerator runs task generation on demand.
type TaskGenerator interface {
	GenerateTasks(ctx context.Context, at time.Time, window time.Duration) (generator.Summary, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	gen     TaskGenerator
	webpush *webpush.Options
	loc     *time.Location
	window  time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// Options configures a Handler. Zero values fall back to UTC, the generator's
// default window and a no-op logger.
type Options struct {
	Webpush  *webpush.Options
	Location *time.Location
	Window   time.Duration
	Logger   *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, gen TaskGenerator, opts Options) *Handler {
	h := &Handler{
		store:   s,
		gen:     gen,
		webpush: opts.Webpush,
		loc:     opts.Location,
		window:  opts.Window,
		now:     time.Now,
		log:     opts.Logger,
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.window <= 0 {
		h.window = generator.DefaultWindow
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// respondError maps error kinds onto HTTP status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// idParam parses a positive path id, answering 400 when it is malformed.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// requireActor returns the acting user or answers 400.
func requireActor(c *gin.Context) (int64, bool) {
	id := mw.ActorID(c)
	if id == nil {
		badRequest(c, mw.UserHeader+" header is required")
		return 0, false
	}
	return *id, true
}

// bindOptionalJSON binds the body when there is one.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// day parses a YYYY-MM-DD date in the plant timezone; empty means today.
func (h *Handler) day(raw string) (time.Time, error) {
	if raw == "" {
		n := h.now().In(h.loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, h.loc), nil
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, h.loc)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q, use YYYY-MM-DD", raw)
	}
	return d, nil
}

// instant parses an RFC 3339 timestamp; empty means now.
func (h *Handler) instant(raw string) (time.Time, error) {
	if raw == "" {
		return h.now(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid timestamp %q, use RFC3339", raw)
	}
	return t, nil
}
