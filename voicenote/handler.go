package voicenote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/hvacform/audio"
	apperrors "github.com/kbukum/hvacform/errors"
	"github.com/kbukum/hvacform/server"
	"github.com/kbukum/hvacform/sse"
	"github.com/kbukum/hvacform/storage"
	"github.com/kbukum/hvacform/validation"
)

// Handler exposes a Manager over HTTP.
type Handler struct {
	manager    *Manager
	stream     *sse.Hub
	recordings RecordingLoader
}

// RecordingLoader reads back an archived recording by key.
type RecordingLoader interface {
	Load(ctx context.Context, key string) (audio.Blob, error)
}

// NewHandler creates a Handler for m.
func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

// WithEventStream serves session events from hub. The manager must
// publish to the same hub.
func (h *Handler) WithEventStream(hub *sse.Hub) *Handler {
	h.stream = hub
	return h
}

// WithRecordings serves archived recordings from l.
func (h *Handler) WithRecordings(l RecordingLoader) *Handler {
	h.recordings = l
	return h
}

// RegisterRoutes mounts the voice note API under rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/voice-notes")
	g.POST("/sessions", h.open)
	g.GET("/sessions/:id", h.status)
	if h.stream != nil {
		g.GET("/sessions/:id/events", h.events)
	}
	g.DELETE("/sessions/:id", h.delete)
	g.POST("/sessions/:id/fragments", h.push)
	g.POST("/sessions/:id/start", h.restart)
	g.POST("/sessions/:id/stop", h.stop)
	g.PUT("/sessions/:id/text", h.setText)
	g.POST("/transcriptions", h.transcribe)
	if h.recordings != nil {
		g.GET("/recordings/*key", h.recording)
	}
}

type openRequest struct {
	SupportedFormats []string `json:"supported_formats"`
}

type openResponse struct {
	ID          string `json:"id"`
	Format      string `json:"format"`
	TimesliceMS int64  `json:"timeslice_ms"`
	Message     string `json:"message"`
}

type textRequest struct {
	Text string `json:"text"`
}

type resultResponse struct {
	Result
	Message string `json:"message"`
}

func (h *Handler) open(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		server.RespondWithError(c, apperrors.Validation(validation.MsgInvalidRequest))
		return
	}
	s, err := h.manager.Open(c.Request.Context(), req.SupportedFormats)
	if err != nil {
		h.fail(c, err)
		return
	}
	server.RespondCreated(c, openResponse{
		ID:          s.ID,
		Format:      s.Format.String(),
		TimesliceMS: h.manager.cfg.Timeslice.Milliseconds(),
		Message:     MsgStarted,
	})
}

func (h *Handler) status(c *gin.Context) {
	st, err := h.manager.Status(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	server.RespondOK(c, st)
}

func (h *Handler) events(c *gin.Context) {
	if _, err := h.manager.Get(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	sse.Serve(h.stream, c.Writer, c.Request, uuid.NewString(), c.Param("id"))
}

func (h *Handler) delete(c *gin.Context) {
	h.manager.Delete(c.Param("id"))
	server.RespondNoContent(c)
}

func (h *Handler) push(c *gin.Context) {
	limit := h.manager.cfg.FragmentLimit()
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.manager.Push(c.Param("id"), data); err != nil {
		h.fail(c, err)
		return
	}
	server.RespondNoContent(c)
}

func (h *Handler) restart(c *gin.Context) {
	if err := h.manager.Restart(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	h.status(c)
}

func (h *Handler) stop(c *gin.Context) {
	res, err := h.manager.Finish(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	server.RespondOK(c, resultResponse{Result: res, Message: MsgTranscribed})
}

func (h *Handler) setText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.Validation(validation.MsgInvalidRequest))
		return
	}
	if err := h.manager.SetText(c.Param("id"), req.Text); err != nil {
		h.fail(c, err)
		return
	}
	h.status(c)
}

// transcribe accepts a multipart upload with an "audio" file, an optional
// "format" overriding the part's content type and an optional
// "duration_seconds".
func (h *Handler) transcribe(c *gin.Context) {
	limit := h.manager.cfg.RecordingLimit()
	fh, err := c.FormFile("audio")
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("audio", "an audio file is required"))
		return
	}
	if fh.Size > limit {
		server.RespondWithError(c, apperrors.PayloadTooLarge(limit))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close() //nolint:errcheck
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		h.fail(c, err)
		return
	}

	format := audio.ParseFormat(c.PostForm("format"))
	if format.IsDefault() {
		format = audio.ParseFormat(fh.Header.Get("Content-Type"))
	}
	if format.IsDefault() || format == "application/octet-stream" {
		format = audio.FormatWebM
	}

	var elapsed time.Duration
	if v := c.PostForm("duration_seconds"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs < 0 {
			server.RespondWithError(c, apperrors.InvalidInput("duration_seconds", "must be a non-negative number"))
			return
		}
		elapsed = time.Duration(secs * float64(time.Second))
	}

	res, err := h.manager.TranscribeBlob(c.Request.Context(), audio.Blob{Format: format, Data: data}, elapsed)
	if err != nil {
		h.fail(c, err)
		return
	}
	server.RespondOK(c, resultResponse{Result: res, Message: MsgTranscribed})
}

func (h *Handler) recording(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		server.RespondWithError(c, apperrors.InvalidInput("key", "a recording key is required"))
		return
	}
	blob, err := h.recordings.Load(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = apperrors.NotFound("recording", key)
		}
		server.RespondWithError(c, err)
		return
	}
	c.Data(http.StatusOK, blob.Format.String(), blob.Data)
}

func (h *Handler) fail(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if f, ok := AsFailure(err); ok {
		err = f.AppError()
	} else {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			err = apperrors.NotFound("voice note session", c.Param("id"))
		case errors.Is(err, ErrTooManySessions):
			err = apperrors.New(apperrors.ErrCodeRateLimited,
				"Zbyt wiele aktywnych nagrań. Spróbuj ponownie za chwilę.", http.StatusTooManyRequests)
		case errors.Is(err, ErrFragmentTooLarge):
			err = apperrors.PayloadTooLarge(h.manager.cfg.FragmentLimit())
		case errors.As(err, &maxErr):
			err = apperrors.PayloadTooLarge(maxErr.Limit)
		}
	}
	server.RespondWithError(c, err)
}
