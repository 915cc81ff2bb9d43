package contact

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/hvacform/errors"
	"github.com/kbukum/hvacform/server"
	"github.com/kbukum/hvacform/server/middleware"
	"github.com/kbukum/hvacform/validation"
)

// Handler exposes the contact form over HTTP.
type Handler struct {
	svc       *Service
	perMinute int
}

// NewHandler creates a Handler. perMinute limits submissions per client
// IP; zero disables the limit.
func NewHandler(svc *Service, perMinute int) *Handler {
	return &Handler{svc: svc, perMinute: perMinute}
}

type submitResponse struct {
	Submission *Submission `json:"submission"`
	Message    string      `json:"message"`
}

// RegisterRoutes mounts the submission endpoints under rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/submissions")
	post := []gin.HandlerFunc{h.submit}
	if h.perMinute > 0 {
		post = append([]gin.HandlerFunc{middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMinute: h.perMinute,
		})}, post...)
	}
	g.POST("", post...)
	g.GET("/:id", h.get)
}

func (h *Handler) submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.Validation(validation.MsgInvalidRequest))
		return
	}
	sub, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, submitResponse{Submission: sub, Message: MsgSubmitted})
}

func (h *Handler) get(c *gin.Context) {
	sub, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, sub)
}
