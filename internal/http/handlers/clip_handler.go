// Clip HTTP handlers.
//
// This file exposes REST endpoints for clip resources:
//   - POST   /clips         (create; Idempotency-Key aware)
//   - GET    /clips/{code}  (read)
//   - DELETE /clips/{code}  (delete before expiry)
//
// Handlers are transport-thin: they check request shape, call the clip
// service, and translate results and errors into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/quickclip/internal/clip"
	"github.com/tbourn/quickclip/internal/domain"
	"github.com/tbourn/quickclip/internal/http/middleware"
	"github.com/tbourn/quickclip/internal/services"
)

// ClipService defines the clip operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ClipService interface {
	// Create stores text for ttlSeconds. replayed is true when an earlier
	// request with the same idempotency key already created the clip.
	Create(ctx context.Context, clientID, idemKey, text string, ttlSeconds int) (c *domain.Clip, replayed bool, err error)
	// Get returns a live clip and its remaining whole seconds.
	Get(ctx context.Context, code string) (*domain.Clip, int, error)
	// Delete removes a live clip.
	Delete(ctx context.Context, code string) error
}

// Handlers groups the clip endpoints.
type Handlers struct {
	svc     ClipService
	codeLen int
}

// New constructs Handlers bound to svc. codeLen is the configured code
// length used to reject malformed codes before they reach storage; values
// <= 0 fall back to clip.DefaultCodeLength.
func New(svc ClipService, codeLen int) *Handlers {
	if codeLen <= 0 {
		codeLen = clip.DefaultCodeLength
	}
	return &Handlers{svc: svc, codeLen: codeLen}
}

//
// DTOs
//

// CreateClipRequest is the JSON payload for creating a clip.
type CreateClipRequest struct {
	// Text to share. Control characters are stripped and surrounding
	// whitespace trimmed before the length check.
	Text string `json:"text" example:"hello world"`
	// Timer is the clip lifetime in seconds.
	Timer int `json:"timer" example:"60" minimum:"30" maximum:"600"`
}

// CreateClipResponse is returned by POST /clips.
type CreateClipResponse struct {
	Code      string    `json:"code" example:"K7QP2M"`
	ExpiresAt time.Time `json:"expires_at"`
	Timer     int       `json:"timer" example:"60"`
	Message   string    `json:"message" example:"Clip created successfully"`
}

// ClipResponse is returned by GET /clips/{code}.
type ClipResponse struct {
	Code             string    `json:"code" example:"K7QP2M"`
	Text             string    `json:"text" example:"hello world"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int       `json:"remaining_seconds" example:"42"`
}

// CreateClip handles POST /clips.
//
// @ID          createClip
// @Summary     Create a clip
// @Description Stores text under a fresh short code for `timer` seconds.
// @Description Supports idempotency via the Idempotency-Key header (same key → same clip while it lives).
// @Tags        Clips
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateClipRequest  true  "Clip payload"
// @Success     201  {object}  handlers.CreateClipResponse
// @Header      201  {string}  Idempotent-Replayed  "true when the response replays an earlier request"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid text or timer"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /clips [post]
func (h *Handlers) CreateClip(c *gin.Context) {
	var req CreateClipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	idemKey, _ := middleware.GetIdempotencyKey(c)
	clp, replayed, err := h.svc.Create(c.Request.Context(), middleware.ClientID(c), idemKey, req.Text, req.Timer)
	if err != nil {
		var verr *clip.ValidationError
		switch {
		case errors.As(err, &verr):
			fail(c, http.StatusBadRequest, ErrCodeValidation, verr.Error())
		case errors.Is(err, services.ErrCodeSpaceExhausted):
			_ = c.Error(err)
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not allocate a code")
		default:
			_ = c.Error(err)
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		}
		return
	}

	if replayed {
		c.Header(middleware.HeaderIdempotentReplay, "true")
	} else {
		middleware.LoggerFrom(c).Info().
			Int("timer", clp.TTLSeconds).
			Time("expires_at", clp.ExpiresAt).
			Msg("clip created")
	}

	ok(c, http.StatusCreated, CreateClipResponse{
		Code:      clp.Code,
		ExpiresAt: clp.ExpiresAt,
		Timer:     clp.TTLSeconds,
		Message:   "Clip created successfully",
	})
}

// GetClip handles GET /clips/{code}.
//
// @ID          getClip
// @Summary     Read a clip
// @Description Returns the text of a live clip. Codes are matched case-insensitively.
// @Tags        Clips
// @Produce     json
// @Param       code  path  string  true  "Clip code"  example(K7QP2M)
// @Success     200  {object}  handlers.ClipResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed code"
// @Failure     404  {object}  handlers.ErrorResponse  "Clip not found or expired"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /clips/{code} [get]
func (h *Handlers) GetClip(c *gin.Context) {
	code, valid := h.code(c)
	if !valid {
		return
	}

	clp, remaining, err := h.svc.Get(c.Request.Context(), code)
	switch {
	case errors.Is(err, services.ErrClipNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "clip not found or expired")
		return
	case err != nil:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}

	ok(c, http.StatusOK, ClipResponse{
		Code:             clp.Code,
		Text:             clp.Text,
		ExpiresAt:        clp.ExpiresAt,
		RemainingSeconds: remaining,
	})
}

// DeleteClip handles DELETE /clips/{code}.
//
// @ID          deleteClip
// @Summary     Delete a clip
// @Description Removes a live clip before it expires.
// @Tags        Clips
// @Param       code  path  string  true  "Clip code"  example(K7QP2M)
// @Success     204  "Deleted"
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed code"
// @Failure     404  {object}  handlers.ErrorResponse  "Clip not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /clips/{code} [delete]
func (h *Handlers) DeleteClip(c *gin.Context) {
	code, valid := h.code(c)
	if !valid {
		return
	}

	err := h.svc.Delete(c.Request.Context(), code)
	switch {
	case errors.Is(err, services.ErrClipNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "clip not found")
	case err != nil:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	default:
		noContent(c)
	}
}

// code reads the :code path parameter and rejects malformed values with 400.
func (h *Handlers) code(c *gin.Context) (string, bool) {
	code := c.Param("code")
	if !clip.ValidCode(code, h.codeLen) {
		fail(c, http.StatusBadRequest, ErrCodeBadCode, "malformed clip code")
		return "", false
	}
	return clip.NormalizeCode(code), true
}
