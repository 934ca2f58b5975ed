// Interaction HTTP handlers.
//
//   - POST /companies/{companyID}/interactions     (webhook: inbound/outbound events)
//   - GET  /companies/{companyID}/window/{phone}   (24-hour window)
//
// Interaction webhooks honor the Idempotency-Key header: a redelivered key
// returns the originally recorded interaction with Idempotency-Replayed: true
// and triggers no consent side effects.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-compliance/internal/http/middleware"
	"github.com/tbourn/wa-compliance/internal/services"
)

// RecordInteractionRequest is the JSON payload of the interaction webhook.
type RecordInteractionRequest struct {
	Phone string `json:"phone" binding:"required" example:"+56999999999"`
	// Type is one of message_received, message_sent, delivered, read, failed, blocked, reported.
	Type string `json:"type" binding:"required" example:"message_received"`
	// Body of inbound messages; opt-out and opt-in keywords act on consent.
	Body     string         `json:"body,omitempty" example:"STOP"`
	Metadata map[string]any `json:"metadata,omitempty" swaggertype:"object"`
}

// RecordInteraction godoc
// @ID          recordInteraction
// @Summary     Record an interaction
// @Description Appends an interaction to the log. Inbound messages open the 24-hour window; opt-out keywords revoke consent and opt-in keywords grant it.
// @Description Supports idempotency via the Idempotency-Key header (platform message id recommended).
// @Tags        Interactions
// @Accept      json
// @Produce     json
//
// @Param       companyID        path    int     true   "Company ID"  minimum(1)
// @Param       Idempotency-Key  header  string  false  "Delivery key for safe redelivery"  example(wamid.HBgLNTY5OTk5OTk5OTkVAgASGBQzQUI4)
// @Param       body             body    handlers.RecordInteractionRequest  true  "Interaction payload"
//
// @Success     201  {object}  services.InteractionOutcome  "Recorded"
// @Success     200  {object}  services.InteractionOutcome  "Replayed"
// @Header      200  {string}  Idempotency-Replayed  "true on replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /companies/{companyID}/interactions [post]
func (h *Handlers) RecordInteraction(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	var req RecordInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone and type required")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	out, err := h.compliance.RecordUserInteraction(c.Request.Context(), services.InteractionInput{
		CompanyID:      cid,
		Phone:          req.Phone,
		Type:           req.Type,
		Body:           req.Body,
		Metadata:       req.Metadata,
		IdempotencyKey: key,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	if out.Replayed {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, out)
		return
	}
	ok(c, http.StatusCreated, out)
}

// CheckWindow godoc
// @ID          checkWindow
// @Summary     Check the 24-hour window
// @Description Reports whether the last inbound message is within the customer-service window. Outside it only template messages may be sent.
// @Tags        Interactions
// @Produce     json
//
// @Param       companyID  path  int     true  "Company ID"  minimum(1)
// @Param       phone      path  string  true  "Phone number (E.164)"  example(+56999999999)
//
// @Success     200  {object}  services.WindowStatus
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /companies/{companyID}/window/{phone} [get]
func (h *Handlers) CheckWindow(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	w, err := h.window.CheckWindow(c.Request.Context(), cid, c.Param("phone"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}
