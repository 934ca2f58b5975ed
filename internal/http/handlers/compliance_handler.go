// Compliance HTTP handlers.
//
//   - POST /validate                          (content rules only)
//   - POST /companies/{companyID}/checks      (pre-send decision)
//   - GET  /companies/{companyID}/quality     (quality score)
//   - GET  /companies/{companyID}/limits      (tier and usage)
//   - GET  /companies/{companyID}/status      (roll-up health)
//
// A denied check is a 200 with allowed=false and a reason. Only a storage
// failure is an error (503), and dispatchers must treat it as a denial.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-compliance/internal/services"
)

// ValidateRequest is the JSON payload for content validation.
type ValidateRequest struct {
	Text string `json:"text" example:"Hola, tu pedido 123 fue enviado"`
	// MessageType defaults to text. Media types accept an empty caption.
	MessageType string `json:"message_type,omitempty" example:"text"`
}

// CheckSendRequest is the JSON payload for the pre-send check.
type CheckSendRequest struct {
	Phone string `json:"phone" binding:"required" example:"+56999999999"`
	Text  string `json:"text" example:"Hola, tu pedido 123 fue enviado"`
	// MessageType "template" may be sent outside the 24-hour window.
	MessageType string `json:"message_type,omitempty" example:"text"`
}

// Validate godoc
// @ID          validateContent
// @Summary     Validate message content
// @Description Applies length, spam and prohibited-content rules. Never touches storage.
// @Tags        Compliance
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ValidateRequest  true  "Content"
//
// @Success     200  {object}  services.ValidationResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /validate [post]
func (h *Handlers) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ok(c, http.StatusOK, h.validator.Validate(req.Text, req.MessageType))
}

// CheckSend godoc
// @ID          checkSend
// @Summary     Decide whether a message may be sent
// @Description Runs consent, window, content and limit gates in order; the first failing gate is the reason. Every outcome is journaled.
// @Tags        Compliance
// @Accept      json
// @Produce     json
//
// @Param       companyID  path  int  true  "Company ID"  minimum(1)
// @Param       body       body  handlers.CheckSendRequest  true  "Outbound message"
//
// @Success     200  {object}  services.Decision
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable: treat as denied"
// @Router      /companies/{companyID}/checks [post]
func (h *Handlers) CheckSend(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	var req CheckSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone required")
		return
	}

	d, err := h.compliance.CheckSend(c.Request.Context(), services.SendRequest{
		CompanyID:   cid,
		Phone:       req.Phone,
		Text:        req.Text,
		MessageType: req.MessageType,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// Quality godoc
// @ID          getQuality
// @Summary     Quality score
// @Description Returns the quality score over the trailing window with the counts it was derived from. Companies without outbound history get the cold-start score.
// @Tags        Compliance
// @Produce     json
//
// @Param       companyID  path  int  true  "Company ID"  minimum(1)
//
// @Success     200  {object}  domain.QualityScoreSnapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /companies/{companyID}/quality [get]
func (h *Handlers) Quality(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	snap, err := h.quality.Metrics(c.Request.Context(), cid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// Limits godoc
// @ID          getLimits
// @Summary     Send tier and usage
// @Description Returns the messaging tier for the current score, its hourly and daily limits, and usage over the rolling hour and day. success=false with reason no_history means the conservative lowest tier applies.
// @Tags        Compliance
// @Produce     json
//
// @Param       companyID  path  int  true  "Company ID"  minimum(1)
//
// @Success     200  {object}  services.LimitsResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /companies/{companyID}/limits [get]
func (h *Handlers) Limits(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	res, err := h.quality.CheckLimits(c.Request.Context(), cid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Status godoc
// @ID          getStatus
// @Summary     Compliance status
// @Description Rolls recent violations and the quality score into an overall score and a health band (healthy, warning, critical).
// @Tags        Compliance
// @Produce     json
//
// @Param       companyID  path  int  true  "Company ID"  minimum(1)
//
// @Success     200  {object}  services.ComplianceStatus
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /companies/{companyID}/status [get]
func (h *Handlers) Status(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	st, err := h.events.Status(c.Request.Context(), cid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}
