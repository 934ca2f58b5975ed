// Consent HTTP handlers.
//
//   - POST   /companies/{companyID}/consents          (record opt-in)
//   - GET    /companies/{companyID}/consents/{phone}  (active consent lookup)
//   - DELETE /companies/{companyID}/consents/{phone}  (revoke)
//   - POST   /companies/{companyID}/opt-outs          (opt-out keyword)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-compliance/internal/domain"
	"github.com/tbourn/wa-compliance/internal/services"
)

//
// DTOs
//

// RecordConsentRequest is the JSON payload for recording an opt-in.
type RecordConsentRequest struct {
	// Phone in international format; normalized to E.164.
	Phone string `json:"phone" binding:"required" example:"+56999999999"`
	// Method is one of web_form, whatsapp_message, manual, test_flow.
	Method string `json:"method" binding:"required" example:"web_form"`
	// Metadata is stored with the record (source, campaign, ...).
	Metadata map[string]any `json:"metadata,omitempty" swaggertype:"object"`
}

// ConsentStatusResponse reports whether a number may be messaged.
type ConsentStatusResponse struct {
	PhoneNumber string `json:"phone_number" example:"+56999999999"`
	Active      bool   `json:"active"`
	// Latest is the newest record, active or not; omitted when none exists.
	Latest *domain.ConsentRecord `json:"latest,omitempty"`
}

// RevokeConsentResponse reports whether an active consent was closed.
type RevokeConsentResponse struct {
	Revoked bool `json:"revoked"`
}

// OptOutRequest is the JSON payload for an opt-out keyword.
type OptOutRequest struct {
	Phone    string         `json:"phone" binding:"required" example:"+56999999999"`
	Keyword  string         `json:"keyword" binding:"required" example:"STOP"`
	Metadata map[string]any `json:"metadata,omitempty" swaggertype:"object"`
}

//
// Handlers
//

// RecordConsent godoc
// @ID          recordConsent
// @Summary     Record an opt-in
// @Description Stores a consent record for the number. A previous open record is superseded, so at most one is active.
// @Tags        Consents
// @Accept      json
// @Produce     json
//
// @Param       companyID  path  int  true  "Company ID"  minimum(1)
// @Param       body       body  handlers.RecordConsentRequest  true  "Consent payload"
//
// @Success     201  {object}  domain.ConsentRecord
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /companies/{companyID}/consents [post]
func (h *Handlers) RecordConsent(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	var req RecordConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone and method required")
		return
	}

	rec, err := h.compliance.RecordConsent(c.Request.Context(), cid, req.Phone, strings.TrimSpace(req.Method), req.Metadata)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, rec)
}

// GetConsent godoc
// @ID          getConsent
// @Summary     Check consent for a number
// @Description Reports whether the number has an active consent (not revoked, within the validity horizon) and returns the latest record.
// @Tags        Consents
// @Produce     json
//
// @Param       companyID  path  int     true  "Company ID"  minimum(1)
// @Param       phone      path  string  true  "Phone number (E.164)"  example(+56999999999)
//
// @Success     200  {object}  handlers.ConsentStatusResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /companies/{companyID}/consents/{phone} [get]
func (h *Handlers) GetConsent(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	phone, err := services.NormalizePhone(c.Param("phone"))
	if err != nil {
		failErr(c, err)
		return
	}
	ctx := c.Request.Context()

	active, err := h.consents.HasActive(ctx, cid, phone)
	if err != nil {
		failErr(c, err)
		return
	}
	latest, err := h.consents.Latest(ctx, cid, phone)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ConsentStatusResponse{PhoneNumber: phone, Active: active, Latest: latest})
}

// RevokeConsent godoc
// @ID          revokeConsent
// @Summary     Revoke consent
// @Description Revokes every active consent for the number. Revoking when none is active succeeds with revoked=false.
// @Tags        Consents
// @Produce     json
//
// @Param       companyID  path   int     true   "Company ID"  minimum(1)
// @Param       phone      path   string  true   "Phone number (E.164)"  example(+56999999999)
// @Param       reason     query  string  false  "Revocation reason"  default(user_request)
//
// @Success     200  {object}  handlers.RevokeConsentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /companies/{companyID}/consents/{phone} [delete]
func (h *Handlers) RevokeConsent(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	revoked, err := h.compliance.RevokeConsent(c.Request.Context(), cid, c.Param("phone"), c.Query("reason"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RevokeConsentResponse{Revoked: revoked})
}

// OptOut godoc
// @ID          optOut
// @Summary     Process an opt-out keyword
// @Description Revokes consent when the keyword is a recognized opt-out (STOP, BAJA, ...). Idempotent: repeating it succeeds with consent_revoked=false. Unrecognized input returns success=false and changes nothing.
// @Tags        Consents
// @Accept      json
// @Produce     json
//
// @Param       companyID  path  int  true  "Company ID"  minimum(1)
// @Param       body       body  handlers.OptOutRequest  true  "Opt-out payload"
//
// @Success     200  {object}  services.OptOutResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /companies/{companyID}/opt-outs [post]
func (h *Handlers) OptOut(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	var req OptOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone and keyword required")
		return
	}

	res, err := h.compliance.HandleOptOut(c.Request.Context(), cid, req.Phone, req.Keyword, req.Metadata)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
