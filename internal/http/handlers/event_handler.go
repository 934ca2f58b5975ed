// Compliance event HTTP handlers.
//
//   - GET /companies/{companyID}/events   (audit trail, paginated, ETag support)
//
// The trail is append-only, so (count, newest created_at) identifies its
// state and serves as a weak validator for conditional requests.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-compliance/internal/domain"
	"github.com/tbourn/wa-compliance/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListEventsResponse wraps a page of events and pagination information.
type ListEventsResponse struct {
	Events     []domain.ComplianceEvent `json:"events"`
	Pagination Pagination               `json:"pagination"`
}

// ListEvents godoc
// @ID          listEvents
// @Summary     List compliance events (paginated)
// @Description Returns the company's audit trail, newest first, optionally filtered by event type. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Events
// @Produce     json
//
// @Param       companyID      path    int     true   "Company ID"  minimum(1)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"events:1:42:1717243200\")
// @Param       event_type     query   string  false  "Filter by type"  Enums(consent_recorded, consent_revoked, content_rejected, window_violation, limit_exceeded, consent_missing, send_permitted, check_failed)
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListEventsResponse
// @Header      200  {string}  ETag  "Weak ETag for current trail"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /companies/{companyID}/events [get]
func (h *Handlers) ListEvents(c *gin.Context) {
	cid, okID := companyID(c)
	if !okID {
		return
	}
	ctx := c.Request.Context()
	eventType := strings.TrimSpace(c.Query("event_type"))
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"))

	// ETag pre-check (best effort). The filter and page are part of the tag.
	if count, maxTS, err := h.events.Stats(ctx, cid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"events:%d:%s:%d:%d:%d:%d"`, cid, eventType, page, pageSize, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.events.List(ctx, cid, eventType, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListEventsResponse{
		Events: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
