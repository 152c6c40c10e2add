// Device HTTP handlers.
//
// This file exposes the read-side snapshot endpoint:
//   - GET /device/latest            (paginated fleet listing, ETag support)
//   - GET /device/latest?deviceId=  (single device snapshot)
//
// The listing supports weak ETags derived from aggregate fleet stats so
// polling dashboards can short-circuit with 304.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-sensorhub-backend/internal/repo"
	"github.com/tbourn/go-sensorhub-backend/internal/services"
	"github.com/tbourn/go-sensorhub-backend/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDevicesResponse wraps a page of device snapshots and pagination
// information.
type ListDevicesResponse struct {
	Devices    []services.DeviceSnapshot `json:"devices"`
	Pagination Pagination                `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// LatestDevice returns device snapshot state.
//
// With ?deviceId= it returns the single device's snapshot (200/404).
// Without it, it returns a paginated fleet listing with a weak ETag; a
// matching If-None-Match yields 304.
func (h *Handlers) LatestDevice(c *gin.Context) {
	ctx := c.Request.Context()

	if deviceID := strings.TrimSpace(c.Query("deviceId")); deviceID != "" {
		snap, err := h.deviceSvc.Latest(ctx, deviceID)
		if err != nil {
			if errors.Is(err, services.ErrDeviceNotFound) {
				fail(c, http.StatusNotFound, ErrCodeNotFound, "Device not found")
				return
			}
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
			return
		}
		ok(c, http.StatusOK, snap)
		return
	}

	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, isReal := h.deviceSvc.(*services.DeviceService); isReal {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.DevicesStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"devices:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.deviceSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListDevicesResponse{
		Devices: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}
