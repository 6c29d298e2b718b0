package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recorder-backend/internal/http/middleware"
	"github.com/tbourn/go-recorder-backend/internal/sources/vendor"
)

// DevicesResponse lists the caller's vendor devices.
type DevicesResponse struct {
	Devices []vendor.Device `json:"devices"`
}

// ConnectionResponse reports whether the stored credential works.
type ConnectionResponse struct {
	OK bool `json:"ok"`
}

// SyncVendor godoc
// @ID          syncVendor
// @Summary     Import vendor recordings now
// @Description Walks the caller's vendor recordings and imports files not yet in the catalog. Files already imported count as duplicates.
// @Tags        Vendor
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user id" format(uuid)
// @Success     200  {object} ingest.SyncReport
// @Failure     409  {object} handlers.ErrorResponse "No vendor account"
// @Failure     502  {object} handlers.ErrorResponse "Vendor rejected the credential or failed"
// @Router      /vendor/sync [post]
func (h *Handlers) SyncVendor(c *gin.Context) {
	report, err := h.vendSvc.SyncNow(c.Request.Context(), userID(c))
	if err != nil {
		if report != nil {
			middleware.LoggerFrom(c).Warn().
				Int("imported", report.Imported).
				Int("failed", report.Failed).
				Msg("vendor sync aborted")
		}
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, report)
}

// ListDevices godoc
// @ID          listDevices
// @Summary     List vendor devices
// @Tags        Vendor
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user id" format(uuid)
// @Success     200  {object} handlers.DevicesResponse
// @Failure     409  {object} handlers.ErrorResponse "No vendor account"
// @Failure     502  {object} handlers.ErrorResponse "Vendor failure"
// @Router      /vendor/devices [get]
func (h *Handlers) ListDevices(c *gin.Context) {
	devices, err := h.vendSvc.Devices(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, DevicesResponse{Devices: devices})
}

// TestVendor godoc
// @ID          testVendor
// @Summary     Check the vendor credential
// @Tags        Vendor
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user id" format(uuid)
// @Success     200  {object} handlers.ConnectionResponse
// @Failure     409  {object} handlers.ErrorResponse "No vendor account"
// @Router      /vendor/test [get]
func (h *Handlers) TestVendor(c *gin.Context) {
	good, err := h.vendSvc.Test(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ConnectionResponse{OK: good})
}
