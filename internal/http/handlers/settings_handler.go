package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/http/middleware"
	"github.com/tbourn/go-recorder-backend/internal/services"
)

// CreateUserRequest is the JSON payload for registering a user.
type CreateUserRequest struct {
	Email string `json:"email" binding:"required" example:"alice@example.com"`
}

// StorageSettings is both the request and the response body of the storage
// settings endpoints. Secret parameters are masked in responses.
type StorageSettings struct {
	Backend   string         `json:"backend"              binding:"required" example:"s3"`
	Params    map[string]any `json:"params"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// VendorSettingsRequest links the caller's vendor account. The token may be
// sent in the X-Vendor-Token header instead of the body.
type VendorSettingsRequest struct {
	Token   string `json:"token"    example:"vt_8f1c..."`
	BaseURL string `json:"base_url" example:"https://api.vendor.example"`
}

var secretParams = map[string]struct{}{
	"secret_access_key": {},
	"session_token":     {},
}

func storageSettingsFrom(sc *domain.StorageConfig) StorageSettings {
	params := map[string]any{}
	_ = json.Unmarshal([]byte(sc.Params), &params)
	for k := range params {
		if _, secret := secretParams[strings.ToLower(k)]; secret {
			params[k] = "***"
		}
	}
	out := StorageSettings{Backend: sc.Backend, Params: params}
	if !sc.UpdatedAt.IsZero() {
		at := sc.UpdatedAt
		out.UpdatedAt = &at
	}
	return out
}

// CreateUser godoc
// @ID          createUser
// @Summary     Register a user
// @Description Creates a user; the returned id is the X-User-ID for every other call.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreateUserRequest  true  "User"
// @Success     201  {object} domain.User
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     409  {object} handlers.ErrorResponse "Email already registered"
// @Router      /users [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email required")
		return
	}
	u, err := h.setSvc.CreateUser(c.Request.Context(), req.Email)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, u)
}

// GetStorageSettings godoc
// @ID          getStorageSettings
// @Summary     Get storage settings
// @Tags        Settings
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user id" format(uuid)
// @Success     200  {object} handlers.StorageSettings
// @Router      /settings/storage [get]
func (h *Handlers) GetStorageSettings(c *gin.Context) {
	sc, err := h.setSvc.StorageConfig(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, storageSettingsFrom(sc))
}

// PutStorageSettings godoc
// @ID          putStorageSettings
// @Summary     Choose the storage backend
// @Description Validates the backend parameters by building a provider, then stores them. Existing recordings keep the backend they were written to.
// @Tags        Settings
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user id" format(uuid)
// @Param       body       body    handlers.StorageSettings  true  "Backend and params"
// @Success     200  {object} handlers.StorageSettings
// @Failure     400  {object} handlers.ErrorResponse "Invalid settings"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Router      /settings/storage [put]
func (h *Handlers) PutStorageSettings(c *gin.Context) {
	var req StorageSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "backend required")
		return
	}
	sc, err := h.setSvc.SetStorage(c.Request.Context(), userID(c), req.Backend, req.Params)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, storageSettingsFrom(sc))
}

// PutVendorSettings godoc
// @ID          putVendorSettings
// @Summary     Link the vendor account
// @Tags        Settings
// @Accept      json
// @Param       X-User-ID       header  string  true   "Caller user id" format(uuid)
// @Param       X-Vendor-Token  header  string  false  "Vendor token (alternative to body)"
// @Param       body            body    handlers.VendorSettingsRequest  false  "Credential"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid settings"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Router      /settings/vendor [put]
func (h *Handlers) PutVendorSettings(c *gin.Context) {
	var req VendorSettingsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	if tok := strings.TrimSpace(c.GetHeader(middleware.HeaderVendorToken)); tok != "" {
		req.Token = tok
	}
	in := services.VendorAccountInput{Token: req.Token, BaseURL: req.BaseURL}
	if err := h.setSvc.SetVendorAccount(c.Request.Context(), userID(c), in); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
