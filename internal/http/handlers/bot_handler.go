package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recorder-backend/internal/ingest"
)

// BotStartResponse reports whether a start request launched the loop.
type BotStartResponse struct {
	Started bool             `json:"started"`
	Status  ingest.BotStatus `json:"status"`
}

// StartBot godoc
// @ID          startBot
// @Summary     Start the bot ingestion loop
// @Description Launches long polling in the background. Returns 202 when the loop was started and 200 when it was already running.
// @Tags        Bot
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user id" format(uuid)
// @Success     202  {object} handlers.BotStartResponse "Started"
// @Success     200  {object} handlers.BotStartResponse "Already running"
// @Failure     409  {object} handlers.ErrorResponse "Bot not configured"
// @Router      /bot/start [post]
func (h *Handlers) StartBot(c *gin.Context) {
	// The loop must outlive this request.
	started, err := h.botSvc.Start(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	ok(c, status, BotStartResponse{Started: started, Status: h.botSvc.Status()})
}

// StopBot godoc
// @ID          stopBot
// @Summary     Stop the bot ingestion loop
// @Tags        Bot
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user id" format(uuid)
// @Success     200  {object} ingest.BotStatus
// @Failure     409  {object} handlers.ErrorResponse "Bot not configured"
// @Router      /bot/stop [post]
func (h *Handlers) StopBot(c *gin.Context) {
	if err := h.botSvc.Stop(); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, h.botSvc.Status())
}

// BotStatus godoc
// @ID          botStatus
// @Summary     Bot loop status
// @Tags        Bot
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user id" format(uuid)
// @Success     200  {object} ingest.BotStatus
// @Router      /bot/status [get]
func (h *Handlers) BotStatus(c *gin.Context) {
	ok(c, http.StatusOK, h.botSvc.Status())
}

// BindChat godoc
// @ID          bindChat
// @Summary     Bind a chat to the caller
// @Description Recordings received in the chat are imported for the caller. Rebinding moves the chat. Ownership of the chat is not verified: any caller who knows a chat id can bind it, so deployments must restrict who reaches this route.
// @Tags        Bot
// @Param       X-User-ID  header  string  true  "Caller user id" format(uuid)
// @Param       chat_id    path    int     true  "Chat id"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Router      /bot/bindings/{chat_id} [put]
func (h *Handlers) BindChat(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_id must be a non-zero integer")
		return
	}
	if err := h.setSvc.BindChat(c.Request.Context(), userID(c), chatID); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
