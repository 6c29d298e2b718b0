// Recording HTTP handlers.
//
// This file exposes the recording catalog:
//   - GET    /recordings                     (list, paginated, ETag support)
//   - POST   /recordings                     (multipart upload)
//   - GET    /recordings/{id}                (metadata + transcription)
//   - GET    /recordings/{id}/audio          (blob bytes)
//   - DELETE /recordings/{id}                (blob + row)
//   - PUT    /recordings/{id}/transcription  (attach or overwrite transcript)
//   - GET    /recordings/export              (json, txt, srt, vtt)
//   - GET    /recordings/search              (transcript search)
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/export"
	"github.com/tbourn/go-recorder-backend/internal/services"
	"github.com/tbourn/go-recorder-backend/internal/sysutil"
	"github.com/tbourn/go-recorder-backend/internal/utils"
)

//
// DTOs
//

// ListRecordingsResponse wraps a page of recordings and pagination information.
type ListRecordingsResponse struct {
	Recordings []domain.Recording `json:"recordings"`
	Pagination Pagination         `json:"pagination"`
}

// UploadResponse reports the stored recording. Duplicate is true when the
// same bytes were uploaded before; Recording is then the existing row.
type UploadResponse struct {
	Recording *domain.Recording `json:"recording"`
	Duplicate bool              `json:"duplicate"`
}

// PutTranscriptionRequest is the JSON payload for attaching a transcript.
type PutTranscriptionRequest struct {
	Text     string `json:"text"     binding:"required" example:"Reminder: renew the car insurance."`
	Language string `json:"language" example:"en-US"`
}

// SearchResponse lists transcript matches, best first.
type SearchResponse struct {
	Query string               `json:"query"`
	Hits  []services.SearchHit `json:"hits"`
}

func recordingID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recording id must be a UUID")
		return "", false
	}
	return id, true
}

//
// Handlers
//

// ListRecordings godoc
// @ID          listRecordings
// @Summary     List recordings (paginated)
// @Description Returns a page of the caller's recordings, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Recordings
// @Produce     json
//
// @Param       X-User-ID      header  string  true  "Caller user id"              format(uuid)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"recordings:3:1717000000\")
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListRecordingsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing caller"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /recordings [get]
func (h *Handlers) ListRecordings(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := utils.ParsePage(c.Query("page"), c.Query("page_size"), 20, 100)

	// ETag pre-check (best effort).
	if h.stats != nil {
		if count, ts, err := h.stats(ctx, uid); err == nil {
			etag := fmt.Sprintf(`W/"recordings:%d:%d:%d:%d"`, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.recSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListRecordingsResponse{
		Recordings: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetRecording godoc
// @ID          getRecording
// @Summary     Get a recording
// @Tags        Recordings
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user id"     format(uuid)
// @Param       id         path    string  true  "Recording ID (UUID)" format(uuid)
// @Success     200  {object} domain.Recording
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Recording not found"
// @Router      /recordings/{id} [get]
func (h *Handlers) GetRecording(c *gin.Context) {
	id, valid := recordingID(c)
	if !valid {
		return
	}
	rec, err := h.recSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// GetRecordingAudio godoc
// @ID          getRecordingAudio
// @Summary     Download recording audio
// @Description Streams the stored blob with a Content-Disposition attachment header.
// @Tags        Recordings
// @Produce     octet-stream
// @Param       X-User-ID  header  string  true  "Caller user id"     format(uuid)
// @Param       id         path    string  true  "Recording ID (UUID)" format(uuid)
// @Success     200  {file}   binary
// @Failure     404  {object} handlers.ErrorResponse "Recording not found"
// @Failure     409  {object} handlers.ErrorResponse "Blob not reachable with current storage"
// @Failure     502  {object} handlers.ErrorResponse "Storage failure"
// @Router      /recordings/{id}/audio [get]
func (h *Handlers) GetRecordingAudio(c *gin.Context) {
	id, valid := recordingID(c)
	if !valid {
		return
	}
	rec, data, ct, err := h.recSvc.Audio(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.Filename}))
	c.Data(http.StatusOK, ct, data)
}

// DeleteRecording godoc
// @ID          deleteRecording
// @Summary     Delete a recording
// @Description Removes the stored blob, then the row and its transcription.
// @Tags        Recordings
// @Param       X-User-ID  header  string  true  "Caller user id"     format(uuid)
// @Param       id         path    string  true  "Recording ID (UUID)" format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Recording not found"
// @Failure     502  {object} handlers.ErrorResponse "Storage failure"
// @Router      /recordings/{id} [delete]
func (h *Handlers) DeleteRecording(c *gin.Context) {
	id, valid := recordingID(c)
	if !valid {
		return
	}
	if err := h.recSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// UploadRecording godoc
// @ID          uploadRecording
// @Summary     Upload a recording
// @Description Stores an audio file sent as multipart field "file". Uploading identical bytes again returns the existing recording with duplicate=true.
// @Tags        Recordings
// @Accept      multipart/form-data
// @Produce     json
// @Param       X-User-ID  header    string  true  "Caller user id" format(uuid)
// @Param       file       formData  file    true  "Audio file"
// @Success     201  {object} handlers.UploadResponse "Stored"
// @Success     200  {object} handlers.UploadResponse "Already stored"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     413  {object} handlers.ErrorResponse "Too large"
// @Failure     502  {object} handlers.ErrorResponse "Storage failure"
// @Router      /recordings [post]
func (h *Handlers) UploadRecording(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "upload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `multipart field "file" required`)
		return
	}
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "upload too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read upload")
		return
	}

	out, err := h.recSvc.Upload(c.Request.Context(), userID(c), fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusCreated
	if out.Duplicate {
		status = http.StatusOK
	}
	ok(c, status, UploadResponse{Recording: out.Recording, Duplicate: out.Duplicate})
}

// PutTranscription godoc
// @ID          putTranscription
// @Summary     Attach a transcription
// @Description Stores the transcript of a recording, replacing any previous one.
// @Tags        Recordings
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user id"     format(uuid)
// @Param       id         path    string  true  "Recording ID (UUID)" format(uuid)
// @Param       body       body    handlers.PutTranscriptionRequest  true  "Transcript"
// @Success     200  {object} domain.Transcription
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Recording not found"
// @Router      /recordings/{id}/transcription [put]
func (h *Handlers) PutTranscription(c *gin.Context) {
	id, valid := recordingID(c)
	if !valid {
		return
	}
	var req PutTranscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}
	t, err := h.trSvc.Set(c.Request.Context(), userID(c), id, req.Text, req.Language)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// ExportRecordings godoc
// @ID          exportRecordings
// @Summary     Export recordings
// @Description Renders all recordings oldest first. SRT/VTT cues run from each start time for its duration; by default cue times are the UTC time of day, relative=true measures from the first recording.
// @Tags        Recordings
// @Produce     json,plain
// @Param       X-User-ID  header  string  true   "Caller user id"  format(uuid)
// @Param       format     query   string  false  "Export format"   Enums(json, txt, srt, vtt) default(json)
// @Param       relative   query   bool    false  "Cue times relative to the first recording"
// @Success     200  {string} string "Rendered export"
// @Failure     400  {object} handlers.ErrorResponse "Unknown format"
// @Router      /recordings/export [get]
func (h *Handlers) ExportRecordings(c *gin.Context) {
	f, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		failErr(c, err)
		return
	}
	var buf bytes.Buffer
	opt := export.Options{Relative: sysutil.IsTruthy(c.Query("relative"))}
	if err := h.recSvc.Export(c.Request.Context(), userID(c), &buf, f, opt); err != nil {
		failErr(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "recordings." + string(f)}))
	c.Data(http.StatusOK, f.ContentType(), buf.Bytes())
}

// SearchRecordings godoc
// @ID          searchRecordings
// @Summary     Search transcripts
// @Description Ranks the caller's transcripts by token overlap with q and returns the best passage per recording.
// @Tags        Recordings
// @Produce     json
// @Param       X-User-ID  header  string  true   "Caller user id"  format(uuid)
// @Param       q          query   string  true   "Search terms"    example(insurance renewal)
// @Param       k          query   int     false  "Max hits"        minimum(1) maximum(50) default(10)
// @Success     200  {object} handlers.SearchResponse
// @Failure     400  {object} handlers.ErrorResponse "Empty query"
// @Router      /recordings/search [get]
func (h *Handlers) SearchRecordings(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	k := utils.AtoiDefault(c.Query("k"), 10)
	if k < 1 {
		k = 1
	}
	if k > 50 {
		k = 50
	}
	hits, err := h.recSvc.Search(c.Request.Context(), userID(c), q, k)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SearchResponse{Query: q, Hits: hits})
}
