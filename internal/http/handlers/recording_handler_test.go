package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/http/middleware"
)

func (e *testEnv) do(t *testing.T, method, path string, body []byte, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(middleware.HeaderUserID, e.user)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/recordings", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.HeaderUserID, e.user)
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestIdentityRequired(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/recordings", nil)
	w := httptest.NewRecorder()
	env.r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d; want 401", w.Code)
	}
}

func TestUploadRecording_CreatedThenDuplicate(t *testing.T) {
	env := newTestEnv(t)
	data := []byte("ID3 fake mp3 payload")

	w := env.upload(t, "memo.mp3", data)
	if w.Code != http.StatusCreated {
		t.Fatalf("first upload status=%d body=%s", w.Code, w.Body.String())
	}
	first := decode[UploadResponse](t, w)
	if first.Duplicate || first.Recording == nil || first.Recording.Filename != "memo.mp3" {
		t.Fatalf("unexpected first upload: %+v", first)
	}

	w = env.upload(t, "renamed.mp3", data)
	if w.Code != http.StatusOK {
		t.Fatalf("second upload status=%d", w.Code)
	}
	second := decode[UploadResponse](t, w)
	if !second.Duplicate || second.Recording.ID != first.Recording.ID {
		t.Fatalf("expected duplicate of %s, got %+v", first.Recording.ID, second)
	}
}

func TestUploadRecording_Rejections(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/recordings", strings.NewReader("{}"))
	req.Header.Set(middleware.HeaderUserID, env.user)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing file status=%d", w.Code)
	}

	if w := env.upload(t, "empty.mp3", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty file status=%d", w.Code)
	}
}

func TestListRecordings_PaginationAndETag(t *testing.T) {
	env := newTestEnv(t)
	for _, s := range []string{"a", "b", "c"} {
		if w := env.upload(t, s+".mp3", []byte("payload-"+s)); w.Code != http.StatusCreated {
			t.Fatalf("seed %s status=%d", s, w.Code)
		}
	}

	w := env.do(t, http.MethodGet, "/recordings?page=1&page_size=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	resp := decode[ListRecordingsResponse](t, w)
	if len(resp.Recordings) != 2 || resp.Pagination.Total != 3 || resp.Pagination.TotalPages != 2 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", resp.Pagination)
	}
	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"recordings:3:`) {
		t.Fatalf("unexpected ETag %q", etag)
	}

	w = env.do(t, http.MethodGet, "/recordings?page=1&page_size=2", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional status=%d; want 304", w.Code)
	}

	w = env.do(t, http.MethodGet, "/recordings?page=2&page_size=2", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("other page must not match the ETag, status=%d", w.Code)
	}
}

func TestGetAudioTranscribeSearchDelete(t *testing.T) {
	env := newTestEnv(t)
	data := []byte("voice memo bytes")
	rec := decode[UploadResponse](t, env.upload(t, "insurance.mp3", data)).Recording
	path := "/recordings/" + rec.ID

	if w := env.do(t, http.MethodGet, "/recordings/not-a-uuid", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/recordings/"+uuid.NewString(), nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown id status=%d", w.Code)
	}

	w := env.do(t, http.MethodGet, path+"/audio", nil, nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), data) {
		t.Fatalf("audio status=%d body=%q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("audio content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "insurance.mp3") {
		t.Fatalf("content disposition %q", cd)
	}

	body := []byte(`{"text":"Renew the car insurance before Friday.","language":"en-us"}`)
	w = env.do(t, http.MethodPut, path+"/transcription", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("transcription status=%d body=%s", w.Code, w.Body.String())
	}
	tr := decode[domain.Transcription](t, w)
	if tr.Language != "en-US" {
		t.Fatalf("language not canonicalized: %q", tr.Language)
	}
	if w := env.do(t, http.MethodPut, path+"/transcription", []byte(`{"text":"x","language":"!!"}`), nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad language status=%d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/recordings/search?q=insurance", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status=%d", w.Code)
	}
	sr := decode[SearchResponse](t, w)
	if len(sr.Hits) != 1 || sr.Hits[0].Recording.ID != rec.ID {
		t.Fatalf("unexpected hits: %+v", sr.Hits)
	}
	if w := env.do(t, http.MethodGet, "/recordings/search?q=%20", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("blank query status=%d", w.Code)
	}

	if w := env.do(t, http.MethodDelete, path, nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", w.Code)
	}
	if w := env.do(t, http.MethodGet, path, nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("after delete status=%d", w.Code)
	}
}

func TestExportRecordings(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "one.mp3", []byte("one"))

	w := env.do(t, http.MethodGet, "/recordings/export?format=txt", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status=%d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("content type %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "one.mp3") {
		t.Fatalf("export body %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "recordings.txt") {
		t.Fatalf("content disposition %q", cd)
	}

	if w := env.do(t, http.MethodGet, "/recordings/export?format=docx", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown format status=%d", w.Code)
	}
}
