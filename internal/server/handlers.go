package server

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shouni/tryon-kit/pkg/decoder"
	"github.com/shouni/tryon-kit/pkg/tryon"
)

const (
	msgBusy     = "A generation is already running. Please wait for it to finish."
	maxFormMem  = 32 << 20
	maxPromptSz = 1 << 20
)

type pageData struct {
	Prompt         string
	HasPerson      bool
	HasGarment     bool
	PersonPreview  template.URL
	GarmentPreview template.URL
	Message        string
	Failed         bool
	Result         template.URL
}

type snapshotResponse struct {
	ID             string `json:"id"`
	State          string `json:"state"`
	Message        string `json:"message,omitempty"`
	Failed         bool   `json:"failed"`
	HasPerson      bool   `json:"has_person"`
	HasGarment     bool   `json:"has_garment"`
	HasResult      bool   `json:"has_result"`
	ResultMimeType string `json:"result_mime_type,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, sessionFrom(r.Context()), "")
}

// handleGenerateForm はフォーム送信を受け、アップロードとプロンプトを反映してから同期的に生成します。
func (s *Server) handleGenerateForm(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, multipartLimit(s.opts.MaxUploadBytes, 2))
	if err := r.ParseMultipartForm(maxFormMem); err != nil {
		s.render(w, r, statusForUploadErr(err), sess, "Could not read the upload: "+err.Error())
		return
	}

	for _, slot := range []tryon.Slot{tryon.SlotPerson, tryon.SlotGarment} {
		img, err := readUpload(r, string(slot), s.opts.MaxUploadBytes)
		if err != nil {
			s.render(w, r, statusForUploadErr(err), sess, "Could not read the "+string(slot)+" image: "+err.Error())
			return
		}
		if img != nil {
			sess.SetImage(slot, img)
		}
	}
	if _, ok := r.MultipartForm.Value["prompt"]; ok {
		sess.SetPrompt(r.FormValue("prompt"))
	}

	if _, err := sess.Generate(r.Context()); errors.Is(err, tryon.ErrBusy) {
		s.render(w, r, http.StatusConflict, sess, msgBusy)
		return
	}
	s.render(w, r, http.StatusOK, sess, "")
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, sess *tryon.Session, errMsg string) {
	snap := sess.Snapshot()
	data := pageData{
		Prompt:     snap.Prompt,
		HasPerson:  snap.HasPerson,
		HasGarment: snap.HasGarment,
		Message:    snap.Message,
		Failed:     snap.Failed,
	}
	if errMsg != "" {
		data.Message, data.Failed = errMsg, true
	}
	if person, garment := sess.Image(tryon.SlotPerson), sess.Image(tryon.SlotGarment); person != nil && garment != nil {
		data.PersonPreview = dataURI(person.Ext.MimeType(), person.Data)
		data.GarmentPreview = dataURI(garment.Ext.MimeType(), garment.Data)
	}
	if snap.Result != nil {
		data.Result = dataURI(snap.Result.MimeType, snap.Result.Data)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		slog.ErrorContext(r.Context(), "ページの描画に失敗しました", "error", err)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSnapshotResponse(sessionFrom(r.Context()).Snapshot()))
}

func (s *Server) handlePutPrompt(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPromptSz))
	if err != nil {
		writeError(w, statusForUploadErr(err), err.Error())
		return
	}
	sessionFrom(r.Context()).SetPrompt(string(body))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutImage(w http.ResponseWriter, r *http.Request) {
	slot, err := tryon.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, multipartLimit(s.opts.MaxUploadBytes, 1))
	if err := r.ParseMultipartForm(maxFormMem); err != nil {
		writeError(w, statusForUploadErr(err), err.Error())
		return
	}
	img, err := readUpload(r, "image", s.opts.MaxUploadBytes)
	if err != nil {
		writeError(w, statusForUploadErr(err), err.Error())
		return
	}
	if img == nil {
		writeError(w, http.StatusBadRequest, "multipart field \"image\" is required")
		return
	}

	sessionFrom(r.Context()).SetImage(slot, img)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	slot, err := tryon.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	img := sessionFrom(r.Context()).Image(slot)
	if img == nil {
		writeError(w, http.StatusNotFound, "no "+string(slot)+" image uploaded")
		return
	}
	writeBytes(w, img.Ext.MimeType(), img.Data)
}

// handleStartGenerate は生成を非同期に開始し、進行状況は GET /api/session で確認させます。
func (s *Server) handleStartGenerate(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if _, err := sess.Start(r.Context()); err != nil {
		writeError(w, http.StatusConflict, msgBusy)
		return
	}
	writeJSON(w, http.StatusAccepted, toSnapshotResponse(sess.Snapshot()))
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	snap := sessionFrom(r.Context()).Snapshot()
	if snap.Result == nil {
		writeError(w, http.StatusNotFound, "no result available")
		return
	}
	writeBytes(w, snap.Result.MimeType, snap.Result.Data)
}

func toSnapshotResponse(snap tryon.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		ID:         snap.ID,
		State:      snap.State.String(),
		Message:    snap.Message,
		Failed:     snap.Failed,
		HasPerson:  snap.HasPerson,
		HasGarment: snap.HasGarment,
		HasResult:  snap.Result != nil,
	}
	if snap.Result != nil {
		resp.ResultMimeType = snap.Result.MimeType
	}
	return resp
}

func dataURI(mimeType string, data []byte) template.URL {
	return template.URL("data:" + mimeType + ";base64," + decoder.Encode(data))
}

func writeBytes(w http.ResponseWriter, mimeType string, data []byte) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
