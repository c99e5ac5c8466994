package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/service"
)

const (
	maxUploadBytes     = 40 << 20
	maxScreenshotBytes = 8 << 20
	multipartMemory    = 16 << 20
)

func (h *Handler) intakeOptions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID, err := uuidParam(ps, "event")
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := h.intake.Options(r.Context(), PrincipalFrom(r.Context()), eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func readScreenshot(fh *multipart.FileHeader) (service.Screenshot, error) {
	if fh.Size > maxScreenshotBytes {
		return service.Screenshot{}, fmt.Errorf("%w: %s: image larger than %d MB", service.ErrValidation, fh.Filename, maxScreenshotBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return service.Screenshot{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxScreenshotBytes+1))
	if err != nil {
		return service.Screenshot{}, err
	}
	return service.Screenshot{Filename: fh.Filename, Data: data}, nil
}

// submit takes a multipart form: the SubmitRequest fields, any number of
// "screenshots" files and an optional "profile_screenshot" file
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID, err := uuidParam(ps, "event")
	if err != nil {
		writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, r, fmt.Errorf("%w: malformed form: %v", service.ErrValidation, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	postID, err := optionalUUID(r.FormValue("post_id"), "post_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := service.SubmitRequest{
		EventID:        eventID,
		PostID:         postID,
		Type:           model.SubmissionType(r.FormValue("type")),
		FollowersRange: r.FormValue("followers_range"),
		UTMSource:      r.FormValue("utm_source"),
		UTMMedium:      r.FormValue("utm_medium"),
		UTMCampaign:    r.FormValue("utm_campaign"),
	}

	var shots []service.Screenshot
	for _, fh := range r.MultipartForm.File["screenshots"] {
		shot, err := readScreenshot(fh)
		if err != nil {
			writeError(w, r, err)
			return
		}
		shots = append(shots, shot)
	}
	var profileShot *service.Screenshot
	if files := r.MultipartForm.File["profile_screenshot"]; len(files) > 0 {
		shot, err := readScreenshot(files[0])
		if err != nil {
			writeError(w, r, err)
			return
		}
		profileShot = &shot
	}

	sub, err := h.intake.Submit(r.Context(), PrincipalFrom(r.Context()), req, shots, profileShot)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}
