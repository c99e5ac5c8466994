package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/export"
	"github.com/teresa-solution/agency-hub-service/internal/filter"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func writeWorkbook(w http.ResponseWriter, filename string, f *excelize.File) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, f); err != nil {
		log.Error().Err(err).Str("filename", filename).Msg("Failed to stream workbook")
	}
}

// exportSubmissions exports every row matching the filters, ignoring pagination
func (h *Handler) exportSubmissions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.submissions.All(r.Context(), PrincipalFrom(r.Context()), agencyID, filter.Parse(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := export.Submissions(rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeWorkbook(w, export.SubmissionsFilename(time.Now()), f)
}

func (h *Handler) exportRegistrations(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dateID, err := optionalUUID(r.URL.Query().Get("date"), "date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	regs, err := h.guestList.Registrations(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID, dateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := export.Registrations(regs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeWorkbook(w, export.RegistrationsFilename(time.Now()), f)
}
