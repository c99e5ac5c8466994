// Package export renders submissions and guest list registrations as .xlsx workbooks
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	SubmissionsSheet   = "Submissões"
	RegistrationsSheet = "Lista VIP"

	timestampLayout = "02/01/2006 15:04"
	dateLayout      = "02/01/2006"
)

var submissionHeader = []string{
	"Nome", "E-mail", "Instagram", "Gênero", "Evento", "Post", "Tipo", "Status",
	"Enviado em", "Aprovado em", "Motivo da rejeição", "Faixa de seguidores",
	"UTM Source", "UTM Medium", "UTM Campaign",
}

var registrationHeader = []string{
	"Nome", "E-mail", "Telefone", "Gênero", "Evento", "Data", "Inscrito em",
	"UTM Source", "UTM Medium", "UTM Campaign", "Suspeito de bot",
}

var statusLabels = map[model.SubmissionStatus]string{
	model.StatusPending:  "Pendente",
	model.StatusApproved: "Aprovado",
	model.StatusRejected: "Rejeitado",
}

var genderLabels = map[string]string{
	"male":   "Masculino",
	"female": "Feminino",
	"other":  "Outro",
}

// SubmissionsFilename is the download name of a submissions export made on day
func SubmissionsFilename(day time.Time) string {
	return "submissoes_" + day.Format("2006-01-02") + ".xlsx"
}

// RegistrationsFilename is the download name of a guest list export made on day
func RegistrationsFilename(day time.Time) string {
	return "lista_vip_" + day.Format("2006-01-02") + ".xlsx"
}

// Submissions builds a workbook with one row per submission, in the given order.
// The caller owns the returned file and must Close it.
func Submissions(rows []model.SubmissionRow) (*excelize.File, error) {
	f, err := newWorkbook(SubmissionsSheet, submissionHeader)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		post := ""
		if r.PostNumber != nil {
			post = strconv.Itoa(*r.PostNumber)
		}
		typ := "Post"
		if r.SubmissionType == model.SubmissionSale {
			typ = "Venda"
		}
		values := []any{
			r.ProfileName,
			r.ProfileEmail,
			r.ProfileInstagram,
			genderLabel(r.ProfileGender),
			r.EventTitle,
			post,
			typ,
			statusLabels[r.Status],
			r.SubmittedAt.Format(timestampLayout),
			formatOptional(r.ApprovedAt, timestampLayout),
			r.RejectionReason,
			r.FollowersRange,
			r.UTMSource,
			r.UTMMedium,
			r.UTMCampaign,
		}
		if err := setRow(f, SubmissionsSheet, i+2, values); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Registrations builds a workbook with one row per guest list registration
func Registrations(rows []model.GuestListRegistration) (*excelize.File, error) {
	f, err := newWorkbook(RegistrationsSheet, registrationHeader)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		bot := "Não"
		if r.IsBotSuspect {
			bot = "Sim"
		}
		values := []any{
			r.FullName,
			r.Email,
			r.Phone,
			genderLabel(r.Gender),
			r.EventName,
			formatOptional(r.EventDate, dateLayout),
			r.RegisteredAt.Format(timestampLayout),
			r.UTMSource,
			r.UTMMedium,
			r.UTMCampaign,
			bot,
		}
		if err := setRow(f, RegistrationsSheet, i+2, values); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write streams the workbook to w and closes it
func Write(w io.Writer, f *excelize.File) error {
	defer f.Close()
	_, err := f.WriteTo(w)
	return err
}

func newWorkbook(sheet string, header []string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := setRow(f, sheet, 1, cells); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		f.Close()
		return nil, err
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", last, 20); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func genderLabel(g string) string {
	if l, ok := genderLabels[g]; ok {
		return l
	}
	return g
}

func formatOptional(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}
