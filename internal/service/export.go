package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"festreg/internal/model"
)

var exportHeader = []string{
	"Registration Number", "Registration ID", "Name", "Email", "Phone", "College", "User Code",
	"Team Name", "Team Members", "Amount", "Payment Status", "Cancellation Status", "Registered At",
	"UTR Number", "Screenshot", "Payment Record Status", "Verified By", "Rejection Reason", "Paid At",
}

// ExportEvent returns the registration, owner and payment join for one event.
func (s *Service) ExportEvent(ctx context.Context, eventID string) (*model.Event, []model.ExportRow, error) {
	event, err := s.loadEvent(ctx, s.repo, eventID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.repo.GetExportRows(ctx, event.ID)
	if err != nil {
		return nil, nil, internalError(err)
	}
	return event, rows, nil
}

// ExportTable renders export rows as a header plus one line per registration.
func ExportTable(rows []model.ExportRow) [][]string {
	table := make([][]string, 0, len(rows)+1)
	table = append(table, exportHeader)
	for _, row := range rows {
		reg := row.Registration
		members := make([]string, 0, len(reg.TeamMembers))
		for _, m := range reg.TeamMembers {
			members = append(members, fmt.Sprintf("%s <%s> %s", m.Name, m.Email, m.Phone))
		}

		line := []string{
			reg.RegistrationNumber,
			reg.ID,
			row.User.Name,
			row.User.Email,
			row.User.Phone,
			row.User.College,
			row.User.Code,
			reg.TeamName,
			strings.Join(members, "; "),
			strconv.FormatInt(reg.Amount, 10),
			string(reg.PaymentStatus),
			string(reg.CancellationStatus),
			reg.CreatedAt.Format(time.RFC3339),
		}
		if p := row.Payment; p != nil {
			line = append(line, p.UTRNumber, p.ScreenshotRef, string(p.Status), p.VerifiedBy, p.RejectionReason, formatTime(p.PaidAt))
		} else {
			line = append(line, "", "", "", "", "", "")
		}
		table = append(table, line)
	}
	return table
}

func WriteCSV(w io.Writer, rows []model.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(ExportTable(rows)); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// PushExportToSheets writes the event export into a sheet tab named after the event.
// It returns the number of registrations written.
func (s *Service) PushExportToSheets(ctx context.Context, eventID string) (int, error) {
	if s.sheets == nil {
		return 0, conflictError(CodeSheetsDisabled, "Spreadsheet export is not configured")
	}
	event, rows, err := s.ExportEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	title := sheetTitle(event)
	if err := s.sheets.WriteTable(ctx, title, ExportTable(rows)); err != nil {
		s.log.Error().Err(err).Str("event_id", event.ID).Msg("failed to push export to sheets")
		return 0, internalError(err)
	}
	s.log.Info().Str("event_id", event.ID).Str("sheet", title).Int("rows", len(rows)).Msg("export pushed to sheets")
	return len(rows), nil
}

func sheetTitle(e *model.Event) string {
	title := fmt.Sprintf("%s %s", e.Name, e.Date.Format(dateLayout))
	title = strings.NewReplacer("[", "(", "]", ")", "*", "", "?", "", "/", "-", "\\", "-", ":", "-").Replace(title)
	if r := []rune(title); len(r) > 100 {
		title = string(r[:100])
	}
	return title
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
