package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
)

type AttendanceHandler struct {
	Service *service.AttendanceService
	Now     func() time.Time
	Logger  *slog.Logger
}

func (h AttendanceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/attendance/roster", h.roster)
	r.Get("/attendance/report", h.report)
	r.Get("/attendance/report.xlsx", h.exportReport)
}

func (h AttendanceHandler) roster(w http.ResponseWriter, r *http.Request) {
	emps, fetchedAt, lastErr := h.Service.Snapshot()
	entries := service.BuildRoster(emps, h.now())
	resp := map[string]any{
		"date":      domain.DayKey(h.now()),
		"entries":   rosterJSON(entries),
		"fetchedAt": fetchedAt,
		"stale":     lastErr != nil,
	}
	if lastErr != nil {
		resp["warning"] = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h AttendanceHandler) report(w http.ResponseWriter, r *http.Request) {
	day, ok := h.reportDay(w, r)
	if !ok {
		return
	}
	rep, err := h.Service.Report(r.Context(), day)
	resp := map[string]any{
		"date":        rep.Date,
		"total":       rep.Total,
		"present":     rep.Present,
		"checkedOut":  rep.CheckedOut,
		"absent":      rep.Absent,
		"entries":     rosterJSON(rep.Entries),
		"production":  service.ShiftTotals(rep.Production),
		"generatedAt": rep.GeneratedAt,
	}
	if err != nil {
		resp["warning"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h AttendanceHandler) exportReport(w http.ResponseWriter, r *http.Request) {
	day, ok := h.reportDay(w, r)
	if !ok {
		return
	}
	rep, err := h.Service.Report(r.Context(), day)
	if err != nil {
		h.logger().Warn("report exported without production", "date", rep.Date, "err", err)
	}
	data, err := exportAttendanceXLSX(rep)
	if err != nil {
		writeErrorWithErr(w, http.StatusInternalServerError, "failed to build report", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"attendance_%s.xlsx\"", rep.Date))
	_, _ = w.Write(data)
}

func (h AttendanceHandler) reportDay(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	day, err := parseDateQuery(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date (use YYYY-MM-DD)")
		return time.Time{}, false
	}
	if day == nil {
		return h.now(), true
	}
	return *day, true
}

func (h AttendanceHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h AttendanceHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func rosterJSON(entries []domain.RosterEntry) []map[string]any {
	resp := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		item := map[string]any{
			"id":         e.Employee.ID,
			"name":       e.Employee.Name,
			"department": e.Employee.Department,
			"age":        e.Employee.Age,
			"state":      e.State,
			"loginTime":  nil,
			"logoutTime": nil,
			"hours":      e.Duration,
		}
		if e.Record != nil {
			if e.Record.LoginTime != "" {
				item["loginTime"] = e.Record.LoginTime
			}
			if e.Record.LogoutTime != "" {
				item["logoutTime"] = e.Record.LogoutTime
			}
		}
		resp = append(resp, item)
	}
	return resp
}

func exportAttendanceXLSX(rep domain.DailyReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Attendance"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	header := []string{"ID", "Name", "Department", "Age", "State", "Login", "Logout", "Hours"}
	for c, v := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for i, e := range rep.Entries {
		row := i + 2
		login, logout := "", ""
		if e.Record != nil {
			login, logout = e.Record.LoginTime, e.Record.LogoutTime
		}
		values := []any{
			e.Employee.ID.String(),
			e.Employee.Name,
			e.Employee.Department,
			int(e.Employee.Age),
			string(e.State),
			login,
			logout,
			e.Duration,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	summary := len(rep.Entries) + 3
	totals := [][2]any{
		{"Date", rep.Date},
		{"Present", rep.Present},
		{"Checked out", rep.CheckedOut},
		{"Absent", rep.Absent},
		{"Total", rep.Total},
	}
	for i, kv := range totals {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", summary+i), kv[0])
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", summary+i), kv[1])
	}

	output := service.ShiftTotals(rep.Production)
	if len(output) > 0 {
		prodSheet := "Production"
		if _, err := f.NewSheet(prodSheet); err != nil {
			return nil, err
		}
		for c, v := range []string{"Department", "Day shift", "Night shift", "Total"} {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			_ = f.SetCellValue(prodSheet, cell, v)
		}
		for i, d := range output {
			row := i + 2
			for c, v := range []any{d.Department, d.DayShift, d.NightShift, d.Total} {
				cell, _ := excelize.CoordinatesToCellName(c+1, row)
				_ = f.SetCellValue(prodSheet, cell, v)
			}
		}
		_ = f.SetColWidth(prodSheet, "A", "A", 18)
		_ = f.SetColWidth(prodSheet, "B", "D", 12)
	}

	_ = f.SetColWidth(sheet, "A", "A", 10)
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "C", "C", 18)
	_ = f.SetColWidth(sheet, "D", "D", 8)
	_ = f.SetColWidth(sheet, "E", "E", 12)
	_ = f.SetColWidth(sheet, "F", "H", 10)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", "H1", style)
	if len(output) > 0 {
		_ = f.SetCellStyle("Production", "A1", "D1", style)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
