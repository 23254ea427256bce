package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Enumerations
const (
	AttendanceAbsent     AttendanceState = "Absent"
	AttendancePresent    AttendanceState = "Present"
	AttendanceCheckedOut AttendanceState = "CheckedOut"

	StockOK      StockStatus = "OK"
	StockReorder StockStatus = "Reorder"

	ToggleOK          ToggleStatus = "ok"
	ToggleUnknownUser ToggleStatus = "unknown_user"
	ToggleError       ToggleStatus = "error"

	ScanToggled     ScanOutcome = "toggled"
	ScanUnknownUser ScanOutcome = "unknown_user"
	ScanCooldown    ScanOutcome = "cooldown"
	ScanInvalid     ScanOutcome = "invalid_payload"
	ScanFailed      ScanOutcome = "toggle_failed"

	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
)

type AttendanceState string
type StockStatus string
type ToggleStatus string
type ScanOutcome string
type UserRole string

// DateLayout is the calendar day key used by attendance records.
const DateLayout = "2006-01-02"

// DayKey formats t as an attendance date key.
func DayKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ID is an identifier the store may send either as a JSON number or a JSON string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(canonicalNumber(n))
	return nil
}

// canonicalNumber spells equal numbers the same way, so 17, 17.0 and 1.7e1
// all become "17".
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return n.String()
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Whole is a count the store may send as 34, 34.0 or "34". Fractions are
// truncated toward zero; null and non-numeric strings decode as 0.
type Whole int

func (w *Whole) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*w = 0
		return nil
	}
	text := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			*w = 0
			return nil
		}
		*w = wholeFrom(f)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a number: %w", err)
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("expected a number: %w", err)
	}
	*w = wholeFrom(f)
	return nil
}

func wholeFrom(f float64) Whole {
	t := math.Trunc(f)
	if t > math.MaxInt32 {
		t = math.MaxInt32
	}
	if t < math.MinInt32 {
		t = math.MinInt32
	}
	return Whole(t)
}

func (id ID) String() string { return string(id) }

type AttendanceRecord struct {
	Date       string `json:"date"`
	LoginTime  string `json:"login_time,omitempty"`
	LogoutTime string `json:"logout_time,omitempty"`
}

// UnmarshalJSON accepts the legacy {"date","time"} shape, treating time as the login.
func (a *AttendanceRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		Date       string  `json:"date"`
		LoginTime  *string `json:"login_time"`
		LogoutTime *string `json:"logout_time"`
		Time       *string `json:"time"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	a.Date = strings.TrimSpace(raw.Date)
	a.LoginTime, a.LogoutTime = "", ""
	if raw.LoginTime != nil {
		a.LoginTime = strings.TrimSpace(*raw.LoginTime)
	}
	if a.LoginTime == "" && raw.Time != nil {
		a.LoginTime = strings.TrimSpace(*raw.Time)
	}
	if raw.LogoutTime != nil {
		a.LogoutTime = strings.TrimSpace(*raw.LogoutTime)
	}
	return nil
}

type Employee struct {
	ID         ID                 `json:"id"`
	Name       string             `json:"name"`
	Age        Whole              `json:"age"`
	Department string             `json:"department"`
	Attendance []AttendanceRecord `json:"attendance"`
	// Working is the store's own flag. It is decoded for completeness only;
	// presence is always derived from Attendance.
	Working bool `json:"working,omitempty"`
}

// RecordFor returns the attendance record for the given day key.
func (e Employee) RecordFor(day string) (AttendanceRecord, bool) {
	for _, a := range e.Attendance {
		if a.Date == day {
			return a, true
		}
	}
	return AttendanceRecord{}, false
}

type StockItem struct {
	ID           ID      `json:"id,omitempty"`
	Material     string  `json:"material"`
	Category     string  `json:"category"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	AvgDailyUse  float64 `json:"avg_daily_use"`
	LeadTimeDays Whole   `json:"lead_time_days"`
	DemandTrend  float64 `json:"demand_trend"`
	LastRestock  string  `json:"last_restock"`
}

// ShiftProduction is one department's logged output for a day.
type ShiftProduction struct {
	Department string  `json:"department"`
	DayShift   float64 `json:"day_shift"`
	NightShift float64 `json:"night_shift"`
}

func (p ShiftProduction) Total() float64 { return p.DayShift + p.NightShift }

// ScanPayload is a decoded QR text. Name and Department are only present for
// structured badges.
type ScanPayload struct {
	ID         ID
	Name       string
	Department string
}

// ToggleResult is the store's reply to an attendance toggle.
type ToggleResult struct {
	Status  ToggleStatus
	Working bool
	Message string
}

// RegistrationPrompt is raised when a scanned identifier is unknown to the store.
type RegistrationPrompt struct {
	ID         ID
	Name       string
	Department string
	RaisedAt   time.Time
}

// EmployeeCandidate is a registration form submission.
type EmployeeCandidate struct {
	ID         ID
	Name       string
	Age        int
	Department string
}

type ScanResult struct {
	Outcome    ScanOutcome
	EmployeeID ID
	Working    bool
	Prompt     *RegistrationPrompt
}

type ScanEvent struct {
	ID         string
	EmployeeID string
	Outcome    ScanOutcome
	Payload    string
	Detail     string
	ScannedAt  time.Time
}

type RosterEntry struct {
	Employee Employee
	State    AttendanceState
	Record   *AttendanceRecord
	Duration string
}

type DailyReport struct {
	Date        string
	Total       int
	Present     int
	CheckedOut  int
	Absent      int
	Entries     []RosterEntry
	Production  []ShiftProduction
	GeneratedAt time.Time
}

// PredictionFeatures is the feature vector sent to the external predictor.
type PredictionFeatures struct {
	CustomerOrder   float64 `json:"customer_order"`
	Efficiency      float64 `json:"efficiency"`
	CycleTimeMin    float64 `json:"cycle_time_min"`
	Manpower        int     `json:"manpower"`
	FoamAvailable   float64 `json:"foam_available"`
	SpringAvailable float64 `json:"spring_available"`
}

// Prediction holds the predictor's numeric answer. Valid is false when the
// response carried no usable number.
type Prediction struct {
	Value float64
	Valid bool
}

type AgeBucket struct {
	AgeGroup   string `json:"age_group"`
	Total      int    `json:"total"`
	Working    int    `json:"working"`
	Efficiency int    `json:"efficiency"`
}

type DepartmentSummary struct {
	Department string  `json:"department"`
	Total      int     `json:"total"`
	Working    int     `json:"working"`
	Achieved   float64 `json:"achieved"`
	Target     float64 `json:"target"`
}

type DashboardMetrics struct {
	PredictedCompletion float64             `json:"predicted_completion"`
	ActualCompletion    float64             `json:"actual_completion"`
	TargetCompletion    float64             `json:"target_completion"`
	AvailableComponents float64             `json:"available_components"`
	NumWorkersPresent   int                 `json:"num_workers_present"`
	WorkHours           float64             `json:"work_hours"`
	AgeSummary          []AgeBucket         `json:"age_summary"`
	Efficiency          float64             `json:"efficiency"`
	TargetAchieved      float64             `json:"target_achieved"`
	EfficiencyBand      string              `json:"efficiency_band"`
	DepartmentSummary   []DepartmentSummary `json:"department_summary"`
	PredictionFallback  bool                `json:"prediction_fallback"`
	ComputedAt          time.Time           `json:"computed_at"`
}
