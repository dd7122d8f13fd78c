/*
handlers.go - HTTP handlers for the payroll engine

PURPOSE:
  Exposes attendance logging, the movement ledger and pending balances
  over REST. Handlers parse and validate input, delegate to
  attendance.Service and serialize the result. No payroll rule lives here.

ENDPOINTS:
  Accrual:
    POST   /api/accrual/preview            Price a shift without saving it

  Employees:
    GET    /api/employees                  List employees
    POST   /api/employees                  Create or replace an employee
    GET    /api/employees/{id}             Employee details
    GET    /api/employees/{id}/movements   Ledger history, newest first
    POST   /api/employees/{id}/movements   Manual movement (PAGO, BONO...)
    GET    /api/employees/{id}/balance     Pending balance
    POST   /api/employees/{id}/reset       Close the books (REINICIO)

  Attendance:
    GET    /api/attendance                 List (?employee_id=&from=&to=)
    POST   /api/attendance                 Log a shift
    GET    /api/attendance/unlinked        Confirmed shifts with no movement
    GET    /api/attendance/{id}            One shift
    PUT    /api/attendance/{id}            Edit a shift
    DELETE /api/attendance/{id}            Delete a shift, voiding its movement

  Holidays:
    GET    /api/holidays                   List holidays
    POST   /api/holidays                   Add a holiday

ERROR HANDLING:
  - 400: validation errors, malformed input
  - 404: unknown employee, record or movement
  - 409: an attendance already linked, or contention that outlasted retries
  - 500: persistence failures (the local ledger was rolled back)

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/payroll-engine/accrual"
	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/calendar"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/locale"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *attendance.Service
	Holidays calendar.Store
	Locale   locale.Format
	Log      *slog.Logger
}

// NewHandler creates a handler. A nil logger falls back to slog.Default.
func NewHandler(svc *attendance.Service, holidays calendar.Store, f locale.Format, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Service: svc, Holidays: holidays, Locale: f, Log: log}
}

// =============================================================================
// ACCRUAL
// =============================================================================

// PreviewAccrual prices a shift without writing anything.
// POST /api/accrual/preview
func (h *Handler) PreviewAccrual(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := h.recordInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	result, err := h.Service.Preview(r.Context(), in)
	if err != nil {
		h.fail(w, r, "Failed to price shift", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// ListEmployees returns all employees.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.Employees(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates an employee, or replaces one with the same id.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decode(w, r, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	emp, err := h.Service.SaveEmployee(r.Context(), attendance.Employee{
		ID:            req.ID,
		Name:          req.Name,
		Salary:        rawSalary(h.Locale, req.Salary),
		SalaryPeriod:  accrualPeriod(req.SalaryPeriod),
		OfficialStart: req.OfficialStart,
		OfficialEnd:   req.OfficialEnd,
		PayModality:   attendance.PayModality(strings.ToLower(req.PayModality)),
		Active:        active,
	})
	if err != nil {
		h.fail(w, r, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetEmployee returns one employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.Employee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to load employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// =============================================================================
// MOVEMENTS AND BALANCE
// =============================================================================

// GetMovements returns the employee's ledger, newest first.
// GET /api/employees/{id}/movements
func (h *Handler) GetMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.Service.Movements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to load movements", err)
		return
	}
	dtos := make([]MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toMovementDTO(h.Locale, m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMovement records a manual movement.
// POST /api/employees/{id}/movements
func (h *Handler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var req CreateMovementRequest
	if !decode(w, r, &req) {
		return
	}

	amount, ok := rawAmount(h.Locale, req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid request", errors.New("amount is required"))
		return
	}
	date := h.Service.Today()
	if req.Date != "" {
		d, err := locale.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		date = d
	}

	m, err := h.Service.AddMovement(r.Context(), ledger.Movement{
		EmployeeID:  chi.URLParam(r, "id"),
		Type:        ledger.MovementType(strings.ToUpper(req.Type)),
		Amount:      amount,
		Date:        date,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		h.fail(w, r, "Failed to record movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(h.Locale, m))
}

// GetBalance returns the employee's pending balance.
// GET /api/employees/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.PendingBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(h.Locale, b))
}

// ResetBalance appends a REINICIO marker.
// POST /api/employees/{id}/reset
func (h *Handler) ResetBalance(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	m, err := h.Service.Reset(r.Context(), chi.URLParam(r, "id"), req.CreatedBy)
	if err != nil {
		h.fail(w, r, "Failed to reset balance", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(h.Locale, m))
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// ListAttendance returns shifts, confirming those whose day has come.
// GET /api/attendance?employee_id=&from=&to=
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	records, err := h.Service.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, "Failed to list attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTOs(records))
}

// ListUnlinked returns confirmed shifts of accruing employees that have no
// active movement.
// GET /api/attendance/unlinked
func (h *Handler) ListUnlinked(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	records, err := h.Service.Unlinked(r.Context(), f)
	if err != nil {
		h.fail(w, r, "Failed to list unlinked attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTOs(records))
}

// GetAttendance returns one shift.
// GET /api/attendance/{id}
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to load attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(rec))
}

// CreateAttendance logs a shift and accrues it when due.
// POST /api/attendance
func (h *Handler) CreateAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := h.recordInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	out, err := h.Service.Record(r.Context(), in)
	if err != nil {
		h.fail(w, r, "Failed to record attendance", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toOutcomeDTO(out))
}

// UpdateAttendance edits a shift and re-prices its movement.
// PUT /api/attendance/{id}
func (h *Handler) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	var req UpdateAttendanceRequest
	if !decode(w, r, &req) {
		return
	}

	in := attendance.UpdateInput{
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		Reason:    req.Reason,
		IsHoliday: req.IsHoliday,
		Paid:      req.Paid,
	}
	if req.Date != nil {
		d, err := locale.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		in.Date = &d
	}
	if f, ok := rawAmount(h.Locale, req.HolidayFactor); ok {
		in.HolidayFactor = &f
	}
	if f, ok := rawAmount(h.Locale, req.OvertimeFactor); ok {
		in.OvertimeFactor = &f
	}

	out, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, "Failed to update attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOutcomeDTO(out))
}

// DeleteAttendance removes a shift and voids its movement. Deleting an
// unknown shift succeeds.
// DELETE /api/attendance/{id}
func (h *Handler) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	voided, err := h.Service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to delete attendance", err)
		return
	}
	if voided == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTO(h.Locale, *voided))
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// ListHolidays returns all holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Holidays.ListHolidays(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}
	date, err := locale.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	hol := calendar.Holiday{ID: uuid.NewString(), Date: date, Name: req.Name, Recurring: req.Recurring}
	if err := h.Holidays.SaveHoliday(r.Context(), hol); err != nil {
		h.fail(w, r, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(hol))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) recordInput(req AttendanceRequest) (attendance.RecordInput, error) {
	in := attendance.RecordInput{
		EmployeeID: req.EmployeeID,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Reason:     req.Reason,
		IsHoliday:  req.IsHoliday,
		CreatedBy:  req.CreatedBy,
	}
	if req.Date != "" {
		d, err := locale.ParseDate(req.Date)
		if err != nil {
			return in, fmt.Errorf("date %q: use YYYY-MM-DD", req.Date)
		}
		in.Date = d
	}
	if f, ok := rawAmount(h.Locale, req.HolidayFactor); ok {
		in.HolidayFactor = &f
	}
	if f, ok := rawAmount(h.Locale, req.OvertimeFactor); ok {
		in.OvertimeFactor = &f
	}
	return in, nil
}

func (h *Handler) toOutcomeDTO(out attendance.Outcome) OutcomeDTO {
	dto := OutcomeDTO{Attendance: toAttendanceDTO(out.Record), Accrual: out.Accrual}
	if out.Movement != nil {
		m := toMovementDTO(h.Locale, *out.Movement)
		dto.Movement = &m
	}
	if out.Sanction != nil {
		s := toSanctionDTO(*out.Sanction)
		dto.Sanction = &s
	}
	return dto
}

func parseFilter(r *http.Request) (attendance.Filter, error) {
	q := r.URL.Query()
	f := attendance.Filter{EmployeeID: q.Get("employee_id")}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		d, err := locale.ParseDate(raw)
		if err != nil {
			return f, fmt.Errorf("%s: %w", key, err)
		}
		*dst = &d
	}
	return f, nil
}

// decode reads a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// fail maps a service error to a status code. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.ErrorContext(r.Context(), message, "err", err, "path", r.URL.Path)
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrDuplicateLink), ledger.IsRetryable(err):
		return http.StatusConflict
	case attendance.IsClientError(err), ledger.IsClientError(err):
		return http.StatusBadRequest
	case attendance.IsNotFound(err), ledger.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func accrualPeriod(s string) accrual.SalaryPeriod {
	return accrual.SalaryPeriod(strings.ToLower(strings.TrimSpace(s)))
}
