package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rvachhani/presenced/internal/attend/cache"
	"github.com/rvachhani/presenced/internal/attend/directory"
	"github.com/rvachhani/presenced/internal/attend/service"
	"github.com/rvachhani/presenced/internal/attend/store"
	"github.com/rvachhani/presenced/internal/attend/vector"
)

type Dependencies struct {
	Logger         *slog.Logger
	Addr           string
	Pipeline       *service.Pipeline
	Status         *service.Status
	Attendance     store.AttendanceStore
	Employees      store.EmployeeStore
	Directory      *directory.Directory
	Recent         *cache.Recent
	MetricsHandler http.Handler
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	pipeline   *service.Pipeline
	status     *service.Status
	attendance store.AttendanceStore
	employees  store.EmployeeStore
	directory  *directory.Directory
	recent     *cache.Recent
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		pipeline:   d.Pipeline,
		status:     d.Status,
		attendance: d.Attendance,
		employees:  d.Employees,
		directory:  d.Directory,
		recent:     d.Recent,
	}

	mux.HandleFunc("GET /v1/attendance", s.handleListAttendance)
	mux.HandleFunc("GET /v1/attendance/recent", s.handleRecentAttendance)
	mux.HandleFunc("GET /v1/attendance/download", s.handleDownloadAttendance)
	mux.HandleFunc("POST /v1/attendance/verify", s.handleVerifyCapture)
	mux.HandleFunc("GET /v1/employees", s.handleListEmployees)
	mux.HandleFunc("POST /v1/employees/enroll", s.handleEnrollEmployee)
	mux.HandleFunc("DELETE /v1/employees/{code}", s.handleDeleteEmployee)
	mux.HandleFunc("POST /v1/employees/reload", s.handleReloadDirectory)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	if d.MetricsHandler != nil {
		mux.Handle("GET /metrics", d.MetricsHandler)
	}

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Attendance reads ─────────────────────────────────────────────────────────

func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	rows, err := s.attendance.ReadAll(r.Context())
	if err != nil {
		s.logger.Error("attendance read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "could not read the attendance log")
		return
	}
	if rows == nil {
		rows = []store.AttendanceRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   len(rows),
		"records": rows,
	})
}

func (s *Server) handleRecentAttendance(w http.ResponseWriter, r *http.Request) {
	logs := s.recent.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   len(logs),
		"records": logs,
	})
}

func (s *Server) handleDownloadAttendance(w http.ResponseWriter, r *http.Request) {
	rows, err := s.attendance.ReadAll(r.Context())
	if err != nil {
		s.logger.Error("attendance export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "could not read the attendance log")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="attendance_log.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Sr. No.", "Employee Code", "Employee Name", "Date", "Time", "Status"})
	for _, row := range rows {
		_ = cw.Write([]string{
			strconv.FormatInt(row.Seq, 10),
			row.EmployeeCode,
			row.EmployeeName,
			row.Date,
			row.Time,
			row.Status,
		})
	}
	cw.Flush()
}

// ── Manual verification ──────────────────────────────────────────────────────

type verifyRequest struct {
	CaptureBase64 string `json:"capture_base64"`
}

func (s *Server) handleVerifyCapture(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.CaptureBase64) == "" {
		writeError(w, http.StatusBadRequest, "missing_capture", "capture_base64 is required")
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.CaptureBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_capture", "capture_base64 is not valid base64")
		return
	}

	// Same matcher, cooldown tracker and sink as the live listener.
	outcomes := s.pipeline.ProcessCapture(r.Context(), payload)
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   len(outcomes),
		"results": outcomes,
	})
}

// ── Employee management ──────────────────────────────────────────────────────

type employeeSummary struct {
	EmployeeCode string `json:"employee_code"`
	EmployeeName string `json:"employee_name"`
	Enrolled     bool   `json:"enrolled"` // has a face template
}

func (s *Server) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	recs, err := s.employees.GetAll(r.Context())
	if err != nil {
		s.logger.Error("employee list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "could not read employees")
		return
	}

	out := make([]employeeSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, employeeSummary{
			EmployeeCode: rec.EmployeeCode,
			EmployeeName: rec.EmployeeName,
			Enrolled:     len(rec.Template) > 0,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(out),
		"employees": out,
	})
}

type enrollRequest struct {
	EmployeeCode   string `json:"employee_code"`
	EmployeeName   string `json:"employee_name"`
	TemplateBase64 string `json:"template_base64,omitempty"`
}

func (s *Server) handleEnrollEmployee(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	code := strings.TrimSpace(req.EmployeeCode)
	name := strings.TrimSpace(req.EmployeeName)
	if code == "" {
		writeError(w, http.StatusBadRequest, "invalid_employee_code", "employee_code is required")
		return
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_employee_name", "employee_name is required")
		return
	}

	rec := store.EmployeeRecord{EmployeeCode: code, EmployeeName: name}
	if req.TemplateBase64 != "" {
		blob, err := base64.StdEncoding.DecodeString(req.TemplateBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_template", "template_base64 is not valid base64")
			return
		}
		v, err := vector.Decode(blob)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_template", "template blob is malformed")
			return
		}
		rec.Template = v
	}

	if err := s.employees.Upsert(r.Context(), rec); err != nil {
		s.logger.Error("employee enroll failed", "employee_code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "could not store the employee")
		return
	}

	// Identity writes install a fresh directory snapshot immediately so
	// the live matcher and the admin view agree.
	if _, err := s.directory.Reload(r.Context()); err != nil {
		s.logger.Error("directory reload after enroll failed", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       fmt.Sprintf("Employee %q enrolled.", code),
		"employee_code": code,
	})
}

func (s *Server) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	if err := s.employees.Delete(r.Context(), code); err != nil {
		if errors.Is(err, store.ErrEmployeeNotFound) {
			writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("employee %q not found", code))
			return
		}
		s.logger.Error("employee delete failed", "employee_code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "could not delete the employee")
		return
	}

	if _, err := s.directory.Reload(r.Context()); err != nil {
		s.logger.Error("directory reload after delete failed", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Employee %q removed.", code),
	})
}

func (s *Server) handleReloadDirectory(w http.ResponseWriter, r *http.Request) {
	n, err := s.directory.Reload(r.Context())
	if err != nil {
		s.logger.Error("directory reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "directory reload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Reloaded %d employees.", n),
	})
}

// ── Health ───────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Snapshot(r.Context()))
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}
