package httpapi_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rvachhani/presenced/internal/attend/cache"
	"github.com/rvachhani/presenced/internal/attend/cooldown"
	"github.com/rvachhani/presenced/internal/attend/directory"
	"github.com/rvachhani/presenced/internal/attend/matcher"
	"github.com/rvachhani/presenced/internal/attend/service"
	"github.com/rvachhani/presenced/internal/attend/store"
	"github.com/rvachhani/presenced/internal/attend/store/memory"
	"github.com/rvachhani/presenced/internal/attend/types"
	"github.com/rvachhani/presenced/internal/attend/vector"
	"github.com/rvachhani/presenced/internal/httpapi"
	"github.com/rvachhani/presenced/internal/metrics"
)

const dim = 4

type stubBroker struct{ up bool }

func (s stubBroker) Connected() bool { return s.up }

type nopPublisher struct{}

func (nopPublisher) Publish(types.Outcome) error { return nil }

type testEnv struct {
	ts       *httptest.Server
	pipeline *service.Pipeline
	sink     *memory.AttendanceStore
	dir      *directory.Directory
}

// newTestServer wires up the full dependency graph using in-memory stores
// and returns an httptest.Server whose URL can be hit with a plain http.Client.
func newTestServer(t *testing.T, recs ...store.EmployeeRecord) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	employees := memory.NewEmployeeStore(recs...)
	dir := directory.New(employees, logger)
	if _, err := dir.Reload(context.Background()); err != nil {
		t.Fatalf("directory reload: %v", err)
	}

	m := metrics.NewForTest()
	sink := memory.NewAttendanceStore()
	recent := cache.New(100)

	pipeline := service.NewPipeline(service.Dependencies{
		Matcher:   matcher.New(dir, vector.RawExtractor{Dim: dim}, 0.5, logger, m),
		Cooldown:  cooldown.New(30 * time.Second),
		Sink:      sink,
		Recent:    recent,
		Publisher: nopPublisher{},
		Logger:    logger,
		Metrics:   m,
	})

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       ":0",
		Pipeline:   pipeline,
		Status:     service.NewStatus(stubBroker{up: true}, dir, recent, sink, "./data/test.db"),
		Attendance: sink,
		Employees:  employees,
		Directory:  dir,
		Recent:     recent,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, pipeline: pipeline, sink: sink, dir: dir}
}

func template(first float64) vector.Vector {
	v := make(vector.Vector, dim)
	v[0] = first
	return v
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, into any) int {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// ── Health ───────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestServer(t,
		store.EmployeeRecord{EmployeeCode: "E1", EmployeeName: "Ann", Template: template(0)},
	)

	env.pipeline.ProcessAssertion(context.Background(),
		types.Assertion{EmployeeCode: "E1", EmployeeName: "Ann"})

	var snap types.StatusSnapshot
	if code := getJSON(t, env.ts.URL+"/v1/health", &snap); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if snap.Status != "ok" {
		t.Errorf("expected status ok, got %q", snap.Status)
	}
	if !snap.MQTTConnected {
		t.Error("expected mqtt_connected=true")
	}
	if snap.EmployeesLoaded != 1 {
		t.Errorf("expected 1 employee loaded, got %d", snap.EmployeesLoaded)
	}
	if snap.TotalRecords != 1 {
		t.Errorf("expected total_records=1 after one accepted event, got %d", snap.TotalRecords)
	}
	if snap.LogFile == "" {
		t.Error("expected log_file set")
	}
	if snap.LastDetection == "" {
		t.Error("expected last_detection set after an accepted event")
	}
}

// ── Attendance reads ─────────────────────────────────────────────────────────

func TestListAttendance(t *testing.T) {
	env := newTestServer(t)

	env.pipeline.ProcessAssertion(context.Background(),
		types.Assertion{EmployeeCode: "E1", EmployeeName: "Ann"})

	var out struct {
		Total   int                   `json:"total"`
		Records []store.AttendanceRow `json:"records"`
	}
	if code := getJSON(t, env.ts.URL+"/v1/attendance", &out); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if out.Total != 1 || len(out.Records) != 1 {
		t.Fatalf("expected 1 record, got %+v", out)
	}
	if out.Records[0].Seq != 1 || out.Records[0].EmployeeCode != "E1" {
		t.Errorf("unexpected record: %+v", out.Records[0])
	}
}

func TestListAttendance_Empty(t *testing.T) {
	env := newTestServer(t)

	var out struct {
		Total   int               `json:"total"`
		Records []json.RawMessage `json:"records"`
	}
	if code := getJSON(t, env.ts.URL+"/v1/attendance", &out); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if out.Total != 0 || out.Records == nil {
		t.Errorf("expected empty records array, got %+v", out)
	}
}

func TestRecentAttendance(t *testing.T) {
	env := newTestServer(t)

	env.pipeline.ProcessAssertion(context.Background(),
		types.Assertion{EmployeeCode: "E1", EmployeeName: "Ann"})

	var out struct {
		Total   int             `json:"total"`
		Records []types.Outcome `json:"records"`
	}
	if code := getJSON(t, env.ts.URL+"/v1/attendance/recent", &out); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if out.Total != 1 || out.Records[0].Status != types.StatusLogged {
		t.Errorf("unexpected recent records: %+v", out)
	}
}

func TestDownloadAttendance_CSV(t *testing.T) {
	env := newTestServer(t)

	env.pipeline.ProcessAssertion(context.Background(),
		types.Assertion{EmployeeCode: "E1", EmployeeName: "Ann"})

	resp, err := http.Get(env.ts.URL + "/v1/attendance/download")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Sr. No.,Employee Code") {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1,E1,Ann,") {
		t.Errorf("unexpected row: %q", lines[1])
	}
}

// ── Manual verification ──────────────────────────────────────────────────────

func TestVerifyCapture_Match(t *testing.T) {
	env := newTestServer(t,
		store.EmployeeRecord{EmployeeCode: "E1", EmployeeName: "Ann", Template: template(0)},
	)

	capture := base64.StdEncoding.EncodeToString(vector.Encode(template(0.2)))

	var out struct {
		Total   int             `json:"total"`
		Results []types.Outcome `json:"results"`
	}
	code := postJSON(t, env.ts.URL+"/v1/attendance/verify",
		map[string]string{"capture_base64": capture}, &out)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if out.Total != 1 || out.Results[0].Status != types.StatusVerified {
		t.Fatalf("expected a verified result, got %+v", out)
	}

	rows, _ := env.sink.ReadAll(context.Background())
	if len(rows) != 1 {
		t.Errorf("manual verification must share the durable sink, got %d rows", len(rows))
	}
}

func TestVerifyCapture_NoMatch(t *testing.T) {
	env := newTestServer(t,
		store.EmployeeRecord{EmployeeCode: "E1", EmployeeName: "Ann", Template: template(0)},
	)

	capture := base64.StdEncoding.EncodeToString(vector.Encode(template(3)))

	var out struct {
		Results []types.Outcome `json:"results"`
	}
	code := postJSON(t, env.ts.URL+"/v1/attendance/verify",
		map[string]string{"capture_base64": capture}, &out)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(out.Results) != 1 || out.Results[0].Status != types.StatusNoMatch {
		t.Errorf("expected no_match, got %+v", out.Results)
	}
}

func TestVerifyCapture_BadRequest(t *testing.T) {
	env := newTestServer(t)

	if code := postJSON(t, env.ts.URL+"/v1/attendance/verify",
		map[string]string{}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing capture, got %d", code)
	}
	if code := postJSON(t, env.ts.URL+"/v1/attendance/verify",
		map[string]string{"capture_base64": "!!not-base64!!"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid base64, got %d", code)
	}
}

// ── Employee management ──────────────────────────────────────────────────────

func TestEnrollEmployee_UpdatesDirectory(t *testing.T) {
	env := newTestServer(t)

	tmpl := base64.StdEncoding.EncodeToString(vector.Encode(template(0)))
	code := postJSON(t, env.ts.URL+"/v1/employees/enroll", map[string]string{
		"employee_code":   "E9",
		"employee_name":   "Noor",
		"template_base64": tmpl,
	}, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	// Enrollment installs a fresh snapshot without an explicit reload.
	if env.dir.Size() != 1 {
		t.Errorf("expected directory size 1 after enroll, got %d", env.dir.Size())
	}

	var out struct {
		Total     int `json:"total"`
		Employees []struct {
			EmployeeCode string `json:"employee_code"`
			Enrolled     bool   `json:"enrolled"`
		} `json:"employees"`
	}
	if code := getJSON(t, env.ts.URL+"/v1/employees", &out); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if out.Total != 1 || out.Employees[0].EmployeeCode != "E9" || !out.Employees[0].Enrolled {
		t.Errorf("unexpected employee list: %+v", out)
	}
}

func TestEnrollEmployee_Validation(t *testing.T) {
	env := newTestServer(t)

	if code := postJSON(t, env.ts.URL+"/v1/employees/enroll",
		map[string]string{"employee_name": "Noor"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing code, got %d", code)
	}
	if code := postJSON(t, env.ts.URL+"/v1/employees/enroll",
		map[string]string{"employee_code": "E9"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", code)
	}
}

func TestDeleteEmployee(t *testing.T) {
	env := newTestServer(t,
		store.EmployeeRecord{EmployeeCode: "E1", EmployeeName: "Ann", Template: template(0)},
	)

	req, _ := http.NewRequest(http.MethodDelete, env.ts.URL+"/v1/employees/E1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if env.dir.Size() != 0 {
		t.Errorf("expected empty directory after delete, got %d", env.dir.Size())
	}

	// Deleting again is a 404.
	req, _ = http.NewRequest(http.MethodDelete, env.ts.URL+"/v1/employees/E1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for a missing employee, got %d", resp.StatusCode)
	}
}

func TestReloadDirectory(t *testing.T) {
	env := newTestServer(t,
		store.EmployeeRecord{EmployeeCode: "E1", EmployeeName: "Ann", Template: template(0)},
		store.EmployeeRecord{EmployeeCode: "E2", EmployeeName: "Ben", Template: template(1)},
	)

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if code := postJSON(t, env.ts.URL+"/v1/employees/reload", map[string]string{}, &out); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !out.Success {
		t.Error("expected success=true")
	}
	if want := fmt.Sprintf("Reloaded %d employees.", 2); out.Message != want {
		t.Errorf("expected %q, got %q", want, out.Message)
	}
}
