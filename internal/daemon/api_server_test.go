package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"camtrap/internal/api"
	"camtrap/internal/detection"
	"camtrap/internal/exportjob"
	"camtrap/internal/exports"
	"camtrap/internal/progress"
	"camtrap/internal/services"
	"camtrap/internal/testsupport"
	"camtrap/internal/workflow"
)

type stubDetector struct{}

func (stubDetector) Name() string { return "stub" }

func (stubDetector) Detect(context.Context, string) (detection.Result, error) {
	return detection.Result{Width: 64, Height: 48, Detections: []detection.Detection{
		{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2, Category: detection.Human, Confidence: 0.7},
	}}, nil
}

type heldBackend struct {
	mu  sync.Mutex
	run *detection.Run
}

func (b *heldBackend) StartDetection(ctx context.Context, req detection.Request) (*detection.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.run = detection.NewRun(context.WithoutCancel(ctx), "held-run", req)
	return b.run, nil
}

func (b *heldBackend) current() *detection.Run {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.run
}

type testServer struct {
	t      *testing.T
	daemon *Daemon
	http   *httptest.Server
	token  string
}

func newTestServer(t *testing.T, backend detection.Backend, opts ...testsupport.ConfigOption) *testServer {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	wf := workflow.New(backend, exports.NewExporter(exports.WithWorkers(1)), workflow.WithLedger(st))
	if err := wf.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	d, err := New(cfg, st, nil, wf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(d.api.server.Handler)
	t.Cleanup(srv.Close)
	return &testServer{t: t, daemon: d, http: srv, token: cfg.Paths.APIToken}
}

func (s *testServer) do(method, path string, body any, out any) int {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.http.URL+path, reader)
	if err != nil {
		s.t.Fatalf("new request: %v", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Client().Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.Header.Get(requestIDHeader) == "" {
		s.t.Fatalf("%s %s: missing request id header", method, path)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			s.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) waitState(want workflow.State) {
	s.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var resp progressResponse
		s.do(http.MethodGet, "/api/progress", nil, &resp)
		if resp.State == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.t.Fatalf("workflow never reached %s", want)
}

func TestAPIWorkflowRoundTrip(t *testing.T) {
	backend := detection.NewLocalBackend(func(context.Context, detection.Request) (detection.Detector, error) {
		return stubDetector{}, nil
	})
	srv := newTestServer(t, backend)
	root := testsupport.Dataset(t, "a.png", "b.png", "nested/c.png")

	var formats api.FormatsResponse
	if code := srv.do(http.MethodGet, "/api/formats", nil, &formats); code != http.StatusOK || len(formats.Formats) != 3 {
		t.Fatalf("formats: %d %+v", code, formats)
	}

	var isDir api.IsDirectoryResponse
	srv.do(http.MethodPost, "/api/is-dir", api.IsDirectoryRequest{Path: root}, &isDir)
	if !isDir.IsDirectory {
		t.Fatal("dataset root should be a directory")
	}
	srv.do(http.MethodPost, "/api/is-dir", api.IsDirectoryRequest{Path: filepath.Join(root, "a.png")}, &isDir)
	if isDir.IsDirectory {
		t.Fatal("a file is not a directory")
	}

	var apiErr api.ErrorResponse
	if code := srv.do(http.MethodPost, "/api/dataset", workflow.Selection{RootPath: filepath.Join(root, "a.png")}, &apiErr); code != http.StatusBadRequest || apiErr.Kind != "invalid_selection" {
		t.Fatalf("file dataset: %d %+v", code, apiErr)
	}
	if code := srv.do(http.MethodPost, "/api/config", map[string]any{}, &apiErr); code != http.StatusBadRequest {
		t.Fatalf("missing threshold should be rejected, got %d", code)
	}
	if code := srv.do(http.MethodPost, "/api/config", map[string]any{"confidenceThreshold": 0.4, "extra": true}, &apiErr); code != http.StatusBadRequest || apiErr.Kind != "invalid_request" {
		t.Fatalf("unknown field should be rejected, got %d %+v", code, apiErr)
	}

	var status workflow.Status
	if code := srv.do(http.MethodPost, "/api/dataset", workflow.Selection{RootPath: root, IncludeSubfolders: true}, &status); code != http.StatusOK {
		t.Fatalf("dataset: %d", code)
	}
	if code := srv.do(http.MethodPost, "/api/config", map[string]any{"confidenceThreshold": 0.4}, &status); code != http.StatusOK || status.Config.ConfidenceThreshold != 0.4 {
		t.Fatalf("config: %d %+v", code, status.Config)
	}

	if code := srv.do(http.MethodPost, "/api/exports", workflow.ExportRequest{Format: exports.FormatCSV}, &apiErr); code != http.StatusConflict || apiErr.Kind != "job_start_rejected" {
		t.Fatalf("export before detection: %d %+v", code, apiErr)
	}

	if code := srv.do(http.MethodPost, "/api/detection", nil, &status); code != http.StatusAccepted {
		t.Fatalf("detection: %d", code)
	}
	srv.waitState(workflow.StateReviewing)
	<-srv.daemon.workflow.Settled()
	if code := srv.do(http.MethodPost, "/api/detection", nil, &apiErr); code != http.StatusConflict {
		t.Fatalf("second detection should conflict, got %d", code)
	}

	var prog progressResponse
	srv.do(http.MethodGet, "/api/progress", nil, &prog)
	if prog.Progress == nil || prog.Progress.Current != 3 || prog.Progress.Percent != 100 {
		t.Fatalf("unexpected final progress %+v", prog.Progress)
	}

	if code := srv.do(http.MethodPost, "/api/exports", workflow.ExportRequest{Format: "xlsx"}, &apiErr); code != http.StatusUnprocessableEntity || apiErr.Kind != "invalid_output_target" {
		t.Fatalf("unknown format: %d %+v", code, apiErr)
	}

	out := filepath.Join(t.TempDir(), "out.json")
	var job exportjob.Job
	if code := srv.do(http.MethodPost, "/api/exports", workflow.ExportRequest{Format: exports.FormatJSON, OutputPath: out}, &job); code != http.StatusAccepted {
		t.Fatalf("export: %d", code)
	}
	srv.daemon.workflow.WaitExports()

	var list api.ExportsResponse
	srv.do(http.MethodGet, "/api/exports", nil, &list)
	if len(list.Exports) != 1 || list.Exports[0].ID != job.ID || list.Exports[0].State != exportjob.StateSucceeded {
		t.Fatalf("unexpected exports %+v", list.Exports)
	}

	var runs api.RunsResponse
	srv.do(http.MethodGet, "/api/runs?limit=5", nil, &runs)
	if len(runs.Runs) != 1 || runs.Runs[0].State != "succeeded" || runs.Runs[0].Summary.Humans != 3 {
		t.Fatalf("unexpected runs %+v", runs.Runs)
	}
	var run api.RunResponse
	srv.do(http.MethodGet, "/api/runs/"+runs.Runs[0].ID, nil, &run)
	if len(run.Run.Exports) != 1 || run.Run.Exports[0].Format != exports.FormatJSON {
		t.Fatalf("run should list its export, got %+v", run.Run.Exports)
	}
	if code := srv.do(http.MethodGet, "/api/runs?limit=zero", nil, &apiErr); code != http.StatusBadRequest {
		t.Fatalf("bad limit should be rejected, got %d", code)
	}
	if code := srv.do(http.MethodGet, "/api/runs/nope", nil, &apiErr); code != http.StatusNotFound {
		t.Fatalf("unknown run should be 404, got %d", code)
	}

	srv.do(http.MethodPost, "/api/reset", nil, &status)
	if status.State != workflow.StateSelecting || len(status.Exports) != 0 || status.Selection != nil {
		t.Fatalf("reset should clear the workflow, got %+v", status)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	srv := newTestServer(t, &heldBackend{}, testsupport.WithAPIToken("s3cret"))

	resp, err := http.Get(srv.http.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	var status api.DaemonStatus
	if code := srv.do(http.MethodGet, "/api/status", nil, &status); code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", code)
	}
	if status.Running {
		t.Fatal("daemon was never started")
	}
}

func TestProgressStream(t *testing.T) {
	backend := &heldBackend{}
	srv := newTestServer(t, backend)
	root := testsupport.Dataset(t, "a.png")

	var apiErr api.ErrorResponse
	if code := srv.do(http.MethodGet, "/api/progress/stream", nil, &apiErr); code != http.StatusConflict {
		t.Fatalf("stream without run should conflict, got %d", code)
	}

	srv.do(http.MethodPost, "/api/dataset", workflow.Selection{RootPath: root}, nil)
	if code := srv.do(http.MethodPost, "/api/detection", nil, nil); code != http.StatusAccepted {
		t.Fatalf("detection: %d", code)
	}
	run := backend.current()
	if err := run.Publish(progress.New(0, 2, detection.MessageLoading, "")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.http.URL+"/api/progress/stream", nil)
	resp, err := srv.http.Client().Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		var event string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				events <- event + " " + strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	next := func() string {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatal("stream closed early")
			}
			return e
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
		}
		return ""
	}

	first := next()
	if !strings.HasPrefix(first, "progress ") || !strings.Contains(first, `"current":0`) {
		t.Fatalf("unexpected first event %q", first)
	}
	_ = run.Publish(progress.New(1, 2, detection.MessageProgress, "/x/a.png"))
	if e := next(); !strings.Contains(e, `"current":1`) || !strings.Contains(e, `"percent":50`) {
		t.Fatalf("unexpected second event %q", e)
	}
	run.Succeed(nil)
	if e := next(); !strings.Contains(e, `"current":2`) || !strings.Contains(e, fmt.Sprintf("%q", detection.MessageComplete)) {
		t.Fatalf("unexpected final event %q", e)
	}
	if e := next(); e != "end {}" {
		t.Fatalf("expected end event, got %q", e)
	}
}

func TestStatusForMapsMarkers(t *testing.T) {
	cases := map[error]int{
		services.ErrInvalidSelection:                                            http.StatusBadRequest,
		services.Wrap(services.ErrInvalidOutputTarget, "csv", "submit", "", nil): http.StatusUnprocessableEntity,
		services.ErrJobStartRejected:                                            http.StatusConflict,
		services.ErrDuplicateExportInFlight:                                     http.StatusConflict,
		services.ErrBackendFailure:                                              http.StatusBadGateway,
		errors.New("boom"):                                                      http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}
