package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"camtrap/internal/api"
	"camtrap/internal/daemon"
	"camtrap/internal/detection"
	"camtrap/internal/exports"
	"camtrap/internal/services"
	"camtrap/internal/store"
	"camtrap/internal/testsupport"
	"camtrap/internal/workflow"
)

type idleBackend struct{}

func (idleBackend) StartDetection(context.Context, detection.Request) (*detection.Run, error) {
	return nil, errors.New("not used")
}

func newDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Daemon, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	wf := workflow.New(idleBackend{}, exports.NewExporter(), workflow.WithLedger(st))
	d, err := daemon.New(cfg, st, nil, wf)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, st
}

func TestDaemonStartStop(t *testing.T) {
	d, st := newDaemon(t)
	ctx := context.Background()

	stale := store.Run{ID: "stale-run", DatasetRoot: "/data/cams", StartedAt: time.Now().Add(-time.Hour)}
	if err := st.RunStarted(ctx, stale); err != nil {
		t.Fatalf("RunStarted: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.Workflow.State != workflow.StateSelecting {
		t.Fatalf("started daemon should be selecting, got %s", status.Workflow.State)
	}
	if d.Address() == "" {
		t.Fatal("expected an api address")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	client := api.NewClient(d.Address(), "")
	runs, err := client.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("client.Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].State != string(store.RunAbandoned) {
		t.Fatalf("stale run should be abandoned, got %+v", runs)
	}
	run, err := client.Run(ctx, "stale-run")
	if err != nil {
		t.Fatalf("client.Run: %v", err)
	}
	if run.ErrorMessage != store.AbandonedReason {
		t.Fatalf("unexpected abandon reason %q", run.ErrorMessage)
	}
	if _, err := client.Run(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown run")
	}

	remote, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("client.Status: %v", err)
	}
	if !remote.Running || remote.LockFilePath != status.LockFilePath {
		t.Fatalf("unexpected remote status %+v", remote)
	}
	if err := client.Reset(ctx); err != nil {
		t.Fatalf("client.Reset: %v", err)
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	first, err := daemon.New(cfg, st, nil, workflow.New(idleBackend{}, exports.NewExporter()))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	second, err := daemon.New(cfg, st, nil, workflow.New(idleBackend{}, exports.NewExporter()))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be refused")
	}
}

func TestClientMapsErrorKinds(t *testing.T) {
	d, _ := newDaemon(t, testsupport.WithAPIToken("secret"))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := api.NewClient(d.Address(), "wrong").Status(context.Background())
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 401 {
		t.Fatalf("expected 401 api error, got %v", err)
	}

	status, err := api.NewClient("http://"+d.Address()+"/", "secret").Status(context.Background())
	if err != nil {
		t.Fatalf("authorized status: %v", err)
	}
	if status.PID == 0 {
		t.Fatal("expected a pid")
	}
	if !errors.Is(&api.Error{Status: 409, Body: api.ErrorResponse{Kind: "job_start_rejected"}}, services.ErrJobStartRejected) {
		t.Fatal("api errors should match their service marker")
	}
}
