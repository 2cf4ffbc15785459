package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"camtrap/internal/logging"
	"camtrap/internal/progress"
	"camtrap/internal/services"
)

// Result is what a Detector reports for one image. Width and Height may be
// zero when the detector does not know them; the backend then reads them
// from the image header.
type Result struct {
	Width      int
	Height     int
	Detections []Detection
}

// Detector classifies one image at a time.
type Detector interface {
	Name() string
	Detect(ctx context.Context, path string) (Result, error)
}

// DetectorFactory prepares a detector for a request. It runs after the
// "Loading detector..." report, so slow model loads show up as progress.
type DetectorFactory func(ctx context.Context, req Request) (Detector, error)

// LocalBackend runs a Detector in-process over the images of a folder.
type LocalBackend struct {
	factory      DetectorFactory
	logger       *slog.Logger
	progressRate float64
	newID        func() string
}

// Option customizes a LocalBackend.
type Option func(*LocalBackend)

// WithLogger sets the backend logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *LocalBackend) { b.logger = logger }
}

// WithProgressRate caps intermediate reports per second. Zero or negative
// disables throttling.
func WithProgressRate(perSecond float64) Option {
	return func(b *LocalBackend) { b.progressRate = perSecond }
}

// NewLocalBackend builds a backend around factory.
func NewLocalBackend(factory DetectorFactory, opts ...Option) *LocalBackend {
	b := &LocalBackend{
		factory: factory,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.NewComponentLogger(b.logger, "detection")
	return b
}

// StartDetection enumerates the dataset and, if that succeeds, acknowledges
// the job and processes it in the background.
func (b *LocalBackend) StartDetection(ctx context.Context, req Request) (*Run, error) {
	if b.factory == nil {
		return nil, services.Wrap(services.ErrConfiguration, "detection", "start", "no detector configured", nil)
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		return nil, services.Wrap(services.ErrInvalidSelection, "detection", "start",
			fmt.Sprintf("confidence threshold %v outside [0,1]", req.ConfidenceThreshold), nil)
	}
	images, err := ListImages(req.Root, req.Recursive)
	if err != nil {
		return nil, services.Wrap(services.ErrBackendFailure, "detection", "enumerate images", req.Root, err)
	}

	run := NewRun(context.WithoutCancel(ctx), b.newID(), req)
	logger := b.logger.With(logging.String(logging.FieldRunID, run.ID()))
	logger.Info("detection started",
		logging.String("root", req.Root),
		logging.Int("images", len(images)),
		logging.Float64("confidence_threshold", req.ConfidenceThreshold),
		logging.Bool("recursive", req.Recursive),
	)
	go b.execute(run, images, logger)
	return run, nil
}

func (b *LocalBackend) execute(run *Run, images []string, logger *slog.Logger) {
	ctx := services.WithRunID(run.Context(), run.ID())
	req := run.Request()
	total := len(images)
	started := time.Now()

	if total == 0 {
		run.Succeed(nil)
		logger.Info("detection finished", logging.Int("images", 0))
		return
	}

	if err := run.Publish(progress.New(0, total, MessageLoading, "")); err != nil {
		run.Fail(services.Wrap(services.ErrBackendFailure, "detection", "publish progress", "", err))
		return
	}

	detector, err := b.factory(ctx, req)
	if err != nil {
		b.fail(run, logger, services.Wrap(services.ErrBackendFailure, "detection", "load detector", "", err))
		return
	}
	logger.Info("detector ready", logging.String("detector", detector.Name()))

	var limiter *rate.Limiter
	if b.progressRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.progressRate), 1)
	}
	eta := progress.NewEstimator(progress.DefaultETAWindow)
	eta.Start()
	sampler := logging.NewProgressSampler(5)

	records := make([]ImageRecord, 0, total)
	for idx, path := range images {
		if err := ctx.Err(); err != nil {
			b.fail(run, logger, services.Wrap(services.ErrBackendFailure, "detection", "process images", "run cancelled", err))
			return
		}
		record, err := b.detectOne(ctx, detector, path, req.ConfidenceThreshold)
		if err != nil {
			b.fail(run, logger, services.Wrap(services.ErrBackendFailure, "detection", "process images", path, err))
			return
		}
		if record.Failed() {
			logging.WarnWithContext(logger, "image skipped", "image_failed",
				logging.String("path", path),
				logging.String("reason", record.Error),
				logging.String(logging.FieldErrorHint, "check that the file is a readable image"),
				logging.String(logging.FieldImpact, "image exported as an error row"),
			)
		}
		records = append(records, record)
		eta.Tick()

		current := idx + 1
		if current == total {
			break
		}
		if limiter != nil && !limiter.Allow() {
			continue
		}
		report := progress.New(current, total, MessageProgress, path)
		if remaining, ok := eta.Remaining(total - current); ok {
			report = report.WithETA(remaining)
		}
		if err := run.Publish(report); err != nil {
			b.fail(run, logger, services.Wrap(services.ErrBackendFailure, "detection", "publish progress", "", err))
			return
		}
		if sampler.ShouldLog(report.Percent, run.ID()) {
			logger.Debug("detection progress", logging.Int("current", current), logging.Int("total", total), logging.Int("percent", report.Percent))
		}
	}

	run.Succeed(records)
	summary := Summarize(records)
	logger.Info("detection finished",
		logging.Int("images", summary.Images),
		logging.Int("failed", summary.Failed),
		logging.Int("animals", summary.Animals),
		logging.Int("humans", summary.Humans),
		logging.Int("vehicles", summary.Vehicles),
		logging.Int("empty", summary.Empty),
		logging.Duration("elapsed", time.Since(started)),
	)
}

// detectOne returns a record for path. Detector errors become record
// errors; only cancellation is returned as an error.
func (b *LocalBackend) detectOne(ctx context.Context, detector Detector, path string, threshold float64) (ImageRecord, error) {
	record := ImageRecord{File: path}
	result, err := detector.Detect(ctx, path)
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return record, err
		}
		record.Error = err.Error()
		return record, nil
	}
	record.ImageWidth, record.ImageHeight = result.Width, result.Height
	if record.ImageWidth == 0 || record.ImageHeight == 0 {
		width, height, err := ImageSize(path)
		if err != nil {
			record.Error = err.Error()
			return record, nil
		}
		record.ImageWidth, record.ImageHeight = width, height
	}
	record.Detections = filterByConfidence(result.Detections, threshold)
	return record, nil
}

func (b *LocalBackend) fail(run *Run, logger *slog.Logger, err error) {
	attrs := append(logging.ErrorAttrs(err), logging.String(logging.FieldErrorHint, "reset and start detection again"))
	logging.ErrorWithContext(logger, "detection failed", "detection_failed", attrs...)
	run.Fail(err)
}
