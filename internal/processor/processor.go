package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/actionable"
	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/runguard"
	"meeting-insights-go/internal/transcription"
	"meeting-insights-go/internal/types"
)

const notifyTimeout = 5 * time.Second

// ErrTranscriptUnavailable wraps failures to download a transcript that are
// not the caller's fault.
var ErrTranscriptUnavailable = errors.New("transcript unavailable")

// Request is one analysis job. Exactly one of Text and TranscriptURL is set.
type Request struct {
	Text          string `json:"text,omitempty"`
	TranscriptURL string `json:"transcript_url,omitempty"`
}

// Result is returned by Analyze and Reanalyze.
type Result struct {
	AnalysisID string                `json:"analysis_id"`
	Record     types.AnalysisRecord  `json:"record"`
	Insight    aggregator.Insight    `json:"insight"`
	ActionCard actionable.ActionCard `json:"action_card"`
	DurationMs int64                 `json:"duration_ms"`
}

type Runner interface {
	Run(ctx context.Context, text string) (types.AnalysisRecord, error)
}

type TranscriptFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Notifier interface {
	Publish(ctx context.Context, analysisID string, rec types.AnalysisRecord) error
}

type PhraseParser interface {
	ParsePhrase(phrase string) (time.Time, bool)
}

// Deps wires a Service. Fetcher and Notifier are optional.
type Deps struct {
	Pipeline  Runner
	Guard     *runguard.Guard
	Fetcher   TranscriptFetcher
	Notifier  Notifier
	Deadlines PhraseParser
	Metrics   *pipeline.Metrics
	Log       *logrus.Entry
}

type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = pipeline.NewMetrics()
	}
	return &Service{deps: deps}
}

// Analyze runs a new analysis under a fresh id.
func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	return s.process(ctx, uuid.NewString(), req)
}

// Reanalyze re-runs the analysis identified by analysisID. subject is the run
// guard key; a second call for the same subject inside the cooldown fails
// with *runguard.RunInProgressError. The guard is released when the run ends.
func (s *Service) Reanalyze(ctx context.Context, subject, analysisID string, req Request) (Result, error) {
	if err := s.deps.Guard.Acquire(subject); err != nil {
		s.deps.Metrics.GuardRejections.Inc()
		s.deps.Log.WithFields(logrus.Fields{"subject": subject, "analysis_id": analysisID}).Info("re-analysis rejected, run in progress")
		return Result{}, err
	}
	defer s.deps.Guard.Release(subject)

	return s.process(ctx, analysisID, req)
}

// ParseDeadline resolves a relative deadline phrase; nil when unrecognised.
func (s *Service) ParseDeadline(phrase string) *time.Time {
	t, ok := s.deps.Deadlines.ParsePhrase(phrase)
	if !ok {
		return nil
	}
	return &t
}

func (s *Service) process(ctx context.Context, id string, req Request) (Result, error) {
	log := s.deps.Log.WithField("analysis_id", id)
	start := time.Now()
	res := Result{AnalysisID: id}

	text, err := s.transcript(ctx, req)
	if err != nil {
		log.WithField("error", err.Error()).Warn("transcript unavailable")
		return res, err
	}

	rec, err := s.deps.Pipeline.Run(ctx, text)
	if err != nil {
		res.DurationMs = time.Since(start).Milliseconds()
		log.WithFields(logrus.Fields{"error": err.Error(), "duration_ms": res.DurationMs}).Warn("analysis failed")
		return res, err
	}
	res.Record = rec
	res.Insight = aggregator.Aggregate(rec)
	res.ActionCard = actionable.Generate(res.Insight)
	res.DurationMs = time.Since(start).Milliseconds()

	s.publish(ctx, log, id, rec)

	log.WithFields(logrus.Fields{"duration_ms": res.DurationMs, "tasks": len(rec.Tasks)}).Info("analysis finished")
	return res, nil
}

func (s *Service) transcript(ctx context.Context, req Request) (string, error) {
	hasText := strings.TrimSpace(req.Text) != ""
	hasURL := strings.TrimSpace(req.TranscriptURL) != ""
	switch {
	case hasText && hasURL:
		return "", &pipeline.InvalidInputError{Reason: "send either text or transcript_url, not both"}
	case hasText:
		return req.Text, nil
	case !hasURL:
		return "", &pipeline.InvalidInputError{Reason: "text or transcript_url is required"}
	case s.deps.Fetcher == nil:
		return "", &pipeline.InvalidInputError{Reason: "transcript_url is not supported"}
	}

	text, err := s.deps.Fetcher.Fetch(ctx, req.TranscriptURL)
	if err != nil {
		var sErr *transcription.StatusError
		switch {
		case errors.Is(err, transcription.ErrBadURL),
			errors.Is(err, transcription.ErrTooLarge),
			errors.Is(err, transcription.ErrNotText),
			errors.As(err, &sErr) && sErr.StatusCode < 500:
			return "", &pipeline.InvalidInputError{Reason: err.Error()}
		}
		return "", fmt.Errorf("%w: %w", ErrTranscriptUnavailable, err)
	}
	return text, nil
}

// publish notifies subscribers; failures are logged and never fail the run.
func (s *Service) publish(ctx context.Context, log *logrus.Entry, id string, rec types.AnalysisRecord) {
	if s.deps.Notifier == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.deps.Notifier.Publish(pctx, id, rec); err != nil {
		log.WithField("error", err.Error()).Warn("publish analysis event failed")
	}
}
