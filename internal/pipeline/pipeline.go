package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/chunker"
	"meeting-insights-go/internal/extractor"
	"meeting-insights-go/internal/owner"
	"meeting-insights-go/internal/types"
)

type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseChunking   Phase = "chunking"
	PhaseExtracting Phase = "extracting"
	PhaseMerging    Phase = "merging"
	PhaseResolving  Phase = "resolving"
	PhaseDone       Phase = "done"
)

// Extractor runs one oracle round trip for a chunk.
type Extractor interface {
	Extract(ctx context.Context, chunk types.Chunk) (types.ExtractionResult, error)
}

type OwnerResolver interface {
	Resolve(ctx context.Context, name string) owner.Resolution
}

type DeadlineNormalizer interface {
	Normalize(raw any, fallback time.Time) time.Time
	Fallback(i int) time.Time
}

// Deps are the collaborators of a Pipeline. Log and Metrics are optional.
type Deps struct {
	Extractor Extractor
	Owners    OwnerResolver
	Deadlines DeadlineNormalizer
	Log       *logrus.Entry
	Metrics   *Metrics
}

type Options struct {
	MaxChunkSize       int
	ChunkTimeout       time.Duration
	MaxRetries         int
	MinTextLength      int
	ResolveConcurrency int
	// RetryInterval is the first backoff wait between oracle attempts.
	RetryInterval time.Duration
	Now           func() time.Time
}

func DefaultOptions() Options {
	return Options{
		MaxChunkSize:       chunker.DefaultMaxChunkSize,
		ChunkTimeout:       60 * time.Second,
		MaxRetries:         2,
		MinTextLength:      20,
		ResolveConcurrency: 8,
		RetryInterval:      500 * time.Millisecond,
		Now:                time.Now,
	}
}

// Pipeline turns one transcript into an AnalysisRecord:
// chunking, sequential extraction, merging, then per-task resolution.
type Pipeline struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = def.MaxChunkSize
	}
	if opts.ChunkTimeout <= 0 {
		opts.ChunkTimeout = def.ChunkTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MinTextLength < 0 {
		opts.MinTextLength = 0
	}
	if opts.ResolveConcurrency <= 0 {
		opts.ResolveConcurrency = def.ResolveConcurrency
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = def.RetryInterval
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if deps.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		deps.Log = logrus.NewEntry(l)
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	return &Pipeline{deps: deps, opts: opts}
}

// Run analyses text. Any extraction failure aborts the whole run and no
// partial record is returned. Owner and deadline problems never fail a run.
func (p *Pipeline) Run(ctx context.Context, text string) (types.AnalysisRecord, error) {
	start := time.Now()
	rec, err := p.run(ctx, text)
	p.deps.Metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.deps.Metrics.RunsTotal.WithLabelValues(outcome(err)).Inc()
	return rec, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "failed"
	}
}

func (p *Pipeline) run(ctx context.Context, text string) (types.AnalysisRecord, error) {
	log := p.deps.Log

	text = strings.TrimSpace(text)
	if err := p.validate(text); err != nil {
		log.WithField("error", err.Error()).Info("transcript rejected")
		return types.AnalysisRecord{}, err
	}

	done := p.phase(PhaseChunking)
	chunks := chunker.Split(text, p.opts.MaxChunkSize)
	done()
	log.WithFields(logrus.Fields{"chunks": len(chunks), "text_length": utf8.RuneCountInString(text)}).Info("transcript chunked")

	done = p.phase(PhaseExtracting)
	results := make([]types.ExtractionResult, 0, len(chunks))
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			done()
			return types.AnalysisRecord{}, &Error{Phase: PhaseExtracting, Chunk: c.Index, Err: err}
		}
		res, err := p.extract(ctx, c)
		if err != nil {
			done()
			log.WithFields(logrus.Fields{"chunk": c.Index + 1, "total_chunks": c.TotalChunks, "error": err.Error()}).
				Error("chunk extraction failed, aborting run")
			return types.AnalysisRecord{}, &Error{Phase: PhaseExtracting, Chunk: c.Index, Err: err}
		}
		results = append(results, res)
	}
	done()

	done = p.phase(PhaseMerging)
	merged := aggregator.Merge(results)
	done()

	done = p.phase(PhaseResolving)
	tasks, err := p.resolve(ctx, merged.Tasks)
	done()
	if err != nil {
		return types.AnalysisRecord{}, &Error{Phase: PhaseResolving, Chunk: -1, Err: err}
	}

	rec := types.AnalysisRecord{
		Summary:     merged.Summary,
		Decisions:   merged.Decisions,
		Tasks:       tasks,
		NextMeeting: merged.NextMeeting,
		Metadata: types.Metadata{
			Chunked:     len(chunks) > 1,
			TotalChunks: len(chunks),
			TextLength:  utf8.RuneCountInString(text),
			WordCount:   len(strings.Fields(text)),
			ProcessedAt: p.opts.Now().UTC(),
		},
	}
	if rec.Decisions == nil {
		rec.Decisions = []string{}
	}
	log.WithFields(logrus.Fields{
		"chunks":    rec.Metadata.TotalChunks,
		"decisions": len(rec.Decisions),
		"tasks":     len(rec.Tasks),
	}).Info("analysis complete")
	return rec, nil
}

func (p *Pipeline) validate(text string) error {
	if !utf8.ValidString(text) {
		return &InvalidInputError{Reason: "transcript is not valid UTF-8"}
	}
	if text == "" {
		return &InvalidInputError{Reason: "transcript is empty"}
	}
	if n := utf8.RuneCountInString(text); n < p.opts.MinTextLength {
		return &InvalidInputError{Reason: "transcript is too short to analyse"}
	}
	return nil
}

func (p *Pipeline) phase(ph Phase) func() {
	start := time.Now()
	return func() {
		p.deps.Metrics.PhaseDuration.WithLabelValues(string(ph)).Observe(time.Since(start).Seconds())
	}
}

// extract calls the oracle for one chunk with a per-call timeout, retrying
// retryable failures with exponential backoff.
func (p *Pipeline) extract(ctx context.Context, c types.Chunk) (types.ExtractionResult, error) {
	p.deps.Metrics.ChunksTotal.Inc()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.opts.RetryInterval
	exp.MaxElapsedTime = 0
	hinted := &retryAfterBackOff{BackOff: exp}
	b := backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(p.opts.MaxRetries)), ctx)

	var res types.ExtractionResult
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.opts.ChunkTimeout)
		defer cancel()

		r, err := p.deps.Extractor.Extract(callCtx, c)
		if err == nil {
			res = r
			p.deps.Metrics.OracleCalls.WithLabelValues("ok").Inc()
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, extractor.ErrOracleUnavailable) {
			err = &extractor.OracleUnavailableError{Kind: extractor.FailureTimeout, Err: err}
		}
		var oErr *extractor.OracleUnavailableError
		if errors.As(err, &oErr) && oErr.Retryable() {
			hinted.hint = oErr.RetryAfter
			p.deps.Metrics.OracleCalls.WithLabelValues("retry").Inc()
			return err
		}
		p.deps.Metrics.OracleCalls.WithLabelValues("error").Inc()
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		p.deps.Log.WithFields(logrus.Fields{
			"chunk":   c.Index + 1,
			"wait_ms": wait.Milliseconds(),
			"error":   err.Error(),
		}).Warn("retrying oracle call")
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return types.ExtractionResult{}, err
	}
	return res, nil
}

// retryAfterBackOff waits at least as long as the last Retry-After hint.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (r *retryAfterBackOff) NextBackOff() time.Duration {
	next := r.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if r.hint > next {
		next = r.hint
	}
	r.hint = 0
	return next
}

// resolve normalizes deadlines and resolves owners for every task. Tasks are
// independent, so they run concurrently; order is preserved.
func (p *Pipeline) resolve(ctx context.Context, drafts []types.TaskDraft) ([]types.Task, error) {
	tasks := make([]types.Task, len(drafts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.ResolveConcurrency)
	for i, d := range drafts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			who := p.deps.Owners.Resolve(gctx, d.Owner)
			due := p.deps.Deadlines.Normalize(d.Deadline, p.deps.Deadlines.Fallback(i))
			tasks[i] = types.Task{
				TaskDraft:        d,
				ResolvedDeadline: due,
				OwnerIdentityRef: who.IdentityRef,
				IsUnassigned:     who.IsUnassigned,
				Status:           types.StatusPending,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, t := range tasks {
		label := "assigned"
		if t.IsUnassigned {
			label = "unassigned"
		}
		p.deps.Metrics.TasksTotal.WithLabelValues(label).Inc()
	}
	return tasks, nil
}
