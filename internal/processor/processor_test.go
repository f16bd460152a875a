package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-insights-go/internal/deadline"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/runguard"
	"meeting-insights-go/internal/transcription"
	"meeting-insights-go/internal/types"
)

type runnerFunc func(ctx context.Context, text string) (types.AnalysisRecord, error)

func (f runnerFunc) Run(ctx context.Context, text string) (types.AnalysisRecord, error) {
	return f(ctx, text)
}

type fetcherFunc func(ctx context.Context, url string) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) (string, error) { return f(ctx, url) }

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (n *recordingNotifier) Publish(_ context.Context, id string, _ types.AnalysisRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, id)
	return n.err
}

func okRunner(seen *string) runnerFunc {
	return func(_ context.Context, text string) (types.AnalysisRecord, error) {
		if seen != nil {
			*seen = text
		}
		return types.AnalysisRecord{
			Summary: "sync",
			Tasks: []types.Task{{
				TaskDraft:    types.TaskDraft{Description: "Send report", Priority: types.PriorityHigh, Confidence: 0.9},
				IsUnassigned: false,
			}},
		}, nil
	}
}

func newTestService(r Runner, f TranscriptFetcher, n Notifier) *Service {
	log := logger.Discard().Entry
	return NewService(Deps{
		Pipeline:  r,
		Guard:     runguard.New(time.Minute),
		Fetcher:   f,
		Notifier:  n,
		Deadlines: deadline.NewNormalizer(deadline.Config{}, log),
		Log:       log,
	})
}

func TestAnalyze_Text(t *testing.T) {
	var seen string
	notifier := &recordingNotifier{}
	svc := newTestService(okRunner(&seen), nil, notifier)

	res, err := svc.Analyze(context.Background(), Request{Text: "Alice: please send the report."})
	require.NoError(t, err)

	_, err = uuid.Parse(res.AnalysisID)
	assert.NoError(t, err)
	assert.Equal(t, "Alice: please send the report.", seen)
	assert.Equal(t, "sync", res.Record.Summary)
	assert.Equal(t, 1, res.Insight.TotalTasks)
	assert.Equal(t, "Review high-priority items first", res.ActionCard.Action)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
	assert.Equal(t, []string{res.AnalysisID}, notifier.ids)
}

func TestAnalyze_RequestValidation(t *testing.T) {
	svc := newTestService(okRunner(nil), nil, nil)
	for name, req := range map[string]Request{
		"neither":         {},
		"both":            {Text: "hello there", TranscriptURL: "http://example.com/t"},
		"url unsupported": {TranscriptURL: "http://example.com/t"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Analyze(context.Background(), req)
			assert.ErrorIs(t, err, pipeline.ErrInvalidInput)
		})
	}
}

func TestAnalyze_TranscriptURL(t *testing.T) {
	var seen string
	fetcher := fetcherFunc(func(_ context.Context, url string) (string, error) {
		assert.Equal(t, "https://files.example.com/standup.txt", url)
		return "Bob: I will book the room.", nil
	})
	svc := newTestService(okRunner(&seen), fetcher, nil)

	_, err := svc.Analyze(context.Background(), Request{TranscriptURL: "https://files.example.com/standup.txt"})
	require.NoError(t, err)
	assert.Equal(t, "Bob: I will book the room.", seen)
}

func TestAnalyze_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		invalid bool
	}{
		{"bad url", transcription.ErrBadURL, true},
		{"not found", &transcription.StatusError{StatusCode: 404}, true},
		{"too large", transcription.ErrTooLarge, true},
		{"upstream down", &transcription.StatusError{StatusCode: 503}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := fetcherFunc(func(context.Context, string) (string, error) { return "", tt.err })
			svc := newTestService(okRunner(nil), fetcher, nil)

			_, err := svc.Analyze(context.Background(), Request{TranscriptURL: "https://x.example.com/t"})
			require.Error(t, err)
			assert.Equal(t, tt.invalid, errors.Is(err, pipeline.ErrInvalidInput))
			assert.Equal(t, !tt.invalid, errors.Is(err, ErrTranscriptUnavailable))
		})
	}
}

func TestAnalyze_NotifierFailureIsIgnored(t *testing.T) {
	svc := newTestService(okRunner(nil), nil, &recordingNotifier{err: errors.New("nats down")})
	_, err := svc.Analyze(context.Background(), Request{Text: "long enough transcript"})
	assert.NoError(t, err)
}

func TestAnalyze_PipelineFailureSkipsNotify(t *testing.T) {
	notifier := &recordingNotifier{}
	boom := errors.New("boom")
	svc := newTestService(runnerFunc(func(context.Context, string) (types.AnalysisRecord, error) {
		return types.AnalysisRecord{}, boom
	}), nil, notifier)

	_, err := svc.Analyze(context.Background(), Request{Text: "long enough transcript"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, notifier.ids)
}

func TestReanalyze_RejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	runner := runnerFunc(func(context.Context, string) (types.AnalysisRecord, error) {
		close(started)
		<-release
		return types.AnalysisRecord{Summary: "done"}, nil
	})
	svc := newTestService(runner, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Reanalyze(context.Background(), "analysis:42", "42", Request{Text: "long enough transcript"})
		done <- err
	}()
	<-started

	_, err := svc.Reanalyze(context.Background(), "analysis:42", "42", Request{Text: "long enough transcript"})
	var rErr *runguard.RunInProgressError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, "analysis:42", rErr.Key)
	assert.Greater(t, rErr.Remaining, time.Duration(0))

	close(release)
	require.NoError(t, <-done)
	assert.Zero(t, svc.deps.Guard.Remaining("analysis:42"), "guard is released when the run ends")
}

func TestReanalyze_ReleasesOnFailure(t *testing.T) {
	calls := 0
	runner := runnerFunc(func(context.Context, string) (types.AnalysisRecord, error) {
		calls++
		if calls == 1 {
			return types.AnalysisRecord{}, errors.New("oracle down")
		}
		return types.AnalysisRecord{}, nil
	})
	svc := newTestService(runner, nil, nil)

	_, err := svc.Reanalyze(context.Background(), "user:7", "a1", Request{Text: "long enough transcript"})
	require.Error(t, err)

	res, err := svc.Reanalyze(context.Background(), "user:7", "a1", Request{Text: "long enough transcript"})
	require.NoError(t, err)
	assert.Equal(t, "a1", res.AnalysisID)
}

func TestParseDeadline(t *testing.T) {
	svc := newTestService(okRunner(nil), nil, nil)
	assert.NotNil(t, svc.ParseDeadline("tomorrow"))
	assert.Nil(t, svc.ParseDeadline("when pigs fly"))
}
