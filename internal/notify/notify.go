// Package notify pushes finished analyses to subscribers. Delivery is best
// effort: callers log publish failures and carry on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/types"
)

const (
	DefaultSubjectPrefix = "analyses"
	EventCompleted       = "completed"
	flushTimeout         = 2 * time.Second
)

type Notifier interface {
	Publish(ctx context.Context, analysisID string, rec types.AnalysisRecord) error
	Close()
}

// Event is the JSON payload published for an analysis.
type Event struct {
	AnalysisID  string               `json:"analysis_id"`
	Event       string               `json:"event"`
	Record      types.AnalysisRecord `json:"record"`
	PublishedAt time.Time            `json:"published_at"`
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Publish(context.Context, string, types.AnalysisRecord) error { return nil }
func (Nop) Close()                                                        {}

// NATSPublisher publishes events on <prefix>.<analysis id>.completed.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
	log    *logrus.Entry
}

var (
	_ Notifier = (*NATSPublisher)(nil)
	_ Notifier = Nop{}
)

// Connect dials the NATS server at url. The returned publisher owns the
// connection and closes it on Close.
func Connect(url, prefix string, log *logrus.Entry) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("meeting-insights"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithField("error", err.Error()).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := NewNATSPublisher(nc, prefix, log)
	p.owned = true
	return p, nil
}

// NewNATSPublisher wraps an existing connection; Close leaves it open.
func NewNATSPublisher(nc *nats.Conn, prefix string, log *logrus.Entry) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix, log: log}
}

// Subject returns the subject an analysis event is published on.
func (p *NATSPublisher) Subject(analysisID, event string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, token(analysisID), event)
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

func (p *NATSPublisher) Publish(ctx context.Context, analysisID string, rec types.AnalysisRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Event{
		AnalysisID:  analysisID,
		Event:       EventCompleted,
		Record:      rec,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := p.Subject(analysisID, EventCompleted)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	fctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.nc.FlushWithContext(fctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	p.log.WithFields(logrus.Fields{"subject": subject, "bytes": len(data)}).Debug("analysis event published")
	return nil
}

func (p *NATSPublisher) Close() {
	if p.owned {
		p.nc.Close()
	}
}
