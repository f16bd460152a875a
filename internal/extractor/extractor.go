package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/types"
)

// Oracle is the external language model: prompt text in, raw text out.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(ctx context.Context, prompt string) (string, error)

func (f OracleFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Client runs exactly one oracle call per chunk and validates the answer.
// It never retries.
type Client struct {
	oracle Oracle
	log    *logrus.Entry
}

func NewClient(oracle Oracle, log *logrus.Entry) *Client {
	return &Client{oracle: oracle, log: log}
}

// Extract sends the chunk to the oracle and decodes the reply. Transport
// problems come back as *OracleUnavailableError, unusable replies as
// *MalformedResponseError. A cancelled ctx is returned as ctx.Err().
func (c *Client) Extract(ctx context.Context, chunk types.Chunk) (types.ExtractionResult, error) {
	log := c.log.WithFields(logrus.Fields{"chunk": chunk.Index + 1, "total_chunks": chunk.TotalChunks})

	start := time.Now()
	raw, err := c.oracle.Generate(ctx, BuildPrompt(chunk))
	if err != nil {
		var mErr *MalformedResponseError
		if errors.As(err, &mErr) {
			mErr.Chunk = chunk.Index
			log.WithField("error", err.Error()).Warn("oracle response rejected")
			return types.ExtractionResult{}, mErr
		}
		err = classify(ctx, err)
		log.WithField("error", err.Error()).Warn("oracle call failed")
		return types.ExtractionResult{}, err
	}
	log.WithFields(logrus.Fields{
		"duration_ms":  time.Since(start).Milliseconds(),
		"response_len": len(raw),
	}).Debug("oracle responded")

	res, err := Decode(raw)
	if err != nil {
		var mErr *MalformedResponseError
		if errors.As(err, &mErr) {
			mErr.Chunk = chunk.Index
		}
		log.WithField("error", err.Error()).Warn("oracle response rejected")
		return types.ExtractionResult{}, err
	}
	return res, nil
}

func classify(ctx context.Context, err error) error {
	var oErr *OracleUnavailableError
	if errors.As(err, &oErr) {
		return oErr
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return unavailable(FailureTimeout, 0, err)
	}
	return unavailable(FailureNetwork, 0, fmt.Errorf("oracle call: %w", err))
}
