package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/extractor"
	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/processor"
	"meeting-insights-go/internal/runguard"
)

type errorBody struct {
	Error             string `json:"error"`
	Code              string `json:"code"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// classify maps a service error onto a status code and a user-facing body.
func classify(err error) (int, errorBody) {
	var (
		runErr    *runguard.RunInProgressError
		oracleErr *extractor.OracleUnavailableError
	)
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_input"}

	case errors.As(err, &runErr):
		secs := seconds(runErr.Remaining)
		return http.StatusConflict, errorBody{
			Error:             fmt.Sprintf("An analysis is already running. Please wait %ds before trying again.", secs),
			Code:              "run_in_progress",
			RetryAfterSeconds: secs,
		}

	case errors.As(err, &oracleErr):
		switch oracleErr.Kind {
		case extractor.FailureAuth:
			return http.StatusBadGateway, errorBody{
				Error: "The language model rejected the service credentials. An operator needs to check the configuration.",
				Code:  "oracle_auth",
			}
		case extractor.FailureRateLimit:
			return http.StatusServiceUnavailable, errorBody{
				Error:             "The language model is busy. Try again shortly.",
				Code:              "oracle_rate_limited",
				RetryAfterSeconds: seconds(oracleErr.RetryAfter),
			}
		case extractor.FailureRejected:
			return http.StatusBadGateway, errorBody{
				Error: "The language model refused the request. Try again.",
				Code:  "oracle_rejected",
			}
		default:
			return http.StatusGatewayTimeout, errorBody{
				Error: "The language model could not be reached. Try again.",
				Code:  "oracle_unavailable",
			}
		}

	case errors.Is(err, extractor.ErrMalformedResponse):
		return http.StatusBadGateway, errorBody{
			Error: "The analysis came back unreadable. Try again.",
			Code:  "malformed_response",
		}

	case errors.Is(err, processor.ErrTranscriptUnavailable):
		return http.StatusBadGateway, errorBody{
			Error: "The transcript could not be downloaded. Try again.",
			Code:  "transcript_unavailable",
		}

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorBody{Error: "The request was cancelled.", Code: "cancelled"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"}
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func (s *Server) writeError(w http.ResponseWriter, log *logrus.Entry, err error) {
	status, body := classify(err)
	entry := log.WithFields(logrus.Fields{"error": err.Error(), "status": status, "code": body.Code})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	if body.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	}
	writeJSON(w, log, status, body)
}
