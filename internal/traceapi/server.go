package traceapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
)

// maxQueryBins caps the bin count a request may ask for.
const maxQueryBins = 1 << 16

const (
	contentTypeJSON   = "application/json"
	contentTypeNDJSON = "application/x-ndjson"
)

// Server exposes a Client over the HTTP wire format.
type Server struct {
	svc    Client
	logger *slog.Logger
}

// NewServer wraps svc. A nil logger uses slog.Default.
func NewServer(svc Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{svc: svc, logger: logger}
}

// Routes registers the query endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /datasets/{id}/histogram", s.handleHistogram)
	mux.HandleFunc("GET /datasets/{id}/intervals", s.handleIntervals)
	mux.HandleFunc("GET /datasets/{id}/primitives/{node}/traceForward", s.handleTraceForward)
	mux.HandleFunc("GET /datasets/{id}/utilizationHistogram", s.handleUtilization)
	mux.HandleFunc("GET /datasets/{id}/mergedUtilization", s.handleMergedUtilization)
}

// Handler returns a mux serving only the query endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Routes(mux)

	return mux
}

func (s *Server) handleHistogram(rw http.ResponseWriter, req *http.Request) {
	bins, begin, end, err := parseRange(req, true)
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	hist, err := s.svc.Histogram(req.Context(), req.PathValue("id"), bins, begin, end)
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	s.writeJSON(rw, req, func() ([]byte, error) { return EncodeHistogram(hist) })
}

func (s *Server) handleTraceForward(rw http.ResponseWriter, req *http.Request) {
	bins, begin, end, err := parseRange(req, true)
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	fwd, err := s.svc.PrimitiveTraceForward(req.Context(), req.PathValue("id"), req.PathValue("node"), bins, begin, end)
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	s.writeJSON(rw, req, func() ([]byte, error) { return EncodeForward(fwd) })
}

func (s *Server) handleUtilization(rw http.ResponseWriter, req *http.Request) {
	bins, begin, end, err := parseRange(req, true)
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	q := req.URL.Query()

	util, err := s.svc.UtilizationHistogram(req.Context(), req.PathValue("id"), q.Get(ParamPrimitive),
		SplitLocations(q.Get(ParamLocations)), bins, begin, end)
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	s.writeJSON(rw, req, func() ([]byte, error) { return EncodeUtilization(util) })
}

func (s *Server) handleMergedUtilization(rw http.ResponseWriter, req *http.Request) {
	bins, begin, end, err := parseRange(req, true)
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	q := req.URL.Query()

	mode, err := ParseUtilMode(q.Get(ParamMode))
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	series, err := s.svc.MergedUtilization(req.Context(), req.PathValue("id"), q.Get(ParamPrimitive), mode, bins, begin, end)
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	s.writeJSON(rw, req, func() ([]byte, error) { return EncodeSeries(series) })
}

func (s *Server) handleIntervals(rw http.ResponseWriter, req *http.Request) {
	_, begin, end, err := parseRange(req, false)
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	q := IntervalQuery{
		Dataset:   req.PathValue("id"),
		Begin:     begin,
		End:       end,
		Locations: SplitLocations(req.URL.Query().Get(ParamLocations)),
	}

	flusher, _ := rw.(http.Flusher)
	started := false
	sent := 0

	err = s.svc.Intervals(req.Context(), q, func(chunk []trace.Interval) error {
		if !started {
			rw.Header().Set("Content-Type", contentTypeNDJSON)
			rw.WriteHeader(http.StatusOK)

			started = true
		}

		for _, iv := range chunk {
			line, marshalErr := iv.MarshalLine()
			if marshalErr != nil {
				return marshalErr
			}

			if _, writeErr := rw.Write(append(line, '\n')); writeErr != nil {
				return fmt.Errorf("write stream: %w", writeErr)
			}
		}

		sent += len(chunk)

		if flusher != nil {
			flusher.Flush()
		}

		return nil
	})
	if err != nil {
		if !started {
			s.writeError(rw, req, err)

			return
		}

		// Headers are gone; the missing completion line tells the client.
		s.logger.WarnContext(req.Context(), "traceapi: interval stream aborted", "sent", sent, "error", err)

		return
	}

	if !started {
		rw.Header().Set("Content-Type", contentTypeNDJSON)
		rw.WriteHeader(http.StatusOK)
	}

	_, _ = rw.Write(append(EncodeDone(), '\n'))
}

func (s *Server) writeJSON(rw http.ResponseWriter, req *http.Request, encode func() ([]byte, error)) {
	body, err := encode()
	if err != nil {
		s.writeError(rw, req, err)

		return
	}

	rw.Header().Set("Content-Type", contentTypeJSON)

	if _, err = rw.Write(body); err != nil {
		s.logger.DebugContext(req.Context(), "traceapi: write response", "error", err)
	}
}

func (s *Server) writeError(rw http.ResponseWriter, req *http.Request, err error) {
	status := StatusFor(err)

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.ErrorContext(req.Context(), "traceapi: request failed", "path", req.URL.Path, "error", err)
	}

	http.Error(rw, err.Error(), status)
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrStillLoading):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnknownDataset), errors.Is(err, ErrUnknownPrimitive):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseRange(req *http.Request, needBins bool) (bins int, begin, end float64, err error) {
	q := req.URL.Query()

	if needBins {
		bins, err = strconv.Atoi(q.Get(ParamBins))
		if err != nil || bins <= 0 || bins > maxQueryBins {
			return 0, 0, 0, fmt.Errorf("%w: bins=%q", ErrInvalidQuery, q.Get(ParamBins))
		}
	}

	begin, err = strconv.ParseFloat(q.Get(ParamBegin), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: begin=%q", ErrInvalidQuery, q.Get(ParamBegin))
	}

	end, err = strconv.ParseFloat(q.Get(ParamEnd), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: end=%q", ErrInvalidQuery, q.Get(ParamEnd))
	}

	if end < begin {
		return 0, 0, 0, fmt.Errorf("%w: end %g before begin %g", ErrInvalidQuery, end, begin)
	}

	return bins, begin, end, nil
}
