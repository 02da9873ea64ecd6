// Package httpmetrics instruments an HTTP server as a measured object.
//
// Metrics are registered under <root>.http.servers.<address>:
//
//	requests                 timer, every request
//	<method>-requests        timer per known method (get-requests, ...)
//	<method>-requests.<uri>  timer per monitored URI, only when rules are configured
//	responses-1xx ... 5xx    meter per status class
//	open-requests            counter of in-flight requests
//	requests-per-second      throughput over the last second
//	bytes-written            histogram of response sizes
package httpmetrics

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Sternrassler/measured-metrics/pkg/match"
	"github.com/Sternrassler/measured-metrics/pkg/measured"
	"github.com/Sternrassler/measured-metrics/pkg/metric"
	"github.com/Sternrassler/measured-metrics/pkg/registry"
)

var knownMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace,
}

// ServerMetrics records request metrics for one listening address.
type ServerMetrics struct {
	*measured.Base

	matcher *match.Matcher
	clock   metric.Clock

	requests     *metric.Timer
	byMethod     map[string]*metric.Timer
	responses    [5]*metric.Meter
	openRequests *metric.Counter
	perSecond    *metric.Throughput
	bytesWritten *metric.Histogram
}

// BaseName returns the base name used for a server on addr below root.
func BaseName(root, addr string) string {
	return metric.Name(root, "http.servers", addr)
}

// New registers the server metrics for addr. A REGEX rule that does not
// compile is rejected with match.ErrInvalidRegexRule.
func New(reg *registry.Registry, root, addr string, monitored []match.Rule) (*ServerMetrics, error) {
	matcher, err := match.Compile(monitored)
	if err != nil {
		return nil, fmt.Errorf("monitored uris: %w", err)
	}

	base := measured.NewBase(reg, BaseName(root, addr))
	s := &ServerMetrics{
		Base:         base,
		matcher:      matcher,
		clock:        metric.SystemClock,
		requests:     base.Timer("requests"),
		byMethod:     make(map[string]*metric.Timer, len(knownMethods)),
		openRequests: base.Counter("open-requests"),
		perSecond:    base.Throughput("requests-per-second"),
		bytesWritten: base.Histogram("bytes-written"),
	}
	if reg != nil {
		s.clock = reg.Clock()
	}
	for _, method := range knownMethods {
		s.byMethod[method] = base.Timer(methodMetric(method))
	}
	for i := range s.responses {
		s.responses[i] = base.Meter(fmt.Sprintf("responses-%dxx", i+1))
	}
	return s, nil
}

// Middleware records metrics for every request served by next.
func (s *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		s.openRequests.Inc()
		defer s.openRequests.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := s.clock.Now().Sub(start)
		s.requests.Update(elapsed)
		s.perSecond.Mark()
		s.bytesWritten.Update(int64(rw.size))

		if t, ok := s.byMethod[r.Method]; ok {
			t.Update(elapsed)
		}
		if class := rw.statusCode / 100; class >= 1 && class <= 5 {
			s.responses[class-1].Mark(1)
		}

		// Per-URI timers exist only for explicitly monitored URIs.
		if !s.matcher.Permissive() {
			if label, ok := s.matcher.Match(r.URL.Path); ok {
				s.Timer(methodMetric(r.Method), label).Update(elapsed)
			}
		}
	})
}

// Close removes every metric of the server and returns how many were removed.
func (s *ServerMetrics) Close() int {
	return s.RemoveAll()
}

func methodMetric(method string) string {
	return strings.ToLower(method) + "-requests"
}

// responseWriter wraps http.ResponseWriter to record status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
