package collector

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	otlplogsv1 "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	otlpmetricsv1 "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	otlptracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/proto"
)

// maxBodyBytes bounds a single OTLP/HTTP request body after decompression.
const maxBodyBytes = 64 << 20

// traceService implements the OTLP gRPC TraceService.
type traceService struct {
	otlptracev1.UnimplementedTraceServiceServer
	collector *Collector
}

// metricsService acknowledges OTLP gRPC metric exports.
type metricsService struct {
	otlpmetricsv1.UnimplementedMetricsServiceServer
	collector *Collector
}

// logsService acknowledges OTLP gRPC log exports.
type logsService struct {
	otlplogsv1.UnimplementedLogsServiceServer
	collector *Collector
}

// Export implements TraceService.Export.
func (s *traceService) Export(
	ctx context.Context,
	req *otlptracev1.ExportTraceServiceRequest,
) (*otlptracev1.ExportTraceServiceResponse, error) {
	names, spans := scopesFromProto(req)
	s.collector.onReceive("grpc", names, spans)
	return &otlptracev1.ExportTraceServiceResponse{}, nil
}

// Export implements MetricsService.Export.
func (s *metricsService) Export(
	ctx context.Context,
	req *otlpmetricsv1.ExportMetricsServiceRequest,
) (*otlpmetricsv1.ExportMetricsServiceResponse, error) {
	s.collector.metricBatches.Add(1)
	return &otlpmetricsv1.ExportMetricsServiceResponse{}, nil
}

// Export implements LogsService.Export.
func (s *logsService) Export(
	ctx context.Context,
	req *otlplogsv1.ExportLogsServiceRequest,
) (*otlplogsv1.ExportLogsServiceResponse, error) {
	s.collector.logBatches.Add(1)
	return &otlplogsv1.ExportLogsServiceResponse{}, nil
}

// onReceive records one trace batch. Duplicate names and names nobody
// expects are recorded like any other.
func (c *Collector) onReceive(transport string, names []string, spans int) {
	c.traceBatches.Add(1)
	c.spans.Add(int64(spans))
	c.sources.add(names...)

	c.logger.Debug().
		Str("transport", transport).
		Int("spans", spans).
		Strs("libraries", names).
		Msg("Received trace export")
}

// scopesFromProto returns the scope name of every scope that carries at
// least one span, and the total span count.
func scopesFromProto(req *otlptracev1.ExportTraceServiceRequest) ([]string, int) {
	if req == nil {
		return nil, 0
	}
	var names []string
	spans := 0
	for _, rs := range req.GetResourceSpans() {
		for _, ss := range rs.GetScopeSpans() {
			if len(ss.GetSpans()) == 0 {
				continue
			}
			spans += len(ss.GetSpans())
			if name := ss.GetScope().GetName(); name != "" {
				names = append(names, name)
			}
		}
	}
	return names, spans
}

// scopesFromTraces is scopesFromProto for pdata traces decoded from OTLP/JSON.
func scopesFromTraces(td ptrace.Traces) ([]string, int) {
	var names []string
	spans := 0
	rss := td.ResourceSpans()
	for i := 0; i < rss.Len(); i++ {
		sss := rss.At(i).ScopeSpans()
		for j := 0; j < sss.Len(); j++ {
			ss := sss.At(j)
			if ss.Spans().Len() == 0 {
				continue
			}
			spans += ss.Spans().Len()
			if name := ss.Scope().Name(); name != "" {
				names = append(names, name)
			}
		}
	}
	return names, spans
}

// handleHTTPTraces handles OTLP/HTTP trace exports in protobuf or JSON.
func (c *Collector) handleHTTPTraces(w http.ResponseWriter, req *http.Request) {
	body, isJSON, ok := readExport(w, req)
	if !ok {
		return
	}

	if isJSON {
		exportReq := ptraceotlp.NewExportRequest()
		if err := exportReq.UnmarshalJSON(body); err != nil {
			http.Error(w, "Failed to parse OTLP JSON request", http.StatusBadRequest)
			return
		}
		names, spans := scopesFromTraces(exportReq.Traces())
		c.onReceive("http/json", names, spans)

		respBytes, err := ptraceotlp.NewExportResponse().MarshalJSON()
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		writeResponse(w, "application/json", respBytes)
		return
	}

	var exportReq otlptracev1.ExportTraceServiceRequest
	if err := proto.Unmarshal(body, &exportReq); err != nil {
		http.Error(w, "Failed to parse OTLP request", http.StatusBadRequest)
		return
	}
	names, spans := scopesFromProto(&exportReq)
	c.onReceive("http/protobuf", names, spans)

	respBytes, err := proto.Marshal(&otlptracev1.ExportTraceServiceResponse{})
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	writeResponse(w, "application/x-protobuf", respBytes)
}

// handleHTTPMetrics acknowledges OTLP/HTTP metric exports.
func (c *Collector) handleHTTPMetrics(w http.ResponseWriter, req *http.Request) {
	c.acknowledge(w, req, &otlpmetricsv1.ExportMetricsServiceRequest{}, &otlpmetricsv1.ExportMetricsServiceResponse{}, func() {
		c.metricBatches.Add(1)
	})
}

// handleHTTPLogs acknowledges OTLP/HTTP log exports.
func (c *Collector) handleHTTPLogs(w http.ResponseWriter, req *http.Request) {
	c.acknowledge(w, req, &otlplogsv1.ExportLogsServiceRequest{}, &otlplogsv1.ExportLogsServiceResponse{}, func() {
		c.logBatches.Add(1)
	})
}

// acknowledge validates a protobuf payload against msg, counts it and replies
// with an empty response. JSON payloads are counted without decoding.
func (c *Collector) acknowledge(w http.ResponseWriter, req *http.Request, msg, resp proto.Message, count func()) {
	body, isJSON, ok := readExport(w, req)
	if !ok {
		return
	}
	if isJSON {
		count()
		writeResponse(w, "application/json", []byte("{}"))
		return
	}
	if err := proto.Unmarshal(body, msg); err != nil {
		http.Error(w, "Failed to parse OTLP request", http.StatusBadRequest)
		return
	}
	count()

	respBytes, err := proto.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	writeResponse(w, "application/x-protobuf", respBytes)
}

// readExport checks the method, decompresses the body and reports whether it
// is JSON. On failure it has already written the HTTP error.
func readExport(w http.ResponseWriter, req *http.Request) ([]byte, bool, bool) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false, false
	}
	defer func() { _ = req.Body.Close() }()

	var reader io.Reader = req.Body
	switch req.Header.Get("Content-Encoding") {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(req.Body)
		if err != nil {
			http.Error(w, "Invalid gzip body", http.StatusBadRequest)
			return nil, false, false
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	default:
		http.Error(w, "Unsupported Content-Encoding", http.StatusUnsupportedMediaType)
		return nil, false, false
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes+1))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false, false
	}
	if len(body) > maxBodyBytes {
		http.Error(w, fmt.Sprintf("Request body exceeds %d bytes", maxBodyBytes), http.StatusRequestEntityTooLarge)
		return nil, false, false
	}

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		return body, true, true
	case "", "application/x-protobuf", "application/protobuf":
		return body, false, true
	default:
		http.Error(w, "Unsupported Content-Type", http.StatusUnsupportedMediaType)
		return nil, false, false
	}
}

func writeResponse(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
