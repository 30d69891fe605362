package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	otlptracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	otlpcommon "go.opentelemetry.io/proto/otlp/common/v1"
	otlpresource "go.opentelemetry.io/proto/otlp/resource/v1"
	otlptrace "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
)

// OTLP protocol names as used in OTEL_EXPORTER_OTLP_PROTOCOL.
const (
	ProtocolGRPC         = "grpc"
	ProtocolHTTPProtobuf = "http/protobuf"
	ProtocolHTTPJSON     = "http/json"
)

// TraceRequest builds an export request with one client span per scope name.
func TraceRequest(serviceName string, scopes ...string) *otlptracev1.ExportTraceServiceRequest {
	now := time.Now()
	rs := &otlptrace.ResourceSpans{
		Resource: &otlpresource.Resource{
			Attributes: []*otlpcommon.KeyValue{{
				Key:   "service.name",
				Value: &otlpcommon.AnyValue{Value: &otlpcommon.AnyValue_StringValue{StringValue: serviceName}},
			}},
		},
	}
	for _, scope := range scopes {
		traceID := uuid.New()
		spanID := uuid.New()
		rs.ScopeSpans = append(rs.ScopeSpans, &otlptrace.ScopeSpans{
			Scope: &otlpcommon.InstrumentationScope{Name: scope, Version: "1.0.0"},
			Spans: []*otlptrace.Span{{
				TraceId:           traceID[:],
				SpanId:            spanID[:8],
				Name:              "HTTP GET",
				Kind:              otlptrace.Span_SPAN_KIND_CLIENT,
				StartTimeUnixNano: uint64(now.Add(-10 * time.Millisecond).UnixNano()),
				EndTimeUnixNano:   uint64(now.UnixNano()),
			}},
		})
	}
	return &otlptracev1.ExportTraceServiceRequest{ResourceSpans: []*otlptrace.ResourceSpans{rs}}
}

// TracesJSON encodes the same payload as TraceRequest in OTLP/JSON.
func TracesJSON(serviceName string, scopes ...string) ([]byte, error) {
	td := ptrace.NewTraces()
	rs := td.ResourceSpans().AppendEmpty()
	rs.Resource().Attributes().PutStr("service.name", serviceName)
	now := time.Now()
	for _, scope := range scopes {
		ss := rs.ScopeSpans().AppendEmpty()
		ss.Scope().SetName(scope)
		ss.Scope().SetVersion("1.0.0")

		traceID := uuid.New()
		spanID := uuid.New()
		var sid [8]byte
		copy(sid[:], spanID[:8])

		span := ss.Spans().AppendEmpty()
		span.SetName("HTTP GET")
		span.SetKind(ptrace.SpanKindClient)
		span.SetTraceID(pcommon.TraceID(traceID))
		span.SetSpanID(pcommon.SpanID(sid))
		span.SetStartTimestamp(pcommon.NewTimestampFromTime(now.Add(-10 * time.Millisecond)))
		span.SetEndTimestamp(pcommon.NewTimestampFromTime(now))
	}
	return ptraceotlp.NewExportRequestFromTraces(td).MarshalJSON()
}

// ExportSpans sends one span per scope to an OTLP endpoint the way an
// instrumented application's exporter would. endpoint is a base URL such as
// "http://127.0.0.1:4318" (for grpc the scheme is stripped). Close failures
// are logged to the zerolog logger carried by ctx, if any.
func ExportSpans(ctx context.Context, endpoint, protocol, serviceName string, scopes ...string) error {
	switch protocol {
	case ProtocolGRPC:
		target := strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
		conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("failed to dial %s: %w", target, err)
		}
		defer harnesserrors.DeferClose(*zerolog.Ctx(ctx), conn, "failed to close grpc connection")

		client := otlptracev1.NewTraceServiceClient(conn)
		if _, err := client.Export(ctx, TraceRequest(serviceName, scopes...)); err != nil {
			return fmt.Errorf("grpc export failed: %w", err)
		}
		return nil

	case ProtocolHTTPJSON:
		body, err := TracesJSON(serviceName, scopes...)
		if err != nil {
			return fmt.Errorf("failed to encode traces: %w", err)
		}
		return post(ctx, endpoint+"/v1/traces", "application/json", body)

	case ProtocolHTTPProtobuf, "":
		body, err := proto.Marshal(TraceRequest(serviceName, scopes...))
		if err != nil {
			return fmt.Errorf("failed to encode traces: %w", err)
		}
		return post(ctx, endpoint+"/v1/traces", "application/x-protobuf", body)

	default:
		return fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

func post(ctx context.Context, url, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("http export failed: %w", err)
	}
	defer harnesserrors.DeferClose(*zerolog.Ctx(ctx), resp.Body, "failed to close response body")
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http export failed: %s", resp.Status)
	}
	return nil
}
