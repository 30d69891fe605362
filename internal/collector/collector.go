// Package collector implements a mock OTLP collector. It accepts telemetry
// over OTLP/gRPC and OTLP/HTTP on local addresses, records the instrumentation
// scope names of every span it receives, and checks them against registered
// expectations.
package collector

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip" // accept gzip-compressed exports
	otlplogsv1 "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	otlpmetricsv1 "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	otlptracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/constants"
)

// OTLP exporter protocols advertised to the instrumented app.
const (
	ProtocolGRPC         = "grpc"
	ProtocolHTTPProtobuf = "http/protobuf"
	ProtocolHTTPJSON     = "http/json"
)

// Config contains configuration for the mock collector.
type Config struct {
	// GRPCEndpoint is the OTLP/gRPC bind address (e.g. "127.0.0.1:4317"; port 0 picks a free port).
	GRPCEndpoint string `yaml:"grpc_endpoint" env:"E2E_COLLECTOR_GRPC_ENDPOINT"`

	// HTTPEndpoint is the OTLP/HTTP bind address.
	HTTPEndpoint string `yaml:"http_endpoint" env:"E2E_COLLECTOR_HTTP_ENDPOINT"`

	// Protocol selects which endpoint is advertised to the app.
	Protocol string `yaml:"protocol" env:"E2E_COLLECTOR_PROTOCOL"`

	// ServiceName is advertised as OTEL_SERVICE_NAME.
	ServiceName string `yaml:"service_name" env:"E2E_SERVICE_NAME"`
}

// DefaultConfig returns a collector configuration bound to ephemeral local ports.
func DefaultConfig() Config {
	return Config{
		GRPCEndpoint: constants.DefaultOTLPGRPCEndpoint,
		HTTPEndpoint: constants.DefaultOTLPHTTPEndpoint,
		Protocol:     constants.DefaultOTLPProtocol,
		ServiceName:  constants.DefaultServiceName,
	}
}

// Validate checks the protocol name.
func (c Config) Validate() error {
	switch c.Protocol {
	case ProtocolGRPC, ProtocolHTTPProtobuf, ProtocolHTTPJSON:
		return nil
	default:
		return fmt.Errorf("unsupported OTLP protocol %q (want grpc, http/protobuf or http/json)", c.Protocol)
	}
}

// Stats counts received export batches per signal.
type Stats struct {
	TraceBatches  int64 `json:"trace_batches"`
	Spans         int64 `json:"spans"`
	MetricBatches int64 `json:"metric_batches"`
	LogBatches    int64 `json:"log_batches"`
}

// Collector is the mock OTLP collector.
type Collector struct {
	config Config
	logger zerolog.Logger

	sources      *sourceSet
	expectations *sourceSet

	traceBatches  atomic.Int64
	spans         atomic.Int64
	metricBatches atomic.Int64
	logBatches    atomic.Int64

	grpcServer *grpc.Server
	httpServer *http.Server
	grpcLis    net.Listener
	httpLis    net.Listener
	stopCh     chan struct{}
	running    bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// New creates a collector. Empty config fields take their defaults.
func New(config Config, logger zerolog.Logger) *Collector {
	defaults := DefaultConfig()
	if config.GRPCEndpoint == "" {
		config.GRPCEndpoint = defaults.GRPCEndpoint
	}
	if config.HTTPEndpoint == "" {
		config.HTTPEndpoint = defaults.HTTPEndpoint
	}
	if config.Protocol == "" {
		config.Protocol = defaults.Protocol
	}
	if config.ServiceName == "" {
		config.ServiceName = defaults.ServiceName
	}

	return &Collector{
		config:       config,
		logger:       logger.With().Str("component", "mock_collector").Logger(),
		sources:      newSourceSet(),
		expectations: newSourceSet(),
	}
}

// Start binds both receivers. The collector stops when Stop is called or ctx is done.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("mock collector already running")
	}
	if err := c.config.Validate(); err != nil {
		return err
	}

	if err := c.startGRPC(); err != nil {
		return fmt.Errorf("failed to start gRPC receiver: %w", err)
	}
	if err := c.startHTTP(); err != nil {
		c.grpcServer.Stop()
		c.wg.Wait()
		return fmt.Errorf("failed to start HTTP receiver: %w", err)
	}

	c.stopCh = make(chan struct{})
	c.running = true

	stopCh := c.stopCh
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-stopCh:
		}
	}()

	c.logger.Info().
		Str("grpc_endpoint", c.grpcLis.Addr().String()).
		Str("http_endpoint", c.httpLis.Addr().String()).
		Str("protocol", c.config.Protocol).
		Msg("Mock collector started")

	return nil
}

func (c *Collector) startGRPC() error {
	lis, err := net.Listen("tcp", c.config.GRPCEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.config.GRPCEndpoint, err)
	}

	c.grpcLis = lis
	c.grpcServer = grpc.NewServer()

	otlptracev1.RegisterTraceServiceServer(c.grpcServer, &traceService{collector: c})
	otlpmetricsv1.RegisterMetricsServiceServer(c.grpcServer, &metricsService{collector: c})
	otlplogsv1.RegisterLogsServiceServer(c.grpcServer, &logsService{collector: c})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.grpcServer.Serve(lis); err != nil {
			c.logger.Error().Err(err).Msg("gRPC server error")
		}
	}()

	return nil
}

func (c *Collector) startHTTP() error {
	lis, err := net.Listen("tcp", c.config.HTTPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.config.HTTPEndpoint, err)
	}

	c.httpLis = lis

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/traces", c.handleHTTPTraces)
	mux.HandleFunc("/v1/metrics", c.handleHTTPMetrics)
	mux.HandleFunc("/v1/logs", c.handleHTTPLogs)

	c.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			c.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop shuts both receivers down. It is safe to call more than once.
func (c *Collector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	close(c.stopCh)

	// GracefulStop waits for in-flight exports; fall back to a hard stop.
	stopped := make(chan struct{})
	go func() {
		c.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(constants.DefaultShutdownTimeout):
		c.grpcServer.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()
	var shutdownErr error
	if err := c.httpServer.Shutdown(ctx); err != nil {
		shutdownErr = fmt.Errorf("HTTP server shutdown: %w", err)
	}

	c.wg.Wait()
	c.running = false

	c.logger.Info().
		Strs("received", c.sources.snapshot()).
		Int64("trace_batches", c.traceBatches.Load()).
		Msg("Mock collector stopped")

	return shutdownErr
}

// GRPCAddr returns the bound OTLP/gRPC address, or "" before Start.
func (c *Collector) GRPCAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grpcLis == nil {
		return ""
	}
	return c.grpcLis.Addr().String()
}

// HTTPAddr returns the bound OTLP/HTTP address, or "" before Start.
func (c *Collector) HTTPAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpLis == nil {
		return ""
	}
	return c.httpLis.Addr().String()
}

// Endpoint returns the base URL advertised to the app for the configured protocol.
func (c *Collector) Endpoint() string {
	if c.config.Protocol == ProtocolGRPC {
		return "http://" + c.GRPCAddr()
	}
	return "http://" + c.HTTPAddr()
}

// Env returns the exporter environment that points an instrumented app at this collector.
func (c *Collector) Env() map[string]string {
	return map[string]string{
		"OTEL_TRACES_EXPORTER":        "otlp",
		"OTEL_EXPORTER_OTLP_ENDPOINT": c.Endpoint(),
		"OTEL_EXPORTER_OTLP_PROTOCOL": c.config.Protocol,
		"OTEL_SERVICE_NAME":           c.config.ServiceName,
	}
}

// Stats returns the batch counters.
func (c *Collector) Stats() Stats {
	return Stats{
		TraceBatches:  c.traceBatches.Load(),
		Spans:         c.spans.Load(),
		MetricBatches: c.metricBatches.Load(),
		LogBatches:    c.logBatches.Load(),
	}
}
