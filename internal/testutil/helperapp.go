package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/retry"
)

// exportRetry mirrors the OTLP exporter's retry of transient failures.
var exportRetry = retry.Config{
	MaxRetries:     3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     time.Second,
}

// Environment understood by the helper app.
const (
	// HelperAppEnv switches a test binary into helper-app mode.
	HelperAppEnv = "E2E_HELPER_APP"
	// HelperScopesEnv is a comma-separated list of instrumentation scopes to report.
	HelperScopesEnv = "E2E_HELPER_SCOPES"
	// HelperExitCodeEnv sets the exit code.
	HelperExitCodeEnv = "E2E_HELPER_EXIT_CODE"
	// HelperSleepEnv makes the app hang for a duration after exporting.
	HelperSleepEnv = "E2E_HELPER_SLEEP"
)

// RunHelperAppIfRequested turns the current test binary into the
// instrumented application when HelperAppEnv is set. Call it first in TestMain.
func RunHelperAppIfRequested() {
	if os.Getenv(HelperAppEnv) != "1" {
		return
	}
	os.Exit(runHelperApp(os.Args[1:]))
}

// runHelperApp mimics the sample HTTP client: it prints progress, reports a
// span per configured scope to the endpoint named by the standard OTLP
// exporter variables, optionally hangs, and exits with the configured code.
func runHelperApp(args []string) int {
	fmt.Printf("args: %s\n", strings.Join(args, " "))
	fmt.Println("=============Http===============")

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	protocol := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	service := os.Getenv("OTEL_SERVICE_NAME")

	var scopes []string
	for _, s := range strings.Split(os.Getenv(HelperScopesEnv), ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}

	if len(scopes) > 0 {
		if endpoint == "" {
			fmt.Fprintln(os.Stderr, "OTEL_EXPORTER_OTLP_ENDPOINT is not set")
			return 2
		}
		logger := zerolog.New(os.Stderr).With().Str("component", "helper_app").Logger()
		ctx, cancel := context.WithTimeout(logger.WithContext(context.Background()), 10*time.Second)
		err := retry.Do(ctx, exportRetry, func() error {
			return ExportSpans(ctx, endpoint, protocol, service, scopes...)
		}, nil)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			return 2
		}
		fmt.Printf("exported %d spans via %s\n", len(scopes), protocol)
	}

	if d, err := time.ParseDuration(os.Getenv(HelperSleepEnv)); err == nil && d > 0 {
		fmt.Println("sleeping")
		time.Sleep(d)
	}

	code, err := strconv.Atoi(os.Getenv(HelperExitCodeEnv))
	if err != nil {
		code = 0
	}
	if code != 0 {
		fmt.Fprintf(os.Stderr, "exiting with %d\n", code)
	}
	return code
}
