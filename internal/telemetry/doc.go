// Package telemetry installs the OpenTelemetry trace, metric and log providers.
//
// Components create their tracers and meters from the otel globals, so a
// run exports spans and instruments only after New has been called with
// an enabled Config. Export is OTLP over gRPC or HTTP/protobuf. The log
// provider is handed to the logging package's otelzap core through
// LoggerProvider.
//
// Telemetry never fails a run: an exporter that cannot be built is logged
// and skipped, leaving the corresponding global as a no-op.
//
//	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.Telemetry, version), logger)
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
package telemetry
