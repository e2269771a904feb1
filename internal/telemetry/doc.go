// Package telemetry exports vecli traces and metrics over OTLP.
//
// Export is off by default. When enabled, New installs a global
// TracerProvider and MeterProvider so spans started by the pipeline and
// index packages reach the configured collector:
//
//	tel, err := telemetry.New(ctx, cfg, telemetry.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// Telemetry failures never fail a command. If an exporter cannot be built the
// instance is marked degraded and the no-op globals stay in place.
//
// Tests use NewTestTelemetry, which records spans in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	ctx, span := tt.Tracer("test").Start(ctx, "Syncer.Sync")
//	span.End()
//	tt.AssertSpanExists(t, "Syncer.Sync")
package telemetry
