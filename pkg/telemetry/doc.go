// Package telemetry provides observability instrumentation for datastack stores.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and event publishing. Every piece has
// a disabled form, so a store container can always be handed a logger, tracer,
// metrics collector and event publisher without checking for nil.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("container").WithModel("kennel")
//	logger.Info("Loading store")
//	logger.WithError(err).Error("Migration failed. Wiping out the database to attempt recovery.")
//
// # Tracing
//
// Store loads and wipes run under store spans, reads and saves under entity spans:
//
//	ctx, span := tel.Tracer.StartStoreSpan(ctx, "load", "kennel", path)
//	defer span.End()
//
// Supported exporters: "otlp", "stdout" and "none".
//
// # Metrics
//
// Key metrics exposed:
//
//   - datastack_store_loads_total{model,result}
//   - datastack_store_load_duration_seconds
//   - datastack_store_recoveries_total{model}
//   - datastack_store_operations_total{operation,status}
//   - datastack_store_operation_duration_seconds{operation}
//   - datastack_store_objects_saved_total{model}
//   - datastack_stores_loaded
//
// # Events
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("%s: %s\n", event.Type, event.Message)
//	}, telemetry.FilterByType(telemetry.EventTypeStoreWiped))
//
// Synchronous publishers deliver before Publish returns. Asynchronous
// publishers buffer events and deliver them in batches until Shutdown.
package telemetry
