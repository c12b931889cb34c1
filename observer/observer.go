// Package observer provides OTEL-based observability for the collaboration
// backend: transport frame counters, room lifecycle gauges, and instrumented
// wrappers for the AI provider and tool executor. Export targets are
// configured through the standard OTEL env vars
// (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/nevindra/mural/observer"

// Instruments holds the OTEL instruments shared by the hub, the room
// manager, and the AI pipeline wrappers. A nil *Instruments is valid
// everywhere and disables recording.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger otellog.Logger

	// Counters
	FramesRelayed  metric.Int64Counter
	Broadcasts     metric.Int64Counter
	SnapshotSaves  metric.Int64Counter
	AIRequests     metric.Int64Counter
	ToolExecutions metric.Int64Counter
	TokenUsage     metric.Int64Counter

	// Gauges
	ActiveRooms metric.Int64UpDownCounter
	ActiveConns metric.Int64UpDownCounter

	// Histograms
	AIDuration   metric.Float64Histogram
	ToolDuration metric.Float64Histogram
	LLMDuration  metric.Float64Histogram
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP
// exporters. It returns a shutdown function that must be called on exit so
// buffered telemetry is flushed.
func Init(ctx context.Context) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("mural")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}
	return inst, shutdown, nil
}

func newInstruments() (*Instruments, error) {
	meter := otel.Meter(scopeName)

	framesRelayed, err := meter.Int64Counter("hub.frames.relayed",
		metric.WithDescription("Client frames accepted and relayed"),
		metric.WithUnit("{frame}"))
	if err != nil {
		return nil, err
	}
	broadcasts, err := meter.Int64Counter("hub.broadcasts",
		metric.WithDescription("Server-originated delta broadcasts"),
		metric.WithUnit("{broadcast}"))
	if err != nil {
		return nil, err
	}
	snapshotSaves, err := meter.Int64Counter("room.snapshot.saves",
		metric.WithDescription("Snapshot store writes"),
		metric.WithUnit("{save}"))
	if err != nil {
		return nil, err
	}
	aiRequests, err := meter.Int64Counter("ai.requests",
		metric.WithDescription("AI command count"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	toolExecutions, err := meter.Int64Counter("tool.executions",
		metric.WithDescription("Board tool execution count"),
		metric.WithUnit("{execution}"))
	if err != nil {
		return nil, err
	}
	tokenUsage, err := meter.Int64Counter("llm.token.usage",
		metric.WithDescription("Total tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}
	activeRooms, err := meter.Int64UpDownCounter("rooms.active",
		metric.WithDescription("Rooms resident in memory"),
		metric.WithUnit("{room}"))
	if err != nil {
		return nil, err
	}
	activeConns, err := meter.Int64UpDownCounter("hub.connections",
		metric.WithDescription("Open websocket connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	aiDuration, err := meter.Float64Histogram("ai.duration",
		metric.WithDescription("End-to-end AI command duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	toolDuration, err := meter.Float64Histogram("tool.duration",
		metric.WithDescription("Board tool execution duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	llmDuration, err := meter.Float64Histogram("llm.duration",
		metric.WithDescription("LLM call duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:         otel.Tracer(scopeName),
		Meter:          meter,
		Logger:         global.GetLoggerProvider().Logger(scopeName),
		FramesRelayed:  framesRelayed,
		Broadcasts:     broadcasts,
		SnapshotSaves:  snapshotSaves,
		AIRequests:     aiRequests,
		ToolExecutions: toolExecutions,
		TokenUsage:     tokenUsage,
		ActiveRooms:    activeRooms,
		ActiveConns:    activeConns,
		AIDuration:     aiDuration,
		ToolDuration:   toolDuration,
		LLMDuration:    llmDuration,
	}, nil
}

// RecordAIRequest counts one AI command with the route it arrived on
// ("sync", "stream") and its duration.
func (inst *Instruments) RecordAIRequest(ctx context.Context, route string, durationMs float64, failed bool) {
	if inst == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	inst.AIRequests.Add(ctx, 1, metric.WithAttributes(
		AttrAIRoute.String(route),
		AttrStatus.String(status),
	))
	inst.AIDuration.Record(ctx, durationMs, metric.WithAttributes(AttrAIRoute.String(route)))
}

// RecordRoomCount adjusts the live-room gauge; the room manager reports +1
// on load and -1 on eviction.
func (inst *Instruments) RecordRoomCount(ctx context.Context, delta int64) {
	if inst == nil {
		return
	}
	inst.ActiveRooms.Add(ctx, delta)
}

// RecordFrame counts one accepted client frame.
func (inst *Instruments) RecordFrame(ctx context.Context, roomID string) {
	if inst == nil {
		return
	}
	inst.FramesRelayed.Add(ctx, 1, metric.WithAttributes(AttrRoom.String(roomID)))
}

// RecordBroadcast counts one server-originated broadcast.
func (inst *Instruments) RecordBroadcast(ctx context.Context, roomID string) {
	if inst == nil {
		return
	}
	inst.Broadcasts.Add(ctx, 1, metric.WithAttributes(AttrRoom.String(roomID)))
}

// RecordSnapshotSave counts one snapshot store write.
func (inst *Instruments) RecordSnapshotSave(ctx context.Context, backend string, failed bool) {
	if inst == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	inst.SnapshotSaves.Add(ctx, 1, metric.WithAttributes(
		AttrStoreBackend.String(backend),
		AttrStatus.String(status),
	))
}

// ConnOpened and ConnClosed track the websocket connection gauge.
func (inst *Instruments) ConnOpened(ctx context.Context) {
	if inst == nil {
		return
	}
	inst.ActiveConns.Add(ctx, 1)
}

func (inst *Instruments) ConnClosed(ctx context.Context) {
	if inst == nil {
		return
	}
	inst.ActiveConns.Add(ctx, -1)
}
