package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const metricInterval = 30 * time.Second

// SetupMeter registers a global MeterProvider that pushes to the OTLP
// collector at endpoint every metricInterval.
func SetupMeter(ctx context.Context, serviceName, endpoint, environment string) (ShutdownFunc, error) {
	endpoint = stripScheme(endpoint)

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to dial OTel Collector at %s: %w", endpoint, err)
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("telemetry: failed to create OTLP metric exporter: %w", err)
	}

	mp, err := newMeterProvider(exporter, serviceName, environment)
	if err != nil {
		conn.Close()
		return nil, err
	}
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: error shutting down MeterProvider: %w", err)
		}
		return conn.Close()
	}
	return shutdown, nil
}

// SetupStdoutMeter writes metrics to w as JSON on every interval and once
// more on shutdown.
func SetupStdoutMeter(w io.Writer, serviceName, environment string) (ShutdownFunc, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to create stdout metric exporter: %w", err)
	}
	mp, err := newMeterProvider(exporter, serviceName, environment)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

func newMeterProvider(exporter sdkmetric.Exporter, serviceName, environment string) (*sdkmetric.MeterProvider, error) {
	res, err := newResource(serviceName, environment)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(metricInterval),
		)),
		sdkmetric.WithResource(res),
	), nil
}
