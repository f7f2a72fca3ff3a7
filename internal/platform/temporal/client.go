// Package temporal connects processes to the Temporal cluster that hosts the
// workflow-style order engine.
package temporal

import (
	"github.com/go-faster/errors"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	"github.com/Apurer/order-lifecycle-engine/internal/platform/observability"
)

// Config addresses a Temporal frontend.
type Config struct {
	Address   string
	Namespace string
}

// Options builds client options with the structured logger and tracing interceptor.
func Options(cfg Config, instruments *observability.Instruments, tracerName string) (client.Options, error) {
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{
		Tracer: instruments.Tracer(tracerName),
	})
	if err != nil {
		return client.Options{}, errors.Wrap(err, "temporal tracing interceptor")
	}
	address := cfg.Address
	if address == "" {
		address = client.DefaultHostPort
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = client.DefaultNamespace
	}
	options := client.Options{
		HostPort:  address,
		Namespace: namespace,
	}
	if instruments != nil && instruments.Logger != nil {
		options.Logger = workerlog.NewStructuredLogger(instruments.Logger)
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return options, nil
}

// Dial connects to Temporal.
func Dial(cfg Config, instruments *observability.Instruments, tracerName string) (client.Client, error) {
	options, err := Options(cfg, instruments, tracerName)
	if err != nil {
		return nil, err
	}
	c, err := client.Dial(options)
	if err != nil {
		return nil, errors.Wrapf(err, "dial temporal at %s", options.HostPort)
	}
	return c, nil
}
