/*
Package observability turns engine lifecycle events into logs and Prometheus metrics.

Both are exposed as domain.LifecycleHooks and can be combined with LifecycleHooks.Merge:

	m := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.LogHooks(logger).Merge(m.Hooks())
	eng, err := railyard.New("rails/", railyard.WithLifecycleHooks(hooks))

The metrics handler is served by the HTTP adapter under /metrics.
*/
package observability
