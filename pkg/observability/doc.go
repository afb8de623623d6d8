/*
Package observability turns engine lifecycle hooks into Prometheus metrics and
structured log records.

Both are plain domain.LifecycleHooks values and can be merged:

	metrics := observability.NewMetrics()
	hooks := metrics.Hooks().Merge(observability.LoggingHooks(logger))
	eng, _ := waypoint.New(ctx, "", doc, nav, waypoint.WithLifecycleHooks(hooks))
	http.Handle("/metrics", metrics.Handler())
*/
package observability
