/*
Package monitoring provides Prometheus metrics for the animation daemon.

Tracked concerns: discovery results, live instances, frame scheduler
tick rate and latency, and HTTP traffic.

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
