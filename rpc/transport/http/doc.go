// Package http implements the transport interfaces of the parent package over
// HTTP.
//
// Routes served:
//
//	POST /{shardId}  body and response are serialized common.Message values
//	GET  /metrics    VictoriaMetrics counters in Prometheus text format,
//	                 only when ServerConfig.MetricsEnabled is set
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Requests are spread
//     round-robin over the configured endpoints; a failed attempt is retried on
//     the next endpoint up to RetryCount times.
//
//   - httpServerTransport: Implements IRPCServerTransport, routing requests to
//     the registered handler by the shard ID in the URL path.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	atomic operations for the round-robin counter.
package http
