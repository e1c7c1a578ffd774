/*
Package metrics defines and registers every Prometheus metric estore
exposes: the online index builder's throughput (C6), the transaction
orchestrator's commit outcomes and latency (C8), and the read-version
cache's hit ratio (C7). All metrics register against the global
Prometheus DefaultRegistry at package init and are served at /metrics
through Handler.

Counters and histograms are updated inline by the component that owns
the event (a builder batch completing, a transaction committing).
Gauges that reflect ongoing state rather than discrete events — the
read-version cache's hit ratio, an index build's remaining backlog — are
instead sampled periodically by a Collector, since nothing else in the
call path naturally fires on every tick.
*/
package metrics
