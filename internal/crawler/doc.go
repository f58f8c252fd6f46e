// Package crawler implements the crawl-and-enrich pipeline: the listing
// paginator, the batched profile enricher and the engine that wires them to
// the exporter and the optional result sinks.
package crawler
