// Package metrics records run and per-repository metrics.
//
// Components receive a Recorder and never check for nil: NoopRecorder is the
// default. PrometheusRecorder registers its collectors on a caller supplied
// registry, which can be scraped over HTTP (HTTPHandler) in watch mode or
// written to a node_exporter textfile (WriteTextfile) after one-shot runs.
package metrics
