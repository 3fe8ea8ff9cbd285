// Package metrics exposes Prometheus counters and histograms for room key
// handling: decryptions by result, sessions received by source, and backup
// activity.
package metrics
