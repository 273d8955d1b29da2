// SPDX-License-Identifier: MPL-2.0

// Package metrics exposes graph activity as Prometheus metrics: traversal
// progress, transform latency and the size of every delta. Each Collector
// owns its registry so tests and embedders never touch the global one.
package metrics
