// Package metrics summarises a simulated trajectory. Each metric observes
// every merged sample in time order and reduces them to one number.
package metrics
