// Package engine implements the instrumentation transform: probe site
// collection over the structured instruction tree, counter memory layout,
// probe code emission, and the per-module driver that ties them together.
package engine
