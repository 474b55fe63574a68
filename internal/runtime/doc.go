// Package runtime wires storage, configuration, and the queue service into a
// single-node instance. Servers and CLI commands construct a Runtime and hang
// everything off it.
package runtime
