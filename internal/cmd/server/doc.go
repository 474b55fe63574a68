// Package serverrun hosts the long-running server entrypoint shared by the
// CLI and by embedders that register their own job handlers.
package serverrun
