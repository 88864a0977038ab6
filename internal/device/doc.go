// Package device defines the abstract device model for Jarvis Core: logical
// devices, the controller contract, the registry with its status cache, and
// the shared retry/connection machinery.
//
// # Model
//
// A Device is a logical endpoint (the kitchen light, the TV). Several
// devices may share one Controller: the light gateway hosts one logical
// device per room behind a single connection.
//
// The Registry owns the authoritative status cache. Reports are replaced
// wholesale via atomic swap, so readers never observe a torn StatusReport.
// Cached reports older than the configured staleness bound are withheld
// from idempotence checks but still served to read-only status queries.
//
// # Concurrency
//
// Commands targeting the same device are serialised by a per-entry
// execution lock; commands to different devices proceed in parallel. No
// method of this package holds more than one lock at a time.
//
// Controller implementations live in the light, tv and vacuum subpackages
// and depend only on the contract defined here.
package device
