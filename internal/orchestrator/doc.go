// Package orchestrator drives a command from raw input to a terminal
// outcome.
//
// Every command moves through a fixed pipeline: parse, authorize,
// rate-check, resolve, execute. Each stage either advances the command
// or terminates it with a rejected or failed outcome; a terminal
// outcome is never modified afterwards.
//
// Commands addressing every device of a kind fan out concurrently, one
// execution per device. Per-device serialization is handled by the
// registry, so two commands for the same room queue behind each other
// while commands for different rooms proceed in parallel.
//
// Side effects (audit records, telemetry points, event broadcasts) are
// emitted through optional hooks after the outcome is terminal. Hook
// failures are logged and never alter the outcome.
package orchestrator
