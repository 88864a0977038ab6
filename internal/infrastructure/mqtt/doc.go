// Package mqtt wraps paho.mqtt.golang for the vacuum transport and system
// presence.
//
// It provides connection management with automatic reconnection and
// exponential backoff, publish/subscribe with panic-recovered handlers,
// subscription restoration after reconnect, and a Last Will message so
// other services detect an unexpected core shutdown.
//
// Topic layout:
//
//	jarvis/command/vacuum/{device_id}   command to the vacuum bridge
//	jarvis/ack/vacuum/{device_id}       per-command acknowledgement
//	jarvis/state/vacuum/{device_id}     retained state pushes
//	jarvis/system/status                core online/offline presence
//
// Thread Safety: all methods are safe for concurrent use.
package mqtt
