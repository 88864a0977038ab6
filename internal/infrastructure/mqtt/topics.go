package mqtt

import "fmt"

// Topic prefixes. All topics use the flat scheme
// jarvis/{category}/{protocol}/{device_id}.
const (
	// TopicPrefix is the base for all topics.
	TopicPrefix = "jarvis"

	// TopicPrefixSystem is the base for system presence topics.
	TopicPrefixSystem = "jarvis/system"
)

// Topics provides builders for the topic hierarchy. Using the helpers keeps
// topic naming consistent across publisher and subscriber code.
type Topics struct{}

// DeviceCommand returns the topic for commands to a device bridge.
//
// Example: jarvis/command/vacuum/roborock-s5
func (Topics) DeviceCommand(protocol, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, deviceID)
}

// DeviceAck returns the topic for command acknowledgements from a bridge.
//
// Example: jarvis/ack/vacuum/roborock-s5
func (Topics) DeviceAck(protocol, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, deviceID)
}

// DeviceState returns the topic for retained device state pushes.
//
// Example: jarvis/state/vacuum/roborock-s5
func (Topics) DeviceState(protocol, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, deviceID)
}

// SystemStatus returns the core presence topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
