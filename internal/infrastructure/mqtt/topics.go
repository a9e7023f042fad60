package mqtt

import "fmt"

// Topic prefixes for the shadesync MQTT surface.
//
// All topics use the flat scheme: shadesync/{category}/{address}[/{suffix}]
const (
	// TopicPrefix is the base for all shadesync topics.
	TopicPrefix = "shadesync"

	// TopicPrefixStatus is the base for per-entity status fields.
	TopicPrefixStatus = "shadesync/status"

	// TopicPrefixEntity is the base for entity lifecycle notices.
	TopicPrefixEntity = "shadesync/entity"

	// TopicPrefixCommand is the base for inbound entity commands.
	TopicPrefixCommand = "shadesync/command"

	// TopicPrefixEvent is the base for the gateway event mirror.
	TopicPrefixEvent = "shadesync/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "shadesync/system"
)

// Topics provides builders for shadesync MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.Status("shce86a4fe", "primary")
//	// Returns: "shadesync/status/shce86a4fe/primary"
type Topics struct{}

// Status returns the topic for a single status field of an entity.
//
// Example: shadesync/status/shce86a4fe/primary
func (Topics) Status(address, field string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixStatus, address, field)
}

// Entity returns the topic for entity lifecycle notices (added, renamed,
// retired). Published retained so late subscribers see the current roster.
//
// Example: shadesync/entity/shce86a4fe
func (Topics) Entity(address string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEntity, address)
}

// Command returns the topic for an inbound command to an entity.
//
// Example: shadesync/command/shce86a4fe/open
func (Topics) Command(address, verb string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixCommand, address, verb)
}

// Event returns the topic mirroring a gateway event kind.
//
// Example: shadesync/event/motion-stopped
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, kind)
}

// SystemStatus returns the system status topic. The Last Will and the
// graceful shutdown notice both publish here.
//
// Example: shadesync/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCommands returns a pattern matching all inbound entity commands.
//
// Pattern: shadesync/command/+/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/+/+", TopicPrefixCommand)
}

// AllStatus returns a pattern matching all entity status fields.
//
// Pattern: shadesync/status/+/+
func (Topics) AllStatus() string {
	return fmt.Sprintf("%s/+/+", TopicPrefixStatus)
}

// AllEntities returns a pattern matching all entity lifecycle notices.
//
// Pattern: shadesync/entity/+
func (Topics) AllEntities() string {
	return fmt.Sprintf("%s/+", TopicPrefixEntity)
}

// AllTopics returns a pattern matching all shadesync topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: shadesync/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
