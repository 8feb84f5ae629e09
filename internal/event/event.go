// Package event defines the bus event types, consumer-group names, and the
// typed request payloads carried on each stream.
package event

// Stream names for the durable event bus.
// Each event type maps to exactly one stream.
const (
	TypeAddNodes    = "ADD_NODES_EVENT"
	TypeDeleteNodes = "DELETE_NODES_EVENT"
	TypeMoveNodes   = "MOVE_NODES_EVENT"
	TypeDeleteStore = "DELETE_STORE_EVENT"
)

// Consumer group names, one fixed group per event type.
const (
	GroupAddNodes    = "add_nodes_group"
	GroupDeleteNodes = "delete_nodes_group"
	GroupMoveNodes   = "move_nodes_group"
	GroupDeleteStore = "delete_store_group"
)

// Consumer member names. A single logical consumer per event type is
// assumed; the group semantics do not preclude adding more members.
const (
	ConsumerAddNodes    = "add_nodes_consumer_1"
	ConsumerDeleteNodes = "delete_nodes_consumer_1"
	ConsumerMoveNodes   = "move_nodes_consumer_1"
	ConsumerDeleteStore = "delete_store_consumer_1"
)
