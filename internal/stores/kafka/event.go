package kafka

const (
	TopicOrderEvents = `fulfillment-service.order-events`
	ConsumerGroup    = `fulfillment-service.notifier`
)

// Headers carried on every order event record.
const (
	HeaderKind    = "kind"
	HeaderEventID = "event-id"
)
