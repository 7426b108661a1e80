package events

// Topic constants for domain events emitted by the service.
const (
	TopicReceiptCreated  = "receipt.created"
	TopicProductLowStock = "product.low_stock"
	TopicSessionOpened   = "session.opened"
	TopicSessionClosed   = "session.closed"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicReceiptCreated,
		TopicProductLowStock,
		TopicSessionOpened,
		TopicSessionClosed,
	}
}
