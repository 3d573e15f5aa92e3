package commerce

const (
	TopicPurchaseCompleted   = "commerce.purchase.completed"
	TopicSaleRated           = "commerce.sale.rated"
	TopicSaleStatusChanged   = "commerce.sale.status_changed"
	TopicNotificationCreated = "commerce.notification.created"
)

// Topics lists every topic the service publishes to.
var Topics = []string{
	TopicPurchaseCompleted,
	TopicSaleRated,
	TopicSaleStatusChanged,
	TopicNotificationCreated,
}

// Partition key = purchase id or sale id so events of one aggregate stay ordered.
func PartitionKey(id string) []byte { return []byte(id) }
