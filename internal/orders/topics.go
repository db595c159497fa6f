package orders

// Partition key = order id so events of one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
