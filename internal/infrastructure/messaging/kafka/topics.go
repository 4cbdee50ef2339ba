package kafka

// Topic names for ledger events
const (
	TopicUserCreated        = "ledger.users.created"
	TopicAccountCreated     = "ledger.accounts.created"
	TopicTransactionPosted  = "ledger.transactions.posted"
	TopicTransactionFailed  = "ledger.transactions.failed"
)

// GetAllTopics returns list of all topics
func GetAllTopics() []string {
	return []string{
		TopicUserCreated,
		TopicAccountCreated,
		TopicTransactionPosted,
		TopicTransactionFailed,
	}
}
