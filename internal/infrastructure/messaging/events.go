package messaging

import "time"

// AccountCreatedEvent describes a newly created account. The Account
// Registry does not publish it, and no handler calls PublishAccountCreated.
type AccountCreatedEvent struct {
	AccountID string    `json:"account_id"`
	UserID    string    `json:"user_id,omitempty"`
	Type      string    `json:"type"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// UserCreatedEvent is published when a new user is registered.
type UserCreatedEvent struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionCompletedEvent is published once a posting operation commits.
type TransactionCompletedEvent struct {
	TransactionID string    `json:"transaction_id"`
	Reference     string    `json:"reference"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	FromAccountID string    `json:"from_account_id"`
	ToAccountID   string    `json:"to_account_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// TransactionFailedEvent is published for audit trail when a posting
// request fails with a domain error, including an Idempotency Gate
// rejection (key conflict or a request already in flight).
type TransactionFailedEvent struct {
	Type         string    `json:"type"`
	UserID       string    `json:"user_id,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	ErrorKind    string    `json:"error_kind"`
	ErrorMessage string    `json:"error_message"`
	Timestamp    time.Time `json:"timestamp"`
}
