package solana

import "context"

// WSClient is the push side of the node API. The watcher only needs logsSubscribe.
type WSClient interface {
	// SubscribeLogs streams notifications until ctx ends or Close is called,
	// at which point the channel is closed.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)
	Close() error
}

// LogsFilter narrows logsSubscribe to transactions touching Mentions.
// Leaving Mentions empty selects every transaction.
type LogsFilter struct {
	Mentions   []PublicKey
	Commitment string
}

// LogNotification carries the log lines of a single transaction. Failed is set
// when the node reported an error for it.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Failed    bool
}
