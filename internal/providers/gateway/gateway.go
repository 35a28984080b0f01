package gateway

import "context"

// Credentials identify one provider session (an Instance's API token).
type Credentials struct {
	Token string
}

// Gateway is the outbound messaging channel. Implementations must be safe to
// retry: the caller dedups by the returned provider message id.
type Gateway interface {
	SendText(ctx context.Context, creds Credentials, toPhone, body string) (providerMessageID string, err error)
}
