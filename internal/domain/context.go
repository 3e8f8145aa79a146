package domain

import "context"

type contextKey string

const accountIDKey contextKey = "account_id"

// WithAccountID stores the account scope of the current request.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// GetAccountIDFromContext returns the account scope or "" when none was set.
func GetAccountIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(accountIDKey).(string); ok {
		return v
	}
	return ""
}
