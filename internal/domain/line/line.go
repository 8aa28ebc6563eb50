package line

import "context"

type LineRepo interface {
	PushMessage(ctx context.Context, userID, message string) error
}
