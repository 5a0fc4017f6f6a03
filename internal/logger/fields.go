package logger

import (
	"context"

	"go.uber.org/zap"
)

type fieldsKey struct{}

// WithFields returns a context whose *Ctx log calls include fields, in addition to any
// fields already attached
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	existing := fieldsFromContext(ctx)
	merged := make([]zap.Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// WithDelivery attaches the identity of a webhook delivery to ctx
func WithDelivery(ctx context.Context, deliveryID uint64, eventType string) context.Context {
	return WithFields(ctx,
		zap.Uint64("delivery_id", deliveryID),
		zap.String("event_type", eventType))
}

func fieldsFromContext(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(fieldsKey{}).([]zap.Field)
	return fields
}
