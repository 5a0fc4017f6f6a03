package ratelimit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/mocks"
	"github.com/feral-file/ff-webhook-engine/internal/ratelimit"
	"github.com/feral-file/ff-webhook-engine/internal/webhook"
)

func TestThrottledSender(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockSender(ctrl)
	limiter := mocks.NewMockHostLimiter(ctrl)

	req := webhook.Request{URL: "https://hooks.example.com/a", DeliveryID: 1}
	gomock.InOrder(
		limiter.EXPECT().Wait(gomock.Any(), req.URL).Return(nil),
		next.EXPECT().Send(gomock.Any(), req).Return(&webhook.Response{StatusCode: 204}, nil),
	)

	resp, err := ratelimit.NewThrottledSender(next, limiter).Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestThrottledSender_WaitExceeded(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockSender(ctrl)
	limiter := mocks.NewMockHostLimiter(ctrl)

	waitErr := errors.New("rate limit wait for host hooks.example.com: would exceed context deadline")
	limiter.EXPECT().Wait(gomock.Any(), gomock.Any()).Return(waitErr)

	resp, err := ratelimit.NewThrottledSender(next, limiter).Send(context.Background(), webhook.Request{URL: "https://hooks.example.com"})
	assert.Nil(t, resp)

	var transient *domain.TransientDeliveryError
	require.ErrorAs(t, err, &transient)
	assert.Zero(t, transient.StatusCode)
	assert.ErrorIs(t, err, waitErr)
}

func TestThrottledSender_NilLimiter(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockSender(ctrl)

	assert.Same(t, next, ratelimit.NewThrottledSender(next, nil))
}
