package rest

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-webhook-engine/internal/store/schema"
)

const MAX_PAGE_SIZE = 100

// ListDeliveriesQueryParams holds query parameters for GET /deliveries
type ListDeliveriesQueryParams struct {
	OrganizationID string `form:"organization_id"`
	SubscriptionID string `form:"subscription_id"`
	Status         string `form:"status"`

	// Pagination
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

// ParseListDeliveriesQuery parses query parameters for GET /deliveries
func ParseListDeliveriesQuery(c *gin.Context) (*ListDeliveriesQueryParams, error) {
	var params ListDeliveriesQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	// Cap limits
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Limit > MAX_PAGE_SIZE {
		params.Limit = MAX_PAGE_SIZE
	}

	return &params, nil
}

// Validate validates the query parameters
func (p *ListDeliveriesQueryParams) Validate() error {
	if p.OrganizationID == "" && p.SubscriptionID == "" {
		return fmt.Errorf("organization_id or subscription_id is required")
	}
	if p.Status != "" && !schema.IsValidWebhookDeliveryStatus(p.Status) {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	return nil
}
