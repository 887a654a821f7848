package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/appetiteclub/pos/services/pos/internal/order"
)

type itemsRequest struct {
	Items []*order.OrderItem `json:"items"`
}

type voidRequest struct {
	Order   *order.Order        `json:"order"`
	Items   []*order.OrderItem  `json:"items"`
	Records []*order.VoidRecord `json:"records"`
}

// Client is a Backend served by the remote order service.
type Client struct {
	client *aqm.ServiceClient
	logger aqm.Logger
}

func NewClient(client *aqm.ServiceClient, logger aqm.Logger) *Client {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Client{client: client, logger: logger}
}

func (c *Client) CreateOrder(ctx context.Context, o *order.Order) (*order.Snapshot, error) {
	if o == nil {
		return nil, fmt.Errorf("order is nil")
	}
	return c.snapshot(ctx, "POST", "/orders", o)
}

func (c *Client) GetOrder(ctx context.Context, id uuid.UUID) (*order.Snapshot, error) {
	return c.snapshot(ctx, "GET", fmt.Sprintf("/orders/%s", id), nil)
}

func (c *Client) ListActive(ctx context.Context) ([]*order.Order, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	resp, err := c.client.Request(ctx, "GET", "/orders/active", nil)
	if err != nil {
		return nil, fmt.Errorf("cannot list active orders: %w", err)
	}

	var orders []*order.Order
	if err := decodeSuccessResponse(resp, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) FindOpenByTable(ctx context.Context, tableID uuid.UUID) (*order.Snapshot, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	resp, err := c.client.Request(ctx, "GET", fmt.Sprintf("/tables/%s/active-order", tableID), nil)
	if err != nil {
		return nil, fmt.Errorf("cannot find active order for table: %w", err)
	}
	if resp == nil || resp.Data == nil {
		return nil, nil
	}

	var snap order.Snapshot
	if err := decodeSuccessResponse(resp, &snap); err != nil {
		return nil, err
	}
	if snap.Order == nil {
		return nil, nil
	}
	return &snap, nil
}

func (c *Client) UpdateOrder(ctx context.Context, o *order.Order) (*order.Snapshot, error) {
	if o == nil {
		return nil, fmt.Errorf("order is nil")
	}
	return c.snapshot(ctx, "PUT", fmt.Sprintf("/orders/%s", o.ID), o)
}

func (c *Client) AddItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error) {
	return c.snapshot(ctx, "POST", fmt.Sprintf("/orders/%s/items", orderID), itemsRequest{Items: items})
}

func (c *Client) UpdateItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error) {
	return c.snapshot(ctx, "PUT", fmt.Sprintf("/orders/%s/items", orderID), itemsRequest{Items: items})
}

func (c *Client) Void(ctx context.Context, o *order.Order, items []*order.OrderItem, records []*order.VoidRecord) (*order.Snapshot, error) {
	if o == nil {
		return nil, fmt.Errorf("order is nil")
	}
	payload := voidRequest{Order: o, Items: items, Records: records}
	return c.snapshot(ctx, "POST", fmt.Sprintf("/orders/%s/voids", o.ID), payload)
}

func (c *Client) MergeOrders(ctx context.Context, m Merge) (*order.Snapshot, error) {
	if m.Target == nil {
		return nil, fmt.Errorf("order is nil")
	}
	return c.snapshot(ctx, "POST", fmt.Sprintf("/orders/%s/merges", m.Target.ID), m)
}

func (c *Client) RecordPayment(ctx context.Context, p *order.Payment) (*order.Snapshot, error) {
	if p == nil {
		return nil, fmt.Errorf("payment is nil")
	}
	return c.snapshot(ctx, "POST", fmt.Sprintf("/orders/%s/payments", p.OrderID), p)
}

func (c *Client) snapshot(ctx context.Context, method, path string, body interface{}) (*order.Snapshot, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	resp, err := c.client.Request(ctx, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("order service %s %s: %w", method, path, err)
	}

	var snap order.Snapshot
	if err := decodeSuccessResponse(resp, &snap); err != nil {
		return nil, err
	}
	if snap.Order == nil {
		return nil, fmt.Errorf("%w: %s returned no order", ErrNotFound, path)
	}
	c.logger.Debug("order service call", "method", method, "path", path, "status", snap.Order.Status)
	return &snap, nil
}

func (c *Client) ready() error {
	if c == nil || c.client == nil {
		return fmt.Errorf("order client not configured")
	}
	return nil
}

func decodeSuccessResponse(resp *aqm.SuccessResponse, target interface{}) error {
	if resp == nil {
		return fmt.Errorf("empty response")
	}

	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("cannot encode response payload: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("cannot decode response payload: %w", err)
	}

	return nil
}
