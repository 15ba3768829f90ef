package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"PetPlanBilling/internal/domain"
	"PetPlanBilling/internal/ports"
)

// Client delivers billing notices through the notification service's
// HTTP API. The caller-supplied idempotency key travels as a header so
// the service can deduplicate repeats within a window.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

var _ ports.Notifier = (*Client)(nil)

// NewClient registers the notification service endpoint.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type notice struct {
	Kind           string `json:"kind"`
	ContractNumber string `json:"contract_number"`
	InstallmentID  int64  `json:"installment_id,omitempty"`
	DueDate        string `json:"due_date,omitempty"`
	Amount         string `json:"amount,omitempty"`
}

// NotifyUpcomingDue announces an installment coming due.
func (c *Client) NotifyUpcomingDue(ctx context.Context, contract domain.Contract, installment domain.Installment, key string) error {
	return c.send(ctx, key, notice{
		Kind:           "upcoming_due",
		ContractNumber: contract.Number,
		InstallmentID:  installment.ID,
		DueDate:        installment.DueDate.Format("2006-01-02"),
		Amount:         installment.Amount.String(),
	})
}

// NotifyOverdue announces that a contract holds overdue installments.
func (c *Client) NotifyOverdue(ctx context.Context, contract domain.Contract, key string) error {
	return c.send(ctx, key, notice{
		Kind:           "overdue",
		ContractNumber: contract.Number,
	})
}

func (c *Client) send(ctx context.Context, key string, payload notice) error {
	if c.endpoint == "" || c.client == nil {
		return fmt.Errorf("notifier misconfigured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification error: %s", resp.Status)
	}

	return nil
}
