package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"PetPlanBilling/internal/domain"
	"PetPlanBilling/internal/metrics"
	"PetPlanBilling/internal/ports"
)

// Client charges renewal installments through the payment provider's
// HTTP API. A circuit breaker keeps a dead provider from being hammered
// once per contract during a renewal pass.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[domain.ChargeResult]
	logger   *slog.Logger
}

var _ ports.PaymentGateway = (*Client)(nil)

// NewClient configures the HTTP client and its breaker. The breaker
// opens after 60% failures over at least 5 requests and probes again
// after one minute.
func NewClient(endpoint, apiKey string, logger *slog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.GatewayBreakerState.Set(breakerStateValue(to))
			if logger != nil {
				logger.Warn("payment gateway breaker state changed",
					"from", from.String(), "to", to.String())
			}
		},
	}

	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
		breaker:  gobreaker.NewCircuitBreaker[domain.ChargeResult](settings),
		logger:   logger,
	}
}

type chargeRequest struct {
	Reference      string `json:"reference"`
	ContractNumber string `json:"contract_number"`
	InstallmentID  int64  `json:"installment_id"`
	Amount         string `json:"amount"`
	DueDate        string `json:"due_date"`
}

type chargeResponse struct {
	Success     bool   `json:"success"`
	Reference   string `json:"reference"`
	ErrorReason string `json:"error_reason"`
}

// AttemptCharge posts one charge request and classifies the outcome.
// A declined charge is a business failure, not an error; errors mean
// the attempt itself could not be delivered.
func (c *Client) AttemptCharge(ctx context.Context, contract domain.Contract, installment domain.Installment) (domain.ChargeResult, error) {
	if c.endpoint == "" {
		return domain.ChargeResult{}, fmt.Errorf("payment gateway misconfigured")
	}

	payload := chargeRequest{
		Reference:      uuid.NewString(),
		ContractNumber: contract.Number,
		InstallmentID:  installment.ID,
		Amount:         installment.Amount.String(),
		DueDate:        installment.DueDate.Format("2006-01-02"),
	}

	return c.breaker.Execute(func() (domain.ChargeResult, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return domain.ChargeResult{}, fmt.Errorf("marshal charge: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return domain.ChargeResult{}, fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", payload.Reference)
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return domain.ChargeResult{}, fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return domain.ChargeResult{}, fmt.Errorf("gateway error: %s", resp.Status)
		}

		var decoded chargeResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return domain.ChargeResult{}, fmt.Errorf("decode response: %w", err)
		}

		return domain.ChargeResult{
			Success:     decoded.Success,
			Reference:   decoded.Reference,
			ErrorReason: decoded.ErrorReason,
		}, nil
	})
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
