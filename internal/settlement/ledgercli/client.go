package ledgercli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	ldto "github.com/radieske/pvp-settlement-platform/internal/ledger/dto"
)

// Client fala com o ledger-service por HTTP.
// Timeout próprio: chamadas financeiras nunca rodam dentro da transação de
// persistência da liquidação, então um estouro aqui é retryable e não
// segura lock de banco.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Credit credita o usuário no ledger. Idempotente pela chave enviada.
func (c *Client) Credit(ctx context.Context, in ldto.CreditRequest) (*ldto.TransactionResponse, error) {
	return c.post(ctx, "/wallet/credit", in)
}

// Debit debita o usuário no ledger.
func (c *Client) Debit(ctx context.Context, in ldto.DebitRequest) (*ldto.TransactionResponse, error) {
	return c.post(ctx, "/wallet/debit", in)
}

// Refund devolve um débito original pelo id da transação.
func (c *Client) Refund(ctx context.Context, in ldto.RefundRequest) (*ldto.TransactionResponse, error) {
	return c.post(ctx, "/wallet/refund", in)
}

func (c *Client) post(ctx context.Context, path string, payload any) (*ldto.TransactionResponse, error) {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("ledger %s http %d", path, res.StatusCode)
	}
	var out ldto.TransactionResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
