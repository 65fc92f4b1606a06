package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

// RegistryClient talks to the custody registry's internal HTTP API. It is
// the authoritative wallet tier: 404 means confirmed absent, any
// transport or server failure means unreachable.
type RegistryClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewRegistryClient(baseURL string, timeout time.Duration, log *zap.Logger) *RegistryClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RegistryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type registryWallet struct {
	OwnerID   string    `json:"owner_id"`
	Address   string    `json:"address"`
	PublicKey string    `json:"public_key"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *RegistryClient) Exists(ctx context.Context, ownerID string) (bool, error) {
	url := fmt.Sprintf("%s/internal/wallets/%s/exists", c.baseURL, ownerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("wallet registry unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("wallet registry returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Exists, nil
}

func (c *RegistryClient) Info(ctx context.Context, ownerID string) (models.WalletRecord, error) {
	url := fmt.Sprintf("%s/internal/wallets/%s", c.baseURL, ownerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.WalletRecord{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.WalletRecord{}, fmt.Errorf("wallet registry unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.WalletRecord{}, wallet.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.WalletRecord{}, fmt.Errorf("wallet registry returned %d: %s", resp.StatusCode, string(body))
	}

	var rw registryWallet
	if err := json.NewDecoder(resp.Body).Decode(&rw); err != nil {
		return models.WalletRecord{}, err
	}
	return models.WalletRecord{
		OwnerID:   rw.OwnerID,
		Address:   rw.Address,
		PublicKey: rw.PublicKey,
		Balance:   rw.Balance,
		CreatedAt: rw.CreatedAt,
	}, nil
}

func (c *RegistryClient) Balance(ctx context.Context, ownerID string) (string, error) {
	url := fmt.Sprintf("%s/internal/wallets/%s/balance", c.baseURL, ownerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("wallet registry unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", wallet.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("wallet registry returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Balance, nil
}

// Create registers a locally generated wallet. Приватный ключ в реестр не
// уходит никогда.
func (c *RegistryClient) Create(ctx context.Context, rec models.WalletRecord) error {
	body, err := json.Marshal(registryWallet{
		OwnerID:   rec.OwnerID,
		Address:   rec.Address,
		PublicKey: rec.PublicKey,
		Balance:   rec.Balance,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/internal/wallets", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wallet registry unavailable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return wallet.ErrExists
	default:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("wallet registry returned %d: %s", resp.StatusCode, string(b))
	}
}
