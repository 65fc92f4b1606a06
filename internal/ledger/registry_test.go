package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

const regOwner = "a3f1c2d4e5b6978012345678901234567890123456789012345678901234abcd"

func newRegistryServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /internal/wallets/"+regOwner, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(registryWallet{
			OwnerID:   regOwner,
			Address:   "0x52908400098527886E0F7030069857D2E4169EE7",
			PublicKey: "04deadbeef",
			Balance:   "1000",
			CreatedAt: time.Now().Add(-time.Hour),
		})
	})
	mux.HandleFunc("GET /internal/wallets/"+regOwner+"/balance", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"balance": "1000"})
	})
	mux.HandleFunc("GET /internal/wallets/"+regOwner+"/exists", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"exists": true})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRegistryClient_Info(t *testing.T) {
	server := newRegistryServer(t)
	client := NewRegistryClient(server.URL, time.Second, zap.NewNop())

	rec, err := client.Info(context.Background(), regOwner)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if rec.Address != "0x52908400098527886E0F7030069857D2E4169EE7" {
		t.Errorf("Address = %q", rec.Address)
	}
	if rec.Balance != "1000" {
		t.Errorf("Balance = %q, want 1000", rec.Balance)
	}

	_, err = client.Info(context.Background(), "unknownowner")
	if !errors.Is(err, wallet.ErrNotFound) {
		t.Errorf("Info(unknown) error = %v, want wallet.ErrNotFound", err)
	}
}

func TestRegistryClient_InfoServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewRegistryClient(server.URL, time.Second, zap.NewNop())
	_, err := client.Info(context.Background(), regOwner)
	if err == nil {
		t.Fatal("expected error on 500")
	}
	// 500 — это недоступность, а не подтверждённое отсутствие
	if errors.Is(err, wallet.ErrNotFound) {
		t.Error("server error must not read as confirmed absence")
	}
}

func TestRegistryClient_InfoUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // адрес занят, но никто не слушает

	client := NewRegistryClient(server.URL, time.Second, zap.NewNop())
	_, err := client.Info(context.Background(), regOwner)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if errors.Is(err, wallet.ErrNotFound) {
		t.Error("transport failure must not read as confirmed absence")
	}
}

func TestRegistryClient_Exists(t *testing.T) {
	server := newRegistryServer(t)
	client := NewRegistryClient(server.URL, time.Second, zap.NewNop())

	ok, err := client.Exists(context.Background(), regOwner)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Error("Exists = false, want true")
	}

	ok, err = client.Exists(context.Background(), "unknownowner")
	if err != nil {
		t.Fatalf("Exists(unknown): %v", err)
	}
	if ok {
		t.Error("Exists(unknown) = true, want false")
	}
}

func TestRegistryClient_Balance(t *testing.T) {
	server := newRegistryServer(t)
	client := NewRegistryClient(server.URL, time.Second, zap.NewNop())

	balance, err := client.Balance(context.Background(), regOwner)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != "1000" {
		t.Errorf("Balance = %q, want 1000", balance)
	}

	if _, err := client.Balance(context.Background(), "unknownowner"); !errors.Is(err, wallet.ErrNotFound) {
		t.Errorf("Balance(unknown) error = %v, want wallet.ErrNotFound", err)
	}
}

func TestRegistryClient_Create(t *testing.T) {
	var posted map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&posted)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewRegistryClient(server.URL, time.Second, zap.NewNop())
	rec := models.WalletRecord{
		OwnerID:    regOwner,
		Address:    "0x52908400098527886E0F7030069857D2E4169EE7",
		PublicKey:  "04deadbeef",
		PrivateKey: "must-not-leave-the-process",
		Balance:    "0",
	}
	if err := client.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if posted["owner_id"] != regOwner {
		t.Errorf("posted owner_id = %v", posted["owner_id"])
	}
	for field := range posted {
		if field == "private_key" {
			t.Fatal("private key material crossed the wire")
		}
	}
}

func TestRegistryClient_CreateConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := NewRegistryClient(server.URL, time.Second, zap.NewNop())
	err := client.Create(context.Background(), models.WalletRecord{OwnerID: regOwner})
	if !errors.Is(err, wallet.ErrExists) {
		t.Errorf("Create conflict error = %v, want wallet.ErrExists", err)
	}
}
