package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/events"
	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/repositories"
	"github.com/desmond009/TollCrypt-sub002/internal/tollpass"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

// WalletService is the user-facing surface over the tiered resolver.
// Handlers talk to it with a user id; the anonymous owner key derived
// from the gateway subject never leaves the service layer.
type WalletService struct {
	resolver  *wallet.Resolver
	refresher *wallet.Refresher
	userRepo  *repositories.UserRepo
	auditRepo *repositories.AuditRepo
	publisher events.Publisher
	log       *zap.Logger
}

func NewWalletService(
	resolver *wallet.Resolver,
	refresher *wallet.Refresher,
	userRepo *repositories.UserRepo,
	auditRepo *repositories.AuditRepo,
	publisher events.Publisher,
	log *zap.Logger,
) *WalletService {
	return &WalletService{
		resolver:  resolver,
		refresher: refresher,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		publisher: publisher,
		log:       log,
	}
}

// OwnerKey derives the anonymous wallet owner identity for a user.
// Тот же хеш уезжает в userId платёжного payload, поэтому кошелёк
// находится по скану без обращения к таблице users.
func (s *WalletService) OwnerKey(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("user not found: %w", err)
	}
	return tollpass.IdentityHash(user.Subject), nil
}

// GetWallet looks the wallet up without creating one.
// wallet.ErrWalletNotFound means the user has not set one up yet.
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.WalletRecord, error) {
	ownerKey, err := s.OwnerKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec, err := s.resolver.Resolve(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateWallet resolves or creates the user's wallet. The bool reports
// whether this call created it — только тогда приватный ключ
// показывается владельцу, один раз.
func (s *WalletService) CreateWallet(ctx context.Context, userID uuid.UUID) (*models.WalletRecord, bool, error) {
	ownerKey, err := s.OwnerKey(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	rec, err := s.resolver.Ensure(ctx, ownerKey)
	if err != nil {
		return nil, false, err
	}
	created := rec.Provenance == models.WalletProvenanceCreated
	if created {
		_ = s.auditRepo.Log(ctx, models.AuditLog{
			ActorUserID: &userID,
			ActorType:   "user",
			Action:      "wallet_created",
			EntityType:  "wallet",
			Meta:        map[string]any{"address": rec.Address},
		})

		_ = s.publisher.Publish(ctx, events.StreamToll, events.Event{
			Type: events.EventWalletCreated,
			Payload: map[string]any{
				"owner_id": rec.OwnerID,
				"address":  rec.Address,
			},
		})

		s.log.Info("wallet created",
			zap.String("user_id", userID.String()),
			zap.String("address", rec.Address),
		)
	}

	return &rec, created, nil
}

// Balance returns the stored balance without touching the chain.
func (s *WalletService) Balance(ctx context.Context, userID uuid.UUID) (models.BalanceStatus, error) {
	rec, err := s.GetWallet(ctx, userID)
	if err != nil {
		return models.BalanceStatus{}, err
	}
	return models.BalanceStatus{
		OwnerID:   rec.OwnerID,
		Address:   rec.Address,
		Balance:   rec.Balance,
		Source:    rec.Provenance,
		Stale:     rec.Provenance == models.WalletProvenanceCache,
		CheckedAt: rec.LastAccessed,
	}, nil
}

// RefreshBalance re-reads the balance from the chain, falling back
// down the tiers. Never fails once the wallet itself resolves.
func (s *WalletService) RefreshBalance(ctx context.Context, userID uuid.UUID) (models.BalanceStatus, error) {
	rec, err := s.GetWallet(ctx, userID)
	if err != nil {
		return models.BalanceStatus{}, err
	}
	return s.refresher.RefreshNow(ctx, rec.OwnerID, rec.Address), nil
}
