package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/config"
	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/obs"
	"github.com/desmond009/TollCrypt-sub002/internal/repositories"
	"github.com/desmond009/TollCrypt-sub002/internal/tariff"
	"github.com/desmond009/TollCrypt-sub002/internal/tollpass"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrNotVehicleOwner = errors.New("vehicle belongs to another user")
)

// IssuedPass is what the owner's device receives: the QR content plus
// everything the UI shows next to it.
type IssuedPass struct {
	QRContent   string                        `json:"qr_content"`
	Payload     tollpass.AuthorizationPayload `json:"payload"`
	PayloadHash string                        `json:"payload_hash"`
	TollRate    string                        `json:"toll_rate"`
	ExpiresAt   time.Time                     `json:"expires_at"`
	Demo        bool                          `json:"demo,omitempty"`
}

// PassService builds, signs and encodes toll authorizations.
type PassService struct {
	vehicleRepo *repositories.VehicleRepo
	userRepo    *repositories.UserRepo
	auditRepo   *repositories.AuditRepo
	resolver    *wallet.Resolver
	tariffs     *tariff.Table
	cfg         *config.Config
	log         *zap.Logger
}

func NewPassService(
	vehicleRepo *repositories.VehicleRepo,
	userRepo *repositories.UserRepo,
	auditRepo *repositories.AuditRepo,
	resolver *wallet.Resolver,
	tariffs *tariff.Table,
	cfg *config.Config,
	log *zap.Logger,
) *PassService {
	return &PassService{
		vehicleRepo: vehicleRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		resolver:    resolver,
		tariffs:     tariffs,
		cfg:         cfg,
		log:         log,
	}
}

// IssuePass produces a signed QR authorization for one toll charge.
// rateHint, если задан и парсится, перекрывает табличную ставку —
// страница плазы иногда отстаёт от выставленного на въезде табло.
func (s *PassService) IssuePass(ctx context.Context, userID, vehicleID uuid.UUID, rateHint string) (*IssuedPass, error) {
	// 1. Машина существует и принадлежит запрашивающему
	vehicle, err := s.vehicleRepo.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVehicleNotFound, err)
	}
	if vehicle.OwnerUserID != userID {
		return nil, ErrNotVehicleOwner
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	// 2. Кошелёк: создаём при первом проезде
	rec, err := s.resolver.Ensure(ctx, tollpass.IdentityHash(user.Subject))
	if err != nil {
		return nil, err
	}

	// 3. Собираем и подписываем payload
	payload := tollpass.Build(tollpass.BuildInput{
		WalletAddress: rec.Address,
		VehicleNumber: vehicle.PlateNumber,
		VehicleType:   vehicle.VehicleType,
		Identity:      user.Subject,
	})

	var signed tollpass.SignedAuthorization
	if s.cfg.DemoMode {
		signed = tollpass.SignPlaceholder(payload)
	} else {
		if rec.PrivateKey == "" {
			// Запись есть, а ключа в кеше нет: подписать нечем.
			return nil, fmt.Errorf("%w: no key material for wallet %s", tollpass.ErrSigningUnavailable, rec.Address)
		}
		signer, err := tollpass.LocalSignerFromHex(rec.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", tollpass.ErrSigningUnavailable, err)
		}
		signed, err = tollpass.Sign(payload, signer)
		if err != nil {
			return nil, err
		}
	}

	qr, err := tollpass.Encode(signed)
	if err != nil {
		return nil, err
	}

	// 4. Ставка: подсказка с табло главнее таблицы
	rate := s.tariffs.RateFor(payload.VehicleType)
	if rateHint != "" {
		if _, err := tariff.ToWei(rateHint); err == nil {
			rate = rateHint
		} else {
			s.log.Warn("unparseable rate hint ignored", zap.String("hint", rateHint))
		}
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "pass_issued",
		EntityType:  "vehicle",
		EntityID:    &vehicle.ID,
		Meta: map[string]any{
			"vehicle_class": payload.VehicleType,
			"wallet":        rec.Address,
			"toll_rate":     rate,
			"demo":          s.cfg.DemoMode,
		},
	})
	obs.PassesIssuedTotal.WithLabelValues(payload.VehicleType).Inc()

	s.log.Info("pass issued",
		zap.String("user_id", userID.String()),
		zap.String("vehicle_class", payload.VehicleType),
		zap.String("wallet", rec.Address),
	)

	maxAge := s.cfg.AuthorizationMaxAge
	if maxAge <= 0 {
		maxAge = tollpass.MaxAuthorizationAge
	}

	return &IssuedPass{
		QRContent:   qr,
		Payload:     payload,
		PayloadHash: tollpass.HashHex(payload),
		TollRate:    rate,
		ExpiresAt:   time.Unix(payload.Timestamp, 0).Add(maxAge),
		Demo:        s.cfg.DemoMode,
	}, nil
}
