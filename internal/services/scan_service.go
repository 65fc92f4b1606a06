package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/config"
	"github.com/desmond009/TollCrypt-sub002/internal/events"
	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/obs"
	"github.com/desmond009/TollCrypt-sub002/internal/repositories"
	"github.com/desmond009/TollCrypt-sub002/internal/tariff"
	"github.com/desmond009/TollCrypt-sub002/internal/tollpass"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

type ScanInput struct {
	Content  string
	BoothID  string
	ScanType string // qr / plate, пустой = qr
	Lat      *float64
	Lng      *float64
}

// ScanResult is the booth's answer. Verdict is always set; infra errors
// surface separately so the booth can distinguish "rejected" from
// "try again".
type ScanResult struct {
	EventID       string    `json:"event_id,omitempty"`
	Verdict       string    `json:"verdict"`
	Reason        string    `json:"reason,omitempty"`
	PayloadHash   string    `json:"payload_hash,omitempty"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	PlateNumber   string    `json:"plate_number,omitempty"`
	VehicleClass  string    `json:"vehicle_class,omitempty"`
	TollRate      string    `json:"toll_rate,omitempty"`
	Balance       string    `json:"balance,omitempty"`
	LowBalance    bool      `json:"low_balance,omitempty"`
	ScannedAt     time.Time `json:"scanned_at"`
}

// ScanService turns QR scans into transit verdicts.
type ScanService struct {
	validator   *tollpass.Validator
	resolver    *wallet.Resolver
	refresher   *wallet.Refresher
	transitRepo *repositories.TransitRepo
	vehicleRepo *repositories.VehicleRepo
	auditRepo   *repositories.AuditRepo
	tariffs     *tariff.Table
	rdb         *redis.Client
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewScanService(
	validator *tollpass.Validator,
	resolver *wallet.Resolver,
	refresher *wallet.Refresher,
	transitRepo *repositories.TransitRepo,
	vehicleRepo *repositories.VehicleRepo,
	auditRepo *repositories.AuditRepo,
	tariffs *tariff.Table,
	rdb *redis.Client,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *ScanService {
	return &ScanService{
		validator:   validator,
		resolver:    resolver,
		refresher:   refresher,
		transitRepo: transitRepo,
		vehicleRepo: vehicleRepo,
		auditRepo:   auditRepo,
		tariffs:     tariffs,
		rdb:         rdb,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// ProcessScan validates one QR authorization end to end and records the
// transit event. Гейты идут в порядке убывания дешевизны:
// cooldown, decode, validator, replay, wallet, запись.
func (s *ScanService) ProcessScan(ctx context.Context, in ScanInput) (*ScanResult, error) {
	if in.ScanType == "" {
		in.ScanType = models.ScanTypeQR
	}

	// 1. Booth cooldown: сканер двоит, вторая сработка в окне глушится
	// без записи в журнал. Redis недоступен — пропускаем, это не гейт.
	if dup := s.cooldownHit(ctx, in.BoothID, in.Content); dup {
		obs.ScansTotal.WithLabelValues(models.TransitVerdictRejected).Inc()
		return &ScanResult{
			Verdict:   models.TransitVerdictRejected,
			Reason:    models.ReasonDuplicateScan,
			ScannedAt: time.Now(),
		}, nil
	}

	// 2. Декодирование
	sa, err := tollpass.Decode(in.Content)
	if err != nil {
		obs.ValidationsTotal.WithLabelValues(tollpass.ReasonMalformedPayload).Inc()
		return s.reject(ctx, in, models.TransitEvent{
			Reason: strPtr(tollpass.ReasonMalformedPayload),
		}), nil
	}

	// 3. Криптографическая проверка
	verdict := s.validator.Validate(sa)
	payload := sa.Payload
	base := models.TransitEvent{
		PayloadHash:   strPtrOrNil(verdict.PayloadHash),
		WalletAddress: strPtr(payload.WalletAddress),
		PlateNumber:   strPtr(payload.VehicleNumber),
		VehicleClass:  strPtr(payload.VehicleType),
	}

	if !verdict.Valid {
		obs.ValidationsTotal.WithLabelValues(verdict.Reason).Inc()
		base.Reason = strPtr(verdict.Reason)
		return s.reject(ctx, in, base), nil
	}
	obs.ValidationsTotal.WithLabelValues(obs.VerdictAccepted).Inc()

	// 4. Replay: быстрый SELECT; арбитром всё равно остаётся уникальный
	// индекс на этапе записи, поэтому ошибка проверки не гейтит.
	consumed, err := s.transitRepo.HasAccepted(ctx, verdict.PayloadHash)
	if err != nil {
		s.log.Warn("replay pre-check unavailable", zap.Error(err))
	}
	if consumed {
		base.Reason = strPtr(models.ReasonReplayedAuthorization)
		return s.reject(ctx, in, base), nil
	}

	// 5. Кошелёк существует и совпадает с подписанным адресом
	rec, err := s.resolver.Resolve(ctx, payload.UserID)
	if err != nil {
		reason := models.ReasonResolutionFailed
		if errors.Is(err, wallet.ErrWalletNotFound) {
			reason = models.ReasonWalletNotFound
		}
		base.Reason = strPtr(reason)
		return s.reject(ctx, in, base), nil
	}
	if !strings.EqualFold(rec.Address, payload.WalletAddress) {
		base.Reason = strPtr(models.ReasonWalletMismatch)
		return s.reject(ctx, in, base), nil
	}

	// 6. Ставка и баланс. Нехватка средств не запрещает проезд,
	// только флажок: расчёт довзыскивается леджером.
	rate := s.tariffs.RateFor(payload.VehicleType)
	status := s.refresher.RefreshNow(ctx, rec.OwnerID, rec.Address)
	lowBalance := isLowBalance(status.Balance, rate)

	// 7. Запись. Accepted обязан лечь в журнал: на его уникальном
	// индексе держится защита от повторного предъявления.
	event := base
	event.BoothID = in.BoothID
	event.ScanType = in.ScanType
	event.Verdict = models.TransitVerdictAccepted
	event.TollRate = strPtr(rate)
	event.Lat = in.Lat
	event.Lng = in.Lng
	if err := s.transitRepo.Record(ctx, &event); err != nil {
		if errors.Is(err, repositories.ErrPayloadConsumed) {
			// Гонка двух будок с одним QR: индекс отдал проезд другой.
			base.Reason = strPtr(models.ReasonReplayedAuthorization)
			return s.reject(ctx, in, base), nil
		}
		return nil, fmt.Errorf("record transit event: %w", err)
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "booth",
		Action:     "scan_accepted",
		EntityType: "transit_event",
		EntityID:   &event.ID,
		Meta: map[string]any{
			"booth_id":     in.BoothID,
			"payload_hash": verdict.PayloadHash,
			"toll_rate":    rate,
			"low_balance":  lowBalance,
		},
	})
	obs.ScansTotal.WithLabelValues(models.TransitVerdictAccepted).Inc()

	_ = s.publisher.Publish(ctx, events.StreamToll, events.Event{
		Type: events.EventScanAccepted,
		Payload: map[string]any{
			"event_id":     event.ID.String(),
			"booth_id":     in.BoothID,
			"owner_id":     rec.OwnerID,
			"payload_hash": verdict.PayloadHash,
			"wallet":       rec.Address,
			"class":        payload.VehicleType,
			"toll_rate":    rate,
			"low_balance":  lowBalance,
		},
	})

	s.log.Info("scan accepted",
		zap.String("booth_id", in.BoothID),
		zap.String("class", payload.VehicleType),
		zap.Bool("low_balance", lowBalance),
	)

	return &ScanResult{
		EventID:       event.ID.String(),
		Verdict:       models.TransitVerdictAccepted,
		PayloadHash:   verdict.PayloadHash,
		WalletAddress: rec.Address,
		PlateNumber:   payload.VehicleNumber,
		VehicleClass:  payload.VehicleType,
		TollRate:      rate,
		Balance:       status.Balance,
		LowBalance:    lowBalance,
		ScannedAt:     event.ScannedAt,
	}, nil
}

// LookupPlate is the hardware fallback when the unit read a plate but
// no QR. Known plate → registered (post-paid lane), unknown → rejected.
func (s *ScanService) LookupPlate(ctx context.Context, in ScanInput, plate string) (*ScanResult, error) {
	in.ScanType = models.ScanTypePlate

	vehicle, err := s.vehicleRepo.GetByPlate(ctx, plate)
	if err != nil {
		base := models.TransitEvent{
			PlateNumber: strPtr(plate),
			Reason:      strPtr(models.ReasonUnknownPlate),
		}
		return s.reject(ctx, in, base), nil
	}

	rate := s.tariffs.RateFor(vehicle.VehicleClass)
	event := models.TransitEvent{
		BoothID:      in.BoothID,
		ScanType:     models.ScanTypePlate,
		PlateNumber:  strPtr(vehicle.PlateNumber),
		VehicleClass: strPtr(vehicle.VehicleClass),
		Verdict:      models.TransitVerdictRegistered,
		TollRate:     strPtr(rate),
		Lat:          in.Lat,
		Lng:          in.Lng,
	}
	if err := s.transitRepo.Record(ctx, &event); err != nil {
		return nil, fmt.Errorf("record transit event: %w", err)
	}

	obs.ScansTotal.WithLabelValues(models.TransitVerdictRegistered).Inc()

	return &ScanResult{
		EventID:      event.ID.String(),
		Verdict:      models.TransitVerdictRegistered,
		PlateNumber:  vehicle.PlateNumber,
		VehicleClass: vehicle.VehicleClass,
		TollRate:     rate,
		ScannedAt:    event.ScannedAt,
	}, nil
}

// reject records a rejected transit event. Потеря строки отказа не
// критична (в отличие от accepted), поэтому ошибка записи не гейтит.
func (s *ScanService) reject(ctx context.Context, in ScanInput, event models.TransitEvent) *ScanResult {
	event.BoothID = in.BoothID
	event.ScanType = in.ScanType
	event.Verdict = models.TransitVerdictRejected
	event.Lat = in.Lat
	event.Lng = in.Lng

	if err := s.transitRepo.Record(ctx, &event); err != nil {
		s.log.Warn("rejected scan not recorded", zap.Error(err))
		event.ScannedAt = time.Now()
	}

	reason := ""
	if event.Reason != nil {
		reason = *event.Reason
	}
	obs.ScansTotal.WithLabelValues(models.TransitVerdictRejected).Inc()

	_ = s.publisher.Publish(ctx, events.StreamToll, events.Event{
		Type: events.EventScanRejected,
		Payload: map[string]any{
			"booth_id": in.BoothID,
			"reason":   reason,
		},
	})

	s.log.Info("scan rejected",
		zap.String("booth_id", in.BoothID),
		zap.String("reason", reason),
	)

	result := &ScanResult{
		Verdict:   models.TransitVerdictRejected,
		Reason:    reason,
		ScannedAt: event.ScannedAt,
	}
	if event.ID != uuid.Nil {
		result.EventID = event.ID.String()
	}
	if event.PayloadHash != nil {
		result.PayloadHash = *event.PayloadHash
	}
	if event.WalletAddress != nil {
		result.WalletAddress = *event.WalletAddress
	}
	if event.PlateNumber != nil {
		result.PlateNumber = *event.PlateNumber
	}
	if event.VehicleClass != nil {
		result.VehicleClass = *event.VehicleClass
	}
	return result
}

// cooldownHit marks the first sighting of a payload at a booth and
// reports любое повторное в пределах окна.
func (s *ScanService) cooldownHit(ctx context.Context, boothID, content string) bool {
	if s.cfg.ScanCooldown <= 0 || s.rdb == nil {
		return false
	}

	sum := sha256.Sum256([]byte(content))
	key := fmt.Sprintf("scan:cooldown:%s:%s", boothID, hex.EncodeToString(sum[:]))

	fresh, err := s.rdb.SetNX(ctx, key, "1", s.cfg.ScanCooldown).Result()
	if err != nil {
		s.log.Warn("scan cooldown unavailable", zap.Error(err))
		return false
	}
	return !fresh
}

func isLowBalance(balanceWei, rate string) bool {
	rateWei, err := tariff.ToWei(rate)
	if err != nil {
		return false
	}
	bal, ok := new(big.Int).SetString(balanceWei, 10)
	if !ok {
		return true // баланс неизвестен, пусть будка подсветит
	}
	return bal.Cmp(rateWei) < 0
}

func strPtr(s string) *string { return &s }

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
