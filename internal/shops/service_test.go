package shops

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/outbox"
)

type stubShopRepo struct {
	shops      map[uuid.UUID]*models.Shop
	kycUpdates map[uuid.UUID]enums.KYCStatus
}

func newStubShopRepo() *stubShopRepo {
	return &stubShopRepo{
		shops:      map[uuid.UUID]*models.Shop{},
		kycUpdates: map[uuid.UUID]enums.KYCStatus{},
	}
}

func (s *stubShopRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubShopRepo) Create(ctx context.Context, shop *models.Shop) error {
	shop.ID = uuid.New()
	s.shops[shop.ID] = shop
	return nil
}

func (s *stubShopRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	if sh, ok := s.shops[id]; ok {
		cp := *sh
		return &cp, nil
	}
	return nil, nil
}

func (s *stubShopRepo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error) {
	for _, sh := range s.shops {
		if sh.OwnerID == ownerID {
			cp := *sh
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubShopRepo) UpdateKYCStatus(ctx context.Context, id uuid.UUID, status enums.KYCStatus) error {
	s.shops[id].KYCStatus = status
	s.kycUpdates[id] = status
	return nil
}

func (s *stubShopRepo) UpdatePerformanceScore(ctx context.Context, id uuid.UUID, score float64) error {
	s.shops[id].PerformanceScore = score
	return nil
}

func newShopFixture(t *testing.T) (Service, *stubShopRepo, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ddl := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("create outbox table: %v", err)
	}
	repo := newStubShopRepo()
	svc, err := NewService(db.NewWithConn(conn), repo, outbox.NewService(outbox.NewRepository(conn), nil))
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc, repo, conn
}

func TestCreateShopStartsPending(t *testing.T) {
	svc, _, _ := newShopFixture(t)

	shop, err := svc.CreateShop(context.Background(), CreateShopInput{
		OwnerID:    uuid.New(),
		Name:       "Vintage Vinyl",
		Categories: []string{"music"},
	})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}
	if shop.KYCStatus != enums.KYCStatusPending {
		t.Fatalf("expected pending kyc, got %s", shop.KYCStatus)
	}
	if !shop.Active {
		t.Fatalf("expected new shop active")
	}
}

func TestCreateShopOnePerOwner(t *testing.T) {
	svc, _, _ := newShopFixture(t)
	ownerID := uuid.New()

	if _, err := svc.CreateShop(context.Background(), CreateShopInput{OwnerID: ownerID, Name: "First"}); err != nil {
		t.Fatalf("create first shop: %v", err)
	}
	_, err := svc.CreateShop(context.Background(), CreateShopInput{OwnerID: ownerID, Name: "Second"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for second shop, got %v", err)
	}
}

func TestDecideKYCApproveEmitsEvent(t *testing.T) {
	svc, repo, conn := newShopFixture(t)
	shop, err := svc.CreateShop(context.Background(), CreateShopInput{OwnerID: uuid.New(), Name: "Pending Shop"})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}

	decided, err := svc.DecideKYC(context.Background(), DecideKYCInput{
		ShopID:  shop.ID,
		AdminID: uuid.New(),
		Approve: true,
	})
	if err != nil {
		t.Fatalf("decide kyc: %v", err)
	}

	if decided.KYCStatus != enums.KYCStatusApproved {
		t.Fatalf("expected approved, got %s", decided.KYCStatus)
	}
	if repo.kycUpdates[shop.ID] != enums.KYCStatusApproved {
		t.Fatalf("expected status persisted")
	}
	var count int64
	if err := conn.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventShopKYCDecided, shop.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count outbox rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 kyc event, got %d", count)
	}
}

func TestDecideKYCRejectsTwice(t *testing.T) {
	svc, _, _ := newShopFixture(t)
	shop, err := svc.CreateShop(context.Background(), CreateShopInput{OwnerID: uuid.New(), Name: "Pending Shop"})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}

	if _, err := svc.DecideKYC(context.Background(), DecideKYCInput{ShopID: shop.ID, AdminID: uuid.New(), Approve: false}); err != nil {
		t.Fatalf("first decision: %v", err)
	}
	_, err = svc.DecideKYC(context.Background(), DecideKYCInput{ShopID: shop.ID, AdminID: uuid.New(), Approve: true})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on second decision, got %v", err)
	}
}

func TestReputationClampsScore(t *testing.T) {
	svc, repo, _ := newShopFixture(t)
	shop, err := svc.CreateShop(context.Background(), CreateShopInput{OwnerID: uuid.New(), Name: "Scored Shop"})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}

	repo.shops[shop.ID].PerformanceScore = 140
	score, err := svc.Reputation(context.Background(), shop.ID)
	if err != nil {
		t.Fatalf("reputation: %v", err)
	}
	if score != 100 {
		t.Fatalf("expected clamp to 100, got %f", score)
	}

	repo.shops[shop.ID].PerformanceScore = -5
	score, err = svc.Reputation(context.Background(), shop.ID)
	if err != nil {
		t.Fatalf("reputation: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected clamp to 0, got %f", score)
	}
}
