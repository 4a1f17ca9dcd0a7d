package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/tuitionledger/internal/catalog/domain"
	"github.com/smallbiznis/tuitionledger/internal/clock"
	dbpkg "github.com/smallbiznis/tuitionledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCodeLength = 64

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateItem(ctx context.Context, req domain.CreateItemRequest) (domain.Item, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Item{}, domain.ErrInvalidName
	}

	code, err := NormalizeCode(req.Code, name)
	if err != nil {
		return domain.Item{}, err
	}

	if req.UnitPrice != nil && *req.UnitPrice < 0 {
		return domain.Item{}, domain.ErrInvalidUnitPrice
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now()
	item := domain.Item{
		ID:           s.genID.Generate(),
		Code:         code,
		Name:         name,
		UnitPrice:    req.UnitPrice,
		Active:       active,
		DisplayOrder: req.DisplayOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &item); err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return domain.Item{}, domain.ErrDuplicateCode
		}
		return domain.Item{}, err
	}

	s.log.Info("catalog item created",
		zap.String("item_id", item.ID.String()),
		zap.String("code", item.Code),
		zap.Bool("billable", item.Billable()),
	)
	return item, nil
}

func (s *Service) UpdateItem(ctx context.Context, id string, req domain.UpdateItemRequest) (domain.Item, error) {
	itemID, err := parseID(id)
	if err != nil {
		return domain.Item{}, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Item{}, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	switch {
	case req.ClearPrice && req.UnitPrice != nil:
		return domain.Item{}, domain.ErrInvalidUnitPrice
	case req.ClearPrice:
		fields["unit_price"] = gorm.Expr("NULL")
	case req.UnitPrice != nil:
		if *req.UnitPrice < 0 {
			return domain.Item{}, domain.ErrInvalidUnitPrice
		}
		fields["unit_price"] = *req.UnitPrice
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	if req.DisplayOrder != nil {
		fields["display_order"] = *req.DisplayOrder
	}

	if len(fields) == 0 {
		return s.GetItem(ctx, id)
	}
	fields["updated_at"] = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, itemID, fields); err != nil {
		return domain.Item{}, err
	}

	s.log.Info("catalog item updated", zap.String("item_id", itemID.String()))
	return s.GetItem(ctx, id)
}

func (s *Service) GetItem(ctx context.Context, id string) (domain.Item, error) {
	itemID, err := parseID(id)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := s.repo.FindByID(ctx, s.db, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	if item == nil {
		return domain.Item{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListItems(ctx context.Context, req domain.ListItemsRequest) ([]domain.Item, error) {
	return s.repo.List(ctx, s.db, req.ActiveOnly)
}

func (s *Service) ListBillable(ctx context.Context) ([]domain.Item, error) {
	return s.repo.ListBillable(ctx, s.db)
}

// NormalizeCode lowercases an explicit code or derives one from the item name.
func NormalizeCode(code, name string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = slug.Make(name)
	} else {
		code = strings.ToLower(code)
	}
	if code == "" || len(code) > maxCodeLength || strings.ContainsAny(code, " \t\n") {
		return "", domain.ErrInvalidCode
	}
	return code, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
