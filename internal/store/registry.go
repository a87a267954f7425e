package store

import (
	"context"
	"fmt"

	"facilities-maintenance-backend/internal/location"
	"facilities-maintenance-backend/internal/model"
)

func (s *gormStore) GetAsset(ctx context.Context, id int64) (*model.Asset, error) {
	var asset model.Asset
	if err := s.db.WithContext(ctx).First(&asset, id).Error; err != nil {
		return nil, notFound(err, "asset", id)
	}
	return &asset, nil
}

func (s *gormStore) ActiveAssets(ctx context.Context) ([]model.Asset, error) {
	var assets []model.Asset
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to list active assets: %w", err)
	}
	return assets, nil
}

// LocationTree loads the parent links of every building, floor and room.
func (s *gormStore) LocationTree(ctx context.Context) (location.Tree, error) {
	var (
		buildings []model.Building
		floors    []model.Floor
		rooms     []model.Room
	)
	db := s.db.WithContext(ctx)
	if err := db.Find(&buildings).Error; err != nil {
		return location.Tree{}, fmt.Errorf("failed to load buildings: %w", err)
	}
	if err := db.Find(&floors).Error; err != nil {
		return location.Tree{}, fmt.Errorf("failed to load floors: %w", err)
	}
	if err := db.Find(&rooms).Error; err != nil {
		return location.Tree{}, fmt.Errorf("failed to load rooms: %w", err)
	}
	return location.NewTree(buildings, floors, rooms), nil
}
