package repository

import (
	"context"

	"tallerpagos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrdenTrabajoRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.OrdenTrabajo, error)
	// ListCompletadas returns orders eligible for payment creation, with any
	// existing pagos preloaded so callers can show what is already covered.
	ListCompletadas(ctx context.Context) ([]model.OrdenTrabajo, error)
	UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, estado string) error
}

type ordenRepo struct{ db *gorm.DB }

func NewOrdenTrabajoRepository(db *gorm.DB) OrdenTrabajoRepository { return &ordenRepo{db: db} }

func (r *ordenRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.OrdenTrabajo, error) {
	var o model.OrdenTrabajo
	err := r.db.WithContext(ctx).Preload("Cliente").First(&o, id).Error
	return &o, err
}

func (r *ordenRepo) ListCompletadas(ctx context.Context) ([]model.OrdenTrabajo, error) {
	var ordenes []model.OrdenTrabajo
	err := r.db.WithContext(ctx).
		Where("estado = ?", "completada").
		Preload("Cliente").
		Preload("Pagos").
		Order("created_at DESC").
		Find(&ordenes).Error
	return ordenes, err
}

func (r *ordenRepo) UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, estado string) error {
	return tx.Model(&model.OrdenTrabajo{}).Where("id = ?", id).Update("estado", estado).Error
}
