package repository

import (
	"context"

	"tallerpagos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransaccionQRRepository interface {
	Create(ctx context.Context, t *model.TransaccionQR) error
	FindByTransactionID(ctx context.Context, transactionID string) (*model.TransaccionQR, error)
	FindByReferencia(ctx context.Context, referencia string) (*model.TransaccionQR, error)
	// FindPendienteByPago returns the most recent pending transaction for a
	// pago; used when the echoed reference resolves only by its embedded ID.
	FindPendienteByPago(ctx context.Context, pagoID uuid.UUID) (*model.TransaccionQR, error)
	UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, estado string) error
}

type transaccionQRRepo struct{ db *gorm.DB }

func NewTransaccionQRRepository(db *gorm.DB) TransaccionQRRepository {
	return &transaccionQRRepo{db: db}
}

func (r *transaccionQRRepo) Create(ctx context.Context, t *model.TransaccionQR) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *transaccionQRRepo) FindByTransactionID(ctx context.Context, transactionID string) (*model.TransaccionQR, error) {
	var t model.TransaccionQR
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&t).Error
	return &t, err
}

func (r *transaccionQRRepo) FindByReferencia(ctx context.Context, referencia string) (*model.TransaccionQR, error) {
	var t model.TransaccionQR
	err := r.db.WithContext(ctx).Where("referencia = ?", referencia).First(&t).Error
	return &t, err
}

func (r *transaccionQRRepo) FindPendienteByPago(ctx context.Context, pagoID uuid.UUID) (*model.TransaccionQR, error) {
	var t model.TransaccionQR
	err := r.db.WithContext(ctx).
		Where("pago_id = ? AND estado = ?", pagoID, model.TransaccionPendiente).
		Order("created_at DESC").
		First(&t).Error
	return &t, err
}

func (r *transaccionQRRepo) UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, estado string) error {
	return tx.Model(&model.TransaccionQR{}).Where("id = ?", id).Update("estado", estado).Error
}
