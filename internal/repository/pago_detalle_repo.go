package repository

import (
	"context"
	"time"

	"tallerpagos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PagoDetalleRepository interface {
	CreateTx(tx *gorm.DB, d *model.PagoDetalle) error
	// FindByReferencia locates an entry by gateway transaction ID. A hit means
	// the confirmation was already applied.
	FindByReferencia(ctx context.Context, tx *gorm.DB, referencia string) (*model.PagoDetalle, error)
	ListByPago(ctx context.Context, pagoID uuid.UUID) ([]model.PagoDetalle, error)
	// NextComprobanteSeq issues the next per-method, per-day receipt number.
	NextComprobanteSeq(tx *gorm.DB, metodo string, fecha time.Time) (int64, error)
	// CountByPagoTx returns how many entries the Pago already has; the next
	// numero_cuota is count+1.
	CountByPagoTx(tx *gorm.DB, pagoID uuid.UUID) (int64, error)
}

type pagoDetalleRepo struct{ db *gorm.DB }

func NewPagoDetalleRepository(db *gorm.DB) PagoDetalleRepository { return &pagoDetalleRepo{db: db} }

func (r *pagoDetalleRepo) CreateTx(tx *gorm.DB, d *model.PagoDetalle) error {
	return tx.Create(d).Error
}

func (r *pagoDetalleRepo) FindByReferencia(ctx context.Context, tx *gorm.DB, referencia string) (*model.PagoDetalle, error) {
	db := tx
	if db == nil {
		db = r.db
	}
	var d model.PagoDetalle
	err := db.WithContext(ctx).Where("referencia = ?", referencia).First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *pagoDetalleRepo) ListByPago(ctx context.Context, pagoID uuid.UUID) ([]model.PagoDetalle, error) {
	var detalles []model.PagoDetalle
	err := r.db.WithContext(ctx).
		Preload("Receptor").
		Where("pago_id = ?", pagoID).
		Order("numero_cuota").
		Find(&detalles).Error
	return detalles, err
}

func (r *pagoDetalleRepo) CountByPagoTx(tx *gorm.DB, pagoID uuid.UUID) (int64, error) {
	var count int64
	err := tx.Model(&model.PagoDetalle{}).Where("pago_id = ?", pagoID).Count(&count).Error
	return count, err
}

// NextComprobanteSeq increments the method+day counter in folios_diarios
// atomically; a COUNT here would let two concurrent abonos on distinct pagos
// mint the same receipt number.
func (r *pagoDetalleRepo) NextComprobanteSeq(tx *gorm.DB, metodo string, fecha time.Time) (int64, error) {
	var seq int64
	err := tx.Raw(
		`INSERT INTO folios_diarios (ambito, fecha, valor) VALUES (?, ?, 1)
		 ON CONFLICT (ambito, fecha) DO UPDATE SET valor = folios_diarios.valor + 1
		 RETURNING valor`,
		model.FolioComprobante+":"+metodo, fecha.Format("2006-01-02"),
	).Scan(&seq).Error
	return seq, err
}
