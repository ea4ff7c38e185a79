package repository

import (
	"context"
	"time"

	"tallerpagos/internal/dto"
	"tallerpagos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PagoRepository interface {
	Create(ctx context.Context, tx *gorm.DB, p *model.Pago) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Pago, error)
	FindByCodigo(ctx context.Context, codigo string) (*model.Pago, error)
	// FindByIDForUpdate re-reads the aggregate inside tx with a row lock so
	// two overlapping recordPayment calls serialize on the same Pago.
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Pago, error)
	ExisteActivoPorOrden(ctx context.Context, ordenID uuid.UUID) (bool, error)
	UpdateTx(tx *gorm.DB, p *model.Pago) error
	UpdateEstado(ctx context.Context, id uuid.UUID, estado string) error
	List(ctx context.Context, filter dto.PagoFilter) ([]model.Pago, int64, error)
	// ListVencibles returns pagos the overdue sweep must examine: pendiente or
	// pagado_parcial with a due date before the cutoff.
	ListVencibles(ctx context.Context, corte time.Time, limit int) ([]model.Pago, error)
	NextCodigoSeq(ctx context.Context, tx *gorm.DB, fecha time.Time) (int64, error)
	Estadisticas(ctx context.Context) (*dto.EstadisticasPagos, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type pagoRepo struct{ db *gorm.DB }

func NewPagoRepository(db *gorm.DB) PagoRepository { return &pagoRepo{db: db} }

func (r *pagoRepo) DB() *gorm.DB { return r.db }

func (r *pagoRepo) Create(ctx context.Context, tx *gorm.DB, p *model.Pago) error {
	return tx.WithContext(ctx).Create(p).Error
}

func (r *pagoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Pago, error) {
	var p model.Pago
	err := r.db.WithContext(ctx).
		Preload("Detalles", func(db *gorm.DB) *gorm.DB { return db.Order("numero_cuota") }).
		Preload("Detalles.Receptor").
		Preload("OrdenTrabajo.Cliente").
		First(&p, id).Error
	return &p, err
}

func (r *pagoRepo) FindByCodigo(ctx context.Context, codigo string) (*model.Pago, error) {
	var p model.Pago
	err := r.db.WithContext(ctx).
		Preload("Detalles").
		Where("codigo = ?", codigo).
		First(&p).Error
	return &p, err
}

func (r *pagoRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Pago, error) {
	var p model.Pago
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	return &p, err
}

func (r *pagoRepo) ExisteActivoPorOrden(ctx context.Context, ordenID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Pago{}).
		Where("orden_trabajo_id = ? AND estado <> ?", ordenID, model.PagoCancelado).
		Count(&count).Error
	return count > 0, err
}

func (r *pagoRepo) UpdateTx(tx *gorm.DB, p *model.Pago) error {
	return tx.Model(p).Updates(map[string]interface{}{
		"monto_pagado":      p.MontoPagado,
		"cuotas_pagadas":    p.CuotasPagadas,
		"estado":            p.Estado,
		"tipo_pago":         p.TipoPago,
		"numero_cuotas":     p.NumeroCuotas,
		"fecha_vencimiento": p.FechaVencimiento,
		"observaciones":     p.Observaciones,
	}).Error
}

func (r *pagoRepo) UpdateEstado(ctx context.Context, id uuid.UUID, estado string) error {
	return r.db.WithContext(ctx).Model(&model.Pago{}).Where("id = ?", id).Update("estado", estado).Error
}

func (r *pagoRepo) List(ctx context.Context, filter dto.PagoFilter) ([]model.Pago, int64, error) {
	var pagos []model.Pago
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Pago{})

	if filter.Estado != "" && filter.Estado != "todos" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.TipoPago != "" && filter.TipoPago != "todos" {
		q = q.Where("tipo_pago = ?", filter.TipoPago)
	}
	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		q = q.Joins("JOIN ordenes_trabajo ON ordenes_trabajo.id = pagos.orden_trabajo_id").
			Joins("JOIN usuarios ON usuarios.id = ordenes_trabajo.cliente_id").
			Where("pagos.codigo ILIKE ? OR usuarios.nombre ILIKE ? OR ordenes_trabajo.vehiculo_placa ILIKE ?",
				term, term, term)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Detalles").Preload("OrdenTrabajo.Cliente").
		Order("pagos.created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&pagos).Error

	return pagos, total, err
}

func (r *pagoRepo) ListVencibles(ctx context.Context, corte time.Time, limit int) ([]model.Pago, error) {
	var pagos []model.Pago
	err := r.db.WithContext(ctx).
		Where("fecha_vencimiento < ? AND estado IN ?", corte,
			[]string{model.PagoPendiente, model.PagoParcial}).
		Limit(limit).
		Find(&pagos).Error
	return pagos, err
}

// NextCodigoSeq returns the next per-day sequence for codigo generation.
// The atomic upsert on folios_diarios serializes concurrent callers, so two
// transactions creating pagos the same day never receive the same number.
func (r *pagoRepo) NextCodigoSeq(ctx context.Context, tx *gorm.DB, fecha time.Time) (int64, error) {
	var seq int64
	err := tx.WithContext(ctx).Raw(
		`INSERT INTO folios_diarios (ambito, fecha, valor) VALUES (?, ?, 1)
		 ON CONFLICT (ambito, fecha) DO UPDATE SET valor = folios_diarios.valor + 1
		 RETURNING valor`,
		model.FolioCodigoPago, fecha.Format("2006-01-02"),
	).Scan(&seq).Error
	return seq, err
}

func (r *pagoRepo) Estadisticas(ctx context.Context) (*dto.EstadisticasPagos, error) {
	stats := &dto.EstadisticasPagos{}
	db := r.db.WithContext(ctx).Model(&model.Pago{})

	type conteo struct {
		Estado string
		N      int64
	}
	var conteos []conteo
	if err := db.Select("estado, COUNT(*) AS n").Group("estado").Scan(&conteos).Error; err != nil {
		return nil, err
	}
	for _, c := range conteos {
		stats.Total += c.N
		switch c.Estado {
		case model.PagoPendiente:
			stats.Pendientes = c.N
		case model.PagoParcial:
			stats.Parciales = c.N
		case model.PagoTotal:
			stats.Completos = c.N
		case model.PagoVencido:
			stats.Vencidos = c.N
		}
	}

	type montos struct {
		Pagado    decimal.Decimal
		Pendiente decimal.Decimal
	}
	var m montos
	err := r.db.WithContext(ctx).Model(&model.Pago{}).
		Select("COALESCE(SUM(monto_pagado),0) AS pagado, COALESCE(SUM(monto_total - monto_pagado),0) AS pendiente").
		Where("estado <> ?", model.PagoCancelado).
		Scan(&m).Error
	if err != nil {
		return nil, err
	}
	stats.IngresosTotales = m.Pagado
	stats.PendienteCobrar = m.Pendiente
	return stats, nil
}
