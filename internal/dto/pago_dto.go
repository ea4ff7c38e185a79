package dto

import (
	"github.com/shopspring/decimal"

	"tallerpagos/internal/model"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CrearPagoRequest opens the ledger for a completed work order.
type CrearPagoRequest struct {
	OrdenTrabajoID string `json:"orden_trabajo_id" validate:"required,uuid"`
	TipoPago       string `json:"tipo_pago"        validate:"required,oneof=contado credito"`
	// NumeroCuotas only applies to credito (contado is always a single cuota).
	NumeroCuotas     int     `json:"numero_cuotas"     validate:"omitempty,min=2,max=24"`
	FechaVencimiento *string `json:"fecha_vencimiento" validate:"omitempty,datetime=2006-01-02"`
	Observaciones    *string `json:"observaciones"     validate:"omitempty,max=500"`
}

// RegistrarPagoRequest appends one collection event to the ledger.
type RegistrarPagoRequest struct {
	Monto      decimal.Decimal `json:"monto"       validate:"required"`
	MetodoPago string          `json:"metodo_pago" validate:"required,oneof=efectivo qr"`
	// NumeroComprobante is auto-generated ({EF|QR}-{yyyymmdd}-{seq}) when absent.
	NumeroComprobante *string `json:"numero_comprobante" validate:"omitempty,max=30"`
	Banco             *string `json:"banco"              validate:"omitempty,max=50"`
	Referencia        *string `json:"referencia"         validate:"omitempty,max=80"`
	RecibidoPor       *string `json:"recibido_por"       validate:"omitempty,uuid"`
	Observaciones     *string `json:"observaciones"      validate:"omitempty,max=500"`
}

// ActualizarPagoRequest edits schedule/type; only honored while the Pago is
// pendiente with no detalles recorded.
type ActualizarPagoRequest struct {
	TipoPago         string  `json:"tipo_pago"         validate:"required,oneof=contado credito"`
	NumeroCuotas     int     `json:"numero_cuotas"     validate:"omitempty,min=2,max=24"`
	FechaVencimiento *string `json:"fecha_vencimiento" validate:"omitempty,datetime=2006-01-02"`
	Observaciones    *string `json:"observaciones"     validate:"omitempty,max=500"`
}

type CancelarPagoRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}

// PagoFilter is bound from the query string of GET /v1/pagos.
type PagoFilter struct {
	Estado   string `form:"estado"`    // pendiente | pagado_parcial | pagado_total | vencido | cancelado | todos
	TipoPago string `form:"tipo_pago"` // contado | credito | todos
	Search   string `form:"search"`    // codigo, cliente o placa
	Page     int    `form:"page,default=1"   validate:"min=1"`
	Limit    int    `form:"limit,default=15" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PagoDetalleResponse struct {
	NumeroCuota       int             `json:"numero_cuota"`
	Monto             decimal.Decimal `json:"monto"`
	MetodoPago        string          `json:"metodo_pago"`
	NumeroComprobante string          `json:"numero_comprobante"`
	Banco             *string         `json:"banco,omitempty"`
	Referencia        *string         `json:"referencia,omitempty"`
	RecibidoPor       string          `json:"recibido_por"`
	FechaPago         string          `json:"fecha_pago"`
	HoraPago          string          `json:"hora_pago"`
}

type PagoResponse struct {
	ID               string                `json:"id"`
	Codigo           string                `json:"codigo"`
	OrdenTrabajoID   string                `json:"orden_trabajo_id"`
	OrdenCodigo      string                `json:"orden_codigo,omitempty"`
	Cliente          string                `json:"cliente,omitempty"`
	MontoTotal       decimal.Decimal       `json:"monto_total"`
	MontoPagado      decimal.Decimal       `json:"monto_pagado"`
	MontoPendiente   decimal.Decimal       `json:"monto_pendiente"`
	PorcentajePagado decimal.Decimal       `json:"porcentaje_pagado"`
	TipoPago         string                `json:"tipo_pago"`
	NumeroCuotas     int                   `json:"numero_cuotas"`
	CuotasPagadas    int                   `json:"cuotas_pagadas"`
	Estado           string                `json:"estado"`
	FechaVencimiento *string               `json:"fecha_vencimiento,omitempty"`
	Observaciones    *string               `json:"observaciones,omitempty"`
	Detalles         []PagoDetalleResponse `json:"detalles,omitempty"`
	PlanPagos        []model.CuotaPlan     `json:"plan_pagos,omitempty"`
	CreatedAt        string                `json:"created_at"`
}

type PagoListResponse struct {
	Data  []PagoResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// EstadisticasPagos aggregates ledger counters for the admin dashboard.
type EstadisticasPagos struct {
	Total            int64           `json:"total"`
	Pendientes       int64           `json:"pendientes"`
	Parciales        int64           `json:"parciales"`
	Completos        int64           `json:"completos"`
	Vencidos         int64           `json:"vencidos"`
	IngresosTotales  decimal.Decimal `json:"ingresos_totales"`
	PendienteCobrar  decimal.Decimal `json:"pendiente_cobrar"`
}
