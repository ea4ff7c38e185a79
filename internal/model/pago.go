package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados del pago. pendiente → pagado_parcial → pagado_total;
// pendiente/pagado_parcial → vencido (sweep); any non-terminal → cancelado.
// pagado_total and cancelado are terminal.
const (
	PagoPendiente  = "pendiente"
	PagoParcial    = "pagado_parcial"
	PagoTotal      = "pagado_total"
	PagoVencido    = "vencido"
	PagoCancelado  = "cancelado"
)

// Tipos de pago.
const (
	TipoContado = "contado"
	TipoCredito = "credito"
)

// Epsilon tolerates rounding drift when comparing accumulated amounts
// against the total (two-decimal currency, drift well under 0.1).
var Epsilon = decimal.NewFromFloat(0.1)

// Pago is the payment ledger for one completed work order: total owed,
// cumulative collected, and the installment schedule. It is mutated only by
// appending a PagoDetalle (which recomputes the aggregate in the same
// transaction) or by administrative edits while still pendiente.
// It is never physically deleted; cancellation frees the order for a new Pago.
type Pago struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Codigo         string    `gorm:"type:varchar(30);uniqueIndex;not null"`
	OrdenTrabajoID uuid.UUID `gorm:"type:uuid;not null;index"`

	MontoTotal  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MontoPagado decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	TipoPago      string     `gorm:"type:varchar(10);not null"` // contado | credito
	NumeroCuotas  int        `gorm:"not null;default:1"`
	CuotasPagadas int        `gorm:"not null;default:0"`
	Estado        string     `gorm:"type:varchar(20);not null;default:'pendiente'"`
	// FechaVencimiento is the first installment due date; required iff credito.
	FechaVencimiento *time.Time `gorm:"type:date"`
	Observaciones    *string

	CreatedAt time.Time
	UpdatedAt time.Time

	OrdenTrabajo *OrdenTrabajo `gorm:"foreignKey:OrdenTrabajoID"`
	Detalles     []PagoDetalle `gorm:"foreignKey:PagoID"`
}

// MontoPendiente is derived, never persisted independently of the two amounts.
func (p *Pago) MontoPendiente() decimal.Decimal {
	return p.MontoTotal.Sub(p.MontoPagado)
}

// PorcentajePagado returns the collected fraction as a 0–100 percentage.
func (p *Pago) PorcentajePagado() decimal.Decimal {
	if p.MontoTotal.IsZero() {
		return decimal.Zero
	}
	return p.MontoPagado.Div(p.MontoTotal).Mul(decimal.NewFromInt(100)).Round(2)
}

// EstaSaldado reports whether the accumulated amount covers the total
// within Epsilon.
func (p *Pago) EstaSaldado() bool {
	return p.MontoPagado.GreaterThanOrEqual(p.MontoTotal.Sub(Epsilon))
}

// EsTerminal reports whether no further detalles may be appended.
func (p *Pago) EsTerminal() bool {
	return p.Estado == PagoTotal || p.Estado == PagoCancelado
}

func (p *Pago) EsAlCredito() bool { return p.TipoPago == TipoCredito }

// MontoCuota is the per-installment amount for credit plans.
func (p *Pago) MontoCuota() decimal.Decimal {
	if p.EsAlCredito() && p.NumeroCuotas > 0 {
		return p.MontoTotal.Div(decimal.NewFromInt(int64(p.NumeroCuotas))).Round(2)
	}
	return p.MontoTotal
}

func (p *Pago) CuotasPendientes() int { return p.NumeroCuotas - p.CuotasPagadas }

func (p *Pago) ProximaCuota() int { return p.CuotasPagadas + 1 }

// TieneVencimientoPasado reports whether the due date has passed.
// Used by the overdue sweep, never triggers a transition on its own.
func (p *Pago) TieneVencimientoPasado(ahora time.Time) bool {
	return p.FechaVencimiento != nil && p.FechaVencimiento.Before(ahora)
}

// CuotaPlan is one entry of the projected installment schedule.
type CuotaPlan struct {
	NumeroCuota      int             `json:"numero_cuota"`
	Monto            decimal.Decimal `json:"monto"`
	FechaVencimiento time.Time       `json:"fecha_vencimiento"`
	Pagada           bool            `json:"pagada"`
	FechaPago        *time.Time      `json:"fecha_pago,omitempty"`
}

// GenerarPlanPagos projects the installment schedule for a credit Pago:
// NumeroCuotas equal installments of MontoTotal/NumeroCuotas, the n-th due
// FechaVencimiento + (n-1) months, marked pagada from the recorded detalles.
// Pure over the loaded aggregate; returns nil for contado or missing due date.
func (p *Pago) GenerarPlanPagos() []CuotaPlan {
	if !p.EsAlCredito() || p.FechaVencimiento == nil {
		return nil
	}

	pagosPorCuota := make(map[int]*PagoDetalle, len(p.Detalles))
	for i := range p.Detalles {
		d := &p.Detalles[i]
		pagosPorCuota[d.NumeroCuota] = d
	}

	monto := p.MontoCuota()
	plan := make([]CuotaPlan, 0, p.NumeroCuotas)
	for n := 1; n <= p.NumeroCuotas; n++ {
		cuota := CuotaPlan{
			NumeroCuota:      n,
			Monto:            monto,
			FechaVencimiento: p.FechaVencimiento.AddDate(0, n-1, 0),
			Pagada:           n <= p.CuotasPagadas,
		}
		if cuota.Pagada {
			if d, ok := pagosPorCuota[n]; ok {
				f := d.FechaPago
				cuota.FechaPago = &f
			}
		}
		plan = append(plan, cuota)
	}
	return plan
}
