package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrdenTrabajo is the work order a Pago settles. The scheduling/diagnostic
// pipeline that produces it lives outside this service; here it is the
// read-mostly collaborator the payment ledger validates against.
// Estado: "en_proceso" | "completada" | "entregada" | "cancelada"
type OrdenTrabajo struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Codigo string    `gorm:"type:varchar(30);uniqueIndex;not null"`
	Estado string    `gorm:"type:varchar(20);not null;default:'en_proceso'"`

	ClienteID uuid.UUID `gorm:"type:uuid;not null;index"`
	Cliente   *Usuario  `gorm:"foreignKey:ClienteID"`

	// Vehicle snapshot used when describing the order to the gateway.
	VehiculoMarca  string `gorm:"type:varchar(50)"`
	VehiculoModelo string `gorm:"type:varchar(50)"`
	VehiculoPlaca  string `gorm:"type:varchar(15);index"`

	CostoManoObra  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CostoRepuestos decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// Subtotal is the amount the Pago is created for (mano de obra + repuestos).
	Subtotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Pagos []Pago `gorm:"foreignKey:OrdenTrabajoID"`
}

// EstaCompletada reports whether the order is eligible for payment creation.
func (o *OrdenTrabajo) EstaCompletada() bool {
	return o.Estado == "completada"
}
