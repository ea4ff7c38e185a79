package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metodos de pago soportados.
const (
	MetodoEfectivo = "efectivo"
	MetodoQR       = "qr"
)

// PagoDetalle is one immutable entry of the collection log. Entries are NEVER
// updated or deleted; the sum of detalle amounts equals the parent Pago's
// MontoPagado after every committed operation.
//
// Referencia carries the gateway transaction ID for QR entries and backs the
// idempotency guarantee: the partial unique index on (pago_id, referencia)
// makes a duplicate confirmation fail at insert time (see infra.NewDatabase).
type PagoDetalle struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PagoID uuid.UUID `gorm:"type:uuid;not null;index"`

	// NumeroCuota is sequential within the Pago: 1, 2, 3, …
	NumeroCuota int             `gorm:"not null"`
	Monto       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MetodoPago  string          `gorm:"type:varchar(10);not null"` // efectivo | qr

	NumeroComprobante string  `gorm:"type:varchar(30);not null"`
	Banco             *string `gorm:"type:varchar(50)"`
	Referencia        *string `gorm:"type:varchar(80)"`

	RecibidoPor *uuid.UUID `gorm:"type:uuid"`
	Receptor    *Usuario   `gorm:"foreignKey:RecibidoPor"`

	FechaPago     time.Time `gorm:"type:date;not null"`
	HoraPago      string    `gorm:"type:varchar(8);not null"`
	Observaciones *string

	CreatedAt time.Time
}

// MetodoPagoValido reports membership in the supported set.
func MetodoPagoValido(metodo string) bool {
	return metodo == MetodoEfectivo || metodo == MetodoQR
}

// NumeroComprobanteAuto builds the auto-generated receipt number
// {EF|QR}-{yyyymmdd}-{4-digit sequence within method+day}.
func NumeroComprobanteAuto(metodo string, fecha time.Time, secuencia int64) string {
	prefix := "QR"
	if metodo == MetodoEfectivo {
		prefix = "EF"
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, fecha.Format("20060102"), secuencia)
}
