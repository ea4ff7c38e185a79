package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de una transaccion QR en vuelo.
const (
	TransaccionPendiente  = "pendiente"
	TransaccionConfirmada = "confirmada"
	TransaccionRechazada  = "rechazada"
)

// TransaccionQR tracks a QR charge between generation and settlement. It is
// the durable correlation record for both confirmation paths: the poller
// looks it up by TransactionID, the webhook by Referencia (the paymentNumber
// sent to the gateway). It also pins the charged amount, which the webhook
// payload does not carry.
type TransaccionQR struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PagoID uuid.UUID `gorm:"type:uuid;not null;index"`

	// TransactionID is assigned by the gateway when the QR is generated.
	TransactionID string `gorm:"type:varchar(80);uniqueIndex;not null"`
	// Referencia is the structured paymentNumber we chose: TAL-{pagoID}-{unix}.
	Referencia string `gorm:"type:varchar(120);uniqueIndex;not null"`

	Monto    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado   string          `gorm:"type:varchar(20);not null;default:'pendiente'"`
	ExpiraEn *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Pago *Pago `gorm:"foreignKey:PagoID"`
}
