package model

// FolioDiario is a per-day counter row backing the numbered documents
// (codigo de pago, numero de comprobante). Each ambito+fecha pair holds the
// last value issued; the increment happens in a single upsert so concurrent
// transactions never mint the same number.
type FolioDiario struct {
	Ambito string `gorm:"primaryKey;size:40"`
	Fecha  string `gorm:"primaryKey;size:10"` // yyyy-mm-dd
	Valor  int64  `gorm:"not null"`
}

func (FolioDiario) TableName() string { return "folios_diarios" }

// Folio ambitos.
const (
	FolioCodigoPago  = "codigo_pago"
	FolioComprobante = "comprobante" // suffixed with ":{metodo}"
)
