package dto

import "github.com/shopspring/decimal"

// ─── QR generation ───────────────────────────────────────────────────────────

type GenerarQRRequest struct {
	PagoID string          `json:"pago_id" validate:"required,uuid"`
	Monto  decimal.Decimal `json:"monto"   validate:"required"`
}

type GenerarQRResponse struct {
	QRImage       string `json:"qr_image"` // data:image/png;base64,…
	TransactionID string `json:"transaction_id"`
	NroPago       string `json:"nro_pago"`
	PagoID        string `json:"pago_id"`
	ExpiraEn      string `json:"expira_en,omitempty"`
}

// ─── Status polling ──────────────────────────────────────────────────────────

type ConsultarEstadoRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
}

type ConsultarEstadoResponse struct {
	TransactionID string `json:"transaction_id"`
	// Estado is the normalized status: pendiente | completado | rechazado.
	Estado      string `json:"estado"`
	PagoID      string `json:"pago_id"`
	PagoEstado  string `json:"pago_estado"`
	PaymentDate string `json:"payment_date,omitempty"`
	PaymentTime string `json:"payment_time,omitempty"`
}

// ─── Webhook ─────────────────────────────────────────────────────────────────

// CallbackRequest mirrors the gateway's webhook payload field for field.
type CallbackRequest struct {
	PedidoID   string `json:"PedidoID"`
	Estado     string `json:"Estado"`
	MetodoPago string `json:"MetodoPago"`
	Fecha      string `json:"Fecha"`
	Hora       string `json:"Hora"`
}

// CallbackResponse is the acknowledgement envelope the gateway expects.
// The webhook endpoint always answers HTTP 200 with this shape; a non-200
// (or a malformed body) triggers provider retry storms.
type CallbackResponse struct {
	Error   int    `json:"error"`  // 0 ok, 1 error
	Status  int    `json:"status"` // 1 ok, 0 error
	Message string `json:"message"`
	Values  bool   `json:"values"`
}
