package service

import "errors"

// Domain error taxonomy for the payment ledger. Handlers and the
// reconciliation flow branch on these with errors.Is; user-facing messages
// carry the specific reason, never a generic failure.
var (
	// ErrPagoDuplicado: the work order already has a non-cancelled Pago.
	ErrPagoDuplicado = errors.New("la orden ya tiene un pago activo asociado")
	// ErrOrdenNoCompletada: only completed work orders can be charged.
	ErrOrdenNoCompletada = errors.New("solo se pueden crear pagos para ordenes completadas")
	// ErrMontoExcedente: the amount exceeds the pending balance.
	ErrMontoExcedente = errors.New("el monto excede el saldo pendiente del pago")
	// ErrPagoProcesado: the Pago is terminal (pagado_total or cancelado).
	ErrPagoProcesado = errors.New("el pago ya fue procesado o cancelado")
	// ErrConflictoConciliacion: a detalle with the same gateway reference
	// already exists. Reconciliation treats this as success, not failure.
	ErrConflictoConciliacion = errors.New("la transaccion ya fue registrada")
)
