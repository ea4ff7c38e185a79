package worker

// recibo_worker.go
// Processes receipt jobs from QueueRecibos: renders the thermal PDF for one
// detalle and emails it to the client when an address is on file.

import (
	"context"
	"encoding/json"
	"fmt"

	"tallerpagos/internal/infra"
	"tallerpagos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReciboWorker renders and delivers payment receipts.
type ReciboWorker struct {
	pagoRepo    repository.PagoRepository
	mailer      *infra.Mailer
	storagePath string
}

func NewReciboWorker(pagoRepo repository.PagoRepository, mailer *infra.Mailer, storagePath string) *ReciboWorker {
	return &ReciboWorker{pagoRepo: pagoRepo, mailer: mailer, storagePath: storagePath}
}

// Process builds the PDF for the referenced detalle and emails it.
// A missing client email is not an error: the PDF stays on disk for
// front-desk printing.
func (w *ReciboWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReciboPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("recibo_worker: invalid payload")
		return nil // malformed payloads never succeed on retry
	}

	pagoID, err := uuid.Parse(payload.PagoID)
	if err != nil {
		log.Error().Str("pago_id", payload.PagoID).Msg("recibo_worker: invalid pago_id")
		return nil
	}
	detalleID, err := uuid.Parse(payload.DetalleID)
	if err != nil {
		log.Error().Str("detalle_id", payload.DetalleID).Msg("recibo_worker: invalid detalle_id")
		return nil
	}

	pago, err := w.pagoRepo.FindByID(ctx, pagoID)
	if err != nil {
		return fmt.Errorf("recibo_worker: cargar pago: %w", err)
	}

	idx := -1
	for i := range pago.Detalles {
		if pago.Detalles[i].ID == detalleID {
			idx = i
			break
		}
	}
	if idx < 0 {
		log.Error().Str("detalle_id", payload.DetalleID).Msg("recibo_worker: detalle no encontrado")
		return nil
	}
	detalle := &pago.Detalles[idx]

	pdfPath, err := infra.GenerateReciboPDF(pago, detalle, w.storagePath)
	if err != nil {
		return fmt.Errorf("recibo_worker: generar PDF: %w", err)
	}

	var email string
	if pago.OrdenTrabajo != nil && pago.OrdenTrabajo.Cliente != nil && pago.OrdenTrabajo.Cliente.Email != nil {
		email = *pago.OrdenTrabajo.Cliente.Email
	}
	if email == "" {
		log.Info().Str("comprobante", detalle.NumeroComprobante).
			Msg("recibo_worker: cliente sin email, recibo solo en disco")
		return nil
	}

	subject := fmt.Sprintf("Recibo de pago %s", detalle.NumeroComprobante)
	body := fmt.Sprintf(
		"Se registró su pago de Bs. %s (cuota %d de %d) sobre la orden %s.\nAdjuntamos el recibo correspondiente.",
		detalle.Monto.StringFixed(2), detalle.NumeroCuota, pago.NumeroCuotas, pago.Codigo)

	if err := w.mailer.SendRecibo(email, subject, body, pdfPath); err != nil {
		return fmt.Errorf("recibo_worker: enviar email: %w", err)
	}

	log.Info().Str("to", email).Str("comprobante", detalle.NumeroComprobante).
		Msg("recibo_worker: recibo enviado")
	return nil
}
