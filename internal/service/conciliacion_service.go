package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tallerpagos/internal/dto"
	"tallerpagos/internal/infra"
	"tallerpagos/internal/model"
	"tallerpagos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ConciliacionService coordinates the QR gateway with the payment ledger.
// Confirmation arrives through two independent channels (status polling and
// the provider webhook); both converge on the same idempotent registration.
type ConciliacionService interface {
	GenerarQR(ctx context.Context, req dto.GenerarQRRequest) (*dto.GenerarQRResponse, error)
	ConsultarEstado(ctx context.Context, transactionID string) (*dto.ConsultarEstadoResponse, error)
	// ProcesarCallback never returns an error to the transport layer: the
	// provider expects HTTP 200 with the acknowledgement envelope even when
	// processing fails, so failures are folded into the envelope itself.
	ProcesarCallback(ctx context.Context, req dto.CallbackRequest) *dto.CallbackResponse
}

type conciliacionService struct {
	pagoRepo  repository.PagoRepository
	txRepo    repository.TransaccionQRRepository
	ordenRepo repository.OrdenTrabajoRepository
	pagoSvc   PagoService
	gateway   *infra.PagoFacilClient
	cb        *infra.CircuitBreaker
}

func NewConciliacionService(
	pagoRepo repository.PagoRepository,
	txRepo repository.TransaccionQRRepository,
	ordenRepo repository.OrdenTrabajoRepository,
	pagoSvc PagoService,
	gateway *infra.PagoFacilClient,
	cb *infra.CircuitBreaker,
) ConciliacionService {
	return &conciliacionService{
		pagoRepo:  pagoRepo,
		txRepo:    txRepo,
		ordenRepo: ordenRepo,
		pagoSvc:   pagoSvc,
		gateway:   gateway,
		cb:        cb,
	}
}

// BuildReferenciaPago builds the paymentNumber sent to the gateway. The
// webhook echoes it back verbatim as PedidoID, so it must be parseable on
// its own: TAL-{pagoID}-{unix}.
func BuildReferenciaPago(pagoID uuid.UUID, ahora time.Time) string {
	return fmt.Sprintf("TAL-%s-%d", pagoID, ahora.Unix())
}

// ParseReferenciaPago recovers the pago ID from a reference built by
// BuildReferenciaPago.
func ParseReferenciaPago(ref string) (uuid.UUID, error) {
	partes := strings.Split(ref, "-")
	// TAL + 5 uuid groups + unix
	if len(partes) != 7 || partes[0] != "TAL" {
		return uuid.Nil, fmt.Errorf("referencia con formato desconocido: %q", ref)
	}
	return uuid.Parse(strings.Join(partes[1:6], "-"))
}

// ── GenerarQR ────────────────────────────────────────────────────────────────

func (s *conciliacionService) GenerarQR(ctx context.Context, req dto.GenerarQRRequest) (*dto.GenerarQRResponse, error) {
	pagoID, err := uuid.Parse(req.PagoID)
	if err != nil {
		return nil, fmt.Errorf("pago_id inválido: %w", err)
	}

	pago, err := s.pagoRepo.FindByID(ctx, pagoID)
	if err != nil {
		return nil, errors.New("pago no encontrado")
	}
	if pago.EsTerminal() {
		return nil, ErrPagoProcesado
	}
	if !req.Monto.IsPositive() {
		return nil, errors.New("el monto debe ser mayor a cero")
	}
	if req.Monto.GreaterThan(pago.MontoPendiente().Add(model.Epsilon)) {
		return nil, ErrMontoExcedente
	}

	orden := pago.OrdenTrabajo
	if orden == nil {
		orden, err = s.ordenRepo.FindByID(ctx, pago.OrdenTrabajoID)
		if err != nil {
			return nil, errors.New("orden de trabajo no encontrada")
		}
	}

	ahora := time.Now()
	referencia := BuildReferenciaPago(pagoID, ahora)
	cargo := buildCargoQR(pago, orden, referencia, req)

	var generado *infra.QRGenerado
	err = s.cb.Execute(func() error {
		var gerr error
		generado, gerr = s.gateway.GenerarQR(ctx, cargo)
		return gerr
	})
	if err != nil {
		if errors.Is(err, infra.ErrCircuitOpen) {
			return nil, infra.ErrGatewayNoDisponible
		}
		return nil, err
	}

	var expiraEn *time.Time
	if generado.ExpirationDate != "" {
		if t, perr := time.Parse("2006-01-02 15:04:05", generado.ExpirationDate); perr == nil {
			expiraEn = &t
		}
	}

	trans := model.TransaccionQR{
		PagoID:        pagoID,
		TransactionID: generado.TransactionID,
		Referencia:    referencia,
		Monto:         req.Monto,
		Estado:        model.TransaccionPendiente,
		ExpiraEn:      expiraEn,
	}
	if err := s.txRepo.Create(ctx, &trans); err != nil {
		// The money side is safe: without the record neither confirmation
		// path can settle, and the charge expires on the provider side.
		log.Error().Err(err).Str("transaction_id", generado.TransactionID).
			Msg("no se pudo persistir la transaccion QR")
		return nil, err
	}

	log.Info().
		Str("pago_id", pagoID.String()).
		Str("transaction_id", generado.TransactionID).
		Str("referencia", referencia).
		Str("monto", req.Monto.StringFixed(2)).
		Msg("QR generado")

	resp := &dto.GenerarQRResponse{
		QRImage:       "data:image/png;base64," + generado.QRBase64,
		TransactionID: generado.TransactionID,
		NroPago:       referencia,
		PagoID:        pagoID.String(),
	}
	if expiraEn != nil {
		resp.ExpiraEn = expiraEn.Format("2006-01-02 15:04:05")
	}
	return resp, nil
}

// buildCargoQR describes the charge to the provider: labor and parts lines
// plus a client/vehicle line, with safe fallbacks for missing contact data.
func buildCargoQR(pago *model.Pago, orden *model.OrdenTrabajo, referencia string, req dto.GenerarQRRequest) infra.QRCargo {
	clientName := "Cliente Taller"
	phone := "0"
	email := "info@taller.com"
	if orden.Cliente != nil {
		if orden.Cliente.Nombre != "" {
			clientName = orden.Cliente.Nombre
		}
		if orden.Cliente.Telefono != nil && *orden.Cliente.Telefono != "" {
			phone = *orden.Cliente.Telefono
		}
		if orden.Cliente.Email != nil && *orden.Cliente.Email != "" {
			email = *orden.Cliente.Email
		}
	}

	manoObra, _ := orden.CostoManoObra.Round(2).Float64()
	repuestos, _ := orden.CostoRepuestos.Round(2).Float64()
	detalle := []infra.QRDetalleItem{
		{
			Serial:   1,
			Product:  fmt.Sprintf("Mano de obra - Orden %s", orden.Codigo),
			Quantity: 1,
			Price:    manoObra,
			Total:    manoObra,
		},
		{
			Serial:   2,
			Product:  fmt.Sprintf("Repuestos - Orden %s", orden.Codigo),
			Quantity: 1,
			Price:    repuestos,
			Total:    repuestos,
		},
		{
			Serial:   3,
			Product:  fmt.Sprintf("Cliente: %s - Vehiculo: %s %s (%s)", clientName, orden.VehiculoMarca, orden.VehiculoModelo, orden.VehiculoPlaca),
			Quantity: 1,
		},
	}

	return infra.QRCargo{
		ClientName:    clientName,
		DocumentType:  1,
		DocumentID:    "0",
		PhoneNumber:   phone,
		Email:         email,
		PaymentNumber: referencia,
		Monto:         req.Monto,
		ClientCode:    pago.Codigo,
		Detalle:       detalle,
	}
}

// ── ConsultarEstado ──────────────────────────────────────────────────────────

func (s *conciliacionService) ConsultarEstado(ctx context.Context, transactionID string) (*dto.ConsultarEstadoResponse, error) {
	trans, err := s.txRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, errors.New("transacción no encontrada")
	}

	var consulta *infra.ConsultaTransaccion
	err = s.cb.Execute(func() error {
		var gerr error
		consulta, gerr = s.gateway.ConsultarTransaccion(ctx, transactionID)
		return gerr
	})
	if err != nil {
		if errors.Is(err, infra.ErrCircuitOpen) {
			return nil, infra.ErrGatewayNoDisponible
		}
		return nil, err
	}

	switch consulta.Estado {
	case infra.TxCompletado:
		if err := s.onEstadoConfirmado(ctx, trans); err != nil {
			return nil, err
		}
	case infra.TxRechazado:
		if trans.Estado == model.TransaccionPendiente {
			if err := s.txRepo.UpdateEstadoTx(s.pagoRepo.DB(), trans.ID, model.TransaccionRechazada); err != nil {
				return nil, err
			}
		}
	}

	pago, err := s.pagoRepo.FindByID(ctx, trans.PagoID)
	if err != nil {
		return nil, err
	}

	return &dto.ConsultarEstadoResponse{
		TransactionID: transactionID,
		Estado:        string(consulta.Estado),
		PagoID:        trans.PagoID.String(),
		PagoEstado:    pago.Estado,
		PaymentDate:   consulta.PaymentDate,
		PaymentTime:   consulta.PaymentTime,
	}, nil
}

// ── ProcesarCallback ─────────────────────────────────────────────────────────

func (s *conciliacionService) ProcesarCallback(ctx context.Context, req dto.CallbackRequest) *dto.CallbackResponse {
	if req.PedidoID == "" {
		return callbackError("PedidoID requerido")
	}

	trans, err := s.txRepo.FindByReferencia(ctx, req.PedidoID)
	if err != nil {
		// Some provider environments send the transaction ID instead of the
		// paymentNumber; try that before giving up.
		trans, err = s.txRepo.FindByTransactionID(ctx, req.PedidoID)
	}
	if err != nil {
		// Last resort: the reference embeds the pago ID, so a pedido that
		// matches no stored row can still correlate through a pending
		// transaction of that pago.
		if pagoID, perr := ParseReferenciaPago(req.PedidoID); perr == nil {
			trans, err = s.txRepo.FindPendienteByPago(ctx, pagoID)
		}
		if err != nil {
			log.Warn().Str("pedido_id", req.PedidoID).Msg("callback sin transaccion correlacionada")
			return callbackError("transaccion desconocida")
		}
	}

	estado := infra.NormalizarEstado(req.Estado)
	log.Info().
		Str("pedido_id", req.PedidoID).
		Str("estado_crudo", req.Estado).
		Str("estado", string(estado)).
		Str("fecha", req.Fecha).
		Str("hora", req.Hora).
		Msg("callback recibido")

	switch estado {
	case infra.TxCompletado:
		if err := s.onEstadoConfirmado(ctx, trans); err != nil {
			log.Error().Err(err).Str("pedido_id", req.PedidoID).Msg("callback no procesado")
			return callbackError("no se pudo registrar el pago")
		}
	case infra.TxRechazado:
		if trans.Estado == model.TransaccionPendiente {
			if err := s.txRepo.UpdateEstadoTx(s.pagoRepo.DB(), trans.ID, model.TransaccionRechazada); err != nil {
				return callbackError("no se pudo actualizar la transaccion")
			}
		}
	default:
		// pendiente: acknowledge, nothing to settle yet.
	}

	return &dto.CallbackResponse{Error: 0, Status: 1, Message: "procesado", Values: true}
}

func callbackError(msg string) *dto.CallbackResponse {
	return &dto.CallbackResponse{Error: 1, Status: 0, Message: msg, Values: false}
}

// onEstadoConfirmado settles a confirmed charge exactly once. The amount
// comes from the stored TransaccionQR, never from the gateway payload. A
// duplicate confirmation surfaces as ErrConflictoConciliacion and is treated
// as success.
func (s *conciliacionService) onEstadoConfirmado(ctx context.Context, trans *model.TransaccionQR) error {
	banco := "PagoFacil"
	referencia := trans.TransactionID
	_, err := s.pagoSvc.RegistrarPago(ctx, trans.PagoID, dto.RegistrarPagoRequest{
		Monto:      trans.Monto,
		MetodoPago: model.MetodoQR,
		Banco:      &banco,
		Referencia: &referencia,
	})
	if err != nil && !errors.Is(err, ErrConflictoConciliacion) {
		if errors.Is(err, ErrPagoProcesado) {
			// The pago settled through the other channel first.
			log.Info().Str("transaction_id", trans.TransactionID).Msg("pago ya saldado, confirmacion ignorada")
		} else {
			return err
		}
	}

	if trans.Estado != model.TransaccionConfirmada {
		if err := s.txRepo.UpdateEstadoTx(s.pagoRepo.DB(), trans.ID, model.TransaccionConfirmada); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
	}

	log.Info().
		Str("pago_id", trans.PagoID.String()).
		Str("transaction_id", trans.TransactionID).
		Str("monto", trans.Monto.StringFixed(2)).
		Msg("transaccion QR conciliada")
	return nil
}
