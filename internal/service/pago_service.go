package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tallerpagos/internal/dto"
	"tallerpagos/internal/model"
	"tallerpagos/internal/repository"
	"tallerpagos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type PagoService interface {
	Crear(ctx context.Context, req dto.CrearPagoRequest) (*dto.PagoResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.PagoResponse, error)
	ObtenerPorCodigo(ctx context.Context, codigo string) (*dto.PagoResponse, error)
	Listar(ctx context.Context, filter dto.PagoFilter) (*dto.PagoListResponse, error)
	// RegistrarPago is the only sanctioned mutation path once any detalle
	// exists: it appends the detalle and recomputes the ledger atomically.
	RegistrarPago(ctx context.Context, pagoID uuid.UUID, req dto.RegistrarPagoRequest) (*dto.PagoResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarPagoRequest) (*dto.PagoResponse, error)
	Cancelar(ctx context.Context, id uuid.UUID, motivo string) error
	// MarcarVencidos is the administrative sweep: pendiente/pagado_parcial
	// pagos whose due date passed transition to vencido.
	MarcarVencidos(ctx context.Context) (int, error)
	Estadisticas(ctx context.Context) (*dto.EstadisticasPagos, error)
}

type pagoService struct {
	repo        repository.PagoRepository
	detalleRepo repository.PagoDetalleRepository
	ordenRepo   repository.OrdenTrabajoRepository
	usuarioRepo repository.UsuarioRepository
	dispatcher  *worker.Dispatcher
}

func NewPagoService(
	repo repository.PagoRepository,
	detalleRepo repository.PagoDetalleRepository,
	ordenRepo repository.OrdenTrabajoRepository,
	usuarioRepo repository.UsuarioRepository,
	dispatcher *worker.Dispatcher,
) PagoService {
	return &pagoService{
		repo:        repo,
		detalleRepo: detalleRepo,
		ordenRepo:   ordenRepo,
		usuarioRepo: usuarioRepo,
		dispatcher:  dispatcher,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

const vencidosBatchSize = 100

// ── Crear ─────────────────────────────────────────────────────────────────────
// Opens the ledger for a completed work order. MontoTotal is fixed here and
// never changes afterwards.

func (s *pagoService) Crear(ctx context.Context, req dto.CrearPagoRequest) (*dto.PagoResponse, error) {
	ordenID, err := uuid.Parse(req.OrdenTrabajoID)
	if err != nil {
		return nil, fmt.Errorf("orden_trabajo_id inválido: %w", err)
	}

	orden, err := s.ordenRepo.FindByID(ctx, ordenID)
	if err != nil {
		return nil, errors.New("orden de trabajo no encontrada")
	}
	if !orden.EstaCompletada() {
		return nil, ErrOrdenNoCompletada
	}

	existe, err := s.repo.ExisteActivoPorOrden(ctx, ordenID)
	if err != nil {
		return nil, err
	}
	if existe {
		return nil, ErrPagoDuplicado
	}

	numeroCuotas := 1
	var fechaVencimiento *time.Time
	if req.TipoPago == model.TipoCredito {
		if req.NumeroCuotas < 2 {
			return nil, errors.New("un pago a crédito requiere al menos 2 cuotas")
		}
		if req.FechaVencimiento == nil {
			return nil, errors.New("un pago a crédito requiere fecha de vencimiento")
		}
		f, err := time.Parse("2006-01-02", *req.FechaVencimiento)
		if err != nil {
			return nil, fmt.Errorf("fecha_vencimiento inválida: %w", err)
		}
		if !f.After(time.Now()) {
			return nil, errors.New("la fecha de vencimiento debe ser posterior a hoy")
		}
		numeroCuotas = req.NumeroCuotas
		fechaVencimiento = &f
	}

	var pago model.Pago
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		ahora := time.Now()
		seq, err := s.repo.NextCodigoSeq(ctx, txOr(tx, s.repo.DB()), ahora)
		if err != nil {
			return err
		}

		pago = model.Pago{
			Codigo:           fmt.Sprintf("PAG-%s-%04d", ahora.Format("20060102"), seq),
			OrdenTrabajoID:   ordenID,
			MontoTotal:       orden.Subtotal,
			TipoPago:         req.TipoPago,
			NumeroCuotas:     numeroCuotas,
			Estado:           model.PagoPendiente,
			FechaVencimiento: fechaVencimiento,
			Observaciones:    req.Observaciones,
		}
		return s.repo.Create(ctx, txOr(tx, s.repo.DB()), &pago)
	})
	if txErr != nil {
		return nil, txErr
	}

	pago.OrdenTrabajo = orden
	return pagoToResponse(&pago, false), nil
}

// txOr returns tx when inside a real transaction, otherwise fallback
// (nil fallback only occurs in unit test mode, where repos ignore the DB).
func txOr(tx, fallback *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return fallback
}

// ── RegistrarPago ─────────────────────────────────────────────────────────────
// Single atomic transaction: lock the aggregate, reject over-payment, detect
// duplicate gateway references, append the detalle, recompute the ledger,
// settle the orden when fully paid. Any failure rolls back everything.

func (s *pagoService) RegistrarPago(ctx context.Context, pagoID uuid.UUID, req dto.RegistrarPagoRequest) (*dto.PagoResponse, error) {
	if !req.Monto.IsPositive() {
		return nil, errors.New("el monto debe ser mayor a cero")
	}
	if !model.MetodoPagoValido(req.MetodoPago) {
		return nil, fmt.Errorf("método de pago no soportado: %s", req.MetodoPago)
	}

	var recibidoPor *uuid.UUID
	if req.RecibidoPor != nil {
		uid, err := uuid.Parse(*req.RecibidoPor)
		if err != nil {
			return nil, fmt.Errorf("recibido_por inválido: %w", err)
		}
		receptor, err := s.usuarioRepo.FindByID(ctx, uid)
		if err != nil {
			return nil, errors.New("el usuario receptor no existe")
		}
		if !receptor.Tipo.EsPersonal() || !receptor.Activo {
			return nil, errors.New("el usuario receptor no es personal del taller")
		}
		recibidoPor = &uid
	}

	var detalle model.PagoDetalle
	var pago *model.Pago
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		db := txOr(tx, s.repo.DB())

		var err error
		pago, err = s.repo.FindByIDForUpdate(db, pagoID)
		if err != nil {
			return errors.New("pago no encontrado")
		}
		if pago.EsTerminal() {
			return ErrPagoProcesado
		}
		if req.Monto.GreaterThan(pago.MontoPendiente().Add(model.Epsilon)) {
			return ErrMontoExcedente
		}

		// Duplicate gateway confirmation: one detalle per transaction ID.
		if req.Referencia != nil && *req.Referencia != "" {
			if _, err := s.detalleRepo.FindByReferencia(ctx, db, *req.Referencia); err == nil {
				return ErrConflictoConciliacion
			}
		}

		ahora := time.Now()

		numeroComprobante := ""
		if req.NumeroComprobante != nil && *req.NumeroComprobante != "" {
			numeroComprobante = *req.NumeroComprobante
		} else {
			seq, err := s.detalleRepo.NextComprobanteSeq(db, req.MetodoPago, ahora)
			if err != nil {
				return err
			}
			numeroComprobante = model.NumeroComprobanteAuto(req.MetodoPago, ahora, seq)
		}

		existentes, err := s.detalleRepo.CountByPagoTx(db, pagoID)
		if err != nil {
			return err
		}

		detalle = model.PagoDetalle{
			PagoID:            pagoID,
			NumeroCuota:       int(existentes) + 1,
			Monto:             req.Monto,
			MetodoPago:        req.MetodoPago,
			NumeroComprobante: numeroComprobante,
			Banco:             req.Banco,
			Referencia:        req.Referencia,
			RecibidoPor:       recibidoPor,
			FechaPago:         ahora,
			HoraPago:          ahora.Format("15:04:05"),
			Observaciones:     req.Observaciones,
		}
		if err := s.detalleRepo.CreateTx(db, &detalle); err != nil {
			// The partial unique index catches the race the existence check
			// cannot: two confirmations inserting the same reference at once.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflictoConciliacion
			}
			return err
		}

		// Recompute the aggregate.
		pago.MontoPagado = pago.MontoPagado.Add(req.Monto)
		pago.CuotasPagadas++
		if pago.CuotasPagadas > pago.NumeroCuotas {
			pago.CuotasPagadas = pago.NumeroCuotas
		}
		if pago.EstaSaldado() {
			pago.Estado = model.PagoTotal
		} else {
			pago.Estado = model.PagoParcial
		}
		if err := s.repo.UpdateTx(db, pago); err != nil {
			return err
		}

		// Fully settled: hand the vehicle back.
		if pago.Estado == model.PagoTotal {
			orden, err := s.ordenRepo.FindByID(ctx, pago.OrdenTrabajoID)
			if err == nil && orden.EstaCompletada() {
				if err := s.ordenRepo.UpdateEstadoTx(db, orden.ID, "entregada"); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("pago_id", pagoID.String()).
		Str("comprobante", detalle.NumeroComprobante).
		Str("metodo", detalle.MetodoPago).
		Str("monto", detalle.Monto.StringFixed(2)).
		Str("estado", pago.Estado).
		Msg("abono registrado")

	// Async receipt (PDF + email) — best-effort, fire & forget.
	if s.dispatcher != nil {
		_ = s.dispatcher.EnqueueRecibo(ctx, worker.ReciboPayload{
			PagoID:    pagoID.String(),
			DetalleID: detalle.ID.String(),
		})
	}

	pago.Detalles = append(pago.Detalles, detalle)
	return pagoToResponse(pago, false), nil
}

// ── Actualizar ────────────────────────────────────────────────────────────────
// Schedule/type edits are only safe before any detalle exists; afterwards the
// recorded cuota numbers and amounts would no longer match the plan.

func (s *pagoService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarPagoRequest) (*dto.PagoResponse, error) {
	pago, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.New("pago no encontrado")
	}
	if pago.Estado != model.PagoPendiente || len(pago.Detalles) > 0 {
		return nil, errors.New("no se puede modificar un pago con abonos registrados")
	}

	numeroCuotas := 1
	var fechaVencimiento *time.Time
	if req.TipoPago == model.TipoCredito {
		if req.NumeroCuotas < 2 {
			return nil, errors.New("un pago a crédito requiere al menos 2 cuotas")
		}
		if req.FechaVencimiento == nil {
			return nil, errors.New("un pago a crédito requiere fecha de vencimiento")
		}
		f, err := time.Parse("2006-01-02", *req.FechaVencimiento)
		if err != nil {
			return nil, fmt.Errorf("fecha_vencimiento inválida: %w", err)
		}
		numeroCuotas = req.NumeroCuotas
		fechaVencimiento = &f
	}

	pago.TipoPago = req.TipoPago
	pago.NumeroCuotas = numeroCuotas
	pago.FechaVencimiento = fechaVencimiento
	pago.Observaciones = req.Observaciones

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.UpdateTx(txOr(tx, s.repo.DB()), pago)
	})
	if txErr != nil {
		return nil, txErr
	}
	return pagoToResponse(pago, false), nil
}

// ── Cancelar ──────────────────────────────────────────────────────────────────

func (s *pagoService) Cancelar(ctx context.Context, id uuid.UUID, motivo string) error {
	pago, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return errors.New("pago no encontrado")
	}
	if pago.EsTerminal() {
		return ErrPagoProcesado
	}

	log.Info().Str("pago_id", id.String()).Str("motivo", motivo).Msg("pago cancelado")
	return s.repo.UpdateEstado(ctx, id, model.PagoCancelado)
}

// ── MarcarVencidos ────────────────────────────────────────────────────────────

func (s *pagoService) MarcarVencidos(ctx context.Context) (int, error) {
	vencibles, err := s.repo.ListVencibles(ctx, time.Now(), vencidosBatchSize)
	if err != nil {
		return 0, err
	}

	marcados := 0
	for i := range vencibles {
		p := &vencibles[i]
		if err := s.repo.UpdateEstado(ctx, p.ID, model.PagoVencido); err != nil {
			log.Error().Err(err).Str("pago_id", p.ID.String()).Msg("no se pudo marcar vencido")
			continue
		}
		marcados++
	}
	return marcados, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *pagoService) Obtener(ctx context.Context, id uuid.UUID) (*dto.PagoResponse, error) {
	pago, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.New("pago no encontrado")
	}
	return pagoToResponse(pago, true), nil
}

func (s *pagoService) ObtenerPorCodigo(ctx context.Context, codigo string) (*dto.PagoResponse, error) {
	pago, err := s.repo.FindByCodigo(ctx, codigo)
	if err != nil {
		return nil, errors.New("pago no encontrado")
	}
	return pagoToResponse(pago, true), nil
}

func (s *pagoService) Listar(ctx context.Context, filter dto.PagoFilter) (*dto.PagoListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 15
	}
	pagos, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PagoResponse, 0, len(pagos))
	for i := range pagos {
		items = append(items, *pagoToResponse(&pagos[i], false))
	}
	return &dto.PagoListResponse{
		Data:  items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *pagoService) Estadisticas(ctx context.Context) (*dto.EstadisticasPagos, error) {
	return s.repo.Estadisticas(ctx)
}

// ── Mapping ───────────────────────────────────────────────────────────────────

func pagoToResponse(p *model.Pago, conPlan bool) *dto.PagoResponse {
	detalles := make([]dto.PagoDetalleResponse, 0, len(p.Detalles))
	for i := range p.Detalles {
		d := &p.Detalles[i]
		receptor := ""
		if d.Receptor != nil {
			receptor = d.Receptor.Nombre
		}
		detalles = append(detalles, dto.PagoDetalleResponse{
			NumeroCuota:       d.NumeroCuota,
			Monto:             d.Monto,
			MetodoPago:        d.MetodoPago,
			NumeroComprobante: d.NumeroComprobante,
			Banco:             d.Banco,
			Referencia:        d.Referencia,
			RecibidoPor:       receptor,
			FechaPago:         d.FechaPago.Format("2006-01-02"),
			HoraPago:          d.HoraPago,
		})
	}

	resp := &dto.PagoResponse{
		ID:               p.ID.String(),
		Codigo:           p.Codigo,
		OrdenTrabajoID:   p.OrdenTrabajoID.String(),
		MontoTotal:       p.MontoTotal,
		MontoPagado:      p.MontoPagado,
		MontoPendiente:   p.MontoPendiente(),
		PorcentajePagado: p.PorcentajePagado(),
		TipoPago:         p.TipoPago,
		NumeroCuotas:     p.NumeroCuotas,
		CuotasPagadas:    p.CuotasPagadas,
		Estado:           p.Estado,
		Observaciones:    p.Observaciones,
		Detalles:         detalles,
		CreatedAt:        p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.FechaVencimiento != nil {
		f := p.FechaVencimiento.Format("2006-01-02")
		resp.FechaVencimiento = &f
	}
	if p.OrdenTrabajo != nil {
		resp.OrdenCodigo = p.OrdenTrabajo.Codigo
		if p.OrdenTrabajo.Cliente != nil {
			resp.Cliente = p.OrdenTrabajo.Cliente.Nombre
		}
	}
	if conPlan {
		resp.PlanPagos = p.GenerarPlanPagos()
	}
	return resp
}
