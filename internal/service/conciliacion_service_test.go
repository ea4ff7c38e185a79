package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tallerpagos/internal/dto"
	"tallerpagos/internal/infra"
	"tallerpagos/internal/model"
	"tallerpagos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubTransaccionRepo struct {
	transacciones map[uuid.UUID]*model.TransaccionQR
}

func newStubTransaccionRepo() *stubTransaccionRepo {
	return &stubTransaccionRepo{transacciones: make(map[uuid.UUID]*model.TransaccionQR)}
}

func (r *stubTransaccionRepo) Create(_ context.Context, tr *model.TransaccionQR) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	r.transacciones[tr.ID] = tr
	return nil
}

func (r *stubTransaccionRepo) FindByTransactionID(_ context.Context, transactionID string) (*model.TransaccionQR, error) {
	for _, tr := range r.transacciones {
		if tr.TransactionID == transactionID {
			return tr, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubTransaccionRepo) FindByReferencia(_ context.Context, referencia string) (*model.TransaccionQR, error) {
	for _, tr := range r.transacciones {
		if tr.Referencia == referencia {
			return tr, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubTransaccionRepo) FindPendienteByPago(_ context.Context, pagoID uuid.UUID) (*model.TransaccionQR, error) {
	var ultima *model.TransaccionQR
	for _, tr := range r.transacciones {
		if tr.PagoID == pagoID && tr.Estado == model.TransaccionPendiente {
			if ultima == nil || tr.CreatedAt.After(ultima.CreatedAt) {
				ultima = tr
			}
		}
	}
	if ultima == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return ultima, nil
}

func (r *stubTransaccionRepo) UpdateEstadoTx(_ *gorm.DB, id uuid.UUID, estado string) error {
	tr, ok := r.transacciones[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	tr.Estado = estado
	return nil
}

var _ repository.TransaccionQRRepository = (*stubTransaccionRepo)(nil)

// fakeGateway is an httptest PagoFácil with a programmable transaction state.
type fakeGateway struct {
	srv           *httptest.Server
	paymentStatus interface{}
	transactionID string
	qrRequests    int
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{paymentStatus: 1, transactionID: "900123"}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": 0, "message": "ok",
			"values": map[string]interface{}{"accessToken": "tok-1", "expiresInMinutes": 60},
		})
	})
	mux.HandleFunc("/generate-qr", func(w http.ResponseWriter, r *http.Request) {
		g.qrRequests++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": 0, "message": "ok",
			"values": map[string]interface{}{
				"qrBase64":       "aW1hZ2Vu",
				"transactionId":  g.transactionID,
				"expirationDate": time.Now().Add(15 * time.Minute).Format("2006-01-02 15:04:05"),
			},
		})
	})
	mux.HandleFunc("/query-transaction", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": 0, "message": "ok",
			"values": map[string]interface{}{
				"paymentStatus": g.paymentStatus,
				"paymentDate":   "2026-09-01",
				"paymentTime":   "10:30:00",
			},
		})
	})
	g.srv = httptest.NewServer(mux)
	t.Cleanup(g.srv.Close)
	return g
}

type conciliacionFixture struct {
	*pagoFixture
	svc     ConciliacionService
	txRepo  *stubTransaccionRepo
	gateway *fakeGateway
}

func newConciliacionFixture(t *testing.T, subtotal string) *conciliacionFixture {
	t.Helper()
	pf := newPagoFixture(t, subtotal)
	gw := newFakeGateway(t)
	txRepo := newStubTransaccionRepo()

	client := infra.NewPagoFacilClient(
		gw.srv.URL, "svc-token", "svc-secret",
		"http://taller.local/api/pagos/callback",
		infra.NewMemoryTokenCache())
	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	svc := NewConciliacionService(pf.pagoRepo, txRepo, pf.ordenRepo, pf.svc, client, cb)
	return &conciliacionFixture{pagoFixture: pf, svc: svc, txRepo: txRepo, gateway: gw}
}

// ── Reference format ──────────────────────────────────────────────────────────

func TestReferenciaPago_RoundTrip(t *testing.T) {
	id := uuid.New()
	ref := BuildReferenciaPago(id, time.Now())

	parsed, err := ParseReferenciaPago(ref)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseReferenciaPago_FormatoDesconocido(t *testing.T) {
	for _, ref := range []string{"", "PEDIDO-9", "TAL-123", "OTRO-" + uuid.NewString() + "-1"} {
		_, err := ParseReferenciaPago(ref)
		assert.Error(t, err, ref)
	}
}

// ── GenerarQR ─────────────────────────────────────────────────────────────────

func TestGenerarQR_PersisteTransaccionEnVuelo(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")
	pago := f.crearContado(t)

	resp, err := f.svc.GenerarQR(context.Background(), dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("400.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "data:image/png;base64,aW1hZ2Vu", resp.QRImage)
	assert.Equal(t, "900123", resp.TransactionID)

	trans, err := f.txRepo.FindByTransactionID(context.Background(), "900123")
	require.NoError(t, err)
	assert.True(t, trans.Monto.Equal(decimal.RequireFromString("400.00")))
	assert.Equal(t, model.TransaccionPendiente, trans.Estado)
	assert.Equal(t, resp.NroPago, trans.Referencia)

	parsed, err := ParseReferenciaPago(trans.Referencia)
	require.NoError(t, err)
	assert.Equal(t, pago.ID, parsed.String())
}

func TestGenerarQR_MontoMayorAlPendiente(t *testing.T) {
	f := newConciliacionFixture(t, "300.00")
	pago := f.crearContado(t)

	_, err := f.svc.GenerarQR(context.Background(), dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("500.00"),
	})
	assert.ErrorIs(t, err, ErrMontoExcedente)
	assert.Zero(t, f.gateway.qrRequests)
}

func TestGenerarQR_PagoSaldado(t *testing.T) {
	f := newConciliacionFixture(t, "200.00")
	pago := f.crearContado(t)
	id := uuid.MustParse(pago.ID)

	_, err := f.pagoFixture.svc.RegistrarPago(context.Background(), id, abono("200.00"))
	require.NoError(t, err)

	_, err = f.svc.GenerarQR(context.Background(), dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("50.00"),
	})
	assert.ErrorIs(t, err, ErrPagoProcesado)
}

// ── ConsultarEstado ───────────────────────────────────────────────────────────

func TestConsultarEstado_CompletadoRegistraAbono(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")
	pago := f.crearContado(t)
	ctx := context.Background()

	_, err := f.svc.GenerarQR(ctx, dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("400.00"),
	})
	require.NoError(t, err)

	f.gateway.paymentStatus = 5
	resp, err := f.svc.ConsultarEstado(ctx, "900123")
	require.NoError(t, err)
	assert.Equal(t, "completado", resp.Estado)
	assert.Equal(t, model.PagoParcial, resp.PagoEstado)

	detalles := f.detalleRepo.porPago(uuid.MustParse(pago.ID))
	require.Len(t, detalles, 1)
	assert.Equal(t, model.MetodoQR, detalles[0].MetodoPago)
	require.NotNil(t, detalles[0].Referencia)
	assert.Equal(t, "900123", *detalles[0].Referencia)
}

func TestConsultarEstado_DobleConfirmacionIdempotente(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")
	pago := f.crearContado(t)
	ctx := context.Background()

	_, err := f.svc.GenerarQR(ctx, dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("400.00"),
	})
	require.NoError(t, err)

	f.gateway.paymentStatus = "5"
	_, err = f.svc.ConsultarEstado(ctx, "900123")
	require.NoError(t, err)
	_, err = f.svc.ConsultarEstado(ctx, "900123")
	require.NoError(t, err)

	// one confirmation, one detalle — no matter how many polls
	assert.Len(t, f.detalleRepo.porPago(uuid.MustParse(pago.ID)), 1)

	guardado, err := f.pagoFixture.svc.Obtener(ctx, uuid.MustParse(pago.ID))
	require.NoError(t, err)
	assert.True(t, guardado.MontoPagado.Equal(decimal.RequireFromString("400.00")))
}

func TestConsultarEstado_RechazadoNoRegistra(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")
	pago := f.crearContado(t)
	ctx := context.Background()

	_, err := f.svc.GenerarQR(ctx, dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("400.00"),
	})
	require.NoError(t, err)

	f.gateway.paymentStatus = 3
	resp, err := f.svc.ConsultarEstado(ctx, "900123")
	require.NoError(t, err)
	assert.Equal(t, "rechazado", resp.Estado)
	assert.Empty(t, f.detalleRepo.porPago(uuid.MustParse(pago.ID)))

	trans, _ := f.txRepo.FindByTransactionID(ctx, "900123")
	assert.Equal(t, model.TransaccionRechazada, trans.Estado)
}

// ── ProcesarCallback ──────────────────────────────────────────────────────────

func TestProcesarCallback_Confirmado(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")
	pago := f.crearContado(t)
	ctx := context.Background()

	qr, err := f.svc.GenerarQR(ctx, dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("600.00"),
	})
	require.NoError(t, err)

	ack := f.svc.ProcesarCallback(ctx, dto.CallbackRequest{
		PedidoID: qr.NroPago,
		Estado:   "5",
		Fecha:    "2026-09-01",
		Hora:     "10:30:00",
	})
	assert.Equal(t, 0, ack.Error)
	assert.Equal(t, 1, ack.Status)
	assert.True(t, ack.Values)

	guardado, err := f.pagoFixture.svc.Obtener(ctx, uuid.MustParse(pago.ID))
	require.NoError(t, err)
	assert.True(t, guardado.MontoPagado.Equal(decimal.RequireFromString("600.00")))
	assert.Equal(t, model.PagoParcial, guardado.Estado)
}

func TestProcesarCallback_DuplicadoEsExito(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")
	pago := f.crearContado(t)
	ctx := context.Background()

	qr, err := f.svc.GenerarQR(ctx, dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("600.00"),
	})
	require.NoError(t, err)

	cb := dto.CallbackRequest{PedidoID: qr.NroPago, Estado: "completado"}
	ack1 := f.svc.ProcesarCallback(ctx, cb)
	ack2 := f.svc.ProcesarCallback(ctx, cb)

	assert.Equal(t, 0, ack1.Error)
	assert.Equal(t, 0, ack2.Error)
	assert.Len(t, f.detalleRepo.porPago(uuid.MustParse(pago.ID)), 1)
}

func TestProcesarCallback_ResuelvePorReferenciaEmbebida(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")
	pago := f.crearContado(t)
	ctx := context.Background()

	_, err := f.svc.GenerarQR(ctx, dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("600.00"),
	})
	require.NoError(t, err)

	// El gateway devuelve un paymentNumber reconstruido con otro timestamp:
	// no coincide con la referencia guardada, pero el pago ID embebido
	// permite resolver la transaccion pendiente.
	otraRef := BuildReferenciaPago(uuid.MustParse(pago.ID), time.Now().Add(time.Minute))
	ack := f.svc.ProcesarCallback(ctx, dto.CallbackRequest{
		PedidoID: otraRef,
		Estado:   "5",
	})
	assert.Equal(t, 0, ack.Error)
	assert.Equal(t, 1, ack.Status)

	guardado, err := f.pagoFixture.svc.Obtener(ctx, uuid.MustParse(pago.ID))
	require.NoError(t, err)
	assert.True(t, guardado.MontoPagado.Equal(decimal.RequireFromString("600.00")))
}

func TestProcesarCallback_PollYCallbackUnSoloDetalle(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")
	pago := f.crearContado(t)
	ctx := context.Background()

	qr, err := f.svc.GenerarQR(ctx, dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("400.00"),
	})
	require.NoError(t, err)

	f.gateway.paymentStatus = 5
	_, err = f.svc.ConsultarEstado(ctx, qr.TransactionID)
	require.NoError(t, err)

	ack := f.svc.ProcesarCallback(ctx, dto.CallbackRequest{PedidoID: qr.NroPago, Estado: "5"})
	assert.Equal(t, 0, ack.Error)

	assert.Len(t, f.detalleRepo.porPago(uuid.MustParse(pago.ID)), 1)
}

func TestProcesarCallback_TransaccionDesconocida(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")

	ack := f.svc.ProcesarCallback(context.Background(), dto.CallbackRequest{
		PedidoID: "TAL-" + uuid.NewString() + "-1756710000",
		Estado:   "5",
	})
	assert.Equal(t, 1, ack.Error)
	assert.Equal(t, 0, ack.Status)
	assert.False(t, ack.Values)
}

func TestProcesarCallback_PendienteSoloAcusa(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")
	pago := f.crearContado(t)
	ctx := context.Background()

	qr, err := f.svc.GenerarQR(ctx, dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("400.00"),
	})
	require.NoError(t, err)

	ack := f.svc.ProcesarCallback(ctx, dto.CallbackRequest{PedidoID: qr.NroPago, Estado: "1"})
	assert.Equal(t, 0, ack.Error)
	assert.Empty(t, f.detalleRepo.porPago(uuid.MustParse(pago.ID)))
}

// ── Gateway down ──────────────────────────────────────────────────────────────

func TestGenerarQR_GatewayCaido(t *testing.T) {
	f := newConciliacionFixture(t, "1000.00")
	pago := f.crearContado(t)
	f.gateway.srv.Close()

	_, err := f.svc.GenerarQR(context.Background(), dto.GenerarQRRequest{
		PagoID: pago.ID,
		Monto:  decimal.RequireFromString("400.00"),
	})
	assert.True(t, errors.Is(err, infra.ErrGatewayNoDisponible))
}
