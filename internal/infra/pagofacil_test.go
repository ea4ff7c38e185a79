package infra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizarEstado(t *testing.T) {
	cases := []struct {
		raw  interface{}
		want EstadoTransaccion
	}{
		{5, TxCompletado},
		{"5", TxCompletado},
		{float64(5), TxCompletado},
		{json.Number("5"), TxCompletado},
		{"COMPLETADO", TxCompletado},
		{" pagado ", TxCompletado},
		{3, TxRechazado},
		{"rechazado", TxRechazado},
		{"Cancelado", TxRechazado},
		{1, TxPendiente},
		{"2", TxPendiente},
		{"en proceso", TxPendiente},
		{nil, TxPendiente},
		{"99", TxPendiente}, // unknown codes never settle
		{[]string{"5"}, TxPendiente},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizarEstado(c.raw), "raw=%v", c.raw)
	}
}

func loginOK(w http.ResponseWriter) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": 0,
		"values": map[string]interface{}{
			"accessToken": "tok-abc", "expiresInMinutes": 30,
		},
	})
}

func TestAuthenticate_CacheaElToken(t *testing.T) {
	logins := 0
	var gotService, gotSecret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login", r.URL.Path)
		logins++
		gotService = r.Header.Get("tcTokenService")
		gotSecret = r.Header.Get("tcTokenSecret")
		loginOK(w)
	}))
	defer srv.Close()

	c := NewPagoFacilClient(srv.URL, "svc-1", "sec-1", "http://cb", NewMemoryTokenCache())
	ctx := context.Background()

	tok, err := c.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok)
	assert.Equal(t, "svc-1", gotService)
	assert.Equal(t, "sec-1", gotSecret)

	_, err = c.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, logins) // second call served from cache
}

func TestGenerarQR_ContratoDeWire(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			loginOK(w)
		case "/generate-qr":
			require.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": 0,
				"values": map[string]interface{}{
					"qrBase64": "UVI=", "transactionId": 445566,
					"expirationDate": "2026-09-01 18:00:00",
				},
			})
		}
	}))
	defer srv.Close()

	c := NewPagoFacilClient(srv.URL, "svc", "sec", "http://taller/api/pagos/callback", NewMemoryTokenCache())
	qr, err := c.GenerarQR(context.Background(), QRCargo{
		ClientName:    "Juan Perez",
		DocumentType:  1,
		DocumentID:    "0",
		PhoneNumber:   "70000000",
		Email:         "juan@example.com",
		PaymentNumber: "TAL-x-1",
		Monto:         decimal.RequireFromString("150.50"),
		ClientCode:    "PAG-20260901-0001",
		Detalle: []QRDetalleItem{
			{Serial: 1, Product: "Mano de obra", Quantity: 1, Price: 150.50, Total: 150.50},
		},
	})
	require.NoError(t, err)

	// normalized result: numeric transactionId comes back as string
	assert.Equal(t, "445566", qr.TransactionID)
	assert.Equal(t, "UVI=", qr.QRBase64)

	// provider contract, field for field
	assert.Equal(t, float64(4), body["paymentMethod"])
	assert.Equal(t, float64(2), body["currency"])
	assert.Equal(t, "TAL-x-1", body["paymentNumber"])
	assert.Equal(t, 150.50, body["amount"])
	assert.Equal(t, "http://taller/api/pagos/callback", body["callbackUrl"])
	detalle := body["orderDetail"].([]interface{})
	require.Len(t, detalle, 1)
	linea := detalle[0].(map[string]interface{})
	assert.Equal(t, "Mano de obra", linea["product"])
	assert.Equal(t, float64(1), linea["serial"])
}

func TestConsultarTransaccion_EnviaTransactionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			loginOK(w)
		case "/query-transaction":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "778899", body["pagofacilTransactionId"])
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": 0,
				"values": map[string]interface{}{
					"paymentStatus": "5", "paymentDate": "2026-09-01", "paymentTime": "12:00:00",
				},
			})
		}
	}))
	defer srv.Close()

	c := NewPagoFacilClient(srv.URL, "svc", "sec", "http://cb", NewMemoryTokenCache())
	res, err := c.ConsultarTransaccion(context.Background(), "778899")
	require.NoError(t, err)
	assert.Equal(t, TxCompletado, res.Estado)
	assert.Equal(t, "2026-09-01", res.PaymentDate)
}

func TestPostJSON_ErroresDelProveedor(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			loginOK(w)
			return
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewPagoFacilClient(srv.URL, "svc", "sec", "http://cb", NewMemoryTokenCache())
	ctx := context.Background()

	_, err := c.ConsultarTransaccion(ctx, "1")
	assert.ErrorIs(t, err, ErrGatewayNoDisponible)

	status = http.StatusUnprocessableEntity
	_, err = c.ConsultarTransaccion(ctx, "1")
	assert.ErrorIs(t, err, ErrGatewayRechazado)
}

func TestGenerarQR_MontoInvalido(t *testing.T) {
	c := NewPagoFacilClient("http://localhost:1", "svc", "sec", "http://cb", NewMemoryTokenCache())
	_, err := c.GenerarQR(context.Background(), QRCargo{Monto: decimal.Zero})
	assert.ErrorIs(t, err, ErrGatewayRechazado)
}
