package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Gateway failure taxonomy. Callers branch with errors.Is:
// ErrGatewayNoDisponible is retryable (network, timeout, 5xx);
// ErrGatewayRechazado is not — the request itself was refused.
var (
	ErrGatewayNoDisponible = errors.New("pagofacil no disponible")
	ErrGatewayRechazado    = errors.New("pagofacil rechazo la solicitud")
)

// EstadoTransaccion is the normalized transaction status. The provider mixes
// numeric codes and case-varying strings; anything unrecognized maps to
// pendiente — never to completado — so an unexpected code can't settle a pago.
type EstadoTransaccion string

const (
	TxPendiente  EstadoTransaccion = "pendiente"
	TxCompletado EstadoTransaccion = "completado"
	TxRechazado  EstadoTransaccion = "rechazado"
)

// NormalizarEstado maps a raw provider status (number or string) to the
// internal status set.
func NormalizarEstado(raw interface{}) EstadoTransaccion {
	var s string
	switch v := raw.(type) {
	case string:
		s = strings.ToLower(strings.TrimSpace(v))
	case float64:
		s = fmt.Sprintf("%.0f", v)
	case json.Number:
		s = v.String()
	case int:
		s = fmt.Sprintf("%d", v)
	case nil:
		return TxPendiente
	default:
		return TxPendiente
	}

	switch s {
	case "5", "completado", "pagado":
		return TxCompletado
	case "3", "rechazado", "cancelado":
		return TxRechazado
	default:
		return TxPendiente
	}
}

// ─── Wire types ──────────────────────────────────────────────────────────────
// These reproduce the provider contract field for field; do not rename keys.

type loginValues struct {
	AccessToken      string `json:"accessToken"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
}

type loginEnvelope struct {
	Error   int         `json:"error"`
	Message string      `json:"message"`
	Values  loginValues `json:"values"`
}

// QRDetalleItem is one orderDetail line describing the charge.
type QRDetalleItem struct {
	Serial   int     `json:"serial"`
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// QRCargo is the provider-facing charge request. PaymentNumber is the
// caller-chosen reference that the webhook later echoes back as PedidoID.
type QRCargo struct {
	ClientName    string
	DocumentType  int
	DocumentID    string
	PhoneNumber   string
	Email         string
	PaymentNumber string
	Monto         decimal.Decimal
	ClientCode    string
	Detalle       []QRDetalleItem
}

type generateQRBody struct {
	PaymentMethod int             `json:"paymentMethod"`
	ClientName    string          `json:"clientName"`
	DocumentType  int             `json:"documentType"`
	DocumentID    string          `json:"documentId"`
	PhoneNumber   string          `json:"phoneNumber"`
	Email         string          `json:"email"`
	PaymentNumber string          `json:"paymentNumber"`
	Amount        float64         `json:"amount"`
	Currency      int             `json:"currency"`
	ClientCode    string          `json:"clientCode"`
	CallbackURL   string          `json:"callbackUrl"`
	OrderDetail   []QRDetalleItem `json:"orderDetail"`
}

type qrValues struct {
	QRBase64       string      `json:"qrBase64"`
	TransactionID  json.Number `json:"transactionId"`
	ExpirationDate string      `json:"expirationDate"`
}

type qrEnvelope struct {
	Error   int      `json:"error"`
	Message string   `json:"message"`
	Values  qrValues `json:"values"`
}

// QRGenerado is the adapter's normalized result.
type QRGenerado struct {
	QRBase64       string
	TransactionID  string
	ExpirationDate string
}

type queryTxBody struct {
	PagoFacilTransactionID string `json:"pagofacilTransactionId"`
}

type queryTxValues struct {
	PaymentStatus interface{} `json:"paymentStatus"`
	PaymentDate   string      `json:"paymentDate"`
	PaymentTime   string      `json:"paymentTime"`
}

type queryTxEnvelope struct {
	Error   int           `json:"error"`
	Message string        `json:"message"`
	Values  queryTxValues `json:"values"`
}

// ConsultaTransaccion is the normalized status-query result.
type ConsultaTransaccion struct {
	Estado      EstadoTransaccion
	PaymentDate string
	PaymentTime string
}

// ─── Client ──────────────────────────────────────────────────────────────────

const (
	paymentMethodQR = 4
	currencyBOB     = 2
	// QR/login calls respond quickly; status queries have been observed to
	// hang up to a minute and a half on the provider side.
	timeoutLogin  = 30 * time.Second
	timeoutQR     = 30 * time.Second
	timeoutStatus = 90 * time.Second
	// Tokens are refreshed five minutes before the provider expires them.
	tokenMargin = 5 * time.Minute
)

// PagoFacilClient isolates every HTTP interaction with the QR payment
// provider. The access token lives in the injected TokenCache; a concurrent
// expiry may issue a duplicate login, which the provider tolerates.
type PagoFacilClient struct {
	baseURL      string
	tokenService string
	tokenSecret  string
	callbackURL  string
	cache        TokenCache
	httpClient   *http.Client
	statusClient *http.Client
}

func NewPagoFacilClient(baseURL, tokenService, tokenSecret, callbackURL string, cache TokenCache) *PagoFacilClient {
	return &PagoFacilClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		tokenService: tokenService,
		tokenSecret:  tokenSecret,
		callbackURL:  callbackURL,
		cache:        cache,
		httpClient:   &http.Client{Timeout: timeoutQR},
		statusClient: &http.Client{Timeout: timeoutStatus},
	}
}

// Authenticate returns a valid access token, hitting /login only on cache miss.
func (c *PagoFacilClient) Authenticate(ctx context.Context) (string, error) {
	cacheKey := c.tokenService
	if token, err := c.cache.Get(ctx, cacheKey); err == nil && token != "" {
		return token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", nil)
	if err != nil {
		return "", fmt.Errorf("pagofacil: crear request login: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("tcTokenService", c.tokenService)
	req.Header.Set("tcTokenSecret", c.tokenSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login: %v", ErrGatewayNoDisponible, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		log.Error().Int("status", resp.StatusCode).Bytes("body", body).Msg("pagofacil: login 5xx")
		return "", fmt.Errorf("%w: login devolvio %d", ErrGatewayNoDisponible, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		log.Error().Int("status", resp.StatusCode).Bytes("body", body).Msg("pagofacil: login rechazado")
		return "", fmt.Errorf("%w: login devolvio %d", ErrGatewayRechazado, resp.StatusCode)
	}

	var env loginEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: login: decodificar respuesta: %v", ErrGatewayNoDisponible, err)
	}
	if env.Error != 0 || env.Values.AccessToken == "" {
		log.Error().Bytes("body", body).Msg("pagofacil: login sin accessToken")
		return "", fmt.Errorf("%w: login: %s", ErrGatewayRechazado, env.Message)
	}

	ttl := time.Duration(env.Values.ExpiresInMinutes)*time.Minute - tokenMargin
	if ttl < time.Minute {
		ttl = time.Minute
	}
	if err := c.cache.Set(ctx, cacheKey, env.Values.AccessToken, ttl); err != nil {
		// Cache failure degrades to an extra login next call, never blocks.
		log.Warn().Err(err).Msg("pagofacil: no se pudo cachear el token")
	}

	return env.Values.AccessToken, nil
}

// GenerarQR requests a QR image for the given charge.
func (c *PagoFacilClient) GenerarQR(ctx context.Context, cargo QRCargo) (*QRGenerado, error) {
	if !cargo.Monto.IsPositive() {
		return nil, fmt.Errorf("%w: monto debe ser mayor a cero", ErrGatewayRechazado)
	}

	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	amount, _ := cargo.Monto.Round(2).Float64()
	body := generateQRBody{
		PaymentMethod: paymentMethodQR,
		ClientName:    cargo.ClientName,
		DocumentType:  cargo.DocumentType,
		DocumentID:    cargo.DocumentID,
		PhoneNumber:   cargo.PhoneNumber,
		Email:         cargo.Email,
		PaymentNumber: cargo.PaymentNumber,
		Amount:        amount,
		Currency:      currencyBOB,
		ClientCode:    cargo.ClientCode,
		CallbackURL:   c.callbackURL,
		OrderDetail:   cargo.Detalle,
	}

	var env qrEnvelope
	if err := c.postJSON(ctx, c.httpClient, "/generate-qr", token, body, &env); err != nil {
		return nil, err
	}
	if env.Values.QRBase64 == "" || env.Values.TransactionID.String() == "" {
		log.Error().Interface("values", env.Values).Str("payment_number", cargo.PaymentNumber).
			Msg("pagofacil: respuesta de QR incompleta")
		return nil, fmt.Errorf("%w: respuesta de QR incompleta", ErrGatewayRechazado)
	}

	return &QRGenerado{
		QRBase64:       env.Values.QRBase64,
		TransactionID:  env.Values.TransactionID.String(),
		ExpirationDate: env.Values.ExpirationDate,
	}, nil
}

// ConsultarTransaccion queries the current status of a gateway transaction.
func (c *PagoFacilClient) ConsultarTransaccion(ctx context.Context, transactionID string) (*ConsultaTransaccion, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var env queryTxEnvelope
	body := queryTxBody{PagoFacilTransactionID: transactionID}
	if err := c.postJSON(ctx, c.statusClient, "/query-transaction", token, body, &env); err != nil {
		return nil, err
	}

	return &ConsultaTransaccion{
		Estado:      NormalizarEstado(env.Values.PaymentStatus),
		PaymentDate: env.Values.PaymentDate,
		PaymentTime: env.Values.PaymentTime,
	}, nil
}

// postJSON sends an authenticated POST and decodes the envelope into out.
// Gateway errors are logged with both request and response bodies.
func (c *PagoFacilClient) postJSON(ctx context.Context, client *http.Client, path, token string, payload, out interface{}) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pagofacil: serializar %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("pagofacil: crear request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		log.Error().Str("path", path).RawJSON("request", reqBody).Err(err).
			Msg("pagofacil: fallo de red")
		return fmt.Errorf("%w: %s: %v", ErrGatewayNoDisponible, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		log.Error().Str("path", path).Int("status", resp.StatusCode).
			RawJSON("request", reqBody).Bytes("response", respBody).
			Msg("pagofacil: error del proveedor")
		return fmt.Errorf("%w: %s devolvio %d", ErrGatewayNoDisponible, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		log.Error().Str("path", path).Int("status", resp.StatusCode).
			RawJSON("request", reqBody).Bytes("response", respBody).
			Msg("pagofacil: solicitud rechazada")
		return fmt.Errorf("%w: %s devolvio %d", ErrGatewayRechazado, path, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		log.Error().Str("path", path).Bytes("response", respBody).Err(err).
			Msg("pagofacil: respuesta no decodificable")
		return fmt.Errorf("%w: %s: decodificar respuesta: %v", ErrGatewayNoDisponible, path, err)
	}
	return nil
}
