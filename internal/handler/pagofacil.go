package handler

import (
	"errors"
	"net/http"

	"tallerpagos/internal/apierror"
	"tallerpagos/internal/dto"
	"tallerpagos/internal/infra"
	"tallerpagos/internal/service"

	"github.com/gin-gonic/gin"
)

type PagoFacilHandler struct{ svc service.ConciliacionService }

func NewPagoFacilHandler(svc service.ConciliacionService) *PagoFacilHandler {
	return &PagoFacilHandler{svc: svc}
}

func statusForGatewayErr(err error) int {
	switch {
	case errors.Is(err, infra.ErrGatewayNoDisponible):
		return http.StatusServiceUnavailable
	case errors.Is(err, infra.ErrGatewayRechazado):
		return http.StatusBadGateway
	default:
		return statusForPagoErr(err)
	}
}

// GenerarQR godoc
// @Summary      Generar QR de cobro
// @Description  Solicita un QR a PagoFácil por el monto indicado y registra la transacción en vuelo para su conciliación.
// @Tags         pagofacil
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.GenerarQRRequest true "Pago y monto a cobrar"
// @Success      200 {object} dto.GenerarQRResponse
// @Failure      502 {object} apierror.APIError
// @Failure      503 {object} apierror.APIError
// @Router       /v1/pagofacil/qr [post]
func (h *PagoFacilHandler) GenerarQR(c *gin.Context) {
	var req dto.GenerarQRRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.GenerarQR(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusForGatewayErr(err), apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConsultarEstado godoc
// @Summary      Consultar estado de una transacción QR
// @Description  Consulta el estado en PagoFácil. Si la transacción se confirmó, registra el abono (idempotente).
// @Tags         pagofacil
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.ConsultarEstadoRequest true "ID de transacción"
// @Success      200 {object} dto.ConsultarEstadoResponse
// @Failure      503 {object} apierror.APIError
// @Router       /v1/pagofacil/estado [post]
func (h *PagoFacilHandler) ConsultarEstado(c *gin.Context) {
	var req dto.ConsultarEstadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ConsultarEstado(c.Request.Context(), req.TransactionID)
	if err != nil {
		c.JSON(statusForGatewayErr(err), apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Callback godoc
// @Summary      Webhook de confirmación de PagoFácil
// @Description  Endpoint público que recibe la notificación del proveedor. Siempre responde HTTP 200 con el sobre de acuse; los fallos viajan dentro del sobre.
// @Tags         pagofacil
// @Accept       json
// @Produce      json
// @Param        body body dto.CallbackRequest true "Notificación del proveedor"
// @Success      200 {object} dto.CallbackResponse
// @Router       /api/pagos/callback [post]
func (h *PagoFacilHandler) Callback(c *gin.Context) {
	var req dto.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Even a malformed body gets the 200 envelope; anything else
		// triggers provider retry storms.
		c.JSON(http.StatusOK, &dto.CallbackResponse{
			Error: 1, Status: 0, Message: "cuerpo invalido", Values: false,
		})
		return
	}
	c.JSON(http.StatusOK, h.svc.ProcesarCallback(c.Request.Context(), req))
}
