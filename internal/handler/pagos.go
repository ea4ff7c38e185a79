package handler

import (
	"errors"
	"net/http"
	"strings"

	"tallerpagos/internal/apierror"
	"tallerpagos/internal/dto"
	"tallerpagos/internal/middleware"
	"tallerpagos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PagosHandler struct{ svc service.PagoService }

func NewPagosHandler(svc service.PagoService) *PagosHandler { return &PagosHandler{svc: svc} }

// statusForPagoErr maps service taxonomy errors to HTTP codes.
func statusForPagoErr(err error) int {
	switch {
	case errors.Is(err, service.ErrPagoDuplicado),
		errors.Is(err, service.ErrPagoProcesado),
		errors.Is(err, service.ErrConflictoConciliacion):
		return http.StatusConflict
	case errors.Is(err, service.ErrMontoExcedente),
		errors.Is(err, service.ErrOrdenNoCompletada):
		return http.StatusUnprocessableEntity
	case strings.Contains(err.Error(), "no encontrad"):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// Crear godoc
// @Summary      Crear pago para una orden completada
// @Description  Abre el registro de cobranza de una orden de trabajo. Una orden admite un solo pago activo.
// @Tags         pagos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CrearPagoRequest true "Datos del pago"
// @Success      201  {object} dto.PagoResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/pagos [post]
func (h *PagosHandler) Crear(c *gin.Context) {
	var req dto.CrearPagoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusForPagoErr(err), apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Obtener godoc
// @Summary      Detalle de un pago
// @Description  Retorna el pago con sus abonos y, para créditos, el plan de cuotas proyectado.
// @Tags         pagos
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID o código del pago (PAG-...)"
// @Success      200 {object} dto.PagoResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/pagos/{id} [get]
func (h *PagosHandler) Obtener(c *gin.Context) {
	param := c.Param("id")
	id, err := uuid.Parse(param)
	if err != nil {
		// no es un UUID: se busca por codigo humano (PAG-yyyymmdd-nnnn)
		resp, err := h.svc.ObtenerPorCodigo(c.Request.Context(), param)
		if err != nil {
			c.JSON(http.StatusNotFound, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listar godoc
// @Summary      Listar pagos
// @Description  Lista paginada de pagos filtrada por estado, tipo y búsqueda libre (código, cliente o placa).
// @Tags         pagos
// @Produce      json
// @Security     BearerAuth
// @Param        estado    query string false "pendiente | pagado_parcial | pagado_total | vencido | cancelado | todos"
// @Param        tipo_pago query string false "contado | credito | todos"
// @Param        search    query string false "Código, cliente o placa"
// @Param        page      query int    false "Página (default 1)"
// @Param        limit     query int    false "Registros por página (default 15)"
// @Success      200 {object} dto.PagoListResponse
// @Router       /v1/pagos [get]
func (h *PagosHandler) Listar(c *gin.Context) {
	var filter dto.PagoFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar pagos"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarAbono godoc
// @Summary      Registrar un abono
// @Description  Registra un cobro (efectivo o QR) sobre el pago. Operación atómica: agrega el detalle, recalcula montos y estado, y entrega la orden cuando queda saldada.
// @Tags         pagos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "UUID del pago"
// @Param        body body dto.RegistrarPagoRequest true "Datos del abono"
// @Success      200 {object} dto.PagoResponse
// @Failure      409 {object} apierror.APIError
// @Failure      422 {object} apierror.APIError
// @Router       /v1/pagos/{id}/abonos [post]
func (h *PagosHandler) RegistrarAbono(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.RegistrarPagoRequest
	if !bindAndValidate(c, &req) {
		return
	}

	// Default the receiver to the authenticated staff member.
	if req.RecibidoPor == nil {
		if claims := middleware.GetClaims(c); claims != nil {
			req.RecibidoPor = &claims.UserID
		}
	}

	resp, err := h.svc.RegistrarPago(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(statusForPagoErr(err), apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Actualizar godoc
// @Summary      Actualizar condiciones de pago
// @Description  Modifica tipo, cuotas y vencimiento. Solo permitido mientras el pago está pendiente sin abonos.
// @Tags         pagos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "UUID del pago"
// @Param        body body dto.ActualizarPagoRequest true "Nuevas condiciones"
// @Success      200 {object} dto.PagoResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/pagos/{id} [put]
func (h *PagosHandler) Actualizar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.ActualizarPagoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(statusForPagoErr(err), apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancelar godoc
// @Summary      Cancelar pago
// @Description  Cancela el pago y libera la orden para abrir uno nuevo. Los abonos registrados se conservan.
// @Tags         pagos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "UUID del pago"
// @Param        body body dto.CancelarPagoRequest true "Motivo de cancelación"
// @Success      204
// @Failure      409 {object} apierror.APIError
// @Router       /v1/pagos/{id} [delete]
func (h *PagosHandler) Cancelar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.CancelarPagoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Cancelar(c.Request.Context(), id, req.Motivo); err != nil {
		c.JSON(statusForPagoErr(err), apierror.New(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}

// Estadisticas godoc
// @Summary      Estadísticas de cobranza
// @Tags         pagos
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.EstadisticasPagos
// @Router       /v1/pagos/estadisticas [get]
func (h *PagosHandler) Estadisticas(c *gin.Context) {
	resp, err := h.svc.Estadisticas(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al calcular estadisticas"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
