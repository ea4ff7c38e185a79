package handler

import (
	"net/http"

	"tallerpagos/internal/apierror"
	"tallerpagos/internal/dto"
	"tallerpagos/internal/model"
	"tallerpagos/internal/repository"

	"github.com/gin-gonic/gin"
)

type OrdenesHandler struct{ repo repository.OrdenTrabajoRepository }

func NewOrdenesHandler(repo repository.OrdenTrabajoRepository) *OrdenesHandler {
	return &OrdenesHandler{repo: repo}
}

// ListarCompletadas godoc
// @Summary      Órdenes completadas listas para cobrar
// @Description  Retorna las órdenes completadas indicando cuáles ya tienen un pago activo.
// @Tags         ordenes
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.OrdenResponse
// @Router       /v1/ordenes/completadas [get]
func (h *OrdenesHandler) ListarCompletadas(c *gin.Context) {
	ordenes, err := h.repo.ListCompletadas(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar ordenes"))
		return
	}

	resp := make([]dto.OrdenResponse, 0, len(ordenes))
	for i := range ordenes {
		o := &ordenes[i]
		cliente := ""
		if o.Cliente != nil {
			cliente = o.Cliente.Nombre
		}
		activo := false
		for j := range o.Pagos {
			if o.Pagos[j].Estado != model.PagoCancelado {
				activo = true
				break
			}
		}
		resp = append(resp, dto.OrdenResponse{
			ID:              o.ID.String(),
			Codigo:          o.Codigo,
			Estado:          o.Estado,
			Cliente:         cliente,
			VehiculoMarca:   o.VehiculoMarca,
			VehiculoModelo:  o.VehiculoModelo,
			VehiculoPlaca:   o.VehiculoPlaca,
			CostoManoObra:   o.CostoManoObra,
			CostoRepuestos:  o.CostoRepuestos,
			Subtotal:        o.Subtotal,
			TienePagoActivo: activo,
		})
	}
	c.JSON(http.StatusOK, resp)
}
