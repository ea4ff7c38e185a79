package dto

import "github.com/shopspring/decimal"

// OrdenResponse is the read model the front desk uses to open a Pago:
// completed orders with their client/vehicle snapshot and whether a
// collection ledger already exists.
type OrdenResponse struct {
	ID             string          `json:"id"`
	Codigo         string          `json:"codigo"`
	Estado         string          `json:"estado"`
	Cliente        string          `json:"cliente"`
	VehiculoMarca  string          `json:"vehiculo_marca"`
	VehiculoModelo string          `json:"vehiculo_modelo"`
	VehiculoPlaca  string          `json:"vehiculo_placa"`
	CostoManoObra  decimal.Decimal `json:"costo_mano_obra"`
	CostoRepuestos decimal.Decimal `json:"costo_repuestos"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TienePagoActivo bool           `json:"tiene_pago_activo"`
}
