package infra

// pdf.go — payment receipt generation using go-pdf/fpdf.
// Produces an A7-size thermal-style receipt with the workshop header, the
// receipt number, the cuota covered, amounts collected/pending, and the
// payment method.
// The output file is saved to storagePath/recibo_{numeroComprobante}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tallerpagos/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateReciboPDF writes the PDF receipt for one PagoDetalle and returns
// the absolute path of the generated file.
func GenerateReciboPDF(pago *model.Pago, detalle *model.PagoDetalle, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: crear directorio: %w", err)
	}

	fileName := fmt.Sprintf("recibo_%s.pdf", strings.ReplaceAll(detalle.NumeroComprobante, "/", "-"))
	filePath := filepath.Join(storagePath, fileName)

	// A7 ≈ 74mm × 105mm — close to thermal receipt paper
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 105},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, "Taller Mecanico", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Recibo de Pago", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	// ── Receipt info ─────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, detalle.NumeroComprobante, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, fmt.Sprintf("Pago %s", pago.Codigo), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, fmt.Sprintf("%s  %s", detalle.FechaPago.Format("02/01/2006"), detalle.HoraPago), "", 1, "L", false, 0, "")
	if pago.OrdenTrabajo != nil {
		pdf.CellFormat(contentW, 4, fmt.Sprintf("Orden %s", pago.OrdenTrabajo.Codigo), "", 1, "L", false, 0, "")
		if pago.OrdenTrabajo.Cliente != nil {
			pdf.CellFormat(contentW, 4, fmt.Sprintf("Cliente: %s", pago.OrdenTrabajo.Cliente.Nombre), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(2)

	// ── Amounts ──────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW*0.6, 5, fmt.Sprintf("Cuota %d de %d", detalle.NumeroCuota, pago.NumeroCuotas), "", 0, "L", false, 0, "")
	metodo := "Efectivo"
	if detalle.MetodoPago == model.MetodoQR {
		metodo = "QR"
	}
	pdf.CellFormat(contentW*0.4, 5, metodo, "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 7, fmt.Sprintf("Bs. %s", detalle.Monto.StringFixed(2)), "T", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, fmt.Sprintf("Pagado: Bs. %s", pago.MontoPagado.StringFixed(2)), "", 1, "R", false, 0, "")
	pdf.CellFormat(contentW, 4, fmt.Sprintf("Pendiente: Bs. %s", pago.MontoPendiente().StringFixed(2)), "", 1, "R", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: escribir archivo: %w", err)
	}
	return filePath, nil
}
