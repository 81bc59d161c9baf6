// Package invoice renders PDF receipts for committed transactions.
package invoice

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/smartstore/engine/internal/session"
)

// Generator writes one PDF receipt per transaction into the output
// directory. A render failure never rolls back the transaction it documents.
type Generator struct {
	outputDir string
}

func NewGenerator(outputDir string) (*Generator, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create invoice directory: %w", err)
	}
	return &Generator{outputDir: outputDir}, nil
}

// RenderReceipt produces the receipt document and returns its path.
func (g *Generator) RenderReceipt(ref string, items []session.CartLine, total float64, clientName string) (string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 24)
	pdf.CellFormat(190, 15, "SMART STORE", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(190, 8, "Automated Shopping Experience", "", 1, "C", false, 0, "")
	pdf.Ln(10)

	// Transaction info
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(190, 10, "INVOICE", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(190, 7, fmt.Sprintf("Transaction ID: %s", ref), "", 1, "L", false, 0, "")
	pdf.CellFormat(190, 7, fmt.Sprintf("Date: %s", time.Now().Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Client info
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Client Information:", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(190, 7, fmt.Sprintf("Name: %s", clientName), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Items table
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(90, 8, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, "Qty", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 8, "Unit Price", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 8, "Subtotal", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, item := range items {
		name := item.Name
		if len(name) > 35 {
			name = name[:35]
		}
		pdf.CellFormat(90, 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f EUR", item.UnitPrice), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f EUR", item.Subtotal()), "1", 1, "C", false, 0, "")
	}

	// Total
	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(155, 10, "TOTAL", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 10, fmt.Sprintf("%.2f EUR", total), "", 1, "C", false, 0, "")
	pdf.Ln(15)

	// Footer
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(190, 7, "Payment verified via biometric authentication", "", 1, "C", false, 0, "")
	pdf.CellFormat(190, 7, "Thank you for shopping with Smart Store!", "", 1, "C", false, 0, "")

	filename := filepath.Join(g.outputDir, fmt.Sprintf("invoice_%s_%d.pdf", ref, time.Now().Unix()))
	if err := pdf.OutputFileAndClose(filename); err != nil {
		return "", fmt.Errorf("failed to write invoice: %w", err)
	}

	return filename, nil
}
