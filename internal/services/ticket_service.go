package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/finzzzi/event-management-api/internal/models"
)

// TicketService issues e-tickets for completed purchases: a human-readable
// ticket code plus a QR code PNG written under the upload directory.
type TicketService struct {
	uploadDir string
}

// NewTicketService constructs a TicketService writing under uploadDir/tickets.
func NewTicketService(uploadDir string) *TicketService {
	return &TicketService{uploadDir: uploadDir}
}

// Issue generates the ticket code and QR image for an accepted transaction.
// The QR payload carries the ticket code and transaction id for gate scanning.
func (s *TicketService) Issue(txn *models.Transaction) (string, error) {
	code := ticketCode(txn)

	dir := filepath.Join(s.uploadDir, "tickets")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("ticket:%s;transaction:%s", code, txn.ID)
	if err := qrcode.WriteFile(payload, qrcode.Medium, 256, filepath.Join(dir, code+".png")); err != nil {
		return "", err
	}

	return code, nil
}

// QRPath returns the relative URL path of an issued ticket's QR image.
func (s *TicketService) QRPath(code string) string {
	return "/uploads/tickets/" + code + ".png"
}

func ticketCode(txn *models.Transaction) string {
	short := strings.ToUpper(strings.ReplaceAll(txn.ID.String(), "-", ""))[:12]
	return "TKT-" + short
}
