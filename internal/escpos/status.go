package escpos

import "github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"

// Bits of the DLE EOT 1 and DLE EOT 4 responses.
const (
	StatusOffline    byte = 0x08
	StatusCoverOpen  byte = 0x20
	PaperNearEndBits byte = 0x0C
	PaperOutBits     byte = 0x60
)

// DecodeStatus reads a printer status byte and, when present, a paper byte.
func DecodeStatus(status byte, paper *byte) model.PrinterStatus {
	s := model.PrinterStatus{
		Connected:     true,
		Online:        boolPtr(status&StatusOffline == 0),
		CoverClosed:   boolPtr(status&StatusCoverOpen == 0),
		RawStatusByte: &status,
	}
	if paper != nil {
		p := *paper
		s.RawPaperByte = &p
		s.PaperPresent = boolPtr(p&PaperOutBits == 0)
		s.PaperNearEnd = boolPtr(p&PaperNearEndBits != 0)
	}
	return s
}

func boolPtr(b bool) *bool { return &b }
