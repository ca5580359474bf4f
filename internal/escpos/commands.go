// Package escpos encodes receipts into the ESC/POS thermal printer command
// language and decodes the printer's real-time status bytes.
package escpos

const (
	ESC = 0x1B
	GS  = 0x1D
	DLE = 0x10
	EOT = 0x04
	LF  = 0x0A
)

// Alignment values for ESC a.
const (
	AlignLeft   byte = 0
	AlignCenter byte = 1
	AlignRight  byte = 2
)

// Character sizes for GS !.
const (
	SizeNormal       byte = 0x00
	SizeDoubleHeight byte = 0x01
	SizeDoubleWidth  byte = 0x10
	SizeDouble       byte = SizeDoubleWidth | SizeDoubleHeight
)

// CodePagePC437 is the printer's factory default table (ESC t 0).
const CodePagePC437 byte = 0

var (
	// CmdInit is ESC @: clear the buffer and reset modes.
	CmdInit = []byte{ESC, '@'}

	// CmdTransmitPrinterStatus is DLE EOT 1.
	CmdTransmitPrinterStatus = []byte{DLE, EOT, 0x01}
	// CmdTransmitPaperStatus is DLE EOT 4 (roll paper sensor).
	CmdTransmitPaperStatus = []byte{DLE, EOT, 0x04}
)

func SelectCodePage(n byte) []byte { return []byte{ESC, 't', n} }

func Align(a byte) []byte { return []byte{ESC, 'a', a} }

func Bold(on bool) []byte { return []byte{ESC, 'E', flag(on)} }

func Size(s byte) []byte { return []byte{GS, '!', s} }

// Feed prints the buffer and feeds n lines (ESC d n).
func Feed(n byte) []byte { return []byte{ESC, 'd', n} }

// Cut is GS V A n: feed n dots then partial cut.
func Cut(n byte) []byte { return []byte{GS, 'V', 'A', n} }

func flag(on bool) byte {
	if on {
		return 1
	}
	return 0
}
