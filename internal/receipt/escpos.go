package receipt

import (
	"bytes"
	"strings"
)

// ESC/POS command bytes.
const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

const (
	fontNormal = 0x00
	fontDouble = 0x11
)

// CashDrawerPulse kicks the drawer on connector pin 2.
var CashDrawerPulse = []byte{esc, 'p', 0x00, 0x19, 0xFA}

type escposWriter struct {
	buf bytes.Buffer
}

func (w *escposWriter) init() {
	w.buf.Write([]byte{esc, '@'})
}

func (w *escposWriter) align(a Align) {
	w.buf.Write([]byte{esc, 'a', byte(a)})
}

func (w *escposWriter) fontSize(size byte) {
	w.buf.Write([]byte{gs, '!', size})
}

func (w *escposWriter) feed(n int) {
	w.buf.Write(bytes.Repeat([]byte{lf}, n))
}

func (w *escposWriter) partialCut() {
	w.buf.Write([]byte{gs, 'V', 0x41, 0x10})
}

func (w *escposWriter) bold(on bool) {
	b := byte(0)
	if on {
		b = 1
	}
	w.buf.Write([]byte{esc, 'E', b})
}

func (w *escposWriter) text(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(lf)
}

// ESCPOS encodes the layout for a thermal printer: initialize, print, feed
// and partial cut. Centered text uses the printer's own alignment; pairs and
// columns are pre-padded.
func (l Layout) ESCPOS() []byte {
	w := &escposWriter{}
	w.init()
	for _, line := range l.Lines {
		if line.Bold {
			w.bold(true)
		}
		switch line.Kind {
		case KindText:
			w.align(line.Align)
			if line.Large {
				w.fontSize(fontDouble)
			}
			w.text(strings.TrimSpace(line.Text))
			if line.Large {
				w.fontSize(fontNormal)
			}
			w.align(AlignLeft)
		default:
			for _, row := range l.format(line) {
				w.text(row)
			}
		}
		if line.Bold {
			w.bold(false)
		}
	}
	w.feed(3)
	w.partialCut()
	return w.buf.Bytes()
}
