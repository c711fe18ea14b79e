// Package lcd drives an HD44780 character display behind a PCF8574 I2C port
// expander, the usual 16x2 module with an I2C backpack.
//
// The expander maps its eight outputs to the display as
//
//	7  | 6  | 5  | 4  | 3  | 2  | 1  | 0
//	D7 | D6 | D5 | D4 | BL | EN | RW | RS
//
// so every byte reaches the display as two 4-bit writes, each clocked in by
// pulsing EN.
package lcd

import (
	"fmt"
	"time"
)

// DefaultAddress is the usual PCF8574 backpack address.
const DefaultAddress = 0x27

// HD44780 commands.
const (
	cmdClearDisplay   = 0x01
	cmdEntryModeSet   = 0x04
	cmdDisplayControl = 0x08
	cmdFunctionSet    = 0x20
	cmdSetDDRAMAddr   = 0x80
)

// Command flags.
const (
	flagDisplayOn = 0x04
	flagEntryLeft = 0x02
	flag4BitMode  = 0x00
	flag2Line     = 0x08
	flag5x8Dots   = 0x00
)

// Expander bit positions.
const (
	pinRS        = 0x01
	pinEnable    = 0x04
	pinBacklight = 0x08
)

// Row start addresses in DDRAM.
var rowOffsets = [4]byte{0x00, 0x40, 0x14, 0x54}

// Conn is the single-byte write half of an I2C connection; gobot's
// i2c.Connection satisfies it.
type Conn interface {
	WriteByte(val byte) error
}

// Display is a character LCD.
type Display struct {
	conn      Conn
	cols      int
	rows      int
	backlight bool
	sleep     func(time.Duration)
}

// New initialises the display into 4-bit, two-line mode with the backlight
// on and the screen cleared.
func New(conn Conn, cols, rows int) (*Display, error) {
	d := &Display{conn: conn, cols: cols, rows: rows, backlight: true, sleep: time.Sleep}

	// Power-on takes a moment before the controller accepts commands.
	d.sleep(50 * time.Millisecond)

	// Magic init pair switching the controller into 4-bit mode.
	for _, b := range []byte{0x33, 0x32} {
		if err := d.writeCommand(b); err != nil {
			return nil, fmt.Errorf("lcd init: %w", err)
		}
	}

	init := []byte{
		cmdDisplayControl | flagDisplayOn,
		cmdFunctionSet | flag4BitMode | flag2Line | flag5x8Dots,
		cmdEntryModeSet | flagEntryLeft,
	}
	for _, b := range init {
		if err := d.writeCommand(b); err != nil {
			return nil, fmt.Errorf("lcd init: %w", err)
		}
	}
	if err := d.Clear(); err != nil {
		return nil, err
	}
	return d, nil
}

// Clear blanks the display and homes the cursor.
func (d *Display) Clear() error {
	if err := d.writeCommand(cmdClearDisplay); err != nil {
		return err
	}
	// the clear command is the slow one
	d.sleep(3 * time.Millisecond)
	return nil
}

// SetBacklight switches the backpack LED.
func (d *Display) SetBacklight(on bool) error {
	d.backlight = on
	return d.expanderWrite(0)
}

// Message writes text starting at the top-left corner. '\n' moves to the
// next row; overflow past the configured size is dropped.
func (d *Display) Message(text string) error {
	row := 0
	col := 0
	if err := d.writeCommand(cmdSetDDRAMAddr); err != nil {
		return err
	}
	for _, r := range text {
		if r == '\n' {
			row++
			col = 0
			if row >= d.rows {
				break
			}
			if err := d.writeCommand(cmdSetDDRAMAddr | rowOffsets[row]); err != nil {
				return err
			}
			continue
		}
		if col >= d.cols {
			continue
		}
		b := byte(r)
		if r > 0xff {
			b = '?'
		}
		if err := d.writeData(b); err != nil {
			return err
		}
		col++
	}
	return nil
}

func (d *Display) writeCommand(b byte) error { return d.write8(b, 0) }
func (d *Display) writeData(b byte) error    { return d.write8(b, pinRS) }

// write8 sends one byte as two nibbles with the given RS mode.
func (d *Display) write8(b, mode byte) error {
	if err := d.writeNibble(b&0xf0, mode); err != nil {
		return err
	}
	return d.writeNibble((b<<4)&0xf0, mode)
}

// writeNibble puts the data lines in place and clocks EN.
func (d *Display) writeNibble(bits, mode byte) error {
	v := bits | mode
	if err := d.expanderWrite(v | pinEnable); err != nil {
		return err
	}
	if err := d.expanderWrite(v &^ pinEnable); err != nil {
		return err
	}
	d.sleep(50 * time.Microsecond)
	return nil
}

func (d *Display) expanderWrite(b byte) error {
	if d.backlight {
		b |= pinBacklight
	}
	return d.conn.WriteByte(b)
}
