package hw

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// SPI shifts grayscale frames out over a periph SPI port in mode 0 with
// 8-bit words. The chip only samples SIN on SCLK, so byte-wise framing of
// the packed 12-bit stream is equivalent to 12-bit words.
type SPI struct {
	mu   sync.Mutex
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPI opens dev through spireg ("" picks the first port).
func OpenSPI(dev string, speed physic.Frequency) (*SPI, error) {
	p, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", dev, err)
	}
	s, err := NewSPIFromPort(p, speed)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

// NewSPIFromPort connects an already opened port.
func NewSPIFromPort(p spi.PortCloser, speed physic.Frequency) (*SPI, error) {
	c, err := p.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spi connect: %w", err)
	}
	return &SPI{port: p, conn: c}, nil
}

// Transmit writes frame in one transfer.
func (s *SPI) Transmit(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("spi closed")
	}
	if err := s.conn.Tx(frame, nil); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	return nil
}

func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port, s.conn = nil, nil
	return err
}
