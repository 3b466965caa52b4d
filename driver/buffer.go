package driver

import (
	"io"

	"github.com/sdtkit/sdt/spec"
)

const maxBuffer = 8192

// bufferEntry is one link of the input buffer chain. A buffer stays on
// the chain until every line it holds has been written, so the
// locations carried by queued tokens and messages remain valid.
type bufferEntry struct {
	next  *bufferEntry
	order int
	count int
	data  [maxBuffer]byte
}

// Location points at one byte of the buffered input.
type Location struct {
	buf    *bufferEntry
	offset int
}

func (l Location) before(o Location) bool {
	if l.buf.order != o.buf.order {
		return l.buf.order < o.buf.order
	}
	return l.offset < o.offset
}

// readBuffer advances where to the next available byte, reading more
// input when the chain is exhausted. It reports whether a byte is
// available at where.
func (p *Parser) readBuffer(where *Location) bool {
	if where.buf.next != nil {
		where.buf = where.buf.next
		where.offset = 0
	} else if !p.endfile {
		if where.buf.count >= maxBuffer {
			b := &bufferEntry{order: p.bufferend.order + 1}
			p.bufferend.next = b
			p.bufferend = b
			where.buf = b
			where.offset = 0
		}
		end := p.bufferend
		n, err := io.ReadFull(p.src, end.data[end.count:])
		end.count += n
		if err != nil {
			p.endfile = true
			if err != io.EOF && err != io.ErrUnexpectedEOF && p.err == nil {
				p.err = err
			}
		}
	}
	return where.offset < where.buf.count
}

// inputChar returns the byte at the read position and advances past it,
// or EOFChar once the input is exhausted. where receives the byte's
// location. The end of the file counts as the start of the next line.
func (p *Parser) inputChar(where *Location) int {
	if p.position.offset >= p.position.buf.count && !p.readBuffer(&p.position) {
		*where = p.position
		p.beginning = p.position
		return spec.EOFChar
	}
	*where = p.position
	if p.newline {
		p.beginning = p.position
		p.newline = false
	}
	ch := p.position.buf.data[p.position.offset]
	p.position.offset++
	if ch == '\n' {
		p.newline = true
	}
	return int(ch)
}
