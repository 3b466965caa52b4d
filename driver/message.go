package driver

import "fmt"

// message is one queued error. A scanner error carries no text; the
// writer renders the character range from point to last instead. The
// range grows as adjacent undefined characters coalesce.
type message struct {
	point Location
	last  Location
	text  string
	scan  bool
}

// RecordError formats a message and queues it at the given location.
// Semantic callbacks use this to report their own errors.
func (p *Parser) RecordError(where Location, format string, args ...interface{}) {
	p.enqueueError(where, fmt.Sprintf(format, args...), false)
}

// enqueueError inserts a message into the queue ordered by location.
// A scanner error adjacent to the previous scanner error extends its
// range instead of adding an entry.
func (p *Parser) enqueueError(point Location, text string, scan bool) {
	if n := len(p.msgqueue); n > 0 && scan && p.msgqueue[n-1].scan {
		where := p.msgqueue[n-1].last
		where.offset++
		if where.offset >= where.buf.count {
			where.buf = where.buf.next
			where.offset = 0
		}
		if point == where {
			p.msgqueue[n-1].last = point
			return
		}
	}

	i := len(p.msgqueue)
	p.msgqueue = append(p.msgqueue, message{})
	for ; i > 0; i-- {
		m := p.msgqueue[i-1]
		if point.before(m.point) {
			p.msgqueue[i] = m
		} else {
			break
		}
	}
	p.msgqueue[i] = message{point: point, last: point, text: text, scan: scan}
}

// charWidth returns the display width of ch at column, which is only
// ever more than one for a tab.
func charWidth(ch byte, column int) int {
	if ch == '\t' {
		return 8 - column%8
	}
	return 1
}

func (p *Parser) putc(ch byte) {
	p.out.Write([]byte{ch})
}

// writeLine skips over or writes the line starting at the unwritten
// position, prints every queued message on it with a caret at its
// column, and releases buffers that precede the new unwritten head.
func (p *Parser) writeLine() {
	// When unwritten is already at the end of the file, pretend the
	// next line starts one past it; otherwise find the next newline.
	nextline := p.unwritten
	if nextline.offset >= nextline.buf.count {
		nextline.offset = nextline.buf.count + 1
	} else {
		for {
			if nextline.offset >= nextline.buf.count && !p.readBuffer(&nextline) {
				break
			}
			ch := nextline.buf.data[nextline.offset]
			nextline.offset++
			if ch == '\n' {
				if nextline.offset >= nextline.buf.count {
					p.readBuffer(&nextline)
				}
				break
			}
		}
	}
	p.lineno++

	if p.listing || len(p.msgqueue) > 0 && p.msgqueue[0].point.before(nextline) {
		// A blank line separates a line that carried messages from
		// the next one.
		if p.msgwritten {
			p.putc('\n')
			p.msgwritten = false
		}

		where := p.unwritten
		if where.offset < where.buf.count {
			// The line number prefix is exactly one tab stop wide.
			fmt.Fprintf(p.out, "%6d: ", p.lineno)
			for where.before(nextline) {
				ch := where.buf.data[where.offset]
				where.offset++
				if where.offset >= where.buf.count && where.buf.next != nil {
					where.buf = where.buf.next
					where.offset = 0
				}
				if ch == '\n' {
					break
				}
				p.putc(ch)
			}
		} else {
			fmt.Fprint(p.out, " <EOF>:")

			// Move nextline past the pretend end so every remaining
			// message flushes.
			nextline.offset++
		}
		p.putc('\n')

		where = p.unwritten
		column := 0
		for len(p.msgqueue) > 0 && p.msgqueue[0].point.before(nextline) {
			msg := p.msgqueue[0]
			for where.before(msg.point) {
				column += charWidth(where.buf.data[where.offset], column)
				where.offset++
				if where.offset >= where.buf.count && where.buf.next != nil {
					where.buf = where.buf.next
					where.offset = 0
				}
			}

			p.putc('\t')
			i := column
			for ; i >= 8; i -= 8 {
				p.putc('\t')
			}
			fmt.Fprintf(p.out, "%*c\n", i+1, '^')

			if msg.scan {
				fmt.Fprint(p.out, " *****\tDeleted: ")
				for {
					ch := where.buf.data[where.offset]
					p.putc(ch)
					column += charWidth(ch, column)
					where.offset++
					if where.offset >= where.buf.count && where.buf.next != nil {
						where.buf = where.buf.next
						where.offset = 0
					}
					if msg.last.before(where) {
						break
					}
				}
				p.putc('\n')
			} else {
				fmt.Fprintf(p.out, " *****\t%s\n", msg.text)
			}
			p.msgwritten = true
			p.msgqueue = p.msgqueue[1:]
		}
	}

	p.unwritten = nextline
	for p.bufferlist != p.unwritten.buf {
		p.bufferlist = p.bufferlist.next
	}
}
