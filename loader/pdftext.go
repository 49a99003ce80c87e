package loader

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// tjSpace is the TJ displacement, in thousandths of a text unit, above which
// a kerning gap is read as a word break.
const tjSpace = 200

// contentPages reads every page content stream with pdfcpu and decodes the
// text showing operators. Simple font encodings are read as Latin-1 and
// UTF-16 strings with a byte order mark are decoded as such.
func contentPages(src string) ([]string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := pdfmodel.NewDefaultConfiguration()
	conf.Cmd = pdfmodel.EXTRACTCONTENT
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		r, err := pdfcpu.ExtractPageContent(ctx, i)
		if err != nil {
			return pages, fmt.Errorf("page %d content: %w", i, err)
		}
		var stream []byte
		if r != nil {
			if stream, err = io.ReadAll(r); err != nil {
				return pages, fmt.Errorf("page %d content: %w", i, err)
			}
		}
		pages = append(pages, streamText(stream))
	}
	return pages, nil
}

type textScanner struct {
	buf []byte
	pos int
}

// token kinds
const (
	tokEOF = iota
	tokString
	tokNumber
	tokArrayOpen
	tokArrayClose
	tokOperator
	tokOther
)

type token struct {
	kind int
	text string
	num  float64
}

// streamText walks a content stream and returns the shown text, one line per
// text line movement.
func streamText(stream []byte) string {
	var (
		s       = &textScanner{buf: stream}
		out     strings.Builder
		line    strings.Builder
		strs    []string
		nums    []float64
		inArray bool
		array   strings.Builder
	)
	newline := func() {
		if l := strings.Join(strings.Fields(line.String()), " "); l != "" {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(l)
		}
		line.Reset()
	}

	for {
		tok := s.next()
		switch tok.kind {
		case tokEOF:
			newline()
			return out.String()
		case tokString:
			if inArray {
				array.WriteString(tok.text)
			} else {
				strs = append(strs, tok.text)
			}
		case tokNumber:
			if inArray {
				if tok.num < -tjSpace {
					array.WriteByte(' ')
				}
			} else {
				nums = append(nums, tok.num)
			}
		case tokArrayOpen:
			inArray = true
			array.Reset()
		case tokArrayClose:
			inArray = false
			strs = append(strs, array.String())
		case tokOperator:
			switch tok.text {
			case "Tj", "TJ":
				for _, str := range strs {
					line.WriteString(str)
				}
			case "'", "\"":
				newline()
				for _, str := range strs {
					line.WriteString(str)
				}
			case "Td", "TD":
				if len(nums) >= 2 && nums[len(nums)-1] != 0 {
					newline()
				} else {
					line.WriteByte(' ')
				}
			case "T*", "Tm", "ET":
				newline()
			case "BI":
				s.skipInlineImage()
			}
			strs, nums = strs[:0], nums[:0]
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\r' || b == '\t' || b == '\f' || b == 0
}

func isDelim(b byte) bool {
	return strings.IndexByte("()<>[]{}/%", b) >= 0
}

func (s *textScanner) next() token {
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]
		switch {
		case isSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.buf) && s.buf[s.pos] != '\n' && s.buf[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			s.pos++
			return token{kind: tokString, text: decodeText(s.literal())}
		case c == '<':
			if s.pos+1 < len(s.buf) && s.buf[s.pos+1] == '<' {
				s.pos += 2
				return token{kind: tokOther}
			}
			s.pos++
			return token{kind: tokString, text: decodeText(s.hex())}
		case c == '>':
			s.pos++
			if s.pos < len(s.buf) && s.buf[s.pos] == '>' {
				s.pos++
			}
			return token{kind: tokOther}
		case c == '[':
			s.pos++
			return token{kind: tokArrayOpen}
		case c == ']':
			s.pos++
			return token{kind: tokArrayClose}
		case c == '/':
			s.pos++
			s.word()
			return token{kind: tokOther}
		default:
			w := s.word()
			if w == "" {
				// Unbalanced delimiter such as '{'.
				s.pos++
				continue
			}
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, num: n}
			}
			return token{kind: tokOperator, text: w}
		}
	}
	return token{kind: tokEOF}
}

func (s *textScanner) word() string {
	start := s.pos
	for s.pos < len(s.buf) && !isSpace(s.buf[s.pos]) && !isDelim(s.buf[s.pos]) {
		s.pos++
	}
	return string(s.buf[start:s.pos])
}

// literal reads a parenthesised string body. The opening paren is consumed.
func (s *textScanner) literal() []byte {
	var out []byte
	depth := 1
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]
		s.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out
			}
		case '\\':
			if s.pos >= len(s.buf) {
				return out
			}
			e := s.buf[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if s.pos < len(s.buf) && s.buf[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.buf) && s.buf[s.pos] >= '0' && s.buf[s.pos] <= '7'; i++ {
						v = v*8 + int(s.buf[s.pos]-'0')
						s.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// hex reads a hex string body. The opening angle bracket is consumed.
func (s *textScanner) hex() []byte {
	var digits []byte
	for s.pos < len(s.buf) && s.buf[s.pos] != '>' {
		if c := s.buf[s.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage jumps past the binary data of a BI ... ID ... EI block.
func (s *textScanner) skipInlineImage() {
	for s.pos+1 < len(s.buf) {
		if s.buf[s.pos] == 'I' && s.buf[s.pos+1] == 'D' && (s.pos == 0 || isSpace(s.buf[s.pos-1])) {
			s.pos += 2
			break
		}
		s.pos++
	}
	for s.pos+2 < len(s.buf) {
		if isSpace(s.buf[s.pos]) && s.buf[s.pos+1] == 'E' && s.buf[s.pos+2] == 'I' &&
			(s.pos+3 == len(s.buf) || isSpace(s.buf[s.pos+3])) {
			s.pos += 3
			return
		}
		s.pos++
	}
	s.pos = len(s.buf)
}

func decodeText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		units := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
