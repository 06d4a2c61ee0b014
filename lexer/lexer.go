package lexer

import (
	"io"
	"unicode"

	"github.com/emirpasic/gods/queues/arrayqueue"
	"github.com/emirpasic/gods/stacks/arraystack"

	"github.com/kang-lang/kang/source"
	"github.com/kang-lang/kang/tokenizer"
)

// Logger receives the diagnostics the lexer emits. The lexer recovers from
// every lexical error locally, so diagnostics never stop extraction.
type Logger interface {
	Errorf(pos source.Position, format string, args ...interface{})
	Warnf(pos source.Position, format string, args ...interface{})
}

const (
	tabSize      = 8
	ellipsisChar = '…'
)

// Lexer extracts tokens from a Kang source file. Indentation is turned into
// synthetic open/close block tokens, newlines into end-of-line tokens, and
// an ellipsis at the end of a line joins it with the next one.
type Lexer struct {
	r   *source.Reader
	log Logger

	// ch is the current character; it is not meaningful once eof is set.
	ch  rune
	eof bool

	line int
	col  int

	// pending holds tokens that have been extracted but not yet returned.
	pending *arrayqueue.Queue

	// isFirstToken reports whether the next token is the first on its line.
	isFirstToken bool

	// justSawEllipsis is set between an ellipsis and the newline that must
	// follow it.
	justSawEllipsis bool

	// blockLevels records the indentation column of each nested block. The
	// bottom entry is the base level 0.
	blockLevels *arraystack.Stack
}

// New creates a lexer reading from r. The first character is read
// immediately.
func New(r *source.Reader, log Logger) (*Lexer, error) {
	l := &Lexer{
		r:            r,
		log:          log,
		pending:      arrayqueue.New(),
		isFirstToken: true,
		blockLevels:  arraystack.New(),
	}

	ch, err := r.Read()
	switch {
	case err == io.EOF:
		l.eof = true
	case err != nil:
		return nil, err
	default:
		l.ch = ch
	}

	l.blockLevels.Push(l.col)

	return l, nil
}

// Position reports the position of the current character.
func (l *Lexer) Position() source.Position {
	return source.Position{
		SourceName: l.r.Name(),
		Line:       l.line,
		Col:        l.col,
	}
}

// ExtractToken returns the next token from the source file, or nil when no
// tokens are left.
func (l *Lexer) ExtractToken() (tokenizer.Token, error) {
	tok, err := l.extractToken()
	if tok == nil || err != nil {
		return nil, err
	}
	return tok, nil
}

func (l *Lexer) extractToken() (*Token, error) {
	for {
		if !l.eof {
			if err := l.skipWhiteSpace(); err != nil {
				return nil, err
			}
			l.updateBlockLevel()
		}

		if !l.eof {
			var err error
			switch {
			case unicode.IsLetter(l.ch):
				err = l.readIdentifierOrKeyword()
			case unicode.IsDigit(l.ch):
				err = l.readNumber()
			case l.ch == '"':
				err = l.readString()
			case l.ch == '\'':
				err = l.readCharacter()
			default:
				err = l.readSymbol()
			}
			if err != nil {
				return nil, err
			}
		}

		// When out of characters, end the line and close any open blocks.
		if l.eof {
			if !l.isFirstToken {
				l.enqueueMarker(TokenTypeEndOfLine)
				l.isFirstToken = true
			}
			for l.blockLevels.Size() > 1 {
				l.blockLevels.Pop()
				l.enqueueMarker(TokenTypeCloseBlock)
			}
		}

		if !l.pending.Empty() {
			tok, _ := l.pending.Dequeue()
			return tok.(*Token), nil
		}

		if l.eof {
			return nil, nil
		}
	}
}

// getChar consumes the current character and reads the next one, keeping
// the line and column counters current. A consumed newline ends the logical
// line unless a multi-line token is being read or the line ended with an
// ellipsis.
func (l *Lexer) getChar(multiLineToken bool) (rune, error) {
	old := l.ch

	switch old {
	case '\n':
		if !multiLineToken && !l.justSawEllipsis && !l.isFirstToken {
			l.enqueueMarker(TokenTypeEndOfLine)
			l.isFirstToken = true
		}

		l.justSawEllipsis = false

		l.line++
		l.col = 0
	case '\t':
		l.col += tabSize
		l.col -= l.col % tabSize
	default:
		l.col++
	}

	ch, err := l.r.Read()
	switch {
	case err == io.EOF:
		l.eof = true
		l.ch = 0
	case err != nil:
		return old, err
	default:
		l.ch = ch
	}

	return old, nil
}

// skipWhiteSpace skips white space, ellipses, and comments between tokens.
// Comments run from `--` to the end of the line.
func (l *Lexer) skipWhiteSpace() error {
	for {
		for !l.eof && (unicode.IsSpace(l.ch) || l.ch == ellipsisChar) {
			if l.ch == ellipsisChar {
				if l.justSawEllipsis {
					l.log.Errorf(l.Position(), "ellipsis '…' not at the end of the line")
				}
				l.justSawEllipsis = true
			}

			if _, err := l.getChar(false); err != nil {
				return err
			}
		}

		if l.eof || l.ch != '-' {
			break
		}
		next, err := l.r.Peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if next != '-' {
			break
		}

		// Skip over the comment.
		for !l.eof && l.ch != '\n' {
			if _, err := l.getChar(false); err != nil {
				return err
			}
		}
	}

	// An ellipsis must be immediately followed by the end of the line.
	if !l.eof && l.justSawEllipsis {
		l.log.Errorf(l.Position(), "ellipsis '…' not at the end of the line")
		l.justSawEllipsis = false
	}

	return nil
}

// updateBlockLevel compares the column of the first token on a line with
// the enclosing block levels and emits open or close block tokens.
func (l *Lexer) updateBlockLevel() {
	if !l.isFirstToken {
		return
	}

	top, _ := l.blockLevels.Peek()
	if l.col > top.(int) {
		l.blockLevels.Push(l.col)
		l.enqueueMarker(TokenTypeOpenBlock)
		return
	}

	for {
		top, _ := l.blockLevels.Peek()
		if l.col >= top.(int) {
			break
		}
		l.blockLevels.Pop()
		l.enqueueMarker(TokenTypeCloseBlock)
	}
}

func (l *Lexer) readIdentifierOrKeyword() error {
	start := l.Position()
	end := l.Position()
	lexeme := []rune{}

	for {
		end = l.Position()
		ch, err := l.getChar(false)
		if err != nil {
			return err
		}
		lexeme = append(lexeme, ch)
		if l.eof || (!unicode.IsLetter(l.ch) && !unicode.IsDigit(l.ch)) {
			break
		}
	}

	tok, err := newToken(string(lexeme), start, end)
	if err != nil {
		return err
	}
	l.enqueue(tok)
	l.isFirstToken = false
	return nil
}

func (l *Lexer) readNumber() error {
	start := l.Position()
	end := l.Position()
	lexeme := []rune{}

	for {
		end = l.Position()
		ch, err := l.getChar(false)
		if err != nil {
			return err
		}
		lexeme = append(lexeme, ch)
		if l.eof || !unicode.IsDigit(l.ch) {
			break
		}
	}

	// A decimal point makes a real number only when a digit follows it.
	if !l.eof && l.ch == '.' {
		next, err := l.r.Peek()
		if err != nil && err != io.EOF {
			return err
		}
		if err == nil && unicode.IsDigit(next) {
			ch, err := l.getChar(false)
			if err != nil {
				return err
			}
			lexeme = append(lexeme, ch)

			for {
				end = l.Position()
				ch, err := l.getChar(false)
				if err != nil {
					return err
				}
				lexeme = append(lexeme, ch)
				if l.eof || !unicode.IsDigit(l.ch) {
					break
				}
			}
		}
	}

	// A trailing letter or dot run makes the whole lexeme invalid. The
	// valid prefix is still emitted so parsing can continue.
	if !l.eof && (unicode.IsLetter(l.ch) || l.ch == '.') {
		invalid := []rune{}
		for {
			end = l.Position()
			ch, err := l.getChar(false)
			if err != nil {
				return err
			}
			invalid = append(invalid, ch)
			if l.eof || (!unicode.IsLetter(l.ch) && !unicode.IsDigit(l.ch) && l.ch != '.') {
				break
			}
		}
		l.log.Errorf(start, "%v is not a valid number", string(lexeme)+string(invalid))
	}

	tok, err := newToken(string(lexeme), start, end)
	if err != nil {
		return err
	}
	l.enqueue(tok)
	l.isFirstToken = false
	return nil
}

func (l *Lexer) readSymbol() error {
	pos := l.Position()
	ch, err := l.getChar(false)
	if err != nil {
		return err
	}

	if _, ok := symbolAlphabet[ch]; ok {
		l.enqueue(&Token{
			Type:     TokenTypeSymbol,
			Text:     string(ch),
			StartPos: pos,
			EndPos:   pos,
		})
	} else {
		l.log.Errorf(pos, "invalid character %q", ch)
	}

	l.isFirstToken = false
	return nil
}

func (l *Lexer) readString() error {
	start := l.Position()
	end := l.Position()

	left, err := l.getChar(true)
	if err != nil {
		return err
	}

	value := []rune{}
	for !l.eof && l.ch != '"' {
		end = l.Position()
		ch, err := l.getChar(true)
		if err != nil {
			return err
		}
		value = append(value, ch)
	}

	tok := &Token{
		Type:          TokenTypeStringLiteral,
		StringValue:   string(value),
		LeftDelimiter: left,
		StartPos:      start,
		EndPos:        end,
	}
	if l.eof {
		l.log.Errorf(start, "unterminated string literal")
		tok.Text = string(left) + string(value)
	} else {
		end = l.Position()
		right, err := l.getChar(false)
		if err != nil {
			return err
		}
		tok.RightDelimiter = right
		tok.Text = string(left) + string(value) + string(right)
		tok.EndPos = end
	}

	l.enqueue(tok)
	l.isFirstToken = false
	return nil
}

func (l *Lexer) readCharacter() error {
	start := l.Position()

	left, err := l.getChar(false)
	if err != nil {
		return err
	}
	if l.eof {
		l.log.Errorf(start, "unterminated character literal")
		l.isFirstToken = false
		return nil
	}

	end := l.Position()
	value, err := l.getChar(false)
	if err != nil {
		return err
	}

	tok := &Token{
		Type:          TokenTypeCharacterLiteral,
		CharValue:     value,
		LeftDelimiter: left,
		StartPos:      start,
		EndPos:        end,
	}
	if l.eof || l.ch != '\'' {
		l.log.Errorf(start, "unterminated character literal")
		tok.Text = string(left) + string(value)
	} else {
		end = l.Position()
		right, err := l.getChar(false)
		if err != nil {
			return err
		}
		tok.RightDelimiter = right
		tok.Text = string(left) + string(value) + string(right)
		tok.EndPos = end
	}

	l.enqueue(tok)
	l.isFirstToken = false
	return nil
}

func (l *Lexer) enqueue(tok *Token) {
	l.pending.Enqueue(tok)
}

func (l *Lexer) enqueueMarker(ty TokenType) {
	pos := l.Position()
	l.pending.Enqueue(&Token{
		Type:     ty,
		StartPos: pos,
		EndPos:   pos,
	})
}
