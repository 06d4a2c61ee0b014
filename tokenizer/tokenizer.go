package tokenizer

import (
	"fmt"

	"github.com/emirpasic/gods/stacks/arraystack"

	"github.com/kang-lang/kang/source"
)

// Token is what a token source hands to the parser: a class name keying
// into the grammar's terminal map, the matched lexeme, and its span.
type Token interface {
	TokenClass() string
	Lexeme() string
	Start() source.Position
	End() source.Position
}

// Extractor produces tokens one at a time. It returns a nil token at end of
// input.
type Extractor interface {
	ExtractToken() (Token, error)
	Position() source.Position
}

// TokenStream reads tokens from an extractor and supports transactions: the
// parser can mark a point in the stream, read ahead tentatively, and either
// commit or roll back to the mark. Rolled-back tokens are replayed in their
// original order.
type TokenStream struct {
	ext Extractor

	// buffer holds the tokens extracted while a transaction is open; a nil
	// entry records end of input so a rollback can reproduce it.
	buffer []Token
	cursor int

	markers *arraystack.Stack
}

func New(ext Extractor) *TokenStream {
	return &TokenStream{
		ext:     ext,
		markers: arraystack.New(),
	}
}

// Token returns the next token, or nil at end of input. While a transaction
// is open every extracted token is buffered; without one the buffer stays
// empty and tokens pass straight through.
func (s *TokenStream) Token() (Token, error) {
	if s.cursor < len(s.buffer) {
		tok := s.buffer[s.cursor]
		s.cursor++
		return tok, nil
	}

	tok, err := s.ext.ExtractToken()
	if err != nil {
		return nil, err
	}
	if s.TransactionInProgress() {
		s.buffer = append(s.buffer, tok)
		s.cursor++
	}
	return tok, nil
}

// BeginTransaction marks the current stream position. Transactions nest.
func (s *TokenStream) BeginTransaction() {
	s.markers.Push(s.cursor)
}

// CommitTransaction drops the innermost mark. When the last transaction
// commits, the buffered window is unreachable and is released.
func (s *TokenStream) CommitTransaction() error {
	if _, ok := s.markers.Pop(); !ok {
		return fmt.Errorf("no transaction to commit")
	}
	if !s.TransactionInProgress() {
		s.buffer = nil
		s.cursor = 0
	}
	return nil
}

// RollbackTransaction rewinds the stream to the innermost mark; buffered
// tokens are re-read by subsequent calls to Token.
func (s *TokenStream) RollbackTransaction() error {
	marker, ok := s.markers.Pop()
	if !ok {
		return fmt.Errorf("no transaction to roll back")
	}
	s.cursor = marker.(int)
	return nil
}

func (s *TokenStream) TransactionInProgress() bool {
	return !s.markers.Empty()
}

func (s *TokenStream) TransactionDepth() int {
	return s.markers.Size()
}

func (s *TokenStream) Position() source.Position {
	return s.ext.Position()
}
