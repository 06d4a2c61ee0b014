package driver

import (
	"github.com/kang-lang/kang/source"
	"github.com/kang-lang/kang/tokenizer"
)

// TokenStream is the token source the parser consumes. The transaction
// operations let panic-mode recovery read ahead tentatively and roll the
// stream back while searching for a resynchronization point.
// *tokenizer.TokenStream implements it.
type TokenStream interface {
	// Token returns the next token, or nil at end of input.
	Token() (tokenizer.Token, error)

	BeginTransaction()
	CommitTransaction() error
	RollbackTransaction() error
	TransactionInProgress() bool

	Position() source.Position
}
