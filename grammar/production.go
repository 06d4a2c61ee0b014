package grammar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/kang-lang/kang/grammar/symbol"
)

type productionID [32]byte

func (id productionID) String() string {
	return hex.EncodeToString(id[:])
}

func genProductionID(lhs symbol.Symbol, rhs []symbol.Symbol, preserved []bool) productionID {
	seq := lhs.Byte()
	for i, sym := range rhs {
		seq = append(seq, sym.Byte()...)
		if preserved[i] {
			seq = append(seq, 1)
		} else {
			seq = append(seq, 0)
		}
	}
	return productionID(sha256.Sum256(seq))
}

type productionNum uint16

const (
	productionNumNil   = productionNum(0)
	productionNumStart = productionNum(1)
	productionNumMin   = productionNum(2)
)

func (n productionNum) Int() int {
	return int(n)
}

// production is a plain BNF rule. preserved is parallel to rhs and is
// meaningful only at terminal positions: a false entry means the matched
// token is dropped from the parse tree.
type production struct {
	id        productionID
	num       productionNum
	lhs       symbol.Symbol
	rhs       []symbol.Symbol
	rhsLen    int
	preserved []bool
	isError   bool
}

func newProduction(lhs symbol.Symbol, rhs []symbol.Symbol, preserved []bool) (*production, error) {
	if lhs.IsNil() {
		return nil, fmt.Errorf("LHS must be a non-nil symbol; RHS: %v", rhs)
	}
	if len(rhs) != len(preserved) {
		return nil, fmt.Errorf("preserved flags must be parallel to the RHS; RHS: %v", rhs)
	}
	isError := false
	for _, sym := range rhs {
		if sym.IsNil() {
			return nil, fmt.Errorf("a symbol of RHS must be a non-nil symbol; LHS: %v, RHS: %v", lhs, rhs)
		}
		if sym.IsError() {
			isError = true
		}
	}

	return &production{
		id:        genProductionID(lhs, rhs, preserved),
		lhs:       lhs,
		rhs:       rhs,
		rhsLen:    len(rhs),
		preserved: preserved,
		isError:   isError,
	}, nil
}

func (p *production) isEmpty() bool {
	return p.rhsLen == 0
}

type productionSet struct {
	lhs2Prods map[symbol.Symbol][]*production
	id2Prod   map[productionID]*production
	num2Prod  map[productionNum]*production
	num       productionNum
}

func newProductionSet() *productionSet {
	return &productionSet{
		lhs2Prods: map[symbol.Symbol][]*production{},
		id2Prod:   map[productionID]*production{},
		num2Prod:  map[productionNum]*production{},
		num:       productionNumMin,
	}
}

func (ps *productionSet) append(prod *production) bool {
	if _, ok := ps.id2Prod[prod.id]; ok {
		return false
	}

	if prod.lhs.IsStart() {
		prod.num = productionNumStart
	} else {
		prod.num = ps.num
		ps.num++
	}

	ps.lhs2Prods[prod.lhs] = append(ps.lhs2Prods[prod.lhs], prod)
	ps.id2Prod[prod.id] = prod
	ps.num2Prod[prod.num] = prod

	return true
}

func (ps *productionSet) findByID(id productionID) (*production, bool) {
	prod, ok := ps.id2Prod[id]
	return prod, ok
}

func (ps *productionSet) findByNum(num productionNum) (*production, bool) {
	prod, ok := ps.num2Prod[num]
	return prod, ok
}

func (ps *productionSet) findByLHS(lhs symbol.Symbol) ([]*production, bool) {
	if lhs.IsNil() {
		return nil, false
	}

	prods, ok := ps.lhs2Prods[lhs]
	return prods, ok
}

func (ps *productionSet) getAllProductions() map[productionID]*production {
	return ps.id2Prod
}
