package grammar

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"

	"github.com/kang-lang/kang/grammar/symbol"
)

type lrItemID [32]byte

func (id lrItemID) String() string {
	return fmt.Sprintf("%x", id.num())
}

func (id lrItemID) num() uint32 {
	return binary.LittleEndian.Uint32(id[:])
}

// lrItem is a canonical LR(1) item [A → α・β, a]: a production, a dot
// position, and a single look-ahead terminal.
type lrItem struct {
	id   lrItemID
	prod productionID

	// E → E + T
	//
	// Dot | Dotted Symbol | Item
	// ----+---------------+------------
	// 0   | E             | E →・E + T
	// 1   | +             | E → E・+ T
	// 2   | T             | E → E +・T
	// 3   | Nil           | E → E + T・
	dot          int
	dottedSymbol symbol.Symbol

	// lookAhead is the terminal the item is reducible on.
	lookAhead symbol.Symbol

	// When initial is true, the item is [S' →・S, @end].
	initial bool

	// When reducible is true, the dot is at the end of the RHS.
	reducible bool

	// When kernel is true, the item is a kernel item.
	kernel bool
}

func newLR1Item(prod *production, dot int, lookAhead symbol.Symbol) (*lrItem, error) {
	if prod == nil {
		return nil, fmt.Errorf("production must be non-nil")
	}
	if dot < 0 || dot > prod.rhsLen {
		return nil, fmt.Errorf("dot must be between 0 and %v", prod.rhsLen)
	}
	if !lookAhead.IsTerminal() {
		return nil, fmt.Errorf("a look-ahead symbol must be a terminal: %v", lookAhead)
	}

	var id lrItemID
	{
		b := []byte{}
		b = append(b, prod.id[:]...)
		bDot := make([]byte, 8)
		binary.LittleEndian.PutUint64(bDot, uint64(dot))
		b = append(b, bDot...)
		b = append(b, lookAhead.Byte()...)
		id = sha256.Sum256(b)
	}

	dottedSymbol := symbol.SymbolNil
	if dot < prod.rhsLen {
		dottedSymbol = prod.rhs[dot]
	}

	item := &lrItem{
		id:           id,
		prod:         prod.id,
		dot:          dot,
		dottedSymbol: dottedSymbol,
		lookAhead:    lookAhead,
		initial:      prod.lhs.IsStart() && dot == 0,
		reducible:    dot == prod.rhsLen,
		kernel:       prod.lhs.IsStart() || dot > 0,
	}

	return item, nil
}

type kernelID [32]byte

func (id kernelID) String() string {
	return fmt.Sprintf("%x", binary.LittleEndian.Uint32(id[:]))
}

// kernel is the canonical identity of a state: the sorted set of its kernel
// items, interned by a content hash.
type kernel struct {
	id    kernelID
	items []*lrItem
}

func newKernel(items []*lrItem) (*kernel, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("a kernel needs at least one item")
	}

	// Remove duplicates from items.
	var sortedItems []*lrItem
	{
		m := map[lrItemID]*lrItem{}
		for _, item := range items {
			if !item.kernel {
				return nil, fmt.Errorf("not a kernel item: %v", item)
			}
			m[item.id] = item
		}
		sortedItems = []*lrItem{}
		for _, item := range m {
			sortedItems = append(sortedItems, item)
		}
		sort.Slice(sortedItems, func(i, j int) bool {
			for k := 0; k < len(sortedItems[i].id); k++ {
				if sortedItems[i].id[k] == sortedItems[j].id[k] {
					continue
				}
				return sortedItems[i].id[k] < sortedItems[j].id[k]
			}
			return false
		})
	}

	var id kernelID
	{
		b := []byte{}
		for _, item := range sortedItems {
			b = append(b, item.id[:]...)
		}
		id = sha256.Sum256(b)
	}

	return &kernel{
		id:    id,
		items: sortedItems,
	}, nil
}

type stateNum int

const stateNumInitial = stateNum(0)

func (n stateNum) Int() int {
	return int(n)
}

func (n stateNum) String() string {
	return strconv.Itoa(int(n))
}

func (n stateNum) next() stateNum {
	return stateNum(n + 1)
}

type lrState struct {
	*kernel
	num  stateNum
	next map[symbol.Symbol]kernelID

	// closure holds the full item set of the state, kernel items included.
	closure []*lrItem

	// reducible holds the closure items with the dot at the end of the RHS,
	// each carrying its own look-ahead.
	reducible []*lrItem

	// When isErrorTrapper is true, the state has an item of the form
	// A → α・@error β and can begin error recovery.
	isErrorTrapper bool
}
