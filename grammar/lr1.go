package grammar

import (
	"fmt"
	"sort"

	"github.com/kang-lang/kang/grammar/symbol"
)

type lr1Automaton struct {
	initialState kernelID
	states       map[kernelID]*lrState
}

// genLR1Automaton generates the canonical LR(1) state collection: it starts
// from closure({[S' →・S, @end]}) and keeps applying goto until no new state
// appears. States are interned by the content hash of their kernels, and
// state numbers follow discovery order.
func genLR1Automaton(prods *productionSet, first *firstSet, startSym symbol.Symbol) (*lr1Automaton, error) {
	if !startSym.IsStart() {
		return nil, fmt.Errorf("passed symbol is not an augmented start symbol")
	}

	automaton := &lr1Automaton{
		states: map[kernelID]*lrState{},
	}

	currentState := stateNumInitial
	knownKernels := map[kernelID]struct{}{}
	uncheckedKernels := []*kernel{}

	// Generate the initial kernel [S' →・S, @end].
	{
		startProds, _ := prods.findByLHS(startSym)
		initialItem, err := newLR1Item(startProds[0], 0, symbol.SymbolEOF)
		if err != nil {
			return nil, err
		}

		k, err := newKernel([]*lrItem{initialItem})
		if err != nil {
			return nil, err
		}

		automaton.initialState = k.id
		knownKernels[k.id] = struct{}{}
		uncheckedKernels = append(uncheckedKernels, k)
	}

	for len(uncheckedKernels) > 0 {
		nextUncheckedKernels := []*kernel{}
		for _, k := range uncheckedKernels {
			state, neighbours, err := genStateAndNeighbourKernels(k, prods, first)
			if err != nil {
				return nil, err
			}
			state.num = currentState
			currentState = currentState.next()

			automaton.states[state.id] = state

			for _, k := range neighbours {
				if _, known := knownKernels[k.id]; known {
					continue
				}
				knownKernels[k.id] = struct{}{}
				nextUncheckedKernels = append(nextUncheckedKernels, k)
			}
		}
		uncheckedKernels = nextUncheckedKernels
	}

	return automaton, nil
}

func genStateAndNeighbourKernels(k *kernel, prods *productionSet, first *firstSet) (*lrState, []*kernel, error) {
	items, err := genLR1Closure(k, prods, first)
	if err != nil {
		return nil, nil, err
	}
	neighbours, err := genNeighbourKernels(items, prods)
	if err != nil {
		return nil, nil, err
	}

	next := map[symbol.Symbol]kernelID{}
	kernels := []*kernel{}
	for _, n := range neighbours {
		next[n.symbol] = n.kernel.id
		kernels = append(kernels, n.kernel)
	}

	var reducible []*lrItem
	isErrorTrapper := false
	for _, item := range items {
		if item.dottedSymbol.IsError() {
			isErrorTrapper = true
		}
		if item.reducible {
			reducible = append(reducible, item)
		}
	}

	return &lrState{
		kernel:         k,
		next:           next,
		closure:        items,
		reducible:      reducible,
		isErrorTrapper: isErrorTrapper,
	}, kernels, nil
}

// genLR1Closure extends the kernel items with [B →・γ, b] for every item
// [A → α・B β, a] and every b ∈ FIRST(βa), to a fixed point.
func genLR1Closure(k *kernel, prods *productionSet, first *firstSet) ([]*lrItem, error) {
	items := []*lrItem{}
	knownItems := map[lrItemID]struct{}{}
	uncheckedItems := []*lrItem{}
	for _, item := range k.items {
		items = append(items, item)
		knownItems[item.id] = struct{}{}
		uncheckedItems = append(uncheckedItems, item)
	}
	for len(uncheckedItems) > 0 {
		nextUncheckedItems := []*lrItem{}
		for _, item := range uncheckedItems {
			if !item.dottedSymbol.IsVariable() {
				continue
			}

			lookAheads, err := genLookAheads(item, prods, first)
			if err != nil {
				return nil, err
			}

			ps, _ := prods.findByLHS(item.dottedSymbol)
			for _, prod := range ps {
				for _, la := range lookAheads {
					newItem, err := newLR1Item(prod, 0, la)
					if err != nil {
						return nil, err
					}
					if _, exist := knownItems[newItem.id]; exist {
						continue
					}
					items = append(items, newItem)
					knownItems[newItem.id] = struct{}{}
					nextUncheckedItems = append(nextUncheckedItems, newItem)
				}
			}
		}
		uncheckedItems = nextUncheckedItems
	}

	return items, nil
}

// genLookAheads computes FIRST(βa) for an item [A → α・B β, a]: the FIRST
// set of the RHS suffix after the dotted symbol, plus the item's own
// look-ahead when that suffix is nullable.
func genLookAheads(item *lrItem, prods *productionSet, first *firstSet) ([]symbol.Symbol, error) {
	prod, ok := prods.findByID(item.prod)
	if !ok {
		return nil, fmt.Errorf("a production was not found: %v", item.prod)
	}

	e, err := first.find(prod, item.dot+1)
	if err != nil {
		return nil, err
	}

	las := map[symbol.Symbol]struct{}{}
	for sym := range e.symbols {
		las[sym] = struct{}{}
	}
	if e.empty {
		las[item.lookAhead] = struct{}{}
	}

	sorted := make([]symbol.Symbol, 0, len(las))
	for sym := range las {
		sorted = append(sorted, sym)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	return sorted, nil
}

type neighbourKernel struct {
	symbol symbol.Symbol
	kernel *kernel
}

// genNeighbourKernels builds goto(I, X) for every symbol X appearing just
// after a dot: each item [A → α・X β, a] advances to [A → α X・β, a].
func genNeighbourKernels(items []*lrItem, prods *productionSet) ([]*neighbourKernel, error) {
	kItemMap := map[symbol.Symbol][]*lrItem{}
	for _, item := range items {
		if item.dottedSymbol.IsNil() {
			continue
		}
		prod, ok := prods.findByID(item.prod)
		if !ok {
			return nil, fmt.Errorf("a production was not found: %v", item.prod)
		}
		kItem, err := newLR1Item(prod, item.dot+1, item.lookAhead)
		if err != nil {
			return nil, err
		}
		kItemMap[item.dottedSymbol] = append(kItemMap[item.dottedSymbol], kItem)
	}

	nextSyms := []symbol.Symbol{}
	for sym := range kItemMap {
		nextSyms = append(nextSyms, sym)
	}
	sort.Slice(nextSyms, func(i, j int) bool {
		return nextSyms[i] < nextSyms[j]
	})

	kernels := []*neighbourKernel{}
	for _, sym := range nextSyms {
		k, err := newKernel(kItemMap[sym])
		if err != nil {
			return nil, err
		}
		kernels = append(kernels, &neighbourKernel{
			symbol: sym,
			kernel: k,
		})
	}

	return kernels, nil
}
