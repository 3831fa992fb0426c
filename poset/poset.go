// Package poset implements the directed acyclic nesting graph over a model
// family. An edge (super -> sub) records that sub is attainable as a singular
// boundary point of super. Only cycles are illegal; disconnected graphs are
// valid posets.
package poset

import (
	"fmt"
	"sort"

	"gosbic/internal/errors"
)

// Vertex visitation states for cycle detection.
const (
	white = iota // not visited
	gray         // on the recursion stack
	black        // fully explored
)

// DAG is an immutable nesting graph over model ids 1..n.
type DAG struct {
	n      int
	subs   [][]int // subs[i]: direct submodels of i (edge targets)
	supers [][]int // supers[i]: direct supermodels of i
	topo   []int   // simplest-first total order, ties by ascending id
}

// Edge is a single (Super -> Sub) nesting relation.
type Edge struct {
	Super int
	Sub   int
}

// NewDAG builds a nesting graph from an explicit edge list.
// Returns MalformedPosetError if an id is out of range, an edge is a
// self-loop, or the edges contain a cycle.
func NewDAG(numModels int, edges []Edge) (*DAG, error) {
	if numModels < 1 {
		return nil, errors.MalformedPoset(fmt.Sprintf("poset needs at least one model, got %d", numModels))
	}
	d := &DAG{
		n:      numModels,
		subs:   make([][]int, numModels+1),
		supers: make([][]int, numModels+1),
	}
	seen := make(map[Edge]bool, len(edges))
	for _, e := range edges {
		if e.Super < 1 || e.Super > numModels || e.Sub < 1 || e.Sub > numModels {
			return nil, errors.MalformedPoset(fmt.Sprintf("edge (%d -> %d) references a model outside [1, %d]", e.Super, e.Sub, numModels))
		}
		if e.Super == e.Sub {
			return nil, errors.MalformedPoset(fmt.Sprintf("self-loop on model %d", e.Super))
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		d.subs[e.Super] = append(d.subs[e.Super], e.Sub)
		d.supers[e.Sub] = append(d.supers[e.Sub], e.Super)
	}
	for i := 1; i <= numModels; i++ {
		sort.Ints(d.subs[i])
		sort.Ints(d.supers[i])
	}
	if err := d.checkAcyclic(); err != nil {
		return nil, err
	}
	d.topo = d.computeTopOrder()
	return d, nil
}

// NewChain builds the linear poset of a complexity-indexed nested family:
// model i+1 contains model i for every i.
func NewChain(numModels int) *DAG {
	edges := make([]Edge, 0, numModels-1)
	for i := 1; i < numModels; i++ {
		edges = append(edges, Edge{Super: i + 1, Sub: i})
	}
	d, err := NewDAG(numModels, edges)
	if err != nil {
		// A chain over valid ids cannot be cyclic.
		panic(err)
	}
	return d
}

// checkAcyclic runs a coloring DFS along super -> sub edges.
func (d *DAG) checkAcyclic() error {
	state := make([]int, d.n+1)
	var visit func(v int) error
	visit = func(v int) error {
		if state[v] == gray {
			return errors.MalformedPoset(fmt.Sprintf("cycle through model %d", v))
		}
		if state[v] == black {
			return nil
		}
		state[v] = gray
		for _, s := range d.subs[v] {
			if err := visit(s); err != nil {
				return err
			}
		}
		state[v] = black
		return nil
	}
	for v := 1; v <= d.n; v++ {
		if state[v] == white {
			if err := visit(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// computeTopOrder runs Kahn's algorithm on the sub -> super direction so the
// order lists simpler models before the models that contain them. The
// smallest available id is always taken first, which makes the order total
// and deterministic for incomparable models.
func (d *DAG) computeTopOrder() []int {
	indeg := make([]int, d.n+1)
	for v := 1; v <= d.n; v++ {
		indeg[v] = len(d.subs[v])
	}
	ready := make([]int, 0, d.n)
	for v := 1; v <= d.n; v++ {
		if indeg[v] == 0 {
			ready = append(ready, v)
		}
	}
	order := make([]int, 0, d.n)
	for len(ready) > 0 {
		sort.Ints(ready)
		v := ready[0]
		ready = ready[1:]
		order = append(order, v)
		for _, s := range d.supers[v] {
			indeg[s]--
			if indeg[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	return order
}

// NumModels returns the number of models in the poset.
func (d *DAG) NumModels() int {
	return d.n
}

// TopOrder returns the precomputed simplest-first total order.
func (d *DAG) TopOrder() []int {
	out := make([]int, len(d.topo))
	copy(out, d.topo)
	return out
}

// Supers returns the direct supermodels of model id (empty for a maximal
// element). Returns InvalidModelIdError for an out-of-range id.
func (d *DAG) Supers(id int) ([]int, error) {
	if err := d.checkID(id); err != nil {
		return nil, err
	}
	out := make([]int, len(d.supers[id]))
	copy(out, d.supers[id])
	return out, nil
}

// Subs returns the direct submodels of model id (empty for a minimal element).
func (d *DAG) Subs(id int) ([]int, error) {
	if err := d.checkID(id); err != nil {
		return nil, err
	}
	out := make([]int, len(d.subs[id]))
	copy(out, d.subs[id])
	return out, nil
}

// Ancestors returns every model transitively containing id, ascending by id.
// The model itself is not included.
func (d *DAG) Ancestors(id int) ([]int, error) {
	if err := d.checkID(id); err != nil {
		return nil, err
	}
	return d.closure(id, d.supers), nil
}

// Descendants returns every model transitively contained in id, ascending by
// id. The model itself is not included.
func (d *DAG) Descendants(id int) ([]int, error) {
	if err := d.checkID(id); err != nil {
		return nil, err
	}
	return d.closure(id, d.subs), nil
}

// Reachable reports whether sub is contained in super, i.e. whether a
// directed super -> sub path exists. A model contains itself.
func (d *DAG) Reachable(super, sub int) (bool, error) {
	if err := d.checkID(super); err != nil {
		return false, err
	}
	if err := d.checkID(sub); err != nil {
		return false, err
	}
	if super == sub {
		return true, nil
	}
	for _, a := range d.closure(sub, d.supers) {
		if a == super {
			return true, nil
		}
	}
	return false, nil
}

// closure collects the transitive neighborhood of id along next edges.
func (d *DAG) closure(id int, next [][]int) []int {
	visited := make([]bool, d.n+1)
	stack := append([]int(nil), next[id]...)
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[v] {
			continue
		}
		visited[v] = true
		stack = append(stack, next[v]...)
	}
	out := make([]int, 0)
	for v := 1; v <= d.n; v++ {
		if visited[v] {
			out = append(out, v)
		}
	}
	return out
}

func (d *DAG) checkID(id int) error {
	if id < 1 || id > d.n {
		return errors.InvalidModelID(id, d.n)
	}
	return nil
}
