package uow

import (
	"github.com/goentity/entitymap/metadata"
	"github.com/goentity/entitymap/ormerr"
)

type typeNode struct {
	typeID       string
	dependencies []string
	visited      bool
	inStack      bool
}

// typeDependencies returns the type_ids d's owning-side relations point
// at: a record of type d.TypeID carries a foreign key into each of
// these, so one of them must be inserted first (and removed last).
func typeDependencies(d *metadata.Descriptor) []string {
	var deps []string
	for _, fieldName := range d.RelationOrder {
		rel := d.Relations[fieldName]
		if rel.JoinColumn == nil {
			continue // inverse side, or no owning foreign key on this type
		}
		if rel.TargetTypeID == d.TypeID {
			continue // self-reference: no cross-type ordering needed
		}
		deps = append(deps, rel.TargetTypeID)
	}
	return deps
}

// topoOrder sorts entries so that, for every owning foreign key between
// two scheduled types, the referenced type's entries come first.
// Entries of the same type keep their original relative order.
func topoOrder(entries []entry) ([]entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	byType := map[string][]entry{}
	var typeOrder []string
	descriptors := map[string]*metadata.Descriptor{}
	for _, e := range entries {
		if _, ok := byType[e.d.TypeID]; !ok {
			typeOrder = append(typeOrder, e.d.TypeID)
			descriptors[e.d.TypeID] = e.d
		}
		byType[e.d.TypeID] = append(byType[e.d.TypeID], e)
	}

	nodes := make(map[string]*typeNode, len(typeOrder))
	for _, id := range typeOrder {
		nodes[id] = &typeNode{typeID: id, dependencies: typeDependencies(descriptors[id])}
	}

	var sortedTypes []string
	var stack []string
	var visit func(id string) error
	visit = func(id string) error {
		node, ok := nodes[id]
		if !ok {
			return nil // depends on a type with nothing scheduled; ignore
		}
		if node.inStack {
			return &ormerr.CascadeCycle{Cycle: append(append([]string{}, stack...), id)}
		}
		if node.visited {
			return nil
		}
		node.inStack = true
		stack = append(stack, id)
		for _, dep := range node.dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		node.inStack = false
		node.visited = true
		sortedTypes = append(sortedTypes, id)
		return nil
	}

	for _, id := range typeOrder {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	out := make([]entry, 0, len(entries))
	for _, id := range sortedTypes {
		out = append(out, byType[id]...)
	}
	return out, nil
}
