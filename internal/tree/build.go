package tree

import (
	"fmt"
	"sort"

	"github.com/gammazero/toposort"

	"github.com/ferrovia/tasktree/internal/task"
)

// BuildTree validates a flat record set and returns the tree view.
// Rejections, in check order: duplicate ids, root count != 1, tasks
// unreachable from the root via parent links, dependency references
// outside the set, cycles in the dependency graph. Validation never
// mutates the records, so re-validating an already-validated set
// always succeeds.
func BuildTree(records []*task.Task) (*TaskTree, error) {
	if len(records) == 0 {
		return nil, &NoRootError{}
	}

	byID := make(map[string]*task.Task, len(records))
	for _, rec := range records {
		if _, exists := byID[rec.ID]; exists {
			return nil, &DuplicateIDError{TaskID: rec.ID}
		}
		byID[rec.ID] = rec
	}

	// A record is a root when its parent is empty or absent from the set.
	var roots []string
	for _, rec := range records {
		if rec.ParentID == "" {
			roots = append(roots, rec.ID)
		} else if _, ok := byID[rec.ParentID]; !ok {
			roots = append(roots, rec.ID)
		}
	}
	switch {
	case len(roots) == 0:
		return nil, &NoRootError{}
	case len(roots) > 1:
		sort.Strings(roots)
		return nil, &MultipleRootsError{RootIDs: roots}
	}
	root := byID[roots[0]]

	if err := checkReachable(root, records, byID); err != nil {
		return nil, err
	}

	for _, rec := range records {
		for _, dep := range rec.Dependencies {
			if _, ok := byID[dep.TaskID]; !ok {
				return nil, &UnknownDependencyError{TaskID: rec.ID, DependencyID: dep.TaskID}
			}
		}
	}

	if err := checkAcyclic(records, byID); err != nil {
		return nil, err
	}

	return newTree(root, records), nil
}

// checkReachable walks parent->children links from the root and
// verifies every record is reached. Parent chains that loop among
// non-root records are the usual culprit.
func checkReachable(root *task.Task, records []*task.Task, byID map[string]*task.Task) error {
	children := make(map[string][]string)
	for _, rec := range records {
		if rec.ID == root.ID {
			continue
		}
		children[rec.ParentID] = append(children[rec.ParentID], rec.ID)
	}

	seen := map[string]bool{root.ID: true}
	queue := []string{root.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, childID := range children[id] {
			if !seen[childID] {
				seen[childID] = true
				queue = append(queue, childID)
			}
		}
	}

	if len(seen) == len(records) {
		return nil
	}
	var unreached []string
	for _, rec := range records {
		if !seen[rec.ID] {
			unreached = append(unreached, rec.ID)
		}
	}
	sort.Strings(unreached)
	return &UnreachableTaskError{TaskIDs: unreached}
}

// checkAcyclic runs a topological sort over dependency edges and, on
// failure, a DFS with color marking to name the cycle members.
func checkAcyclic(records []*task.Task, byID map[string]*task.Task) error {
	var edges []toposort.Edge
	for _, rec := range records {
		if len(rec.Dependencies) == 0 {
			edges = append(edges, toposort.Edge{nil, rec.ID})
			continue
		}
		for _, dep := range rec.Dependencies {
			// Edge (dep, task): the dependency must come first.
			edges = append(edges, toposort.Edge{dep.TaskID, rec.ID})
		}
	}

	if _, err := toposort.Toposort(edges); err == nil {
		return nil
	}

	if cycle := findCycle(records, byID); cycle != nil {
		return &CircularDependencyError{Cycle: cycle}
	}
	// Toposort reported a cycle the DFS could not reproduce; should not
	// happen, but never report success on a sort failure.
	return &CircularDependencyError{Cycle: []string{"unidentified"}}
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS path
	colorBlack        // fully explored
)

// findCycle returns the members of one dependency cycle in traversal
// order, or nil if the graph is acyclic.
func findCycle(records []*task.Task, byID map[string]*task.Task) []string {
	color := make(map[string]int, len(records))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = colorGray
		stack = append(stack, id)

		for _, dep := range byID[id].Dependencies {
			switch color[dep.TaskID] {
			case colorWhite:
				if cycle := visit(dep.TaskID); cycle != nil {
					return cycle
				}
			case colorGray:
				// Found a back edge; the cycle is the stack suffix
				// starting at the gray node.
				for i, sid := range stack {
					if sid == dep.TaskID {
						return append(append([]string(nil), stack[i:]...), dep.TaskID)
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = colorBlack
		return nil
	}

	// Deterministic start order keeps the reported cycle stable.
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == colorWhite {
			stack = stack[:0]
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// CheckDependentClosure guards partial submissions: every task in the
// wider universe that depends, directly or transitively, on a task in
// the submitted set must itself be in the set, otherwise its required
// inputs would be regenerated without it ever re-running. Universe
// records whose ids are in the set are ignored (the set versions win).
func CheckDependentClosure(set map[string]*task.Task, universe []*task.Task) error {
	// Reverse index over the universe: dependency id -> dependent ids.
	dependents := make(map[string][]string)
	for _, rec := range universe {
		if _, inSet := set[rec.ID]; inSet {
			continue
		}
		for _, dep := range rec.Dependencies {
			dependents[dep.TaskID] = append(dependents[dep.TaskID], rec.ID)
		}
	}

	for id := range set {
		if missing := dependents[id]; len(missing) > 0 {
			sort.Strings(missing)
			return &MissingDependentError{TaskID: id, MissingDependents: missing}
		}
	}
	return nil
}

// String formatting helper shared by CLI status output.
func Describe(t *TaskTree) string {
	return fmt.Sprintf("tree rooted at %s with %d tasks", t.Root().ID, t.Len())
}
