package coa

import "context"

// ChildLookup resolves direct children of an account. Implemented by the
// repository and by in-memory fixtures in tests.
type ChildLookup interface {
	Children(ctx context.Context, parentID int64) ([]Account, error)
}

// ValidateHierarchy checks a candidate (account, parent) pair: no self-parent,
// matching account types, and no cycle (the parent must not already be a
// descendant of the account).
func ValidateHierarchy(ctx context.Context, lookup ChildLookup, account Account, parent Account) error {
	if parent.ID == account.ID {
		return ErrSelfParent
	}
	if parent.TypeName != account.TypeName {
		return ErrTypeMismatch
	}
	inSubtree, err := isDescendant(ctx, lookup, account.ID, parent.ID)
	if err != nil {
		return err
	}
	if inSubtree {
		return ErrCircularReference
	}
	return nil
}

// isDescendant walks the subtree below rootID looking for targetID. The
// visited set guards against malformed legacy data that already contains a
// cycle, so the walk always terminates.
func isDescendant(ctx context.Context, lookup ChildLookup, rootID, targetID int64) (bool, error) {
	visited := map[int64]bool{rootID: true}
	stack := []int64{rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		children, err := lookup.Children(ctx, id)
		if err != nil {
			return false, err
		}
		for _, child := range children {
			if child.ID == targetID {
				return true, nil
			}
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			stack = append(stack, child.ID)
		}
	}
	return false, nil
}
