package fswatch

// OpString returns a string label for an Op.
func OpString(op Op) string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// rank orders ops by how much they say about the final state of a file.
func rank(op Op) int {
	switch op {
	case OpRemove:
		return 5
	case OpRename:
		return 4
	case OpCreate:
		return 3
	case OpWrite:
		return 2
	case OpChmod:
		return 1
	default:
		return 0
	}
}

// mergeOp folds a new op into a pending one during debounce. A later
// create after a remove means the file is back, so it wins.
func mergeOp(current, next Op) Op {
	if current == OpRemove && next == OpCreate {
		return next
	}
	if rank(next) >= rank(current) {
		return next
	}
	return current
}
