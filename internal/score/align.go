package score

// opKind is the alignment operation between two token runs.
type opKind int

const (
	opEqual opKind = iota
	opReplace
	opDelete // expected words with no spoken counterpart
	opInsert // spoken words with no expected counterpart
)

// opcode covers expected[expStart:expEnd] against spoken[spkStart:spkEnd].
type opcode struct {
	kind     opKind
	expStart int
	expEnd   int
	spkStart int
	spkEnd   int
}

// align computes an opcode alignment between two normalized token
// sequences. It builds a longest-common-subsequence table, walks it forward
// emitting per-token operations, then coalesces runs; an adjacent delete
// and insert run merge into a single replace so a wrong word reads as one
// substitution instead of a removal plus an addition. The walk is
// deterministic: ties prefer consuming the expected side first.
func align(expected, spoken []string) []opcode {
	n, m := len(expected), len(spoken)

	// lcs[i][j] = length of the LCS of expected[i:] and spoken[j:].
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if expected[i] == spoken[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var ops []opcode
	i, j := 0, 0
	for i < n || j < m {
		var kind opKind
		switch {
		case i < n && j < m && expected[i] == spoken[j]:
			kind = opEqual
		case j >= m || (i < n && lcs[i+1][j] >= lcs[i][j+1]):
			kind = opDelete
		default:
			kind = opInsert
		}

		ops = appendOp(ops, kind, i, j)
		switch kind {
		case opEqual:
			i++
			j++
		case opDelete:
			i++
		case opInsert:
			j++
		}
	}
	return coalesceReplaces(ops)
}

// appendOp extends the last opcode when the new unit continues its run,
// otherwise starts a new opcode at (i, j).
func appendOp(ops []opcode, kind opKind, i, j int) []opcode {
	if len(ops) > 0 {
		last := &ops[len(ops)-1]
		if last.kind == kind && last.expEnd == i && last.spkEnd == j {
			switch kind {
			case opEqual:
				last.expEnd++
				last.spkEnd++
			case opDelete:
				last.expEnd++
			case opInsert:
				last.spkEnd++
			}
			return ops
		}
	}

	op := opcode{kind: kind, expStart: i, expEnd: i, spkStart: j, spkEnd: j}
	switch kind {
	case opEqual:
		op.expEnd++
		op.spkEnd++
	case opDelete:
		op.expEnd++
	case opInsert:
		op.spkEnd++
	}
	return append(ops, op)
}

// coalesceReplaces merges each adjacent delete+insert pair (in either
// order) into a single replace opcode.
func coalesceReplaces(ops []opcode) []opcode {
	out := ops[:0]
	for _, op := range ops {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.kind == opDelete && op.kind == opInsert {
				last.kind = opReplace
				last.spkStart = op.spkStart
				last.spkEnd = op.spkEnd
				continue
			}
			if last.kind == opInsert && op.kind == opDelete {
				last.kind = opReplace
				last.expStart = op.expStart
				last.expEnd = op.expEnd
				continue
			}
		}
		out = append(out, op)
	}
	return out
}
