package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/compute"
	"github.com/grafana/vexec/pkg/engine/expr"
)

// JoinOptions configures a [HashJoin].
type JoinOptions struct {
	// BatchSize is the maximum number of rows per output batch. Zero selects
	// the batch size of the pipeline resources.
	BatchSize int

	// BuildQualifier and ProbeQualifier prefix output column names that
	// occur on both sides, as in "build.id" and "probe.id". They default to
	// "build" and "probe".
	BuildQualifier string
	ProbeQualifier string
}

type joinKind int

const (
	joinInner joinKind = iota
	joinLeftOuter
)

var joinKindStrings = map[joinKind]string{
	joinInner:     "inner_hash_join",
	joinLeftOuter: "left_outer_hash_join",
}

func (k joinKind) String() string {
	if s, ok := joinKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("joinKind(%d)", k)
}

// HashJoin joins two inputs on equality of key expressions.
//
// Open fully drains the build input into a hash table. Next then streams
// the probe input and emits, for every probe row, one output row per
// matching build row. Output rows hold the build columns followed by the
// probe columns. Keys containing a null never match.
//
// HashJoin is created by [NewInnerHashJoin] or [NewLeftOuterHashJoin].
type HashJoin struct {
	lifecycle
	kind      joinKind
	build     Operator
	probe     Operator
	buildKeys []expr.Expression
	probeKeys []expr.Expression
	opts      JoinOptions
	schema    *columnar.Schema

	res       Resources
	evaluator *expr.Evaluator

	table *columnar.Batch // all build rows
	index *keyIndex
	rows  [][]int // key id -> build rows

	current  *columnar.Batch // probe batch being joined
	keyCols  []*columnar.Vector
	keys     *keyReader
	row      int   // next row of current to look up
	matches  []int // build rows matching the last looked up row
	matchPos int

	buildIdx, probeIdx []int
}

var _ Operator = (*HashJoin)(nil)

// NewInnerHashJoin returns a join producing only rows whose keys match on
// both sides.
func NewInnerHashJoin(build, probe Operator, buildKeys, probeKeys []expr.Expression, opts JoinOptions) (*HashJoin, error) {
	return newHashJoin(joinInner, build, probe, buildKeys, probeKeys, opts)
}

// NewLeftOuterHashJoin returns a join that keeps every probe row. Probe rows
// without a match are emitted once with all build columns null; the build
// columns of the output are therefore nullable.
func NewLeftOuterHashJoin(build, probe Operator, buildKeys, probeKeys []expr.Expression, opts JoinOptions) (*HashJoin, error) {
	return newHashJoin(joinLeftOuter, build, probe, buildKeys, probeKeys, opts)
}

func newHashJoin(kind joinKind, build, probe Operator, buildKeys, probeKeys []expr.Expression, opts JoinOptions) (*HashJoin, error) {
	if opts.BuildQualifier == "" {
		opts.BuildQualifier = "build"
	}
	if opts.ProbeQualifier == "" {
		opts.ProbeQualifier = "probe"
	}
	schema, err := build.Schema().Concat(probe.Schema(), opts.BuildQualifier, opts.ProbeQualifier, kind == joinLeftOuter)
	if err != nil {
		return nil, err
	}
	return &HashJoin{
		lifecycle: newLifecycle(kind.String(), build, probe),
		kind:      kind,
		build:     build,
		probe:     probe,
		buildKeys: buildKeys,
		probeKeys: probeKeys,
		opts:      opts,
		schema:    schema,
	}, nil
}

// Schema implements [Operator].
func (j *HashJoin) Schema() *columnar.Schema { return j.schema }

// Open implements [Operator]. Open returns an error wrapping
// [errs.ErrOperatorInit] if the key expressions of the two sides differ in
// number or type.
func (j *HashJoin) Open(ctx context.Context) error {
	if err := j.open(ctx); err != nil {
		return err
	}
	if len(j.buildKeys) == 0 || len(j.buildKeys) != len(j.probeKeys) {
		return j.initError("need the same non-zero number of keys on both sides, got %d and %d", len(j.buildKeys), len(j.probeKeys))
	}
	for i := range j.buildKeys {
		bk, pk := j.buildKeys[i], j.probeKeys[i]
		if bk.Type() != pk.Type() {
			return j.initError("key %d has type %s on the build side and %s on the probe side", i, bk.Type(), pk.Type())
		}
		if err := expr.Bind(bk, j.build.Schema()); err != nil {
			return j.initError("build key %s: %v", bk, err)
		}
		if err := expr.Bind(pk, j.probe.Schema()); err != nil {
			return j.initError("probe key %s: %v", pk, err)
		}
	}

	j.res = ResourcesFromContext(ctx)
	j.evaluator = j.res.evaluator()
	if j.opts.BatchSize <= 0 {
		j.opts.BatchSize = j.res.BatchSize
	}
	j.keys = newKeyReader(len(j.probeKeys))

	if err := j.buildTable(ctx); err != nil {
		j.releaseState()
		j.fail()
		return err
	}
	return nil
}

// buildTable drains the build input and indexes its rows by key.
func (j *HashJoin) buildTable(ctx context.Context) error {
	var (
		batches []*columnar.Batch
		total   int
	)
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	for {
		batch, err := j.build.Next(ctx)
		if errors.Is(err, EOF) {
			break
		} else if err != nil {
			return err
		}
		batches = append(batches, batch)
		total += batch.NumRows()
	}

	table, err := columnar.NewBatch(j.res.Allocator, j.build.Schema(), total)
	if err != nil {
		return err
	}
	j.table = table
	if err := table.SetNumRows(0); err != nil {
		return err
	}
	for _, b := range batches {
		for i, col := range b.Columns() {
			if err := table.Column(i).AppendRange(col, 0, b.NumRows()); err != nil {
				return err
			}
		}
	}
	if err := table.SetNumRows(total); err != nil {
		return err
	}

	keyCols := make([]*columnar.Vector, len(j.buildKeys))
	defer func() {
		for _, c := range keyCols {
			c.Release()
		}
	}()
	for i, k := range j.buildKeys {
		vec, err := j.evaluator.Evaluate(k, table)
		if err != nil {
			return err
		}
		keyCols[i] = vec
	}

	j.index = newKeyIndex()
	keys := newKeyReader(len(j.buildKeys))
	keys.Reset(keyCols)
	for row := range total {
		key, incomparable, err := keys.Row(row)
		if err != nil {
			return err
		}
		if incomparable {
			continue
		}
		id, added := j.index.Insert(key)
		if added {
			j.rows = append(j.rows, nil)
		}
		j.rows[id] = append(j.rows[id], row)
	}
	return nil
}

// Next implements [Operator]. Probe batches that produce no output rows are
// skipped.
func (j *HashJoin) Next(ctx context.Context) (*columnar.Batch, error) {
	if err := j.next(); err != nil {
		return nil, err
	}
	for {
		if j.current == nil {
			if err := j.advance(ctx); err != nil {
				return nil, err
			}
		}

		err := j.collect()
		var out *columnar.Batch
		if err == nil && len(j.probeIdx) > 0 {
			out, err = j.emit()
		}
		if j.row >= j.current.NumRows() && j.matchPos >= len(j.matches) {
			j.releaseProbe()
		}
		if err != nil {
			return nil, err
		}
		if out != nil {
			return out, nil
		}
	}
}

// advance reads the next probe batch and evaluates its keys.
func (j *HashJoin) advance(ctx context.Context) error {
	batch, err := j.probe.Next(ctx)
	if err != nil {
		return err
	}
	j.current, j.row = batch, 0
	j.matches, j.matchPos = nil, 0

	j.keyCols = make([]*columnar.Vector, len(j.probeKeys))
	for i, k := range j.probeKeys {
		vec, err := j.evaluator.Evaluate(k, batch)
		if err != nil {
			j.releaseProbe()
			return err
		}
		j.keyCols[i] = vec
	}
	j.keys.Reset(j.keyCols)
	return nil
}

// collect fills buildIdx and probeIdx with the row pairs of the next output
// batch. A build index of -1 stands for a row of nulls.
func (j *HashJoin) collect() error {
	j.buildIdx, j.probeIdx = j.buildIdx[:0], j.probeIdx[:0]
	for len(j.probeIdx) < j.opts.BatchSize {
		if j.matchPos < len(j.matches) {
			n := min(len(j.matches)-j.matchPos, j.opts.BatchSize-len(j.probeIdx))
			for _, b := range j.matches[j.matchPos : j.matchPos+n] {
				j.buildIdx = append(j.buildIdx, b)
				j.probeIdx = append(j.probeIdx, j.row-1)
			}
			j.matchPos += n
			continue
		}
		if j.row >= j.current.NumRows() {
			return nil
		}

		key, incomparable, err := j.keys.Row(j.row)
		if err != nil {
			return err
		}
		j.row++
		j.matches, j.matchPos = nil, 0
		if !incomparable {
			if id := j.index.Find(key); id >= 0 {
				j.matches = j.rows[id]
			}
		}
		if len(j.matches) == 0 && j.kind == joinLeftOuter {
			j.buildIdx = append(j.buildIdx, -1)
			j.probeIdx = append(j.probeIdx, j.row-1)
		}
	}
	return nil
}

func (j *HashJoin) emit() (*columnar.Batch, error) {
	out, err := j.res.newBatch(j.schema, len(j.probeIdx))
	if err != nil {
		return nil, err
	}
	nb := j.table.NumCols()
	for i, col := range j.table.Columns() {
		if err := compute.TakeInto(out.Column(i), col, j.buildIdx); err != nil {
			out.Release()
			return nil, err
		}
	}
	for i, col := range j.current.Columns() {
		if err := compute.TakeInto(out.Column(nb+i), col, j.probeIdx); err != nil {
			out.Release()
			return nil, err
		}
	}
	if err := out.SetNumRows(len(j.probeIdx)); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

func (j *HashJoin) releaseProbe() {
	for _, c := range j.keyCols {
		c.Release()
	}
	j.keyCols = nil
	j.current.Release()
	j.current = nil
	j.matches, j.matchPos = nil, 0
}

func (j *HashJoin) releaseState() {
	if j.current != nil {
		j.releaseProbe()
	}
	j.table.Release()
	j.table = nil
	j.index = nil
	j.rows = nil
}

// Close implements [Operator].
func (j *HashJoin) Close() error {
	first, err := j.close()
	if first {
		j.releaseState()
	}
	return err
}
