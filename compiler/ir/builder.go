package ir

// Builder assembles a Graph. Blocks must be created in reverse postorder;
// scheduling and ordering are the caller's responsibility, the builder only
// records them.
type Builder struct {
	g Graph
}

func NewBuilder() *Builder {
	return &Builder{}
}

// NewBlock appends a block and returns its RPO number.
func (b *Builder) NewBlock(loop bool, preds ...int) int {
	rpo := len(b.g.Blocks)

	b.g.Blocks = append(b.g.Blocks, Block{
		Rpo:   rpo,
		Loop:  loop,
		Preds: preds,
	})

	return rpo
}

// SetPreds fixes up predecessors of a block created before them (loop headers).
func (b *Builder) SetPreds(block int, preds ...int) {
	b.g.Blocks[block].Preds = preds
}

// Emit schedules an operation at the end of the given block.
func (b *Builder) Emit(block int, x any) Node {
	return b.EmitAt(block, x, NoPos)
}

func (b *Builder) EmitAt(block int, x any, pos Pos) Node {
	n := Node(len(b.g.ops))

	b.g.ops = append(b.g.ops, x)
	b.g.pos = append(b.g.pos, pos)
	b.g.blockOf = append(b.g.blockOf, int32(block))
	b.g.Blocks[block].Nodes = append(b.g.Blocks[block].Nodes, n)

	return n
}

// Graph finalizes the builder. The result must not be mutated.
func (b *Builder) Graph() *Graph {
	return &b.g
}
