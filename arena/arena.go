// Package arena provides a region allocator used by the parser and word
// expander for per-top-level-command scratch. Allocating from an Arena is
// cheap and bulk-free: callers Mark before a scope and Reset back to that
// mark when the scope ends, instead of freeing individual objects.
package arena

// Arena is a growable bump allocator of opaque byte-sized slots. It does not
// itself know about Go's garbage collector beyond holding slices alive; it
// exists to give the parser and expander one allocation discipline instead
// of a mix of heap allocations and ad hoc pooling.
type Arena struct {
	blocks [][]byte
	cur    int // index into blocks of the block currently being filled
	off    int // offset into blocks[cur]

	// strs holds retained string builders so repeated small allocations
	// (one per lexed word, say) don't each hit the Go heap allocator.
	strs []byte
}

const blockSize = 32 * 1024

// New returns a ready-to-use Arena.
func New() *Arena {
	a := &Arena{}
	a.blocks = append(a.blocks, make([]byte, blockSize))
	return a
}

// Alloc returns n zeroed bytes carved out of the arena.
func (a *Arena) Alloc(n int) []byte {
	if n == 0 {
		return nil
	}
	if n > blockSize {
		// Oversized requests get their own block; everything else is
		// packed densely so a Reset can reclaim it.
		b := make([]byte, n)
		a.blocks = append(a.blocks, b)
		return b
	}
	blk := a.blocks[a.cur]
	if a.off+n > len(blk) {
		a.cur++
		if a.cur >= len(a.blocks) {
			a.blocks = append(a.blocks, make([]byte, blockSize))
		}
		a.off = 0
		blk = a.blocks[a.cur]
	}
	b := blk[a.off : a.off+n : a.off+n]
	a.off += n
	return b
}

// Mark is an opaque checkpoint; pass it to Reset to free everything
// allocated since the mark was taken.
type Mark struct {
	block int
	off   int
}

// Mark returns a checkpoint of the arena's current allocation position.
func (a *Arena) Mark() Mark {
	return Mark{block: a.cur, off: a.off}
}

// Reset rewinds the arena to m, making its space available for reuse. It
// rewinds the bump pointer and drops every block allocated after m's
// block, so repeated Mark/Reset cycles (e.g. one per loop iteration, per
// spec §4.4) do not grow memory.
func (a *Arena) Reset(m Mark) {
	// Oversized blocks appended after the mark are dropped entirely so a
	// long-running loop with an occasional huge allocation doesn't pin
	// memory forever.
	if m.block < len(a.blocks)-1 {
		a.blocks = a.blocks[:m.block+1]
	}
	a.cur = m.block
	a.off = m.off
}

// ResetAll rewinds the arena to empty, as if newly constructed. Used by the
// executor between top-level commands.
func (a *Arena) ResetAll() {
	a.cur = 0
	a.off = 0
	if len(a.blocks) > 1 {
		a.blocks = a.blocks[:1]
	}
}

// Builder accumulates bytes the way strings.Builder does, except its
// backing storage is carved from an Arena instead of the Go heap: short-lived
// scratch text built once per word expansion or loop iteration shares the
// arena's blocks instead of each hitting its own heap allocation, and goes
// away on the next Mark/Reset rather than waiting for the garbage collector.
type Builder struct {
	buf []byte
}

// NewBuilder returns a Builder whose initial capacity of hint bytes is
// carved from a. A nil Arena is valid and falls back to an ordinary
// heap-backed slice, so callers don't need to special-case an unset arena.
func (a *Arena) NewBuilder(hint int) *Builder {
	if hint <= 0 {
		hint = 64
	}
	if a == nil {
		return &Builder{buf: make([]byte, 0, hint)}
	}
	return &Builder{buf: a.Alloc(hint)[:0]}
}

func (b *Builder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

func (b *Builder) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

func (b *Builder) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *Builder) Len() int { return len(b.buf) }

func (b *Builder) Reset() { b.buf = b.buf[:0] }

func (b *Builder) String() string { return string(b.buf) }
