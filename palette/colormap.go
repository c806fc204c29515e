// Package palette manages the display's shared, capacity-bounded color
// table: the fixed standard colors, user-defined colors and the transient
// region that holds the colors of embedded pictures.
package palette

import (
	"errors"
	"image/color"
	"slices"
)

// Slot is a cell of a display colormap.
type Slot int

// NoSlot marks an entry that holds no cell.
const NoSlot Slot = -1

var (
	ErrTableFull = errors.New("color table full")
	ErrNoPrivate = errors.New("private color table unavailable")
)

// Colormap is a display color table whose cells are handed out singly or
// as adjacent runs.
type Colormap interface {
	// Alloc reserves a free writable cell.
	Alloc() (Slot, bool)
	// AllocRange reserves the first run of n adjacent free cells and
	// returns its lowest cell.
	AllocRange(n int) (Slot, bool)
	// LongestRun returns the length of the longest run of adjacent free
	// cells.
	LongestRun() int
	// Store sets the color of a cell previously returned by Alloc.
	Store(Slot, color.RGBA)
	// Free returns a cell to the table.
	Free(Slot)
	// Colors returns the current value of every cell.
	Colors() []color.RGBA
}

// Display is the capability to create private colormaps.
type Display interface {
	// Colormap returns the shared table every window starts with.
	Colormap() Colormap
	// NewPrivate creates a table holding contents, with the cells in
	// owned already allocated and every other cell free.
	NewPrivate(contents []color.RGBA, owned []Slot) (Colormap, error)
	// Monochrome reports whether the display can only show two colors.
	Monochrome() bool
}

// Window is anything drawing with the active colormap. It must switch to
// the table it is given before the next color operation.
type Window interface {
	AdoptColormap(Colormap)
}

// Cells is an in-memory Colormap. The zero value has no cells.
type Cells struct {
	colors []color.RGBA
	used   []bool
}

// NewCells returns a table of n free black cells.
func NewCells(n int) *Cells {
	return &Cells{
		colors: make([]color.RGBA, n),
		used:   make([]bool, n),
	}
}

// Alloc hands out the lowest free cell.
func (c *Cells) Alloc() (Slot, bool) {
	i := slices.Index(c.used, false)
	if i < 0 {
		return NoSlot, false
	}
	c.used[i] = true
	return Slot(i), true
}

func (c *Cells) AllocRange(n int) (Slot, bool) {
	if n <= 0 {
		return NoSlot, false
	}
	run := 0
	for i, u := range c.used {
		if u {
			run = 0
			continue
		}
		run++
		if run == n {
			first := i - n + 1
			for j := first; j <= i; j++ {
				c.used[j] = true
			}
			return Slot(first), true
		}
	}
	return NoSlot, false
}

func (c *Cells) LongestRun() int {
	longest, run := 0, 0
	for _, u := range c.used {
		if u {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return longest
}

func (c *Cells) Store(s Slot, col color.RGBA) {
	if c.valid(s) {
		c.colors[s] = col
	}
}

func (c *Cells) Free(s Slot) {
	if c.valid(s) {
		c.used[s] = false
	}
}

func (c *Cells) Colors() []color.RGBA {
	return slices.Clone(c.colors)
}

// Occupy marks up to n free cells as taken by other clients and returns
// how many it took.
func (c *Cells) Occupy(n int) int {
	taken := 0
	for i := range c.used {
		if taken == n {
			break
		}
		if !c.used[i] {
			c.used[i] = true
			taken++
		}
	}
	return taken
}

// Available returns the number of free cells.
func (c *Cells) Available() int {
	n := 0
	for _, u := range c.used {
		if !u {
			n++
		}
	}
	return n
}

// Len returns the number of cells.
func (c *Cells) Len() int {
	return len(c.colors)
}

func (c *Cells) valid(s Slot) bool {
	return s >= 0 && int(s) < len(c.colors)
}

// Screen is a Display backed by Cells, used where no real display server
// is attached.
type Screen struct {
	Shared *Cells
	// PrivateSize is the number of cells in a private table; zero means
	// private tables cannot be created.
	PrivateSize int
	Mono        bool
	// Privates counts the private tables created so far.
	Privates int
}

// NewScreen returns a Screen with a shared table of shared cells.
func NewScreen(shared, private int) *Screen {
	return &Screen{Shared: NewCells(shared), PrivateSize: private}
}

func (s *Screen) Colormap() Colormap {
	return s.Shared
}

func (s *Screen) NewPrivate(contents []color.RGBA, owned []Slot) (Colormap, error) {
	if s.PrivateSize <= 0 {
		return nil, ErrNoPrivate
	}
	c := NewCells(max(s.PrivateSize, len(contents)))
	copy(c.colors, contents)
	for _, o := range owned {
		if c.valid(o) {
			c.used[o] = true
		}
	}
	s.Privates++
	return c, nil
}

func (s *Screen) Monochrome() bool {
	return s.Mono
}
