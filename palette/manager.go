package palette

import (
	"errors"
	"fmt"
	"image/color"
	"slices"

	"github.com/alefaraci/figcolor/figure"
	"go.uber.org/zap"
)

var (
	ErrNoUserSlot    = errors.New("no free user color")
	ErrStandardColor = errors.New("standard colors cannot be changed")
	ErrUndefined     = errors.New("user color not defined")
	ErrColorInUse    = errors.New("user color in use")
)

// Entry is a color together with the colormap cell showing it.
type Entry struct {
	RGB  color.RGBA
	Slot Slot
}

// Manager owns every cell the editor holds in the display colormap. There
// is one Manager per application; it is not safe for concurrent use.
//
// Standard colors are allocated by NewManager and never freed. User colors
// come and go with editing commands. The image-color region is rebuilt by
// each remap run; its last grant is kept so an unchanged demand can reuse
// it without touching the colormap.
type Manager struct {
	display Display
	cmap    Colormap
	private bool
	log     *zap.Logger

	std      [figure.NumStdColors]Entry
	user     [figure.MaxUserColors]Entry
	userFree [figure.MaxUserColors]bool
	userUsed [figure.MaxUserColors]bool

	image   []Entry
	granted int

	windows []Window
}

// NewManager allocates the standard colors in the display's shared table,
// escalating to a private table if the shared one cannot hold them.
// Failing to place the standard colors is an error the application cannot
// run without.
func NewManager(d Display, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		display: d,
		cmap:    d.Colormap(),
		log:     log,
	}
	for i := range m.userFree {
		m.userFree[i] = true
		m.user[i].Slot = NoSlot
	}
	for i := range m.std {
		rgb, _ := figure.StandardRGB(figure.Color(i))
		m.std[i] = Entry{RGB: rgb, Slot: NoSlot}
		if d.Monochrome() {
			continue
		}
		s, ok := m.alloc()
		if !ok {
			return nil, fmt.Errorf("allocating standard color %s: %w", figure.Color(i), ErrTableFull)
		}
		m.cmap.Store(s, rgb)
		m.std[i].Slot = s
	}
	return m, nil
}

// alloc takes one cell, switching to a private table once if the current
// table is full.
func (m *Manager) alloc() (Slot, bool) {
	if s, ok := m.cmap.Alloc(); ok {
		return s, true
	}
	if !m.SwitchToPrivate() {
		return NoSlot, false
	}
	return m.cmap.Alloc()
}

// Colormap returns the active table.
func (m *Manager) Colormap() Colormap {
	return m.cmap
}

// Private reports whether the private table is active.
func (m *Manager) Private() bool {
	return m.private
}

// Monochrome reports whether the display shows only two colors.
func (m *Manager) Monochrome() bool {
	return m.display.Monochrome()
}

// AddWindow registers w for colormap changes and hands it the active table.
func (m *Manager) AddWindow(w Window) {
	m.windows = append(m.windows, w)
	w.AdoptColormap(m.cmap)
}

// RemoveWindow stops notifying w.
func (m *Manager) RemoveWindow(w Window) {
	if i := slices.Index(m.windows, w); i >= 0 {
		m.windows = slices.Delete(m.windows, i, i+1)
	}
}

// SwitchToPrivate copies the shared table into a new private one, moves
// every cell the manager owns across, and installs the new table in every
// registered window. It succeeds at most once per Manager.
func (m *Manager) SwitchToPrivate() bool {
	if m.private || m.display.Monochrome() {
		return false
	}
	owned := m.ownedSlots()
	cm, err := m.display.NewPrivate(m.cmap.Colors(), owned)
	if err != nil {
		m.log.Warn("cannot switch to private colormap", zap.Error(err))
		return false
	}
	old := m.cmap
	for _, s := range owned {
		old.Free(s)
	}
	m.cmap = cm
	m.private = true
	m.log.Info("switched to private colormap", zap.Int("owned", len(owned)), zap.Int("windows", len(m.windows)))
	for _, w := range m.windows {
		w.AdoptColormap(cm)
	}
	return true
}

func (m *Manager) ownedSlots() []Slot {
	var owned []Slot
	for _, e := range m.std {
		if e.Slot != NoSlot {
			owned = append(owned, e.Slot)
		}
	}
	for i, e := range m.user {
		if !m.userFree[i] && e.Slot != NoSlot {
			owned = append(owned, e.Slot)
		}
	}
	for _, e := range m.image {
		owned = append(owned, e.Slot)
	}
	return owned
}

// AllocateImageColors replaces the image-color region with up to n new
// cells. The region is always one run of adjacent cells, so local color k
// of a picture lands at a fixed offset from the first cell. When no run of
// n cells is free the manager tries once to switch to a private table; if
// that fails too it settles for the longest free run. The number of cells
// obtained is returned and may be anything from 0 to n.
func (m *Manager) AllocateImageColors(n int) int {
	m.ReleaseImageColors()
	if m.display.Monochrome() || n <= 0 {
		return 0
	}
	first, ok := m.cmap.AllocRange(n)
	if !ok && m.SwitchToPrivate() {
		first, ok = m.cmap.AllocRange(n)
	}
	size := n
	if !ok {
		size = m.cmap.LongestRun()
		if size > 0 {
			first, _ = m.cmap.AllocRange(size)
		}
	}
	for i := range size {
		m.image = append(m.image, Entry{Slot: first + Slot(i)})
	}
	m.granted = len(m.image)
	if m.granted < n {
		m.log.Debug("image colors partially granted", zap.Int("requested", n), zap.Int("granted", m.granted))
	}
	return m.granted
}

// ReserveImageColors returns the current grant untouched when n equals the
// previous grant, and otherwise reallocates the region for n colors.
func (m *Manager) ReserveImageColors(n int) int {
	if n == m.granted && len(m.image) == n {
		return m.granted
	}
	return m.AllocateImageColors(n)
}

// ReleaseImageColors frees every cell of the image-color region.
func (m *Manager) ReleaseImageColors() {
	for _, e := range m.image {
		m.cmap.Free(e.Slot)
	}
	m.image = nil
	m.granted = 0
}

// Granted returns the size of the current image-color region.
func (m *Manager) Granted() int {
	return m.granted
}

// SetImageColor stores c in entry i of the image-color region.
func (m *Manager) SetImageColor(i int, c color.RGBA) {
	m.image[i].RGB = c
	m.cmap.Store(m.image[i].Slot, c)
}

// ImageColor returns entry i of the image-color region.
func (m *Manager) ImageColor(i int) Entry {
	return m.image[i]
}

// ImageColors returns a copy of the image-color region.
func (m *Manager) ImageColors() []Entry {
	return slices.Clone(m.image)
}

// RGB returns the color shown for c. Default has no fixed color.
func (m *Manager) RGB(c figure.Color) (color.RGBA, bool) {
	switch {
	case c.IsStandard():
		return m.std[c].RGB, true
	case c.IsUser() && !m.userFree[c.UserIndex()]:
		return m.user[c.UserIndex()].RGB, true
	}
	return color.RGBA{}, false
}

// Slot returns the cell showing c, or NoSlot.
func (m *Manager) Slot(c figure.Color) Slot {
	switch {
	case c.IsStandard():
		return m.std[c].Slot
	case c.IsUser() && !m.userFree[c.UserIndex()]:
		return m.user[c.UserIndex()].Slot
	}
	return NoSlot
}

// AddUserColor defines a user color, returning the existing one if rgb
// is already defined.
func (m *Manager) AddUserColor(rgb color.RGBA) (figure.Color, error) {
	rgb.A = 0xff
	free := -1
	for i := range m.user {
		if m.userFree[i] {
			if free < 0 {
				free = i
			}
			continue
		}
		if m.user[i].RGB == rgb {
			return figure.UserColor(i), nil
		}
	}
	if free < 0 {
		return figure.Default, ErrNoUserSlot
	}
	e := Entry{RGB: rgb, Slot: NoSlot}
	if !m.display.Monochrome() {
		s, ok := m.alloc()
		if !ok {
			return figure.Default, fmt.Errorf("user color %d: %w", free, ErrTableFull)
		}
		m.cmap.Store(s, rgb)
		e.Slot = s
	}
	m.user[free] = e
	m.userFree[free] = false
	return figure.UserColor(free), nil
}

// RemoveUserColor frees a user color that no primitive refers to, as last
// recorded by MarkUsed.
func (m *Manager) RemoveUserColor(c figure.Color) error {
	if c.IsStandard() {
		return ErrStandardColor
	}
	i := c.UserIndex()
	if i < 0 || m.userFree[i] {
		return fmt.Errorf("%s: %w", c, ErrUndefined)
	}
	if m.userUsed[i] {
		return fmt.Errorf("%s: %w", c, ErrColorInUse)
	}
	if m.user[i].Slot != NoSlot {
		m.cmap.Free(m.user[i].Slot)
	}
	m.user[i] = Entry{Slot: NoSlot}
	m.userFree[i] = true
	return nil
}

// UserColors returns every defined user color in index order.
func (m *Manager) UserColors() []figure.Color {
	var out []figure.Color
	for i := range m.user {
		if !m.userFree[i] {
			out = append(out, figure.UserColor(i))
		}
	}
	return out
}

// MarkUsed records which user colors the primitives of the document
// rooted at root refer to, across the whole sibling chain.
func (m *Manager) MarkUsed(root *figure.Compound) {
	clear(m.userUsed[:])
	mark := func(c figure.Color) {
		if i := c.UserIndex(); i >= 0 {
			m.userUsed[i] = true
		}
	}
	for page := range root.Chain() {
		for o := range page.Objects() {
			a := o.Attributes()
			mark(a.PenColor)
			mark(a.FillColor)
		}
	}
}

// InUse reports whether c was referenced at the last MarkUsed.
func (m *Manager) InUse(c figure.Color) bool {
	i := c.UserIndex()
	return i >= 0 && m.userUsed[i]
}

// Close frees every cell the manager owns.
func (m *Manager) Close() {
	m.ReleaseImageColors()
	for i := range m.user {
		if !m.userFree[i] && m.user[i].Slot != NoSlot {
			m.cmap.Free(m.user[i].Slot)
		}
		m.user[i] = Entry{Slot: NoSlot}
		m.userFree[i] = true
	}
	for i := range m.std {
		if m.std[i].Slot != NoSlot {
			m.cmap.Free(m.std[i].Slot)
			m.std[i].Slot = NoSlot
		}
	}
	m.windows = nil
}
