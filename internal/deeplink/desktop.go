package deeplink

import (
	"sort"
	"sync"
)

// Desktop items shown until the user removes them.
var DefaultItems = []string{"logo", "telegram", "x", "dexscreener", "github"}

// Desktop tracks the open windows and the removed desktop icons of one session.
type Desktop struct {
	mu      sync.RWMutex
	open    map[string]bool
	removed map[string]bool
	opened  int
}

func NewDesktop() *Desktop {
	return &Desktop{
		open:    make(map[string]bool),
		removed: make(map[string]bool),
	}
}

// Open shows view and returns how many windows are open, used to cascade new windows.
func (d *Desktop) Open(view string) (int, bool) {
	v, ok := Canonical(view)
	if !ok {
		return 0, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[v] {
		d.open[v] = true
		d.opened++
	}
	return d.opened, true
}

func (d *Desktop) Close(view string) {
	v, ok := Canonical(view)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open[v] {
		delete(d.open, v)
		d.opened = max(0, d.opened-1)
	}
}

// Apply opens the view a resolved link names.
func (d *Desktop) Apply(link Link) bool {
	if link.View == "" {
		return false
	}
	_, ok := d.Open(link.View)
	return ok
}

func (d *Desktop) IsOpen(view string) bool {
	v, ok := Canonical(view)
	if !ok {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.open[v]
}

func (d *Desktop) OpenViews() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	views := make([]string, 0, len(d.open))
	for v := range d.open {
		views = append(views, v)
	}
	sort.Strings(views)
	return views
}

func (d *Desktop) RemoveItem(item string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed[item] = true
}

// Items reports every default desktop item and whether it is still shown.
func (d *Desktop) Items() map[string]bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	items := make(map[string]bool, len(DefaultItems))
	for _, item := range DefaultItems {
		items[item] = !d.removed[item]
	}
	return items
}
