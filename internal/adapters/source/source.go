// Package source holds what the mailbox-backed message sources share: the
// callback registry and the snapshot diff that drives it.
package source

import (
	"sort"
	"sync"
)

// Snapshot maps a message id to whether the user has opened it
type Snapshot map[string]bool

// Diff is the set of transitions between two snapshots
type Diff struct {
	Added   bool
	Removed []string
	Opened  []string
}

// Empty reports whether nothing changed
func (d Diff) Empty() bool {
	return !d.Added && len(d.Removed) == 0 && len(d.Opened) == 0
}

// Compare returns the transitions from prev to cur. Ids are sorted so
// callbacks fire in a stable order.
func Compare(prev, cur Snapshot) Diff {
	var d Diff
	for id, seen := range cur {
		was, ok := prev[id]
		if !ok {
			d.Added = true
			continue
		}
		if seen && !was {
			d.Opened = append(d.Opened, id)
		}
	}
	for id := range prev {
		if _, ok := cur[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Strings(d.Removed)
	sort.Strings(d.Opened)
	return d
}

// Notifier implements the callback half of core.MessageSource. Callbacks run
// on the caller's goroutine and never under the notifier's lock.
type Notifier struct {
	mu        sync.Mutex
	onChanged []func()
	onRemoved []func(string)
	onOpened  []func(string)
}

func (n *Notifier) OnVisibleSetChanged(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChanged = append(n.onChanged, fn)
}

func (n *Notifier) OnMessageRemoved(fn func(string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onRemoved = append(n.onRemoved, fn)
}

func (n *Notifier) OnMessageOpened(fn func(string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onOpened = append(n.onOpened, fn)
}

// Fire delivers d: removals first, then opens, then one change signal
func (n *Notifier) Fire(d Diff) {
	n.mu.Lock()
	onChanged := append([]func(){}, n.onChanged...)
	onRemoved := append([]func(string){}, n.onRemoved...)
	onOpened := append([]func(string){}, n.onOpened...)
	n.mu.Unlock()

	for _, id := range d.Removed {
		for _, fn := range onRemoved {
			fn(id)
		}
	}
	for _, id := range d.Opened {
		for _, fn := range onOpened {
			fn(id)
		}
	}
	if d.Added {
		for _, fn := range onChanged {
			fn()
		}
	}
}
