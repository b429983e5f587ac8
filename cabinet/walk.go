package cabinet

import (
	"errors"
	"fmt"
	"strings"
)

// Visitor receives the records of a depth-first folder walk.
type Visitor interface {
	EnterFolder(folder *Record) error
	Visit(item *Record) error
	LeaveFolder(folder *Record) error
}

// Walk visits start and, if it is a folder, its whole subtree: for each
// folder the child chain is followed across next pointers and sub-folders
// are entered as they are met. Every record may be reached once; a second
// visit means the pointers loop and Walk fails with ErrMalformedGraph.
func (c *Container) Walk(start *Record, v Visitor) error {
	if start == nil {
		return nil
	}
	if !start.Folder {
		return v.Visit(start)
	}
	w := &walker{c: c, v: v, seen: make([]bool, len(c.records))}
	return w.folder(start)
}

type walker struct {
	c    *Container
	v    Visitor
	seen []bool
}

func (w *walker) mark(rec *Record) error {
	if rec.Index < 0 || rec.Index >= len(w.seen) {
		return fmt.Errorf("record %d outside container: %w", rec.Index, ErrMalformedGraph)
	}
	if w.seen[rec.Index] {
		return fmt.Errorf("record %d reached twice: %w", rec.Index, ErrMalformedGraph)
	}
	w.seen[rec.Index] = true
	return nil
}

func (w *walker) folder(folder *Record) (err error) {
	if err := w.mark(folder); err != nil {
		return err
	}
	if err := w.v.EnterFolder(folder); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, w.v.LeaveFolder(folder))
	}()

	for idx := folder.Pointers.Child; idx != None; {
		child, err := w.c.Resolve(idx)
		if err != nil {
			return err
		}
		if child.Folder {
			if err := w.folder(child); err != nil {
				return err
			}
		} else {
			if err := w.mark(child); err != nil {
				return err
			}
			if err := w.v.Visit(child); err != nil {
				return err
			}
		}
		idx = child.Pointers.Next
	}
	return nil
}

// Children returns the direct children of folder in sibling order.
func (c *Container) Children(folder *Record) ([]*Record, error) {
	var out []*Record
	seen := make(map[Index]bool)
	for idx := folder.Pointers.Child; idx != None; {
		if seen[idx] {
			return nil, fmt.Errorf("sibling chain of %d revisits %d: %w", folder.Index, idx, ErrMalformedGraph)
		}
		seen[idx] = true

		child, err := c.Resolve(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
		idx = child.Pointers.Next
	}
	return out, nil
}

// Items returns the non-folder children of folder.
func (c *Container) Items(folder *Record) ([]*Record, error) {
	return c.filterChildren(folder, false)
}

// Folders returns the folder children of folder.
func (c *Container) Folders(folder *Record) ([]*Record, error) {
	return c.filterChildren(folder, true)
}

func (c *Container) filterChildren(folder *Record, folders bool) ([]*Record, error) {
	children, err := c.Children(folder)
	if err != nil {
		return nil, err
	}
	out := children[:0]
	for _, child := range children {
		if child.Folder == folders {
			out = append(out, child)
		}
	}
	return out, nil
}

// ItemAt returns the nth non-folder child of folder.
func (c *Container) ItemAt(folder *Record, n int) (*Record, error) {
	items, err := c.Items(folder)
	if err != nil {
		return nil, err
	}
	if n < 0 || n >= len(items) {
		return nil, fmt.Errorf("item %d of folder %d: %w", n, folder.Index, ErrNoSuchChild)
	}
	return items[n], nil
}

// FolderAt returns the nth folder child of folder.
func (c *Container) FolderAt(folder *Record, n int) (*Record, error) {
	folders, err := c.Folders(folder)
	if err != nil {
		return nil, err
	}
	if n < 0 || n >= len(folders) {
		return nil, fmt.Errorf("folder %d of folder %d: %w", n, folder.Index, ErrNoSuchChild)
	}
	return folders[n], nil
}

// FolderPosition returns the position of child among the folder children of
// parent, or -1 if it is not one of them.
func (c *Container) FolderPosition(parent, child *Record) (int, error) {
	if parent == nil || child == nil {
		return -1, nil
	}
	folders, err := c.Folders(parent)
	if err != nil {
		return -1, err
	}
	for i, f := range folders {
		if f.Index == child.Index {
			return i, nil
		}
	}
	return -1, nil
}

// FolderByPath finds a folder below the root by its slash separated folder
// labels, compared case-insensitively. An empty path names the root.
func (c *Container) FolderByPath(path string) (*Record, error) {
	folder, err := c.Root()
	if err != nil {
		return nil, err
	}
	for _, name := range strings.Split(path, "/") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		folders, err := c.Folders(folder)
		if err != nil {
			return nil, err
		}
		var next *Record
		for _, f := range folders {
			if strings.EqualFold(f.Label(), name) {
				next = f
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("folder %q in %q: %w", name, path, ErrNoSuchChild)
		}
		folder = next
	}
	return folder, nil
}
