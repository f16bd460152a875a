package owner

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const unassigned = "unassigned"

// Identity is a registered person a task can be assigned to.
type Identity struct {
	Ref         string `json:"ref"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// Directory looks people up by display name, case-insensitively. ok is false
// when nobody, or more than one person, carries the name.
type Directory interface {
	FindByDisplayName(ctx context.Context, name string) (Identity, bool, error)
}

// Resolution is the outcome of resolving one owner string.
type Resolution struct {
	IdentityRef  *string
	IsUnassigned bool
}

func unassignedResolution() Resolution {
	return Resolution{IdentityRef: nil, IsUnassigned: true}
}

type Resolver struct {
	dir Directory
	log *logrus.Entry
}

// NewResolver builds a Resolver; a nil directory resolves everyone to
// unassigned.
func NewResolver(dir Directory, log *logrus.Entry) *Resolver {
	return &Resolver{dir: dir, log: log}
}

// Resolve maps a freeform owner name onto a directory identity. Blank names,
// "unassigned", unknown or ambiguous names and directory failures all
// resolve to unassigned.
func (r *Resolver) Resolve(ctx context.Context, name string) Resolution {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, unassigned) || r.dir == nil {
		return unassignedResolution()
	}

	id, ok, err := r.dir.FindByDisplayName(ctx, name)
	if err != nil {
		r.log.WithFields(logrus.Fields{"owner": name, "error": err.Error()}).Warn("directory lookup failed")
		return unassignedResolution()
	}
	if !ok || id.Ref == "" {
		r.log.WithField("owner", name).Debug("owner not found in directory")
		return unassignedResolution()
	}
	ref := id.Ref
	return Resolution{IdentityRef: &ref, IsUnassigned: false}
}

// MemoryDirectory is an in-process Directory safe for concurrent use.
type MemoryDirectory struct {
	mu     sync.RWMutex
	byName map[string][]Identity
	count  int
}

var _ Directory = (*MemoryDirectory)(nil)

func NewMemoryDirectory(ids ...Identity) *MemoryDirectory {
	d := &MemoryDirectory{byName: map[string][]Identity{}}
	for _, id := range ids {
		d.Add(id)
	}
	return d
}

func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Add registers an identity. Identities without a display name are ignored.
func (d *MemoryDirectory) Add(id Identity) {
	key := nameKey(id.DisplayName)
	if key == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byName[key] = append(d.byName[key], id)
	d.count++
}

func (d *MemoryDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

func (d *MemoryDirectory) FindByDisplayName(ctx context.Context, name string) (Identity, bool, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	matches := d.byName[nameKey(name)]
	if len(matches) != 1 {
		return Identity{}, false, nil
	}
	return matches[0], true, nil
}
