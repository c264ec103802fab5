// Package sounds maps sound roles (follow, share, gifts, like) to audio
// files. Assignments live in a small YAML file next to the config and are
// reloaded when it changes. Roles without an assignment fall back to
// <assets_dir>/<role>.mp3.
package sounds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Role names a class of sound clip.
type Role string

// Sound roles.
const (
	RoleFollow    Role = "follow"
	RoleShare     Role = "share"
	RoleSmallGift Role = "small-gift"
	RoleBigGift   Role = "big-gift"
	RoleMultiGift Role = "multi-gift"
	RoleLike      Role = "like"
)

// Roles lists every known role.
var Roles = []Role{RoleFollow, RoleShare, RoleSmallGift, RoleBigGift, RoleMultiGift, RoleLike}

// AudioExtensions are the file extensions accepted for clips.
var AudioExtensions = []string{".mp3", ".wav", ".ogg", ".flac", ".m4a", ".aac"}

var (
	// ErrUnknownRole is returned for role names outside Roles.
	ErrUnknownRole = errors.New("unknown sound role")

	// ErrUnsupportedFormat is returned for files without an audio extension.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrClipNotFound is returned when a resolved clip does not exist.
	ErrClipNotFound = errors.New("sound clip not found")
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Roles, r) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	return slices.Contains(AudioExtensions, strings.ToLower(filepath.Ext(path)))
}

// Entry is one role's effective assignment.
type Entry struct {
	Role     Role
	Path     string
	Assigned bool
}

type fileFormat struct {
	Sounds map[Role]string `yaml:"sounds"`
}

// Library resolves clip ids to files.
type Library struct {
	path      string
	assetsDir string
	log       *log.Logger

	mu       sync.RWMutex
	assigned map[Role]string
}

// Open loads the library stored at path. A missing file is an empty library.
func Open(path, assetsDir string, logger *log.Logger) (*Library, error) {
	if logger == nil {
		logger = log.Default().WithPrefix("sounds")
	}
	dir, err := homedir.Expand(assetsDir)
	if err != nil {
		return nil, fmt.Errorf("expand assets dir: %w", err)
	}
	l := &Library{
		path:      path,
		assetsDir: dir,
		log:       logger,
		assigned:  make(map[Role]string),
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the backing file.
func (l *Library) Path() string { return l.path }

// AssetsDir returns the fallback directory.
func (l *Library) AssetsDir() string { return l.assetsDir }

// Reload re-reads the backing file.
func (l *Library) Reload() error {
	if l.path == "" {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		l.mu.Lock()
		clear(l.assigned)
		l.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", l.path, err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse %s: %w", l.path, err)
	}

	next := make(map[Role]string, len(f.Sounds))
	for role, p := range f.Sounds {
		if _, err := ParseRole(string(role)); err != nil {
			l.log.Warn("Ignoring unknown sound role", "role", role, "file", l.path)
			continue
		}
		next[role] = p
	}

	l.mu.Lock()
	l.assigned = next
	l.mu.Unlock()
	l.log.Debug("Sound library loaded", "file", l.path, "assigned", len(next))
	return nil
}

// Resolve maps a clip id to an existing file. A clip id is a role name or
// a file path.
func (l *Library) Resolve(clip string) (string, error) {
	path := clip
	if role, err := ParseRole(clip); err == nil {
		path = l.rolePath(role)
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	if _, err := os.Stat(expanded); err != nil {
		return "", fmt.Errorf("%w: %s", ErrClipNotFound, expanded)
	}
	return expanded, nil
}

func (l *Library) rolePath(role Role) string {
	l.mu.RLock()
	p, ok := l.assigned[role]
	l.mu.RUnlock()
	if ok && p != "" {
		return p
	}
	return filepath.Join(l.assetsDir, string(role)+".mp3")
}

// Entries returns the effective assignment of every role.
func (l *Library) Entries() []Entry {
	out := make([]Entry, 0, len(Roles))
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range Roles {
		p, ok := l.assigned[r]
		if !ok || p == "" {
			p = filepath.Join(l.assetsDir, string(r)+".mp3")
		}
		out = append(out, Entry{Role: r, Path: p, Assigned: ok})
	}
	return out
}

// Assign binds role to path and saves the library.
func (l *Library) Assign(role Role, path string) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	if !IsAudioFile(path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	l.mu.Lock()
	l.assigned[role] = path
	l.mu.Unlock()
	return l.Save()
}

// Unassign reverts role to its default file and saves the library.
func (l *Library) Unassign(role Role) error {
	l.mu.Lock()
	delete(l.assigned, role)
	l.mu.Unlock()
	return l.Save()
}

// Save writes the current assignments.
func (l *Library) Save() error {
	if l.path == "" {
		return nil
	}
	l.mu.RLock()
	f := fileFormat{Sounds: make(map[Role]string, len(l.assigned))}
	for r, p := range l.assigned {
		f.Sounds[r] = p
	}
	l.mu.RUnlock()

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode sounds: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(l.path), err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace %s: %w", l.path, err)
	}
	return nil
}
