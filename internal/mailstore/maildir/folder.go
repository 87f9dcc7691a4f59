package maildir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattt/mailbridge/internal/mailstore"
)

const (
	curDir = "cur"
	newDir = "new"
	tmpDir = "tmp"

	infoSeparator = ":2,"

	flagSeen    = 'S'
	flagFlagged = 'F'
)

// reserved names are Maildir internals, never folders.
var reserved = map[string]bool{curDir: true, newDir: true, tmpDir: true}

type folder struct {
	store     *Store
	accountID string
	rel       string
	dir       string
}

var _ mailstore.Folder = (*folder)(nil)

func (s *Store) folder(accountID, rel string) (*folder, error) {
	dir := filepath.Join(s.root, accountID, filepath.FromSlash(rel))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("folder %q: %w", FolderURI(accountID, rel), mailstore.ErrNotFound)
	}
	return &folder{store: s, accountID: accountID, rel: rel, dir: dir}, nil
}

func (f *folder) Name() string {
	if f.rel == "" {
		return f.accountID
	}
	return filepath.Base(f.dir)
}

func (f *folder) URI() string {
	return FolderURI(f.accountID, f.rel)
}

func (f *folder) Children(ctx context.Context) ([]mailstore.Folder, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", f.URI(), err)
	}

	var children []mailstore.Folder
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || reserved[name] || strings.HasPrefix(name, ".") {
			continue
		}
		rel := name
		if f.rel != "" {
			rel = f.rel + "/" + name
		}
		children = append(children, &folder{
			store:     f.store,
			accountID: f.accountID,
			rel:       rel,
			dir:       filepath.Join(f.dir, name),
		})
	}
	return children, nil
}

// Refresh delivers everything in new/ into cur/.
func (f *folder) Refresh(ctx context.Context) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(f.dir, newDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Join(f.dir, curDir), 0o755); err != nil {
		return err
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.Contains(name, infoSeparator) {
			name += infoSeparator
		}
		if err := os.Rename(filepath.Join(f.dir, newDir, e.Name()), filepath.Join(f.dir, curDir, name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *folder) Messages(ctx context.Context) ([]mailstore.Header, error) {
	paths, err := f.messageFiles()
	if err != nil {
		return nil, err
	}

	headers := make([]mailstore.Header, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := readHeader(path)
		if err != nil {
			f.store.logger.Debug("Skipping unreadable message", "path", path, "error", err)
			continue
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// messageFiles lists the message files of cur/ then new/, each in name order.
func (f *folder) messageFiles() ([]string, error) {
	var paths []string
	found := false
	for _, sub := range []string{curDir, newDir} {
		entries, err := os.ReadDir(filepath.Join(f.dir, sub))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", f.URI(), err)
		}
		found = true

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			paths = append(paths, filepath.Join(f.dir, sub, name))
		}
	}
	if !found {
		return nil, nil
	}
	return paths, nil
}

// find locates a message by Message-Id, falling back to its Maildir unique
// name. The first match in scan order wins.
func (f *folder) find(messageID string) (string, error) {
	want := mailstore.NormalizeMessageID(messageID)
	paths, err := f.messageFiles()
	if err != nil {
		return "", err
	}

	for _, path := range paths {
		if uniqueName(path) == want {
			return path, nil
		}
		h, err := readHeader(path)
		if err != nil {
			continue
		}
		if h.MessageID == want {
			return path, nil
		}
	}
	return "", fmt.Errorf("message %q in %s: %w", messageID, f.URI(), mailstore.ErrNotFound)
}

func (f *folder) setFlag(path string, flag rune, on bool) error {
	unique := uniqueName(path)
	flags := parseFlags(path)
	if strings.ContainsRune(flags, flag) == on {
		return nil
	}

	if on {
		flags += string(flag)
	} else {
		flags = strings.ReplaceAll(flags, string(flag), "")
	}

	if err := os.MkdirAll(filepath.Join(f.dir, curDir), 0o755); err != nil {
		return err
	}
	target := filepath.Join(f.dir, curDir, unique+infoSeparator+sortFlags(flags))
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("error updating flags of %s: %w", unique, err)
	}
	return nil
}

// uniqueName returns the part of a Maildir file name before its info.
func uniqueName(path string) string {
	name := filepath.Base(path)
	if i := strings.Index(name, infoSeparator); i >= 0 {
		return name[:i]
	}
	return name
}

func parseFlags(path string) string {
	name := filepath.Base(path)
	if i := strings.Index(name, infoSeparator); i >= 0 {
		return name[i+len(infoSeparator):]
	}
	return ""
}

func sortFlags(flags string) string {
	b := []byte(flags)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return string(b)
}
