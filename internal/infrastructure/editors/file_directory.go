package editors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
)

// Record is the persisted value of an editor entry. The handle is stored
// under "username", the key other tools reading the file expect.
type Record struct {
	Handle string `json:"username"`
	Name   string `json:"name"`
}

// UnmarshalJSON also accepts entries that stored the handle as "handle".
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string `json:"name"`
		Handle   string `json:"handle"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Name = raw.Name
	r.Handle = raw.Username
	if r.Handle == "" {
		r.Handle = raw.Handle
	}
	return nil
}

type editorMap = orderedmap.OrderedMap[string, Record]

// FileDirectory keeps admins in memory and editors in a JSON file.
// Every read goes to disk so membership changes apply immediately.
type FileDirectory struct {
	path   string
	admins []int64
	logger *slog.Logger
	mu     sync.Mutex
}

var _ ports.EditorDirectory = (*FileDirectory)(nil)

// NewFileDirectory binds the editor file and the static admin list.
func NewFileDirectory(path string, admins []int64, logger *slog.Logger) *FileDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileDirectory{
		path:   path,
		admins: slices.Clone(admins),
		logger: logger,
	}
}

// IsAdmin reports static admin membership.
func (d *FileDirectory) IsAdmin(principalID int64) bool {
	return slices.Contains(d.admins, principalID)
}

// IsEditor reports whether principalID is a registered editor.
// Admins are not editors; callers combine both checks into a role.
func (d *FileDirectory) IsEditor(principalID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	editors, err := d.load()
	if err != nil {
		d.logger.Error("load editors", "path", d.path, "error", err)
		return false
	}
	_, ok := editors.Get(key(principalID))
	return ok
}

// Admins returns the configured admin ids.
func (d *FileDirectory) Admins() []int64 {
	return slices.Clone(d.admins)
}

// ListEditors returns editors in file order.
func (d *FileDirectory) ListEditors() ([]domain.Editor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	editors, err := d.load()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Editor, 0, editors.Len())
	for pair := editors.Oldest(); pair != nil; pair = pair.Next() {
		id, err := strconv.ParseInt(pair.Key, 10, 64)
		if err != nil {
			d.logger.Warn("skip editor with non-numeric id", "id", pair.Key)
			continue
		}
		out = append(out, domain.Editor{ID: id, Name: pair.Value.Name, Handle: pair.Value.Handle})
	}
	return out, nil
}

// AddEditor appends an editor, failing with ErrAlreadyExists when present.
func (d *FileDirectory) AddEditor(editor domain.Editor) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	editors, err := d.load()
	if err != nil {
		return err
	}

	k := key(editor.ID)
	if _, ok := editors.Get(k); ok {
		return fmt.Errorf("editor %d: %w", editor.ID, domain.ErrAlreadyExists)
	}

	record := Record{Name: editor.Name, Handle: editor.Handle}
	if record.Name == "" {
		record.Name = domain.PlaceholderName
	}
	if record.Handle == "" {
		record.Handle = domain.PlaceholderHandle
	}
	editors.Set(k, record)

	return d.save(editors)
}

// RemoveEditor deletes an editor, failing with ErrNotFound when absent.
func (d *FileDirectory) RemoveEditor(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	editors, err := d.load()
	if err != nil {
		return err
	}

	if _, ok := editors.Delete(key(id)); !ok {
		return fmt.Errorf("editor %d: %w", id, domain.ErrNotFound)
	}

	return d.save(editors)
}

func (d *FileDirectory) load() (*editorMap, error) {
	editors := orderedmap.New[string, Record]()

	raw, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return editors, nil
		}
		return nil, fmt.Errorf("read editors: %w", err)
	}
	if len(raw) == 0 {
		return editors, nil
	}

	if err := json.Unmarshal(raw, editors); err != nil {
		return nil, fmt.Errorf("decode editors: %w", err)
	}
	return editors, nil
}

// save rewrites the whole file through a temp file and rename.
func (d *FileDirectory) save(editors *editorMap) error {
	raw, err := json.MarshalIndent(editors, "", "    ")
	if err != nil {
		return fmt.Errorf("encode editors: %w", err)
	}

	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, ".editors-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write editors: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace editors: %w", err)
	}
	return nil
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}
