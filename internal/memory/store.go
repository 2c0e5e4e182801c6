// Package memory is the durable note store backing long-term recall.
// Notes are plain markdown files under {home}/memory, one fact or
// preference per file.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Note is one stored memory.
type Note struct {
	Name     string    `json:"name"` // file name without extension
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Modified time.Time `json:"modified"`
}

// Store reads and writes notes under a single directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at {home}/memory.
func NewStore(home string) *Store {
	return &Store{dir: filepath.Join(home, "memory")}
}

// Save writes a note, slugging the title into a file name. An existing
// note with the same slug is overwritten.
func (s *Store) Save(title, content string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("note title must not be empty")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	name := slugify(title)
	body := fmt.Sprintf("# %s\n\n%s\n", strings.TrimSpace(title), strings.TrimSpace(content))
	if err := os.WriteFile(filepath.Join(s.dir, name+".md"), []byte(body), 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// List returns every note, newest first.
func (s *Store) List() ([]Note, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var notes []Note
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		title, content := splitNote(string(data))
		notes = append(notes, Note{
			Name:     name,
			Title:    title,
			Content:  content,
			Modified: info.ModTime(),
		})
	}

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].Modified.After(notes[j].Modified)
	})
	return notes, nil
}

// Delete removes a note by name.
func (s *Store) Delete(name string) error {
	return os.Remove(filepath.Join(s.dir, name+".md"))
}

// splitNote separates a leading "# Title" heading from the body.
func splitNote(raw string) (title, content string) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "# ") {
		if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
			return strings.TrimSpace(raw[2:idx]), strings.TrimSpace(raw[idx+1:])
		}
		return strings.TrimSpace(raw[2:]), ""
	}
	return "", raw
}

func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "note"
	}
	if len(slug) > 64 {
		slug = slug[:64]
	}
	return slug
}
