package querycache

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"
)

// FilePersister stores the mapping as JSON in a single file. Saves
// write a temporary file in the same directory and rename it into place.
type FilePersister struct {
	path string
}

func NewFilePersister(dir, name string) (*FilePersister, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if name == "" {
		return nil, fmt.Errorf("cache file name is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	return &FilePersister{path: filepath.Join(dir, name)}, nil
}

// OpenFile opens a SnapshotStore backed by dir/name.
func OpenFile(ctx context.Context, dir, name string) (*SnapshotStore, error) {
	persist, err := NewFilePersister(dir, name)
	if err != nil {
		return nil, err
	}
	return OpenSnapshot(ctx, persist)
}

func (p *FilePersister) Path() string {
	return p.path
}

func (p *FilePersister) Load(context.Context) (map[string]string, error) {
	raw, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.path, err)
	}
	return DecodeEntries(raw)
}

func (p *FilePersister) Save(_ context.Context, entries map[string]string) error {
	raw, err := EncodeEntries(entries)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// cachedEntry is one persisted mapping. Text that is not valid UTF-8 would be
// altered by JSON encoding, so it is stored base64 encoded instead.
type cachedEntry struct {
	Question       string `json:"question"`
	QuestionBase64 string `json:"question_base64,omitempty"`
	SQL            string `json:"sql"`
	SQLBase64      string `json:"sql_base64,omitempty"`
}

// EncodeEntries writes the mapping as a JSON list sorted by question.
func EncodeEntries(entries map[string]string) ([]byte, error) {
	questions := make([]string, 0, len(entries))
	for question := range entries {
		questions = append(questions, question)
	}
	sort.Strings(questions)

	list := make([]cachedEntry, 0, len(questions))
	for _, question := range questions {
		var item cachedEntry
		item.Question, item.QuestionBase64 = encodeText(question)
		item.SQL, item.SQLBase64 = encodeText(entries[question])
		list = append(list, item)
	}
	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode query cache: %w", err)
	}
	return append(raw, '\n'), nil
}

// DecodeEntries reads the list written by EncodeEntries and also accepts a
// plain JSON object of question to SQL.
func DecodeEntries(raw []byte) (map[string]string, error) {
	entries := map[string]string{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return entries, nil
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode query cache: %w", err)
		}
		return entries, nil
	}

	var list []cachedEntry
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("decode query cache: %w", err)
	}
	for i, item := range list {
		question, err := decodeText(item.Question, item.QuestionBase64)
		if err != nil {
			return nil, fmt.Errorf("decode query cache entry %d question: %w", i, err)
		}
		sql, err := decodeText(item.SQL, item.SQLBase64)
		if err != nil {
			return nil, fmt.Errorf("decode query cache entry %d sql: %w", i, err)
		}
		entries[question] = sql
	}
	return entries, nil
}

func encodeText(value string) (plain, encoded string) {
	if utf8.ValidString(value) {
		return value, ""
	}
	return "", base64.StdEncoding.EncodeToString([]byte(value))
}

func decodeText(plain, encoded string) (string, error) {
	if encoded == "" {
		return plain, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
