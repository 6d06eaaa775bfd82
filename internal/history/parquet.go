package history

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/askmesh/askmesh/internal/resolver"
	"github.com/askmesh/askmesh/internal/storage"
)

type EncodeResult struct {
	Data        []byte
	RecordCount int64
	FirstAt     *time.Time
	LastAt      *time.Time
}

type parquetTurn struct {
	ID         string   `parquet:"id"`
	Question   string   `parquet:"question"`
	SQL        *string  `parquet:"sql,optional"`
	TablesUsed []string `parquet:"tables_used,list"`
	Source     string   `parquet:"source"`
	Mode       string   `parquet:"mode"`
	AtUnixMs   int64    `parquet:"at_unix_ms"`
}

// Encode writes turns as one parquet file in history order.
func Encode(turns []resolver.Turn) (EncodeResult, error) {
	if len(turns) == 0 {
		return EncodeResult{}, fmt.Errorf("turns are required")
	}

	rows := make([]parquetTurn, 0, len(turns))
	var first, last *time.Time
	for _, turn := range turns {
		var sqlText *string
		if turn.SQL != nil {
			value := *turn.SQL
			sqlText = &value
		}
		tables := append([]string{}, turn.TablesUsed...)
		rows = append(rows, parquetTurn{
			ID:         turn.ID,
			Question:   turn.Question,
			SQL:        sqlText,
			TablesUsed: tables,
			Source:     string(turn.Source),
			Mode:       string(turn.Mode),
			AtUnixMs:   turn.At.UnixMilli(),
		})

		if !turn.At.IsZero() {
			at := turn.At.UTC()
			if first == nil || at.Before(*first) {
				copy := at
				first = &copy
			}
			if last == nil || at.After(*last) {
				copy := at
				last = &copy
			}
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetTurn](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return EncodeResult{
		Data:        buf.Bytes(),
		RecordCount: int64(len(rows)),
		FirstAt:     first,
		LastAt:      last,
	}, nil
}

// WriteFile encodes turns into path, creating parent directories.
func WriteFile(path string, turns []resolver.Turn) (EncodeResult, error) {
	result, err := Encode(turns)
	if err != nil {
		return EncodeResult{}, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return EncodeResult{}, fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, result.Data, 0o644); err != nil {
		return EncodeResult{}, fmt.Errorf("write export %q: %w", path, err)
	}
	return result, nil
}

// Upload stores the encoded turns under the session's history key.
func Upload(ctx context.Context, store storage.ObjectStore, service, sessionID string, turns []resolver.Turn, now time.Time) (storage.ObjectInfo, error) {
	if store == nil {
		return storage.ObjectInfo{}, fmt.Errorf("object store is required")
	}
	key, err := storage.BuildHistoryExportPath(service, sessionID, now)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	result, err := Encode(turns)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := store.Put(ctx, key, bytes.NewReader(result.Data), int64(len(result.Data)), storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload history: %w", err)
	}
	if info.Key == "" {
		info.Key = key
	}
	return info, nil
}
