package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"lendingScope/internal/model"
)

// JsonlStorage appends records to a JSONL file, one object per line.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) Path() string {
	return s.path
}

// PutPrices appends oracle reads as JSON lines.
func (s *JsonlStorage) PutPrices(_ context.Context, prices []model.PriceRecord) error {
	if len(prices) == 0 {
		return nil
	}
	lines := make([]interface{}, len(prices))
	for i := range prices {
		lines[i] = prices[i]
	}
	return s.appendLines(lines)
}

// PutDeposits appends deposit and withdraw outcomes as JSON lines.
func (s *JsonlStorage) PutDeposits(_ context.Context, deposits []model.DepositRecord) error {
	if len(deposits) == 0 {
		return nil
	}
	lines := make([]interface{}, len(deposits))
	for i := range deposits {
		lines[i] = deposits[i]
	}
	return s.appendLines(lines)
}

func (s *JsonlStorage) appendLines(records []interface{}) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
