package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/supportdesk/backend/pkg/logger"
)

var ErrMissingColumn = errors.New("corpus: response column not found in header")

// Pair is one known question and its canned response.
type Pair struct {
	Question string
	Response string
}

type LoadOptions struct {
	ResponseColumn string
	// QuestionColumn is optional; the question text is informational only.
	QuestionColumn string
}

func LoadFile(path string, opts LoadOptions) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	pairs, err := LoadCSV(f, opts)
	if err != nil {
		return nil, err
	}

	logger.Info("Corpus loaded", zap.String("path", path), zap.Int("entries", len(pairs)))
	return pairs, nil
}

// LoadCSV reads a headed CSV and returns its rows in file order.
func LoadCSV(r io.Reader, opts LoadOptions) ([]Pair, error) {
	if opts.ResponseColumn == "" {
		opts.ResponseColumn = "response"
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyCorpus
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus header: %w", err)
	}

	responseIdx, questionIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case strings.EqualFold(name, opts.ResponseColumn):
			responseIdx = i
		case opts.QuestionColumn != "" && strings.EqualFold(name, opts.QuestionColumn):
			questionIdx = i
		}
	}
	if responseIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, opts.ResponseColumn)
	}

	var pairs []Pair
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus row %d: %w", len(pairs)+2, err)
		}

		var p Pair
		if responseIdx < len(record) {
			p.Response = record[responseIdx]
		}
		if questionIdx >= 0 && questionIdx < len(record) {
			p.Question = record[questionIdx]
		}
		pairs = append(pairs, p)
	}

	if len(pairs) == 0 {
		return nil, ErrEmptyCorpus
	}

	return pairs, nil
}
