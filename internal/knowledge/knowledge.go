// Package knowledge holds the read-only health reference table used to ground replies.
//
// The table is loaded once at startup from a spreadsheet whose first row holds the
// column headers and is never refreshed afterwards.
package knowledge

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TopicColumn is the header of the column used for lookups.
const TopicColumn = "topic"

// Record is one row of the knowledge sheet, keyed by column header.
type Record map[string]string

// Topic returns the value of the topic column. A header spelled "Topic" also counts.
func (r Record) Topic() string {
	if t, ok := r[TopicColumn]; ok {
		return t
	}
	for k, v := range r {
		if strings.EqualFold(k, TopicColumn) {
			return v
		}
	}
	return ""
}

// Loader fetches every record of the knowledge sheet.
type Loader interface {
	LoadRecords(ctx context.Context) ([]Record, error)
}

// Base is an immutable in-memory list of records. The zero value is an empty base.
type Base struct {
	records []Record
}

// NewBase wraps already loaded records.
func NewBase(records []Record) *Base {
	return &Base{records: records}
}

// Load reads all records through loader. A nil loader or a failed load is logged and
// yields an empty base, so callers can always use the result.
func Load(ctx context.Context, loader Loader) *Base {
	if loader == nil {
		slog.Warn("knowledge.Load: no loader configured, knowledge base is empty")
		return &Base{}
	}
	records, err := loader.LoadRecords(ctx)
	if err != nil {
		slog.Error("knowledge.Load: failed to load records, knowledge base is empty", "error", err)
		return &Base{}
	}
	slog.Info("knowledge.Load: loaded records", "count", len(records))
	return &Base{records: records}
}

// Len returns the number of loaded records.
func (b *Base) Len() int {
	if b == nil {
		return 0
	}
	return len(b.records)
}

// Lookup returns the first record whose topic equals topic, ignoring case.
func (b *Base) Lookup(topic string) (Record, bool) {
	if b == nil {
		return nil, false
	}
	want := strings.ToLower(strings.TrimSpace(topic))
	for _, r := range b.records {
		if t := r.Topic(); t != "" && strings.ToLower(t) == want {
			slog.Debug("Base.Lookup: found record", "topic", topic)
			return r, true
		}
	}
	slog.Debug("Base.Lookup: no record found", "topic", topic)
	return nil, false
}

// Match returns the first record whose topic occurs in text as a whole word or phrase,
// ignoring case. "Flu" matches "I have flu" but not "fluid".
func (b *Base) Match(text string) (Record, bool) {
	if b == nil || text == "" {
		return nil, false
	}
	lower := strings.ToLower(text)
	for _, r := range b.records {
		t := strings.ToLower(strings.TrimSpace(r.Topic()))
		if t != "" && containsWord(lower, t) {
			slog.Debug("Base.Match: matched record", "topic", r.Topic())
			return r, true
		}
	}
	return nil, false
}

// containsWord reports whether word occurs in text with no letter, digit or combining
// mark directly before or after it.
func containsWord(text, word string) bool {
	for offset := 0; offset <= len(text)-len(word); {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start, end := offset+i, offset+i+len(word)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// StaticLoader serves a fixed set of records.
type StaticLoader struct {
	Records []Record
	Err     error
}

// LoadRecords returns the configured records or error.
func (l StaticLoader) LoadRecords(ctx context.Context) ([]Record, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Records, nil
}

// rowsToRecords turns a header row plus data rows into records. Short rows are padded
// with empty strings, columns without a header and fully empty rows are dropped.
func rowsToRecords(rows [][]string) []Record {
	if len(rows) == 0 {
		return nil
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var records []Record
	for _, row := range rows[1:] {
		rec := make(Record, len(headers))
		empty := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			var cell string
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			if cell != "" {
				empty = false
			}
			rec[h] = cell
		}
		if !empty {
			records = append(records, rec)
		}
	}
	return records
}
