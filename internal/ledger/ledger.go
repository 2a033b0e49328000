package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/textnorm"
)

// Decode reads ledger rows. A real cell that is blank or not a number is
// treated as absent.
func Decode(t sheet.Table, loc *time.Location) ([]Entry, error) {
	idx, err := t.Require(ColTimestamp, ColBase, ColEstimated, ColReal)
	if err != nil {
		return nil, err
	}
	unit := t.Index(ColUnit)

	out := make([]Entry, 0, len(t.Rows))
	for i, r := range t.Rows {
		e := Entry{
			Base:      strings.TrimSpace(sheet.Cell(r, idx[1])),
			Estimated: sheet.Number(sheet.Cell(r, idx[2])),
			Unit:      strings.TrimSpace(sheet.Cell(r, unit)),
			Seq:       i,
		}
		if e.Base == "" {
			continue
		}
		e.Timestamp, _ = sheet.ParseTime(sheet.Cell(r, idx[0]), loc)
		e.Real, e.HasReal = sheet.ParseNumber(sheet.Cell(r, idx[3]))
		out = append(out, e)
	}
	return out, nil
}

// Header is the layout used when the ledger table is created from scratch.
func Header() []string {
	return sheet.Header(ColTimestamp, ColBase, ColEstimated, ColReal, ColUnit)
}

// Encode renders entries using the column layout of tmpl, or the default
// layout when tmpl has no header.
func Encode(tmpl sheet.Table, entries []Entry) (sheet.Table, error) {
	header := tmpl.Header
	if len(header) == 0 {
		header = Header()
	}
	layout := sheet.Table{Name: tmpl.Name, Header: header}
	idx, err := layout.Require(ColTimestamp, ColBase, ColEstimated, ColReal)
	if err != nil {
		return sheet.Table{}, err
	}
	unit := layout.Index(ColUnit)

	out := sheet.Table{Name: tmpl.Name, Header: append([]string(nil), header...)}
	out.Rows = make([][]string, 0, len(entries))
	for _, e := range entries {
		row := make([]string, len(header))
		row[idx[0]] = sheet.FormatTime(e.Timestamp)
		row[idx[1]] = e.Base
		row[idx[2]] = sheet.FormatNumber(e.Estimated)
		if e.HasReal {
			row[idx[3]] = sheet.FormatNumber(e.Real)
		}
		if unit >= 0 {
			row[unit] = e.Unit
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// LatestByBase returns the newest entry per normalized base product. With
// preferReal a verified count wins over the estimate of the same entry.
func LatestByBase(entries []Entry, preferReal bool) map[string]Stock {
	latest := make(map[string]Entry)
	for _, e := range entries {
		key := textnorm.Key(e.Base)
		if cur, ok := latest[key]; !ok || newer(e, cur) {
			latest[key] = e
		}
	}
	out := make(map[string]Stock, len(latest))
	for key, e := range latest {
		s := Stock{Base: e.Base, Quantity: e.Estimated, Unit: e.Unit, Timestamp: e.Timestamp}
		if preferReal && e.HasReal {
			s.Quantity = e.Real
			s.Verified = true
		}
		out[key] = s
	}
	return out
}

// Supersede drops estimate-only entries recorded at or after since so that a
// repeated run of the same day replaces its own estimates.
func Supersede(entries []Entry, since time.Time) ([]Entry, int) {
	out := make([]Entry, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		if !e.HasReal && !e.Timestamp.Before(since) {
			dropped++
			continue
		}
		out = append(out, e)
	}
	return out, dropped
}

// Prune keeps the newest keep entries per product, preserving input order.
func Prune(entries []Entry, keep int) ([]Entry, int) {
	if keep <= 0 {
		return entries, 0
	}
	byBase := make(map[string][]int)
	for i, e := range entries {
		key := textnorm.Key(e.Base)
		byBase[key] = append(byBase[key], i)
	}
	drop := make(map[int]struct{})
	for _, positions := range byBase {
		if len(positions) <= keep {
			continue
		}
		sort.Slice(positions, func(a, b int) bool {
			return newer(entries[positions[a]], entries[positions[b]])
		})
		for _, p := range positions[keep:] {
			drop[p] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return entries, 0
	}
	out := make([]Entry, 0, len(entries)-len(drop))
	for i, e := range entries {
		if _, ok := drop[i]; !ok {
			out = append(out, e)
		}
	}
	return out, len(drop)
}

// BackfillReal records a verified count on the newest entry of base.
func BackfillReal(entries []Entry, base string, real float64) (Entry, error) {
	key := textnorm.Key(base)
	pos := -1
	for i, e := range entries {
		if textnorm.Key(e.Base) != key {
			continue
		}
		if pos < 0 || newer(e, entries[pos]) {
			pos = i
		}
	}
	if pos < 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrNoEntry, base)
	}
	entries[pos].Real = real
	entries[pos].HasReal = true
	return entries[pos], nil
}

// NextSeq returns the sequence number following every entry.
func NextSeq(entries []Entry) int {
	next := 0
	for _, e := range entries {
		if e.Seq >= next {
			next = e.Seq + 1
		}
	}
	return next
}
