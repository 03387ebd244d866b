// Package feed parses recorded position streams in NDJSON form, one update
// per line.
package feed

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMalformedRecord flags a line that could not be parsed. The stream
// remains usable; each update fails independently.
var ErrMalformedRecord = eris.New("feed: malformed record")

// Record is one position update. Lat/Lon are pointers so a report without
// coordinates is distinguishable from one at (0, 0); callers treat a missing
// fix the same as an explicit unavailable signal.
type Record struct {
	EntityID    string   `json:"entity_id"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	AccuracyM   *float64 `json:"accuracy"`
	Unavailable bool     `json:"unavailable"`
}

// HasFix reports whether the record carries usable coordinates.
func (r Record) HasFix() bool {
	return !r.Unavailable && r.Lat != nil && r.Lon != nil
}

// Decoder reads records line by line. A malformed line yields an error from
// Next without poisoning the stream.
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

// NewDecoder wraps an NDJSON stream.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Decoder{sc: sc}
}

// Next returns the next record, io.EOF at end of stream, or a wrapped
// ErrMalformedRecord for an unparseable or incomplete line.
func (d *Decoder) Next() (Record, error) {
	for d.sc.Scan() {
		d.line++
		text := strings.TrimSpace(d.sc.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return Record{}, eris.Wrapf(ErrMalformedRecord, "line %d: %v", d.line, err)
		}
		if rec.EntityID == "" {
			return Record{}, eris.Wrapf(ErrMalformedRecord, "line %d: missing entity_id", d.line)
		}
		return rec, nil
	}

	if err := d.sc.Err(); err != nil {
		return Record{}, eris.Wrap(err, "feed: read stream")
	}
	return Record{}, io.EOF
}
