package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/zeromine/zeromine/internal/errors"
)

// maxLineBytes bounds a single ledger line during replay.
const maxLineBytes = 1 << 20

// Replay streams every event in the ledger, in order, to fn. Replay of a
// missing ledger is a no-op. A torn final line (a crash mid-append) is
// discarded; an unparseable line followed by further records means the
// file was corrupted and replay fails with ErrLedgerCorrupt.
func (l *Ledger) Replay(fn func(Event) error) error {
	return ReplayFile(l.path, fn)
}

// ReplayFile replays a ledger file without opening it for writes. Used by
// the compactor and chain verification, which must never mutate the input.
func ReplayFile(path string, fn func(Event) error) error {
	_, err := replayFile(path, fn)
	return err
}

// replayFile additionally reports the byte offset just past the last
// complete record. Open truncates a torn tail to that offset so the next
// append starts on a fresh line instead of gluing onto the fragment.
func replayFile(path string, fn func(Event) error) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.NewLedgerError("replay", path, err)
	}
	defer f.Close()

	return replay(f, path, fn)
}

func replay(r io.Reader, path string, fn func(Event) error) (int64, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var (
		offset   int64 // bytes consumed so far
		valid    int64 // end of the last complete, parseable record
		lineNum  int
		tornLine int // line number of a parse failure, pending tail check
	)

	for {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return valid, errors.NewLedgerError("replay", path, readErr)
		}
		offset += int64(len(line))
		if len(line) > maxLineBytes {
			return valid, errors.NewLedgerError("replay", path,
				fmt.Errorf("%w: oversized record at line %d", errors.ErrLedgerCorrupt, lineNum+1))
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			lineNum++

			// A bad line is only recoverable if nothing follows it.
			if tornLine != 0 {
				return valid, errors.NewLedgerError("replay", path,
					fmt.Errorf("%w: unparseable record at line %d", errors.ErrLedgerCorrupt, tornLine))
			}

			var e Event
			// The append path writes record+newline in one durable write,
			// so a line missing its newline can only be a partial append.
			if readErr == io.EOF || json.Unmarshal(trimmed, &e) != nil {
				tornLine = lineNum
			} else {
				if err := fn(e); err != nil {
					return valid, err
				}
				valid = offset
			}
		} else if readErr == nil && tornLine == 0 {
			// Blank line with a terminator; nothing to replay past it.
			valid = offset
		}

		if readErr == io.EOF {
			// tornLine still set here means the failure was on the final
			// line: a partial append from a crash. Discard it.
			return valid, nil
		}
	}
}
