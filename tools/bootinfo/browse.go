package main

import (
	"bytes"
	"fmt"
	"io"
	"stivaleos/stivale2"
)

// runeReader is implemented by *tty.TTY.
type runeReader interface {
	ReadRune() (rune, error)
}

type tagEntry struct {
	addr     uint64
	id       stivale2.TagID
	shadowed bool
}

// browser is an interactive tag list. j/k move the selection, q quits.
type browser struct {
	info    *stivale2.Info
	tags    []tagEntry
	walkErr error
	sel     int
}

func newBrowser(info *stivale2.Info) *browser {
	b := &browser{info: info}

	seen := make(map[stivale2.TagID]bool)
	it := info.Tags()
	for it.Next() {
		id := it.Tag().Identifier
		b.tags = append(b.tags, tagEntry{addr: it.Addr(), id: id, shadowed: seen[id]})
		seen[id] = true
	}
	b.walkErr = kerr(it.Err())

	return b
}

// handle processes a key press and returns false when the browser should
// exit.
func (b *browser) handle(key rune) bool {
	switch key {
	case 'q', 3: // q or ctrl+c
		return false
	case 'j', 'n':
		if b.sel < len(b.tags)-1 {
			b.sel++
		}
	case 'k', 'p':
		if b.sel > 0 {
			b.sel--
		}
	case 'g':
		b.sel = 0
	case 'G':
		b.sel = max(len(b.tags)-1, 0)
	}

	return true
}

// render draws the tag list and the details of the selected tag.
func (b *browser) render(w io.Writer) {
	var buf bytes.Buffer

	// Clear the screen and move to the top left corner
	buf.WriteString("\x1b[2J\x1b[H")
	s := b.info.Struct()
	fmt.Fprintf(&buf, "%s %s: %d tags (j/k to move, q to quit)\r\n\r\n", s.BootloaderBrand(), s.BootloaderVersion(), len(b.tags))

	for n, tag := range b.tags {
		marker := "  "
		if n == b.sel {
			marker = "> "
		}
		fmt.Fprintf(&buf, "%s%#016x %s\r\n", marker, tag.addr, tag.id)
	}

	if b.walkErr != nil {
		fmt.Fprintf(&buf, "  chain error: %s\r\n", b.walkErr)
	}

	if len(b.tags) != 0 {
		buf.WriteString("\r\n")
		tag := b.tags[b.sel]

		var details bytes.Buffer
		if tag.shadowed {
			details.WriteString("\tshadowed by an earlier tag with the same identifier\n")
		} else if err := describeTag(&details, b.info, tag.id); err != nil {
			fmt.Fprintf(&details, "\terror: %s\n", err)
		}
		buf.Write(bytes.ReplaceAll(details.Bytes(), []byte("\n"), []byte("\r\n")))
	}

	w.Write(buf.Bytes())
}

// run renders the browser after every key press until the user quits or
// the input is closed.
func (b *browser) run(in runeReader, out io.Writer) error {
	for {
		b.render(out)

		key, err := in.ReadRune()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		if !b.handle(key) {
			return nil
		}
	}
}
