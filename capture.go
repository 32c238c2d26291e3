package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Capture files hold a scope registry followed by frames:
//
//	"SCQ1"
//	uvarint nscopes { uvarint id, str name, str file, uvarint line }
//	uvarint nframes { uvarint index, uvarint nthreads { str name, varint start, str stream } }
//
// where str is a uvarint length followed by the bytes.

const captureMagic = "SCQ1"

// Longest string or stream accepted when reading, to fail fast on garbage.
const maxCaptureBlob = 1 << 30

func isCapturePath(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".scq") || strings.HasSuffix(p, ".scq.gz")
}

func writeCapture(w io.Writer, c *capture) error {
	bw := bufio.NewWriter(w)
	var buf []byte
	buf = append(buf, captureMagic...)

	ids := make([]uint64, 0, c.scopes.len())
	for id := range c.scopes.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	buf = binary.AppendUvarint(buf, uint64(len(ids)))
	for _, id := range ids {
		d := c.scopes.byID[id]
		buf = binary.AppendUvarint(buf, id)
		buf = appendString(buf, d.name)
		buf = appendString(buf, d.file)
		buf = binary.AppendUvarint(buf, uint64(d.line))
	}

	buf = binary.AppendUvarint(buf, uint64(len(c.frames)))
	for _, f := range c.frames {
		buf = binary.AppendUvarint(buf, f.index)
		threads := f.sortedThreads()
		buf = binary.AppendUvarint(buf, uint64(len(threads)))
		for _, ti := range threads {
			buf = appendString(buf, ti.name)
			buf = binary.AppendVarint(buf, ti.startNs)
			buf = binary.AppendUvarint(buf, uint64(len(f.threads[ti])))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
			buf = buf[:0]
			if _, err := bw.Write(f.threads[ti]); err != nil {
				return err
			}
		}
	}
	if _, err := bw.Write(buf); err != nil {
		return err
	}
	return bw.Flush()
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

type captureReader struct {
	r *bufio.Reader
}

func (cr *captureReader) uvarint(what string) (uint64, error) {
	v, err := binary.ReadUvarint(cr.r)
	if err != nil {
		return 0, fmt.Errorf("capture: reading %s: %w", what, unexpectedEOF(err))
	}
	return v, nil
}

func (cr *captureReader) blob(what string) ([]byte, error) {
	n, err := cr.uvarint(what)
	if err != nil {
		return nil, err
	}
	if n > maxCaptureBlob {
		return nil, fmt.Errorf("capture: %s of %d bytes is too large", what, n)
	}
	// n is untrusted; the buffer grows only with bytes actually read.
	var b bytes.Buffer
	if _, err := io.CopyN(&b, cr.r, int64(n)); err != nil {
		return nil, fmt.Errorf("capture: reading %s: %w", what, unexpectedEOF(err))
	}
	return b.Bytes(), nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func readCapture(r io.Reader) (*capture, error) {
	cr := &captureReader{r: bufio.NewReader(r)}
	magic := make([]byte, len(captureMagic))
	if _, err := io.ReadFull(cr.r, magic); err != nil || string(magic) != captureMagic {
		return nil, errors.New("capture: not a scope capture (bad magic)")
	}

	c := &capture{scopes: newScopeCollection()}
	nscopes, err := cr.uvarint("scope count")
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < nscopes; i++ {
		id, err := cr.uvarint("scope id")
		if err != nil {
			return nil, err
		}
		name, err := cr.blob("scope name")
		if err != nil {
			return nil, err
		}
		file, err := cr.blob("scope file")
		if err != nil {
			return nil, err
		}
		line, err := cr.uvarint("scope line")
		if err != nil {
			return nil, err
		}
		c.scopes.register(id, scopeDetails{name: string(name), file: string(file), line: uint32(line)})
	}

	nframes, err := cr.uvarint("frame count")
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < nframes; i++ {
		index, err := cr.uvarint("frame index")
		if err != nil {
			return nil, err
		}
		f := newFrame(index)
		nthreads, err := cr.uvarint("thread count")
		if err != nil {
			return nil, err
		}
		for j := uint64(0); j < nthreads; j++ {
			name, err := cr.blob("thread name")
			if err != nil {
				return nil, err
			}
			start, err := binary.ReadVarint(cr.r)
			if err != nil {
				return nil, fmt.Errorf("capture: reading thread start: %w", unexpectedEOF(err))
			}
			stream, err := cr.blob("thread stream")
			if err != nil {
				return nil, err
			}
			f.threads[threadInfo{name: string(name), startNs: start}] = stream
		}
		c.frames = append(c.frames, f)
	}
	return c, nil
}
