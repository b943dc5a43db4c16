package ingest

import (
	"bytes"
	"io"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/compress/zstd"

	perrors "github.com/ekrich/spark/pkg/errors"
)

// WriteIPC writes the table to w as an Arrow IPC stream.
func (t *Table) WriteIPC(w io.Writer) error {
	writer := ipc.NewWriter(w,
		ipc.WithSchema(t.rec.Schema()),
		ipc.WithAllocator(memory.NewGoAllocator()))
	if err := writer.Write(t.rec); err != nil {
		writer.Close()
		return perrors.Wrap(err, perrors.ErrorTypeInternal, "failed to write record batch")
	}
	if err := writer.Close(); err != nil {
		return perrors.Wrap(err, perrors.ErrorTypeInternal, "failed to close stream writer")
	}
	return nil
}

// WriteIPCZstd writes the IPC stream through a zstd encoder.
func (t *Table) WriteIPCZstd(w io.Writer) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return perrors.Wrap(err, perrors.ErrorTypeInternal, "failed to create zstd encoder")
	}
	if err := t.WriteIPC(enc); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return perrors.Wrap(err, perrors.ErrorTypeInternal, "failed to flush zstd encoder")
	}
	return nil
}

// SerializeIPC returns the table as IPC stream bytes, optionally
// compressed with zstd.
func (t *Table) SerializeIPC(compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if compress {
		if err := t.WriteIPCZstd(&buf); err != nil {
			return nil, err
		}
	} else {
		if err := t.WriteIPC(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ReadIPC reads the first record batch of an Arrow IPC stream back into
// a table.
func ReadIPC(r io.Reader) (*Table, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeInternal, "failed to open stream reader")
	}
	defer reader.Release()

	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return nil, perrors.Wrap(err, perrors.ErrorTypeInternal, "failed to read record batch")
		}
		return nil, perrors.New(perrors.ErrorTypeData, "stream contains no record batches")
	}
	rec := reader.Record()
	rec.Retain()
	return &Table{rec: rec}, nil
}

// ReadIPCZstd reads a zstd-compressed IPC stream.
func ReadIPCZstd(r io.Reader) (*Table, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeInternal, "failed to create zstd decoder")
	}
	defer dec.Close()
	return ReadIPC(dec)
}
