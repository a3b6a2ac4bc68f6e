package webapi

import (
	"fmt"
	"io"
	"time"
)

// ProgressMonitor is a capability object supplied by the caller of a
// transfer. It is polled cooperatively during streaming: IsCancelled at
// bounded intervals (worst-case cancellation latency equals the underlying
// I/O timeout), OnProgressNotify with the cumulative byte count at most once
// per notify interval.
type ProgressMonitor interface {
	IsCancelled() bool
	OnProgressNotify(bytesSoFar int64)
}

// TotalSizeReporter is optionally implemented by monitors that want the
// transfer's total byte count before streaming begins. Downloads learn
// their size from the response Content-Length, so a monitor constructed
// before the request cannot know it; DownloadFromLink reports it through
// this interface once the response headers arrive.
type TotalSizeReporter interface {
	OnTotalSize(total int64)
}

// Progress notify intervals and cancellation-poll block sizes. Uploads
// notify less often than downloads because upload UIs historically update
// around once a second. Tunable constants, not architecture.
const (
	uploadNotifyInterval   = 1000 * time.Millisecond
	downloadNotifyInterval = 500 * time.Millisecond
	uploadBlockSize        = 1024
	downloadBlockSize      = 4096
)

// monitoredReader decorates an io.Reader with byte counting, periodic
// progress notification, and cooperative cancellation. A cancelled monitor
// aborts the stream with ErrCancelled, which the transfer code keeps
// distinct from I/O failure.
type monitoredReader struct {
	src       io.Reader
	monitor   ProgressMonitor
	interval  time.Duration
	blockSize int64

	bytesRead  int64
	nextNotify time.Time
	now        func() time.Time // test hook
}

func newMonitoredReader(src io.Reader, monitor ProgressMonitor, interval time.Duration, blockSize int64) *monitoredReader {
	return &monitoredReader{
		src:        src,
		monitor:    monitor,
		interval:   interval,
		blockSize:  blockSize,
		nextNotify: time.Now().Add(interval),
		now:        time.Now,
	}
}

func (r *monitoredReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.bytesRead += int64(n)
	}

	if err != nil {
		return n, err
	}

	// Single-byte reads only poll at block boundaries; larger reads poll
	// every time, same as the monitor contract for buffered streams.
	if len(p) > 1 || r.bytesRead%r.blockSize == 0 {
		if merr := checkMonitor(r.monitor, r.bytesRead, &r.nextNotify, r.interval, r.now); merr != nil {
			return n, merr
		}
	}

	return n, nil
}

// monitoredWriter is the write-side counterpart of monitoredReader, used
// when a download streams into a local file.
type monitoredWriter struct {
	dst       io.Writer
	monitor   ProgressMonitor
	interval  time.Duration
	blockSize int64

	bytesWritten int64
	nextNotify   time.Time
	now          func() time.Time // test hook
}

func newMonitoredWriter(dst io.Writer, monitor ProgressMonitor, interval time.Duration, blockSize int64) *monitoredWriter {
	return &monitoredWriter{
		dst:        dst,
		monitor:    monitor,
		interval:   interval,
		blockSize:  blockSize,
		nextNotify: time.Now().Add(interval),
		now:        time.Now,
	}
}

func (w *monitoredWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.bytesWritten += int64(n)

	if err != nil {
		return n, err
	}

	if len(p) > 1 || w.bytesWritten%w.blockSize == 0 {
		if merr := checkMonitor(w.monitor, w.bytesWritten, &w.nextNotify, w.interval, w.now); merr != nil {
			return n, merr
		}
	}

	return n, nil
}

// checkMonitor polls cancellation first, then emits a progress notification
// if the interval has elapsed.
func checkMonitor(m ProgressMonitor, bytes int64, nextNotify *time.Time, interval time.Duration, now func() time.Time) error {
	if m.IsCancelled() {
		return fmt.Errorf("stream aborted: %w", ErrCancelled)
	}

	if t := now(); t.After(*nextNotify) {
		m.OnProgressNotify(bytes)
		*nextNotify = t.Add(interval)
	}

	return nil
}
