// Package logchan serialises log lines from many goroutines into one file.
//
// A single consumer goroutine owns the destination and performs every write,
// so lines never interleave. Producers only ever enqueue; a failing
// destination is never reported back to them.
package logchan

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultBuffer = 256

type Options struct {
	// Buffer is the channel capacity. Zero uses a default.
	Buffer int

	// MaxSizeMB enables size-based rotation of the destination when > 0.
	MaxSizeMB  int
	MaxBackups int
}

type message struct {
	line string
	stop bool
}

type Channel struct {
	msgs chan message
	done chan struct{}

	// mu orders Close after every in-flight Send.
	mu      sync.RWMutex
	closing bool

	once    sync.Once
	written atomic.Int64
	dropped atomic.Int64
	errMu   sync.Mutex
	sinkErr error
}

// Open starts the consumer for path. An empty path discards every message.
func Open(path string, opts Options) *Channel {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	c := &Channel{
		msgs: make(chan message, opts.Buffer),
		done: make(chan struct{}),
	}
	go c.consume(path, opts)
	return c
}

// Send enqueues one line. It never fails; after Close the line is dropped.
func (c *Channel) Send(line string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closing {
		c.dropped.Add(1)
		return
	}
	select {
	case c.msgs <- message{line: line}:
	case <-c.done:
		c.dropped.Add(1)
	}
}

// Close sends the sentinel once and waits until everything queued before it
// has been written. Lines sent once Close has begun are dropped.
func (c *Channel) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closing = true
		c.mu.Unlock()
		select {
		case c.msgs <- message{stop: true}:
		case <-c.done:
		}
	})
	<-c.done
}

// Err reports why the destination stopped accepting writes, if it did.
func (c *Channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.sinkErr
}

// Written is the number of lines that reached the destination.
func (c *Channel) Written() int64 { return c.written.Load() }

// Dropped counts lines sent after the channel was closed.
func (c *Channel) Dropped() int64 { return c.dropped.Load() }

// Writer adapts the channel for slog handlers: each Write becomes one line.
func (c *Channel) Writer() io.Writer { return lineWriter{c} }

type lineWriter struct{ c *Channel }

func (w lineWriter) Write(p []byte) (int, error) {
	w.c.Send(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (c *Channel) fail(err error) {
	c.errMu.Lock()
	if c.sinkErr == nil {
		c.sinkErr = err
	}
	c.errMu.Unlock()
}

func (c *Channel) consume(path string, opts Options) {
	defer close(c.done)

	dest, err := openSink(path, opts)
	if err != nil {
		c.fail(err)
	}
	var w *bufio.Writer
	if dest != nil {
		defer dest.Close()
		w = bufio.NewWriter(dest)
	}

	for m := range c.msgs {
		if m.stop {
			return
		}
		if w == nil {
			continue
		}
		if _, err := w.WriteString(m.line + "\n"); err != nil {
			c.fail(err)
			w = nil
			continue
		}
		if err := w.Flush(); err != nil {
			c.fail(err)
			w = nil
			continue
		}
		c.written.Add(1)
	}
}

func openSink(path string, opts Options) (io.WriteCloser, error) {
	if path == "" {
		return nil, nil
	}
	if opts.MaxSizeMB > 0 {
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
