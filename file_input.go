package simcore

import (
	"fmt"
	"os"
)

const fileQueueBufSize = 65536

// notify performs a non-blocking send on a size-1 channel, waking a
// goroutine that may be sleeping in a select on ch without blocking the
// caller if it is already awake. This is the channel-based equivalent of
// the source's "notify CV if peer may be sleeping" pattern.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// FileInputCommunicator reads a command code transmitted by the
// simulator and replies with the requested byte or availability status
// from a file, fed by a dedicated reading goroutine this communicator
// owns.
type FileInputCommunicator struct {
	commBase

	filePath string
	file     *os.File
	err      error

	stopCh chan struct{}
	doneCh chan struct{}
	wake   chan struct{}

	queue *FlushableQueue

	transmittedCommands  *UnrolledQueue[uint8]
	suppressEnded        bool
	currentTransmitChunk uint8
	currentTransmitCount uint8
	currentReceiveChunk  uint16
	currentReceiveCount  uint8
}

// NewFileInputCommunicator returns a communicator with no file loaded.
func NewFileInputCommunicator() *FileInputCommunicator {
	return &FileInputCommunicator{
		queue:               NewFlushableQueue(fileQueueBufSize),
		transmittedCommands: NewUnrolledQueue[uint8](),
		suppressEnded:       true,
	}
}

// Err returns the most recent file-open failure, or nil if the
// communicator is loaded (or has never attempted to load a file).
func (c *FileInputCommunicator) Err() error { return c.err }

func (c *FileInputCommunicator) joinFileThread() {
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	notify(c.wake)
	<-c.doneCh
	c.stopCh = nil
}

func (c *FileInputCommunicator) startFile(path string) bool {
	c.err = nil
	if path == "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		c.err = fmt.Errorf("simcore: file input open %q: %w", path, err)
		return false
	}
	c.file = f
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	wake := make(chan struct{}, 1)
	c.stopCh, c.doneCh, c.wake = stopCh, doneCh, wake
	go c.run(f, stopCh, wake, doneCh)
	return true
}

// loadFile must be called from the caller goroutine only.
func (c *FileInputCommunicator) loadFile(path string) bool {
	c.joinFileThread()
	if c.file != nil {
		c.file.Close()
		c.file = nil
	}
	// flush any bytes still buffered from a previously loaded file
	c.queue.Flush()
	return c.startFile(path)
}

// SetFile opens path for reading and starts the file-reading goroutine,
// reporting whether the open succeeded. Must be called from the caller
// goroutine only, with the simulator stopped.
func (c *FileInputCommunicator) SetFile(path string) bool {
	c.filePath = path
	return c.loadFile(path)
}

// ClearFile unloads the current file, if any.
func (c *FileInputCommunicator) ClearFile() {
	c.filePath = ""
	c.loadFile("")
}

// Reset restarts reading from the beginning of the last file set via
// SetFile, clearing all per-compile transmit/receive state.
func (c *FileInputCommunicator) Reset() {
	c.joinFileThread()
	if c.file != nil {
		c.file.Close()
		c.file = nil
	}
	c.transmittedCommands = NewUnrolledQueue[uint8]()
	c.suppressEnded = true
	c.currentTransmitChunk = 0
	c.currentTransmitCount = 0
	c.currentReceiveChunk = 0
	c.currentReceiveCount = 0
	c.queue.Clear()
	c.startFile(c.filePath)
}

func (c *FileInputCommunicator) Refresh() {}

func (c *FileInputCommunicator) peekByte() (byte, bool) {
	var b [1]byte
	if c.queue.Peek(b[:]) == 0 {
		return 0, false
	}
	return b[0], true
}

// Receive implements the FileInput command protocol: command 0b001
// ("byte request") and 0b101 ("availability poll"); unrecognized
// commands are discarded. Must be called from the simulation goroutine only.
func (c *FileInputCommunicator) Receive() bool {
	if c.currentReceiveCount == 0 && !c.transmittedCommands.Empty() {
		switch c.transmittedCommands.Front() {
		case 0b001:
			if !c.suppressEnded {
				c.queue.Discard()
			}
			if b, ok := c.peekByte(); ok {
				producerNeedsSignal := c.queue.PopAndTestProducerNeedsSignal()
				c.currentReceiveChunk = (uint16(b) << 3) | 0b001
				c.currentReceiveCount = 11
				c.transmittedCommands.Pop()
				c.suppressEnded = false
				if producerNeedsSignal {
					notify(c.wake)
				}
			}
		case 0b101:
			if !c.suppressEnded && (c.queue.Discard() || c.queue.Ended()) {
				c.currentReceiveChunk = 0b0101
				c.currentReceiveCount = 4
				c.transmittedCommands.Pop()
				c.suppressEnded = true
			} else if c.suppressEnded {
				c.currentReceiveChunk = 0b1101
				c.currentReceiveCount = 4
				c.transmittedCommands.Pop()
				c.suppressEnded = true
			} else if !c.queue.Ended() {
				if _, ok := c.peekByte(); ok {
					c.currentReceiveChunk = 0b1101
					c.currentReceiveCount = 4
					c.transmittedCommands.Pop()
					c.suppressEnded = true
				}
			}
		default:
			c.transmittedCommands.Pop()
		}
	}
	if c.currentReceiveCount != 0 {
		out := c.currentReceiveChunk&1 != 0
		c.currentReceiveChunk >>= 1
		c.currentReceiveCount--
		return out
	}
	return false
}

// Transmit shifts a command bit into the 3-bit accumulator, committing
// it to the command queue once it becomes non-zero and reaches 3 bits.
func (c *FileInputCommunicator) Transmit(value bool) {
	if value {
		c.currentTransmitChunk |= 1 << c.currentTransmitCount
	}
	if c.currentTransmitChunk != 0 {
		c.currentTransmitCount++
		if c.currentTransmitCount >= 3 {
			c.transmittedCommands.Push(c.currentTransmitChunk)
			c.currentTransmitChunk = 0
			c.currentTransmitCount = 0
		}
	}
}

// run is the file-reading goroutine body. It fills the flushable queue
// from the file in BufSize chunks, bounded by available space, and
// sleeps on wake/stopCh when the queue is full.
func (c *FileInputCommunicator) run(f *os.File, stopCh, wake chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	defer f.Close()
	buf := make([]byte, fileQueueBufSize)
	fileEnded := false
loop:
	for !fileEnded {
		select {
		case <-stopCh:
			break loop
		default:
		}
		for {
			select {
			case <-stopCh:
				break loop
			default:
			}
			space := c.queue.Space()
			if space == 0 {
				break
			}
			n := space
			if n > len(buf) {
				n = len(buf)
			}
			read, rerr := f.Read(buf[:n])
			if read > 0 {
				c.queue.Push(buf[:read])
			}
			if rerr != nil {
				fileEnded = true
				break
			}
		}
		if fileEnded {
			break
		}
		select {
		case <-wake:
		case <-stopCh:
			break loop
		}
	}
	c.queue.End()
}
