package simcore

import "sync/atomic"

// FileOutputCommunicator accepts 11-bit transmit frames from the
// simulator and writes the encoded bytes to a file via a dedicated
// writing goroutine this communicator owns, acknowledging each
// committed byte back to the simulator.
type FileOutputCommunicator struct {
	commBase

	filePath string
	handle   outputHandle
	err      error

	stopCh chan struct{}
	doneCh chan struct{}
	wake   chan struct{}

	// used by the simulation goroutine only
	writeQueue           *UnrolledQueue[byte]
	currentTransmitChunk uint16
	currentTransmitCount uint8
	currentReceiveChunk  uint8
	currentReceiveCount  uint8

	// shared between the simulation goroutine and the file goroutine
	queue             *FixedQueue[byte]
	acknowledgedBytes atomic.Uint64
}

// NewFileOutputCommunicator returns a communicator with no file loaded.
func NewFileOutputCommunicator() *FileOutputCommunicator {
	return &FileOutputCommunicator{
		writeQueue: NewUnrolledQueue[byte](),
		queue:      NewFixedQueue[byte](fileQueueBufSize),
	}
}

// Err returns the most recent file-open failure, or nil if the
// communicator is loaded (or has never attempted to load a file).
func (c *FileOutputCommunicator) Err() error { return c.err }

func (c *FileOutputCommunicator) joinFileThread() {
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	notify(c.wake)
	<-c.doneCh
	c.stopCh = nil
}

func (c *FileOutputCommunicator) startFile(path string) bool {
	c.err = nil
	if path == "" {
		return false
	}
	h, err := openOutputFile(path)
	if err != nil {
		c.err = err
		return false
	}
	c.handle = h
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	wake := make(chan struct{}, 1)
	c.stopCh, c.doneCh, c.wake = stopCh, doneCh, wake
	go c.run(h, stopCh, wake, doneCh)
	return true
}

func (c *FileOutputCommunicator) loadFile(path string) bool {
	c.joinFileThread()
	return c.startFile(path)
}

// SetFile opens path for writing (truncating it, with OS buffering
// disabled) and starts the file-writing goroutine, reporting whether the
// open succeeded. Must be called from the caller goroutine only, with
// the simulator stopped.
func (c *FileOutputCommunicator) SetFile(path string) bool {
	c.filePath = path
	return c.loadFile(path)
}

// GetFile returns the path last given to SetFile.
func (c *FileOutputCommunicator) GetFile() string { return c.filePath }

// ClearFile unloads the current file, if any.
func (c *FileOutputCommunicator) ClearFile() {
	c.filePath = ""
	c.joinFileThread()
}

// Reset clears all per-compile transmit/receive state and reopens the
// last file given to SetFile, truncating it.
func (c *FileOutputCommunicator) Reset() {
	c.joinFileThread()
	for !c.writeQueue.Empty() {
		c.writeQueue.Pop()
	}
	c.currentTransmitChunk = 0
	c.currentTransmitCount = 0
	c.currentReceiveChunk = 0
	c.currentReceiveCount = 0
	c.acknowledgedBytes.Store(0)
	c.queue.Clear()
	c.startFile(c.filePath)
}

func (c *FileOutputCommunicator) Refresh() {}

// Receive emits a 3-bit acknowledgement frame (0b001) per byte the file
// goroutine has committed. Must be called from the simulation goroutine only.
func (c *FileOutputCommunicator) Receive() bool {
	if c.currentReceiveCount == 0 {
		if n := c.acknowledgedBytes.Load(); n > 0 {
			c.acknowledgedBytes.Add(^uint64(0)) // fetch_sub(1)
			c.currentReceiveChunk = 0b001
			c.currentReceiveCount = 3
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

// Transmit shifts a bit into the 11-bit frame accumulator, and on frame
// completion (command 0b001 followed by 8 data bits) enqueues the byte,
// preferring the bounded SPSC queue to the file goroutine and falling
// back to the unbounded overflow queue when it has no space (or already
// holds backlog). Must be called from the simulation goroutine only.
func (c *FileOutputCommunicator) Transmit(value bool) {
	for !c.writeQueue.Empty() {
		if !c.queue.TryPush(c.writeQueue.Front()) {
			break
		}
		c.writeQueue.Pop()
	}
	if value {
		c.currentTransmitChunk |= 1 << c.currentTransmitCount
	}
	if c.currentTransmitChunk != 0 {
		c.currentTransmitCount++
		if c.currentTransmitCount >= 3 {
			switch c.currentTransmitChunk & 0b111 {
			case 0b001:
				if c.currentTransmitCount == 11 {
					b := byte(c.currentTransmitChunk >> 3)
					consumerNeedsSignal := false
					if c.writeQueue.Empty() && c.queue.Space() > 0 {
						consumerNeedsSignal = c.queue.EmplaceAndTestConsumerNeedsSignal(b)
					} else {
						c.writeQueue.Push(b)
					}
					c.currentTransmitChunk = 0
					c.currentTransmitCount = 0
					if consumerNeedsSignal {
						notify(c.wake)
					}
				}
			default:
				c.currentTransmitChunk = 0
				c.currentTransmitCount = 0
			}
		}
	}
}

// run is the file-writing goroutine body. It drains committed bytes from
// the bounded SPSC queue to the file in bulk, acknowledging each
// committed byte, and sleeps on wake/stopCh when the queue is empty.
func (c *FileOutputCommunicator) run(h outputHandle, stopCh, wake chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	defer h.Close()
	stopped := false
loop:
	for !stopped {
		for {
			available := c.queue.Available()
			if available == 0 {
				break
			}
			bytes := make([]byte, available)
			c.queue.Peek(bytes)
			committed, werr := h.Write(bytes)
			c.queue.Pop(bytes[:committed])
			c.acknowledgedBytes.Add(uint64(committed))
			if werr != nil || committed != available {
				stopped = true
				break
			}
			select {
			case <-stopCh:
				stopped = true
			default:
			}
			if stopped {
				break
			}
		}
		if stopped {
			break
		}
		select {
		case <-wake:
		case <-stopCh:
			break loop
		}
	}
}
