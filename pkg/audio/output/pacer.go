// ABOUTME: Software clock for outputs without a hardware audio clock
// ABOUTME: Pulls one block per buffer period on its own goroutine
package output

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// pacer pulls one block from src every period and hands it to sink. sink
// must not retain the block.
type pacer struct {
	logger *zap.Logger
	period time.Duration
	src    io.Reader
	block  []byte
	sink   func(block []byte)

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newPacer(logger *zap.Logger, period time.Duration, blockBytes int, src io.Reader, sink func([]byte)) *pacer {
	if period <= 0 {
		period = time.Millisecond
	}
	return &pacer{
		logger:   logger,
		period:   period,
		src:      src,
		block:    make([]byte, blockBytes),
		sink:     sink,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// run pulls blocks until stopped or the source fails
func (p *pacer) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := io.ReadFull(p.src, p.block); err != nil {
				p.logger.Warn("source failed, stopping clock", zap.Error(err))
				return
			}
			p.sink(p.block)
		case <-p.stopChan:
			return
		}
	}
}

// stop halts the clock and waits for the current pull to finish
func (p *pacer) stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	<-p.done
}
