package ouroborosidata

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// StartTransactionCounter logs chunk reads and writes per second until Close.
func (s *Store) StartTransactionCounter() {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				readOps := atomic.SwapUint64(&s.readCounter, 0)
				writeOps := atomic.SwapUint64(&s.writeCounter, 0)
				log.WithFields(logrus.Fields{"read_ops": readOps, "write_ops": writeOps}).Info("Chunk operations per second")
			}
		}
	}()
}

// Counters returns the chunk reads and writes since the last tick.
func (s *Store) Counters() (reads, writes uint64) {
	return atomic.LoadUint64(&s.readCounter), atomic.LoadUint64(&s.writeCounter)
}
