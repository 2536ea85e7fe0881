package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStats_Snapshot(t *testing.T) {
	req := require.New(t)
	stats := NewStats()

	stats.ConnectionOpened()
	stats.ConnectionOpened()
	stats.ConnectionClosed()
	stats.IncrJoins()
	stats.IncrLeaves()
	stats.IncrMessagesStored()
	stats.AddDelivered(3)
	stats.AddDeliveryFailures(1)

	snap := stats.Snapshot()
	req.Equal(int64(1), snap.OpenConnections)
	req.Equal(uint64(2), snap.TotalConnections)
	req.Equal(uint64(1), snap.Joins)
	req.Equal(uint64(1), snap.Leaves)
	req.Equal(uint64(1), snap.MessagesStored)
	req.Equal(uint64(3), snap.EventsDelivered)
	req.Equal(uint64(1), snap.DeliveryFailures)
}

func TestStats_ConcurrentCounting(t *testing.T) {
	req := require.New(t)
	stats := NewStats()

	workers, perWorker := 8, 1000
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				stats.ConnectionOpened()
				stats.IncrMessagesStored()
				stats.AddDelivered(1)
				stats.ConnectionClosed()
			}
		}()
	}
	wg.Wait()

	snap := stats.Snapshot()
	req.Equal(int64(0), snap.OpenConnections)
	req.Equal(uint64(workers*perWorker), snap.TotalConnections)
	req.Equal(uint64(workers*perWorker), snap.MessagesStored)
	req.Equal(uint64(workers*perWorker), snap.EventsDelivered)
}
