package market

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterConfigAccept(t *testing.T) {
	t.Parallel()

	f := NewFilterConfig(10)

	small := Trade{Time: time.Unix(1, 0), Price: 21500, Size: 5, Side: Buy}
	big := Trade{Time: time.Unix(1, 0), Price: 21500, Size: 25, Side: Sell}

	assert.False(t, f.Accept(small))
	assert.True(t, f.Accept(big))

	f.SetMinSize(1)
	assert.True(t, f.Accept(small))
}

func TestFilterConfigConcurrent(t *testing.T) {
	t.Parallel()

	f := NewFilterConfig(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n uint64) {
			defer wg.Done()
			f.SetMinSize(n)
		}(uint64(i))
		go func() {
			defer wg.Done()
			_ = f.MinSize()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, f.MinSize(), uint64(7))
}
