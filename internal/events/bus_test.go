// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAssignsMonotonicSeqPerJob(t *testing.T) {
	b := NewBus(nil)
	sub := b.Subscribe(16)
	defer sub.Cancel()

	b.Publish("a", KindProgress, &Progress{Percent: 10}, "")
	b.Publish("b", KindProgress, &Progress{Percent: 5}, "")
	b.Publish("a", KindProgress, &Progress{Percent: 20}, "")
	b.Publish("a", KindSucceeded, nil, "")

	var aSeqs, bSeqs []uint64
	for i := 0; i < 4; i++ {
		ev := <-sub.C
		if ev.JobID == "a" {
			aSeqs = append(aSeqs, ev.Seq)
		} else {
			bSeqs = append(bSeqs, ev.Seq)
		}
	}
	assert.Equal(t, []uint64{1, 2, 3}, aSeqs)
	assert.Equal(t, []uint64{1}, bSeqs)
}

func TestPublishPreservesPerJobOrder(t *testing.T) {
	b := NewBus(nil)
	sub := b.Subscribe(128)
	defer sub.Cancel()

	for i := 0; i < 100; i++ {
		b.Publish("job", KindProgress, &Progress{Frame: uint64(i)}, "")
	}

	var prev uint64
	for i := 0; i < 100; i++ {
		ev := <-sub.C
		require.Greater(t, ev.Seq, prev)
		prev = ev.Seq
		assert.Equal(t, uint64(i), ev.Progress.Frame)
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := NewBus(nil)
	sub := b.Subscribe(2)
	defer sub.Cancel()

	// 订阅者不读,发布必须照常返回
	for i := 0; i < 50; i++ {
		b.Publish("job", KindProgress, nil, "")
	}
	assert.Equal(t, uint64(48), b.Dropped())
}

func TestCancelClosesChannel(t *testing.T) {
	b := NewBus(nil)
	sub := b.Subscribe(4)

	sub.Cancel()
	sub.Cancel() // idempotent

	_, open := <-sub.C
	assert.False(t, open)

	b.Publish("job", KindProgress, nil, "")
}

func TestCloseDetachesSubscribers(t *testing.T) {
	b := NewBus(nil)
	sub := b.Subscribe(4)

	b.Close()
	_, open := <-sub.C
	assert.False(t, open)

	// 关闭后订阅立即得到已关闭的通道
	late := b.Subscribe(4)
	_, open = <-late.C
	assert.False(t, open)
}

func TestTerminalKinds(t *testing.T) {
	assert.True(t, KindSucceeded.Terminal())
	assert.True(t, KindFailed.Terminal())
	assert.True(t, KindCanceled.Terminal())
	assert.False(t, KindProgress.Terminal())
}
