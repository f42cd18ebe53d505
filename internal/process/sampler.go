// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package process

// Sampler reports resource usage of a supervised process
type Sampler interface {
	Attach(pid int) error
	Detach()
	Current() (cpu float64, memory uint64)
}

type nullSampler struct{}

// NewNullSampler returns a no-op sampler
func NewNullSampler() Sampler {
	return &nullSampler{}
}

func (s *nullSampler) Attach(pid int) error       { return nil }
func (s *nullSampler) Detach()                    {}
func (s *nullSampler) Current() (float64, uint64) { return 0, 0 }
