// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package queue

import "errors"

var (
	ErrNotFound             = errors.New("job not found")
	ErrDuplicateDestination = errors.New("destination already targeted by a pending or running job")
	ErrInvalidJob           = errors.New("invalid job: source, destination and profile required")
	ErrInvalidSource        = errors.New("invalid source path")
	ErrInvalidDestination   = errors.New("invalid destination path")
	ErrQueueClosed          = errors.New("queue is shut down")
)
