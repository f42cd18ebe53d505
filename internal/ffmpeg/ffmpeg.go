// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具
//
// Package ffmpeg manages the external encoder binary: path resolution,
// capability detection and input/output path validation.

package ffmpeg

import (
	"fmt"
	"os/exec"
	"sync"
)

// Config for the encoder wrapper
type Config struct {
	Binary          string
	ValidatorInput  Validator
	ValidatorOutput Validator
}

// Encoder wraps the encoder binary
type Encoder struct {
	binary       string
	validatorIn  Validator
	validatorOut Validator
	caps         Capabilities
	capsLock     sync.RWMutex
}

// New resolves the binary and detects its capabilities
func New(config Config) (*Encoder, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary: %w", err)
	}

	e := &Encoder{binary: binary}

	if config.ValidatorInput != nil {
		e.validatorIn = config.ValidatorInput
	} else {
		e.validatorIn, _ = NewValidator(nil, nil)
	}
	if config.ValidatorOutput != nil {
		e.validatorOut = config.ValidatorOutput
	} else {
		e.validatorOut, _ = NewValidator(nil, nil)
	}

	caps, err := DetectCapabilities(binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg: %w", err)
	}
	e.caps = caps

	return e, nil
}

// Path returns the resolved binary path
func (e *Encoder) Path() string {
	return e.binary
}

// ValidateInput reports whether a source path is acceptable
func (e *Encoder) ValidateInput(path string) bool {
	return e.validatorIn.IsValid(path)
}

// ValidateOutput reports whether a destination path is acceptable
func (e *Encoder) ValidateOutput(path string) bool {
	return e.validatorOut.IsValid(path)
}

// Capabilities returns the detected encoder capabilities
func (e *Encoder) Capabilities() Capabilities {
	e.capsLock.RLock()
	defer e.capsLock.RUnlock()
	return e.caps
}

// SupportsMuxer reports whether the encoder can write the container
func (e *Encoder) SupportsMuxer(id string) bool {
	e.capsLock.RLock()
	defer e.capsLock.RUnlock()
	return e.caps.SupportsMuxer(id)
}

// ReloadCapabilities re-detects capabilities, e.g. after an upgrade
func (e *Encoder) ReloadCapabilities() error {
	caps, err := DetectCapabilities(e.binary)
	if err != nil {
		return fmt.Errorf("reload capabilities: %w", err)
	}
	e.capsLock.Lock()
	e.caps = caps
	e.capsLock.Unlock()
	return nil
}
