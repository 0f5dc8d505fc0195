// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- 通用的 ---------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer      = errors.New("tsaac: buffer too short")
	ErrUnsupportedInput = errors.New("tsaac: unsupported input")
)

func NewErrShortBuffer(need, actual int) error {
	return fmt.Errorf("%w. need=%d, actual=%d", ErrShortBuffer, need, actual)
}

// ----- pkg/mpegts ----------------------------------------------------------------------------------------------------

var (
	// ErrFormat 没有找到稳定的TS packet步长
	ErrFormat = errors.New("tsaac.mpegts: ts packet size not found")

	ErrEndOfStream = errors.New("tsaac.mpegts: end of stream")

	// ErrSyncLost 期望的位置不是0x47，已经重新同步，非致命
	ErrSyncLost = errors.New("tsaac.mpegts: sync lost")

	ErrLimitExceeded = errors.New("tsaac.mpegts: packet limit exceeded")
	ErrInvalidTable  = errors.New("tsaac.mpegts: invalid psi table")
	ErrBufferLimit   = errors.New("tsaac.mpegts: pes buffer limit exceeded")
	ErrPesSync       = errors.New("tsaac.mpegts: pes start code mismatch")
	ErrNoPayload     = errors.New("tsaac.mpegts: pes has no payload")

	// ErrPtsNotFound 没有找到满足条件的PTS，不是致命错误
	ErrPtsNotFound = errors.New("tsaac.mpegts: pts not found")
)

func NewErrInvalidTable(what string, v ...interface{}) error {
	return fmt.Errorf("%w. %s", ErrInvalidTable, fmt.Sprintf(what, v...))
}

func NewErrLimitExceeded(limit int) error {
	return fmt.Errorf("%w. limit=%d", ErrLimitExceeded, limit)
}

func NewErrBufferLimit(need, max int) error {
	return fmt.Errorf("%w. need=%d, max=%d", ErrBufferLimit, need, max)
}

// ----- pkg/aac -------------------------------------------------------------------------------------------------------

var (
	ErrAdts                   = errors.New("tsaac.aac: invalid adts header")
	ErrSamplingFrequencyIndex = errors.New("tsaac.aac: invalid sampling frequency index")
	ErrAacBufferFull          = errors.New("tsaac.aac: aac buffer full")
)

func NewErrAacBufferFull(need, free int) error {
	return fmt.Errorf("%w. need=%d, free=%d", ErrAacBufferFull, need, free)
}

// ----- pkg/logic -----------------------------------------------------------------------------------------------------

var (
	ErrDecoderInit = errors.New("tsaac.logic: decoder init failed")
	ErrSinkWrite   = errors.New("tsaac.logic: sink write failed")
	ErrNoAudio     = errors.New("tsaac.logic: audio stream not found")
	ErrConfig      = errors.New("tsaac.logic: invalid config")
)

func NewErrDecoderInit(code int) error {
	return fmt.Errorf("%w. code=%d", ErrDecoderInit, code)
}

// ---------------------------------------------------------------------------------------------------------------------
