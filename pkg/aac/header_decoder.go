// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac

import "github.com/q191201771/tsaac/pkg/base"

// 帧级错误码，与常见AAC解码器的错误码编号一致
const (
	ErrorCodeOk                            = 0
	ErrorCodeAdtsSyncword                  = 5
	ErrorCodeInvalidChannels               = 12
	ErrorCodeBufferTooSmall                = 14
	ErrorCodeChannelConfigurationChanged   = 21
	ErrorCodeInvalidSamplingFrequencyIndex = 23
)

var errorMessages = map[int]string{
	ErrorCodeOk:                            "no error",
	ErrorCodeAdtsSyncword:                  "unable to find adts syncword",
	ErrorCodeInvalidChannels:               "invalid number of channels",
	ErrorCodeBufferTooSmall:                "input data buffer too small",
	ErrorCodeChannelConfigurationChanged:   "unexpected channel configuration change",
	ErrorCodeInvalidSamplingFrequencyIndex: "invalid sampling frequency index",
}

func ErrorMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// HeaderType
const (
	HeaderTypeRaw  = 0
	HeaderTypeAdts = 1
	HeaderTypeAdif = 2
)

// FrameInfo 解码一帧的结果
type FrameInfo struct {
	BytesConsumed int
	Samples       int // 所有声道的采样点总数
	Channels      int
	SampleRate    int
	ObjectType    uint8
	Sbr           bool
	HeaderType    int
	Error         int // 0表示成功
}

// SamplesPerFrame 每声道每帧的采样点数
func (fi FrameInfo) SamplesPerFrame() int {
	return SamplesPerFrame(fi.ObjectType, fi.Sbr)
}

func SamplesPerFrame(objectType uint8, sbr bool) int {
	if objectType == AotAacLd {
		return 512
	}
	if sbr || objectType == AotSbr {
		return 2048
	}
	return 1024
}

// HeaderDecoder 只校验ADTS头，不解码音频数据
//
// 用于ADTS直通输出，返回的帧信息中Samples按每帧采样点数计算，PCM为nil
type HeaderDecoder struct {
	channels   uint8
	sfi        uint8
	objectType uint8
}

func NewHeaderDecoder() *HeaderDecoder {
	return &HeaderDecoder{}
}

// Init 使用`b`开始处的ADTS头初始化，不消费数据
func (d *HeaderDecoder) Init(b []byte) (consumed int, sampleRate int, channels int, err error) {
	var ctx AdtsHeaderContext
	if err = ctx.Unpack(b); err != nil {
		return 0, 0, 0, base.NewErrDecoderInit(ErrorCodeAdtsSyncword)
	}
	sampleRate = SamplingFrequencyFromIndex(ctx.AscCtx.SamplingFrequencyIndex)
	if sampleRate == 0 {
		return 0, 0, 0, base.NewErrDecoderInit(ErrorCodeInvalidSamplingFrequencyIndex)
	}
	d.channels = ctx.AscCtx.ChannelConfiguration
	d.sfi = ctx.AscCtx.SamplingFrequencyIndex
	d.objectType = ctx.AscCtx.AudioObjectType
	return 0, sampleRate, int(d.channels), nil
}

// Decode 校验`b`开始处的一帧
//
// 声道配置与 Init 时不同时返回 ErrorCodeChannelConfigurationChanged ，需要重新 Init
func (d *HeaderDecoder) Decode(b []byte) (pcm []byte, info FrameInfo) {
	info.HeaderType = HeaderTypeAdts
	if len(b) < AdtsHeaderLength || !IsAdtsSyncword(b) {
		info.Error = ErrorCodeAdtsSyncword
		return nil, info
	}
	frameLength := AdtsFrameLength(b)
	if frameLength < AdtsHeaderLength || frameLength > MaxFrameLength {
		info.Error = ErrorCodeAdtsSyncword
		return nil, info
	}
	if frameLength > len(b) {
		info.Error = ErrorCodeBufferTooSmall
		return nil, info
	}

	ch := AdtsChannelConfiguration(b)
	if ch != d.channels {
		info.Error = ErrorCodeChannelConfigurationChanged
		return nil, info
	}
	if ch == 0 {
		// 声道配置在PCE中，这里不解析
		info.Error = ErrorCodeInvalidChannels
		return nil, info
	}
	sr := SamplingFrequencyFromIndex(AdtsSamplingFrequencyIndex(b))
	if sr == 0 {
		info.Error = ErrorCodeInvalidSamplingFrequencyIndex
		return nil, info
	}

	info.BytesConsumed = frameLength
	info.Channels = int(ch)
	info.SampleRate = sr
	info.ObjectType = (b[2]>>6)&0x03 + 1
	info.Samples = SamplesPerFrame(info.ObjectType, false) * info.Channels
	return nil, info
}

func (d *HeaderDecoder) Close() error {
	return nil
}
