// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package aac ADTS头的解析与生成，以及按帧读取ADTS流的缓存
package aac

import (
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/tsaac/pkg/base"
)

var Log = base.Log

// AudioSpecificConfig(asc)
// keywords: Seq Header,
// e.g.  rtmp, flv, mp4
//
// ADTS(Audio Data Transport Stream)
// e.g. es, ts
//

const (
	AdtsHeaderLength = 7

	// AdtsHeaderLengthLegacy 早期编码器输出的ADTS头包含2字节的emphasis
	AdtsHeaderLengthLegacy = 9

	AscSamplingFrequencyIndex48000 = 3
	AscSamplingFrequencyIndex44100 = 4
)

const (
	// MinStreamSize 单个声道一帧的最大字节数
	MinStreamSize = 768

	// MaxChannels 按帧读取文件时，缓存窗口按该声道数计算
	MaxChannels = 6

	// MaxFrameLength 认为可信的ADTS帧长度上限
	MaxFrameLength = MinStreamSize * MaxChannels
)

// AudioObjectType
const (
	AotAacMain = 1
	AotAacLc   = 2
	AotAacSsr  = 3
	AotAacLtp  = 4
	AotSbr     = 5 // HE-AAC
	AotAacLd   = 23
)

const (
	minAscLength = 2
)

var samplingFrequencyTable = [16]int{96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350, 0, 0, 0}

// SamplingFrequencyFromIndex 采样率表中没有定义的索引返回0
func SamplingFrequencyFromIndex(index uint8) int {
	return samplingFrequencyTable[index&0x0F]
}

// SamplingFrequencyIndex 找不到时返回15
func SamplingFrequencyIndex(sampleRate int) uint8 {
	for i, v := range samplingFrequencyTable {
		if v != 0 && v == sampleRate {
			return uint8(i)
		}
	}
	return 15
}

// IsAdtsSyncword `b`是否以ADTS syncword开始：0xFF，以及 xxxx 1111 0xxx（忽略ID位）
func IsAdtsSyncword(b []byte) bool {
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xF6 == 0xF0
}

// AdtsFrameLength 不检查syncword，调用方保证`b`至少有6字节
func AdtsFrameLength(b []byte) int {
	return int(b[3]&0x03)<<11 | int(b[4])<<3 | int(b[5]&0xE0)>>5
}

// AdtsSamplingFrequencyIndex 同上
func AdtsSamplingFrequencyIndex(b []byte) uint8 {
	return (b[2] & 0x3C) >> 2
}

// AdtsChannelConfiguration 同上
func AdtsChannelConfiguration(b []byte) uint8 {
	return (b[2]&0x01)<<2 | (b[3]&0xC0)>>6
}

// <ISO_IEC_14496-3.pdf>
// <1.6.2.1 AudioSpecificConfig>, <page 33/110>
// <1.5.1.1 Audio Object type definition>, <page 23/110>
// <1.6.3.3 samplingFrequencyIndex>, <page 35/110>
// <1.6.3.4 channelConfiguration>
// --------------------------------------------------------
// audio object type      [5b] 1=AAC MAIN  2=AAC LC
// samplingFrequencyIndex [4b] 3=48000  4=44100  6=24000  5=32000  11=11025
// channelConfiguration   [4b] 1=center front speaker  2=left, right front speakers
type AscContext struct {
	AudioObjectType        uint8 // [5b]
	SamplingFrequencyIndex uint8 // [4b]
	ChannelConfiguration   uint8 // [4b]
}

func NewAscContext(asc []byte) (*AscContext, error) {
	var ascCtx AscContext
	if err := ascCtx.Unpack(asc); err != nil {
		return nil, err
	}
	return &ascCtx, nil
}

// @param asc: 2字节的AAC Audio Specifc Config
//             函数调用结束后，内部不持有该内存块
//
func (ascCtx *AscContext) Unpack(asc []byte) error {
	if len(asc) < minAscLength {
		return base.NewErrShortBuffer(minAscLength, len(asc))
	}

	br := nazabits.NewBitReader(asc)
	ascCtx.AudioObjectType, _ = br.ReadBits8(5)
	ascCtx.SamplingFrequencyIndex, _ = br.ReadBits8(4)
	ascCtx.ChannelConfiguration, _ = br.ReadBits8(4)
	return nil
}

// @return asc: 内存块为独立新申请；函数调用结束后，内部不持有该内存块
//
func (ascCtx *AscContext) Pack() (asc []byte) {
	asc = make([]byte, minAscLength)
	bw := nazabits.NewBitWriter(asc)
	bw.WriteBits8(5, ascCtx.AudioObjectType)
	bw.WriteBits8(4, ascCtx.SamplingFrequencyIndex)
	bw.WriteBits8(4, ascCtx.ChannelConfiguration)
	return
}

// 获取ADTS头，由于ADTS头中的字段依赖包的长度，而每个包的长度可能不同，所以每个包的ADTS头都需要独立生成
//
// @param frameLength: raw aac frame的大小
//
// @return h: 内存块为独立新申请；函数调用结束后，内部不持有该内存块
//
func (ascCtx *AscContext) PackAdtsHeader(frameLength int) (out []byte) {
	out = make([]byte, AdtsHeaderLength)
	_ = ascCtx.PackToAdtsHeader(out, frameLength)
	return
}

// @param out: 函数调用结束后，内部不持有该内存块
//
func (ascCtx *AscContext) PackToAdtsHeader(out []byte, frameLength int) error {
	if len(out) < AdtsHeaderLength {
		return base.NewErrShortBuffer(AdtsHeaderLength, len(out))
	}

	// <ISO_IEC_14496-3.pdf>
	// <1.A.2.2.1 Fixed Header of ADTS>, <page 75/110>
	// <1.A.2.2.2 Variable Header of ADTS>, <page 76/110>
	// <1.A.3.2.1 Definitions: Bitstream elements for ADTS>
	// ----------------------------------------------------
	// Syncword                 [12b] '1111 1111 1111'
	// ID                       [1b]  1=MPEG-2 AAC 0=MPEG-4
	// Layer                    [2b]
	// protection_absent        [1b]  1=no crc check
	// Profile_ObjectType       [2b]
	// sampling_frequency_index [4b]
	// private_bit              [1b]
	// channel_configuration    [3b]
	// origin/copy              [1b]
	// home                     [1b]
	// ------------------------------------
	// copyright_identification_bit   [1b]
	// copyright_identification_start [1b]
	// aac_frame_length               [13b]
	// adts_buffer_fullness           [11b]
	// no_raw_data_blocks_in_frame    [2b]

	bw := nazabits.NewBitWriter(out)
	// Syncword 0(8) 1(4)
	bw.WriteBits16(12, 0xFFF)
	// ID, Layer, protection_absent 1(4)
	bw.WriteBits8(4, 0x1)
	// 2(2)
	bw.WriteBits8(2, (ascCtx.AudioObjectType-1)&0x3)
	// 2(4)
	bw.WriteBits8(4, ascCtx.SamplingFrequencyIndex)
	// private_bit 2(1)
	bw.WriteBits8(1, 0)
	// 2(1) 3(2)
	bw.WriteBits8(3, ascCtx.ChannelConfiguration)
	// origin/copy, home, copyright_identification_bit, copyright_identification_start 3(4)
	bw.WriteBits8(4, 0)
	// 3(2) 4(8) 5(3)
	bw.WriteBits16(13, uint16(frameLength+AdtsHeaderLength))
	// adts_buffer_fullness 5(5) 6(6)
	bw.WriteBits16(11, 0x7FF)
	// no_raw_data_blocks_in_frame 6(2)
	bw.WriteBits8(2, 0)
	return nil
}

// GetSamplingFrequency
//
// 采样率表中没有定义的索引返回 base.ErrSamplingFrequencyIndex
func (ascCtx *AscContext) GetSamplingFrequency() (int, error) {
	if sr := SamplingFrequencyFromIndex(ascCtx.SamplingFrequencyIndex); sr != 0 {
		return sr, nil
	}
	return -1, base.ErrSamplingFrequencyIndex
}

type AdtsHeaderContext struct {
	AscCtx AscContext

	Id                   uint8 // 1=MPEG-2 0=MPEG-4
	Layer                uint8
	ProtectionAbsent     uint8
	PrivateBit           uint8
	AdtsLength           uint16 // 字段中的值，包含了adts header + adts frame
	BufferFullness       uint16
	NumberOfRawDataBlock uint8 // 字段值，帧中raw data block数量减1
}

func NewAdtsHeaderContext(adtsHeader []byte) (*AdtsHeaderContext, error) {
	var ctx AdtsHeaderContext
	if err := ctx.Unpack(adtsHeader); err != nil {
		return nil, err
	}
	return &ctx, nil
}

// @param adtsHeader: 函数调用结束后，内部不持有该内存块
//
func (ctx *AdtsHeaderContext) Unpack(adtsHeader []byte) error {
	if len(adtsHeader) < AdtsHeaderLength {
		return base.NewErrShortBuffer(AdtsHeaderLength, len(adtsHeader))
	}
	if !IsAdtsSyncword(adtsHeader) {
		return base.ErrAdts
	}

	br := nazabits.NewBitReader(adtsHeader)
	_ = br.SkipBits(12)
	ctx.Id, _ = br.ReadBits8(1)
	ctx.Layer, _ = br.ReadBits8(2)
	ctx.ProtectionAbsent, _ = br.ReadBits8(1)
	v, _ := br.ReadBits8(2)
	ctx.AscCtx.AudioObjectType = v + 1
	ctx.AscCtx.SamplingFrequencyIndex, _ = br.ReadBits8(4)
	ctx.PrivateBit, _ = br.ReadBits8(1)
	ctx.AscCtx.ChannelConfiguration, _ = br.ReadBits8(3)
	_ = br.SkipBits(4)
	ctx.AdtsLength, _ = br.ReadBits16(13)
	ctx.BufferFullness, _ = br.ReadBits16(11)
	ctx.NumberOfRawDataBlock, _ = br.ReadBits8(2)
	return nil
}

// @param adtsHeader: 函数调用结束后，内部不持有该内存块
//
// @return asc: 内存块为独立新申请；函数调用结束后，内部不持有该内存块
//
func MakeAscWithAdtsHeader(adtsHeader []byte) (asc []byte, err error) {
	var ctx *AdtsHeaderContext
	if ctx, err = NewAdtsHeaderContext(adtsHeader); err != nil {
		return nil, err
	}
	return ctx.AscCtx.Pack(), nil
}
