// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package mpegts 读取MPEG-TS流：packet步长探测、PID过滤、PAT/PMT解析、PES重组、视频同步点PTS定位
package mpegts

import "github.com/q191201771/tsaac/pkg/base"

var Log = base.Log

const (
	syncByte = 0x47

	PacketSize188 = 188
	PacketSize192 = 192 // 4字节timecode前缀，比如m2ts
	PacketSize204 = 204 // 尾部16字节RS校验

	TsHeaderSize = 4
)

// PID
//
// 0x0000 Program Association Table
// 0x0001 Conditional Access Table
// 0x0002 Transport Stream Description Table
// 0x0010-0x1FFE network_PID, Program_map_PID, elementary_PID...
// 0x1FFF Null packet
const (
	PidPat  uint16 = 0x0000
	PidCat  uint16 = 0x0001
	PidTsdt uint16 = 0x0002
	PidNull uint16 = 0x1FFF
)

// stream_type
//
// <iso13818-1.pdf> <Table 2-29 Stream type assignments>
const (
	StreamTypeMpeg1Video uint8 = 0x01
	StreamTypeMpeg2Video uint8 = 0x02
	StreamTypeMpeg1Audio uint8 = 0x03
	StreamTypeMpeg2Audio uint8 = 0x04
	StreamTypeAac        uint8 = 0x0F // ADTS
	StreamTypeMpeg4Video uint8 = 0x10
	StreamTypeLatm       uint8 = 0x11
	StreamTypeAvc        uint8 = 0x1B
	StreamTypeHevc       uint8 = 0x24
)

// PtsMaxTimeMs 33位PTS回绕周期，单位毫秒，即 (2^33-1)/90
const PtsMaxTimeMs = 95443717.677777777

// 跨回绕计算差值时，认为合法的最大差值，单位毫秒
const ptsWrapThresholdMs = 100000.0

var streamTypeTextTable = [...]string{
	"Reserved",
	"MPEG1 Video",
	"MPEG2 Video",
	"MPEG1 Audio",
	"MPEG2 Audio",
	"MPEG2 private_section",
	"MPEG2 Private PES",
	"MHEG",
	"DSM-CC",
	"H.222.1",
	"MPEG2 DSM-CC A",
	"MPEG2 DSM-CC B",
	"MPEG2 DSM-CC C",
	"MPEG2 DSM-CC D",
	"MPEG2 AUX",
	"MPEG2 AAC",
	"MPEG4 Video",
	"MPEG4 Audio",
	"MPEG4 PES",
	"MPEG4 stream",
	"MPEG2 SDP",
	"Other",
}

// StreamTypeText stream_type的可读名称
func StreamTypeText(streamType uint8) string {
	switch streamType {
	case StreamTypeAvc:
		return "H.264"
	case StreamTypeHevc:
		return "H.265"
	}
	if int(streamType) >= len(streamTypeTextTable) {
		return streamTypeTextTable[len(streamTypeTextTable)-1]
	}
	return streamTypeTextTable[streamType]
}

// PtsDiffMs 计算 a - b，单位毫秒
//
// 两个PTS跨越33位回绕点时，差值按回绕周期重新换算。
// 换算后仍然超出合理范围时，ok返回false
func PtsDiffMs(a, b float64) (diff float64, ok bool) {
	diff = a - b
	if abs(diff) < ptsWrapThresholdMs {
		return diff, true
	}
	if abs(diff) > PtsMaxTimeMs-ptsWrapThresholdMs {
		if diff < 0 {
			diff += PtsMaxTimeMs
		} else {
			diff -= PtsMaxTimeMs
		}
		return diff, true
	}
	return diff, false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
