// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/tsaac/pkg/base"
)

// ------------------------------------------------
// <iso13818-1.pdf> <2.4.3.2> <page 36/174>
// sync_byte                    [8b]  * always 0x47
// transport_error_indicator    [1b]
// payload_unit_start_indicator [1b]
// transport_priority           [1b]
// PID                          [13b] **
// transport_scrambling_control [2b]
// adaptation_field_control     [2b]
// continuity_counter           [4b]  *
// ------------------------------------------------
type TsPacketHeader struct {
	Sync             uint8
	Err              uint8
	PayloadUnitStart uint8
	Prio             uint8
	Pid              uint16
	Scra             uint8
	Adaptation       uint8
	Cc               uint8
}

// ParseTsPacketHeader 解析4字节TS Packet header
//
// 完整解析所有字段，用于日志和调试。读取路径上使用下面的 PacketXxx 系列函数
func ParseTsPacketHeader(b []byte) (h TsPacketHeader, err error) {
	if len(b) < TsHeaderSize {
		return h, base.NewErrShortBuffer(TsHeaderSize, len(b))
	}
	br := nazabits.NewBitReader(b)
	h.Sync, _ = br.ReadBits8(8)
	h.Err, _ = br.ReadBits8(1)
	h.PayloadUnitStart, _ = br.ReadBits8(1)
	h.Prio, _ = br.ReadBits8(1)
	h.Pid, _ = br.ReadBits16(13)
	h.Scra, _ = br.ReadBits8(2)
	h.Adaptation, _ = br.ReadBits8(2)
	h.Cc, _ = br.ReadBits8(4)
	return
}

// ----------------------------------------------------------------------------------------------------------------------
// 以下函数要求`b`至少有188字节，且b[0]为sync byte

func PacketPid(b []byte) uint16 {
	return uint16(b[1]&0x1F)<<8 | uint16(b[2])
}

func PacketUnitStart(b []byte) bool {
	return b[1]&0x40 != 0
}

func PacketHasAdaptation(b []byte) bool {
	return b[3]&0x20 != 0
}

func PacketHasPayload(b []byte) bool {
	return b[3]&0x10 != 0
}

func PacketScrambled(b []byte) bool {
	return b[3]&0xC0 != 0
}

// PacketPayload TS packet的payload
//
// 注意，192、204步长的packet，payload也只在188字节内计算
//
// @return 没有payload时返回nil；返回的切片引用`b`的内存
func PacketPayload(b []byte) []byte {
	if !PacketHasPayload(b) {
		return nil
	}
	offset := TsHeaderSize
	if PacketHasAdaptation(b) {
		// adaptation_field_length不包括自己这1字节
		offset += 1 + int(b[4])
	}
	if offset >= PacketSize188 {
		return nil
	}
	return b[offset:PacketSize188]
}
