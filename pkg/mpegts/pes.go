// Copyright 2024, Chef.  All rights reserved.
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

// stream_id
//
// <iso13818-1.pdf> <Table 2-18 Stream_id assignments>
// 110x xxxx 音频
// 1110 xxxx 视频
const (
	StreamIdAudio uint8 = 0xC0
	StreamIdVideo uint8 = 0xE0
)

const (
	pesHeaderFixedSize = 9
	ptsFieldSize       = 5
)

// -----------------------------------------------------------
// <iso13818-1.pdf>
// <2.4.3.6 PES packet> <page 49/174>
// <Table E.1 - PES packet header example> <page 142/174>
// <F.0.2 PES packet> <page 144/174>
// packet_start_code_prefix  [24b] *** always 0x00, 0x00, 0x01
// stream_id                 [8b]  *
// PES_packet_length         [16b] **
// '10'                      [2b]
// PES_scrambling_control    [2b]
// PES_priority              [1b]
// data_alignment_indicator  [1b]
// copyright                 [1b]
// original_or_copy          [1b]  *
// PTS_DTS_flags             [2b]
// ESCR_flag                 [1b]
// ES_rate_flag              [1b]
// DSM_trick_mode_flag       [1b]
// additional_copy_info_flag [1b]
// PES_CRC_flag              [1b]
// PES_extension_flag        [1b]  *
// PES_header_data_length    [8b]  *
// -----------------------------------------------------------
type PesHeader struct {
	StreamId         uint8
	PacketLength     uint16
	DataAligned      bool
	PtsDtsFlags      uint8
	HeaderDataLength uint8
	Pts              uint64 // 90kHz
	Dts              uint64
}

// ParsePesHeader 解析PES头的固定部分以及PTS/DTS
//
// @param b: 一个完整payload unit的开始位置
func ParsePesHeader(b []byte) (h PesHeader, err error) {
	if len(b) < pesHeaderFixedSize {
		return h, base.NewErrShortBuffer(pesHeaderFixedSize, len(b))
	}
	if b[0] != 0 || b[1] != 0 || b[2] != 1 {
		return h, base.ErrPesSync
	}

	br := nazabits.NewBitReader(b[3:])
	h.StreamId, _ = br.ReadBits8(8)
	h.PacketLength, _ = br.ReadBits16(16)
	_, _ = br.ReadBits8(5)
	aligned, _ := br.ReadBit()
	h.DataAligned = aligned == 1
	_, _ = br.ReadBits8(2)
	h.PtsDtsFlags, _ = br.ReadBits8(2)
	_, _ = br.ReadBits8(6)
	h.HeaderDataLength, _ = br.ReadBits8(8)

	if h.PtsDtsFlags&0x2 != 0 && len(b) >= pesHeaderFixedSize+ptsFieldSize {
		h.Pts = readPts(b[pesHeaderFixedSize:])
		h.Dts = h.Pts
	}
	if h.PtsDtsFlags == 0x3 && len(b) >= pesHeaderFixedSize+2*ptsFieldSize {
		h.Dts = readPts(b[pesHeaderFixedSize+ptsFieldSize:])
	}
	return h, nil
}

// PesHasPts `b`是否是带PTS的PES头
func PesHasPts(b []byte) bool {
	return len(b) >= pesHeaderFixedSize && b[0] == 0 && b[1] == 0 && b[2] == 1 && b[7]&0x80 != 0
}

// ExtractPtsMs 从PES头中取出PTS，单位毫秒
//
// 没有PTS时返回0。PTS值恰好为0时返回0.01，与没有PTS区分开
func ExtractPtsMs(b []byte) float64 {
	if !PesHasPts(b) || len(b) < pesHeaderFixedSize+ptsFieldSize {
		return 0
	}
	pts := readPts(b[pesHeaderFixedSize:])
	if pts == 0 {
		return 0.01
	}
	return float64(pts) / 90
}

// SkipPesHeader 返回PES头之后的payload
func SkipPesHeader(b []byte) ([]byte, error) {
	if len(b) < pesHeaderFixedSize {
		return nil, base.ErrNoPayload
	}
	n := pesHeaderFixedSize + int(b[8])
	if n >= len(b) {
		return nil, base.ErrNoPayload
	}
	return b[n:], nil
}

func readPts(b []byte) (pts uint64) {
	pts |= uint64((b[0]>>1)&0x07) << 30
	pts |= (uint64(b[1])<<8 | uint64(b[2])) >> 1 << 15
	pts |= (uint64(b[3])<<8 | uint64(b[4])) >> 1
	return
}

// ---------------------------------------------------------------------------------------------------------------------

// PesBuffer 存放一个完整payload unit的可增长缓存
type PesBuffer struct {
	buf *base.Buffer
}

func NewPesBuffer(initSize, growStep, maxSize int) *PesBuffer {
	return &PesBuffer{
		buf: base.NewBufferWithLimit(initSize, growStep, maxSize),
	}
}

func (p *PesBuffer) Bytes() []byte {
	return p.buf.Bytes()
}

func (p *PesBuffer) Len() int {
	return p.buf.Len()
}

func (p *PesBuffer) Reset() {
	p.buf.Reset()
}

func (p *PesBuffer) append(b []byte) error {
	_, err := p.buf.Write(b)
	return err
}

// ReadPayloadUnit 读取`pid`的下一个完整payload unit到`pb`中
//
// 如果当前packet就是`pid`的unit start，则从当前packet开始，否则向后查找。
// 收集到`pid`的下一个unit start为止，返回时当前packet停在该unit start上。
// 读到流末尾时返回已收集的字节数以及 base.ErrEndOfStream ，`pb`中的数据仍然可用
//
// @param limit: 查找时最多检查的packet数量，0表示不限制
//
// @return n: `pb`中的字节数
func (t *TsReader) ReadPayloadUnit(pid uint16, pb *PesBuffer, limit int) (n int, err error) {
	pb.Reset()
	t.SetFilter(pid)

	cur := t.cur
	if cur == nil || PacketPid(cur) != pid || !PacketUnitStart(cur) || !PacketHasPayload(cur) {
		if cur, err = t.NextUnitStartForPid(limit); err != nil {
			return 0, err
		}
	}

	for {
		if payload := PacketPayload(cur); payload != nil {
			if err = pb.append(payload); err != nil {
				return pb.Len(), err
			}
		}
		if cur, err = t.NextPacketForPid(limit); err != nil {
			return pb.Len(), err
		}
		if PacketUnitStart(cur) && PacketHasPayload(cur) {
			return pb.Len(), nil
		}
	}
}
