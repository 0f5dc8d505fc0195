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

// ----------------------------------------
// <iso13818-1.pdf> <2.4.4.8> <page 64/174>
// table_id                 [8b]  *
// section_syntax_indicator [1b]
// 0                        [1b]
// reserved                 [2b]
// section_length           [12b] **
// program_number           [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// reserved                 [3b]
// PCR_PID                  [13b] **
// reserved                 [4b]
// program_info_length      [12b] **
// -----loop-----
// stream_type              [8b]  *
// reserved                 [3b]
// elementary_PID           [13b] **
// reserved                 [4b]
// ES_info_length           [12b] **
// --------------
// CRC_32                   [32b] ****
// ----------------------------------------
type Pmt struct {
	ProgramNumber        uint16
	VersionNumber        uint8
	CurrentNextIndicator uint8
	LastSectionNumber    uint8
	PcrPid               uint16
	ProgramElements      []PmtProgramElement
}

type PmtProgramElement struct {
	StreamType uint8
	Pid        uint16
	Length     uint16 // ES_info_length，描述符内容不保存
}

// ParsePmt 解析PMT，`b`为PMT PID的一个完整payload unit，以pointer_field开始
func ParsePmt(b []byte) (pmt Pmt, err error) {
	err = forEachSection(b, TsPsiIdPms, "pmt", func(section []byte, sectionNumber int) error {
		if len(section) < pmtSectionMinSize {
			return base.NewErrInvalidTable("pmt section too short. len=%d", len(section))
		}

		br := nazabits.NewBitReader(section[3:])
		pn, _ := br.ReadBits16(16)
		_, _ = br.ReadBits8(2)
		vn, _ := br.ReadBits8(5)
		cni, _ := br.ReadBits8(1)
		_, _ = br.ReadBits16(16)
		_, _ = br.ReadBits8(3)
		pcrPid, _ := br.ReadBits16(13)
		_, _ = br.ReadBits8(4)
		pil, _ := br.ReadBits16(12)
		if sectionNumber == 0 {
			pmt.ProgramNumber = pn
			pmt.VersionNumber = vn
			pmt.CurrentNextIndicator = cni
			pmt.LastSectionNumber = section[7]
			pmt.PcrPid = pcrPid
		}

		end := len(section) - 4
		pos := pmtSectionMinSize - 4 + int(pil)
		if pos > end {
			return base.NewErrInvalidTable("pmt program_info_length out of range. pil=%d, section=%d", pil, len(section))
		}
		for pos < end {
			if pos+5 > end {
				return base.NewErrInvalidTable("pmt stream entry truncated. pos=%d, end=%d", pos, end)
			}
			br = nazabits.NewBitReader(section[pos:])
			var ppe PmtProgramElement
			ppe.StreamType, _ = br.ReadBits8(8)
			_, _ = br.ReadBits8(3)
			ppe.Pid, _ = br.ReadBits16(13)
			_, _ = br.ReadBits8(4)
			ppe.Length, _ = br.ReadBits16(12)
			pos += 5 + int(ppe.Length)
			if pos > end {
				return base.NewErrInvalidTable("pmt ES_info_length out of range. pid=%d, length=%d", ppe.Pid, ppe.Length)
			}
			pmt.ProgramElements = append(pmt.ProgramElements, ppe)
		}
		return nil
	})
	return
}

func (pmt *Pmt) SearchPid(pid uint16) *PmtProgramElement {
	for i := range pmt.ProgramElements {
		if pmt.ProgramElements[i].Pid == pid {
			return &pmt.ProgramElements[i]
		}
	}
	return nil
}

// SearchStreamType 第`index`个（从0开始）类型为`streamType`的流
func (pmt *Pmt) SearchStreamType(streamType uint8, index int) *PmtProgramElement {
	ppe, _ := pmt.searchStreamType(streamType, index)
	return ppe
}

// searchStreamType 没有找到时返回剩余的`index`，用于跨节目继续查找
func (pmt *Pmt) searchStreamType(streamType uint8, index int) (*PmtProgramElement, int) {
	for i := range pmt.ProgramElements {
		if pmt.ProgramElements[i].StreamType != streamType {
			continue
		}
		if index == 0 {
			return &pmt.ProgramElements[i], 0
		}
		index--
	}
	return nil, index
}
