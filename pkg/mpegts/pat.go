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
)

// ---------------------------------------------------------------------------------------------------
// <iso13818-1.pdf> <2.4.4.3> <page 61/174>
// table_id                 [8b] *
// section_syntax_indicator [1b]
// '0'                      [1b]
// reserved                 [2b]
// section_length           [12b] **
// transport_stream_id      [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// -----loop-----
// program_number           [16b] **
// reserved                 [3b]
// program_map_PID          [13b] ** if program_number == 0 then network_PID else then program_map_PID
// --------------
// CRC_32                   [32b] ****
// ---------------------------------------------------------------------------------------------------
type Pat struct {
	TransportStreamId    uint16
	VersionNumber        uint8
	CurrentNextIndicator uint8
	LastSectionNumber    uint8
	ProgramElements      []PatProgramElement
}

type PatProgramElement struct {
	ProgramNumber uint16
	ProgramMapPid uint16 // ProgramNumber为0时是network_PID
}

// ParsePat 解析PAT，`b`为PID 0的一个完整payload unit，以pointer_field开始
//
// 按last_section_number依次解析所有section
func ParsePat(b []byte) (pat Pat, err error) {
	err = forEachSection(b, TsPsiIdPas, "pat", func(section []byte, sectionNumber int) error {
		br := nazabits.NewBitReader(section[3:])
		tsi, _ := br.ReadBits16(16)
		_, _ = br.ReadBits8(2)
		vn, _ := br.ReadBits8(5)
		cni, _ := br.ReadBits8(1)
		if sectionNumber == 0 {
			pat.TransportStreamId = tsi
			pat.VersionNumber = vn
			pat.CurrentNextIndicator = cni
			pat.LastSectionNumber = section[7]
		}

		num := (len(section) - psiSectionMinSize) / 4
		br = nazabits.NewBitReader(section[8:])
		for i := 0; i < num; i++ {
			var ppe PatProgramElement
			ppe.ProgramNumber, _ = br.ReadBits16(16)
			_, _ = br.ReadBits8(3)
			ppe.ProgramMapPid, _ = br.ReadBits16(13)
			pat.ProgramElements = append(pat.ProgramElements, ppe)
		}
		return nil
	})
	return
}

func (pat *Pat) SearchPid(pid uint16) bool {
	for _, ppe := range pat.ProgramElements {
		if pid == ppe.ProgramMapPid {
			return true
		}
	}
	return false
}
