// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/tsaac/pkg/base"
)

// table_id
//
// <iso13818-1.pdf> <Table 2-26 table_id assignment values>
const (
	TsPsiIdPas            = 0x00 // program_association_section
	TsPsiIdCas            = 0x01 // conditional_access_section (CA_section)
	TsPsiIdPms            = 0x02 // TS_program_map_section
	TsPsiIdDs             = 0x03 // TS_description_section
	TsPsiIdSds            = 0x04 // ISO_IEC_14496_scene_description_section
	TsPsiIdOds            = 0x05 // ISO_IEC_14496_object_descriptor_section
	TsPsiIdIso138181Start = 0x06 // ITU-T Rec. H.222.0 | ISO/IEC 13818-1 reserved
	TsPsiIdIso138181End   = 0x37
	TsPsiIdIso138186Start = 0x38 // Defined in ISO/IEC 13818-6
	TsPsiIdIso138186End   = 0x3F
	TsPsiIdUserStart      = 0x40 // User private
	TsPsiIdUserEnd        = 0xFE
	TsPsiIdForbidden      = 0xFF // forbidden
)

const (
	// 3字节table header + 5字节syntax section header + 4字节CRC_32
	psiSectionMinSize = 12

	// 额外的PCR_PID和program_info_length
	pmtSectionMinSize = psiSectionMinSize + 4
)

// forEachSection 跳过pointer_field，依次校验并回调`b`中的每个section
//
// table_id、section_syntax_indicator、section_number、last_section_number不一致时返回 base.ErrInvalidTable 。
// CRC_32不匹配只打印日志
func forEachSection(b []byte, tableId uint8, name string, fn func(section []byte, sectionNumber int) error) error {
	if len(b) < 1 {
		return base.NewErrInvalidTable("%s empty", name)
	}
	pf := int(b[0])
	if 1+pf+psiSectionMinSize > len(b) {
		return base.NewErrInvalidTable("%s too short. pointer_field=%d, len=%d", name, pf, len(b))
	}
	b = b[1+pf:]

	lastSectionNumber := 0
	for sn := 0; sn <= lastSectionNumber; sn++ {
		if sn > 0 && (len(b) < 3 || b[0] == TsPsiIdForbidden) {
			// 剩余section在后续的payload unit中，这里不再继续读取
			Log.Warnf("%s sections missing. got=%d, last_section_number=%d", name, sn, lastSectionNumber)
			return nil
		}
		if b[0] != tableId {
			return base.NewErrInvalidTable("%s table_id mismatch. expected=%d, actual=%d", name, tableId, b[0])
		}
		if b[1]&0x80 == 0 {
			return base.NewErrInvalidTable("%s section_syntax_indicator is 0", name)
		}
		size := 3 + (int(b[1]&0x0F)<<8 | int(b[2]))
		if size < psiSectionMinSize || size > len(b) {
			return base.NewErrInvalidTable("%s section_length out of range. size=%d, len=%d", name, size, len(b))
		}
		section := b[:size]

		if sn == 0 {
			lastSectionNumber = int(section[7])
		} else if int(section[7]) != lastSectionNumber {
			return base.NewErrInvalidTable("%s last_section_number changed. %d -> %d", name, lastSectionNumber, section[7])
		}
		if int(section[6]) != sn {
			return base.NewErrInvalidTable("%s section_number out of order. expected=%d, actual=%d", name, sn, section[6])
		}
		if crc := Crc32Mpeg2(section); crc != 0 {
			Log.Warnf("%s crc32 mismatch. section_number=%d, crc=%x", name, sn, bele.BeUint32(section[size-4:]))
		}

		if err := fn(section, sn); err != nil {
			return err
		}
		b = b[size:]
	}
	return nil
}

// ---------------------------------------------------------------------------------------------------------------------

// PsiSection 打包单个section的PAT或PMT，用于生成TS流
type PsiSection struct {
	pointerField uint8
	sectionData  PsiSectionData
}

type PsiSectionData struct {
	header  PsiTableHeader
	section PsiTableSyntaxSection
	patData PatSpecificData
	pmtData PmtSpecificData
}

type PsiTableHeader struct {
	tableId                uint8
	sectionSyntaxIndicator uint8
	sectionLength          uint16
}

type PsiTableSyntaxSection struct {
	tableIdExtension     uint16
	versionNumber        uint8
	currentNextIndicator uint8
	sectionNumber        uint8
	lastSectionNumber    uint8
}

type PatSpecificData struct {
	pes []PatProgramElement
}

type PmtSpecificData struct {
	pcrPid            uint16
	programInfoLength uint16
	pes               []PmtProgramElement
}

func NewPatSection(transportStreamId uint16, programs []PatProgramElement) *PsiSection {
	psi := newPsiSection(TsPsiIdPas, transportStreamId)
	psi.sectionData.patData.pes = programs
	return psi
}

// NewPmtSection
//
// 注意，`elements`的 Length 字段被忽略，ES_info_length总是写0
func NewPmtSection(programNumber uint16, pcrPid uint16, elements []PmtProgramElement) *PsiSection {
	psi := newPsiSection(TsPsiIdPms, programNumber)
	psi.sectionData.pmtData.pcrPid = pcrPid
	psi.sectionData.pmtData.pes = elements
	return psi
}

func newPsiSection(tableId uint8, tableIdExtension uint16) *PsiSection {
	psi := &PsiSection{}
	psi.sectionData.header.tableId = tableId
	psi.sectionData.header.sectionSyntaxIndicator = 1
	psi.sectionData.section.tableIdExtension = tableIdExtension
	psi.sectionData.section.currentNextIndicator = 1
	return psi
}

// PackPat 生成单个section的PAT payload unit
func PackPat(transportStreamId uint16, programs []PatProgramElement) []byte {
	return NewPatSection(transportStreamId, programs).Pack()
}

// PackPmt 生成单个section的PMT payload unit
func PackPmt(programNumber uint16, pcrPid uint16, elements []PmtProgramElement) []byte {
	return NewPmtSection(programNumber, pcrPid, elements).Pack()
}

// Pack 打包为以pointer_field开始的payload unit
func (psi *PsiSection) Pack() []byte {
	sectionLength := psi.calcPsiSectionLength()
	b := make([]byte, 1+3+int(sectionLength))
	bw := nazabits.NewBitWriter(b)

	bw.WriteBits8(8, psi.pointerField)
	psi.writePsiTableHeader(&bw, sectionLength)
	psi.writePsiTableSyntaxSection(&bw)

	crc := Crc32Mpeg2(b[1 : len(b)-4])
	bele.BePutUint32(b[len(b)-4:], crc)
	return b
}

func (psi *PsiSection) writePsiTableHeader(bw *nazabits.BitWriter, sectionLength uint16) {
	bw.WriteBits8(8, psi.sectionData.header.tableId)
	bw.WriteBit(psi.sectionData.header.sectionSyntaxIndicator)
	bw.WriteBit(0)
	bw.WriteBits8(2, 0xff)

	psi.sectionData.header.sectionLength = sectionLength
	bw.WriteBits16(12, sectionLength)
}

func (psi *PsiSection) writePsiTableSyntaxSection(bw *nazabits.BitWriter) {
	bw.WriteBits16(16, psi.sectionData.section.tableIdExtension)
	bw.WriteBits8(2, 0xff)
	bw.WriteBits8(5, psi.sectionData.section.versionNumber)
	bw.WriteBit(psi.sectionData.section.currentNextIndicator)
	bw.WriteBits8(8, psi.sectionData.section.sectionNumber)
	bw.WriteBits8(8, psi.sectionData.section.lastSectionNumber)

	switch psi.sectionData.header.tableId {
	case TsPsiIdPas:
		psi.writePatSection(bw)
	case TsPsiIdPms:
		psi.writePmtSection(bw)
	}
}

func (psi *PsiSection) calcPsiSectionLength() (length uint16) {
	// Table ID extension(16 bits)+Reserved bits(2 bits)+Version number(5 bits)+Current next Indicator(1 bit)+Section number(8 bits)+Last section number(8 bits)
	length = 5

	switch psi.sectionData.header.tableId {
	case TsPsiIdPas:
		length += uint16(4 * len(psi.sectionData.patData.pes))
	case TsPsiIdPms:
		// Reserved bits(3 bits)+PCR PID(13 bits)+Reserved bits(4 bits)+Program info length(12 bits)
		length += 4 + uint16(5*len(psi.sectionData.pmtData.pes))
	}

	length += 4 // crc32
	return
}

func (psi *PsiSection) writePatSection(bw *nazabits.BitWriter) {
	for _, pe := range psi.sectionData.patData.pes {
		bw.WriteBits16(16, pe.ProgramNumber)
		bw.WriteBits8(3, 0xff)
		bw.WriteBits16(13, pe.ProgramMapPid)
	}
}

func (psi *PsiSection) writePmtSection(bw *nazabits.BitWriter) {
	bw.WriteBits8(3, 0xff)
	bw.WriteBits16(13, psi.sectionData.pmtData.pcrPid)
	bw.WriteBits8(4, 0xff)
	bw.WriteBits16(12, psi.sectionData.pmtData.programInfoLength)

	for _, pe := range psi.sectionData.pmtData.pes {
		bw.WriteBits8(8, pe.StreamType)
		bw.WriteBits8(3, 0xff)
		bw.WriteBits16(13, pe.Pid)
		bw.WriteBits8(4, 0xff)
		bw.WriteBits16(12, 0)
	}
}
