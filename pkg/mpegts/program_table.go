// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"errors"
	"fmt"
	"io"

	"github.com/q191201771/tsaac/pkg/base"
)

const (
	// PsiPacketLimit 查找PAT、PMT时最多检查的packet数量
	PsiPacketLimit = 100000

	psiBufferInitSize = 4096
	psiBufferMaxSize  = 1024 * 1024
)

type Program struct {
	ProgramNumber uint16
	PmtPid        uint16
	Pmt           Pmt // 读取失败时为空
}

// ProgramTable 流中的PAT以及每个节目的PMT
type ProgramTable struct {
	Pat      Pat
	Programs []Program // 与PAT中的顺序一致，包含program_number为0的network_PID项
}

// ReadPat 从头读取PID 0的第一个payload unit并解析
func (t *TsReader) ReadPat(limit int) (Pat, error) {
	b, err := t.readSection(PidPat, limit)
	if err != nil {
		return Pat{}, err
	}
	return ParsePat(b)
}

// ReadPmt 从当前位置读取`pid`的下一个payload unit并按PMT解析
func (t *TsReader) ReadPmt(pid uint16, limit int) (Pmt, error) {
	b, err := t.readSection(pid, limit)
	if err != nil {
		return Pmt{}, err
	}
	return ParsePmt(b)
}

func (t *TsReader) readSection(pid uint16, limit int) ([]byte, error) {
	pb := NewPesBuffer(psiBufferInitSize, psiBufferInitSize, psiBufferMaxSize)
	n, err := t.ReadPayloadUnit(pid, pb, limit)
	if err != nil && !(errors.Is(err, base.ErrEndOfStream) && n > 0) {
		return nil, err
	}
	return pb.Bytes(), nil
}

// ParseProgramTable 读取PAT，以及PAT中每个节目的PMT
//
// 每个PMT都从流的开始处查找。单个PMT读取失败时只打印日志，该节目的PMT为空。返回前回到流的开始处
func ParseProgramTable(t *TsReader, limit int) (*ProgramTable, error) {
	if err := t.SeekHead(); err != nil {
		return nil, err
	}
	pat, err := t.ReadPat(limit)
	if err != nil {
		return nil, err
	}

	pt := &ProgramTable{Pat: pat}
	for _, ppe := range pat.ProgramElements {
		program := Program{
			ProgramNumber: ppe.ProgramNumber,
			PmtPid:        ppe.ProgramMapPid,
		}
		if ppe.ProgramNumber != 0 {
			if err = t.SeekHead(); err != nil {
				return nil, err
			}
			if program.Pmt, err = t.ReadPmt(ppe.ProgramMapPid, limit); err != nil {
				Log.Warnf("[%p] read pmt failed. program=%d, pid=0x%X, err=%+v", t, ppe.ProgramNumber, ppe.ProgramMapPid, err)
			}
		}
		pt.Programs = append(pt.Programs, program)
	}
	return pt, t.SeekHead()
}

// ProgramTable 返回缓存的节目表，第一次调用时读取
func (t *TsReader) ProgramTable() (*ProgramTable, error) {
	if t.programTable != nil {
		return t.programTable, nil
	}
	pt, err := ParseProgramTable(t, PsiPacketLimit)
	if err != nil {
		return nil, err
	}
	t.programTable = pt
	return pt, nil
}

// LookupPid 查找第`index`个（从0开始）类型为`streamType`的流
//
// @param programNumber: 0表示按PAT顺序在所有节目中查找，`index`在节目之间连续计数
//
// @return program: 流所在节目的program_number
func (pt *ProgramTable) LookupPid(streamType uint8, programNumber uint16, index int) (pid uint16, program uint16, ok bool) {
	for i := range pt.Programs {
		p := &pt.Programs[i]
		if p.ProgramNumber == 0 {
			continue
		}
		if programNumber != 0 && p.ProgramNumber != programNumber {
			continue
		}
		var ppe *PmtProgramElement
		if ppe, index = p.Pmt.searchStreamType(streamType, index); ppe != nil {
			return ppe.Pid, p.ProgramNumber, true
		}
		if programNumber != 0 {
			return 0, 0, false
		}
	}
	return 0, 0, false
}

// StreamType 查找`pid`的stream_type
func (pt *ProgramTable) StreamType(pid uint16) (streamType uint8, program uint16, ok bool) {
	for i := range pt.Programs {
		if ppe := pt.Programs[i].Pmt.SearchPid(pid); ppe != nil {
			return ppe.StreamType, pt.Programs[i].ProgramNumber, true
		}
	}
	return 0, 0, false
}

// Dump 打印节目表
func (pt *ProgramTable) Dump(w io.Writer) {
	_, _ = fmt.Fprintf(w, "PAT: transport_stream_id=%d, version=%d, programs=%d\n",
		pt.Pat.TransportStreamId, pt.Pat.VersionNumber, len(pt.Programs))
	for _, p := range pt.Programs {
		if p.ProgramNumber == 0 {
			_, _ = fmt.Fprintf(w, "  network PID 0x%X\n", p.PmtPid)
			continue
		}
		_, _ = fmt.Fprintf(w, "  program %d, PMT PID 0x%X, PCR PID 0x%X\n", p.ProgramNumber, p.PmtPid, p.Pmt.PcrPid)
		for _, ppe := range p.Pmt.ProgramElements {
			_, _ = fmt.Fprintf(w, "    PID 0x%X, stream_type 0x%02X %s\n", ppe.Pid, ppe.StreamType, StreamTypeText(ppe.StreamType))
		}
	}
}

// ---------------------------------------------------------------------------------------------------------------------

// ProbePid 没有PAT的流中，根据PES头的stream_id查找第`index`个音频或视频PID
//
// `streamType`只区分音频（MPEG音频、AAC、LATM）和视频。查找结束后回到流的开始处
func ProbePid(t *TsReader, streamType uint8, index int, limit int) (pid uint16, ok bool) {
	isAudio := IsAudioStreamType(streamType)
	seen := make(map[uint16]bool)

	if err := t.SeekHead(); err != nil {
		return 0, false
	}
	defer func() {
		_ = t.SeekHead()
	}()

	for {
		pkt, err := t.NextUnitStart(limit)
		if err != nil {
			return 0, false
		}
		p := PacketPid(pkt)
		if p == PidPat || p == PidNull || seen[p] {
			continue
		}
		payload := PacketPayload(pkt)
		if len(payload) < 4 || payload[0] != 0 || payload[1] != 0 || payload[2] != 1 {
			continue
		}
		sid := payload[3]
		var match bool
		if isAudio {
			match = sid&0xE0 == StreamIdAudio
		} else {
			match = sid&0xF0 == StreamIdVideo
		}
		if !match {
			continue
		}
		seen[p] = true
		if index == 0 {
			return p, true
		}
		index--
	}
}

func IsAudioStreamType(streamType uint8) bool {
	switch streamType {
	case StreamTypeMpeg1Audio, StreamTypeMpeg2Audio, StreamTypeAac, StreamTypeLatm:
		return true
	}
	return false
}
