// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/asticode/go-astits"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/innertest"
	"github.com/q191201771/tsaac/pkg/mpegts"
)

func TestParsePat(t *testing.T) {
	programs := []mpegts.PatProgramElement{
		{ProgramNumber: 0, ProgramMapPid: 0x10},
		{ProgramNumber: 1, ProgramMapPid: 0x1000},
		{ProgramNumber: 2, ProgramMapPid: 0x1001},
	}
	b := mpegts.PackPat(7, programs)
	pat, err := mpegts.ParsePat(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(7), pat.TransportStreamId)
	assert.Equal(t, uint8(1), pat.CurrentNextIndicator)
	assert.Equal(t, programs, pat.ProgramElements)
	assert.Equal(t, true, pat.SearchPid(0x1001))
	assert.Equal(t, false, pat.SearchPid(0x1002))

	// CRC错误只打印日志
	b[len(b)-1] ^= 0xFF
	pat, err = mpegts.ParsePat(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(pat.ProgramElements))

	// table_id错误
	b[1] = mpegts.TsPsiIdPms
	_, err = mpegts.ParsePat(b)
	assert.Equal(t, true, errors.Is(err, base.ErrInvalidTable))

	_, err = mpegts.ParsePat(nil)
	assert.Equal(t, true, errors.Is(err, base.ErrInvalidTable))
}

func TestParsePmt(t *testing.T) {
	elements := []mpegts.PmtProgramElement{
		{StreamType: mpegts.StreamTypeMpeg2Video, Pid: 0x100},
		{StreamType: mpegts.StreamTypeAac, Pid: 0x101},
		{StreamType: mpegts.StreamTypeAac, Pid: 0x102},
	}
	b := mpegts.PackPmt(3, 0x100, elements)
	pmt, err := mpegts.ParsePmt(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(3), pmt.ProgramNumber)
	assert.Equal(t, uint16(0x100), pmt.PcrPid)
	assert.Equal(t, elements, pmt.ProgramElements)

	assert.Equal(t, uint16(0x102), pmt.SearchStreamType(mpegts.StreamTypeAac, 1).Pid)
	assert.Equal(t, true, pmt.SearchStreamType(mpegts.StreamTypeAac, 2) == nil)
	assert.Equal(t, mpegts.StreamTypeMpeg2Video, pmt.SearchPid(0x100).StreamType)

	// program_info_length越界
	b[1+10] |= 0x0F
	b[1+11] = 0xFF
	_, err = mpegts.ParsePmt(b)
	assert.Equal(t, true, errors.Is(err, base.ErrInvalidTable))

	// PAT按PMT解析
	_, err = mpegts.ParsePmt(mpegts.PackPat(1, nil))
	assert.Equal(t, true, errors.Is(err, base.ErrInvalidTable))
}

// sectionOf 修改单section payload unit的section_number和last_section_number，返回去掉pointer_field的section
func sectionOf(unit []byte, sectionNumber uint8, lastSectionNumber uint8) []byte {
	section := append([]byte(nil), unit[1:]...)
	section[6] = sectionNumber
	section[7] = lastSectionNumber
	bele.BePutUint32(section[len(section)-4:], mpegts.Crc32Mpeg2(section[:len(section)-4]))
	return section
}

func joinSections(sections ...[]byte) []byte {
	out := []byte{0}
	for _, section := range sections {
		out = append(out, section...)
	}
	return out
}

func TestParsePat_MultiSection(t *testing.T) {
	p1 := []mpegts.PatProgramElement{{ProgramNumber: 1, ProgramMapPid: 0x1000}}
	p2 := []mpegts.PatProgramElement{{ProgramNumber: 2, ProgramMapPid: 0x1001}, {ProgramNumber: 3, ProgramMapPid: 0x1002}}
	s0 := sectionOf(mpegts.PackPat(1, p1), 0, 1)
	s1 := sectionOf(mpegts.PackPat(1, p2), 1, 1)

	pat, err := mpegts.ParsePat(joinSections(s0, s1))
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(1), pat.LastSectionNumber)
	assert.Equal(t, append(p1, p2...), pat.ProgramElements)

	// section_number乱序
	_, err = mpegts.ParsePat(joinSections(s1, s0))
	assert.Equal(t, true, errors.Is(err, base.ErrInvalidTable))

	// last_section_number前后不一致
	_, err = mpegts.ParsePat(joinSections(s0, sectionOf(mpegts.PackPat(1, p2), 1, 2)))
	assert.Equal(t, true, errors.Is(err, base.ErrInvalidTable))

	// 后续section不在当前payload unit中，只使用已有的
	pat, err = mpegts.ParsePat(append(joinSections(s0), 0xFF, 0xFF, 0xFF, 0xFF))
	assert.Equal(t, nil, err)
	assert.Equal(t, p1, pat.ProgramElements)
}

func TestParsePmt_MultiSection(t *testing.T) {
	e1 := []mpegts.PmtProgramElement{{StreamType: mpegts.StreamTypeMpeg2Video, Pid: 0x100}}
	e2 := []mpegts.PmtProgramElement{{StreamType: mpegts.StreamTypeAac, Pid: 0x101}}
	s0 := sectionOf(mpegts.PackPmt(1, 0x100, e1), 0, 1)
	s1 := sectionOf(mpegts.PackPmt(1, 0x100, e2), 1, 1)

	pmt, err := mpegts.ParsePmt(joinSections(s0, s1))
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(1), pmt.ProgramNumber)
	assert.Equal(t, append(e1, e2...), pmt.ProgramElements)
	assert.Equal(t, uint16(0x101), pmt.SearchStreamType(mpegts.StreamTypeAac, 0).Pid)

	_, err = mpegts.ParsePmt(joinSections(s1, s0))
	assert.Equal(t, true, errors.Is(err, base.ErrInvalidTable))
}

func TestProgramTable(t *testing.T) {
	frames := innertest.AdtsFrames(10, 200)
	var ts []byte
	ts = append(ts, innertest.PsiPackets(true)...)
	ts = append(ts, innertest.MakeAudioTs(frames, innertest.AudioTsOption{StartPts: 1, PtsStep: innertest.PtsStep48000})...)

	tr := mpegts.NewTsReader(bytes.NewReader(ts))
	assert.Equal(t, nil, tr.Open())

	pt, err := tr.ProgramTable()
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(pt.Programs))
	assert.Equal(t, innertest.PmtPid, pt.Programs[0].PmtPid)

	pid, program, ok := pt.LookupPid(mpegts.StreamTypeAac, 0, 0)
	assert.Equal(t, true, ok)
	assert.Equal(t, innertest.AudioPid, pid)
	assert.Equal(t, innertest.ProgramNumber, program)

	pid, _, ok = pt.LookupPid(mpegts.StreamTypeMpeg2Video, innertest.ProgramNumber, 0)
	assert.Equal(t, true, ok)
	assert.Equal(t, innertest.VideoPid, pid)

	_, _, ok = pt.LookupPid(mpegts.StreamTypeAac, 0, 1)
	assert.Equal(t, false, ok)
	_, _, ok = pt.LookupPid(mpegts.StreamTypeAac, 2, 0)
	assert.Equal(t, false, ok)

	streamType, _, ok := pt.StreamType(innertest.AudioPid)
	assert.Equal(t, true, ok)
	assert.Equal(t, mpegts.StreamTypeAac, streamType)

	var out strings.Builder
	pt.Dump(&out)
	assert.Equal(t, true, strings.Contains(out.String(), "PID 0x101, stream_type 0x0F MPEG2 AAC"))

	// 读完后回到开始处
	pkt, err := tr.NextPacket()
	assert.Equal(t, nil, err)
	assert.Equal(t, mpegts.PidPat, mpegts.PacketPid(pkt))

	// 缓存
	pt2, err := tr.ProgramTable()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, pt == pt2)
}

func TestProgramTable_MultiProgram(t *testing.T) {
	var ccPat, ccPmt1, ccPmt2 uint8
	pat := mpegts.PackPat(1, []mpegts.PatProgramElement{
		{ProgramNumber: 1, ProgramMapPid: 0x1000},
		{ProgramNumber: 2, ProgramMapPid: 0x1001},
	})
	pmt1 := mpegts.PackPmt(1, 0x101, []mpegts.PmtProgramElement{{StreamType: mpegts.StreamTypeAac, Pid: 0x101}})
	pmt2 := mpegts.PackPmt(2, 0x201, []mpegts.PmtProgramElement{
		{StreamType: mpegts.StreamTypeMpeg2Video, Pid: 0x200},
		{StreamType: mpegts.StreamTypeAac, Pid: 0x201},
	})
	var ts []byte
	ts = append(ts, mpegts.PackSection(mpegts.PidPat, &ccPat, pat)...)
	ts = append(ts, mpegts.PackSection(0x1000, &ccPmt1, pmt1)...)
	ts = append(ts, mpegts.PackSection(0x1001, &ccPmt2, pmt2)...)
	ts = append(ts, innertest.MakeAudioTs(innertest.AdtsFrames(4, 100), innertest.AudioTsOption{StartPts: 1, PtsStep: innertest.PtsStep48000})...)

	tr := mpegts.NewTsReader(bytes.NewReader(ts))
	assert.Equal(t, nil, tr.Open())
	pt, err := tr.ProgramTable()
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(pt.Programs))

	golden := []struct {
		programNumber uint16
		index         int
		pid           uint16
		program       uint16
		ok            bool
	}{
		{0, 0, 0x101, 1, true},
		{0, 1, 0x201, 2, true},
		{0, 2, 0, 0, false},
		{2, 0, 0x201, 2, true},
		{2, 1, 0, 0, false},
		{1, 1, 0, 0, false},
	}
	for _, item := range golden {
		pid, program, ok := pt.LookupPid(mpegts.StreamTypeAac, item.programNumber, item.index)
		assert.Equal(t, item.ok, ok, fmt.Sprintf("%+v", item))
		assert.Equal(t, item.pid, pid, fmt.Sprintf("%+v", item))
		assert.Equal(t, item.program, program, fmt.Sprintf("%+v", item))
	}

	pid, program, ok := pt.LookupPid(mpegts.StreamTypeMpeg2Video, 0, 0)
	assert.Equal(t, true, ok)
	assert.Equal(t, uint16(0x200), pid)
	assert.Equal(t, uint16(2), program)
}

func TestProbePid(t *testing.T) {
	frames := innertest.AdtsFrames(10, 200)
	ts := innertest.MakeAudioTs(frames, innertest.AudioTsOption{StartPts: 1, PtsStep: innertest.PtsStep48000})
	tr := mpegts.NewTsReader(bytes.NewReader(ts))
	assert.Equal(t, nil, tr.Open())

	_, err := tr.ReadPat(50)
	assert.IsNotNil(t, err)

	pid, ok := mpegts.ProbePid(tr, mpegts.StreamTypeAac, 0, 0)
	assert.Equal(t, true, ok)
	assert.Equal(t, innertest.AudioPid, pid)

	_, ok = mpegts.ProbePid(tr, mpegts.StreamTypeAac, 1, 0)
	assert.Equal(t, false, ok)
	_, ok = mpegts.ProbePid(tr, mpegts.StreamTypeMpeg2Video, 0, 0)
	assert.Equal(t, false, ok)
}

// 自己打包的流由astits解析
func TestPackDemuxedByAstits(t *testing.T) {
	frames := innertest.AdtsFrames(10, 300)
	ts := innertest.MakeAudioTs(frames, innertest.AudioTsOption{
		WithPsi:  true,
		StartPts: 90000,
		PtsStep:  innertest.PtsStep48000,
	})

	dmx := astits.NewDemuxer(context.Background(), bytes.NewReader(ts))
	var (
		gotPat bool
		gotPmt bool
		n      int
	)
	for {
		d, err := dmx.NextData()
		if err != nil {
			assert.Equal(t, astits.ErrNoMorePackets, err)
			break
		}
		if d.PAT != nil {
			gotPat = true
			assert.Equal(t, 1, len(d.PAT.Programs))
			assert.Equal(t, innertest.PmtPid, d.PAT.Programs[0].ProgramMapID)
		}
		if d.PMT != nil {
			gotPmt = true
			assert.Equal(t, 1, len(d.PMT.ElementaryStreams))
			assert.Equal(t, innertest.AudioPid, d.PMT.ElementaryStreams[0].ElementaryPID)
			assert.Equal(t, astits.StreamTypeAACAudio, d.PMT.ElementaryStreams[0].StreamType)
		}
		if d.PES != nil {
			assert.Equal(t, frames[n], d.PES.Data)
			assert.Equal(t, int64(90000)+int64(n)*int64(innertest.PtsStep48000), d.PES.Header.OptionalHeader.PTS.Base)
			n++
		}
	}
	assert.Equal(t, true, gotPat)
	assert.Equal(t, true, gotPmt)
	assert.Equal(t, len(frames), n)
}

// astits封装的流由自己解析
func TestReadAstitsMuxed(t *testing.T) {
	frames := innertest.AdtsFrames(10, 300)
	ts, err := innertest.MuxAudioTsWithAstits(frames, 3000, int64(innertest.PtsStep48000))
	assert.Equal(t, nil, err)

	tr := mpegts.NewTsReader(bytes.NewReader(ts))
	assert.Equal(t, nil, tr.Open())
	assert.Equal(t, mpegts.PacketSize188, tr.PacketSize())

	pt, err := tr.ProgramTable()
	assert.Equal(t, nil, err)
	pid, _, ok := pt.LookupPid(mpegts.StreamTypeAac, 0, 0)
	assert.Equal(t, true, ok)
	assert.Equal(t, innertest.AudioPid, pid)

	pb := mpegts.NewPesBuffer(1024, 1024, 64*1024)
	for i := range frames {
		_, err = tr.ReadPayloadUnit(pid, pb, 0)
		if i+1 < len(frames) {
			assert.Equal(t, nil, err)
		} else {
			assert.Equal(t, true, errors.Is(err, base.ErrEndOfStream))
		}
		assert.Equal(t, float64(3000+i*int(innertest.PtsStep48000))/90, mpegts.ExtractPtsMs(pb.Bytes()))
		payload, err := mpegts.SkipPesHeader(pb.Bytes())
		assert.Equal(t, nil, err)
		assert.Equal(t, frames[i], payload)
	}
}
