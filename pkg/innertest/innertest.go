// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package innertest 测试用的ADTS、TS、MPEG-2 video数据生成
package innertest

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/asticode/go-astits"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tsaac/pkg/aac"
	"github.com/q191201771/tsaac/pkg/mpegts"
)

const (
	ProgramNumber uint16 = 1
	PmtPid        uint16 = 0x1000
	AudioPid      uint16 = 0x101
	VideoPid      uint16 = 0x100

	SfiIndex48000 uint8 = aac.AscSamplingFrequencyIndex48000

	// PtsStep48000 48kHz下一帧1024个采样点的时长，90kHz
	PtsStep48000 uint64 = 1920
)

// AdtsFrame 一个AAC LC的ADTS帧，raw数据全部填充为`fill`
func AdtsFrame(sfi uint8, channels uint8, rawLen int, fill byte) []byte {
	ascCtx := aac.AscContext{
		AudioObjectType:        aac.AotAacLc,
		SamplingFrequencyIndex: sfi,
		ChannelConfiguration:   channels,
	}
	out := make([]byte, aac.AdtsHeaderLength+rawLen)
	_ = ascCtx.PackToAdtsHeader(out, rawLen)
	for i := aac.AdtsHeaderLength; i < len(out); i++ {
		out[i] = fill
	}
	return out
}

// AdtsFrames `n`个48kHz双声道的帧，第i帧raw长度为`rawLen`+i%7
//
// raw数据中不包含0xFF，不会误判为syncword
func AdtsFrames(n int, rawLen int) [][]byte {
	frames := make([][]byte, n)
	for i := 0; i < n; i++ {
		frames[i] = AdtsFrame(SfiIndex48000, 2, rawLen+i%7, byte(i%0x7F))
	}
	return frames
}

func Join(frames [][]byte) []byte {
	return bytes.Join(frames, nil)
}

// PsiPackets PAT以及只包含音频（可选视频）的PMT
func PsiPackets(withVideo bool) []byte {
	var ccPat, ccPmt uint8
	elements := []mpegts.PmtProgramElement{
		{StreamType: mpegts.StreamTypeAac, Pid: AudioPid},
	}
	if withVideo {
		elements = append([]mpegts.PmtProgramElement{{StreamType: mpegts.StreamTypeMpeg2Video, Pid: VideoPid}}, elements...)
	}
	pat := mpegts.PackPat(1, []mpegts.PatProgramElement{{ProgramNumber: ProgramNumber, ProgramMapPid: PmtPid}})
	pmt := mpegts.PackPmt(ProgramNumber, AudioPid, elements)

	var out []byte
	out = append(out, mpegts.PackSection(mpegts.PidPat, &ccPat, pat)...)
	out = append(out, mpegts.PackSection(PmtPid, &ccPmt, pmt)...)
	return out
}

// AudioTsOption
type AudioTsOption struct {
	PacketSize   int
	WithPsi      bool
	FramesPerPes int
	StartPts     uint64
	PtsStep      uint64 // 每帧
}

// MakeAudioTs 将ADTS帧打包为TS流，每`FramesPerPes`帧一个PES，每个PES都带PTS
func MakeAudioTs(frames [][]byte, option AudioTsOption) []byte {
	if option.FramesPerPes <= 0 {
		option.FramesPerPes = 1
	}
	if option.PacketSize == 0 {
		option.PacketSize = mpegts.PacketSize188
	}

	var out []byte
	if option.WithPsi {
		out = append(out, PsiPackets(false)...)
	}

	var cc uint8
	for i := 0; i < len(frames); i += option.FramesPerPes {
		end := i + option.FramesPerPes
		if end > len(frames) {
			end = len(frames)
		}
		pts := option.StartPts + uint64(i)*option.PtsStep
		f := mpegts.Frame{
			Pts:     pts,
			Dts:     pts,
			Cc:      cc,
			Pid:     AudioPid,
			Sid:     mpegts.StreamIdAudio,
			Aligned: true,
			Raw:     Join(frames[i:end]),
		}
		out = append(out, f.Pack()...)
		cc = f.Cc
	}
	return mpegts.Restride(out, option.PacketSize)
}

// MuxAudioTsWithAstits 使用astits封装，用于与自己的打包结果交叉验证
func MuxAudioTsWithAstits(frames [][]byte, startPts int64, ptsStep int64) ([]byte, error) {
	var buf bytes.Buffer
	mux := astits.NewMuxer(context.Background(), &buf)
	if err := mux.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: AudioPid,
		StreamType:    astits.StreamTypeAACAudio,
	}); err != nil {
		return nil, err
	}
	mux.SetPCRPID(AudioPid)
	if _, err := mux.WriteTables(); err != nil {
		return nil, err
	}

	for i, frame := range frames {
		_, err := mux.WriteData(&astits.MuxerData{
			PID: AudioPid,
			AdaptationField: &astits.PacketAdaptationField{
				RandomAccessIndicator: true,
			},
			PES: &astits.PESData{
				Header: &astits.PESHeader{
					OptionalHeader: &astits.PESOptionalHeader{
						MarkerBits:      2,
						PTSDTSIndicator: astits.PTSDTSIndicatorOnlyPTS,
						PTS:             &astits.ClockReference{Base: startPts + int64(i)*ptsStep},
					},
					PacketLength: uint16(len(frame) + 8),
					StreamID:     mpegts.StreamIdAudio,
				},
				Data: frame,
			},
		})
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------------------------------------------------

// MPEG-2 video ES片段，只包含定位PTS需要的start code

// SequenceHeader frame_rate_code为`frameRateCode`
func SequenceHeader(frameRateCode uint8) []byte {
	return []byte{0, 0, 1, 0xB3, 0x2D, 0x01, 0xE0, 0x10 | frameRateCode&0x0F, 0xFF, 0xFF, 0xE0, 0x00}
}

// SequenceExtension 帧率为frame_rate_code对应帧率乘以(`n`+1)/(`d`+1)
func SequenceExtension(n uint8, d uint8) []byte {
	return []byte{0, 0, 1, 0xB5, 0x14, 0x8A, 0x20, 0x01, 0x08, (n&0x03)<<5 | d&0x1F}
}

func GopHeader() []byte {
	return []byte{0, 0, 1, 0xB8, 0x00, 0x08, 0x00, 0x00}
}

// Picture picture header + picture coding extension（帧结构）+ 一个slice
//
// @param pct: 1=I 2=P 3=B
func Picture(pct uint8) []byte {
	return []byte{
		0, 0, 1, 0x00, 0x00, (pct & 0x07) << 3, 0x00, 0x00,
		0, 0, 1, 0xB5, 0x8F, 0xFF, 0xF3, 0x80, 0x00,
		0, 0, 1, 0x01, 0x12, 0x34, 0x56, 0x78,
	}
}

// VideoPes 打包一个视频PES。`pts`为0时不写PTS
func VideoPes(cc *uint8, pts uint64, es ...[]byte) []byte {
	f := mpegts.Frame{
		Pts:   pts,
		Dts:   pts,
		Cc:    *cc,
		Pid:   VideoPid,
		Sid:   mpegts.StreamIdVideo,
		NoPts: pts == 0,
		Raw:   Join(es),
	}
	out := f.Pack()
	*cc = f.Cc
	return out
}

// ---------------------------------------------------------------------------------------------------------------------

// WriteTempFile 写入临时目录，返回文件路径
func WriteTempFile(t *testing.T, name string, b []byte) string {
	dir, err := ioutil.TempDir("", "tsaac")
	assert.Equal(t, nil, err)
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	filename := filepath.Join(dir, name)
	err = ioutil.WriteFile(filename, b, 0644)
	assert.Equal(t, nil, err)
	return filename
}
