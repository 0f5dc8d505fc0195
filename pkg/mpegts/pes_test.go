// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts_test

import (
	"errors"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/mpegts"
)

// 去掉TS头，得到单个packet中的PES
func packSinglePes(f mpegts.Frame) []byte {
	return mpegts.PacketPayload(f.Pack())
}

func TestParsePesHeader(t *testing.T) {
	raw := []byte{0xFF, 0xF1, 0x01, 0x02, 0x03}
	pes := packSinglePes(mpegts.Frame{Pts: 180000, Dts: 90000, Pid: 0x101, Sid: mpegts.StreamIdAudio, Aligned: true, Raw: raw})

	h, err := mpegts.ParsePesHeader(pes)
	assert.Equal(t, nil, err)
	assert.Equal(t, mpegts.StreamIdAudio, h.StreamId)
	assert.Equal(t, true, h.DataAligned)
	assert.Equal(t, uint8(3), h.PtsDtsFlags)
	assert.Equal(t, uint8(10), h.HeaderDataLength)
	assert.Equal(t, uint64(180000), h.Pts)
	assert.Equal(t, uint64(90000), h.Dts)
	assert.Equal(t, uint16(3+10+len(raw)), h.PacketLength)

	assert.Equal(t, true, mpegts.PesHasPts(pes))
	assert.Equal(t, float64(2000), mpegts.ExtractPtsMs(pes))
	payload, err := mpegts.SkipPesHeader(pes)
	assert.Equal(t, nil, err)
	assert.Equal(t, raw, payload)

	_, err = mpegts.ParsePesHeader(pes[:5])
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
	_, err = mpegts.ParsePesHeader([]byte{0, 0, 2, 0xC0, 0, 0, 0x80, 0, 0})
	assert.Equal(t, base.ErrPesSync, err)
}

func TestExtractPtsMs(t *testing.T) {
	// PTS为0时与没有PTS区分
	pes := packSinglePes(mpegts.Frame{Pts: 0, Dts: 0, Pid: 0x101, Sid: mpegts.StreamIdAudio, Raw: []byte{1, 2, 3}})
	assert.Equal(t, 0.01, mpegts.ExtractPtsMs(pes))

	pes = packSinglePes(mpegts.Frame{NoPts: true, Pid: 0x101, Sid: mpegts.StreamIdAudio, Raw: []byte{1, 2, 3}})
	assert.Equal(t, false, mpegts.PesHasPts(pes))
	assert.Equal(t, float64(0), mpegts.ExtractPtsMs(pes))
	h, err := mpegts.ParsePesHeader(pes)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(0), h.PtsDtsFlags)
	assert.Equal(t, uint64(0), h.Pts)

	// 33位最大值
	pes = packSinglePes(mpegts.Frame{Pts: 1<<33 - 1, Dts: 1<<33 - 1, Pid: 0x101, Sid: mpegts.StreamIdAudio, Raw: []byte{1}})
	h, err = mpegts.ParsePesHeader(pes)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint64(1<<33-1), h.Pts)
}

func TestSkipPesHeader(t *testing.T) {
	_, err := mpegts.SkipPesHeader([]byte{0, 0, 1, 0xC0})
	assert.Equal(t, base.ErrNoPayload, err)

	// PES_header_data_length超出数据
	_, err = mpegts.SkipPesHeader([]byte{0, 0, 1, 0xC0, 0, 0, 0x80, 0x80, 0x05, 0x21, 0x00})
	assert.Equal(t, base.ErrNoPayload, err)
}
