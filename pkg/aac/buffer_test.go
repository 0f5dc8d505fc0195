// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac_test

import (
	"bytes"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tsaac/pkg/aac"
	"github.com/q191201771/tsaac/pkg/innertest"
	"github.com/q191201771/tsaac/pkg/mpegts"
)

func newReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

// 逐帧读出，窗口比整个文件小
func TestFileBuffer(t *testing.T) {
	frames := innertest.AdtsFrames(40, 300)
	b, err := aac.NewFileBuffer(newReader(innertest.Join(frames)))
	assert.Equal(t, nil, err)
	assert.Equal(t, false, b.IsTs())

	for _, frame := range frames {
		assert.Equal(t, 0, b.FindNextSyncword(nil))
		assert.Equal(t, frame, b.Bytes()[:len(frame)])
		b.Advance(len(frame))
		b.IncFrames()
	}
	assert.Equal(t, nil, b.Fill())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, true, b.AtEof())
	assert.Equal(t, len(frames), b.Frames())
	assert.Equal(t, b.FileSize(), b.FileOffset())
}

func TestFindNextSyncword(t *testing.T) {
	frames := innertest.AdtsFrames(3, 100)
	junk := []byte{0x00, 0x11, 0xFF, 0x00}
	data := append(append([]byte{}, junk...), innertest.Join(frames)...)

	b, err := aac.NewFileBuffer(newReader(data))
	assert.Equal(t, nil, err)

	var sink bytes.Buffer
	assert.Equal(t, len(junk), b.FindNextSyncword(&sink))
	assert.Equal(t, junk, sink.Bytes())
	// 已经在syncword上，不前进
	assert.Equal(t, 0, b.FindNextSyncword(&sink))
	assert.Equal(t, len(junk), sink.Len())
	assert.Equal(t, frames[0], b.Bytes()[:len(frames[0])])

	// 没有syncword时消费剩余的所有数据
	b, err = aac.NewFileBuffer(newReader([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}))
	assert.Equal(t, nil, err)
	sink.Reset()
	assert.Equal(t, 0, b.FindNextSyncword(&sink))
	assert.Equal(t, 9, sink.Len())
	assert.Equal(t, 0, b.Len())
}

func TestFillTrailingTag(t *testing.T) {
	frames := innertest.AdtsFrames(3, 100)
	tag := append([]byte("TAG"), make([]byte, 125)...)
	data := append(innertest.Join(frames), tag...)

	b, err := aac.NewFileBuffer(newReader(data))
	assert.Equal(t, nil, err)
	for _, frame := range frames {
		assert.Equal(t, nil, b.Fill())
		b.Advance(len(frame))
	}
	assert.Equal(t, nil, b.Fill())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, true, b.AtEof())
}

func TestAdvance(t *testing.T) {
	frames := innertest.AdtsFrames(3, 100)
	b, err := aac.NewFileBuffer(newReader(innertest.Join(frames)))
	assert.Equal(t, nil, err)

	b.Advance(1000000)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, nil, b.Fill())
	assert.Equal(t, 0, b.Len())

	assert.Equal(t, nil, b.Rewind(0))
	assert.Equal(t, frames[0], b.Bytes()[:len(frames[0])])
}

func makeId3v2(size int) []byte {
	out := []byte{'I', 'D', '3', 3, 0, 0,
		byte(size>>21) & 0x7F, byte(size>>14) & 0x7F, byte(size>>7) & 0x7F, byte(size) & 0x7F}
	return append(out, make([]byte, size)...)
}

func TestSkipId3v2(t *testing.T) {
	frames := innertest.AdtsFrames(3, 100)

	for _, size := range []int{20, 10000} {
		data := append(makeId3v2(size), innertest.Join(frames)...)
		b, err := aac.NewFileBuffer(newReader(data))
		assert.Equal(t, nil, err)

		n, err := b.SkipId3v2()
		assert.Equal(t, nil, err)
		assert.Equal(t, size+10, n)
		assert.Equal(t, frames[0], b.Bytes()[:len(frames[0])])
		assert.Equal(t, int64(size+10), b.FileOffset())
	}

	b, err := aac.NewFileBuffer(newReader(innertest.Join(frames)))
	assert.Equal(t, nil, err)
	n, err := b.SkipId3v2()
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, n)
}

func TestTsBuffer(t *testing.T) {
	frames := innertest.AdtsFrames(40, 300)
	ts := innertest.MakeAudioTs(frames, innertest.AudioTsOption{
		WithPsi:      true,
		FramesPerPes: 2,
		StartPts:     90000,
		PtsStep:      innertest.PtsStep48000,
	})
	tr := mpegts.NewTsReader(newReader(ts))
	assert.Equal(t, nil, tr.Open())

	b, err := aac.NewTsBuffer(tr, innertest.AudioPid)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, b.IsTs())
	assert.Equal(t, float64(1000), b.Pts())
	assert.Equal(t, float64(90000+2*innertest.PtsStep48000)/90, b.NextPts())

	for _, frame := range frames {
		assert.Equal(t, 0, b.FindNextSyncword(nil))
		assert.Equal(t, frame, b.Bytes()[:len(frame)])
		b.Advance(len(frame))
	}
	assert.Equal(t, nil, b.Fill())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, true, b.AtEof())
}
