// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

const (
	// 输出固定为16位整型PCM
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8

	wavHeaderSize  = 44
	wavFormatPcm   = 1
	blankChunkSize = 4096
)

var blankChunk = make([]byte, blankChunkSize)

// WavSink 16位PCM的WAV文件，数据长度在 Close 时回填到文件头
type WavSink struct {
	fp *os.File
	w  *bufio.Writer

	sampleRate int
	channels   int
	dataBytes  int64
}

// OpenWavSink 满足 SinkFactory
func OpenWavSink(filename string, sampleRate int, channels int) (Sink, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, err
	}
	fp, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	s := &WavSink{
		fp:         fp,
		w:          bufio.NewWriter(fp),
		sampleRate: sampleRate,
		channels:   channels,
	}
	if _, err = s.w.Write(s.header()); err != nil {
		_ = fp.Close()
		return nil, err
	}
	return s, nil
}

func (s *WavSink) Write(pcm []byte, samples int) error {
	if pcm == nil {
		return s.WriteBlank(samples)
	}
	n := samples * bytesPerSample
	if n > len(pcm) {
		n = len(pcm)
	}
	_, err := s.w.Write(pcm[:n])
	s.dataBytes += int64(n)
	return err
}

func (s *WavSink) WriteBlank(samples int) error {
	remain := samples * bytesPerSample
	for remain > 0 {
		n := remain
		if n > blankChunkSize {
			n = blankChunkSize
		}
		if _, err := s.w.Write(blankChunk[:n]); err != nil {
			return err
		}
		s.dataBytes += int64(n)
		remain -= n
	}
	return nil
}

func (s *WavSink) Close() error {
	e1 := s.w.Flush()
	_, e2 := s.fp.WriteAt(s.header(), 0)
	e3 := s.fp.Close()
	return nazaerrors.CombineErrors(e1, e2, e3)
}

// DataBytes 已写入的PCM字节数
func (s *WavSink) DataBytes() int64 {
	return s.dataBytes
}

func (s *WavSink) header() []byte {
	out := make([]byte, wavHeaderSize)
	blockAlign := s.channels * bytesPerSample
	copy(out, "RIFF")
	bele.LePutUint32(out[4:], uint32(wavHeaderSize-8+s.dataBytes))
	copy(out[8:], "WAVEfmt ")
	bele.LePutUint32(out[16:], 16)
	putLeUint16(out[20:], wavFormatPcm)
	putLeUint16(out[22:], uint16(s.channels))
	bele.LePutUint32(out[24:], uint32(s.sampleRate))
	bele.LePutUint32(out[28:], uint32(s.sampleRate*blockAlign))
	putLeUint16(out[32:], uint16(blockAlign))
	putLeUint16(out[34:], bitsPerSample)
	copy(out[36:], "data")
	bele.LePutUint32(out[40:], uint32(s.dataBytes))
	return out
}

func putLeUint16(out []byte, v uint16) {
	out[0] = byte(v)
	out[1] = byte(v >> 8)
}
