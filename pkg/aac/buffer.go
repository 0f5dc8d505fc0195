// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/mpegts"
)

const (
	// 文件源的窗口大小，至少容纳一个最大的帧
	fileWindowSize = MaxFrameLength

	// TS源的窗口大小，需要容纳两个PES的payload
	tsWindowSize = 131072

	pesBufferInitSize = 65536
	pesBufferMaxSize  = 1024 * 1024
)

var (
	tagId3v1     = []byte("TAG")
	tagLyrics3   = []byte("LYRICSBEGIN")
	tagApe       = []byte("APETAGEX")
	tagId3v2     = []byte("ID3")
	id3v2HeadLen = 10
)

// Buffer 按帧读取ADTS数据的缓存窗口，数据来自裸ADTS文件，或者TS流中音频PID的PES payload
//
// 使用方式
//   b.Bytes() 当前帧开始的数据
//   b.Advance(n)
//   b.Fill()
//
type Buffer struct {
	buf *base.Buffer

	// 文件源
	r io.ReadSeeker

	// TS源
	tr              *mpegts.TsReader
	pid             uint16
	pes             *mpegts.PesBuffer
	pesPayloadBytes int // 最近一个PES的payload大小

	consumed   bool // 上次 Fill 之后是否 Advance 过
	fileOffset int64
	fileSize   int64
	eof        bool
	frames     int

	// pts[0] 窗口头部数据的PTS，pts[1] 最近读入的PES的PTS，单位毫秒，0表示未知
	pts [2]float64
}

// NewFileBuffer 裸ADTS文件，读满第一个窗口
func NewFileBuffer(r io.ReadSeeker) (*Buffer, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, nazaerrors.Wrap(err)
	}
	b := &Buffer{
		buf:      base.NewBuffer(fileWindowSize),
		r:        r,
		fileSize: size,
	}
	if err = b.Rewind(0); err != nil {
		return nil, err
	}
	return b, nil
}

// NewTsBuffer TS流中`pid`的音频
//
// 从流的开始处读取第一个带PTS的PES，将窗口对齐到第一个syncword，再多读取一个带PTS的PES，
// 此时 Pts 为第一个PES的PTS
func NewTsBuffer(tr *mpegts.TsReader, pid uint16) (*Buffer, error) {
	b := &Buffer{
		buf:      base.NewBuffer(tsWindowSize),
		tr:       tr,
		pid:      pid,
		pes:      mpegts.NewPesBuffer(pesBufferInitSize, pesBufferInitSize, pesBufferMaxSize),
		fileSize: tr.Size(),
	}
	if err := b.Rewind(0); err != nil {
		return nil, err
	}
	return b, nil
}

// Rewind 回到数据源的`offset`处重新开始，帧计数清零。TS源忽略`offset`，回到流的开始处
func (b *Buffer) Rewind(offset int64) error {
	b.buf.Reset()
	b.consumed = false
	b.eof = false
	b.frames = 0
	b.pts = [2]float64{}
	b.pesPayloadBytes = 0

	if b.tr == nil {
		if _, err := b.r.Seek(offset, io.SeekStart); err != nil {
			return nazaerrors.Wrap(err)
		}
		b.fileOffset = offset
		return b.readFile()
	}

	b.fileOffset = 0
	if err := b.tr.SeekHead(); err != nil {
		return err
	}
	if err := b.loadPes(); err != nil && !errors.Is(err, base.ErrEndOfStream) {
		return err
	}
	i := indexSyncword(b.buf.Bytes())
	if i < 0 {
		return fmt.Errorf("%w. syncword not found", base.ErrAdts)
	}
	if i > 0 {
		Log.Infof("[%p] adjust syncword. skipped=%d", b, i)
		b.buf.Skip(i)
	}
	if !b.eof {
		// 窗口中保持两个PES
		if err := b.loadPes(); err != nil && !errors.Is(err, base.ErrEndOfStream) {
			return err
		}
	}
	return nil
}

// Fill 上次 Fill 之后有数据被消费时，整理窗口并从数据源补充
//
// 窗口头部是ID3v1、Lyrics3、APE标签时，清空窗口，视为音频数据结束
func (b *Buffer) Fill() error {
	if !b.consumed {
		return nil
	}
	b.consumed = false
	b.buf.Compact()
	b.pts[0] = 0

	var err error
	if !b.eof {
		if b.tr == nil {
			err = b.readFile()
		} else {
			for b.pesPayloadBytes >= b.buf.Len() {
				if err = b.loadPes(); err != nil {
					break
				}
			}
			if errors.Is(err, base.ErrEndOfStream) {
				err = nil
			}
		}
	}

	head := b.buf.Bytes()
	if (len(head) > len(tagId3v1) && bytes.HasPrefix(head, tagId3v1)) ||
		(len(head) > len(tagLyrics3) && bytes.HasPrefix(head, tagLyrics3)) ||
		(len(head) > len(tagApe) && bytes.HasPrefix(head, tagApe)) {
		Log.Infof("[%p] trailing tag found, stop reading. offset=%d", b, b.fileOffset)
		b.buf.Reset()
		b.eof = true
	}
	return err
}

// Advance 消费`n`字节，超过窗口中的数据时只消费到窗口末尾
func (b *Buffer) Advance(n int) {
	if n <= 0 {
		return
	}
	if n > b.buf.Len() {
		n = b.buf.Len()
	}
	b.buf.Skip(n)
	b.consumed = true
	if b.tr != nil {
		b.fileOffset = b.tr.FilePos()
	} else {
		b.fileOffset += int64(n)
	}
}

// SkipId3v2 文件开始处的ID3v2标签
//
// @return 跳过的字节数
func (b *Buffer) SkipId3v2() (int, error) {
	head := b.buf.Bytes()
	if len(head) < id3v2HeadLen || !bytes.HasPrefix(head, tagId3v2) {
		return 0, nil
	}
	// 每字节只使用低7位
	size := int(head[6]&0x7F)<<21 | int(head[7]&0x7F)<<14 | int(head[8]&0x7F)<<7 | int(head[9]&0x7F)
	size += id3v2HeadLen

	if b.tr == nil && size > b.buf.Len() {
		// 标签比窗口大，直接从文件中跳过
		return size, b.Rewind(int64(size))
	}
	b.Advance(size)
	return size, b.Fill()
}

// FindNextSyncword 向后查找下一个ADTS syncword，跳过的字节写入`sink`
//
// 窗口头部已经是syncword时，返回0并且不前进。
// 数据结束时还没有找到，消费剩余的所有数据，返回0
//
// @param sink: 可以为nil
//
// @return 跳过的字节数
func (b *Buffer) FindNextSyncword(sink io.Writer) int {
	_ = b.Fill()
	if IsAdtsSyncword(b.buf.Bytes()) {
		return 0
	}

	skip := 0
	for b.buf.Len() >= 2 {
		data := b.buf.Bytes()
		if i := indexSyncword(data); i >= 0 {
			b.skipTo(sink, data[:i])
			skip += i
			_ = b.Fill()
			return skip
		}

		// 没有找到时保留最后一个字节，它可能是下一个syncword的第一个字节
		n := len(data) - 1
		if b.eof && len(data)-n < 2 {
			n = len(data)
		}
		b.skipTo(sink, data[:n])
		skip += n
		_ = b.Fill()
	}

	if b.buf.Len() > 0 && b.eof {
		skip += b.buf.Len()
		b.skipTo(sink, b.buf.Bytes())
		_ = b.Fill()
	}
	Log.Debugf("[%p] syncword not found until end of stream. skipped=%d", b, skip)
	return 0
}

func (b *Buffer) skipTo(sink io.Writer, data []byte) {
	if sink != nil {
		if _, err := sink.Write(data); err != nil {
			Log.Warnf("[%p] write skipped bytes failed. err=%+v", b, err)
		}
	}
	b.Advance(len(data))
}

// ---------------------------------------------------------------------------------------------------------------------

// Bytes 窗口中未消费的数据，下一次 Fill 后不再有效
func (b *Buffer) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *Buffer) Len() int {
	return b.buf.Len()
}

// AtEof 数据源已经读完，窗口中可能还有数据
func (b *Buffer) AtEof() bool {
	return b.eof
}

// Pts 窗口头部数据的PTS，单位毫秒，0表示未知
func (b *Buffer) Pts() float64 {
	return b.pts[0]
}

// NextPts 最近读入窗口的PES的PTS
func (b *Buffer) NextPts() float64 {
	return b.pts[1]
}

func (b *Buffer) FileOffset() int64 {
	return b.fileOffset
}

func (b *Buffer) FileSize() int64 {
	return b.fileSize
}

func (b *Buffer) Frames() int {
	return b.frames
}

func (b *Buffer) IncFrames() {
	b.frames++
}

// IsTs 数据是否来自TS流
func (b *Buffer) IsTs() bool {
	return b.tr != nil
}

// ---------------------------------------------------------------------------------------------------------------------

func (b *Buffer) readFile() error {
	want := b.buf.Free()
	n, err := b.buf.FillFrom(b.r)
	if err != nil && err != io.EOF {
		b.eof = true
		return nazaerrors.Wrap(err)
	}
	if n < want {
		b.eof = true
	}
	return nil
}

// loadPes 读取PES payload追加到窗口，直到读入一个带PTS的PES
//
// 流的最后一个PES即使不完整也追加到窗口，并返回 base.ErrEndOfStream
func (b *Buffer) loadPes() error {
	b.pts[0] = b.pts[1]
	b.pts[1] = 0

	for {
		n, err := b.tr.ReadPayloadUnit(b.pid, b.pes, 0)
		endOfStream := errors.Is(err, base.ErrEndOfStream)
		if err != nil && !(endOfStream && n > 0) {
			b.eof = true
			if !endOfStream {
				Log.Errorf("[%p] read pes failed. pid=0x%X, err=%+v", b, b.pid, err)
			}
			return err
		}

		unit := b.pes.Bytes()
		payload, perr := mpegts.SkipPesHeader(unit)
		if perr != nil {
			Log.Warnf("[%p] invalid pes header, ignore. pid=0x%X, len=%d, err=%+v", b, b.pid, len(unit), perr)
			if endOfStream {
				b.eof = true
				return err
			}
			continue
		}

		b.pesPayloadBytes = len(payload)
		if b.buf.Len()+len(payload) > b.buf.Cap() {
			return base.NewErrAacBufferFull(len(payload), b.buf.Cap()-b.buf.Len())
		}
		_, _ = b.buf.Write(payload)

		hasPts := mpegts.PesHasPts(unit)
		if hasPts {
			b.pts[1] = mpegts.ExtractPtsMs(unit)
		}
		if endOfStream {
			b.eof = true
			return err
		}
		if hasPts {
			return nil
		}
	}
}

// indexSyncword 第一个ADTS syncword的位置，没有时返回-1
func indexSyncword(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == 0xFF && b[i+1]&0xF6 == 0xF0 {
			return i
		}
	}
	return -1
}
