// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"bytes"
	"io"
	"os"

	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/tsaac/pkg/base"
)

type TsReaderOption struct {
	// ArenaSize 内部缓存大小，至少要能容纳步长探测需要的6个packet
	ArenaSize int
}

var defaultTsReaderOption = TsReaderOption{
	ArenaSize: base.TsReaderArenaSize,
}

type ModTsReaderOption func(option *TsReaderOption)

// TsReader 从可seek的字节源中按packet读取TS流
//
// 内部持有固定大小的缓存，当前packet在缓存中的位置随读取前进，剩余数据不足一个packet时整理并补充。
// 注意，NextPacket 等函数返回的切片引用内部缓存，下一次读取后不再有效
//
type TsReader struct {
	option TsReaderOption

	r      io.ReadSeeker
	closer io.Closer

	buf        *base.Buffer
	packetSize int
	pid        uint16

	cur      []byte // 当前packet，nil表示还没有读取
	filePos  int64  // 已经从r中读取的字节数
	fileSize int64
	eof      bool
	lastErr  error

	programTable *ProgramTable

	dump base.LogDump
}

func NewTsReader(r io.ReadSeeker, modOptions ...ModTsReaderOption) *TsReader {
	option := defaultTsReaderOption
	for _, fn := range modOptions {
		fn(&option)
	}
	if option.ArenaSize < 8*PacketSize204 {
		option.ArenaSize = 8 * PacketSize204
	}
	return &TsReader{
		option: option,
		r:      r,
		buf:    base.NewBuffer(option.ArenaSize),
		dump:   base.NewLogDump(Log, base.LogDumpMaxNum),
	}
}

// OpenTsFile 打开文件并探测packet步长，返回的TsReader持有文件，需要调用 Close
func OpenTsFile(filename string, modOptions ...ModTsReaderOption) (*TsReader, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	t := NewTsReader(fp, modOptions...)
	t.closer = fp
	if err = t.Open(); err != nil {
		_ = fp.Close()
		return nil, err
	}
	return t, nil
}

// Open 探测packet步长，并定位到第一个packet之前
//
// 在缓存窗口内找不到连续6个步长一致的sync byte时，返回 base.ErrFormat
func (t *TsReader) Open() error {
	size, err := t.r.Seek(0, io.SeekEnd)
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	t.fileSize = size

	t.packetSize = 0
	if err = t.SeekHead(); err != nil {
		return err
	}

	offset, packetSize, ok := detectPacketSize(t.buf.Bytes())
	if !ok {
		return base.ErrFormat
	}
	t.packetSize = packetSize
	t.buf.Skip(offset)
	Log.Debugf("[%p] ts packet size detected. size=%d, offset=%d", t, packetSize, offset)
	return nil
}

// SeekHead 回到流的开始处，下一次 NextPacket 返回第一个packet
func (t *TsReader) SeekHead() error {
	if _, err := t.r.Seek(0, io.SeekStart); err != nil {
		return nazaerrors.Wrap(err)
	}
	t.buf.Reset()
	t.cur = nil
	t.filePos = 0
	t.eof = false
	t.fill()

	if t.packetSize != 0 {
		b := t.buf.Bytes()
		if i := bytes.IndexByte(b, syncByte); i > 0 {
			t.buf.Skip(i)
		}
	}
	return nil
}

// NextPacket 前进一个packet
//
// 期望位置不是sync byte时，向后重新同步，并将 LastError 设置为 base.ErrSyncLost ，返回同步后的packet。
// 数据读完时返回 base.ErrEndOfStream
func (t *TsReader) NextPacket() ([]byte, error) {
	if t.cur != nil {
		t.buf.Skip(len(t.cur))
		t.cur = nil
	}
	if t.buf.Len() < t.packetSize {
		t.fill()
	}
	if t.buf.Len() < PacketSize188 {
		return nil, base.ErrEndOfStream
	}

	if t.buf.Bytes()[0] != syncByte {
		if !t.resync() {
			return nil, base.ErrEndOfStream
		}
		t.lastErr = base.ErrSyncLost
	}

	b := t.buf.Bytes()
	n := t.packetSize
	if len(b) < n {
		// 最后一个packet，192/204步长尾部的附加字节可能不完整
		n = len(b)
	}
	t.cur = b[:n]
	return t.cur, nil
}

// NextPacketForPid 读取下一个 SetFilter 所设置PID的packet
//
// @param limit: 最多检查的packet数量，0表示不限制，超出时返回 base.ErrLimitExceeded
func (t *TsReader) NextPacketForPid(limit int) ([]byte, error) {
	for count := 1; ; count++ {
		pkt, err := t.NextPacket()
		if err != nil {
			return nil, err
		}
		if PacketPid(pkt) == t.pid {
			return pkt, nil
		}
		if limit > 0 && count >= limit {
			return nil, base.NewErrLimitExceeded(limit)
		}
	}
}

// NextUnitStart 读取下一个payload_unit_start_indicator为1并且有payload的packet，不区分PID
func (t *TsReader) NextUnitStart(limit int) ([]byte, error) {
	for count := 1; ; count++ {
		pkt, err := t.NextPacket()
		if err != nil {
			return nil, err
		}
		if PacketUnitStart(pkt) && PacketHasPayload(pkt) {
			return pkt, nil
		}
		if limit > 0 && count >= limit {
			return nil, base.NewErrLimitExceeded(limit)
		}
	}
}

// NextUnitStartForPid 同 NextUnitStart ，并且要求是 SetFilter 所设置的PID。`limit`按检查的所有packet累计
func (t *TsReader) NextUnitStartForPid(limit int) ([]byte, error) {
	for count := 1; ; count++ {
		pkt, err := t.NextPacket()
		if err != nil {
			return nil, err
		}
		if PacketPid(pkt) == t.pid && PacketUnitStart(pkt) && PacketHasPayload(pkt) {
			return pkt, nil
		}
		if limit > 0 && count >= limit {
			return nil, base.NewErrLimitExceeded(limit)
		}
	}
}

// ---------------------------------------------------------------------------------------------------------------------

func (t *TsReader) SetFilter(pid uint16) {
	t.pid = pid
}

func (t *TsReader) Filter() uint16 {
	return t.pid
}

func (t *TsReader) PacketSize() int {
	return t.packetSize
}

// Packet 当前packet，还没有读取或已经读完时为nil
func (t *TsReader) Packet() []byte {
	return t.cur
}

// LastError 返回最近一次的非致命错误，并清除
func (t *TsReader) LastError() error {
	err := t.lastErr
	t.lastErr = nil
	return err
}

// FilePos 已经从源中读取的字节数
func (t *TsReader) FilePos() int64 {
	return t.filePos
}

// Pos 当前缓存读取位置在源中的偏移
func (t *TsReader) Pos() int64 {
	return t.filePos - int64(t.buf.Len())
}

func (t *TsReader) Size() int64 {
	return t.fileSize
}

// AtEof 源已经读完，缓存中可能还有数据
func (t *TsReader) AtEof() bool {
	return t.eof
}

func (t *TsReader) Close() error {
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	return err
}

// ---------------------------------------------------------------------------------------------------------------------

func (t *TsReader) fill() {
	if t.eof {
		return
	}
	want := t.buf.Free()
	n, err := t.buf.FillFrom(t.r)
	t.filePos += int64(n)
	if err != nil {
		if err != io.EOF {
			Log.Errorf("[%p] read ts source failed. err=%+v", t, err)
			t.lastErr = err
		}
		t.eof = true
		return
	}
	if n < want {
		t.eof = true
	}
}

// resync 丢弃数据直到下一个sync byte。如果后面一个步长处的数据在缓存中，也要求是sync byte
func (t *TsReader) resync() bool {
	skipped := 0
	for {
		t.fill()
		b := t.buf.Bytes()
		if len(b) < PacketSize188 {
			skipped += len(b)
			t.buf.Skip(len(b))
			Log.Warnf("[%p] ts sync lost until end of stream. skipped=%d", t, skipped)
			return false
		}

		found := -1
		for i := 1; i < len(b); i++ {
			if b[i] != syncByte {
				continue
			}
			if i+t.packetSize < len(b) && b[i+t.packetSize] != syncByte {
				continue
			}
			found = i
			break
		}

		if found < 0 {
			t.dump.DumpPrefix("ts resync drop", b, 188)
			skipped += len(b)
			t.buf.Skip(len(b))
			continue
		}

		t.dump.DumpPrefix("ts resync drop", b[:found], 188)
		skipped += found
		t.buf.Skip(found)
		if t.buf.Len() < PacketSize188 {
			continue
		}
		Log.Warnf("[%p] ts sync lost, resynchronized. skipped=%d, pos=%d", t, skipped, t.Pos())
		return true
	}
}

// detectPacketSize 找到第一个sync byte，以及其后第一个距离至少188字节的sync byte，两者的距离作为候选步长，
// 候选步长还需要在第二个sync byte之后连续4个步长处都是sync byte
//
// @return offset: 第一个packet的位置
func detectPacketSize(b []byte) (offset int, packetSize int, ok bool) {
	sync2 := 0
	for {
		i := bytes.IndexByte(b[sync2:], syncByte)
		if i < 0 {
			return 0, 0, false
		}
		sync1 := sync2 + i
		if len(b)-sync1 < 2*PacketSize188 {
			return 0, 0, false
		}

		j := bytes.IndexByte(b[sync1+PacketSize188:], syncByte)
		if j < 0 {
			return 0, 0, false
		}
		sync2 = sync1 + PacketSize188 + j

		packetSize = sync2 - sync1
		if packetSize >= 2*PacketSize188 {
			continue
		}
		if sync2+4*packetSize >= len(b) {
			return 0, 0, false
		}
		if b[sync2+packetSize] == syncByte && b[sync2+2*packetSize] == syncByte &&
			b[sync2+3*packetSize] == syncByte && b[sync2+4*packetSize] == syncByte {
			return sync1, packetSize, true
		}
	}
}
