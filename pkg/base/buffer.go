// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"fmt"
	"io"
)

const growRoundThreshold = 1048576 // 1MB

// Buffer 先进先出的字节缓存，可直接读写内部切片避免拷贝
//
// 支持两种扩容策略：
//   - 默认，按2的幂扩容，不限制上限
//   - NewBufferWithLimit 创建时指定，按固定步长扩容，超过上限时 Grow 返回 ErrBufferLimit
//
// 示例
//   读取
//     buf := Bytes()
//     ... // 读取buf的内容
//     Skip(n)
//
//   写入方式1
//     buf, err := ReserveBytes(n)
//     ... // 向buf中写入内容
//     Flush(n)
//
//   写入方式2
//     n, err := FillFrom(r)
//
type Buffer struct {
	core []byte
	rpos int
	wpos int

	growStep int
	maxCap   int
}

func NewBuffer(initCap int) *Buffer {
	return &Buffer{
		core: make([]byte, initCap),
	}
}

// NewBufferWithLimit
//
// @param growStep: 每次扩容的步长
// @param maxCap:   容量上限，0表示不限制
//
func NewBufferWithLimit(initCap, growStep, maxCap int) *Buffer {
	return &Buffer{
		core:     make([]byte, initCap),
		growStep: growStep,
		maxCap:   maxCap,
	}
}

// ---------------------------------------------------------------------------------------------------------------------

// Bytes Buffer中所有未读数据，不拷贝
//
// 注意，Compact、Grow、FillFrom 可能移动内部数据，调用这些函数后，之前返回的切片不再有效
//
func (b *Buffer) Bytes() []byte {
	if b.rpos == b.wpos {
		return nil
	}
	return b.core[b.rpos:b.wpos]
}

// Peek 查看最多`n`字节的未读数据，不拷贝，不修改读取位置
//
func (b *Buffer) Peek(n int) []byte {
	if b.rpos == b.wpos {
		return nil
	}
	if b.Len() < n {
		return b.Bytes()
	}
	return b.core[b.rpos : b.rpos+n]
}

// Skip 将前`n`字节未读数据标记为已读
//
// 超过未读数据长度时，清空，剩余长度不会为负数
//
func (b *Buffer) Skip(n int) {
	if n > b.wpos-b.rpos {
		Log.Warnf("[%p] Buffer::Skip too large. n=%d, %s", b, n, b.DebugString())
		b.Reset()
		return
	}
	b.rpos += n
	b.resetIfEmpty()
}

// Compact 将未读数据移动到内部切片的头部
//
func (b *Buffer) Compact() {
	if b.rpos == 0 {
		return
	}
	copy(b.core, b.core[b.rpos:b.wpos])
	b.wpos -= b.rpos
	b.rpos = 0
}

// ---------------------------------------------------------------------------------------------------------------------

// Grow 确保Buffer中至少有`n`大小的空间可写
//
func (b *Buffer) Grow(n int) error {
	tail := len(b.core) - b.wpos
	if tail >= n {
		return nil
	}

	if b.rpos+tail >= n {
		// 头部加上尾部空闲空间足够
		b.Compact()
		return nil
	}

	needed := b.Len() + n
	if b.growStep > 0 {
		needed = len(b.core) + (needed-len(b.core)+b.growStep-1)/b.growStep*b.growStep
	} else if needed < growRoundThreshold {
		needed = roundUpPowerOfTwo(needed)
	}
	if b.maxCap > 0 && needed > b.maxCap {
		if b.Len()+n > b.maxCap {
			return NewErrBufferLimit(b.Len()+n, b.maxCap)
		}
		needed = b.maxCap
	}

	Log.Debugf("[%p] Buffer::Grow. realloc, n=%d, copy=%d, cap=(%d, %d)", b, n, b.Len(), b.Cap(), needed)
	core := make([]byte, needed)
	copy(core, b.core[b.rpos:b.wpos])
	b.core = core
	b.wpos -= b.rpos
	b.rpos = 0
	return nil
}

// WritableBytes 当前可写入的字节切片
//
func (b *Buffer) WritableBytes() []byte {
	if len(b.core) == b.wpos {
		return nil
	}
	return b.core[b.wpos:]
}

// ReserveBytes 返回可写入`n`大小的字节切片，空闲空间不够时内部扩容
//
func (b *Buffer) ReserveBytes(n int) ([]byte, error) {
	if err := b.Grow(n); err != nil {
		return nil, err
	}
	return b.WritableBytes()[:n], nil
}

// Flush 写入完成，更新写入位置
//
func (b *Buffer) Flush(n int) {
	if len(b.core)-b.wpos < n {
		Log.Warnf("[%p] Buffer::Flush too large. n=%d, %s", b, n, b.DebugString())
		b.wpos = len(b.core)
		return
	}
	b.wpos += n
}

// FillFrom 先 Compact ，然后从`r`中读取数据，直到写满或者`r`没有更多数据
//
// 不扩容
//
// @return n:   本次读取的字节数
// @return err: `r`已经读完并且本次一个字节也没有读到时，返回io.EOF
//
func (b *Buffer) FillFrom(r io.Reader) (n int, err error) {
	b.Compact()
	wb := b.WritableBytes()
	if len(wb) == 0 {
		return 0, nil
	}
	n, err = io.ReadFull(r, wb)
	b.wpos += n
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	return
}

// ----- implement io.Reader interface ---------------------------------------------------------------------------------

func (b *Buffer) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.Len() == 0 {
		return 0, io.EOF
	}
	n = copy(p, b.core[b.rpos:b.wpos])
	b.Skip(n)
	return n, nil
}

// ----- implement io.Writer interface ---------------------------------------------------------------------------------

func (b *Buffer) Write(p []byte) (n int, err error) {
	if err = b.Grow(len(p)); err != nil {
		return 0, err
	}
	n = copy(b.core[b.wpos:], p)
	b.wpos += n
	return n, nil
}

// ---------------------------------------------------------------------------------------------------------------------

// Truncate 丢弃可读数据末尾`n`字节
//
func (b *Buffer) Truncate(n int) {
	if b.Len() < n {
		Log.Warnf("[%p] Buffer::Truncate too large. n=%d, %s", b, n, b.DebugString())
		b.Reset()
		return
	}
	b.wpos -= n
	b.resetIfEmpty()
}

// Reset 重置，不释放内存块
//
func (b *Buffer) Reset() {
	b.rpos = 0
	b.wpos = 0
}

func (b *Buffer) Len() int {
	return b.wpos - b.rpos
}

func (b *Buffer) Cap() int {
	return len(b.core)
}

// Free 不扩容情况下还能写入的大小，包含头部已读的空间
//
func (b *Buffer) Free() int {
	return len(b.core) - b.Len()
}

func (b *Buffer) DebugString() string {
	return fmt.Sprintf("len(core)=%d, rpos=%d, wpos=%d", len(b.core), b.rpos, b.wpos)
}

// ---------------------------------------------------------------------------------------------------------------------

func (b *Buffer) resetIfEmpty() {
	if b.rpos == b.wpos {
		b.Reset()
	}
}

func roundUpPowerOfTwo(n int) int {
	if n <= 2 {
		return 2
	}

	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
