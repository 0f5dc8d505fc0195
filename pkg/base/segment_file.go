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
	"os"
	"path/filepath"
	"strings"
)

// MakeSegmentFilename 分段文件名，在扩展名之前插入序号
//
// e.g. ("out/a.wav", 2) -> "out/a[2].wav"
//      ("out/a", 2)     -> "out/a[2]"
//
// number为0时返回原文件名
func MakeSegmentFilename(filename string, number int) string {
	if number == 0 {
		return filename
	}
	ext := filepath.Ext(filename)
	return fmt.Sprintf("%s[%d]%s", strings.TrimSuffix(filename, ext), number, ext)
}

// SegmentWriter 按序号切换文件的写入器，用于输出分段
//
// 第一个分段使用原文件名，之后依次为 name[1].ext, name[2].ext ...
type SegmentWriter struct {
	filename string
	number   int
	file     *os.File
	written  int64
}

func NewSegmentWriter(filename string) *SegmentWriter {
	return &SegmentWriter{
		filename: filename,
	}
}

// Open 打开当前序号对应的文件，目录不存在时自动创建
func (w *SegmentWriter) Open() (err error) {
	name := w.Name()
	if err = os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return err
	}
	w.file, err = os.Create(name)
	w.written = 0
	return
}

// Next 关闭当前分段，打开下一个
func (w *SegmentWriter) Next() error {
	if err := w.Close(); err != nil {
		return err
	}
	w.number++
	return w.Open()
}

func (w *SegmentWriter) Write(b []byte) (int, error) {
	if w.file == nil {
		return 0, os.ErrClosed
	}
	n, err := w.file.Write(b)
	w.written += int64(n)
	return n, err
}

func (w *SegmentWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *SegmentWriter) Name() string {
	return MakeSegmentFilename(w.filename, w.number)
}

func (w *SegmentWriter) Number() int {
	return w.number
}

func (w *SegmentWriter) Written() int64 {
	return w.written
}

func (w *SegmentWriter) IsOpen() bool {
	return w.file != nil
}
