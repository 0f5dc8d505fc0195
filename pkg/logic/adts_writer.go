// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import "github.com/q191201771/tsaac/pkg/base"

// AdtsWriter ADTS直通输出，分段时文件名中插入序号
//
// 也用于PCM输出时保存重新同步跳过的字节
type AdtsWriter struct {
	uniqueKey string
	sw        *base.SegmentWriter
	frames    int
}

func NewAdtsWriter(uniqueKey string, filename string) *AdtsWriter {
	return &AdtsWriter{
		uniqueKey: uniqueKey,
		sw:        base.NewSegmentWriter(filename),
	}
}

func (w *AdtsWriter) Open() error {
	if err := w.sw.Open(); err != nil {
		return err
	}
	Log.Infof("[%s] open adts file. file=%s", w.uniqueKey, w.sw.Name())
	return nil
}

// Split 关闭当前文件，打开下一个分段
func (w *AdtsWriter) Split() error {
	prev := w.sw.Name()
	if err := w.sw.Next(); err != nil {
		return err
	}
	Log.Infof("[%s] split adts file. prev=%s, frames=%d, next=%s", w.uniqueKey, prev, w.frames, w.sw.Name())
	w.frames = 0
	return nil
}

// WriteFrame 写入完整的一帧，包含ADTS头
func (w *AdtsWriter) WriteFrame(frame []byte) error {
	if _, err := w.sw.Write(frame); err != nil {
		return err
	}
	w.frames++
	return nil
}

// Write 写入任意字节，不计入帧数
func (w *AdtsWriter) Write(b []byte) (int, error) {
	return w.sw.Write(b)
}

func (w *AdtsWriter) Close() error {
	if !w.sw.IsOpen() {
		return nil
	}
	Log.Infof("[%s] close adts file. file=%s, frames=%d, bytes=%d", w.uniqueKey, w.sw.Name(), w.frames, w.sw.Written())
	return w.sw.Close()
}

func (w *AdtsWriter) Name() string {
	return w.sw.Name()
}

// Segments 已经打开过的分段数
func (w *AdtsWriter) Segments() int {
	return w.sw.Number() + 1
}
