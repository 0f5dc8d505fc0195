// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/innertest"
	"github.com/q191201771/tsaac/pkg/logic"
)

// 视频第一个GOP的PTS为10000ms，音频第一个PES的PTS为11000ms
func makeAvTs() []byte {
	var cc uint8
	var ts []byte
	ts = append(ts, innertest.PsiPackets(true)...)
	ts = append(ts, innertest.VideoPes(&cc, 900000, innertest.SequenceHeader(3), innertest.GopHeader(), innertest.Picture(1))...)
	ts = append(ts, innertest.MakeAudioTs(innertest.AdtsFrames(40, 200), innertest.AudioTsOption{
		FramesPerPes: 2,
		StartPts:     990000,
		PtsStep:      innertest.PtsStep48000,
	})...)
	return ts
}

func fileSize(t *testing.T, filename string) int {
	fi, err := os.Stat(filename)
	assert.Equal(t, nil, err)
	return int(fi.Size())
}

func TestEntry_Ts(t *testing.T) {
	input := innertest.WriteTempFile(t, "rec.ts", makeAvTs())
	dir := filepath.Dir(input)

	conf := logic.DefaultConfig()
	conf.OutDir = filepath.Join(dir, "out")
	r, err := logic.Entry(conf, input)
	assert.Equal(t, nil, err)
	assert.Equal(t, filepath.Join(dir, "out", "rec PID 101 DELAY 0ms.wav"), r.Output)
	assert.Equal(t, 40, r.Stats.OkFrames)
	// 音频比视频晚1秒，开头插入1秒空白
	assert.Equal(t, 48000, r.Stats.BlankSamples)
	assert.Equal(t, 44+(48000+40*1024)*4, fileSize(t, r.Output))

	conf.Mode = logic.ModeInfo
	r, err = logic.Entry(conf, input)
	assert.Equal(t, nil, err)
	assert.Equal(t, "", r.Output)
	assert.Equal(t, true, strings.Contains(r.Info, "TS ADTS"))
	assert.Equal(t, true, strings.Contains(r.Info, "AAC   PID: 0x101  PTS: 11000.0 [ms]"))
	assert.Equal(t, true, strings.Contains(r.Info, "Video PID: 0x100  PTS: 10000.0 [ms]"))
	assert.Equal(t, true, strings.Contains(r.Info, "Delay        : 1000 [ms]"))
}

// 配置中的延迟优先于PTS
func TestEntry_ConfDelay(t *testing.T) {
	input := innertest.WriteTempFile(t, "rec.ts", makeAvTs())

	conf := logic.DefaultConfig()
	conf.DelayMs = 0
	conf.DelaySet = true
	conf.Mode = logic.ModeAdts
	r, err := logic.Entry(conf, input)
	assert.Equal(t, nil, err)
	assert.Equal(t, filepath.Join(filepath.Dir(input), "rec PID 101 DELAY 0ms.aac"), r.Output)
	assert.Equal(t, 0, r.Stats.BlankSamples)
	assert.Equal(t, len(innertest.Join(innertest.AdtsFrames(40, 200))), fileSize(t, r.Output))
}

func TestEntry_AdtsFilenameDelay(t *testing.T) {
	input := innertest.WriteTempFile(t, "rec DELAY -120ms.aac", innertest.Join(innertest.AdtsFrames(10, 100)))

	conf := logic.DefaultConfig()
	r, err := logic.Entry(conf, input)
	assert.Equal(t, nil, err)
	assert.Equal(t, filepath.Join(filepath.Dir(input), "rec DELAY 0ms.wav"), r.Output)
	assert.Equal(t, 10, r.Stats.OkFrames)
	assert.Equal(t, 5760, r.Stats.RemovedSamples)
	assert.Equal(t, 44+(10*1024-5760)*4, fileSize(t, r.Output))
}

func TestEntry_Unsupported(t *testing.T) {
	input := innertest.WriteTempFile(t, "junk.bin", make([]byte, 1000))
	_, err := logic.Entry(logic.DefaultConfig(), input)
	assert.Equal(t, true, errors.Is(err, base.ErrUnsupportedInput))
}

func TestRunBatch(t *testing.T) {
	good := innertest.WriteTempFile(t, "a.aac", innertest.Join(innertest.AdtsFrames(10, 100)))
	bad := filepath.Join(filepath.Dir(good), "notexist.aac")

	conf := logic.DefaultConfig()
	conf.Inputs = []string{good, bad}
	conf.Concurrency = 2
	results, err := logic.RunBatch(context.Background(), conf)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(results))
	assert.Equal(t, nil, results[0].Err)
	assert.Equal(t, 10, results[0].Stats.OkFrames)
	assert.Equal(t, replaceExt(good, ".wav"), results[0].Output)
	assert.IsNotNil(t, results[1].Err)

	// 已经取消时不再开始新的输入
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err = logic.RunBatch(ctx, conf)
	assert.Equal(t, true, errors.Is(err, context.Canceled))
	assert.Equal(t, (*logic.Result)(nil), results[0])
}

func replaceExt(filename string, ext string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}
