// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic_test

import (
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tsaac/pkg/logic"
	"github.com/q191201771/tsaac/pkg/mpegts"
)

func TestEstimateBrokenFrames(t *testing.T) {
	// 128kbps 44.1kHz 一帧约371.5字节
	assert.Equal(t, 3, logic.EstimateBrokenFrames(1000, 128, 44100, 1024))
	assert.Equal(t, 1, logic.EstimateBrokenFrames(1, 128, 44100, 1024))
	assert.Equal(t, 0, logic.EstimateBrokenFrames(0, 128, 44100, 1024))

	// 默认 192kbps 48kHz，一帧512字节
	assert.Equal(t, 1, logic.EstimateBrokenFrames(512, 0, 0, 0))
	assert.Equal(t, 2, logic.EstimateBrokenFrames(768, 0, 0, 0))
	assert.Equal(t, 4, logic.EstimateBrokenFrames(1024, 0, 0, 512))
}

func TestPtsAdjustSamples(t *testing.T) {
	golden := []struct {
		diff    float64
		samples int
		ok      bool
	}{
		{100, 4800, true},
		{0.5, 24, true},
		{0, 0, true},
		{-0.5, 0, true},
		{-10, -480, true},
		{-30, 0, false}, // 超过一帧
		{60000, 0, false},
	}
	for _, item := range golden {
		samples, ok := logic.PtsAdjustSamples(item.diff, 48000, 1024)
		assert.Equal(t, item.samples, samples)
		assert.Equal(t, item.ok, ok)
	}
}

func TestComputeAvDelay(t *testing.T) {
	d, ok := logic.ComputeAvDelay(11000, 10000)
	assert.Equal(t, true, ok)
	assert.Equal(t, 1000, d)

	d, ok = logic.ComputeAvDelay(10000, 10120.5)
	assert.Equal(t, true, ok)
	assert.Equal(t, -120, d)

	// 音频PTS已经回绕
	d, ok = logic.ComputeAvDelay(500, mpegts.PtsMaxTimeMs-500)
	assert.Equal(t, true, ok)
	assert.Equal(t, true, d >= 999 && d <= 1000)

	_, ok = logic.ComputeAvDelay(0, 10000)
	assert.Equal(t, false, ok)
	_, ok = logic.ComputeAvDelay(10000, 0)
	assert.Equal(t, false, ok)
	_, ok = logic.ComputeAvDelay(10000, 10000+3600*1000)
	assert.Equal(t, false, ok)
}

func TestDelaySamples(t *testing.T) {
	assert.Equal(t, 4800, logic.DelaySamples(100, 48000))
	assert.Equal(t, -5292, logic.DelaySamples(-120, 44100))
	assert.Equal(t, 0, logic.DelaySamples(0, 44100))
}

func TestParseFilenameDelay(t *testing.T) {
	golden := []struct {
		in    string
		delay int
		name  string
		ok    bool
	}{
		{"dir/rec DELAY -120ms.aac", -120, "dir/rec DELAY 0ms.aac", true},
		{"rec PID 101 DELAY 35ms.ts", 35, "rec PID 101 DELAY 0ms.ts", true},
		{"a DELAY 5ms b DELAY 30ms.ts", 30, "a DELAY 5ms b DELAY 0ms.ts", true},
		{"recDELAY+40ms.ts", 40, "recDELAY 0ms.ts", true},
		{"DELAY 10ms/rec.ts", 0, "", false},
		{"rec DELAY ms.ts", 0, "", false},
		{"rec DELAY 10ms", 0, "", false},
		{"rec.ts", 0, "", false},
	}
	for _, item := range golden {
		delay, name, ok := logic.ParseFilenameDelay(item.in)
		assert.Equal(t, item.delay, delay, item.in)
		assert.Equal(t, item.name, name, item.in)
		assert.Equal(t, item.ok, ok, item.in)
	}
}
