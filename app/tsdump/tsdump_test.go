// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"bytes"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tsaac/pkg/innertest"
	"github.com/q191201771/tsaac/pkg/mpegts"
)

func TestScan(t *testing.T) {
	ts := innertest.MakeAudioTs(innertest.AdtsFrames(12, 100), innertest.AudioTsOption{StartPts: 90000, PtsStep: innertest.PtsStep48000})
	assert.Equal(t, 12*mpegts.PacketSize188, len(ts))

	// 第6、第9个packet之前插入不是sync byte的数据
	var b []byte
	for i := 0; i < 12; i++ {
		if i == 6 || i == 9 {
			b = append(b, make([]byte, 10)...)
		}
		b = append(b, ts[i*mpegts.PacketSize188:(i+1)*mpegts.PacketSize188]...)
	}

	tr := mpegts.NewTsReader(bytes.NewReader(b))
	assert.Equal(t, nil, tr.Open())
	stats, resyncs := scan(tr)
	assert.Equal(t, 2, resyncs)
	assert.Equal(t, 1, len(stats))
	s := stats[innertest.AudioPid]
	assert.Equal(t, 12, s.packets)
	assert.Equal(t, 0, s.scrambled)
	assert.Equal(t, 12, s.pes)
	assert.Equal(t, float64(1000), s.firstPts)
}
