// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic_test

import (
	"errors"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/innertest"
	"github.com/q191201771/tsaac/pkg/logic"
	"github.com/q191201771/tsaac/pkg/mpegts"
)

func TestLoadJsonConf(t *testing.T) {
	conf, err := logic.LoadJsonConf([]byte(`{"inputs": ["a.ts"], "log": {"level": 3}}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"a.ts"}, conf.Inputs)
	assert.Equal(t, logic.ModePcm, conf.Mode)
	assert.Equal(t, logic.DefaultFlags, conf.Flags())
	assert.Equal(t, "first_gop", conf.PtsMode)
	assert.Equal(t, mpegts.PsiPacketLimit, conf.TsPacketLimit)
	assert.Equal(t, 1, conf.Concurrency)
	assert.Equal(t, false, conf.DelaySet)
	assert.Equal(t, nazalog.LevelWarn, conf.LogConfig.Level)
	assert.Equal(t, "./logs/tsaac.log", conf.LogConfig.Filename)
	assert.Equal(t, true, conf.LogConfig.IsToStdout)

	// delay_ms为0也表示指定了延迟
	conf, err = logic.LoadJsonConf([]byte(`{"mode": "adts", "ctrl_flags": 0, "delay_ms": 0, "concurrency": 0}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, logic.ModeAdts, conf.Mode)
	assert.Equal(t, logic.Flags(0), conf.Flags())
	assert.Equal(t, true, conf.DelaySet)
	assert.Equal(t, 1, conf.Concurrency)
}

func TestLoadJsonConf_Invalid(t *testing.T) {
	golden := []string{
		`{"mode": "mp3"}`,
		`{"pts_mode": "last_gop"}`,
		`{"first_frame": 10, "last_frame": 5}`,
		`{"inputs": ["a.ts", "b.ts"], "out_file": "c.wav"}`,
		`{"mode": `,
	}
	for _, item := range golden {
		_, err := logic.LoadJsonConf([]byte(item))
		assert.Equal(t, true, errors.Is(err, base.ErrConfig), item)
	}
}

func TestLoadYamlConf(t *testing.T) {
	raw := `
inputs:
  - a.ts
  - b.aac
mode: info
delay_ms: -40
concurrency: 4
`
	filename := innertest.WriteTempFile(t, "tsaac.yaml", []byte(raw))
	conf, err := logic.LoadConfFromFile(filename)
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"a.ts", "b.aac"}, conf.Inputs)
	assert.Equal(t, logic.ModeInfo, conf.Mode)
	assert.Equal(t, -40, conf.DelayMs)
	assert.Equal(t, true, conf.DelaySet)
	assert.Equal(t, 4, conf.Concurrency)
	assert.Equal(t, logic.DefaultFlags, conf.Flags())
	assert.Equal(t, "first_gop", conf.PtsMode)

	_, err = logic.LoadYamlConf([]byte("mode: [pcm"))
	assert.Equal(t, true, errors.Is(err, base.ErrConfig))
}

func TestLoadConfFromFile_Json(t *testing.T) {
	filename := innertest.WriteTempFile(t, "tsaac.conf.json", []byte(`{"out_dir": "out", "audio_pid": 257}`))
	conf, err := logic.LoadConfFromFile(filename)
	assert.Equal(t, nil, err)
	assert.Equal(t, "out", conf.OutDir)
	assert.Equal(t, uint16(0x101), conf.AudioPid)

	_, err = logic.LoadConfFromFile(filename + ".notexist")
	assert.IsNotNil(t, err)
}
