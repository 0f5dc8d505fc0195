// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac_test

import (
	"errors"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tsaac/pkg/aac"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/innertest"
)

func TestAdtsHeader(t *testing.T) {
	frame := innertest.AdtsFrame(innertest.SfiIndex48000, 2, 100, 0x01)
	assert.Equal(t, true, aac.IsAdtsSyncword(frame))
	assert.Equal(t, len(frame), aac.AdtsFrameLength(frame))
	assert.Equal(t, innertest.SfiIndex48000, aac.AdtsSamplingFrequencyIndex(frame))
	assert.Equal(t, uint8(2), aac.AdtsChannelConfiguration(frame))

	ctx, err := aac.NewAdtsHeaderContext(frame)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(aac.AotAacLc), ctx.AscCtx.AudioObjectType)
	assert.Equal(t, uint8(1), ctx.ProtectionAbsent)
	assert.Equal(t, uint16(len(frame)), ctx.AdtsLength)

	asc, err := aac.MakeAscWithAdtsHeader(frame)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{0x11, 0x90}, asc)

	ascCtx, err := aac.NewAscContext(asc)
	assert.Equal(t, nil, err)
	assert.Equal(t, frame[:aac.AdtsHeaderLength], ascCtx.PackAdtsHeader(100))
	_, err = aac.NewAscContext([]byte{0x11})
	assert.IsNotNil(t, err)

	// MPEG-2 ID也是syncword
	assert.Equal(t, true, aac.IsAdtsSyncword([]byte{0xFF, 0xF9}))
	assert.Equal(t, false, aac.IsAdtsSyncword([]byte{0xFF, 0xF2}))
	assert.Equal(t, false, aac.IsAdtsSyncword([]byte{0xFF}))

	_, err = aac.NewAdtsHeaderContext([]byte{0xFF, 0xE1, 0, 0, 0, 0, 0})
	assert.Equal(t, base.ErrAdts, err)
}

func TestSamplingFrequency(t *testing.T) {
	assert.Equal(t, 44100, aac.SamplingFrequencyFromIndex(4))
	assert.Equal(t, 0, aac.SamplingFrequencyFromIndex(13))
	assert.Equal(t, uint8(3), aac.SamplingFrequencyIndex(48000))
	assert.Equal(t, uint8(15), aac.SamplingFrequencyIndex(1234))

	ascCtx := aac.AscContext{SamplingFrequencyIndex: 14}
	_, err := ascCtx.GetSamplingFrequency()
	assert.Equal(t, base.ErrSamplingFrequencyIndex, err)
}

func TestScanAdts(t *testing.T) {
	frames := innertest.AdtsFrames(10, 300)
	b, err := aac.NewFileBuffer(newReader(innertest.Join(frames)))
	assert.Equal(t, nil, err)

	info := aac.ScanAdts(b)
	assert.Equal(t, 10, info.Frames)
	assert.Equal(t, 3094, info.TotalFrameLength)
	assert.Equal(t, 48000, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, uint8(aac.AotAacLc), info.ObjectType)
	assert.Equal(t, 116, info.Bitrate)
	assert.Equal(t, true, info.Length > 0.2133 && info.Length < 0.2134)
	assert.Equal(t, false, info.Broken)

	// 最后一帧不完整
	data := innertest.Join(frames)
	b, err = aac.NewFileBuffer(newReader(data[:len(data)-10]))
	assert.Equal(t, nil, err)
	info = aac.ScanAdts(b)
	assert.Equal(t, 9, info.Frames)
	assert.Equal(t, true, info.Broken)
}

func TestHeaderDecoder(t *testing.T) {
	stereo := innertest.AdtsFrame(innertest.SfiIndex48000, 2, 200, 0x01)
	mono := innertest.AdtsFrame(innertest.SfiIndex48000, 1, 200, 0x01)

	d := aac.NewHeaderDecoder()
	consumed, sampleRate, channels, err := d.Init(stereo)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, consumed)
	assert.Equal(t, 48000, sampleRate)
	assert.Equal(t, 2, channels)

	pcm, info := d.Decode(stereo)
	assert.Equal(t, nil, pcm)
	assert.Equal(t, aac.ErrorCodeOk, info.Error)
	assert.Equal(t, len(stereo), info.BytesConsumed)
	assert.Equal(t, 2048, info.Samples)
	assert.Equal(t, 1024, info.SamplesPerFrame())
	assert.Equal(t, aac.HeaderTypeAdts, info.HeaderType)

	_, info = d.Decode(mono)
	assert.Equal(t, aac.ErrorCodeChannelConfigurationChanged, info.Error)
	_, info = d.Decode(stereo[:100])
	assert.Equal(t, aac.ErrorCodeBufferTooSmall, info.Error)
	_, info = d.Decode([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.Equal(t, aac.ErrorCodeAdtsSyncword, info.Error)

	_, _, _, err = d.Init([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.Equal(t, true, errors.Is(err, base.ErrDecoderInit))
	assert.Equal(t, nil, d.Close())

	assert.Equal(t, 512, aac.SamplesPerFrame(aac.AotAacLd, false))
	assert.Equal(t, 2048, aac.SamplesPerFrame(aac.AotAacLc, true))
}
