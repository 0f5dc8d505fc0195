// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/q191201771/tsaac/pkg/mpegts"
)

const (
	// 码率、采样率未知时，估算跳过的帧数使用的值
	defaultBitrateKbps = 192
	defaultSampleRate  = 48000

	defaultSamplesPerFrame = 1024

	// 按PTS插入空白时，差值的上限和允许的误差，单位毫秒
	ptsAdjustMaxMs       = 60000
	ptsAdjustToleranceMs = 1
)

// EstimateBrokenFrames 按码率把跳过的字节数换算为帧数，向上取整
//
// 码率或采样率为0时使用默认值
func EstimateBrokenFrames(skipped int, bitrateKbps int, sampleRate int, spf int) int {
	if skipped <= 0 {
		return 0
	}
	if bitrateKbps <= 0 {
		bitrateKbps = defaultBitrateKbps
	}
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if spf <= 0 {
		spf = defaultSamplesPerFrame
	}
	bytesPerFrame := float64(bitrateKbps) * 1000 / 8 * float64(spf) / float64(sampleRate)
	return int(math.Ceil(float64(skipped) / bytesPerFrame))
}

// PtsAdjustSamples 已输出音频的结束时间比下一个PTS早`ptsDiffMs`毫秒，计算需要插入（正数）或删除（负数）的每声道采样点数
//
// 差值不小于60秒，或者需要删除的采样点超过一帧时，ok返回false，不做调整。
// 差值在容许误差内时返回0
func PtsAdjustSamples(ptsDiffMs float64, sampleRate int, spf int) (samples int, ok bool) {
	if ptsDiffMs >= ptsAdjustMaxMs {
		return 0, false
	}
	samples = int(math.Round(float64(sampleRate) * ptsDiffMs / 1000))
	if samples > 0 {
		return samples, true
	}
	if ptsDiffMs < -ptsAdjustToleranceMs {
		if -samples > spf {
			return 0, false
		}
		return samples, true
	}
	return 0, true
}

// ComputeAvDelay 音频相对视频的延迟，单位毫秒，处理PTS回绕
//
// 任何一个PTS未知，或者差值超出合理范围时，ok返回false
func ComputeAvDelay(audioPtsMs float64, videoPtsMs float64) (delayMs int, ok bool) {
	if audioPtsMs == 0 || videoPtsMs == 0 {
		return 0, false
	}
	diff, ok := mpegts.PtsDiffMs(audioPtsMs, videoPtsMs)
	if !ok {
		return 0, false
	}
	return int(diff), true
}

// DelaySamples 延迟换算为每声道采样点数
func DelaySamples(delayMs int, sampleRate int) int {
	return int(int64(delayMs) * int64(sampleRate) / 1000)
}

var filenameDelayRegexp = regexp.MustCompile(`^DELAY\s*([+-]?\d+)ms(\S+)`)

const filenameDelayKeyword = "DELAY"

// ParseFilenameDelay 从文件名中最后一个"DELAY <n>ms"读取延迟
//
// e.g. "dir/rec DELAY -120ms.aac" -> -120, "dir/rec DELAY 0ms.aac"
//
// @return name: 把延迟替换为"DELAY 0ms"之后的文件名
func ParseFilenameDelay(filename string) (delayMs int, name string, ok bool) {
	dir, file := filepath.Split(filename)
	i := strings.LastIndex(file, filenameDelayKeyword)
	if i < 0 {
		return 0, "", false
	}
	m := filenameDelayRegexp.FindStringSubmatch(file[i:])
	if m == nil {
		return 0, "", false
	}
	delayMs, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return delayMs, dir + file[:i] + filenameDelayKeyword + " 0ms" + m[2], true
}
