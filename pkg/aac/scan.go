// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac

import "fmt"

// AdtsInfo 读取整个ADTS流得到的统计信息
type AdtsInfo struct {
	Frames           int
	TotalFrameLength int
	SampleRate       int
	Channels         int
	ObjectType       uint8
	Bitrate          int     // kbps
	Length           float64 // 秒
	Broken           bool    // 最后一帧不完整
}

func (info AdtsInfo) String() string {
	return fmt.Sprintf("ADTS, %.3f sec (%d frames), %d kbps, %d Hz, %d ch", info.Length, info.Frames, info.Bitrate, info.SampleRate, info.Channels)
}

// ScanAdts 从`b`的当前位置按ADTS帧长度读到结束，统计帧数、码率、时长
//
// 遇到不是syncword的位置即停止。调用结束后`b`的数据已被消费，需要调用方 Rewind
func ScanAdts(b *Buffer) AdtsInfo {
	var info AdtsInfo
	for {
		_ = b.Fill()
		data := b.Bytes()
		if len(data) <= AdtsHeaderLength || !IsAdtsSyncword(data) {
			break
		}
		if info.Frames == 0 {
			info.SampleRate = SamplingFrequencyFromIndex(AdtsSamplingFrequencyIndex(data))
			info.Channels = int(AdtsChannelConfiguration(data))
			info.ObjectType = (data[2]>>6)&0x03 + 1
		}

		frameLength := AdtsFrameLength(data)
		info.TotalFrameLength += frameLength
		if frameLength > len(data) {
			Log.Warnf("the last frame may be broken. frame=%d, length=%d, remain=%d", info.Frames, frameLength, len(data))
			info.Broken = true
			break
		}
		if frameLength < AdtsHeaderLength {
			Log.Warnf("invalid adts frame length. frame=%d, length=%d", info.Frames, frameLength)
			break
		}
		b.Advance(frameLength)
		info.Frames++
	}

	framesPerSec := float64(info.SampleRate) / 1024
	var bytesPerFrame float64
	if info.Frames != 0 {
		bytesPerFrame = float64(info.TotalFrameLength) / float64(info.Frames*1000)
	}
	info.Bitrate = int(8*bytesPerFrame*framesPerSec + 0.5)
	if framesPerSec != 0 {
		info.Length = float64(info.Frames) / framesPerSec
	} else {
		info.Length = 1
	}
	return info
}
