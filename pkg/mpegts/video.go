// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/q191201771/tsaac/pkg/base"
)

// PtsMode 视频PTS的定位方式
type PtsMode int

const (
	PtsModeFirstPes          PtsMode = iota // 第一个带PTS的PES
	PtsModeFirstGop                         // 第一个GOP
	PtsModeFirstGopB                        // 第一个GOP后出现B帧迹象时
	PtsModeFirstGopBCalc                    // 同上，由I帧PTS和帧率向前推算
	PtsModeFirstI                           // 第一个I帧
	PtsModeFirstAlignment                   // 第一个data_alignment_indicator为1的PES
	PtsModeSyncwordAlignment                // 第一个以ADTS syncword开始的PES，用于音频PID
)

var ptsModeNames = [...]string{
	"first_pes",
	"first_gop",
	"first_gop_b",
	"first_gop_b_calc",
	"first_i",
	"first_alignment",
	"syncword_alignment",
}

func (m PtsMode) String() string {
	if m < 0 || int(m) >= len(ptsModeNames) {
		return fmt.Sprintf("PtsMode(%d)", int(m))
	}
	return ptsModeNames[m]
}

// ParsePtsMode 名称或数字
func ParsePtsMode(s string) (PtsMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range ptsModeNames {
		if s == name || s == fmt.Sprintf("%d", i) {
			return PtsMode(i), nil
		}
	}
	return PtsModeFirstPes, fmt.Errorf("invalid pts mode. mode=%s", s)
}

const (
	locatePtsMaxSkip = 1000

	videoPesBufferInitSize = 1024 * 1024
	videoPesBufferMaxSize  = 100 * 1024 * 1024
)

// MPEG-2 video start code
const (
	startCodePicture   = 0x00
	startCodeSliceMax  = 0xAF
	startCodeSequence  = 0xB3
	startCodeExtension = 0xB5
	startCodeGroup     = 0xB8

	extensionIdSequence       = 0x1
	extensionIdPictureCoding  = 0x8
	pictureStructureFrame     = 3
	pictureCodingTypeI        = 1
	pictureCodingTypeP        = 2
	pictureCodingTypeB        = 3
	frameRateCodeTableEntries = 9
)

var frameRateTable = [frameRateCodeTableEntries]float64{0, 24000.0 / 1001, 24, 25, 30000.0 / 1001, 30, 50, 60000.0 / 1001, 60}

// LocatePts 从流的当前位置读取`pid`的PES，返回第一个满足`mode`的PTS，单位毫秒
//
// 没有找到时返回0，以及包装了 base.ErrPtsNotFound 的错误，错误信息为最后一次跳过PES的原因。
// 不处理多次调用之间的PTS回绕
func (t *TsReader) LocatePts(pid uint16, mode PtsMode) (float64, error) {
	pb := NewPesBuffer(videoPesBufferInitSize, videoPesBufferInitSize, videoPesBufferMaxSize)

	var (
		result    float64
		frameRate float64
		frames    [4]int // 按picture_coding_type累计的field数，帧计为2
		gop       int
		skipped   int
		reason    = "no payload unit"
	)

	for skipped < locatePtsMaxSkip {
		n, err := t.ReadPayloadUnit(pid, pb, 0)
		if err != nil && !errors.Is(err, base.ErrEndOfStream) {
			if errors.Is(err, base.ErrBufferLimit) {
				reason = "payload unit too large"
				skipped++
				continue
			}
			reason = err.Error()
			break
		}
		if n == 0 {
			break
		}

		buf := pb.Bytes()
		h, err := ParsePesHeader(buf)
		if err != nil {
			reason = "pes header invalid"
			skipped++
			continue
		}
		if h.PacketLength != 0 && int(h.PacketLength)+6 != len(buf) {
			// 只记录，不影响查找
			Log.Debugf("pes packet length mismatch. declared=%d, actual=%d", int(h.PacketLength)+6, len(buf))
		}
		hasPts := h.PtsDtsFlags&0x2 != 0
		ptsMs := ExtractPtsMs(buf)

		if mode == PtsModeFirstAlignment && !h.DataAligned {
			reason = "pes not data aligned"
			skipped++
			continue
		}
		if mode == PtsModeFirstPes || mode == PtsModeFirstAlignment {
			if hasPts {
				return ptsMs, nil
			}
			reason = "pes has no pts"
			skipped++
			continue
		}

		data, err := SkipPesHeader(buf)
		if err != nil {
			reason = "invalid PES_header_data_length"
			skipped++
			continue
		}
		if len(data) < 4 {
			reason = "pes data too small"
			skipped++
			continue
		}

		if mode == PtsModeSyncwordAlignment {
			if data[0] != 0xFF || data[1]&0xF6 != 0xF0 {
				reason = "pes data not start with syncword"
				skipped++
				continue
			}
			if !hasPts {
				return 0, fmt.Errorf("%w. syncword aligned pes has no pts", base.ErrPtsNotFound)
			}
			return ptsMs, nil
		}

		if data[0] != 0 || data[1] != 0 || data[2] != 1 {
			reason = "es start code sync error"
			skipped++
			continue
		}

		sc := len(buf) - len(data)
		for sc >= 0 {
			code := buf[sc+3]

			if code == startCodeSequence && sc+7 < len(buf) {
				frameRateCode := buf[sc+7] & 0x0F
				if frameRateCode < frameRateCodeTableEntries {
					frameRate = frameRateTable[frameRateCode]
				}
			}
			if code == startCodeExtension && sc+9 < len(buf) && buf[sc+4]>>4 == extensionIdSequence {
				n := float64((buf[sc+9] & 0x60) >> 5)
				d := float64(buf[sc+9] & 0x1F)
				frameRate = frameRate * (n + 1) / (d + 1)
			}
			if code == startCodeGroup {
				if hasPts {
					result = ptsMs
				}
				if mode == PtsModeFirstGop {
					return ptsFound(result, pid, mode, "gop")
				}
				gop++
				frames = [4]int{}
			}

			if code == startCodePicture {
				field := 2
				pce := findNextStartCode(buf, sc+4)
				if pce < 0 || pce+6 >= len(buf) || buf[pce+3] != startCodeExtension || buf[pce+4]>>4 != extensionIdPictureCoding {
					reason = "picture coding extension not found"
					pce = sc
				} else if buf[pce+6]&0x03 != pictureStructureFrame {
					field = 1
				}

				pct := 0
				if sc+5 < len(buf) {
					pct = int(buf[sc+5]&0x38) >> 3
				}
				if pct >= pictureCodingTypeI && pct <= pictureCodingTypeB {
					frames[pct] += field
				}

				if pct == pictureCodingTypeI && hasPts {
					result = ptsMs
				}
				if mode == PtsModeFirstI && frames[pictureCodingTypeI] > 0 {
					return ptsFound(result, pid, mode, "i frame")
				}
				bEvidence := frames[pictureCodingTypeP] > 0 || frames[pictureCodingTypeI] > field
				if mode == PtsModeFirstGopBCalc && frames[pictureCodingTypeI] > 0 && bEvidence {
					if result == 0 {
						return ptsFound(result, pid, mode, "i frame")
					}
					return backCalc(result, frames[pictureCodingTypeB], frameRate), nil
				}
				if mode == PtsModeFirstGopB && gop > 0 && bEvidence {
					return ptsFound(result, pid, mode, "gop")
				}
				if mode == PtsModeFirstGopB && gop > 0 && frames[pictureCodingTypeP] == 0 && frames[pictureCodingTypeB] > 0 {
					if hasPts {
						return ptsMs, nil
					}
					if result == 0 {
						return ptsFound(result, pid, mode, "b frame and i frame")
					}
					Log.Warnf("b frame has no pts, calculate from i frame. pid=0x%X", pid)
					return backCalc(result, frames[pictureCodingTypeB], frameRate), nil
				}
				sc = pce
			}

			if code := buf[sc+3]; code > 0x00 && code <= startCodeSliceMax {
				// 跳过slice数据，同一个PES中还有其他picture时从下一个非slice的start code继续
				next := findNextNonSlice(buf, sc)
				if next < 0 {
					break
				}
				sc = next
				continue
			}
			sc = findNextStartCode(buf, sc+4)
		}
	}

	return 0, fmt.Errorf("%w. pid=0x%X, mode=%s, skipped=%d, reason=%s", base.ErrPtsNotFound, pid, mode, skipped, reason)
}

// ptsFound `pts`为0表示判定位置上没有PTS，不再继续查找
func ptsFound(pts float64, pid uint16, mode PtsMode, what string) (float64, error) {
	if pts == 0 {
		return 0, fmt.Errorf("%w. pid=0x%X, mode=%s, reason=%s has no pts", base.ErrPtsNotFound, pid, mode, what)
	}
	return pts, nil
}

// backCalc 从I帧的PTS减去其前面B帧的时长。`bFields`为B帧的field数
func backCalc(iPtsMs float64, bFields int, frameRate float64) float64 {
	if frameRate == 0 {
		Log.Warnf("frame rate is unknown, keep i frame pts. pts=%.2f", iPtsMs)
		return iPtsMs
	}
	return iPtsMs - float64(bFields)/2/frameRate*1000
}

// findNextStartCode 从`pos`开始查找00 00 01，剩余不足4字节时返回-1
func findNextStartCode(b []byte, pos int) int {
	if pos < 0 || len(b)-pos < 4 {
		return -1
	}
	for i := pos; i < len(b)-3; i++ {
		if b[i] == 0 && b[i+1] == 0 && b[i+2] == 1 {
			return i
		}
	}
	return -1
}

func findNextNonSlice(b []byte, pos int) int {
	for {
		i := findNextStartCode(b, pos)
		if i < 0 {
			return -1
		}
		if code := b[i+3]; code == 0x00 || code > startCodeSliceMax {
			return i
		}
		pos = i + 1
	}
}
