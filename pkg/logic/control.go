// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"fmt"

	"github.com/q191201771/tsaac/pkg/aac"
)

// Flags 帧级错误的处理方式，每一位独立控制一种情况
//
// Init  重新初始化解码器
// Split 切换到新的输出分段，Before在出错帧之前切，After在出错帧之后切
// Out   出错帧在输出中保留（PCM模式下写入等长的空白，ADTS模式下写入原始字节）
type Flags uint32

const (
	FlagChErrorInit Flags = 1 << iota // 解码器报告声道配置变化（错误码21）
	FlagChErrorSplit
	FlagChChangeInit // 解码后的声道数变化
	FlagChChangeSplit
	FlagHdChangeInit // ADTS头中的声道配置变化
	FlagHdChangeSplit
	FlagSrChangeInit // 采样率变化
	FlagSrChangeSplit
	FlagErrorInit // ADTS头可信但解码失败
	FlagErrorOut
	FlagErrorSplitBefore
	FlagErrorSplitAfter
	FlagBrokenInit // ADTS头损坏，需要重新查找syncword
	FlagBrokenOut
	FlagBrokenSplitBefore
	FlagBrokenSplitAfter
	FlagForceRead // 解码得到的采样点为0时，仍然使用解码器输出的数据
	FlagAdjustPts // 出错之后，按下一个PTS插入空白
)

// DefaultFlags 0x2F30D
const DefaultFlags = FlagChErrorInit | FlagChChangeInit | FlagChChangeSplit |
	FlagErrorInit | FlagErrorOut | FlagBrokenInit | FlagBrokenOut | FlagBrokenSplitBefore | FlagBrokenSplitAfter |
	FlagAdjustPts

func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

func (f Flags) String() string {
	return fmt.Sprintf("0x%X", uint32(f))
}

// ---------------------------------------------------------------------------------------------------------------------

// State 当前帧的处理状态
type State int

const (
	StateOk    State = iota // 正常前进
	StateSkip               // 丢弃当前帧，ADTS头中的帧长度可信
	StateSeek               // ADTS头不可信，需要重新查找syncword
	StateRetry              // 重新初始化解码器后再次解码当前帧，不前进
)

func (s State) String() string {
	switch s {
	case StateOk:
		return "ok"
	case StateSkip:
		return "skip"
	case StateSeek:
		return "seek"
	case StateRetry:
		return "retry"
	}
	return "unknown"
}

// Trigger 导致状态变化的原因
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerChannelError
	TriggerChannelChange
	TriggerHeaderChannelChange
	TriggerSampleRateChange
	TriggerErrorFrame
	TriggerBrokenFrame

	triggerNum
)

func (t Trigger) String() string {
	switch t {
	case TriggerNone:
		return "none"
	case TriggerChannelError:
		return "channel error"
	case TriggerChannelChange:
		return "channel change"
	case TriggerHeaderChannelChange:
		return "header channel change"
	case TriggerSampleRateChange:
		return "sample rate change"
	case TriggerErrorFrame:
		return "error frame"
	case TriggerBrokenFrame:
		return "broken frame"
	}
	return "unknown"
}

// Policy 一种情况的处理方式
type Policy struct {
	Reinit      bool
	SplitBefore bool
	SplitAfter  bool
	Output      bool
	AdjustPts   bool
}

type PolicyTable [triggerNum]Policy

// NewPolicyTable
//
// @param adtsOut: ADTS直通输出时，解码后的声道数变化不强制切分段
func NewPolicyTable(flags Flags, adtsOut bool) PolicyTable {
	adjust := flags.Has(FlagAdjustPts)

	var t PolicyTable
	t[TriggerChannelError] = Policy{
		Reinit:      flags.Has(FlagChErrorInit),
		SplitBefore: flags.Has(FlagChErrorSplit),
		AdjustPts:   adjust,
	}
	t[TriggerChannelChange] = Policy{
		Reinit: flags.Has(FlagChChangeInit),
		// PCM输出的声道数在文件头中，不能在一个文件中改变
		SplitBefore: !adtsOut || flags.Has(FlagChChangeSplit),
		AdjustPts:   adjust,
	}
	t[TriggerHeaderChannelChange] = Policy{
		Reinit:      flags.Has(FlagHdChangeInit),
		SplitBefore: flags.Has(FlagHdChangeSplit),
		AdjustPts:   adjust,
	}
	t[TriggerSampleRateChange] = Policy{
		Reinit:      flags.Has(FlagSrChangeInit),
		SplitBefore: flags.Has(FlagSrChangeSplit),
		AdjustPts:   adjust,
	}
	t[TriggerErrorFrame] = Policy{
		Reinit:      flags.Has(FlagErrorInit),
		SplitBefore: flags.Has(FlagErrorSplitBefore),
		SplitAfter:  flags.Has(FlagErrorSplitAfter),
		Output:      flags.Has(FlagErrorOut),
		AdjustPts:   adjust,
	}
	t[TriggerBrokenFrame] = Policy{
		Reinit:      flags.Has(FlagBrokenInit),
		SplitBefore: flags.Has(FlagBrokenSplitBefore),
		SplitAfter:  flags.Has(FlagBrokenSplitAfter),
		Output:      flags.Has(FlagBrokenOut),
		AdjustPts:   adjust,
	}
	return t
}

// ---------------------------------------------------------------------------------------------------------------------

// FrameSignals 一帧解码之后，决定处理状态需要的输入
type FrameSignals struct {
	DecoderError         int  // 0表示成功
	ChannelChanged       bool // 与上一个成功解码的帧相比
	SampleRateChanged    bool
	HeaderChannelChanged bool // 与上一帧的ADTS头相比

	Adts              bool // 输入是ADTS
	HeaderValid       bool // 当前位置是syncword，并且帧长度可信
	HeaderFrameLength int
	BytesConsumed     int // 解码器消费的字节数

	FirstSegment bool // 还没有打开过输出
}

// Decision 一帧的处理结果
type Decision struct {
	State   State
	Trigger Trigger

	Reinit     bool // 下一次解码前重新初始化解码器
	Split      bool // 切换到新的输出分段
	ClearSplit bool // 取消之前请求的切换
	AdjustPts  bool

	// FrameLength 需要消费的字节数。StateSeek时为0表示需要查找syncword
	FrameLength int

	// Fatal 无法跳过当前帧，结束解码
	Fatal bool
}

// Classify 根据上一帧的处理状态和当前帧的解码结果，决定当前帧的处理方式
//
// 只计算，没有副作用。StateRetry最多连续出现一次
func Classify(prev State, in FrameSignals, table PolicyTable) Decision {
	var d Decision

	if in.DecoderError == 0 {
		d.Trigger = TriggerNone
		switch {
		case in.SampleRateChanged:
			d.Trigger = TriggerSampleRateChange
		case in.ChannelChanged:
			d.Trigger = TriggerChannelChange
		case in.HeaderChannelChanged:
			d.Trigger = TriggerHeaderChannelChange
		}
		if d.Trigger != TriggerNone {
			p := table[d.Trigger]
			d.Split = !in.FirstSegment && p.SplitBefore
			d.AdjustPts = p.AdjustPts
			if prev != StateRetry && p.Reinit {
				d.State = StateRetry
				d.Reinit = true
				return d
			}
		}
		d.State = StateOk
		d.FrameLength = in.BytesConsumed
		return d
	}

	var chSplit bool
	if in.DecoderError == aac.ErrorCodeChannelConfigurationChanged && prev != StateRetry {
		p := table[TriggerChannelError]
		chSplit = !in.FirstSegment && p.SplitBefore
		if p.Reinit {
			d.Trigger = TriggerChannelError
			d.State = StateRetry
			d.Reinit = true
			d.Split = chSplit
			d.AdjustPts = p.AdjustPts
			return d
		}
		// 不需要重新初始化时，按普通的解码错误处理
	}

	switch {
	case in.Adts && in.HeaderValid:
		p := table[TriggerErrorFrame]
		d.Trigger = TriggerErrorFrame
		if prev == StateSkip || prev == StateSeek {
			d.ClearSplit = true
		} else if !in.FirstSegment && p.SplitBefore {
			d.Split = true
		}
		d.State = StateSkip
		if prev == StateSeek {
			d.State = StateSeek
		}
		d.Reinit = p.Reinit
		d.AdjustPts = p.AdjustPts
		d.FrameLength = in.HeaderFrameLength
	case in.Adts:
		p := table[TriggerBrokenFrame]
		d.Trigger = TriggerBrokenFrame
		if prev == StateSeek || (prev == StateSkip && table[TriggerErrorFrame].SplitBefore) {
			d.ClearSplit = true
		} else if !in.FirstSegment && p.SplitBefore {
			d.Split = true
		}
		d.State = StateSeek
		d.Reinit = p.Reinit
		d.AdjustPts = p.AdjustPts
		d.FrameLength = 0
	default:
		d.Fatal = true
	}
	if chSplit && !d.ClearSplit {
		d.Split = true
	}
	return d
}
