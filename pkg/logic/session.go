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
	"io"

	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/tsaac/pkg/aac"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/mpegts"
)

// Decoder AAC解码器
//
// aac.HeaderDecoder 满足该接口
type Decoder interface {
	// Init 使用`b`开始处的数据初始化，返回需要跳过的字节数
	Init(b []byte) (consumed int, sampleRate int, channels int, err error)

	// Decode 解码`b`开始处的一帧。pcm为16位整型交错存放，可以为nil
	Decode(b []byte) (pcm []byte, info aac.FrameInfo)

	Close() error
}

type DecoderFactory func() Decoder

// Sink PCM输出
type Sink interface {
	// Write `samples`为所有声道的采样点总数，`pcm`为nil时写入空白
	Write(pcm []byte, samples int) error

	WriteBlank(samples int) error
	Close() error
}

type SinkFactory func(filename string, sampleRate int, channels int) (Sink, error)

type SessionOption struct {
	Flags Flags

	// AdtsOut 为true时直接输出ADTS帧，否则输出PCM
	AdtsOut bool

	// OutFilename 输出文件名，分段时插入序号
	OutFilename string

	// BrokenFilename PCM输出时，重新同步跳过的字节写入该文件，为空时不保存
	BrokenFilename string

	// DelayMs 正数时在开头插入空白，负数时删除开头的数据
	DelayMs int

	// FirstFrame LastFrame 输出的帧范围，从1开始，包含LastFrame。0表示不限制
	FirstFrame int
	LastFrame  int

	// DefaultSampleRate 采样率未知时使用，0表示48000
	DefaultSampleRate int

	// Bitrate 单位kbps，用于估算损坏的帧数，0表示未知
	Bitrate int
}

var defaultSessionOption = SessionOption{
	Flags: DefaultFlags,
}

type ModSessionOption func(option *SessionOption)

// Stats 一次解码的统计
type Stats struct {
	Frames         int // 处理过的帧数，包含估算的损坏帧
	OkFrames       int
	ErrorFrames    int
	BrokenFrames   int // 按跳过的字节数估算
	Retries        int
	SkippedBytes   int
	BlankSamples   int // 每声道
	RemovedSamples int // 每声道
	Segments       int
}

func (s Stats) String() string {
	return fmt.Sprintf("frames=%d, ok=%d, error=%d, broken=%d, retry=%d, skipped=%d, blank=%d, removed=%d, segments=%d",
		s.Frames, s.OkFrames, s.ErrorFrames, s.BrokenFrames, s.Retries, s.SkippedBytes, s.BlankSamples, s.RemovedSamples, s.Segments)
}

// 重新初始化解码器失败时，当前帧使用的错误码
const errorCodeReinit = -1

type adtsHeader struct {
	valid  bool
	ch     uint8
	sfi    uint8
	length int
}

// Session 按帧解码一个音频流，根据每帧的解码结果决定前进、跳过、重新同步或者重新初始化解码器，
// 并在出错的位置插入空白、切换输出分段，保持输出的时长与输入一致
type Session struct {
	uniqueKey  string
	option     SessionOption
	table      PolicyTable
	buf        *aac.Buffer
	newDecoder DecoderFactory
	newSink    SinkFactory

	decoder Decoder
	sink    Sink
	adtsOut *AdtsWriter
	broken  *AdtsWriter

	adts       bool // 输入是ADTS
	firstFrame int  // 第一个输出帧的序号，从0开始

	state      State
	reinit     bool
	switchFile bool
	adjustPts  bool
	firstTime  bool // 当前分段还没有打开
	segment    int

	segChannels    int // 当前分段的格式
	segSampleRate  int
	lastChannels   int // 上一个解码成功的帧
	lastSampleRate int
	spf            int
	prevCh         uint8 // 上一个可信的ADTS头
	prevSfi        uint8

	delaySamples int // 待插入（正数）或者待删除（负数）的每声道采样点数
	skipFrames   int // 待插入的空白帧数
	basePts      float64
	lastPts      float64
	ptsDiff      float64
	written      int // 当前分段已写入的每声道采样点数

	percent int
	stat    Stats
}

func NewSession(buf *aac.Buffer, newDecoder DecoderFactory, newSink SinkFactory, modOptions ...ModSessionOption) *Session {
	option := defaultSessionOption
	for _, fn := range modOptions {
		fn(&option)
	}
	firstFrame := option.FirstFrame - 1
	if firstFrame < 0 {
		firstFrame = 0
	}
	uk := base.GenUkAacSession()
	Log.Infof("[%s] lifecycle new aac session. flags=%s, adts_out=%t, out=%s", uk, option.Flags, option.AdtsOut, option.OutFilename)
	return &Session{
		uniqueKey:  uk,
		option:     option,
		table:      NewPolicyTable(option.Flags, option.AdtsOut),
		buf:        buf,
		newDecoder: newDecoder,
		newSink:    newSink,
		firstFrame: firstFrame,
		firstTime:  true,
		spf:        defaultSamplesPerFrame,
		percent:    -1,
	}
}

func (s *Session) UniqueKey() string {
	return s.uniqueKey
}

// Run 解码到数据结束，或者到达 SessionOption.LastFrame
//
// 写入失败、无法跳过出错帧时结束。返回的统计在出错时也有效
func (s *Session) Run() (Stats, error) {
	err := s.init()
	if err == nil {
		err = s.loop()
	}
	if cerr := s.dispose(); err == nil {
		err = cerr
	}
	s.stat.Frames = s.buf.Frames()
	Log.Infof("[%s] decode done. %s", s.uniqueKey, s.stat.String())
	return s.stat, err
}

func (s *Session) init() error {
	s.decoder = s.newDecoder()
	consumed, sampleRate, channels, err := s.decoder.Init(s.buf.Bytes())
	if err != nil {
		Log.Errorf("[%s] init decoder failed. err=%+v", s.uniqueKey, err)
		return err
	}
	s.advance(consumed)

	head := s.buf.Bytes()
	s.adts = s.buf.IsTs() || aac.IsAdtsSyncword(head)
	if s.adts && len(head) >= aac.AdtsHeaderLength {
		s.prevCh = aac.AdtsChannelConfiguration(head)
		s.prevSfi = aac.AdtsSamplingFrequencyIndex(head)
	}
	s.delaySamples = DelaySamples(s.option.DelayMs, sampleRate)

	if s.option.AdtsOut {
		s.adtsOut = NewAdtsWriter(s.uniqueKey, s.option.OutFilename)
		if err = s.adtsOut.Open(); err != nil {
			return err
		}
		s.stat.Segments++
	} else if s.option.BrokenFilename != "" && s.table[TriggerBrokenFrame].Output {
		s.broken = NewAdtsWriter(s.uniqueKey, s.option.BrokenFilename)
		if err = s.broken.Open(); err != nil {
			return err
		}
	}

	Log.Infof("[%s] decode start. sample_rate=%d, channels=%d, delay=%dms, range=%d-%d",
		s.uniqueKey, sampleRate, channels, s.option.DelayMs, s.firstFrame+1, s.option.LastFrame)
	return nil
}

func (s *Session) loop() error {
	for s.buf.Len() > 0 {
		if s.option.LastFrame > 0 && s.option.LastFrame <= s.buf.Frames() {
			break
		}
		stop, err := s.decodeFrame()
		if err != nil || stop {
			return err
		}
	}
	return nil
}

// decodeFrame 处理窗口头部的一帧
func (s *Session) decodeFrame() (stop bool, err error) {
	frames := s.buf.Frames()

	initFailed := false
	if s.reinit {
		Log.Infof("[%s] frame %d: reinit decoder.", s.uniqueKey, frames)
		if err := s.reinitDecoder(); err != nil {
			Log.Warnf("[%s] frame %d: reinit decoder failed. err=%+v", s.uniqueKey, frames, err)
			initFailed = true
		} else {
			s.reinit = false
		}
	}

	data := s.buf.Bytes()
	hdr := s.readHeader(data)

	var (
		pcm  []byte
		info aac.FrameInfo
	)
	if initFailed {
		info.Error = errorCodeReinit
	} else {
		if frames+1 >= s.firstFrame || !s.adts {
			pcm, info = s.decoder.Decode(data)
			if info.Error != 0 {
				Log.Warnf("[%s] frame %d: decode error. code=%d, msg=%s", s.uniqueKey, frames, info.Error, aac.ErrorMessage(info.Error))
			}
		}
		if frames < s.firstFrame {
			return s.skipLeadingFrame(hdr, info)
		}
	}

	sig := FrameSignals{
		DecoderError:      info.Error,
		Adts:              s.adts,
		HeaderValid:       hdr.valid,
		HeaderFrameLength: hdr.length,
		BytesConsumed:     info.BytesConsumed,
		FirstSegment:      s.firstTime,
	}
	if info.Error == 0 {
		sig.ChannelChanged = s.lastChannels != 0 && info.Channels != s.lastChannels
		sig.SampleRateChanged = (s.lastSampleRate != 0 && info.SampleRate != s.lastSampleRate) || (s.adts && hdr.sfi != s.prevSfi)
		sig.HeaderChannelChanged = s.adts && hdr.ch != s.prevCh
		if s.state != StateRetry {
			s.logChange(frames, info, hdr)
		}
	}

	d := Classify(s.state, sig, s.table)
	if d.Fatal {
		Log.Errorf("[%s] frame %d: can not skip error frame, stop. code=%d", s.uniqueKey, frames, info.Error)
		return true, nil
	}
	if d.Trigger != TriggerNone {
		Log.Warnf("[%s] frame %d: %s. state=%s->%s, reinit=%t, split=%t", s.uniqueKey, frames, d.Trigger, s.state, d.State, d.Reinit, d.Split)
	}
	if d.Reinit {
		s.reinit = true
	}
	if d.Split {
		s.switchFile = true
	}
	if d.ClearSplit {
		s.switchFile = false
	}
	if d.AdjustPts {
		s.adjustPts = true
	}
	s.state = d.State
	if s.state == StateRetry {
		s.stat.Retries++
		return false, nil
	}
	if s.state == StateOk {
		s.lastChannels = info.Channels
		s.lastSampleRate = info.SampleRate
		s.checkSamples(frames, info)
	}

	// 切换分段之前，补齐出错帧对应的空白
	if s.switchFile && !s.firstTime && !s.option.AdtsOut && s.state == StateOk {
		if err = s.fillGap(frames); err != nil {
			return true, err
		}
	}

	if s.switchFile {
		if err = s.nextSegment(frames); err != nil {
			return true, err
		}
	}

	if s.firstTime && s.shouldOpen() {
		if err = s.openSegment(frames, info); err != nil {
			return true, err
		}
	}

	if s.state == StateOk || (d.FrameLength > 0 && s.option.AdtsOut && s.table[TriggerErrorFrame].Output) {
		if s.option.AdtsOut {
			n := d.FrameLength
			if n > len(data) {
				n = len(data)
			}
			if err = s.adtsOut.WriteFrame(data[:n]); err != nil {
				return true, fmt.Errorf("%w. err=%+v", base.ErrSinkWrite, err)
			}
		} else if s.sink != nil {
			if err = s.writePcm(frames, pcm, info); err != nil {
				return true, err
			}
		}
	}

	s.advanceFrame(frames, d.FrameLength)

	if !s.firstTime &&
		((s.state == StateSkip && s.table[TriggerErrorFrame].SplitAfter) ||
			(s.state == StateSeek && s.table[TriggerBrokenFrame].SplitAfter)) {
		s.switchFile = true
	}
	if hdr.valid {
		s.prevCh, s.prevSfi = hdr.ch, hdr.sfi
	}
	s.logProgress()
	return false, nil
}

// skipLeadingFrame 第一个输出帧之前的帧，只前进不输出
func (s *Session) skipLeadingFrame(hdr adtsHeader, info aac.FrameInfo) (stop bool, err error) {
	frameLength := 0
	if s.adts {
		if hdr.valid {
			frameLength = hdr.length
		} else {
			s.findNextSyncword(nil)
		}
	} else {
		if info.Error != 0 {
			return true, nil
		}
		frameLength = info.BytesConsumed
	}
	s.advance(frameLength)
	s.buf.IncFrames()
	if hdr.valid {
		s.prevCh, s.prevSfi = hdr.ch, hdr.sfi
	}
	return false, nil
}

func (s *Session) advanceFrame(frames int, frameLength int) {
	switch s.state {
	case StateOk:
		s.advance(frameLength)
		s.buf.IncFrames()
		s.stat.OkFrames++
	case StateSeek, StateSkip:
		if s.state == StateSeek && frameLength == 0 {
			s.resync(frames)
			return
		}
		if frameLength <= s.buf.Len() {
			s.advance(frameLength)
			if s.table[TriggerErrorFrame].Output {
				s.skipFrames++
			}
			s.buf.IncFrames()
			s.stat.ErrorFrames++
		} else {
			// 最后一帧不完整
			s.advance(s.buf.Len())
		}
	}
}

// resync 头部不可信，查找下一个syncword，按跳过的字节数估算损坏的帧数
func (s *Session) resync(frames int) {
	Log.Warnf("[%s] frame %d: frame header is broken, try to find next header.", s.uniqueKey, frames)

	var sink io.Writer
	if s.table[TriggerBrokenFrame].Output {
		if s.adtsOut != nil {
			sink = s.adtsOut
		} else if s.broken != nil {
			sink = s.broken
		}
	}
	skip := s.findNextSyncword(sink)
	s.stat.SkippedBytes += skip
	if s.buf.Len() == 0 {
		Log.Warnf("[%s] frame %d: syncword not found until eof. skipped=%d", s.uniqueKey, frames, skip)
		return
	}

	bitrate := s.option.Bitrate
	if bitrate == 0 {
		Log.Warnf("[%s] bitrate is unknown, use %d.", s.uniqueKey, defaultBitrateKbps)
		bitrate = defaultBitrateKbps
	}
	sampleRate := s.segSampleRate
	if sampleRate == 0 {
		sampleRate = s.defaultSampleRate()
	}
	broken := EstimateBrokenFrames(skip, bitrate, sampleRate, s.spf)
	Log.Warnf("[%s] frame %d: syncword found. skipped=%d, broken frames=%d", s.uniqueKey, frames, skip, broken)
	if s.table[TriggerBrokenFrame].Output {
		s.skipFrames += broken
	}
	s.stat.BrokenFrames += broken
	s.buf.IncFrames()
}

// findNextSyncword 窗口头部的syncword已经被认为不可信，至少跳过一个字节
func (s *Session) findNextSyncword(sink io.Writer) int {
	skip := 0
	if head := s.buf.Bytes(); len(head) > 0 && aac.IsAdtsSyncword(head) {
		if sink != nil {
			_, _ = sink.Write(head[:1])
		}
		s.buf.Advance(1)
		skip = 1
	}
	return skip + s.buf.FindNextSyncword(sink)
}

func (s *Session) readHeader(data []byte) adtsHeader {
	h := adtsHeader{
		ch:  s.prevCh,
		sfi: s.prevSfi,
	}
	if !s.adts || len(data) <= aac.AdtsHeaderLength || !aac.IsAdtsSyncword(data) {
		return h
	}
	h.length = aac.AdtsFrameLength(data)
	h.valid = h.length >= aac.AdtsHeaderLength && h.length <= aac.MaxFrameLength
	if h.valid {
		h.ch = aac.AdtsChannelConfiguration(data)
		h.sfi = aac.AdtsSamplingFrequencyIndex(data)
	}
	return h
}

func (s *Session) reinitDecoder() error {
	if s.decoder != nil {
		_ = s.decoder.Close()
	}
	s.decoder = s.newDecoder()
	consumed, _, _, err := s.decoder.Init(s.buf.Bytes())
	if err != nil {
		return err
	}
	s.advance(consumed)
	return nil
}

func (s *Session) shouldOpen() bool {
	switch s.state {
	case StateOk:
		return true
	case StateSkip:
		p := s.table[TriggerErrorFrame]
		return p.Output && (p.SplitAfter || s.option.AdtsOut)
	case StateSeek:
		p := s.table[TriggerBrokenFrame]
		return p.Output && (p.SplitAfter || s.option.AdtsOut)
	}
	return false
}

func (s *Session) openSegment(frames int, info aac.FrameInfo) error {
	if info.Error != 0 {
		if s.segChannels == 0 {
			Log.Warnf("[%s] number of channels is unknown, use 2.", s.uniqueKey)
			s.segChannels = 2
		}
		if s.segSampleRate == 0 {
			s.segSampleRate = s.defaultSampleRate()
		}
	} else {
		s.segChannels = info.Channels
		s.segSampleRate = info.SampleRate
	}

	if !s.option.AdtsOut {
		name := base.MakeSegmentFilename(s.option.OutFilename, s.segment)
		sink, err := s.newSink(name, s.segSampleRate, s.segChannels)
		if err != nil {
			Log.Errorf("[%s] open output failed. file=%s, err=%+v", s.uniqueKey, name, err)
			return err
		}
		s.sink = sink
		s.written = 0
		s.basePts = 0
		if s.delaySamples == 0 {
			s.basePts = s.buf.Pts()
			if s.basePts == 0 {
				s.basePts = s.lastPts
			}
		}
		s.stat.Segments++
		Log.Infof("[%s] frame %d: open output. file=%s, sample_rate=%d, channels=%d",
			s.uniqueKey, frames, name, s.segSampleRate, s.segChannels)
	}
	s.firstTime = false
	return nil
}

func (s *Session) nextSegment(frames int) error {
	if s.option.AdtsOut {
		if err := s.adtsOut.Split(); err != nil {
			return err
		}
		s.stat.Segments++
	} else if s.sink != nil {
		s.lastPts = s.basePts + s.lengthMs()
		s.ptsDiff = 0
		err := s.sink.Close()
		s.sink = nil
		if err != nil {
			return err
		}
	}
	s.segment++
	Log.Infof("[%s] frame %d: switch to segment %d.", s.uniqueKey, frames, s.segment)
	s.firstTime = true
	s.switchFile = false
	return nil
}

// fillGap 按PTS或者出错的帧数补齐空白
func (s *Session) fillGap(frames int) error {
	if s.adjustPts {
		ok, err := s.adjustByPts(frames)
		if err != nil {
			return err
		}
		if ok {
			s.ptsDiff = 0
			s.skipFrames = 0
		}
	}
	s.adjustPts = false
	if s.skipFrames > 0 {
		Log.Warnf("[%s] frame %d: %d frames were inserted instead of error frames.", s.uniqueKey, frames, s.skipFrames)
		if err := s.writeBlank(s.skipFrames * s.spf); err != nil {
			return err
		}
		s.skipFrames = 0
	}
	return nil
}

// adjustByPts 按下一个PTS与已输出时长的差值插入或者删除采样点
//
// 当前帧没有PTS时使用最近一次计算的差值
//
// @return ok: PTS可用并且已经调整
func (s *Session) adjustByPts(frames int) (ok bool, err error) {
	var diff float64
	if pts := s.buf.Pts(); s.basePts != 0 && pts != 0 {
		diff = s.ptsDiffFrom(pts)
	} else if s.ptsDiff != 0 {
		diff = s.ptsDiff
	} else {
		return false, nil
	}

	samples, ok := PtsAdjustSamples(diff, s.segSampleRate, s.spf)
	if !ok {
		Log.Warnf("[%s] frame %d: pts difference is invalid. diff=%.1fms", s.uniqueKey, frames, diff)
		return false, nil
	}
	switch {
	case samples > 0:
		Log.Warnf("[%s] frame %d: pts difference %d samples (%.1fms) were inserted.", s.uniqueKey, frames, samples, diff)
		return true, s.writeBlank(samples)
	case samples < 0:
		Log.Warnf("[%s] frame %d: pts difference %d samples (%.1fms) will be removed.", s.uniqueKey, frames, -samples, diff)
		s.delaySamples += samples
	}
	return true, nil
}

func (s *Session) writePcm(frames int, pcm []byte, info aac.FrameInfo) error {
	ch := s.segChannels
	spf := info.SamplesPerFrame()
	writeSamples := info.Samples
	if info.Samples == 0 {
		writeSamples = spf * ch
		if !s.option.Flags.Has(FlagForceRead) {
			pcm = nil
		}
	}

	pts := s.buf.Pts()
	if s.basePts == 0 && pts != 0 {
		s.basePts = pts - s.lengthMs()
		s.shiftBasePts(-s.delaySamples - s.skipFrames*spf)
	}
	if s.basePts != 0 && pts != 0 {
		s.ptsDiff = s.ptsDiffFrom(pts)
	}

	if s.delaySamples != 0 && s.skipFrames > 0 {
		Log.Warnf("[%s] frame %d: %d frames will be inserted with delay correction.", s.uniqueKey, frames, s.skipFrames)
		s.delaySamples += s.skipFrames * spf
		s.skipFrames = 0
	}
	if s.adjustPts {
		ok, err := s.adjustByPts(frames)
		if err != nil {
			return err
		}
		if ok {
			s.adjustPts = false
			s.ptsDiff = 0
			s.skipFrames = 0
		}
	}
	if s.skipFrames > 0 {
		Log.Warnf("[%s] frame %d: %d frames were inserted.", s.uniqueKey, frames, s.skipFrames)
		if err := s.writeBlank(s.skipFrames * spf); err != nil {
			return err
		}
		s.skipFrames = 0
	}

	if s.delaySamples > 0 {
		Log.Infof("[%s] frame %d: %d samples were inserted. (delay correction)", s.uniqueKey, frames, s.delaySamples)
		if err := s.writeBlank(s.delaySamples); err != nil {
			return err
		}
		s.delaySamples = 0
	} else if s.delaySamples < 0 {
		if spf < -s.delaySamples {
			writeSamples = 0
			s.delaySamples += spf
			s.stat.RemovedSamples += spf
		} else {
			remove := -s.delaySamples
			Log.Infof("[%s] frame %d: %d samples were removed. (delay correction)", s.uniqueKey, frames, remove)
			writeSamples -= remove * ch
			if pcm != nil {
				off := remove * ch * bytesPerSample
				if off > len(pcm) {
					off = len(pcm)
				}
				pcm = pcm[off:]
			}
			s.stat.RemovedSamples += remove
			s.delaySamples = 0
		}
	}

	if ch > 0 && writeSamples/ch > 0 {
		if err := s.sink.Write(pcm, writeSamples); err != nil {
			return fmt.Errorf("%w. err=%+v", base.ErrSinkWrite, err)
		}
		s.written += writeSamples / ch
	}
	return nil
}

// writeBlank `samples`为每声道采样点数
func (s *Session) writeBlank(samples int) error {
	if samples <= 0 || s.sink == nil {
		return nil
	}
	if err := s.sink.WriteBlank(samples * s.segChannels); err != nil {
		return fmt.Errorf("%w. err=%+v", base.ErrSinkWrite, err)
	}
	s.written += samples
	s.stat.BlankSamples += samples
	return nil
}

func (s *Session) checkSamples(frames int, info aac.FrameInfo) {
	if info.Samples == 0 || info.Channels == 0 {
		return
	}
	spf := info.SamplesPerFrame()
	if info.Samples/info.Channels != spf {
		Log.Warnf("[%s] frame %d: invalid samples. samples=%d, channels=%d", s.uniqueKey, frames, info.Samples, info.Channels)
		return
	}
	s.spf = spf
}

func (s *Session) logChange(frames int, info aac.FrameInfo, hdr adtsHeader) {
	if s.lastChannels != 0 && info.Channels != s.lastChannels {
		Log.Warnf("[%s] frame %d: decode channels changed. %d -> %d", s.uniqueKey, frames, s.lastChannels, info.Channels)
	}
	if s.lastSampleRate != 0 && info.SampleRate != s.lastSampleRate {
		Log.Warnf("[%s] frame %d: decode sample rate changed. %d -> %d", s.uniqueKey, frames, s.lastSampleRate, info.SampleRate)
	}
	if s.adts && hdr.ch != s.prevCh {
		Log.Warnf("[%s] frame %d: adts header channels changed. %d -> %d", s.uniqueKey, frames, s.prevCh, hdr.ch)
	}
	if s.adts && hdr.sfi != s.prevSfi {
		Log.Warnf("[%s] frame %d: adts header sample rate changed. %d -> %d", s.uniqueKey, frames,
			aac.SamplingFrequencyFromIndex(s.prevSfi), aac.SamplingFrequencyFromIndex(hdr.sfi))
	}
}

func (s *Session) logProgress() {
	size := s.buf.FileSize()
	if size <= 0 {
		return
	}
	percent := int(s.buf.FileOffset() * 100 / size)
	if percent > 100 {
		percent = 100
	}
	if percent/10 > s.percent/10 || s.percent < 0 {
		Log.Debugf("[%s] progress %d%%. frames=%d", s.uniqueKey, percent, s.buf.Frames())
	}
	s.percent = percent
}

// ---------------------------------------------------------------------------------------------------------------------

func (s *Session) advance(n int) {
	s.buf.Advance(n)
	if err := s.buf.Fill(); err != nil {
		Log.Warnf("[%s] fill buffer failed. err=%+v", s.uniqueKey, err)
	}
}

// lengthMs 当前分段已输出的时长
func (s *Session) lengthMs() float64 {
	if s.segSampleRate == 0 {
		return 0
	}
	return float64(s.written) * 1000 / float64(s.segSampleRate)
}

func (s *Session) shiftBasePts(samples int) {
	if s.segSampleRate == 0 {
		return
	}
	s.basePts += float64(samples) * 1000 / float64(s.segSampleRate)
}

// ptsDiffFrom `pts`与当前分段结束时间的差值，跨越回绕点时按回绕周期换算
func (s *Session) ptsDiffFrom(pts float64) float64 {
	diff, _ := mpegts.PtsDiffMs(pts, s.basePts+s.lengthMs())
	return diff
}

func (s *Session) defaultSampleRate() int {
	if s.option.DefaultSampleRate != 0 {
		return s.option.DefaultSampleRate
	}
	Log.Warnf("[%s] sample rate is unknown, use %d.", s.uniqueKey, defaultSampleRate)
	return defaultSampleRate
}

func (s *Session) dispose() error {
	var e1, e2, e3, e4 error
	if s.decoder != nil {
		e1 = s.decoder.Close()
		s.decoder = nil
	}
	if s.sink != nil {
		e2 = s.sink.Close()
		s.sink = nil
	}
	if s.adtsOut != nil {
		e3 = s.adtsOut.Close()
	}
	if s.broken != nil {
		e4 = s.broken.Close()
	}
	return nazaerrors.CombineErrors(e1, e2, e3, e4)
}
