// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/q191201771/tsaac/pkg/aac"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/mpegts"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Result 一个输入文件的处理结果
type Result struct {
	Input  string
	Output string // info模式下为空
	Info   string // info模式下的输入信息
	Stats  Stats
	Err    error
}

type tsProbe struct {
	uniqueKey string
	pt        *mpegts.ProgramTable
	program   uint16
	audioPid  uint16
	videoPid  uint16
	audioPts  float64
	videoPts  float64
}

// Entry 处理一个输入文件
//
// 输入可以是TS文件，或者裸ADTS文件
func Entry(conf *Config, input string) (*Result, error) {
	result := &Result{Input: input}

	fp, err := os.Open(input)
	if err != nil {
		return result, err
	}
	defer fp.Close()

	var (
		buf      *aac.Buffer
		probe    *tsProbe
		adtsInfo aac.AdtsInfo
		isTs     bool
		delayMs  int
		delaySet bool
		outName  string
	)

	tr := mpegts.NewTsReader(fp)
	err = tr.Open()
	switch {
	case err == nil:
		isTs = true
		if probe, err = probeTs(tr, conf); err != nil {
			return result, err
		}
		if buf, err = aac.NewTsBuffer(tr, probe.audioPid); err != nil {
			return result, err
		}
	case errors.Is(err, base.ErrFormat):
		if buf, adtsInfo, err = openAdts(fp); err != nil {
			return result, err
		}
	default:
		return result, err
	}

	if conf.DelaySet {
		delayMs, delaySet = conf.DelayMs, true
	} else if isTs && probe.audioPts != 0 && probe.videoPts != 0 {
		delaySet = true
		var ok bool
		if delayMs, ok = ComputeAvDelay(probe.audioPts, probe.videoPts); !ok {
			Log.Warnf("[%s] pts difference out of range, ignore. audio=%.1f, video=%.1f", probe.uniqueKey, probe.audioPts, probe.videoPts)
		}
	}
	if !delaySet {
		var name string
		if delayMs, name, delaySet = ParseFilenameDelay(input); delaySet {
			outName = replaceExt(name, outFileExt(conf.Mode))
		}
	}
	result.Output = makeOutFilename(conf, input, outName, probe)

	if conf.Mode == ModeInfo {
		result.Info = makeInfo(conf, input, isTs, probe, adtsInfo, delayMs)
		result.Output = ""
		return result, nil
	}

	modOption := func(option *SessionOption) {
		option.Flags = conf.Flags()
		option.AdtsOut = conf.Mode == ModeAdts
		option.OutFilename = result.Output
		option.DelayMs = delayMs
		option.FirstFrame = conf.FirstFrame
		option.LastFrame = conf.LastFrame
		option.DefaultSampleRate = conf.DefaultSampleRate
		option.Bitrate = adtsInfo.Bitrate
		if conf.BrokenOut && conf.Mode == ModePcm {
			option.BrokenFilename = replaceExt(result.Output, BrokenFileExt)
		}
	}
	session := NewSession(buf, DefaultDecoderFactory, DefaultSinkFactory, modOption)
	Log.Infof("[%s] input=%s, output=%s, delay=%dms", session.UniqueKey(), input, result.Output, delayMs)
	result.Stats, err = session.Run()
	return result, err
}

// RunBatch 并发处理配置中的所有输入，每个输入使用独立的读取缓存和解码会话
//
// 单个输入失败不影响其他输入，错误记录在对应的 Result 中。`ctx`取消后不再开始新的输入
func RunBatch(ctx context.Context, conf *Config) ([]*Result, error) {
	results := make([]*Result, len(conf.Inputs))
	sem := semaphore.NewWeighted(int64(conf.Concurrency))
	g, gctx := errgroup.WithContext(ctx)

	var err error
	for i := range conf.Inputs {
		if err = gctx.Err(); err != nil {
			break
		}
		if err = sem.Acquire(gctx, 1); err != nil {
			break
		}
		i := i
		g.Go(func() error {
			defer sem.Release(1)
			r, err := Entry(conf, conf.Inputs[i])
			if err != nil {
				Log.Errorf("process input failed. input=%s, err=%+v", conf.Inputs[i], err)
			}
			r.Err = err
			results[i] = r
			return nil
		})
	}
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return results, err
}

// ---------------------------------------------------------------------------------------------------------------------

// probeTs 确定音频、视频PID，以及两者第一个PTS。结束后回到流的开始处
func probeTs(tr *mpegts.TsReader, conf *Config) (*tsProbe, error) {
	p := &tsProbe{
		uniqueKey: base.GenUkTsReader(),
		program:   conf.ProgramNumber,
		audioPid:  conf.AudioPid,
		videoPid:  conf.VideoPid,
	}
	limit := conf.TsPacketLimit
	Log.Infof("[%s] ts packet size %d.", p.uniqueKey, tr.PacketSize())

	pt, err := mpegts.ParseProgramTable(tr, limit)
	if err != nil {
		Log.Warnf("[%s] no pat found. err=%+v", p.uniqueKey, err)
	} else {
		p.pt = pt
	}

	if p.audioPid == 0 && p.pt != nil {
		if pid, program, ok := p.pt.LookupPid(mpegts.StreamTypeAac, conf.ProgramNumber, conf.StreamIndex); ok {
			p.audioPid = pid
			if p.program == 0 {
				p.program = program
			}
		}
	}
	if p.audioPid == 0 {
		if pid, ok := mpegts.ProbePid(tr, mpegts.StreamTypeAac, conf.StreamIndex, limit); ok {
			Log.Infof("[%s] audio pid found by pes stream id. pid=0x%X", p.uniqueKey, pid)
			p.audioPid = pid
		}
	}
	if p.audioPid == 0 {
		return nil, fmt.Errorf("%w. program=%d, index=%d", base.ErrNoAudio, conf.ProgramNumber, conf.StreamIndex)
	}

	if p.videoPid == 0 && p.pt != nil {
		p.videoPid, _, _ = p.pt.LookupPid(mpegts.StreamTypeMpeg2Video, p.program, conf.StreamIndex)
	}
	if p.videoPid == 0 {
		Log.Warnf("[%s] no video pid found.", p.uniqueKey)
	}

	if err = tr.SeekHead(); err != nil {
		return nil, err
	}
	if p.audioPts, err = tr.LocatePts(p.audioPid, mpegts.PtsModeFirstPes); err != nil {
		Log.Warnf("[%s] audio pts not found. pid=0x%X, err=%+v", p.uniqueKey, p.audioPid, err)
	}
	if p.videoPid != 0 {
		mode, _ := mpegts.ParsePtsMode(conf.PtsMode)
		if err = tr.SeekHead(); err != nil {
			return nil, err
		}
		if p.videoPts, err = tr.LocatePts(p.videoPid, mode); err != nil {
			Log.Warnf("[%s] video pts not found. pid=0x%X, mode=%s, err=%+v", p.uniqueKey, p.videoPid, mode, err)
		}
	}
	Log.Infof("[%s] program=%d, audio pid=0x%X pts=%.1f, video pid=0x%X pts=%.1f",
		p.uniqueKey, p.program, p.audioPid, p.audioPts, p.videoPid, p.videoPts)
	return p, tr.SeekHead()
}

// openAdts 裸ADTS文件，跳过ID3v2标签，读取一遍统计码率
func openAdts(fp *os.File) (*aac.Buffer, aac.AdtsInfo, error) {
	var info aac.AdtsInfo
	buf, err := aac.NewFileBuffer(fp)
	if err != nil {
		return nil, info, err
	}
	tagSize, err := buf.SkipId3v2()
	if err != nil {
		return nil, info, err
	}
	if !aac.IsAdtsSyncword(buf.Bytes()) {
		return nil, info, fmt.Errorf("%w. neither ts nor adts. file=%s", base.ErrUnsupportedInput, fp.Name())
	}
	info = aac.ScanAdts(buf)
	Log.Infof("%s: %s", fp.Name(), info.String())
	if err = buf.Rewind(int64(tagSize)); err != nil {
		return nil, info, err
	}
	return buf, info, nil
}

func outFileExt(mode string) string {
	if mode == ModeAdts {
		return AdtsFileExt
	}
	return PcmFileExt
}

// makeOutFilename
//
// TS输入: "<name> PID <pid> DELAY 0ms.wav"
// ADTS输入: "<name>.wav"
func makeOutFilename(conf *Config, input string, name string, probe *tsProbe) string {
	ext := outFileExt(conf.Mode)
	switch {
	case conf.OutFile != "":
		name = conf.OutFile
	case name != "":
	case probe != nil:
		name = fmt.Sprintf("%s PID %3X DELAY 0ms%s", strings.TrimSuffix(input, filepath.Ext(input)), probe.audioPid, ext)
	default:
		name = replaceExt(input, ext)
	}
	if conf.OutDir != "" && conf.OutFile == "" {
		name = filepath.Join(conf.OutDir, filepath.Base(name))
	}
	if filepath.Clean(name) == filepath.Clean(input) {
		name = strings.TrimSuffix(name, ext) + "_out" + ext
	}
	return name
}

func replaceExt(filename string, ext string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}

func makeInfo(conf *Config, input string, isTs bool, probe *tsProbe, adtsInfo aac.AdtsInfo, delayMs int) string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%s file info:\n", input)
	if isTs {
		_, _ = fmt.Fprintf(&sb, "TS ADTS\n")
		if probe.pt != nil {
			_, _ = fmt.Fprintf(&sb, "Program Association Table:\n")
			probe.pt.Dump(&sb)
		}
		_, _ = fmt.Fprintf(&sb, "Program  : %d (0x%X)\n", probe.program, probe.program)
		_, _ = fmt.Fprintf(&sb, "AAC   PID: 0x%-4X PTS: %.1f [ms]\n", probe.audioPid, probe.audioPts)
		_, _ = fmt.Fprintf(&sb, "Video PID: 0x%-4X PTS: %.1f [ms]\n", probe.videoPid, probe.videoPts)
	} else {
		_, _ = fmt.Fprintf(&sb, "%s\n", adtsInfo.String())
	}
	if delayMs != 0 {
		_, _ = fmt.Fprintf(&sb, "Delay        : %d [ms]\n", delayMs)
	}
	_, _ = fmt.Fprintf(&sb, "Decode range : %d to %d frame.\n", conf.FirstFrame, conf.LastFrame)
	return sb.String()
}
