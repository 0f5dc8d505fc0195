// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/asticode/go-astits"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/mpegts"
)

// 打印TS文件的节目表，以及每个PID的packet、PES数量和第一个PTS
//
// 使用 -x 时再用astits解析一遍，对比两者得到的PES数量和第一个PTS

type pidStat struct {
	packets   int
	scrambled int
	pes       int
	firstPts  float64
}

func main() {
	filename, crossCheck := parseFlag()
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.IsToStdout = true
		option.ShortFileFlag = true
	})
	defer nazalog.Sync()

	tr, err := mpegts.OpenTsFile(filename)
	nazalog.Assert(nil, err)
	defer tr.Close()

	pt, err := tr.ProgramTable()
	if err != nil {
		nazalog.Warnf("no program table. err=%+v", err)
	} else {
		pt.Dump(os.Stdout)
	}

	stats, resyncs := scan(tr)
	pids := make([]int, 0, len(stats))
	for pid := range stats {
		pids = append(pids, int(pid))
	}
	sort.Ints(pids)

	fmt.Printf("packet size %d, file size %d, resyncs %d\n", tr.PacketSize(), tr.Size(), resyncs)
	for _, pid := range pids {
		s := stats[uint16(pid)]
		fmt.Printf("  PID 0x%-4X packets=%-8d scrambled=%-6d pes=%-6d first pts=%.1fms\n", pid, s.packets, s.scrambled, s.pes, s.firstPts)
	}

	if !crossCheck {
		return
	}
	ref, err := scanWithAstits(filename)
	nazalog.Assert(nil, err)
	mismatch := 0
	for pid, r := range ref {
		s, ok := stats[pid]
		if !ok || s.pes != r.pes || math.Abs(s.firstPts-r.firstPts) > 0.02 {
			mismatch++
			nazalog.Warnf("mismatch. pid=0x%X, tsaac=%+v, astits=%+v", pid, s, r)
		}
	}
	nazalog.Infof("cross check done. pids=%d, mismatch=%d", len(ref), mismatch)
}

func parseFlag() (string, bool) {
	i := flag.String("i", "", "specify ts file")
	x := flag.Bool("x", false, "cross check with astits")
	flag.Parse()
	if *i == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  ./bin/tsdump -i rec.ts -x
`)
		base.OsExitAndWaitPressIfWindows(1)
	}
	return *i, *x
}

// scan 从头读取所有packet，`resyncs`为丢失同步的次数
func scan(tr *mpegts.TsReader) (stats map[uint16]*pidStat, resyncs int) {
	stats = make(map[uint16]*pidStat)
	nazalog.Assert(nil, tr.SeekHead())
	for {
		pkt, err := tr.NextPacket()
		if err != nil {
			break
		}
		if err = tr.LastError(); err != nil {
			resyncs++
			nazalog.Warnf("resync. pos=%d, err=%+v", tr.Pos(), err)
		}
		pid := mpegts.PacketPid(pkt)
		s, ok := stats[pid]
		if !ok {
			s = &pidStat{}
			stats[pid] = s
		}
		s.packets++
		if mpegts.PacketScrambled(pkt) {
			s.scrambled++
			continue
		}
		if !mpegts.PacketUnitStart(pkt) || pid == mpegts.PidPat {
			continue
		}
		payload := mpegts.PacketPayload(pkt)
		if _, err := mpegts.ParsePesHeader(payload); err != nil {
			continue
		}
		s.pes++
		if s.firstPts == 0 && mpegts.PesHasPts(payload) {
			s.firstPts = mpegts.ExtractPtsMs(payload)
		}
	}
	return stats, resyncs
}

func scanWithAstits(filename string) (map[uint16]*pidStat, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	stats := make(map[uint16]*pidStat)
	dmx := astits.NewDemuxer(context.Background(), fp)
	for {
		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				break
			}
			return stats, err
		}
		if d.PES == nil {
			continue
		}
		s, ok := stats[d.PID]
		if !ok {
			s = &pidStat{}
			stats[d.PID] = s
		}
		s.pes++
		oh := d.PES.Header.OptionalHeader
		if s.firstPts == 0 && oh != nil && oh.PTS != nil {
			s.firstPts = float64(oh.PTS.Base) / 90
		}
	}
	return stats, nil
}
