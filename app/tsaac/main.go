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
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/logic"
)

var defaultConfigFiles = []string{
	"./conf/tsaac.conf.json",
	"./conf/tsaac.conf.yaml",
	"../conf/tsaac.conf.json",
}

type cmdOption struct {
	confFile string
	outFile  string
	outDir   string
	mode     string
	flags    string
	delayMs  int
	audioPid uint
	first    int
	last     int
	inputs   []string
	set      map[string]bool
}

func main() {
	opt := parseFlag()
	config := loadConf(opt)
	initLog(config.LogConfig)
	base.LogoutStartInfo()

	ctx, cancel := context.WithCancel(context.Background())
	go base.RunSignalHandler(cancel)

	results, err := logic.RunBatch(ctx, config)
	if err != nil {
		nazalog.Warnf("batch interrupted. err=%+v", err)
	}
	code := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Err != nil {
			nazalog.Errorf("%s failed. err=%+v", r.Input, r.Err)
			code = 1
			continue
		}
		if config.Mode == logic.ModeInfo {
			_, _ = fmt.Fprint(os.Stdout, r.Info)
			continue
		}
		nazalog.Infof("%s -> %s. %s", r.Input, r.Output, r.Stats.String())
	}
	nazalog.Sync()
	os.Exit(code)
}

func parseFlag() *cmdOption {
	var opt cmdOption
	binInfoFlag := flag.Bool("v", false, "show bin info")
	flag.StringVar(&opt.confFile, "c", "", "specify conf file")
	flag.StringVar(&opt.outFile, "o", "", "output file, only for single input")
	flag.StringVar(&opt.outDir, "d", "", "output directory")
	flag.StringVar(&opt.mode, "m", "", "output mode: pcm, adts or info")
	flag.StringVar(&opt.flags, "f", "", "control flags, e.g. 0x2F30D")
	flag.IntVar(&opt.delayMs, "delay", 0, "audio delay in ms, overwrite the delay from pts and filename")
	flag.UintVar(&opt.audioPid, "pid", 0, "audio pid, 0 means lookup in pmt")
	flag.IntVar(&opt.first, "first", 0, "first output frame, start from 1")
	flag.IntVar(&opt.last, "last", 0, "last output frame")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.TsaacFullInfo)
		os.Exit(0)
	}

	opt.inputs = flag.Args()
	opt.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		opt.set[f.Name] = true
	})
	if opt.confFile == "" && len(opt.inputs) == 0 {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  ./bin/tsaac -c ./conf/tsaac.conf.json
  ./bin/tsaac -m pcm -d ./out "rec.ts" "rec2 DELAY -120ms.aac"
  ./bin/tsaac -m info rec.ts
`)
		base.OsExitAndWaitPressIfWindows(1)
	}
	return &opt
}

// loadConf 命令行中指定的项覆盖配置文件
func loadConf(opt *cmdOption) *logic.Config {
	config := logic.DefaultConfig()
	if opt.confFile != "" || len(opt.inputs) == 0 {
		filename, content := base.ReadConfigFile(opt.confFile, defaultConfigFiles)
		c, err := logic.LoadConf(filename, content)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "load conf failed. file=%s err=%+v\n", filename, err)
			base.OsExitAndWaitPressIfWindows(1)
		}
		config = c
	}

	if len(opt.inputs) != 0 {
		config.Inputs = opt.inputs
	}
	if opt.set["o"] {
		config.OutFile = opt.outFile
	}
	if opt.set["d"] {
		config.OutDir = opt.outDir
	}
	if opt.set["m"] {
		config.Mode = opt.mode
	}
	if opt.set["f"] {
		v, err := strconv.ParseUint(opt.flags, 0, 32)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "invalid control flags. flags=%s\n", opt.flags)
			base.OsExitAndWaitPressIfWindows(1)
		}
		config.CtrlFlags = uint32(v)
	}
	if opt.set["delay"] {
		config.DelayMs = opt.delayMs
		config.DelaySet = true
	}
	if opt.set["pid"] {
		config.AudioPid = uint16(opt.audioPid)
	}
	if opt.set["first"] {
		config.FirstFrame = opt.first
	}
	if opt.set["last"] {
		config.LastFrame = opt.last
	}

	if err := config.Check(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid conf. err=%+v\n", err)
		base.OsExitAndWaitPressIfWindows(1)
	}
	if len(config.Inputs) == 0 {
		_, _ = fmt.Fprintf(os.Stderr, "no input.\n")
		base.OsExitAndWaitPressIfWindows(1)
	}
	return config
}

func initLog(opt nazalog.Option) {
	if err := nazalog.Init(func(option *nazalog.Option) {
		*option = opt
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initial log failed. err=%+v\n", err)
		base.OsExitAndWaitPressIfWindows(1)
	}
	nazalog.Info("initial log succ.")
}
