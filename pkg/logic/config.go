// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tsaac/pkg/base"
	"github.com/q191201771/tsaac/pkg/mpegts"
	"gopkg.in/yaml.v3"
)

const ConfVersion = "v0.1.0"

// Mode 输出方式
const (
	ModePcm  = "pcm"
	ModeAdts = "adts"
	ModeInfo = "info"
)

const (
	defaultConfMode        = ModePcm
	defaultConfPtsMode     = "first_gop"
	defaultConfConcurrency = 1
	defaultConfLogFilename = "./logs/tsaac.log"
)

type Config struct {
	ConfVersion string `json:"conf_version" yaml:"conf_version"`

	Inputs  []string `json:"inputs" yaml:"inputs"`
	OutDir  string   `json:"out_dir" yaml:"out_dir"`   // 为空时输出到输入文件所在目录
	OutFile string   `json:"out_file" yaml:"out_file"` // 只有一个输入时可以指定输出文件名
	Mode    string   `json:"mode" yaml:"mode"`

	CtrlFlags uint32 `json:"ctrl_flags" yaml:"ctrl_flags"`

	AudioPid      uint16 `json:"audio_pid" yaml:"audio_pid"` // 0表示从PMT中查找
	ProgramNumber uint16 `json:"program_number" yaml:"program_number"`
	StreamIndex   int    `json:"stream_index" yaml:"stream_index"`
	VideoPid      uint16 `json:"video_pid" yaml:"video_pid"`
	PtsMode       string `json:"pts_mode" yaml:"pts_mode"`

	// DelayMs 配置中存在时不再根据PTS计算延迟
	DelayMs  int  `json:"delay_ms" yaml:"delay_ms"`
	DelaySet bool `json:"-" yaml:"-"`

	TsPacketLimit     int  `json:"ts_packet_limit" yaml:"ts_packet_limit"`
	FirstFrame        int  `json:"first_frame" yaml:"first_frame"`
	LastFrame         int  `json:"last_frame" yaml:"last_frame"`
	DefaultSampleRate int  `json:"default_sample_rate" yaml:"default_sample_rate"`
	BrokenOut         bool `json:"broken_out" yaml:"broken_out"` // PCM输出时保存损坏的字节
	Concurrency       int  `json:"concurrency" yaml:"concurrency"`

	LogConfig nazalog.Option `json:"log" yaml:"log"`
}

func (c *Config) Flags() Flags {
	return Flags(c.CtrlFlags)
}

// LoadConfFromFile 扩展名为.yaml或者.yml时按YAML解析，否则按JSON解析
func LoadConfFromFile(filename string) (*Config, error) {
	rawContent, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return LoadConf(filename, rawContent)
}

// LoadConf `filename`只用于根据扩展名选择解析方式
func LoadConf(filename string, rawContent []byte) (*Config, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return LoadYamlConf(rawContent)
	}
	return LoadJsonConf(rawContent)
}

func LoadJsonConf(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, fmt.Errorf("%w. err=%+v", base.ErrConfig, err)
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, fmt.Errorf("%w. err=%+v", base.ErrConfig, err)
	}
	if !j.Exist("mode") {
		config.Mode = defaultConfMode
	}
	if !j.Exist("ctrl_flags") {
		config.CtrlFlags = uint32(DefaultFlags)
	}
	if !j.Exist("pts_mode") {
		config.PtsMode = defaultConfPtsMode
	}
	if !j.Exist("ts_packet_limit") {
		config.TsPacketLimit = mpegts.PsiPacketLimit
	}
	if !j.Exist("concurrency") {
		config.Concurrency = defaultConfConcurrency
	}
	config.DelaySet = j.Exist("delay_ms")
	if !j.Exist("log.level") {
		config.LogConfig.Level = nazalog.LevelInfo
	}
	if !j.Exist("log.filename") {
		config.LogConfig.Filename = defaultConfLogFilename
	}
	if !j.Exist("log.is_to_stdout") {
		config.LogConfig.IsToStdout = true
	}
	if !j.Exist("log.is_rotate_daily") {
		config.LogConfig.IsRotateDaily = true
	}
	if !j.Exist("log.short_file_flag") {
		config.LogConfig.ShortFileFlag = true
	}
	if !j.Exist("log.assert_behavior") {
		config.LogConfig.AssertBehavior = nazalog.AssertError
	}

	return &config, config.Check()
}

// LoadYamlConf 先填充默认值再解析，配置中存在的项覆盖默认值
func LoadYamlConf(rawContent []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(rawContent, config); err != nil {
		return nil, fmt.Errorf("%w. err=%+v", base.ErrConfig, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(rawContent, &raw); err != nil {
		return nil, fmt.Errorf("%w. err=%+v", base.ErrConfig, err)
	}
	_, config.DelaySet = raw["delay_ms"]

	return config, config.Check()
}

// DefaultConfig 不使用配置文件时的配置
func DefaultConfig() *Config {
	return &Config{
		ConfVersion:   ConfVersion,
		Mode:          defaultConfMode,
		CtrlFlags:     uint32(DefaultFlags),
		PtsMode:       defaultConfPtsMode,
		TsPacketLimit: mpegts.PsiPacketLimit,
		Concurrency:   defaultConfConcurrency,
		LogConfig: nazalog.Option{
			Level:          nazalog.LevelInfo,
			Filename:       defaultConfLogFilename,
			IsToStdout:     true,
			IsRotateDaily:  true,
			ShortFileFlag:  true,
			AssertBehavior: nazalog.AssertError,
		},
	}
}

// Check 校验配置，并修正可以使用默认值的项
func (c *Config) Check() error {
	switch c.Mode {
	case ModePcm, ModeAdts, ModeInfo:
	default:
		return fmt.Errorf("%w. invalid mode. mode=%s", base.ErrConfig, c.Mode)
	}
	if _, err := mpegts.ParsePtsMode(c.PtsMode); err != nil {
		return fmt.Errorf("%w. %s", base.ErrConfig, err.Error())
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConfConcurrency
	}
	if c.LastFrame > 0 && c.FirstFrame > c.LastFrame {
		return fmt.Errorf("%w. first frame after last frame. first=%d, last=%d", base.ErrConfig, c.FirstFrame, c.LastFrame)
	}
	if c.OutFile != "" && len(c.Inputs) > 1 {
		return fmt.Errorf("%w. out_file with multiple inputs. inputs=%d", base.ErrConfig, len(c.Inputs))
	}
	return nil
}
