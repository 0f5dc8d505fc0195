// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"github.com/q191201771/tsaac/pkg/aac"
	"github.com/q191201771/tsaac/pkg/base"
)

var Log = base.Log

var (
	PcmFileExt    = ".wav"
	AdtsFileExt   = ".aac"
	BrokenFileExt = ".broken.aac"
)

// DefaultDecoderFactory Entry 使用的解码器。默认只校验ADTS头，PCM输出为静音，时长与输入一致
var DefaultDecoderFactory DecoderFactory = func() Decoder {
	return aac.NewHeaderDecoder()
}

// DefaultSinkFactory Entry 使用的PCM输出
var DefaultSinkFactory SinkFactory = OpenWavSink
