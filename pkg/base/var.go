// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// ----- mpegts --------------------
var (
	// TsReaderArenaSize TsReader内部缓存大小，是188、192、204的公倍数
	TsReaderArenaSize = 192 * 17 * 13 * 47

	// LogDumpMaxNum debug级别下，hex dump日志最多打印的次数
	LogDumpMaxNum = 16
)
