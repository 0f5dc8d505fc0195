// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// 版本，该变量由外部脚本修改维护
const TsaacVersion = "v0.3.0"

var (
	TsaacLibraryName = "tsaac"
	TsaacGithubRepo  = "github.com/q191201771/tsaac"
	TsaacGithubSite  = "https://github.com/q191201771/tsaac"

	// e.g. tsaac v0.3.0 (github.com/q191201771/tsaac)
	TsaacFullInfo = TsaacLibraryName + " " + TsaacVersion + " (" + TsaacGithubRepo + ")"

	// e.g. 0.3.0
	TsaacVersionDot string
)

func init() {
	TsaacVersionDot = strings.TrimPrefix(TsaacVersion, "v")
}
