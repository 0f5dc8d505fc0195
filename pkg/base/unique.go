// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreAacSession = "AACSESSION"
	UkPreTsReader   = "TSREADER"
)

func GenUkAacSession() string {
	return siUkAacSession.GenUniqueKey()
}

func GenUkTsReader() string {
	return siUkTsReader.GenUniqueKey()
}

var (
	siUkAacSession *unique.SingleGenerator
	siUkTsReader   *unique.SingleGenerator
)

func init() {
	siUkAacSession = unique.NewSingleGenerator(UkPreAacSession)
	siUkTsReader = unique.NewSingleGenerator(UkPreTsReader)
}
