// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// PSI section使用的CRC32，<iso13818-1.pdf> <Annex A>
//
// 多项式0x04C11DB7，不反转，初始值0xFFFFFFFF，没有结果异或。
// 注意，与hash/crc32的IEEE（反转）实现结果不同
var crc32Table = makeCrc32Table()

func makeCrc32Table() (t [256]uint32) {
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return
}

// CalcCrc32 在`crc`的基础上继续计算`b`
func CalcCrc32(crc uint32, b []byte) uint32 {
	for _, v := range b {
		crc = crc<<8 ^ crc32Table[byte(crc>>24)^v]
	}
	return crc
}

// Crc32Mpeg2 计算完整的section CRC。对包含CRC_32字段的完整section计算，结果为0
func Crc32Mpeg2(b []byte) uint32 {
	return CalcCrc32(0xFFFFFFFF, b)
}
