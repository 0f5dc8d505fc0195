// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic_test

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/tsaac/pkg/innertest"
	"github.com/q191201771/tsaac/pkg/logic"
)

func TestWavSink(t *testing.T) {
	dir := filepath.Dir(innertest.WriteTempFile(t, "in.aac", nil))
	filename := filepath.Join(dir, "sub", "out.wav")

	sink, err := logic.OpenWavSink(filename, 44100, 2)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, sink.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 4))
	// pcm不足时按实际长度写入
	assert.Equal(t, nil, sink.Write([]byte{9, 10}, 4))
	assert.Equal(t, nil, sink.WriteBlank(5000))
	assert.Equal(t, nil, sink.Write(nil, 2))
	assert.Equal(t, nil, sink.Close())

	dataBytes := 8 + 2 + 10000 + 4
	b, err := ioutil.ReadFile(filename)
	assert.Equal(t, nil, err)
	assert.Equal(t, 44+dataBytes, len(b))
	assert.Equal(t, "RIFF", string(b[:4]))
	assert.Equal(t, uint32(36+dataBytes), bele.LeUint32(b[4:]))
	assert.Equal(t, "WAVEfmt ", string(b[8:16]))
	assert.Equal(t, []byte{1, 0, 2, 0}, b[20:24])
	assert.Equal(t, uint32(44100), bele.LeUint32(b[24:]))
	assert.Equal(t, uint32(44100*4), bele.LeUint32(b[28:]))
	assert.Equal(t, []byte{4, 0, 16, 0}, b[32:36])
	assert.Equal(t, "data", string(b[36:40]))
	assert.Equal(t, uint32(dataBytes), bele.LeUint32(b[40:]))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 0, 0}, b[44:56])
	assert.Equal(t, make([]byte, 10004), b[54:])
}
