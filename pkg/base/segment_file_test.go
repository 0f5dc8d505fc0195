// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tsaac/pkg/base"
)

func TestMakeSegmentFilename(t *testing.T) {
	assert.Equal(t, "a.wav", base.MakeSegmentFilename("a.wav", 0))
	assert.Equal(t, "a[1].wav", base.MakeSegmentFilename("a.wav", 1))
	assert.Equal(t, "out/a PID 101[12].aac", base.MakeSegmentFilename("out/a PID 101.aac", 12))
	assert.Equal(t, "out.d/a[3]", base.MakeSegmentFilename("out.d/a", 3))
}

func TestSegmentWriter(t *testing.T) {
	dir, err := ioutil.TempDir("", "tsaac")
	assert.Equal(t, nil, err)
	defer os.RemoveAll(dir)

	w := base.NewSegmentWriter(filepath.Join(dir, "sub", "x.aac"))
	assert.Equal(t, nil, w.Open())
	_, err = w.Write([]byte("hello"))
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(5), w.Written())
	assert.Equal(t, nil, w.Next())
	assert.Equal(t, 1, w.Number())
	_, err = w.Write([]byte("world!"))
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, w.Close())
	assert.Equal(t, false, w.IsOpen())

	b, err := ioutil.ReadFile(filepath.Join(dir, "sub", "x.aac"))
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte("hello"), b)
	b, err = ioutil.ReadFile(filepath.Join(dir, "sub", "x[1].aac"))
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte("world!"), b)

	_, err = w.Write([]byte("closed"))
	assert.IsNotNil(t, err)
}
