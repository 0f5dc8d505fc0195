// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tsaac
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// Frame 一个PES的数据，用于打包成TS packet，生成测试流使用
//
type Frame struct {
	Pts uint64 // =(毫秒 * 90)
	Dts uint64
	Cc  uint8 // continuity_counter of TS Header

	Pid uint16

	// stream_id of PES Header
	// 音频 mpegts.StreamIdAudio
	// 视频 mpegts.StreamIdVideo
	Sid uint8

	// 为true时首个packet添加带PCR的Adaptation
	Key bool

	// 为true时PES头不写PTS/DTS
	NoPts bool

	// data_alignment_indicator
	Aligned bool

	// 音频AAC 格式为ADTS
	// 视频 MPEG-2 video ES
	Raw []byte
}

// Pack 打包为188字节步长的TS packet
//
// 返回后 Cc 为最后一个packet的continuity_counter
func (frame *Frame) Pack() []byte {
	bufLen := len(frame.Raw) * 2 // 预分配一块足够大的内存
	if bufLen < 1024 {
		bufLen = 1024
	}
	buf := make([]byte, bufLen)

	lpos := 0              // 当前输入帧的处理位置
	rpos := len(frame.Raw) // 当前输入帧大小
	first := true          // 是否为帧的首个packet的标准
	packetPosAtBuf := 0    // 当前输出packet相对于整个输出内存块的位置

	for first || lpos != rpos {
		if packetPosAtBuf+PacketSize188 > len(buf) {
			newBuf := make([]byte, packetPosAtBuf+PacketSize188+len(frame.Raw)-lpos)
			copy(newBuf, buf)
			buf = newBuf
		}

		packet := buf[packetPosAtBuf : packetPosAtBuf+PacketSize188] // 当前输出packet
		wpos := 0                                                    // 当前输出packet的写入位置
		packetPosAtBuf += PacketSize188

		frame.Cc++

		// -----TS Header----------------
		// sync_byte
		// transport_error_indicator    0
		// payload_unit_start_indicator
		// transport_priority           0
		// PID
		// transport_scrambling_control 0
		// adaptation_field_control
		// continuity_counter
		// ------------------------------
		packet[0] = syncByte
		packet[1] = 0x0
		if first {
			packet[1] = 0x40 // payload_unit_start_indicator
		}
		packet[1] |= uint8((frame.Pid >> 8) & 0x1F) //PID高5位
		packet[2] = uint8(frame.Pid & 0xFF)         //PID低8位

		// adaptation_field_control 先设置成无Adaptation
		packet[3] = 0x10 | (frame.Cc & 0x0f)
		wpos += 4

		if first {
			if frame.Key {
				packet[3] |= 0x20              // adaptation_field_control 设置Adaptation
				packet[4] = 7                  // adaptation_field_length
				packet[5] = 0x50               // random_access_indicator + PCR_flag
				packPcr(packet[6:], frame.Dts) // using 6 byte
				wpos += 8
			}

			packet[wpos] = 0x00        // packet_start_code_prefix 24-bits
			packet[wpos+1] = 0x00      //
			packet[wpos+2] = 0x01      //
			packet[wpos+3] = frame.Sid // stream_id
			wpos += 4

			headerSize := uint8(0)
			flags := uint8(0)
			if !frame.NoPts {
				headerSize = 5
				flags = 0x80
				if frame.Dts != frame.Pts {
					headerSize += 5
					flags |= 0x40
				}
			}

			pesSize := rpos + int(headerSize) + 3 // PES Header剩余3字节 + PTS/PTS长度 + 整个帧的长度
			if pesSize > 0xFFFF {
				pesSize = 0
			}

			packet[wpos] = uint8(pesSize >> 8)     // PES_packet_length
			packet[wpos+1] = uint8(pesSize & 0xFF) //
			packet[wpos+2] = 0x80                  // '10'
			if frame.Aligned {
				packet[wpos+2] |= 0x04 // data_alignment_indicator
			}
			packet[wpos+3] = flags      // PTS/DTS flag
			packet[wpos+4] = headerSize // PES_header_data_length: PTS+DTS数据长度
			wpos += 5

			if !frame.NoPts {
				packPts(packet[wpos:], flags>>6, frame.Pts)
				wpos += 5
				if frame.Pts != frame.Dts {
					packPts(packet[wpos:], 1, frame.Dts)
					wpos += 5
				}
			}

			first = false
		}

		// 把帧的内容切割放入packet中
		bodySize := PacketSize188 - wpos // 当前TS packet，可写入大小
		inSize := rpos - lpos            // 整个帧剩余待打包大小

		if bodySize <= inSize {
			copy(packet[wpos:], frame.Raw[lpos:lpos+bodySize])
			lpos += bodySize
			continue
		}

		// 当前packet可以写完这个帧，并且还有空闲空间
		// 此时，真实数据挪最后，中间用0xFF填充到Adaptation中
		stuffSize := bodySize - inSize

		if packet[3]&0x20 != 0 {
			// has Adaptation
			base := int(4 + packet[4]) // TS Header + Adaptation
			if wpos > base {
				copy(packet[base+stuffSize:], packet[base:wpos])
			}
			wpos = base + stuffSize

			packet[4] += uint8(stuffSize) // adaptation_field_length
			for i := 0; i < stuffSize; i++ {
				packet[base+i] = 0xFF
			}
		} else {
			// no Adaptation
			packet[3] |= 0x20

			base := 4
			if wpos > base {
				copy(packet[base+stuffSize:], packet[base:wpos])
			}
			wpos += stuffSize

			packet[4] = uint8(stuffSize - 1) // adaptation_field_length
			if stuffSize >= 2 {
				packet[5] = 0
				for i := 0; i < stuffSize-2; i++ {
					packet[6+i] = 0xFF
				}
			}
		}

		// 真实数据放在packet尾部
		copy(packet[wpos:], frame.Raw[lpos:rpos])
		lpos = rpos
	}

	return buf[:packetPosAtBuf]
}

// PackSection 将以pointer_field开始的PSI payload unit打包为188字节步长的TS packet，尾部用0xFF填充
//
// @param cc: 输入为上一个packet的continuity_counter，返回时更新
func PackSection(pid uint16, cc *uint8, payload []byte) []byte {
	n := (len(payload) + PacketSize188 - TsHeaderSize - 1) / (PacketSize188 - TsHeaderSize)
	if n == 0 {
		n = 1
	}
	out := make([]byte, n*PacketSize188)
	for i := range out {
		out[i] = 0xFF
	}

	for i := 0; i < n; i++ {
		packet := out[i*PacketSize188 : (i+1)*PacketSize188]
		*cc++
		packet[0] = syncByte
		packet[1] = uint8((pid >> 8) & 0x1F)
		if i == 0 {
			packet[1] |= 0x40
		}
		packet[2] = uint8(pid & 0xFF)
		packet[3] = 0x10 | (*cc & 0x0f)
		payload = payload[copy(packet[TsHeaderSize:], payload):]
	}
	return out
}

// Restride 将188字节步长的packet转换为`packetSize`步长
//
// 192步长在每个packet前添加4字节timecode，204步长在每个packet后添加16字节，均填0
func Restride(b []byte, packetSize int) []byte {
	if packetSize == PacketSize188 {
		return b
	}
	n := len(b) / PacketSize188
	out := make([]byte, n*packetSize)
	for i := 0; i < n; i++ {
		dst := out[i*packetSize:]
		if packetSize == PacketSize192 {
			dst = dst[PacketSize192-PacketSize188:]
		}
		copy(dst[:PacketSize188], b[i*PacketSize188:(i+1)*PacketSize188])
	}
	return out
}

// ----------------------------------------------------------------------------
// <iso13818-1.pdf>
// <2.4.3.5> <Table 2-6 Transport Stream adaptation field> <page 40/174>
// program_clock_reference_base [33b]
// reserved                     [6b]
// program_clock_reference_extension [9b]
// ----------------------------------------------------------------------------
func packPcr(out []byte, pcr uint64) {
	out[0] = uint8(pcr >> 25)
	out[1] = uint8(pcr >> 17)
	out[2] = uint8(pcr >> 9)
	out[3] = uint8(pcr >> 1)
	out[4] = uint8(pcr<<7) | 0x7e
	out[5] = 0
}

// 注意，除PTS外，DTS也使用这个函数打包
func packPts(out []byte, fb uint8, pts uint64) {
	var val uint64
	out[0] = (fb << 4) | (uint8(pts>>29) & 0x0E) | 1

	val = (((pts >> 15) & 0x7FFF) << 1) | 1
	out[1] = uint8(val >> 8)
	out[2] = uint8(val)

	val = ((pts & 0x7FFF) << 1) | 1
	out[3] = uint8(val >> 8)
	out[4] = uint8(val)
}
